// Package present renders user-facing messages as Telegram MarkdownV2 and
// holds the animation sequences played around onboarding steps.
package present

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/membergate/core/telegram/format"
	"github.com/m3rciful/membergate/internal/broadcast"
	"github.com/m3rciful/membergate/internal/member"
)

// UserListLimit caps the entries shown by the all-users listing.
const UserListLimit = 20

// Templates renders messages for one deployment.
type Templates struct {
	Brand      string
	SupportURL string
	// Location formats timestamps; nil means UTC.
	Location *time.Location
}

func (t Templates) stamp(ts time.Time) string {
	loc := t.Location
	if loc == nil {
		loc = time.UTC
	}
	return ts.In(loc).Format("2006-01-02 15:04 MST")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func handle(username string) string {
	if username == "" {
		return "N/A"
	}
	return "@" + username
}

// StatusLabel is the human readable member status.
func StatusLabel(s member.Status) string {
	switch s {
	case member.StatusApproved:
		return "Approved ✅"
	case member.StatusAwaitingReview:
		return "Pending Review ⏳"
	case member.StatusRejected:
		return "Declined ❌"
	default:
		return "Not Verified 🔒"
	}
}

func statusIcon(s member.Status) string {
	if s == member.StatusApproved {
		return "✅"
	}
	return "⏳"
}

// Welcome greets a user on /start.
func (t Templates) Welcome(firstName string) string {
	d := &doc{}
	d.heading("🤖", "WELCOME TO "+strings.ToUpper(t.Brand))
	d.rule()
	d.raw("👋 Hello " + format.Bold(orNA(firstName)) + "\\!\n\n")
	d.text("Thank you for joining our community.")
	d.blank()
	d.field("🌟", "Community", "Verified Members Only")
	return d.String()
}

// Challenge asks the captcha question.
func (t Templates) Challenge(prompt string) string {
	d := &doc{}
	d.heading("🧮", "SECURITY VERIFICATION")
	d.rule()
	d.text("To confirm you are human, please solve:")
	d.blank()
	d.raw(format.Bold(prompt+" = ?") + "\n")
	d.blank()
	d.heading("📝", "Instructions:")
	d.bullets("Type only the numerical answer", "Use /start to get a new question")
	return d.String()
}

// CaptchaPassed acknowledges a correct answer.
func (t Templates) CaptchaPassed() string {
	d := &doc{}
	d.heading("✅", "VERIFICATION SUCCESSFUL")
	d.rule()
	d.text("You passed the security check. Checking your membership status...")
	return d.String()
}

// CaptchaWrong reports a wrong answer.
func (t Templates) CaptchaWrong() string {
	d := &doc{}
	d.heading("❌", "VERIFICATION FAILED")
	d.rule()
	d.text("Incorrect answer. Try again or type /start for a new question.")
	return d.String()
}

// AwaitingReview tells the user the admin has to approve them.
func (t Templates) AwaitingReview() string {
	d := &doc{}
	d.heading("⏳", "MEMBERSHIP STATUS: PENDING")
	d.rule()
	d.text("Your account requires administrator approval.")
	d.blank()
	d.field("⏰", "Processing Time", "24-48 hours")
	d.blank()
	d.heading("📋", "Next Steps:")
	d.text("1. Wait for administrator review")
	d.text("2. You will be notified about the decision")
	return d.String()
}

// RejectedFinal is shown to rejected users when re-applying is disabled.
func (t Templates) RejectedFinal() string {
	d := &doc{}
	d.heading("❌", "MEMBERSHIP DECLINED")
	d.rule()
	d.text("Your membership request was declined. Contact support if you think this is a mistake.")
	return d.String()
}

// Profile renders a member's stored record.
func (t Templates) Profile(rec member.Record) string {
	d := &doc{}
	d.heading("👤", "MEMBER PROFILE")
	d.rule()
	d.codeField("🆔", "User ID", strconv.FormatInt(rec.ID, 10))
	d.field("📛", "Name", orNA(rec.Name))
	d.field("📧", "Username", handle(rec.Username))
	d.field("🌍", "Country", orNA(rec.Country))
	d.field("📅", "Joined", t.stamp(rec.JoinedAt))
	d.rule()
	d.field("💰", member.FieldTotalAllocation.Label(), rec.TotalAllocation)
	d.field("💵", member.FieldTotalInvestment.Label(), rec.TotalInvestment)
	d.field("🎯", member.FieldTotalPayout.Label(), rec.TotalPayout)
	d.codeField("🔗", member.FieldWallet.Label(), rec.Wallet)
	d.rule()
	d.field("✅", "Status", StatusLabel(rec.Status))
	return d.String()
}

// ProfileNotFound is shown when /profile runs before /start.
func (t Templates) ProfileNotFound() string {
	return format.V2("❌ Profile not found. Please use /start to initialize.")
}

// PersonalStats is the placeholder behind the profile statistics button.
func (t Templates) PersonalStats(rec member.Record) string {
	d := &doc{}
	d.heading("📊", "PERSONAL STATISTICS")
	d.rule()
	d.field("💵", member.FieldTotalInvestment.Label(), rec.TotalInvestment)
	d.field("🎯", member.FieldTotalPayout.Label(), rec.TotalPayout)
	d.blank()
	d.text("Detailed analytics will be available soon.")
	return d.String()
}

// Help lists the public commands.
func (t Templates) Help() string {
	d := &doc{}
	d.heading("🎯", strings.ToUpper(t.Brand)+" - HELP")
	d.rule()
	d.heading("🤖", "Available Commands:")
	d.bullets(
		"/start - Start verification",
		"/profile - View your member profile",
		"/help - Show this help message",
	)
	if t.SupportURL != "" {
		d.blank()
		d.raw("💬 " + format.Link("Contact support", t.SupportURL) + "\n")
	}
	return d.String()
}

// AccessDenied answers non-admins invoking admin operations.
func (t Templates) AccessDenied() string {
	return "🔒 " + format.Bold("ACCESS DENIED") + "\n\n" + format.V2("Administrator access required.")
}

// Failure is the generic reply when storage or delivery fails.
func (t Templates) Failure() string {
	return format.V2("⚠️ Something went wrong. Please try again later.")
}

// AdminPanel shows counts and the admin tools.
func (t Templates) AdminPanel(s member.Stats) string {
	d := &doc{}
	d.heading("👑", "ADMIN PANEL")
	d.rule()
	d.heading("📊", "System Statistics:")
	d.bullets(
		fmt.Sprintf("Total Users: %d", s.Total),
		fmt.Sprintf("Approved: %d", s.Approved),
		fmt.Sprintf("Pending: %d", s.Pending),
	)
	d.blank()
	d.heading("🛠", "Admin Tools:")
	d.bullets(
		"/users - View all users",
		"/pending - View pending approvals",
		"/broadcast - Send message to all members",
		"/set <user_id> - Modify user data",
		"/stats - Detailed statistics",
	)
	return d.String()
}

// UserList renders at most UserListLimit records plus a remainder line.
func (t Templates) UserList(recs []member.Record) string {
	if len(recs) == 0 {
		return format.V2("❌ No users found in database.")
	}
	d := &doc{}
	d.heading("📋", fmt.Sprintf("ALL USERS (%d)", len(recs)))
	d.rule()
	for i, rec := range recs {
		if i == UserListLimit {
			break
		}
		d.text(fmt.Sprintf("%d. %s (%s) - %s", i+1, orNA(rec.Name), handle(rec.Username), statusIcon(rec.Status)))
		d.codeField("", "ID", strconv.FormatInt(rec.ID, 10))
	}
	if extra := len(recs) - UserListLimit; extra > 0 {
		d.blank()
		d.text(fmt.Sprintf("... and %d more users.", extra))
	}
	return d.String()
}

// NoPending is shown when every user is approved.
func (t Templates) NoPending() string {
	return format.V2("✅ No pending users. All users are approved!")
}

// PendingHeader precedes the per-user pending entries.
func (t Templates) PendingHeader(n int) string {
	return "⏳ " + format.Bold(fmt.Sprintf("PENDING APPROVALS (%d)", n))
}

// PendingEntry renders one pending user; it is sent with decision buttons.
func (t Templates) PendingEntry(rec member.Record) string {
	d := &doc{}
	d.text(fmt.Sprintf("%s (%s)", orNA(rec.Name), handle(rec.Username)))
	d.codeField("🆔", "ID", strconv.FormatInt(rec.ID, 10))
	d.field("📅", "Joined", t.stamp(rec.JoinedAt))
	d.field("📌", "Status", StatusLabel(rec.Status))
	return d.String()
}

// Applicant is the admin notification for a user who passed the captcha.
func (t Templates) Applicant(rec member.Record, at time.Time) string {
	d := &doc{}
	d.heading("👤", "NEW MEMBER REQUEST")
	d.rule()
	d.codeField("🆔", "User ID", strconv.FormatInt(rec.ID, 10))
	d.field("📛", "Name", orNA(rec.Name))
	d.field("📧", "Username", handle(rec.Username))
	d.field("🕒", "Request Time", t.stamp(at))
	d.rule()
	d.text("Security check passed. Please approve or reject this request.")
	return d.String()
}

// Approved is sent to a member after approval.
func (t Templates) Approved() string {
	d := &doc{}
	d.heading("🎉", "MEMBERSHIP APPROVED!")
	d.rule()
	d.text("Congratulations! Your membership has been approved.")
	d.blank()
	d.text("Use /profile to view your dashboard.")
	return d.String()
}

// Rejected is sent to a user after rejection.
func (t Templates) Rejected() string {
	d := &doc{}
	d.heading("❌", "MEMBERSHIP DECLINED")
	d.rule()
	d.text("We regret to inform you that your membership request has been declined.")
	return d.String()
}

// Decided replaces the admin notification once a decision is recorded.
func (t Templates) Decided(rec member.Record) string {
	id := format.Code(strconv.FormatInt(rec.ID, 10))
	if rec.Approved() {
		return "✅ " + format.Bold("APPROVED") + "\n\n" + format.V2("User ") + id + format.V2(" has been granted full membership access.")
	}
	return "❌ " + format.Bold("REJECTED") + "\n\n" + format.V2("User ") + id + format.V2(" membership request has been declined.")
}

// SetUsage explains /set.
func (t Templates) SetUsage() string {
	d := &doc{}
	d.heading("🎯", "ADMIN TOOL: USER MANAGEMENT")
	d.rule()
	d.raw("📝 " + format.Bold("Usage:") + " " + format.Code("/set <user_id>") + "\n")
	d.raw("📋 " + format.Bold("Example:") + " " + format.Code("/set 123456789") + "\n")
	d.blank()
	d.text("Use /users to see registered user IDs.")
	return d.String()
}

// InvalidTarget rejects a non-numeric /set argument.
func (t Templates) InvalidTarget() string {
	return format.V2("❌ Invalid user ID format. Must be numeric.")
}

// TargetNotFound is shown for an unknown member id.
func (t Templates) TargetNotFound() string {
	return format.V2("❌ User not found in database. User must /start first.")
}

// Manage is the per-member field editing panel.
func (t Templates) Manage(rec member.Record) string {
	d := &doc{}
	d.heading("👤", "USER MANAGEMENT PANEL")
	d.rule()
	d.codeField("🆔", "User ID", strconv.FormatInt(rec.ID, 10))
	d.field("📛", "Name", orNA(rec.Name))
	d.field("📧", "Username", handle(rec.Username))
	d.field("✅", "Status", StatusLabel(rec.Status))
	d.rule()
	d.text("Select field to modify:")
	return d.String()
}

// FieldPrompt asks for the new value of a field.
func (t Templates) FieldPrompt(f member.Field, target int64) string {
	hint := ""
	if f == member.FieldApproval {
		hint = "\n" + format.V2("(yes / no)")
	}
	return format.V2("Please enter the new value for ") + format.Bold(f.Label()) +
		format.V2(fmt.Sprintf(" for user %d:", target)) + hint
}

// FieldUpdated confirms an applied edit.
func (t Templates) FieldUpdated(target int64, f member.Field, value string) string {
	return format.V2(fmt.Sprintf("✅ Successfully updated user %d's %s to: ", target, f.Label())) + format.Code(value)
}

// FieldRejected reports an edit that failed validation.
func (t Templates) FieldRejected(err error) string {
	return format.V2("❌ Update rejected: " + err.Error())
}

// Stats renders the detailed statistics; the rate is omitted when there are
// no users.
func (t Templates) Stats(s member.Stats) string {
	rate := "n/a"
	if r, ok := s.ApprovalRate(); ok {
		rate = strconv.FormatFloat(r, 'f', 1, 64) + "%"
	}
	d := &doc{}
	d.heading("📊", "SYSTEM STATISTICS")
	d.rule()
	d.heading("👥", "User Analytics:")
	d.raw("• 👤 Total Users: " + format.Code(strconv.Itoa(s.Total)) + "\n")
	d.raw("• ✅ Approved: " + format.Code(strconv.Itoa(s.Approved)) + "\n")
	d.raw("• ⏳ Pending: " + format.Code(strconv.Itoa(s.Pending)) + "\n")
	d.blank()
	d.raw("🎯 " + format.Bold("Approval Rate:") + " " + format.Code(rate) + "\n")
	return d.String()
}

// BroadcastPrompt arms broadcast mode.
func (t Templates) BroadcastPrompt() string {
	d := &doc{}
	d.heading("📢", "BROADCAST MANAGEMENT")
	d.rule()
	d.text("Send the message you want to broadcast to all approved members.")
	d.blank()
	d.heading("📋", "Supported Formats:")
	d.bullets("Text messages", "Photos, videos, documents and audio with captions", "Anything else is forwarded as is")
	d.rule()
	d.text("Please send your broadcast content now...")
	return d.String()
}

// BroadcastStarting precedes the progress message.
func (t Templates) BroadcastStarting() string {
	return "🚀 " + format.Bold("Starting broadcast process...")
}

// BroadcastProgress renders a progress snapshot.
func (t Templates) BroadcastProgress(p broadcast.Progress) string {
	return "📊 " + format.Bold("Broadcast Progress:") + " " + format.V2(fmt.Sprintf("%d/%d", p.Done, p.Total)) + "\n" +
		format.V2(fmt.Sprintf("✅ Success: %d | ❌ Failed: %d", p.Success, p.Failed))
}

// BroadcastReport summarises a finished run.
func (t Templates) BroadcastReport(r broadcast.Report) string {
	rate := "n/a (no recipients)"
	if v, ok := r.SuccessRate(); ok {
		rate = strconv.FormatFloat(v, 'f', 1, 64) + "%"
	}
	d := &doc{}
	d.heading("📢", "BROADCAST COMPLETED")
	d.rule()
	d.heading("📊", "Delivery Report:")
	d.bullets(
		fmt.Sprintf("✅ Successful: %d", r.Success),
		fmt.Sprintf("❌ Failed: %d", r.Failed),
		"📈 Success Rate: "+rate,
	)
	d.blank()
	d.field("🕒", "Completed", t.stamp(r.FinishedAt))
	d.codeField("🔖", "Run", r.RunID)
	return d.String()
}

// BroadcastInterrupted is sent when shutdown stops a run.
func (t Templates) BroadcastInterrupted(r broadcast.Report) string {
	return format.V2(fmt.Sprintf("⚠️ Broadcast interrupted after %d of %d recipients (✅ %d, ❌ %d).",
		r.Success+r.Failed, r.Total, r.Success, r.Failed))
}

// UnknownText nudges users who send text nothing consumed.
func (t Templates) UnknownText() string {
	return format.V2("🤔 I did not understand that. Use /help to see available commands.")
}
