package bot

import (
	"context"
	"time"

	"github.com/m3rciful/membergate/core/telegram/helpers"
	"github.com/m3rciful/membergate/internal/member"
	"github.com/m3rciful/membergate/internal/present"
)

// Notifier delivers out-of-band messages: new applications to the admin and
// decisions to members. Messages go through the shared async sender.
type Notifier struct {
	api   helpers.Sender
	admin int64
	tmpl  present.Templates
	now   func() time.Time
}

// NewNotifier constructs a Notifier for the given admin chat.
func NewNotifier(api helpers.Sender, admin int64, tmpl present.Templates) *Notifier {
	return &Notifier{api: api, admin: admin, tmpl: tmpl, now: time.Now}
}

// NotifyApplicant implements onboarding.AdminNotifier.
func (n *Notifier) NotifyApplicant(ctx context.Context, rec member.Record) error {
	return helpers.NotifyMDV2(ctx, n.api, n.admin, n.tmpl.Applicant(rec, n.now()), applicantKeyboard(rec.ID))
}

// NotifyDecision implements review.MemberNotifier.
func (n *Notifier) NotifyDecision(ctx context.Context, rec member.Record) error {
	text := n.tmpl.Rejected()
	if rec.Approved() {
		text = n.tmpl.Approved()
	}
	return helpers.NotifyMDV2(ctx, n.api, rec.ID, text)
}
