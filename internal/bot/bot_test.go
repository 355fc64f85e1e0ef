package bot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/membergate/core/database"
	tg "github.com/m3rciful/membergate/core/telegram"
	"github.com/m3rciful/membergate/core/telegram/router"
	"github.com/m3rciful/membergate/internal/broadcast"
	"github.com/m3rciful/membergate/internal/captcha"
	"github.com/m3rciful/membergate/internal/member"
	"github.com/m3rciful/membergate/internal/onboarding"
	"github.com/m3rciful/membergate/internal/present"
	"github.com/m3rciful/membergate/internal/review"
	"github.com/m3rciful/membergate/internal/session"
	"github.com/m3rciful/membergate/migrations"

	tele "gopkg.in/telebot.v4"
)

const adminID int64 = 999

// seqSource replays fixed captcha draws.
type seqSource struct {
	vals []int
	i    int
}

func (s *seqSource) IntN(n int) int {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v % n
}

type harness struct {
	tg       *fakeTelegram
	bot      *tele.Bot
	h        *Handlers
	reg      *tg.Registry
	members  *member.Store
	sessions *session.Memory
	text     tele.HandlerFunc
	media    tele.HandlerFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dbCfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(t.TempDir(), "bot.db")}
	require.NoError(t, coredatabase.RunMigrations(dbCfg, migrations.FS))
	db, err := coredatabase.Connect(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fake := newFakeTelegram(t)
	b := fake.bot(t)
	members := member.NewStore(db, member.Options{})
	sessions := session.NewMemory(nil)

	off := false
	pres := present.Config{Animations: &off, SupportURL: "https://t.me/support"}
	require.NoError(t, pres.Normalize())
	notifier := NewNotifier(b, adminID, pres.Templates())

	gen, err := captcha.New(captcha.Config{}, sessions, &seqSource{vals: []int{5, 2, 0}})
	require.NoError(t, err)
	dispatcher, err := broadcast.NewDispatcher(broadcast.Config{
		SuccessDelay:  time.Nanosecond,
		FailureDelay:  time.Nanosecond,
		ProgressEvery: 2,
	}, members, NewDeliverer(b, pres.SupportURL))
	require.NoError(t, err)

	h := New(Deps{
		API:          b,
		Presentation: pres,
		Onboarding:   onboarding.New(onboarding.Config{}, members, gen, notifier),
		Review:       review.New(adminID, members, sessions, notifier),
		Dispatcher:   dispatcher,
		Broadcasts:   broadcast.NewSession(sessions),
	})
	reg := tg.NewRegistry()
	require.NoError(t, h.Register(reg))

	hs := &harness{tg: fake, bot: b, h: h, reg: reg, members: members, sessions: sessions}
	for _, r := range router.MessageRoutes(h.Stages(), reg, h.MessageOptions()) {
		switch r.Endpoint {
		case tele.OnText:
			hs.text = r.Handler
		case tele.OnPhoto:
			hs.media = r.Handler
		}
	}
	return hs
}

func user(id int64) *tele.User {
	return &tele.User{ID: id, FirstName: "Ann", Username: "ann"}
}

func (hs *harness) message(from int64, text string) tele.Context {
	return hs.bot.NewContext(tele.Update{
		ID: 1,
		Message: &tele.Message{
			ID:     10,
			Sender: user(from),
			Chat:   &tele.Chat{ID: from, Type: tele.ChatPrivate},
			Text:   text,
		},
	})
}

func (hs *harness) callback(from int64, unique, data string) tele.Context {
	return hs.bot.NewContext(tele.Update{
		ID: 2,
		Callback: &tele.Callback{
			ID:      "cb",
			Sender:  user(from),
			Message: &tele.Message{ID: 50, Chat: &tele.Chat{ID: from, Type: tele.ChatPrivate}},
			Unique:  unique,
			Data:    data,
		},
	})
}

// command runs a registered command the way the command router would.
func (hs *harness) command(t *testing.T, from int64, text string) {
	t.Helper()
	_, cmd, ok := hs.reg.LookupCommand(text)
	require.True(t, ok, text)
	require.NoError(t, cmd.Handler(hs.message(from, text)))
}

func (hs *harness) press(t *testing.T, from int64, unique, data string) {
	t.Helper()
	fn, ok := hs.reg.GetCallback(unique)
	require.True(t, ok, unique)
	require.NoError(t, fn(hs.callback(from, unique, data)))
}

func (hs *harness) status(t *testing.T, id int64) member.Status {
	t.Helper()
	rec, err := hs.members.Get(context.Background(), id)
	require.NoError(t, err)
	return rec.Status
}

func TestOnboardingToApproval(t *testing.T) {
	hs := newHarness(t)

	hs.command(t, 1001, "/start")
	out := Texts(hs.tg.To(1001, "sendMessage"))
	assert.Contains(t, out, "WELCOME TO MEMBERS CLUB")
	assert.Contains(t, out, "*15 \\+ 7 \\= ?*")
	assert.Equal(t, member.StatusUnverified, hs.status(t, 1001))

	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(1001, "21")))
	assert.Contains(t, Texts(hs.tg.To(1001, "sendMessage")), "VERIFICATION FAILED")
	assert.Empty(t, hs.tg.To(adminID))

	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(1001, " 22 ")))
	assert.Equal(t, member.StatusAwaitingReview, hs.status(t, 1001))
	assert.Contains(t, Texts(hs.tg.To(1001, "sendMessage")), "MEMBERSHIP STATUS: PENDING")

	admin := hs.tg.To(adminID, "sendMessage")
	require.Len(t, admin, 1)
	assert.Contains(t, admin[0].Params["text"], "NEW MEMBER REQUEST")
	assert.Contains(t, admin[0].Params["reply_markup"], "approve|1001")
	assert.Contains(t, admin[0].Params["reply_markup"], "view|1001")

	hs.tg.Reset()
	hs.command(t, 1001, "/start")
	assert.Contains(t, Texts(hs.tg.To(1001)), "PENDING")
	assert.Empty(t, hs.tg.To(adminID), "no second admin notification while under review")

	hs.tg.Reset()
	hs.press(t, adminID, CallbackApprove, "1001")
	assert.Equal(t, member.StatusApproved, hs.status(t, 1001))
	assert.Contains(t, Texts(hs.tg.To(adminID, "editMessageText")), "*APPROVED*")
	assert.Contains(t, Texts(hs.tg.To(1001, "sendMessage")), "MEMBERSHIP APPROVED")

	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(1001, "22")))
	assert.Empty(t, hs.tg.Calls("sendMessage"), "plain text from a member is ignored")

	hs.command(t, 1001, "/start")
	assert.Contains(t, Texts(hs.tg.To(1001)), "MEMBER PROFILE")
}

func TestLateAnswerKeepsApproval(t *testing.T) {
	hs := newHarness(t)
	hs.command(t, 1001, "/start")

	hs.command(t, adminID, "/pending")
	assert.Contains(t, Texts(hs.tg.To(adminID, "sendMessage")), "1001")
	hs.press(t, adminID, CallbackApprove, "1001")
	require.Equal(t, member.StatusApproved, hs.status(t, 1001))

	hs.tg.Reset()
	for _, text := range []string{"21", "22"} {
		require.NoError(t, hs.text(hs.message(1001, text)))
	}
	assert.Empty(t, hs.tg.Calls("sendMessage"), "no verification replies and no admin notice")
	assert.Equal(t, member.StatusApproved, hs.status(t, 1001))

	ids, err := hs.members.ApprovedIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1001}, ids)
}

func TestDecisionRequiresAdmin(t *testing.T) {
	hs := newHarness(t)
	hs.command(t, 1001, "/start")

	hs.tg.Reset()
	hs.press(t, 555, CallbackApprove, "1001")
	assert.Equal(t, member.StatusUnverified, hs.status(t, 1001))
	answers := hs.tg.Calls("answerCallbackQuery")
	require.NotEmpty(t, answers)
	assert.Contains(t, answers[0].Params["text"], "Administrator access required")
	assert.Empty(t, hs.tg.To(1001, "sendMessage"))
}

func TestRejectNotifiesMember(t *testing.T) {
	hs := newHarness(t)
	hs.command(t, 1001, "/start")
	hs.tg.Reset()

	hs.press(t, adminID, CallbackReject, "1001")
	assert.Equal(t, member.StatusRejected, hs.status(t, 1001))
	assert.Contains(t, Texts(hs.tg.To(1001, "sendMessage")), "MEMBERSHIP DECLINED")
}

func TestAdminCommandsDenyOthers(t *testing.T) {
	hs := newHarness(t)
	for _, cmd := range []string{"/admin", "/users", "/pending", "/stats", "/set 1", "/broadcast"} {
		hs.tg.Reset()
		hs.command(t, 555, cmd)
		assert.Contains(t, Texts(hs.tg.To(555)), "ACCESS DENIED", cmd)
	}
	_, armed, err := hs.sessions.Get(context.Background(), broadcast.Scope, 555)
	require.NoError(t, err)
	assert.False(t, armed)
}

func TestSetAndFieldEdit(t *testing.T) {
	hs := newHarness(t)
	hs.command(t, 1001, "/start")

	cases := []struct{ cmd, want string }{
		{"/set", "Usage:"},
		{"/set abc", "Invalid user ID format"},
		{"/set 4242", "User must /start first"},
		{"/set 1001", "USER MANAGEMENT PANEL"},
	}
	for _, tc := range cases {
		hs.tg.Reset()
		hs.command(t, adminID, tc.cmd)
		assert.Contains(t, Texts(hs.tg.To(adminID)), tc.want, tc.cmd)
	}
	panel := hs.tg.To(adminID, "sendMessage")
	require.Len(t, panel, 1)
	assert.Contains(t, panel[0].Params["reply_markup"], "setfield|1001:wallet")

	hs.tg.Reset()
	hs.press(t, adminID, CallbackSetField, "1001:wallet")
	assert.Contains(t, Texts(hs.tg.To(adminID)), "*Wallet Address*")

	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(adminID, "0xabc")))
	assert.Contains(t, Texts(hs.tg.To(adminID)), "Successfully updated user 1001")
	rec, err := hs.members.Get(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", rec.Wallet)

	hs.press(t, adminID, CallbackSetField, "1001:approval")
	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(adminID, "maybe")))
	assert.Contains(t, Texts(hs.tg.To(adminID)), "Update rejected")
	assert.Equal(t, member.StatusUnverified, hs.status(t, 1001))

	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(adminID, "yes")))
	assert.Empty(t, hs.tg.To(adminID), "slot was consumed by the rejected value")
	assert.Equal(t, member.StatusUnverified, hs.status(t, 1001))
}

func TestListingsAndStats(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		_, err := hs.members.Upsert(ctx, member.Profile{ID: id, FirstName: "m"})
		require.NoError(t, err)
	}
	require.NoError(t, hs.members.SetStatus(ctx, 1, member.StatusApproved))

	hs.command(t, adminID, "/pending")
	pending := hs.tg.To(adminID, "sendMessage")
	require.Len(t, pending, 3, "header plus one entry per pending user")
	assert.Contains(t, pending[1].Params["reply_markup"], "reject|")

	hs.tg.Reset()
	hs.command(t, adminID, "/stats")
	assert.Contains(t, Texts(hs.tg.To(adminID)), "`33.3%`")

	hs.tg.Reset()
	hs.command(t, adminID, "/users")
	assert.Contains(t, Texts(hs.tg.To(adminID)), "ALL USERS \\(3\\)")
}

func TestBroadcastRun(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		_, err := hs.members.Upsert(ctx, member.Profile{ID: id, FirstName: "m"})
		require.NoError(t, err)
		require.NoError(t, hs.members.SetStatus(ctx, id, member.StatusApproved))
	}
	_, err := hs.members.Upsert(ctx, member.Profile{ID: 4, FirstName: "pending"})
	require.NoError(t, err)
	hs.tg.blocked[2] = true

	hs.command(t, adminID, "/broadcast")
	assert.Contains(t, Texts(hs.tg.To(adminID)), "BROADCAST MANAGEMENT")

	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(adminID, "hello members")))

	for _, id := range []int64{1, 3} {
		sent := hs.tg.To(id, "sendMessage")
		require.Len(t, sent, 1)
		assert.Equal(t, "hello members", sent[0].Params["text"])
		assert.Contains(t, sent[0].Params["reply_markup"], "https://t.me/support")
	}
	assert.Empty(t, hs.tg.To(4), "pending users receive nothing")
	assert.NotEmpty(t, hs.tg.To(adminID, "editMessageText"), "progress edits")
	report := Texts(hs.tg.To(adminID, "sendMessage"))
	assert.Contains(t, report, "BROADCAST COMPLETED")
	assert.Contains(t, report, "Successful: 2")
	assert.Contains(t, report, "Failed: 1")
	assert.Contains(t, report, "66\\.7%")

	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(adminID, "second message")))
	assert.Empty(t, hs.tg.To(1), "broadcast mode is consumed by one message")
}

func TestBroadcastIgnoresSlashCommands(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	_, err := hs.members.Upsert(ctx, member.Profile{ID: 1, FirstName: "m"})
	require.NoError(t, err)
	require.NoError(t, hs.members.SetStatus(ctx, 1, member.StatusApproved))

	hs.command(t, adminID, "/broadcast")
	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(adminID, "/whatever")))
	assert.Empty(t, hs.tg.To(1), "a mistyped command is not broadcast")
	assert.Contains(t, Texts(hs.tg.To(adminID)), "/help")

	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(adminID, "real message")))
	sent := hs.tg.To(1, "sendMessage")
	require.Len(t, sent, 1, "broadcast mode stayed armed")
	assert.Equal(t, "real message", sent[0].Params["text"])
}

func TestBroadcastPhoto(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	_, err := hs.members.Upsert(ctx, member.Profile{ID: 1, FirstName: "m"})
	require.NoError(t, err)
	require.NoError(t, hs.members.SetStatus(ctx, 1, member.StatusApproved))

	hs.command(t, adminID, "/broadcast")
	hs.tg.Reset()
	c := hs.bot.NewContext(tele.Update{Message: &tele.Message{
		ID:      11,
		Sender:  user(adminID),
		Chat:    &tele.Chat{ID: adminID, Type: tele.ChatPrivate},
		Photo:   &tele.Photo{File: tele.File{FileID: "photo-1"}},
		Caption: "look",
	}})
	require.NoError(t, hs.media(c))

	sent := hs.tg.To(1, "sendPhoto")
	require.Len(t, sent, 1)
	assert.Equal(t, "photo-1", sent[0].Params["photo"])
	assert.Equal(t, "look", sent[0].Params["caption"])
}

func TestProfile(t *testing.T) {
	hs := newHarness(t)
	hs.command(t, 1001, "/profile")
	assert.Contains(t, Texts(hs.tg.To(1001)), "Profile not found")

	hs.command(t, 1001, "/start")
	hs.tg.Reset()
	hs.command(t, 1001, "/profile")
	sent := hs.tg.To(1001, "sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Params["text"], "MEMBER PROFILE")
	assert.Contains(t, sent[0].Params["reply_markup"], CallbackProfileRefresh)

	hs.tg.Reset()
	hs.press(t, 1001, CallbackProfileRefresh, "")
	assert.Contains(t, Texts(hs.tg.To(1001, "editMessageText")), "MEMBER PROFILE")

	hs.tg.Reset()
	hs.press(t, 1001, CallbackProfileStats, "")
	assert.Contains(t, Texts(hs.tg.To(1001)), "PERSONAL STATISTICS")
}

func TestUnknownCommandNudges(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.text(hs.message(1001, "/nope")))
	assert.Contains(t, Texts(hs.tg.To(1001)), "/help")

	hs.tg.Reset()
	require.NoError(t, hs.text(hs.message(1001, "hi")))
	assert.Empty(t, hs.tg.Calls())
}
