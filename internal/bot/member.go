package bot

import (
	"errors"
	"strings"

	"github.com/m3rciful/membergate/core/telegram/helpers"
	"github.com/m3rciful/membergate/internal/member"
	"github.com/m3rciful/membergate/internal/onboarding"
	"github.com/m3rciful/membergate/internal/present"

	tele "gopkg.in/telebot.v4"
)

func profileOf(u *tele.User) member.Profile {
	if u == nil {
		return member.Profile{}
	}
	return member.Profile{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Username: u.Username}
}

func (h *Handlers) handleStart(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	p := profileOf(c.Sender())
	if p.ID == 0 {
		return nil
	}
	res, err := h.onboarding.Start(ctx, p)
	if err != nil {
		return h.fail(c, err)
	}

	switch res.Kind {
	case onboarding.StartApproved:
		s := h.animate(ctx, c.Recipient(), present.SequenceWelcome, p.FirstName)
		return s.finish(h.tmpl.Profile(res.Record), h.profileKeyboard())
	case onboarding.StartUnderReview:
		return helpers.SendMDV2(c, h.tmpl.AwaitingReview())
	case onboarding.StartRejected:
		return helpers.SendMDV2(c, h.tmpl.RejectedFinal(), h.supportKeyboard())
	}

	s := h.animate(ctx, c.Recipient(), present.SequenceLoading, p.FirstName)
	if err := s.finish(h.tmpl.Welcome(p.FirstName), nil); err != nil {
		return err
	}
	return helpers.SendMDV2(c, h.tmpl.Challenge(res.Challenge.Prompt))
}

// answerCaptcha treats plain text from a user with a pending challenge as the answer.
func (h *Handlers) answerCaptcha(c tele.Context) (bool, error) {
	text := c.Text()
	id := helpers.SenderID(c)
	if c.Message() == nil || text == "" || id == 0 || strings.HasPrefix(text, "/") {
		return false, nil
	}
	ctx := helpers.BuildContext(c)
	res, err := h.onboarding.Answer(ctx, id, text)
	if err != nil {
		return true, h.fail(c, err)
	}
	switch res.Kind {
	case onboarding.AnswerNotPending:
		return false, nil
	case onboarding.AnswerWrong:
		return true, helpers.SendMDV2(c, h.tmpl.CaptchaWrong())
	}
	if err := helpers.SendMDV2(c, h.tmpl.CaptchaPassed()); err != nil {
		return true, err
	}
	s := h.animate(ctx, c.Recipient(), present.SequenceLoading, res.Record.Name)
	return true, s.finish(h.tmpl.AwaitingReview(), nil)
}

func (h *Handlers) handleProfile(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	rec, err := h.onboarding.Profile(ctx, helpers.SenderID(c))
	if errors.Is(err, member.ErrNotFound) {
		return helpers.SendMDV2(c, h.tmpl.ProfileNotFound())
	}
	if err != nil {
		return h.fail(c, err)
	}
	s := h.animate(ctx, c.Recipient(), present.SequenceProfile, rec.Name)
	return s.finish(h.tmpl.Profile(rec), h.profileKeyboard())
}

func (h *Handlers) handleProfileRefresh(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	rec, err := h.onboarding.Profile(ctx, helpers.SenderID(c))
	if errors.Is(err, member.ErrNotFound) {
		return c.Respond(&tele.CallbackResponse{Text: "Profile not found. Use /start first."})
	}
	if err != nil {
		return h.fail(c, err)
	}
	if err := helpers.EditOrSendMDV2(c, h.tmpl.Profile(rec), h.profileKeyboard()); err != nil &&
		!errors.Is(err, tele.ErrSameMessageContent) {
		return err
	}
	return c.Respond(&tele.CallbackResponse{Text: "✅ Profile refreshed!"})
}

func (h *Handlers) handleProfileStats(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	rec, err := h.onboarding.Profile(ctx, helpers.SenderID(c))
	if errors.Is(err, member.ErrNotFound) {
		return c.Respond(&tele.CallbackResponse{Text: "Profile not found. Use /start first."})
	}
	if err != nil {
		return h.fail(c, err)
	}
	_ = c.Respond()
	return helpers.SendMDV2(c, h.tmpl.PersonalStats(rec))
}

func (h *Handlers) handleHelp(c tele.Context) error {
	return helpers.SendMDV2(c, h.tmpl.Help())
}

func (h *Handlers) handleUnknownText(c tele.Context) error {
	if !strings.HasPrefix(c.Text(), "/") {
		return nil
	}
	return helpers.SendMDV2(c, h.tmpl.UnknownText())
}
