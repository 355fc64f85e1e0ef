package bot

import (
	"context"
	"log/slog"

	"github.com/m3rciful/membergate/core/logger"
	"github.com/m3rciful/membergate/core/telegram/helpers"
	"github.com/m3rciful/membergate/internal/present"

	tele "gopkg.in/telebot.v4"
)

// screen is one chat message that animation frames are written into.
type screen struct {
	api API
	to  tele.Recipient
	msg *tele.Message
}

func (s *screen) Show(_ context.Context, text string) error {
	if s.msg == nil {
		m, err := s.api.Send(s.to, text, helpers.MDV2())
		if err != nil {
			return err
		}
		s.msg = m
		return nil
	}
	m, err := s.api.Edit(s.msg, text, helpers.MDV2())
	if err != nil {
		return err
	}
	if m != nil {
		s.msg = m
	}
	return nil
}

// finish replaces the animation with text, or sends text when no frame was shown.
func (s *screen) finish(text string, markup *tele.ReplyMarkup) error {
	if s.msg != nil {
		if _, err := s.api.Edit(s.msg, text, helpers.MDV2(markup)); err == nil {
			return nil
		}
	}
	_, err := s.api.Send(s.to, text, helpers.MDV2(markup))
	return err
}

// animate plays the named sequence into a new message and returns the screen
// for the final content. Frame failures are logged, never returned.
func (h *Handlers) animate(ctx context.Context, to tele.Recipient, name, firstName string) *screen {
	s := &screen{api: h.api, to: to}
	seq := h.pres.Sequence(name)
	if len(seq) == 0 {
		return s
	}
	if err := present.Play(ctx, seq.Personalize(firstName), s, h.sleep); err != nil {
		logger.Debug(ctx, "tg", "animation.aborted",
			slog.String("sequence", name),
			slog.Any("err", err),
		)
	}
	return s
}
