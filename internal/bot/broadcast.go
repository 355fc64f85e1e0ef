package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/membergate/core/logger"
	"github.com/m3rciful/membergate/core/telegram/helpers"
	"github.com/m3rciful/membergate/internal/broadcast"

	tele "gopkg.in/telebot.v4"
)

// PayloadFrom captures a message as broadcast content. Text and the four
// captioned media kinds are re-sent; anything else is forwarded.
func PayloadFrom(m *tele.Message) broadcast.Payload {
	switch {
	case m.Photo != nil:
		return broadcast.Payload{Kind: broadcast.KindPhoto, FileID: m.Photo.FileID, Caption: m.Caption}
	case m.Video != nil:
		return broadcast.Payload{Kind: broadcast.KindVideo, FileID: m.Video.FileID, Caption: m.Caption}
	case m.Document != nil:
		return broadcast.Payload{Kind: broadcast.KindDocument, FileID: m.Document.FileID, Caption: m.Caption}
	case m.Audio != nil:
		return broadcast.Payload{Kind: broadcast.KindAudio, FileID: m.Audio.FileID, Caption: m.Caption}
	case m.Text != "":
		return broadcast.Payload{Kind: broadcast.KindText, Text: m.Text}
	}
	p := broadcast.Payload{Kind: broadcast.KindForward, SourceMessage: m.ID}
	if m.Chat != nil {
		p.SourceChat = m.Chat.ID
	}
	return p
}

// Deliverer sends broadcast payloads to members.
type Deliverer struct {
	api        API
	supportURL string
}

// NewDeliverer constructs a Deliverer; a non-empty supportURL adds a support
// button under every re-sent message.
func NewDeliverer(api API, supportURL string) *Deliverer {
	return &Deliverer{api: api, supportURL: supportURL}
}

func (d *Deliverer) options() *tele.SendOptions {
	opts := &tele.SendOptions{}
	if d.supportURL != "" {
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.URL("💬 Support", d.supportURL)))
		opts.ReplyMarkup = markup
	}
	return opts
}

// Deliver implements broadcast.Deliverer.
func (d *Deliverer) Deliver(_ context.Context, recipient int64, p broadcast.Payload) error {
	to := tele.ChatID(recipient)
	var what interface{}
	switch p.Kind {
	case broadcast.KindText:
		what = p.Text
	case broadcast.KindPhoto:
		what = &tele.Photo{File: tele.File{FileID: p.FileID}, Caption: p.Caption}
	case broadcast.KindVideo:
		what = &tele.Video{File: tele.File{FileID: p.FileID}, Caption: p.Caption}
	case broadcast.KindDocument:
		what = &tele.Document{File: tele.File{FileID: p.FileID}, Caption: p.Caption}
	case broadcast.KindAudio:
		what = &tele.Audio{File: tele.File{FileID: p.FileID}, Caption: p.Caption}
	case broadcast.KindForward:
		src := &tele.StoredMessage{MessageID: strconv.Itoa(p.SourceMessage), ChatID: p.SourceChat}
		_, err := d.api.Forward(to, src)
		return err
	default:
		return p.Validate()
	}
	_, err := d.api.Send(to, what, d.options())
	return err
}

func (h *Handlers) handleBroadcast(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	actor := helpers.SenderID(c)
	if err := h.review.Authorize(ctx, actor); err != nil {
		return h.AccessDenied(c)
	}
	if err := h.broadcasts.Arm(ctx, actor); err != nil {
		return h.fail(c, err)
	}
	logger.Info(ctx, "broadcast", "broadcast.armed")
	return helpers.SendMDV2(c, h.tmpl.BroadcastPrompt())
}

// captureBroadcast takes the admin's next message after /broadcast and fans
// it out. Slash commands never count as that message. The handler stays busy until the run ends.
func (h *Handlers) captureBroadcast(c tele.Context) (bool, error) {
	actor := helpers.SenderID(c)
	m := c.Message()
	if m == nil || strings.HasPrefix(m.Text, "/") || !h.review.IsAdmin(actor) {
		return false, nil
	}
	ctx := helpers.BuildContext(c)
	armed, err := h.broadcasts.Consume(ctx, actor)
	if err != nil {
		return true, h.fail(c, err)
	}
	if !armed {
		return false, nil
	}

	runCtx, cancel := h.detach(ctx)
	defer cancel()

	status, err := h.api.Send(c.Recipient(), h.tmpl.BroadcastStarting(), helpers.MDV2())
	if err != nil {
		logger.Warn(ctx, "broadcast", "status.send_failed", slog.Any("err", err))
	}
	progress := func(ctx context.Context, p broadcast.Progress) {
		if status == nil {
			return
		}
		if _, err := h.api.Edit(status, h.tmpl.BroadcastProgress(p), helpers.MDV2()); err != nil {
			logger.Debug(ctx, "broadcast", "progress.edit_failed", slog.Any("err", err))
		}
	}

	report, err := h.dispatcher.Run(runCtx, PayloadFrom(m), progress)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true, helpers.SendMDV2(c, h.tmpl.BroadcastInterrupted(report))
	case err != nil:
		return true, h.fail(c, err)
	}
	return true, helpers.SendMDV2(c, h.tmpl.BroadcastReport(report))
}
