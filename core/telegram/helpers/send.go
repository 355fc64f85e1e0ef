package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/membergate/core/logger"
	"github.com/m3rciful/membergate/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var outbox atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the queue NotifyMDV2 sends through; nil makes it
// send inline.
func SetDispatcher(d *sender.Dispatcher) {
	outbox.Store(d)
}

// Sender is the part of *tele.Bot needed to message arbitrary chats.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// MDV2 returns MarkdownV2 send options with link previews off and an
// optional keyboard.
func MDV2(markup ...*tele.ReplyMarkup) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, DisableWebPagePreview: true}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return opts
}

// SendMDV2 replies in the update's chat with MarkdownV2 text.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return c.Send(text, MDV2(markup...))
}

// EditOrSendMDV2 edits the callback's message, or sends a new one for
// plain messages.
func EditOrSendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return c.EditOrSend(text, MDV2(markup...))
}

// NotifyMDV2 queues a MarkdownV2 message to chatID. Delivery failures are
// logged by the queue; an error is returned only when the message could not
// be sent inline after the queue refused it.
func NotifyMDV2(ctx context.Context, bot Sender, chatID int64, text string, markup ...*tele.ReplyMarkup) error {
	opts := MDV2(markup...)
	send := func() error {
		_, err := bot.Send(tele.ChatID(chatID), text, opts)
		return err
	}
	q := outbox.Load()
	if q == nil {
		return send()
	}
	err := q.Enqueue(ctx, "send.notify", "sendMessage", send)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback", slog.Int64("target_id", chatID), slog.Any("err", err))
		return send()
	}
	return err
}
