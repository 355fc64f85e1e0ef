package middleware

import (
	"log/slog"

	"github.com/m3rciful/membergate/core/logger"
	"github.com/m3rciful/membergate/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/membergate/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const receivedKey = "update_received"

// LoggerMiddleware prepares the update's logging context and, subject to
// debug sampling, logs one "update.received" line. Routers wrap handlers
// again, so the line is written only by the outermost call.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if seen, _ := c.Get(receivedKey).(bool); seen {
			return next(c)
		}
		c.Set(receivedKey, true)
		if logger.ShouldSampleDebug() {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receivedAttrs(c)...)
		}
		return next(c)
	}
}

func receivedAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	if cb := c.Callback(); cb != nil {
		key, payload := callbacks.ParseCallbackData(cb)
		return append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	}
	return append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
}
