package helpers

import (
	"context"

	"github.com/m3rciful/membergate/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	contextKey = "logger_ctx"
	// RIDKey holds the update correlation id in tele.Context.
	RIDKey = "rid"
)

// StoreContext keeps ctx on the update for later BuildContext calls.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(contextKey, ctx)
	}
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok
}

// RID returns the update correlation id, assigning one on first use.
func RID(c tele.Context) string {
	if rid, ok := c.Get(RIDKey).(string); ok && rid != "" {
		return rid
	}
	rid := logger.BuildRID(c.Update().ID, ChatID(c), SenderID(c))
	c.Set(RIDKey, rid)
	return rid
}

// BuildContext returns the logging context of the update: rid, update, user
// and chat ids and the "tg" component logger. It is built once per update.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}
	ctx := logger.WithRID(context.Background(), RID(c))
	ctx = logger.WithUpdateMeta(ctx, c.Update().ID, SenderID(c), ChatID(c))
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler names the handler in the update's logging context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}

// SenderID returns the id of the update's sender or 0.
func SenderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// ChatID returns the id of the update's chat or 0.
func ChatID(c tele.Context) int64 {
	if ch := c.Chat(); ch != nil {
		return ch.ID
	}
	return 0
}
