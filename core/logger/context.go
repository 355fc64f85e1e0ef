package logger

import (
	"context"
	"log/slog"
)

type (
	scopeKey  struct{}
	loggerKey struct{}
)

// scope carries the correlation data of one Telegram update.
type scope struct {
	rid      string
	updateID int
	userID   int64
	chatID   int64
	handler  string
}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, edit func(*scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scopeFrom(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// fill copies scope values into e unless a record attribute already set them.
func (s scope) fill(e *entry) {
	e.setDefault("rid", s.rid)
	if s.updateID != 0 {
		e.setDefault("update_id", int64(s.updateID))
	}
	if s.userID != 0 {
		e.setDefault("user_id", s.userID)
	}
	if s.chatID != 0 {
		e.setDefault("chat_id", s.chatID)
	}
	e.setDefault("handler", s.handler)
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withScope(ctx, func(s *scope) { s.rid = rid })
}

// RIDFrom returns the correlation id stored by WithRID.
func RIDFrom(ctx context.Context) string { return scopeFrom(ctx).rid }

// WithUpdateMeta attaches update, user and chat identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withScope(ctx, func(s *scope) {
		s.updateID = updateID
		s.userID = userID
		s.chatID = chatID
	})
}

// WithHandler names the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" && ctx != nil {
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.handler = handler })
}

// UpdateIDFrom returns the update id stored by WithUpdateMeta.
func UpdateIDFrom(ctx context.Context) int { return scopeFrom(ctx).updateID }

// UserIDFrom returns the user id stored by WithUpdateMeta.
func UserIDFrom(ctx context.Context) int64 { return scopeFrom(ctx).userID }

// ChatIDFrom returns the chat id stored by WithUpdateMeta.
func ChatIDFrom(ctx context.Context) int64 { return scopeFrom(ctx).chatID }

// WithLogger stores log in ctx; nil leaves ctx untouched.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext returns the logger stored by WithLogger, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L
}
