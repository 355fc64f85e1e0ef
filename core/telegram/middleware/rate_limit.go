package middleware

import (
	"log/slog"
	"sync"
	"time"

	coreconfig "github.com/m3rciful/membergate/core/config"
	"github.com/m3rciful/membergate/core/logger"
	tghelpers "github.com/m3rciful/membergate/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Skip exempts a user entirely, e.g. the admin sending broadcast content.
	Skip func(userID int64) bool
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	}
	return "other"
}

// limiter remembers when each user was last let through.
type limiter struct {
	interval time.Duration
	mu       sync.Mutex
	seen     map[int64]time.Time
	swept    time.Time
}

func (l *limiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.swept) > time.Minute {
		for id, at := range l.seen {
			if now.Sub(at) >= l.interval {
				delete(l.seen, id)
			}
		}
		l.swept = now
	}
	if at, ok := l.seen[userID]; ok && now.Sub(at) < l.interval {
		return false
	}
	l.seen[userID] = now
	return true
}

// RateLimitMiddleware drops updates that arrive from the same user within
// Interval of the last accepted one.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	lim := &limiter{interval: opts.Interval, seen: map[int64]time.Time{}}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			_, excluded := opts.Exclude[kind]
			if excluded || (opts.Skip != nil && opts.Skip(user.ID)) || lim.allow(user.ID, time.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit", slog.String("kind", kind))
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
