package middleware

import (
	"log/slog"

	"github.com/m3rciful/membergate/core/logger"
	tghelpers "github.com/m3rciful/membergate/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream
// handlers. With AdminID unset every caller is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			userID := tghelpers.SenderID(c)
			if opts.AdminID == 0 || userID != opts.AdminID {
				logger.Warn(tghelpers.BuildContext(c), "tg", "access.denied",
					slog.Int64("user_id", userID),
					slog.String("cause", "admin_only"),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
