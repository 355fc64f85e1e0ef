package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/membergate/core/telegram"
	"github.com/m3rciful/membergate/core/telegram/callbacks"
	"github.com/m3rciful/membergate/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry
// by their unique key. Handlers answer the callback query themselves; one
// that returns without responding gets an empty answer.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + handlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}
		defer func() { _ = c.Respond() }()

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			fallback := opts.NotFound
			if fallback == nil {
				fallback = reg.CallbackNotFound()
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return newSummary(name, start, extras...).run(c, func() error {
				if fallback != nil {
					return fallback(c)
				}
				return nil
			})
		}

		return newSummary(name, start, extras...).run(c, func() error {
			return cbHandler(c)
		})
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
