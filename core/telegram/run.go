package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/membergate/core/config"
	"github.com/m3rciful/membergate/core/logger"
	tghelpers "github.com/m3rciful/membergate/core/telegram/helpers"
	tgsender "github.com/m3rciful/membergate/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds Handler to an endpoint accepted by tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describes the bot RunTelegram serves.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry
	// Bot is built from Config when nil.
	Bot *tele.Bot
	// Sender tunes the queue behind helpers.NotifyMDV2.
	Sender tgsender.Options

	Middlewares []Middleware
	Routes      []Route

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to the lifecycle hooks.
type Runtime struct {
	Bot      *tele.Bot
	Sender   *tgsender.Dispatcher
	Registry *Registry
}

// NewBot builds the bot described by cfg without starting it.
func NewBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, errors.New("telegram: nil config provided")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token: cfg.Telegram.Token,
		Poller: BuildPoller(PollerOptions{
			RunMode:                cfg.Telegram.RunMode,
			LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
			Webhook: WebhookOptions{
				Listen: cfg.Webhook.Listen,
				Port:   cfg.Webhook.Port,
				URL:    cfg.Webhook.URL,
			},
		}),
		Client:      BuildHTTPClient(),
		Synchronous: cfg.Telegram.Synchronous,
		OnError: func(err error, c tele.Context) {
			ctx := logger.Background()
			if c != nil {
				ctx = tghelpers.BuildContext(c)
			}
			logger.Error(ctx, "tg", "handler.unhandled_error",
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

// RunTelegram installs middleware and routes, publishes the command menu and
// serves updates until ctx is cancelled.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	rt := Runtime{Bot: opts.Bot, Registry: opts.Registry}
	if rt.Registry == nil {
		rt.Registry = NewRegistry()
	}
	if rt.Bot == nil {
		var err error
		if rt.Bot, err = NewBot(opts.Config); err != nil {
			return err
		}
	}

	rt.Sender = tgsender.NewDispatcher(opts.Sender)
	tghelpers.SetDispatcher(rt.Sender)
	defer func() {
		tghelpers.SetDispatcher(nil)
		rt.Sender.Close()
	}()

	prepareUpdates(ctx, rt.Bot, opts.Config)
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			rt.Bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			rt.Bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(rt.Bot, rt.Registry)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}
	err := serve(ctx, rt.Bot)
	if opts.OnStop != nil {
		if stopErr := opts.OnStop(context.WithoutCancel(ctx), rt); stopErr != nil {
			return stopErr
		}
	}
	return err
}

// prepareUpdates logs the update mode and, for long polling, removes a
// webhook left over from an earlier deployment.
func prepareUpdates(ctx context.Context, bot *tele.Bot, cfg *coreconfig.Config) {
	switch p := bot.Poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	case *tele.LongPoller:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", "polling"),
			slog.Duration("timeout", p.Timeout),
		)
		if !strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeLongpoll) {
			return
		}
		if err := bot.RemoveWebhook(false); err != nil {
			logger.Warn(ctx, "tg", "delete_webhook", slog.String("err", err.Error()))
			return
		}
		logger.Debug(ctx, "tg", "delete_webhook")
	}
}

// serve runs the poller until ctx ends or the bot stops on its own.
func serve(ctx context.Context, bot *tele.Bot) error {
	stopped := make(chan struct{})
	started := time.Now()
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-stopped
		logger.Info(context.WithoutCancel(ctx), "tg", "stopped", slog.Duration("uptime", logger.RoundMS(time.Since(started))))
		if err := ctx.Err(); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}
