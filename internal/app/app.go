// Package app assembles the membership gate from configuration: storage,
// sessions, domain services, Telegram handlers and the ops endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/membergate/core/bootstrap"
	"github.com/m3rciful/membergate/core/buildinfo"
	corecmd "github.com/m3rciful/membergate/core/cmd"
	"github.com/m3rciful/membergate/core/logger"
	coretelegram "github.com/m3rciful/membergate/core/telegram"
	"github.com/m3rciful/membergate/core/telegram/router"
	"github.com/m3rciful/membergate/internal/bot"
	"github.com/m3rciful/membergate/internal/broadcast"
	"github.com/m3rciful/membergate/internal/captcha"
	"github.com/m3rciful/membergate/internal/config"
	"github.com/m3rciful/membergate/internal/member"
	"github.com/m3rciful/membergate/internal/onboarding"
	"github.com/m3rciful/membergate/internal/ops"
	"github.com/m3rciful/membergate/internal/review"
	"github.com/m3rciful/membergate/internal/session"
	"github.com/m3rciful/membergate/migrations"

	tele "gopkg.in/telebot.v4"
)

// App is the wired application.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	bot      *tele.Bot
	sessions session.Store
	members  *member.Store
	handlers *bot.Handlers
	registry *coretelegram.Registry
	closers  []func() error
}

// LoadConfig adapts config.Load to the shared runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	return config.Load(path)
}

// Bootstrap initialises logging, migrates and opens the database, builds the
// bot and wires everything together.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	b, err := coretelegram.NewBot(&cfg.Config)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	a, err := New(cfg, res.DB, b)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return a, nil
}

// New wires the application on an open database and bot.
func New(cfg *config.Config, db *sqlx.DB, b *tele.Bot) (*App, error) {
	a := &App{cfg: cfg, db: db, bot: b}
	a.closers = append(a.closers, db.Close)

	sessions, err := openSessions(cfg.Session)
	if err != nil {
		return nil, err
	}
	a.sessions = sessions
	if c, ok := sessions.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.members = member.NewStore(db, member.Options{Country: cfg.Members.Country})
	tmpl := cfg.Presentation.Templates()
	notifier := bot.NewNotifier(b, cfg.Telegram.AdminID, tmpl)

	gen, err := captcha.New(cfg.Captcha, sessions, nil)
	if err != nil {
		return nil, err
	}
	dispatcher, err := broadcast.NewDispatcher(cfg.Broadcast, a.members, bot.NewDeliverer(b, cfg.Presentation.SupportURL))
	if err != nil {
		return nil, err
	}

	a.handlers = bot.New(bot.Deps{
		API:          b,
		Presentation: cfg.Presentation,
		Onboarding:   onboarding.New(cfg.Onboarding, a.members, gen, notifier),
		Review:       review.New(cfg.Telegram.AdminID, a.members, sessions, notifier),
		Dispatcher:   dispatcher,
		Broadcasts:   broadcast.NewSession(sessions),
	})
	a.registry = coretelegram.NewRegistry()
	if err := a.handlers.Register(a.registry); err != nil {
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}
	return a, nil
}

func openSessions(cfg session.Config) (session.Store, error) {
	ttls := session.TTLs{
		captcha.Scope:         cfg.ChallengeTTL,
		broadcast.Scope:       cfg.AdminTTL,
		review.FieldEditScope: cfg.AdminTTL,
	}
	if cfg.Backend != session.BackendRedis {
		return session.NewMemory(ttls), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := session.OpenRedis(ctx, cfg, ttls)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// TelegramRunOptions builds routes and hooks for the shared runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: a.handlers.AccessDenied,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(a.handlers.Stages(), a.registry, a.handlers.MessageOptions())...)

	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    a.registry,
		Bot:         a.bot,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.handlers.Bind(ctx)
			logger.Info(ctx, "app", "started",
				slog.String("build", buildinfo.Current().String()),
				slog.String("session_backend", a.cfg.Session.Backend),
				slog.String("db_driver", a.cfg.Database.Driver),
			)
			return nil
		},
	}, nil
}

// Services returns the ops HTTP server when it is enabled.
func (a *App) Services() []func(ctx context.Context) error {
	if !a.cfg.Ops.Enabled() {
		return nil
	}
	srv := ops.NewServer(a.cfg.Ops.Listen, a.cfg.Ops.ShutdownTimeout, a.members)
	return []func(ctx context.Context) error{srv.Run}
}

// Close releases the session store and the database.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
