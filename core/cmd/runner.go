// Package cmd holds the process entrypoint shared by bot binaries: load
// config, bootstrap, then run the bot and its side services together.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/membergate/core/config"
	"github.com/m3rciful/membergate/core/logger"
	coretelegram "github.com/m3rciful/membergate/core/telegram"
)

// ConfigCarrier is a loaded application config that embeds the core one.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp builds the options RunTelegram serves.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// ServiceApp exposes long-lived services run next to the bot. Each must
// return once its context is cancelled.
type ServiceApp interface {
	Services() []func(ctx context.Context) error
}

// Closer releases application resources after everything stopped.
type Closer interface {
	Close() error
}

// Options configures Run.
type Options struct {
	// ConfigEnvVar names the variable holding the config path; CONFIG_PATH by default.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Context replaces context.Background as the parent of the signal context.
	Context context.Context
}

func (o Options) configPath() (string, error) {
	env := o.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if o.DefaultConfigPath != "" {
		return o.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

// Run serves the application until SIGINT, SIGTERM or the first failure of
// the bot or any service.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	path, err := opts.configPath()
	if err != nil {
		return err
	}
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}
	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer release(app, opts.ShutdownLogger)

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	announceLifecycle(&runOpts, time.Now())

	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runBot := opts.RunTelegram
	if runBot == nil {
		runBot = coretelegram.RunTelegram
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runBot(gctx, runOpts) })
	if svc, ok := app.(ServiceApp); ok {
		for _, fn := range svc.Services() {
			if fn != nil {
				g.Go(func() error { return fn(gctx) })
			}
		}
	}
	return g.Wait()
}

// announceLifecycle chains "ready" and "shutdown" logs onto the app hooks.
func announceLifecycle(ro *coretelegram.RunOptions, startedAt time.Time) {
	onStart, onStop := ro.OnStart, ro.OnStop
	ro.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready", slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))))
		return nil
	}
	ro.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
}

// release closes the app and then flushes the logger.
func release(app TelegramApp, shutdownLogger func() error) {
	if closer, ok := app.(Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn(logger.Background(), "app", "close_failed", slog.Any("err", err))
		}
	}
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	if err := shutdownLogger(); err != nil {
		log.Printf("logger shutdown error: %v", err)
	}
}
