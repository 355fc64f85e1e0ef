package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	coreconfig "github.com/m3rciful/membergate/core/config"
	coretelegram "github.com/m3rciful/membergate/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type fakeApp struct {
	services []func(context.Context) error
	closed   bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{Config: &coreconfig.Config{}}, nil
}

func (a *fakeApp) Services() []func(context.Context) error { return a.services }

func (a *fakeApp) Close() error {
	a.closed = true
	return nil
}

func baseOptions(app *fakeApp) Options {
	return Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
	}
}

func TestRunStopsServicesWhenBotExits(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	app := &fakeApp{}
	stopped := make(chan struct{})
	app.services = []func(context.Context) error{
		func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		},
	}
	opts := baseOptions(app)
	botErr := errors.New("bot failed")
	opts.RunTelegram = func(ctx context.Context, ro coretelegram.RunOptions) error {
		if assert.NotNil(t, ro.OnStart) {
			assert.NoError(t, ro.OnStart(ctx, coretelegram.Runtime{}))
		}
		return botErr
	}

	err := Run(opts)
	assert.ErrorIs(t, err, botErr)
	<-stopped
	assert.True(t, app.closed)
}

func TestRunServiceFailureCancelsBot(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	app := &fakeApp{}
	listenErr := errors.New("address already in use")
	app.services = []func(context.Context) error{
		func(context.Context) error { return listenErr },
	}
	opts := baseOptions(app)
	opts.RunTelegram = func(ctx context.Context, _ coretelegram.RunOptions) error {
		<-ctx.Done()
		return nil
	}
	assert.ErrorIs(t, Run(opts), listenErr)
}

func TestRunValidatesOptions(t *testing.T) {
	assert.Error(t, Run(Options{}))
	t.Setenv("CONFIG_PATH", "")
	opts := baseOptions(&fakeApp{})
	opts.DefaultConfigPath = ""
	assert.Error(t, Run(opts))
}
