package bootstrap

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/membergate/core/config"
	coredatabase "github.com/m3rciful/membergate/core/database"
)

func TestRunOrdersSteps(t *testing.T) {
	var steps []string
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Migrations: fstest.MapFS{},
		LoggerInit: func(*coreconfig.Config) error { steps = append(steps, "logger"); return nil },
		Migrate: func(coredatabase.Config, fs.FS) error {
			steps = append(steps, "migrate")
			return nil
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return &sqlx.DB{}, nil
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, res.DB)
	assert.Equal(t, []string{"logger", "migrate", "connect"}, steps)
}

func TestRunStopsOnMigrationFailure(t *testing.T) {
	connected := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Migrations: fstest.MapFS{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Migrate:    func(coredatabase.Config, fs.FS) error { return errors.New("dirty") },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	assert.ErrorContains(t, err, "migrations failed")
	assert.False(t, connected)
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)
}
