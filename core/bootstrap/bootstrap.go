// Package bootstrap prepares the infrastructure an application needs before
// it wires handlers: logging, schema and the database pool.
package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/membergate/core/config"
	coredatabase "github.com/m3rciful/membergate/core/database"
	"github.com/m3rciful/membergate/core/logger"
)

// Options selects what Run prepares. Nil hooks use the core implementations.
type Options struct {
	Config     *coreconfig.Config
	Database   coredatabase.Config
	Migrations fs.FS

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config, fs.FS) error
}

func (o *Options) fillDefaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
}

// Result carries what Run prepared.
type Result struct {
	DB *sqlx.DB
}

// Run starts the logger, migrates the schema and opens the pool, in that
// order: a fresh SQLite file gets its tables before the pool opens it.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.fillDefaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	if opts.Migrations != nil {
		if err := opts.Migrate(opts.Database, opts.Migrations); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}
	db, err := opts.Connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	return &Result{DB: db}, nil
}
