package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/membergate/core/logger"
)

const connectTimeout = 5 * time.Second

// Connect opens the pool described by cfg and pings it once.
func Connect(cfg Config) (*sqlx.DB, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	attrs := []slog.Attr{
		slog.String("driver", cfg.Driver),
		slog.String("host", cfg.Host),
		slog.String("db", cfg.target()),
	}
	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.ConnString())
	attrs = append(attrs, slog.Duration("duration", time.Since(start)))
	if err != nil {
		logger.Error(ctx, "db", "db.connect", append(attrs, slog.Any("err", err))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	logger.Info(ctx, "db", "db.connect", append(attrs, slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

func (c Config) target() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return c.Name
}

// WaitForPostgres pings dsn every two seconds until it answers, timeout
// elapses or ctx ends.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(2 * time.Second)
	defer tick.Stop()
	for {
		db, err := sqlx.Open(DriverPostgres, dsn)
		if err == nil {
			err = db.PingContext(ctx)
			_ = db.Close()
			if err == nil {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-tick.C:
		}
	}
}
