package database

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/membergate/core/logger"
)

const migrateComponent = "db.migrate"

// postgresReadyTimeout bounds how long RunMigrations waits for a starting
// Postgres container.
var postgresReadyTimeout = 30 * time.Second

// RunMigrations applies every pending up migration stored at the root of
// fsys, usually an embed.FS compiled into the binary.
func RunMigrations(cfg Config, fsys fs.FS) error {
	if err := cfg.Normalize(); err != nil {
		return err
	}
	ctx := logger.Background()
	if cfg.Driver == DriverPostgres {
		if err := WaitForPostgres(ctx, cfg.ConnString(), postgresReadyTimeout); err != nil {
			logger.Error(ctx, migrateComponent, "db.not_ready", slog.Any("err", err))
			return fmt.Errorf("database not ready: %w", err)
		}
	}

	files := upFiles(fsys)
	logger.Debug(ctx, migrateComponent, "resolve", fileAttrs(cfg.Driver, files)...)

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		logger.Error(ctx, migrateComponent, "init.failed", slog.Any("err", err))
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, migrateComponent, "close.failed", slog.Any("err", errors.Join(srcErr, dbErr)))
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, migrateComponent, "apply",
			slog.Any("err", err),
			slog.Duration("duration", time.Since(start)),
		)
		return fmt.Errorf("migration execution failed: %w", err)
	}
	to, _, _ := m.Version()

	applied := pending(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.Debug(ctx, migrateComponent, "apply", fileAttrs(cfg.Driver, applied)...)
	}
	logger.Info(ctx, migrateComponent, "summary",
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func fileAttrs(driver string, files []string) []slog.Attr {
	preview, cut := logger.SummarizeStrings(files, 6)
	attrs := []slog.Attr{
		slog.String("driver", driver),
		slog.Int("count", len(files)),
		slog.String("files_preview", preview),
	}
	if cut {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

// upFiles lists the *.up.sql files in fsys in version order.
func upFiles(fsys fs.FS) []string {
	names, _ := fs.Glob(fsys, "*.up.sql")
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(version(a), version(b)), strings.Compare(a, b))
	})
	return names
}

// version reads the numeric prefix of a migration file name.
func version(name string) uint64 {
	prefix, _, _ := strings.Cut(path.Base(name), "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// pending returns the files with versions in (from, to].
func pending(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := version(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
