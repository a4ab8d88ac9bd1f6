package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/citybot/core/logger"
	"github.com/m3rciful/citybot/migrations"
)

// RunMigrations applies all up migrations for driver. Migrations come from
// the embedded set unless cfg.MigrationsDir points at a directory on disk.
func RunMigrations(ctx context.Context, driver string, cfg Config) error {
	dbURL, err := migrationURL(ctx, driver, cfg)
	if err != nil {
		return err
	}

	fsys, origin := migrationsFS(cfg)
	files := listMigrationFiles(fsys, driver)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "resolve",
		append(fileAttrs(files),
			slog.String("driver", driver),
			slog.String("path", origin+"/"+driver),
		)...)

	src, err := iofs.New(fsys, driver)
	if err != nil {
		return fmt.Errorf("open migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		migrationFailed(ctx, "db.migrate", err, 0)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.LogEvent(ctx, logger.MIG, slog.LevelWarn, "db.migrate",
				slog.String("status", "fail"),
				slog.String("err", errors.Join(srcErr, dbErr).Error()),
			)
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		migrationFailed(ctx, "apply", err, logger.Took(start))
		return fmt.Errorf("migration execution failed: %w", err)
	}
	took := logger.Took(start)
	to, _, _ := m.Version()

	applied := selectApplied(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "apply", fileAttrs(applied)...)
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "summary",
		slog.String("driver", driver),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

// migrationURL returns the migrate database URL, waiting for PostgreSQL to accept connections first.
func migrationURL(ctx context.Context, driver string, cfg Config) (string, error) {
	switch driver {
	case DriverPostgres:
		if err := WaitForPostgres(ctx, cfg.postgresDSN(), 30*time.Second); err != nil {
			migrationFailed(ctx, "db.migrate", err, 0)
			return "", fmt.Errorf("database not ready: %w", err)
		}
		return cfg.postgresURL(), nil
	case DriverSQLite:
		return cfg.sqliteURL(), nil
	}
	return "", fmt.Errorf("migrate: unsupported driver %q", driver)
}

func migrationFailed(ctx context.Context, event string, err error, took time.Duration) {
	attrs := []slog.Attr{
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	}
	if took > 0 {
		attrs = append(attrs, slog.Duration("duration", took))
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelError, event, attrs...)
}

func fileAttrs(files []string) []slog.Attr {
	attrs := []slog.Attr{slog.Int("files_total", len(files))}
	preview, truncated := logger.SummarizeStrings(files, 6)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

func migrationsFS(cfg Config) (fs.FS, string) {
	if dir := strings.TrimSpace(cfg.MigrationsDir); dir != "" {
		return os.DirFS(dir), dir
	}
	return migrations.FS, "embedded"
}

func listMigrationFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
