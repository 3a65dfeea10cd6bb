package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	coreconfig "github.com/m3rciful/menubot/core/config"
	"github.com/m3rciful/menubot/core/logger"
)

// Direction selects which way RunMigrations moves the schema.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// RunMigrations applies all up migrations from the configured migrations directory.
func RunMigrations(cfg coreconfig.DatabaseConfig) error {
	return Migrate(context.Background(), cfg, Up)
}

// Migrate moves the schema in the requested direction and logs a summary.
func Migrate(ctx context.Context, cfg coreconfig.DatabaseConfig, dir Direction) error {
	if err := WaitForPostgres(ctx, DSN(cfg), 30*time.Second); err != nil {
		logger.MIG.Error("db not ready",
			slog.String("event", "db.migrate"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("database not ready: %w", err)
	}

	migrationsPath, err := resolveDir(cfg.MigrationsDir)
	if err != nil {
		return err
	}
	files := listMigrationFiles(migrationsPath)
	preview, truncated := logger.SummarizeStrings(files, 6)
	args := []any{
		slog.String("event", "resolve"),
		slog.String("path", migrationsPath),
		slog.Int("files_total", len(files)),
	}
	if preview != "" {
		args = append(args, slog.String("files_preview", preview))
	}
	if truncated {
		args = append(args, slog.Bool("files_truncated", true))
	}
	logger.MIG.Debug("migrations resolved", args...)

	m, err := migrate.New("file://"+migrationsPath, URL(cfg))
	if err != nil {
		logger.MIG.Error("init failed",
			slog.String("event", "db.migrate"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	fromVer, _, _ := m.Version()

	start := time.Now()
	var runErr error
	switch dir {
	case Down:
		runErr = m.Down()
	default:
		runErr = m.Up()
	}
	took := time.Since(start)

	switch {
	case runErr == nil:
	case errors.Is(runErr, migrate.ErrNoChange):
		logger.MIG.Info("migrations summary",
			slog.String("event", "summary"),
			slog.String("direction", string(dir)),
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("files", 0),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return nil
	default:
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.String("direction", string(dir)),
			slog.String("err", runErr.Error()),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("migration execution failed: %w", runErr)
	}

	toVer, _, _ := m.Version()
	applied := countApplied(files, uint64(fromVer), uint64(toVer))

	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.String("direction", string(dir)),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", applied),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

func resolveDir(dir string) (string, error) {
	if dir == "" {
		dir = "migrations"
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		logger.MIG.Error("cwd lookup failed",
			slog.String("event", "db.migrate"),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(cwd, dir), nil
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
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

// countApplied counts files between two versions, in either direction.
func countApplied(files []string, from, to uint64) int {
	if from > to {
		from, to = to, from
	}
	c := 0
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			c++
		}
	}
	return c
}
