// Package migrations applies the embedded per-dialect SQL migrations.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite3/*.sql
var embedded embed.FS

// Dialect names match the STORAGE_DRIVER values and the embedded directories.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// Status describes one known migration.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

type Migrator struct {
	provider *goose.Provider
	logger   *slog.Logger
}

// New builds a migrator over the embedded migrations of dialect.
func New(db *sql.DB, dialect string, logger *slog.Logger) (*Migrator, error) {
	var gooseDialect goose.Dialect
	switch dialect {
	case DialectPostgres:
		gooseDialect = goose.DialectPostgres
	case DialectSQLite:
		gooseDialect = goose.DialectSQLite3
	default:
		return nil, errors.Errorf("unsupported migration dialect %q", dialect)
	}

	fsys, err := fs.Sub(embedded, dialect)
	if err != nil {
		return nil, errors.Wrap(err, "open embedded migrations")
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return nil, errors.Wrap(err, "goose.NewProvider")
	}

	return &Migrator{
		provider: provider,
		logger:   logger.With(slog.String("component", "migrations")),
	}, nil
}

// Latest applies every pending migration and returns how many ran.
func (m *Migrator) Latest(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return len(results), errors.Wrap(err, "apply migrations")
	}

	for _, r := range results {
		m.logger.Info("Applied migration",
			slog.Int64("version", r.Source.Version),
			slog.String("path", r.Source.Path),
			slog.Duration("duration", r.Duration))
	}
	if len(results) == 0 {
		m.logger.Info("Database schema is up to date")
	}
	return len(results), nil
}

// Rollback reverts the most recently applied migration. It reports false
// when nothing is applied.
func (m *Migrator) Rollback(ctx context.Context) (bool, error) {
	version, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return false, errors.Wrap(err, "get schema version")
	}
	if version == 0 {
		m.logger.Info("Nothing to roll back")
		return false, nil
	}

	result, err := m.provider.Down(ctx)
	if err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			return false, nil
		}
		return false, errors.Wrap(err, "roll back migration")
	}

	m.logger.Info("Rolled back migration",
		slog.Int64("version", result.Source.Version),
		slog.String("path", result.Source.Path))
	return true, nil
}

// List reports applied and pending migrations in version order.
func (m *Migrator) List(ctx context.Context) ([]Status, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "migration status")
	}

	result := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		result = append(result, Status{
			Version:   s.Source.Version,
			Path:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return result, nil
}

// Make writes a new timestamped SQL migration into dir.
func Make(dir, name string) error {
	if name == "" {
		return errors.New("migration name is required")
	}
	if err := goose.Create(nil, dir, name, "sql"); err != nil {
		return fmt.Errorf("create migration %s: %w", name, err)
	}
	return nil
}
