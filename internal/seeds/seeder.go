// Package seeds loads YAML fixtures into the database. Rows that collide
// with existing keys are skipped.
package seeds

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"wb-tariffs/internal/storage"
)

//go:embed fixtures/*.yaml
var embedded embed.FS

var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Fixture is the content of one seed file.
type Fixture struct {
	Table string           `yaml:"table"`
	Rows  []map[string]any `yaml:"rows"`
}

// Embedded returns the fixtures compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "fixtures")
	if err != nil {
		panic(err)
	}
	return sub
}

type Seeder struct {
	db     *sqlx.DB
	fsys   fs.FS
	logger *slog.Logger
}

func New(db *sqlx.DB, fsys fs.FS, logger *slog.Logger) *Seeder {
	if fsys == nil {
		fsys = Embedded()
	}
	return &Seeder{
		db:     db,
		fsys:   fsys,
		logger: logger.With(slog.String("component", "seeds")),
	}
}

// Run applies every *.yaml fixture in name order and returns the number of
// inserted rows.
func (s *Seeder) Run(ctx context.Context) (int64, error) {
	files, err := fs.Glob(s.fsys, "*.yaml")
	if err != nil {
		return 0, errors.Wrap(err, "list fixtures")
	}
	slices.Sort(files)

	var total int64
	for _, name := range files {
		fixture, err := s.load(name)
		if err != nil {
			return total, err
		}

		inserted, err := s.apply(ctx, fixture)
		if err != nil {
			return total, errors.Wrapf(err, "seed %s", name)
		}
		total += inserted

		s.logger.Info("Seed applied",
			slog.String("file", name),
			slog.String("table", fixture.Table),
			slog.Int("rows", len(fixture.Rows)),
			slog.Int64("inserted", inserted))
	}
	return total, nil
}

func (s *Seeder) load(name string) (*Fixture, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "read fixture %s", name)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, errors.Wrapf(err, "parse fixture %s", name)
	}
	if !identifierRe.MatchString(fixture.Table) {
		return nil, errors.Errorf("fixture %s: invalid table name %q", name, fixture.Table)
	}
	for _, row := range fixture.Rows {
		for column := range row {
			if !identifierRe.MatchString(column) {
				return nil, errors.Errorf("fixture %s: invalid column name %q", name, column)
			}
		}
	}
	return &fixture, nil
}

func (s *Seeder) apply(ctx context.Context, fixture *Fixture) (int64, error) {
	builder := storage.StatementBuilder(s.db.DriverName())

	var inserted int64
	for i, row := range fixture.Rows {
		if len(row) == 0 {
			continue
		}

		q, args, err := builder.
			Insert(fixture.Table).
			SetMap(row).
			Suffix("ON CONFLICT DO NOTHING").
			ToSql()
		if err != nil {
			return inserted, fmt.Errorf("build sql query for row %d: %w", i, err)
		}

		res, err := s.db.ExecContext(ctx, q, args...)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("result.RowsAffected: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

const stub = `table: %s
rows:
  - column: value
`

// Make writes a stub fixture named name into dir and returns its path.
func Make(dir, name string) (string, error) {
	name = strings.TrimSuffix(name, ".yaml")
	if name == "" || path.Base(name) != name {
		return "", errors.Errorf("invalid seed name %q", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create seeds dir")
	}

	file := filepath.Join(dir, name+".yaml")
	f, err := os.OpenFile(file, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "create seed file")
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, stub, name); err != nil {
		return "", errors.Wrap(err, "write seed file")
	}
	return file, nil
}
