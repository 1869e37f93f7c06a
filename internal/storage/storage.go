package storage

import (
	"reflect"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type storageImpl struct {
	db          *sqlx.DB
	placeholder sq.PlaceholderFormat
}

// New wraps db. The placeholder style follows the driver: $N for Postgres,
// ? for SQLite.
func New(db *sqlx.DB) *storageImpl {
	return &storageImpl{
		db:          db,
		placeholder: PlaceholderFor(db.DriverName()),
	}
}

// PlaceholderFor returns the bind style of a database/sql driver name.
func PlaceholderFor(driver string) sq.PlaceholderFormat {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return sq.Dollar
	default:
		return sq.Question
	}
}

// StatementBuilder returns a squirrel builder bound to the driver's placeholders.
func StatementBuilder(driver string) sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(PlaceholderFor(driver))
}

func (s *storageImpl) stmpBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(s.placeholder)
}

// Fields возвращает список всех полей структуры, которые есть в БД.
func fields(data any) string {
	var s string
	r := reflect.TypeOf(data)
	for i := 0; i < r.NumField(); i++ {
		tag := r.Field(i).Tag.Get("db")
		if tag != "" {
			s += tag + ","
		}
	}
	return s[:len(s)-1]
}
