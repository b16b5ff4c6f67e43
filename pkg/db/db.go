// Package db opens the SQLite database shared by every repository.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fadedpez/clubwheel/pkg/db/migrations"
	_ "github.com/mattn/go-sqlite3"
)

// TimeFormat is the storage layout for timestamps. Fixed width so text comparison orders correctly.
const TimeFormat = "2006-01-02 15:04:05.000000000"

// Open opens (creating if needed) the database at path and applies pending migrations
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// SQLite serialises writers anyway; one connection keeps transactions from tripping over each other
	conn.SetMaxOpenConns(1)

	if _, err := migrations.NewMigrator(conn, migrations.Embedded()).MigrateUp(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error applying migrations: %w", err)
	}

	return conn, nil
}

// FormatTime renders t in the storage layout
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// FormatTimePtr renders an optional timestamp, nil stays NULL
func FormatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}

var timeFormats = []string{
	TimeFormat,
	"2006-01-02 15:04:05",       // SQLite CURRENT_TIMESTAMP
	"2006-01-02T15:04:05Z",      // ISO 8601
	"2006-01-02T15:04:05-07:00", // ISO 8601 with timezone
	time.RFC3339Nano,
}

// ParseTime parses a stored timestamp, accepting the layouts SQLite may hand back
func ParseTime(value string) (time.Time, error) {
	var parseErr error
	for _, format := range timeFormats {
		t, err := time.Parse(format, value)
		if err == nil {
			return t.UTC(), nil
		}
		parseErr = err
	}
	return time.Time{}, fmt.Errorf("error parsing timestamp '%s': %w", value, parseErr)
}

// ParseNullTime parses an optional timestamp column
func ParseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := ParseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NullString maps "" to NULL
func NullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// NullInt64 maps a nil pointer to NULL
func NullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// NullFloat64 maps a nil pointer to NULL
func NullFloat64(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// Int64Ptr converts a scanned nullable integer back to a pointer
func Int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// Float64Ptr converts a scanned nullable float back to a pointer
func Float64Ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// BoolInt stores booleans as 0/1
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
