package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute

	maxOpenConnsEnvKey    = "EDUOPS_DB_MAX_OPEN_CONNS"
	maxIdleConnsEnvKey    = "EDUOPS_DB_MAX_IDLE_CONNS"
	connMaxLifetimeEnvKey = "EDUOPS_DB_CONN_MAX_LIFETIME"
)

var (
	// ErrNotFound is returned when a row does not exist in the addressed table.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when an attachment id is already used by any
	// registry partition.
	ErrDuplicateID = errors.New("duplicate id")
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database and bootstraps the schema.
func Open(path string) (*Store, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Info summarizes database contents for diagnostics.
type Info struct {
	SchemaVersion  int            `json:"schema_version"`
	Attachments    map[string]int `json:"attachments"`
	Archived       int            `json:"archived_attachments"`
	TimelineEvents int            `json:"timeline_events"`
	Programs       int            `json:"programs"`
}

// StoreInfo reports schema version and row counts.
func (s *Store) StoreInfo(ctx context.Context) (*Info, error) {
	version, err := currentVersion(s.db)
	if err != nil {
		return nil, err
	}
	info := &Info{SchemaVersion: version, Attachments: map[string]int{}}
	for kind, part := range partitions {
		var total, archived int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*), COALESCE(SUM(is_archived), 0) FROM "+part.table).Scan(&total, &archived)
		if err != nil {
			return nil, err
		}
		info.Attachments[string(kind)] = total
		info.Archived += archived
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM timeline_events").Scan(&info.TimelineEvents); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM programs WHERE is_archived = 0").Scan(&info.Programs); err != nil {
		return nil, err
	}
	return info, nil
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// Tune connection pool for local usage.
	db.SetMaxOpenConns(intFromEnv(maxOpenConnsEnvKey, maxOpenConns))
	db.SetMaxIdleConns(intFromEnv(maxIdleConnsEnvKey, maxIdleConns))
	db.SetConnMaxLifetime(durationFromEnv(connMaxLifetimeEnvKey, connMaxLifetime))

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}

func intFromEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// durationFromEnv accepts Go durations or bare seconds.
func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return fallback
		}
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// dbTimeLayout is fixed width so TEXT columns sort chronologically.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z"

func dbFormatTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func dbParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dbTimeLayout, value)
	if err != nil {
		return time.Parse(time.RFC3339Nano, value)
	}
	return parsed, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return dbFormatTime(*value)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func isUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}
