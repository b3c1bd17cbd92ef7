package store

import (
	"cmp"
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// Migration is one schema step. Versions are applied in ascending order.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus is the schema version of a database against the binary.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "parent directory: programs, activities, documentation entries, schedule events",
		SQL: `
CREATE TABLE IF NOT EXISTS programs (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  owner TEXT,
  is_archived INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
  id TEXT PRIMARY KEY,
  program_id TEXT NOT NULL,
  title TEXT NOT NULL,
  status TEXT,
  owner TEXT,
  is_archived INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (program_id) REFERENCES programs(id)
);

CREATE TABLE IF NOT EXISTS documentation_entries (
  id TEXT PRIMARY KEY,
  activity_id TEXT NOT NULL,
  program_id TEXT NOT NULL,
  content TEXT NOT NULL,
  author TEXT,
  is_archived INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (activity_id) REFERENCES activities(id)
);

CREATE TABLE IF NOT EXISTS schedule_events (
  id TEXT PRIMARY KEY,
  program_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  location TEXT,
  starts_at TEXT NOT NULL,
  ends_at TEXT NOT NULL,
  is_archived INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (program_id) REFERENCES programs(id)
);

CREATE INDEX IF NOT EXISTS idx_activities_program ON activities(program_id);
CREATE INDEX IF NOT EXISTS idx_documentation_activity ON documentation_entries(activity_id);
CREATE INDEX IF NOT EXISTS idx_schedule_events_starts ON schedule_events(is_archived, starts_at);
`,
	},
	{
		Version:     2,
		Description: "attachment registries with a shared id ledger",
		SQL: `
CREATE TABLE IF NOT EXISTS attachment_ids (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS program_attachments (
  id TEXT PRIMARY KEY,
  program_id TEXT NOT NULL,
  filename TEXT NOT NULL,
  content_type TEXT NOT NULL,
  byte_size INTEGER NOT NULL,
  sha256 TEXT,
  is_image INTEGER NOT NULL DEFAULT 0,
  is_archived INTEGER NOT NULL DEFAULT 0,
  uploaded_at TEXT NOT NULL,
  uploaded_by TEXT,
  archived_at TEXT,
  FOREIGN KEY (id) REFERENCES attachment_ids(id)
);

CREATE TABLE IF NOT EXISTS activity_attachments (
  id TEXT PRIMARY KEY,
  activity_id TEXT NOT NULL,
  program_id TEXT NOT NULL,
  filename TEXT NOT NULL,
  content_type TEXT NOT NULL,
  byte_size INTEGER NOT NULL,
  sha256 TEXT,
  is_image INTEGER NOT NULL DEFAULT 0,
  is_archived INTEGER NOT NULL DEFAULT 0,
  uploaded_at TEXT NOT NULL,
  uploaded_by TEXT,
  archived_at TEXT,
  FOREIGN KEY (id) REFERENCES attachment_ids(id)
);

CREATE TABLE IF NOT EXISTS documentation_attachments (
  id TEXT PRIMARY KEY,
  documentation_id TEXT NOT NULL,
  program_id TEXT NOT NULL,
  filename TEXT NOT NULL,
  content_type TEXT NOT NULL,
  byte_size INTEGER NOT NULL,
  sha256 TEXT,
  is_image INTEGER NOT NULL DEFAULT 0,
  is_archived INTEGER NOT NULL DEFAULT 0,
  uploaded_at TEXT NOT NULL,
  uploaded_by TEXT,
  archived_at TEXT,
  FOREIGN KEY (id) REFERENCES attachment_ids(id)
);

CREATE INDEX IF NOT EXISTS idx_program_attachments_parent ON program_attachments(program_id, is_archived);
CREATE INDEX IF NOT EXISTS idx_activity_attachments_parent ON activity_attachments(activity_id, is_archived);
CREATE INDEX IF NOT EXISTS idx_documentation_attachments_parent ON documentation_attachments(documentation_id, is_archived);
`,
	},
	{
		Version:     3,
		Description: "append-only program timeline",
		SQL: `
CREATE TABLE IF NOT EXISTS timeline_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  occurred_at TEXT NOT NULL,
  program_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  related_id TEXT,
  actor TEXT,
  details TEXT
);

CREATE INDEX IF NOT EXISTS idx_timeline_program_order ON timeline_events(program_id, occurred_at, id);
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

// currentVersion returns the highest applied version, creating the ledger
// table on first use.
func currentVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(migrationsTableSQL); err != nil {
		return 0, fmt.Errorf("create migrations table: %w", err)
	}
	var version int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// pendingAfter returns the migrations newer than version, oldest first.
func pendingAfter(version int) []Migration {
	pending := slices.DeleteFunc(slices.Clone(migrations), func(m Migration) bool {
		return m.Version <= version
	})
	slices.SortFunc(pending, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return pending
}

func latestVersion() int {
	latest := 0
	for _, m := range migrations {
		latest = max(latest, m.Version)
	}
	return latest
}

// runMigrations applies every pending migration, each in its own transaction.
func runMigrations(db *sql.DB) error {
	current, err := currentVersion(db)
	if err != nil {
		return err
	}
	for _, m := range pendingAfter(current) {
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
	}
	appliedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, m.Version, appliedAt); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationPlan reports what runMigrations would do, without applying it.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	current, err := currentVersion(db)
	if err != nil {
		return nil, err
	}
	status := &MigrationStatus{CurrentVersion: current, AvailableVersion: latestVersion()}
	for _, m := range pendingAfter(current) {
		status.Pending = append(status.Pending, MigrationInfo{Version: m.Version, Description: m.Description})
	}
	return status, nil
}

// MigrationState reports the plan for the open store.
func (s *Store) MigrationState() (*MigrationStatus, error) {
	return MigrationPlan(s.db)
}
