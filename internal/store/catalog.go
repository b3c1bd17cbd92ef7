package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"eduops/internal/models"
)

const (
	programColumns       = "id, name, description, owner, is_archived, created_at, updated_at"
	activityColumns      = "id, program_id, title, status, owner, is_archived, created_at, updated_at"
	documentationColumns = "id, activity_id, program_id, content, author, is_archived, created_at, updated_at"
	scheduleEventColumns = "id, program_id, title, description, location, starts_at, ends_at, is_archived, created_at, updated_at"
)

func (s *Store) rowExists(ctx context.Context, table, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) newID(ctx context.Context, prefix, table string) (string, error) {
	return GenerateID(prefix, func(id string) (bool, error) {
		return s.rowExists(ctx, table, id)
	})
}

func stampTimes(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func (s *Store) archiveRow(ctx context.Context, table, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+table+" SET is_archived = 1, updated_at = ? WHERE id = ?", dbFormatTime(at), id)
	if err != nil {
		return err
	}
	return expectAffected(res, table, id)
}

func expectAffected(res sql.Result, table, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, table, id)
	}
	return nil
}

// CreateProgram inserts program, assigning an id when empty.
func (s *Store) CreateProgram(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		id, err := s.newID(ctx, ProgramIDPrefix, "programs")
		if err != nil {
			return err
		}
		program.ID = id
	}
	stampTimes(&program.CreatedAt, &program.UpdatedAt)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO programs ("+programColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		program.ID, program.Name, nullIfEmpty(program.Description), nullIfEmpty(program.Owner),
		boolInt(program.IsArchived), dbFormatTime(program.CreatedAt), dbFormatTime(program.UpdatedAt),
	)
	return err
}

// GetProgram returns a program or nil if absent.
func (s *Store) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	return scanProgram(s.db.QueryRowContext(ctx, "SELECT "+programColumns+" FROM programs WHERE id = ?", id))
}

// UpdateProgram overwrites mutable program fields.
func (s *Store) UpdateProgram(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE programs SET name = ?, description = ?, owner = ?, updated_at = ? WHERE id = ?",
		program.Name, nullIfEmpty(program.Description), nullIfEmpty(program.Owner), dbFormatTime(program.UpdatedAt), program.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, "programs", program.ID)
}

// ArchiveProgram soft-deletes a program.
func (s *Store) ArchiveProgram(ctx context.Context, id string, at time.Time) error {
	return s.archiveRow(ctx, "programs", id, at)
}

// ListPrograms returns non-archived programs by name.
func (s *Store) ListPrograms(ctx context.Context) ([]models.Program, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+programColumns+" FROM programs WHERE is_archived = 0 ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	programs := []models.Program{}
	for rows.Next() {
		program, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		if program != nil {
			programs = append(programs, *program)
		}
	}
	return programs, rows.Err()
}

// CreateActivity inserts activity, assigning an id when empty.
func (s *Store) CreateActivity(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		id, err := s.newID(ctx, ActivityIDPrefix, "activities")
		if err != nil {
			return err
		}
		activity.ID = id
	}
	stampTimes(&activity.CreatedAt, &activity.UpdatedAt)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO activities ("+activityColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		activity.ID, activity.ProgramID, activity.Title, nullIfEmpty(activity.Status), nullIfEmpty(activity.Owner),
		boolInt(activity.IsArchived), dbFormatTime(activity.CreatedAt), dbFormatTime(activity.UpdatedAt),
	)
	return err
}

// GetActivity returns an activity or nil if absent.
func (s *Store) GetActivity(ctx context.Context, id string) (*models.Activity, error) {
	return scanActivity(s.db.QueryRowContext(ctx, "SELECT "+activityColumns+" FROM activities WHERE id = ?", id))
}

// UpdateActivity overwrites mutable activity fields. The owning program never
// changes.
func (s *Store) UpdateActivity(ctx context.Context, activity *models.Activity) error {
	activity.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE activities SET title = ?, status = ?, owner = ?, updated_at = ? WHERE id = ?",
		activity.Title, nullIfEmpty(activity.Status), nullIfEmpty(activity.Owner), dbFormatTime(activity.UpdatedAt), activity.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, "activities", activity.ID)
}

// ArchiveActivity soft-deletes an activity.
func (s *Store) ArchiveActivity(ctx context.Context, id string, at time.Time) error {
	return s.archiveRow(ctx, "activities", id, at)
}

// ListActivities returns non-archived activities of a program.
func (s *Store) ListActivities(ctx context.Context, programID string) ([]models.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+activityColumns+" FROM activities WHERE program_id = ? AND is_archived = 0 ORDER BY created_at ASC, id ASC", programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := []models.Activity{}
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		if activity != nil {
			activities = append(activities, *activity)
		}
	}
	return activities, rows.Err()
}

// CreateDocumentationEntry inserts entry, assigning an id when empty.
func (s *Store) CreateDocumentationEntry(ctx context.Context, entry *models.DocumentationEntry) error {
	if entry.ID == "" {
		id, err := s.newID(ctx, DocumentationIDPrefix, "documentation_entries")
		if err != nil {
			return err
		}
		entry.ID = id
	}
	stampTimes(&entry.CreatedAt, &entry.UpdatedAt)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO documentation_entries ("+documentationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		entry.ID, entry.ActivityID, entry.ProgramID, entry.Content, nullIfEmpty(entry.Author),
		boolInt(entry.IsArchived), dbFormatTime(entry.CreatedAt), dbFormatTime(entry.UpdatedAt),
	)
	return err
}

// GetDocumentationEntry returns an entry or nil if absent.
func (s *Store) GetDocumentationEntry(ctx context.Context, id string) (*models.DocumentationEntry, error) {
	return scanDocumentationEntry(s.db.QueryRowContext(ctx,
		"SELECT "+documentationColumns+" FROM documentation_entries WHERE id = ?", id))
}

// UpdateDocumentationEntry overwrites the entry content.
func (s *Store) UpdateDocumentationEntry(ctx context.Context, entry *models.DocumentationEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE documentation_entries SET content = ?, author = ?, updated_at = ? WHERE id = ?",
		entry.Content, nullIfEmpty(entry.Author), dbFormatTime(entry.UpdatedAt), entry.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, "documentation_entries", entry.ID)
}

// ArchiveDocumentationEntry soft-deletes an entry.
func (s *Store) ArchiveDocumentationEntry(ctx context.Context, id string, at time.Time) error {
	return s.archiveRow(ctx, "documentation_entries", id, at)
}

// ListDocumentationEntries returns non-archived entries of an activity.
func (s *Store) ListDocumentationEntries(ctx context.Context, activityID string) ([]models.DocumentationEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentationColumns+" FROM documentation_entries WHERE activity_id = ? AND is_archived = 0 ORDER BY created_at ASC, id ASC", activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.DocumentationEntry{}
	for rows.Next() {
		entry, err := scanDocumentationEntry(rows)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, rows.Err()
}

// CreateScheduleEvent inserts event, assigning an id when empty.
func (s *Store) CreateScheduleEvent(ctx context.Context, event *models.ScheduleEvent) error {
	if event.ID == "" {
		id, err := s.newID(ctx, ScheduleEventIDPrefix, "schedule_events")
		if err != nil {
			return err
		}
		event.ID = id
	}
	stampTimes(&event.CreatedAt, &event.UpdatedAt)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO schedule_events ("+scheduleEventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		event.ID, event.ProgramID, event.Title, nullIfEmpty(event.Description), nullIfEmpty(event.Location),
		dbFormatTime(event.StartsAt), dbFormatTime(event.EndsAt), boolInt(event.IsArchived),
		dbFormatTime(event.CreatedAt), dbFormatTime(event.UpdatedAt),
	)
	return err
}

// GetScheduleEvent returns an event or nil if absent.
func (s *Store) GetScheduleEvent(ctx context.Context, id string) (*models.ScheduleEvent, error) {
	return scanScheduleEvent(s.db.QueryRowContext(ctx,
		"SELECT "+scheduleEventColumns+" FROM schedule_events WHERE id = ?", id))
}

// UpdateScheduleEvent overwrites mutable event fields.
func (s *Store) UpdateScheduleEvent(ctx context.Context, event *models.ScheduleEvent) error {
	event.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedule_events
		SET title = ?, description = ?, location = ?, starts_at = ?, ends_at = ?, updated_at = ?
		WHERE id = ?`,
		event.Title, nullIfEmpty(event.Description), nullIfEmpty(event.Location),
		dbFormatTime(event.StartsAt), dbFormatTime(event.EndsAt), dbFormatTime(event.UpdatedAt), event.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, "schedule_events", event.ID)
}

// ArchiveScheduleEvent soft-deletes an event.
func (s *Store) ArchiveScheduleEvent(ctx context.Context, id string, at time.Time) error {
	return s.archiveRow(ctx, "schedule_events", id, at)
}

// ListUpcomingScheduleEvents returns non-archived events starting within
// [from, to], earliest first.
func (s *Store) ListUpcomingScheduleEvents(ctx context.Context, from, to time.Time) ([]models.ScheduleEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+scheduleEventColumns+` FROM schedule_events
		WHERE is_archived = 0 AND starts_at >= ? AND starts_at <= ?
		ORDER BY starts_at ASC, id ASC`,
		dbFormatTime(from), dbFormatTime(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.ScheduleEvent{}
	for rows.Next() {
		event, err := scanScheduleEvent(rows)
		if err != nil {
			return nil, err
		}
		if event != nil {
			events = append(events, *event)
		}
	}
	return events, rows.Err()
}

func scanProgram(scanner rowScanner) (*models.Program, error) {
	var program models.Program
	var description, owner sql.NullString
	var archived int
	var createdAt, updatedAt string
	err := scanner.Scan(&program.ID, &program.Name, &description, &owner, &archived, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	program.Description = description.String
	program.Owner = owner.String
	program.IsArchived = archived != 0
	if program.CreatedAt, err = dbParseTime(createdAt); err != nil {
		return nil, err
	}
	if program.UpdatedAt, err = dbParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &program, nil
}

func scanActivity(scanner rowScanner) (*models.Activity, error) {
	var activity models.Activity
	var status, owner sql.NullString
	var archived int
	var createdAt, updatedAt string
	err := scanner.Scan(&activity.ID, &activity.ProgramID, &activity.Title, &status, &owner, &archived, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	activity.Status = status.String
	activity.Owner = owner.String
	activity.IsArchived = archived != 0
	if activity.CreatedAt, err = dbParseTime(createdAt); err != nil {
		return nil, err
	}
	if activity.UpdatedAt, err = dbParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &activity, nil
}

func scanDocumentationEntry(scanner rowScanner) (*models.DocumentationEntry, error) {
	var entry models.DocumentationEntry
	var author sql.NullString
	var archived int
	var createdAt, updatedAt string
	err := scanner.Scan(&entry.ID, &entry.ActivityID, &entry.ProgramID, &entry.Content, &author, &archived, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	entry.Author = author.String
	entry.IsArchived = archived != 0
	if entry.CreatedAt, err = dbParseTime(createdAt); err != nil {
		return nil, err
	}
	if entry.UpdatedAt, err = dbParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &entry, nil
}

func scanScheduleEvent(scanner rowScanner) (*models.ScheduleEvent, error) {
	var event models.ScheduleEvent
	var description, location sql.NullString
	var archived int
	var startsAt, endsAt, createdAt, updatedAt string
	err := scanner.Scan(&event.ID, &event.ProgramID, &event.Title, &description, &location,
		&startsAt, &endsAt, &archived, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	event.Description = description.String
	event.Location = location.String
	event.IsArchived = archived != 0
	for _, field := range []struct {
		raw string
		dst *time.Time
	}{
		{startsAt, &event.StartsAt},
		{endsAt, &event.EndsAt},
		{createdAt, &event.CreatedAt},
		{updatedAt, &event.UpdatedAt},
	} {
		parsed, err := dbParseTime(field.raw)
		if err != nil {
			return nil, err
		}
		*field.dst = parsed
	}
	return &event, nil
}
