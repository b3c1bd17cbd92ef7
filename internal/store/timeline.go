package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"eduops/internal/models"
)

const timelineColumns = "id, occurred_at, program_id, event_type, related_id, actor, details"

// AppendTimelineEvent stores event and assigns its id. The id comes from the
// AUTOINCREMENT key so it is strictly increasing across all programs.
func (s *Store) AppendTimelineEvent(ctx context.Context, event *models.TimelineEvent) error {
	if event == nil {
		return fmt.Errorf("timeline event is required")
	}
	if strings.TrimSpace(event.ProgramID) == "" {
		return fmt.Errorf("program id is required")
	}
	if _, err := models.ParseEventType(string(event.EventType)); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO timeline_events (occurred_at, program_id, event_type, related_id, actor, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		dbFormatTime(event.Timestamp),
		event.ProgramID,
		string(event.EventType),
		nullIfEmpty(event.RelatedID),
		nullIfEmpty(event.ActorPrincipal),
		nullIfEmpty(event.Details),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

// ListTimelineByProgram returns events for programID ordered by timestamp then
// id. A positive limit keeps only the most recent limit events.
func (s *Store) ListTimelineByProgram(ctx context.Context, programID string, limit int) ([]models.TimelineEvent, error) {
	query := `SELECT ` + timelineColumns + ` FROM timeline_events WHERE program_id = ? ORDER BY occurred_at ASC, id ASC`
	args := []any{programID}
	if limit > 0 {
		query = `SELECT ` + timelineColumns + ` FROM (
			SELECT ` + timelineColumns + ` FROM timeline_events WHERE program_id = ?
			ORDER BY occurred_at DESC, id DESC LIMIT ?
		) ORDER BY occurred_at ASC, id ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.TimelineEvent{}
	for rows.Next() {
		event, err := scanTimelineEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanTimelineEvent(scanner rowScanner) (models.TimelineEvent, error) {
	var event models.TimelineEvent
	var occurredAt, eventType string
	var relatedID, actor, details sql.NullString

	if err := scanner.Scan(&event.ID, &occurredAt, &event.ProgramID, &eventType, &relatedID, &actor, &details); err != nil {
		return event, err
	}
	parsed, err := dbParseTime(occurredAt)
	if err != nil {
		return event, err
	}
	event.Timestamp = parsed
	event.EventType = models.EventType(eventType)
	event.RelatedID = relatedID.String
	event.ActorPrincipal = actor.String
	event.Details = details.String
	return event, nil
}
