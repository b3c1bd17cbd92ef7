package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eduops/internal/models"
	"eduops/internal/store"
)

// DefaultUpcomingWindow is used when a query names no window.
const DefaultUpcomingWindow = 7 * 24 * time.Hour

// TimelineService records and queries the per-program audit trail.
type TimelineService struct {
	events  store.TimelineStore
	catalog store.CatalogStore
	window  time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewTimelineService constructs a TimelineService.
func NewTimelineService(events store.TimelineStore, catalog store.CatalogStore, window time.Duration, logger *slog.Logger) *TimelineService {
	if window <= 0 {
		window = DefaultUpcomingWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TimelineService{events: events, catalog: catalog, window: window, logger: logger, now: time.Now}
}

// Record appends an event. Failures are logged and never reach the caller;
// the mutation that triggered the event has already committed.
func (t *TimelineService) Record(ctx context.Context, programID string, eventType models.EventType, relatedID, details string) *models.TimelineEvent {
	if t == nil || t.events == nil {
		return nil
	}
	event := &models.TimelineEvent{
		ProgramID:      programID,
		EventType:      eventType,
		RelatedID:      relatedID,
		ActorPrincipal: actorFromContext(ctx),
		Details:        details,
		Timestamp:      t.now().UTC(),
	}
	if err := t.events.AppendTimelineEvent(ctx, event); err != nil {
		t.logger.Warn("timeline append failed",
			"program_id", programID,
			"event_type", eventType,
			"related_id", relatedID,
			"error", err,
		)
		return nil
	}
	return event
}

// QueryByProgram returns the program's events ordered by timestamp then id.
func (t *TimelineService) QueryByProgram(ctx context.Context, programID string, limit int) ([]models.TimelineEvent, error) {
	programID = strings.TrimSpace(programID)
	program, err := t.catalog.GetProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, notFoundCode(fmt.Errorf("program not found"), ErrCodeProgramNotFound)
	}
	return t.events.ListTimelineByProgram(ctx, programID, limit)
}

// QueryUpcoming returns schedule events starting within window from now. A
// non-positive window uses the configured default.
func (t *TimelineService) QueryUpcoming(ctx context.Context, window time.Duration) (from, to time.Time, events []models.ScheduleEvent, err error) {
	if window <= 0 {
		window = t.window
	}
	from = t.now().UTC()
	to = from.Add(window)
	events, err = t.catalog.ListUpcomingScheduleEvents(ctx, from, to)
	return from, to, events, err
}
