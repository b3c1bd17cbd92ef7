package store

import (
	"context"
	"time"

	"eduops/internal/models"
)

// AttachmentStore is the metadata persistence surface for the attachment
// registries.
type AttachmentStore interface {
	Attachments(kind models.AttachmentKind) (*Registry, error)
	AttachmentKindOf(ctx context.Context, id string) (models.AttachmentKind, bool, error)
	ReferencedAttachmentIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
}

// TimelineStore persists the per-program audit trail.
type TimelineStore interface {
	AppendTimelineEvent(ctx context.Context, event *models.TimelineEvent) error
	ListTimelineByProgram(ctx context.Context, programID string, limit int) ([]models.TimelineEvent, error)
}

// CatalogStore holds the parent entities attachments and timeline events
// refer to.
type CatalogStore interface {
	CreateProgram(ctx context.Context, program *models.Program) error
	GetProgram(ctx context.Context, id string) (*models.Program, error)
	UpdateProgram(ctx context.Context, program *models.Program) error
	ArchiveProgram(ctx context.Context, id string, at time.Time) error
	ListPrograms(ctx context.Context) ([]models.Program, error)

	CreateActivity(ctx context.Context, activity *models.Activity) error
	GetActivity(ctx context.Context, id string) (*models.Activity, error)
	UpdateActivity(ctx context.Context, activity *models.Activity) error
	ArchiveActivity(ctx context.Context, id string, at time.Time) error
	ListActivities(ctx context.Context, programID string) ([]models.Activity, error)

	CreateDocumentationEntry(ctx context.Context, entry *models.DocumentationEntry) error
	GetDocumentationEntry(ctx context.Context, id string) (*models.DocumentationEntry, error)
	UpdateDocumentationEntry(ctx context.Context, entry *models.DocumentationEntry) error
	ArchiveDocumentationEntry(ctx context.Context, id string, at time.Time) error
	ListDocumentationEntries(ctx context.Context, activityID string) ([]models.DocumentationEntry, error)

	CreateScheduleEvent(ctx context.Context, event *models.ScheduleEvent) error
	GetScheduleEvent(ctx context.Context, id string) (*models.ScheduleEvent, error)
	UpdateScheduleEvent(ctx context.Context, event *models.ScheduleEvent) error
	ArchiveScheduleEvent(ctx context.Context, id string, at time.Time) error
	ListUpcomingScheduleEvents(ctx context.Context, from, to time.Time) ([]models.ScheduleEvent, error)
}

var (
	_ AttachmentStore = (*Store)(nil)
	_ TimelineStore   = (*Store)(nil)
	_ CatalogStore    = (*Store)(nil)
)
