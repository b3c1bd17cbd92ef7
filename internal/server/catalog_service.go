package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eduops/internal/api"
	"eduops/internal/models"
	"eduops/internal/store"
)

// CatalogService manages the parent entities attachments bind to and emits
// their timeline events.
type CatalogService struct {
	store    store.CatalogStore
	timeline *TimelineService
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(catalog store.CatalogStore, timeline *TimelineService) *CatalogService {
	return &CatalogService{store: catalog, timeline: timeline}
}

func (c *CatalogService) CreateProgram(ctx context.Context, req api.ProgramCreateRequest) (models.Program, error) {
	name, err := requireText("name", req.Name)
	if err != nil {
		return models.Program{}, err
	}
	program := &models.Program{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Owner:       strings.TrimSpace(req.Owner),
	}
	if err := c.store.CreateProgram(ctx, program); err != nil {
		return models.Program{}, err
	}
	c.timeline.Record(ctx, program.ID, models.EventProgramCreated, program.ID, program.Name)
	return *program, nil
}

func (c *CatalogService) GetProgram(ctx context.Context, id string) (models.Program, error) {
	program, err := c.store.GetProgram(ctx, id)
	if err != nil {
		return models.Program{}, err
	}
	if program == nil {
		return models.Program{}, notFoundCode(fmt.Errorf("program not found"), ErrCodeProgramNotFound)
	}
	return *program, nil
}

func (c *CatalogService) ListPrograms(ctx context.Context) ([]models.Program, error) {
	return c.store.ListPrograms(ctx)
}

func (c *CatalogService) UpdateProgram(ctx context.Context, id string, req api.ProgramUpdateRequest) (models.Program, error) {
	program, err := c.GetProgram(ctx, id)
	if err != nil {
		return models.Program{}, err
	}
	if req.Name != nil {
		if program.Name, err = requireText("name", *req.Name); err != nil {
			return models.Program{}, err
		}
	}
	if req.Description != nil {
		program.Description = strings.TrimSpace(*req.Description)
	}
	if req.Owner != nil {
		program.Owner = strings.TrimSpace(*req.Owner)
	}
	if err := c.store.UpdateProgram(ctx, &program); err != nil {
		return models.Program{}, c.mapNotFound(err, "program", ErrCodeProgramNotFound)
	}
	c.timeline.Record(ctx, program.ID, models.EventProgramUpdated, program.ID, "")
	return program, nil
}

func (c *CatalogService) ArchiveProgram(ctx context.Context, id string) error {
	if err := c.store.ArchiveProgram(ctx, id, time.Now().UTC()); err != nil {
		return c.mapNotFound(err, "program", ErrCodeProgramNotFound)
	}
	c.timeline.Record(ctx, id, models.EventProgramDeleted, id, "")
	return nil
}

func (c *CatalogService) CreateActivity(ctx context.Context, programID string, req api.ActivityCreateRequest) (models.Activity, error) {
	if _, err := c.liveProgram(ctx, programID); err != nil {
		return models.Activity{}, err
	}
	title, err := requireText("title", req.Title)
	if err != nil {
		return models.Activity{}, err
	}
	activity := &models.Activity{
		ProgramID: programID,
		Title:     title,
		Status:    strings.TrimSpace(req.Status),
		Owner:     strings.TrimSpace(req.Owner),
	}
	if err := c.store.CreateActivity(ctx, activity); err != nil {
		return models.Activity{}, err
	}
	c.timeline.Record(ctx, programID, models.EventActivityCreated, activity.ID, activity.Title)
	return *activity, nil
}

func (c *CatalogService) GetActivity(ctx context.Context, id string) (models.Activity, error) {
	activity, err := c.store.GetActivity(ctx, id)
	if err != nil {
		return models.Activity{}, err
	}
	if activity == nil {
		return models.Activity{}, notFoundCode(fmt.Errorf("activity not found"), ErrCodeParentNotFound)
	}
	return *activity, nil
}

func (c *CatalogService) ListActivities(ctx context.Context, programID string) ([]models.Activity, error) {
	if _, err := c.GetProgram(ctx, programID); err != nil {
		return nil, err
	}
	return c.store.ListActivities(ctx, programID)
}

func (c *CatalogService) UpdateActivity(ctx context.Context, id string, req api.ActivityUpdateRequest) (models.Activity, error) {
	activity, err := c.GetActivity(ctx, id)
	if err != nil {
		return models.Activity{}, err
	}
	if req.Title != nil {
		if activity.Title, err = requireText("title", *req.Title); err != nil {
			return models.Activity{}, err
		}
	}
	if req.Status != nil {
		activity.Status = strings.TrimSpace(*req.Status)
	}
	if req.Owner != nil {
		activity.Owner = strings.TrimSpace(*req.Owner)
	}
	if err := c.store.UpdateActivity(ctx, &activity); err != nil {
		return models.Activity{}, c.mapNotFound(err, "activity", ErrCodeParentNotFound)
	}
	c.timeline.Record(ctx, activity.ProgramID, models.EventActivityUpdated, activity.ID, "")
	return activity, nil
}

func (c *CatalogService) ArchiveActivity(ctx context.Context, id string) error {
	activity, err := c.GetActivity(ctx, id)
	if err != nil {
		return err
	}
	if err := c.store.ArchiveActivity(ctx, id, time.Now().UTC()); err != nil {
		return c.mapNotFound(err, "activity", ErrCodeParentNotFound)
	}
	c.timeline.Record(ctx, activity.ProgramID, models.EventActivityDeleted, id, activity.Title)
	return nil
}

func (c *CatalogService) CreateDocumentationEntry(ctx context.Context, activityID string, req api.DocumentationCreateRequest) (models.DocumentationEntry, error) {
	activity, err := c.GetActivity(ctx, activityID)
	if err != nil {
		return models.DocumentationEntry{}, err
	}
	if activity.IsArchived {
		return models.DocumentationEntry{}, notFoundCode(fmt.Errorf("activity not found"), ErrCodeParentNotFound)
	}
	content, err := requireText("content", req.Content)
	if err != nil {
		return models.DocumentationEntry{}, err
	}
	entry := &models.DocumentationEntry{
		ActivityID: activity.ID,
		ProgramID:  activity.ProgramID,
		Content:    content,
		Author:     firstNonEmpty(req.Author, actorFromContext(ctx)),
	}
	if err := c.store.CreateDocumentationEntry(ctx, entry); err != nil {
		return models.DocumentationEntry{}, err
	}
	c.timeline.Record(ctx, entry.ProgramID, models.EventDocumentationEntryCreated, entry.ID, "")
	return *entry, nil
}

func (c *CatalogService) GetDocumentationEntry(ctx context.Context, id string) (models.DocumentationEntry, error) {
	entry, err := c.store.GetDocumentationEntry(ctx, id)
	if err != nil {
		return models.DocumentationEntry{}, err
	}
	if entry == nil {
		return models.DocumentationEntry{}, notFoundCode(fmt.Errorf("documentation entry not found"), ErrCodeParentNotFound)
	}
	return *entry, nil
}

func (c *CatalogService) ListDocumentationEntries(ctx context.Context, activityID string) ([]models.DocumentationEntry, error) {
	if _, err := c.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	return c.store.ListDocumentationEntries(ctx, activityID)
}

func (c *CatalogService) UpdateDocumentationEntry(ctx context.Context, id string, req api.DocumentationUpdateRequest) (models.DocumentationEntry, error) {
	entry, err := c.GetDocumentationEntry(ctx, id)
	if err != nil {
		return models.DocumentationEntry{}, err
	}
	if req.Content != nil {
		if entry.Content, err = requireText("content", *req.Content); err != nil {
			return models.DocumentationEntry{}, err
		}
	}
	if req.Author != nil {
		entry.Author = strings.TrimSpace(*req.Author)
	}
	if err := c.store.UpdateDocumentationEntry(ctx, &entry); err != nil {
		return models.DocumentationEntry{}, c.mapNotFound(err, "documentation entry", ErrCodeParentNotFound)
	}
	c.timeline.Record(ctx, entry.ProgramID, models.EventDocumentationEntryUpdated, entry.ID, "")
	return entry, nil
}

func (c *CatalogService) ArchiveDocumentationEntry(ctx context.Context, id string) error {
	entry, err := c.GetDocumentationEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := c.store.ArchiveDocumentationEntry(ctx, id, time.Now().UTC()); err != nil {
		return c.mapNotFound(err, "documentation entry", ErrCodeParentNotFound)
	}
	c.timeline.Record(ctx, entry.ProgramID, models.EventDocumentationEntryDeleted, id, "")
	return nil
}

func (c *CatalogService) CreateScheduleEvent(ctx context.Context, programID string, req api.ScheduleEventCreateRequest) (models.ScheduleEvent, error) {
	if _, err := c.liveProgram(ctx, programID); err != nil {
		return models.ScheduleEvent{}, err
	}
	title, err := requireText("title", req.Title)
	if err != nil {
		return models.ScheduleEvent{}, err
	}
	if err := validateEventTimes(req.StartsAt, req.EndsAt); err != nil {
		return models.ScheduleEvent{}, err
	}
	event := &models.ScheduleEvent{
		ProgramID:   programID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      req.EndsAt.UTC(),
	}
	if err := c.store.CreateScheduleEvent(ctx, event); err != nil {
		return models.ScheduleEvent{}, err
	}
	c.timeline.Record(ctx, programID, models.EventScheduleEventCreated, event.ID, event.Title)
	return *event, nil
}

func (c *CatalogService) GetScheduleEvent(ctx context.Context, id string) (models.ScheduleEvent, error) {
	event, err := c.store.GetScheduleEvent(ctx, id)
	if err != nil {
		return models.ScheduleEvent{}, err
	}
	if event == nil {
		return models.ScheduleEvent{}, notFoundCode(fmt.Errorf("schedule event not found"), ErrCodeScheduleEventNotFound)
	}
	return *event, nil
}

func (c *CatalogService) UpdateScheduleEvent(ctx context.Context, id string, req api.ScheduleEventUpdateRequest) (models.ScheduleEvent, error) {
	event, err := c.GetScheduleEvent(ctx, id)
	if err != nil {
		return models.ScheduleEvent{}, err
	}
	if req.Title != nil {
		if event.Title, err = requireText("title", *req.Title); err != nil {
			return models.ScheduleEvent{}, err
		}
	}
	if req.Description != nil {
		event.Description = strings.TrimSpace(*req.Description)
	}
	if req.Location != nil {
		event.Location = strings.TrimSpace(*req.Location)
	}
	if req.StartsAt != nil {
		event.StartsAt = req.StartsAt.UTC()
	}
	if req.EndsAt != nil {
		event.EndsAt = req.EndsAt.UTC()
	}
	if err := validateEventTimes(event.StartsAt, event.EndsAt); err != nil {
		return models.ScheduleEvent{}, err
	}
	if err := c.store.UpdateScheduleEvent(ctx, &event); err != nil {
		return models.ScheduleEvent{}, c.mapNotFound(err, "schedule event", ErrCodeScheduleEventNotFound)
	}
	c.timeline.Record(ctx, event.ProgramID, models.EventScheduleEventUpdated, event.ID, "")
	return event, nil
}

func (c *CatalogService) ArchiveScheduleEvent(ctx context.Context, id string) error {
	event, err := c.GetScheduleEvent(ctx, id)
	if err != nil {
		return err
	}
	if err := c.store.ArchiveScheduleEvent(ctx, id, time.Now().UTC()); err != nil {
		return c.mapNotFound(err, "schedule event", ErrCodeScheduleEventNotFound)
	}
	c.timeline.Record(ctx, event.ProgramID, models.EventScheduleEventDeleted, id, event.Title)
	return nil
}

func (c *CatalogService) liveProgram(ctx context.Context, id string) (models.Program, error) {
	program, err := c.GetProgram(ctx, id)
	if err != nil {
		return models.Program{}, err
	}
	if program.IsArchived {
		return models.Program{}, notFoundCode(fmt.Errorf("program not found"), ErrCodeProgramNotFound)
	}
	return program, nil
}

func (c *CatalogService) mapNotFound(err error, what string, code int) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFoundCode(fmt.Errorf("%s not found", what), code)
	}
	return err
}

func validateEventTimes(startsAt, endsAt time.Time) error {
	if startsAt.IsZero() {
		return badRequestCode(fmt.Errorf("starts_at is required"), ErrCodeMissingRequired)
	}
	if !endsAt.IsZero() && endsAt.Before(startsAt) {
		return badRequest(fmt.Errorf("ends_at must not be before starts_at"))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
