package api

import (
	"time"

	"eduops/internal/models"
)

type ProgramCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

type ProgramUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Owner       *string `json:"owner,omitempty"`
}

type ActivityCreateRequest struct {
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
	Owner  string `json:"owner,omitempty"`
}

type ActivityUpdateRequest struct {
	Title  *string `json:"title,omitempty"`
	Status *string `json:"status,omitempty"`
	Owner  *string `json:"owner,omitempty"`
}

type DocumentationCreateRequest struct {
	Content string `json:"content"`
	Author  string `json:"author,omitempty"`
}

type DocumentationUpdateRequest struct {
	Content *string `json:"content,omitempty"`
	Author  *string `json:"author,omitempty"`
}

type ScheduleEventCreateRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

type ScheduleEventUpdateRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// TimelineEventResponse adds the rendered sentence to a stored event.
type TimelineEventResponse struct {
	models.TimelineEvent
	Summary string `json:"summary"`
}

// UpcomingResponse lists schedule events inside a window.
type UpcomingResponse struct {
	From   time.Time              `json:"from"`
	To     time.Time              `json:"to"`
	Events []models.ScheduleEvent `json:"events"`
}
