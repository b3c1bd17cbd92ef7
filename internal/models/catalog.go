package models

import "time"

// Program is the top-level unit that attachments and timeline events are
// scoped to.
type Program struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	IsArchived  bool      `json:"is_archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Activity belongs to exactly one program.
type Activity struct {
	ID         string    `json:"id"`
	ProgramID  string    `json:"program_id"`
	Title      string    `json:"title"`
	Status     string    `json:"status,omitempty"`
	Owner      string    `json:"owner,omitempty"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentationEntry is a note written against an activity. ProgramID is
// copied from the activity at creation.
type DocumentationEntry struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	ProgramID  string    `json:"program_id"`
	Content    string    `json:"content"`
	Author     string    `json:"author,omitempty"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ScheduleEvent is a calendar entry for a program.
type ScheduleEvent struct {
	ID          string    `json:"id"`
	ProgramID   string    `json:"program_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	IsArchived  bool      `json:"is_archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
