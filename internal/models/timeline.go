package models

import (
	"fmt"
	"strings"
	"time"
)

// EventType is the closed set of mutations recorded on a program timeline.
type EventType string

const (
	EventProgramCreated            EventType = "ProgramCreated"
	EventProgramUpdated            EventType = "ProgramUpdated"
	EventProgramDeleted            EventType = "ProgramDeleted"
	EventActivityCreated           EventType = "ActivityCreated"
	EventActivityUpdated           EventType = "ActivityUpdated"
	EventActivityDeleted           EventType = "ActivityDeleted"
	EventAttachmentUploaded        EventType = "AttachmentUploaded"
	EventAttachmentDeleted         EventType = "AttachmentDeleted"
	EventScheduleEventCreated      EventType = "ScheduleEventCreated"
	EventScheduleEventUpdated      EventType = "ScheduleEventUpdated"
	EventScheduleEventDeleted      EventType = "ScheduleEventDeleted"
	EventDocumentationEntryCreated EventType = "DocumentationEntryCreated"
	EventDocumentationEntryUpdated EventType = "DocumentationEntryUpdated"
	EventDocumentationEntryDeleted EventType = "DocumentationEntryDeleted"
)

var eventSummaries = map[EventType]string{
	EventProgramCreated:            "created the program",
	EventProgramUpdated:            "changed the program details",
	EventProgramDeleted:            "deleted the program",
	EventActivityCreated:           "created an activity",
	EventActivityUpdated:           "updated an activity",
	EventActivityDeleted:           "removed an activity",
	EventAttachmentUploaded:        "uploaded a file",
	EventAttachmentDeleted:         "removed a file",
	EventScheduleEventCreated:      "scheduled an event",
	EventScheduleEventUpdated:      "changed an event",
	EventScheduleEventDeleted:      "cancelled an event",
	EventDocumentationEntryCreated: "added documentation",
	EventDocumentationEntryUpdated: "updated documentation",
	EventDocumentationEntryDeleted: "removed documentation",
}

// TimelineEvent is one immutable audit record scoped to a program.
type TimelineEvent struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ProgramID      string    `json:"program_id"`
	EventType      EventType `json:"event_type"`
	RelatedID      string    `json:"related_id,omitempty"`
	ActorPrincipal string    `json:"actor_principal,omitempty"`
	Details        string    `json:"details,omitempty"`
}

// Humanize renders the event as a short sentence. Unknown event types fall
// back to a generic phrase.
func (e TimelineEvent) Humanize() string {
	actor := strings.TrimSpace(e.ActorPrincipal)
	if actor == "" {
		actor = "Someone"
	}
	summary, ok := eventSummaries[e.EventType]
	if !ok {
		summary = "made a change"
	}
	return actor + " " + summary
}

func ParseEventType(raw string) (EventType, error) {
	value := EventType(strings.TrimSpace(raw))
	if value == "" {
		return "", fmt.Errorf("event type is required")
	}
	if _, ok := eventSummaries[value]; !ok {
		return "", fmt.Errorf("invalid event type: %s", value)
	}
	return value, nil
}
