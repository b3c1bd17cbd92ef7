package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"eduops/internal/api"
	"eduops/internal/format"
	"eduops/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeLines(lines []string) error {
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeAttachment(attachment models.Attachment, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(attachment)
	}
	lines := []string{
		fmt.Sprintf("id: %s", attachment.ID),
		fmt.Sprintf("kind: %s", attachment.Kind),
		fmt.Sprintf("program_id: %s", attachment.ProgramID),
	}
	if attachment.ActivityID != "" {
		lines = append(lines, fmt.Sprintf("activity_id: %s", attachment.ActivityID))
	}
	if attachment.DocumentationID != "" {
		lines = append(lines, fmt.Sprintf("documentation_id: %s", attachment.DocumentationID))
	}
	lines = append(lines,
		fmt.Sprintf("filename: %s", attachment.Filename),
		fmt.Sprintf("content_type: %s", attachment.ContentType),
		fmt.Sprintf("byte_size: %d", attachment.ByteSize),
		fmt.Sprintf("sha256: %s", attachment.SHA256),
		fmt.Sprintf("is_image: %t", attachment.IsImage),
		fmt.Sprintf("uploaded_at: %s", formatTime(attachment.UploadedAt)),
	)
	if attachment.UploadedBy != "" {
		lines = append(lines, fmt.Sprintf("uploaded_by: %s", attachment.UploadedBy))
	}
	if attachment.ArchivedAt != nil {
		lines = append(lines, fmt.Sprintf("archived_at: %s", formatTime(*attachment.ArchivedAt)))
	}
	return writeLines(lines)
}

func formatAttachmentLine(attachment models.Attachment) string {
	marker := "doc"
	if attachment.IsImage {
		marker = "img"
	}
	return fmt.Sprintf("%s [%s] %s (%s, %d bytes)", attachment.ID, marker, attachment.Filename, attachment.ContentType, attachment.ByteSize)
}

func formatTimelineLine(event api.TimelineEventResponse) string {
	line := fmt.Sprintf("#%d %s %s", event.ID, formatTime(event.Timestamp), event.Summary)
	if event.RelatedID != "" {
		line += " (" + event.RelatedID + ")"
	}
	return line
}

func formatScheduleLine(event models.ScheduleEvent) string {
	line := fmt.Sprintf("%s %s  %s", event.ID, formatTime(event.StartsAt), event.Title)
	if event.Location != "" {
		line += " @ " + event.Location
	}
	return line
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
