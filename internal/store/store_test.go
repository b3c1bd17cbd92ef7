package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"eduops/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestProgramLifecycle(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	program := &models.Program{Name: "Summer Camp", Owner: "ana"}
	if err := st.CreateProgram(ctx, program); err != nil {
		t.Fatalf("create: %v", err)
	}
	if program.ID == "" {
		t.Fatal("expected generated id")
	}

	program.Description = "Two weeks"
	if err := st.UpdateProgram(ctx, program); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := st.GetProgram(ctx, program.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Description != "Two weeks" || got.Owner != "ana" {
		t.Fatalf("unexpected program: %#v", got)
	}

	if err := st.ArchiveProgram(ctx, program.ID, time.Now()); err != nil {
		t.Fatalf("archive: %v", err)
	}
	listed, err := st.ListPrograms(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected archived program hidden, got %d", len(listed))
	}

	if err := st.ArchiveProgram(ctx, "prg-missing", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	missing, err := st.GetProgram(ctx, "prg-missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil program, got %#v (%v)", missing, err)
	}
}

func TestActivityAndDocumentationLinkage(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	program := &models.Program{Name: "Art"}
	if err := st.CreateProgram(ctx, program); err != nil {
		t.Fatalf("create program: %v", err)
	}
	activity := &models.Activity{ProgramID: program.ID, Title: "Painting"}
	if err := st.CreateActivity(ctx, activity); err != nil {
		t.Fatalf("create activity: %v", err)
	}
	entry := &models.DocumentationEntry{ActivityID: activity.ID, ProgramID: program.ID, Content: "Notes"}
	if err := st.CreateDocumentationEntry(ctx, entry); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	activities, err := st.ListActivities(ctx, program.ID)
	if err != nil || len(activities) != 1 || activities[0].Title != "Painting" {
		t.Fatalf("unexpected activities %#v (%v)", activities, err)
	}
	entries, err := st.ListDocumentationEntries(ctx, activity.ID)
	if err != nil || len(entries) != 1 || entries[0].ProgramID != program.ID {
		t.Fatalf("unexpected entries %#v (%v)", entries, err)
	}

	orphan := &models.Activity{ProgramID: "prg-missing", Title: "Nope"}
	if err := st.CreateActivity(ctx, orphan); err == nil {
		t.Fatal("expected foreign key failure for unknown program")
	}
}

func TestListUpcomingScheduleEvents(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	program := &models.Program{Name: "Sports"}
	if err := st.CreateProgram(ctx, program); err != nil {
		t.Fatalf("create program: %v", err)
	}
	events := []*models.ScheduleEvent{
		{Title: "later", StartsAt: now.Add(72 * time.Hour)},
		{Title: "soon", StartsAt: now.Add(time.Hour)},
		{Title: "past", StartsAt: now.Add(-time.Hour)},
		{Title: "outside", StartsAt: now.Add(8 * 24 * time.Hour)},
		{Title: "cancelled", StartsAt: now.Add(2 * time.Hour)},
	}
	for _, e := range events {
		e.ProgramID = program.ID
		e.EndsAt = e.StartsAt.Add(time.Hour)
		if err := st.CreateScheduleEvent(ctx, e); err != nil {
			t.Fatalf("create %s: %v", e.Title, err)
		}
	}
	if err := st.ArchiveScheduleEvent(ctx, events[4].ID, now); err != nil {
		t.Fatalf("archive: %v", err)
	}

	got, err := st.ListUpcomingScheduleEvents(ctx, now, now.Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(got) != 2 || got[0].Title != "soon" || got[1].Title != "later" {
		t.Fatalf("expected [soon later], got %#v", got)
	}
}

func TestStoreInfo(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	info, err := st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.SchemaVersion == 0 {
		t.Fatal("expected non-zero schema version")
	}

	reg := mustRegistry(t, st, models.AttachmentKindProgram)
	parent := models.ParentRef{Kind: models.AttachmentKindProgram, ID: "prg-1", ProgramID: "prg-1"}
	for _, id := range []string{"a1", "a2"} {
		if err := reg.Create(ctx, parent, &models.Attachment{ID: id, Filename: id, ContentType: "text/plain"}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if _, _, err := reg.Archive(ctx, "a2", time.Now()); err != nil {
		t.Fatalf("archive: %v", err)
	}

	info, err = st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Attachments["program"] != 2 || info.Archived != 1 {
		t.Fatalf("unexpected counts: %#v", info)
	}
}
