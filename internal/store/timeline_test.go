package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"eduops/internal/models"
)

func TestAppendTimelineEventAssignsIncreasingIDs(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	var last int64
	for i, program := range []string{"prg-a", "prg-b", "prg-a"} {
		event := &models.TimelineEvent{ProgramID: program, EventType: models.EventProgramUpdated, RelatedID: fmt.Sprint(i)}
		if err := st.AppendTimelineEvent(ctx, event); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if event.ID <= last {
			t.Fatalf("expected id greater than %d, got %d", last, event.ID)
		}
		if event.Timestamp.IsZero() {
			t.Fatal("expected timestamp to be stamped")
		}
		last = event.ID
	}
}

func TestAppendTimelineEventRejectsUnknownType(t *testing.T) {
	st := testStore(t)
	err := st.AppendTimelineEvent(context.Background(), &models.TimelineEvent{ProgramID: "prg-a", EventType: "Renamed"})
	if err == nil {
		t.Fatal("expected invalid event type error")
	}
}

func TestListTimelineByProgramOrderAndLimit(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	inserts := []models.TimelineEvent{
		{ProgramID: "prg-a", EventType: models.EventAttachmentUploaded, Timestamp: base.Add(2 * time.Second), RelatedID: "late"},
		{ProgramID: "prg-b", EventType: models.EventProgramCreated, Timestamp: base},
		{ProgramID: "prg-a", EventType: models.EventProgramCreated, Timestamp: base, RelatedID: "first"},
		{ProgramID: "prg-a", EventType: models.EventActivityCreated, Timestamp: base, RelatedID: "tie"},
	}
	for i := range inserts {
		if err := st.AppendTimelineEvent(ctx, &inserts[i]); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	events, err := st.ListTimelineByProgram(ctx, "prg-a", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{}
	for _, e := range events {
		got = append(got, e.RelatedID)
	}
	want := []string{"first", "tie", "late"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected order %v, got %v", want, got)
	}

	recent, err := st.ListTimelineByProgram(ctx, "prg-a", 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(recent) != 2 || recent[0].RelatedID != "tie" || recent[1].RelatedID != "late" {
		t.Fatalf("expected last two events ascending, got %#v", recent)
	}

	empty, err := st.ListTimelineByProgram(ctx, "prg-none", 0)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no events, got %d", len(empty))
	}
}

// Per-program timelines come back sorted by (timestamp, id) no matter how
// inserts for different programs interleave.
func TestPropertyTimelineOrdering(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "prop.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run := 0
	properties.Property("query order is (timestamp, id) ascending", prop.ForAll(
		func(programs []int, offsets []int) bool {
			run++
			ctx := context.Background()
			n := len(programs)
			if len(offsets) < n {
				n = len(offsets)
			}
			for i := 0; i < n; i++ {
				event := &models.TimelineEvent{
					ProgramID: fmt.Sprintf("run%d-p%d", run, programs[i]),
					EventType: models.EventProgramUpdated,
					Timestamp: base.Add(time.Duration(offsets[i]) * time.Second),
				}
				if err := st.AppendTimelineEvent(ctx, event); err != nil {
					return false
				}
			}
			for p := 0; p < 3; p++ {
				events, err := st.ListTimelineByProgram(ctx, fmt.Sprintf("run%d-p%d", run, p), 0)
				if err != nil {
					return false
				}
				for i := 1; i < len(events); i++ {
					prev, cur := events[i-1], events[i]
					if cur.Timestamp.Before(prev.Timestamp) {
						return false
					}
					if cur.Timestamp.Equal(prev.Timestamp) && cur.ID <= prev.ID {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 2)),
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}
