package models

import "testing"

func TestParseAttachmentKind(t *testing.T) {
	got, err := ParseAttachmentKind(" Activity ")
	if err != nil {
		t.Fatalf("parse kind: %v", err)
	}
	if got != AttachmentKindActivity {
		t.Fatalf("expected %q, got %q", AttachmentKindActivity, got)
	}

	if _, err := ParseAttachmentKind("orphanage"); err == nil {
		t.Fatal("expected invalid kind error")
	}
}

func TestParentRefApply(t *testing.T) {
	a := Attachment{ActivityID: "stale"}
	ParentRef{Kind: AttachmentKindDocumentation, ID: "doc-1", ProgramID: "prg-1"}.Apply(&a)

	if a.Kind != AttachmentKindDocumentation || a.ProgramID != "prg-1" {
		t.Fatalf("unexpected linkage: %#v", a)
	}
	if a.DocumentationID != "doc-1" || a.ActivityID != "" {
		t.Fatalf("expected documentation parent only, got %#v", a)
	}
	if a.ParentID() != "doc-1" {
		t.Fatalf("expected parent id doc-1, got %q", a.ParentID())
	}
}

func TestTimelineEventHumanize(t *testing.T) {
	cases := []struct {
		event TimelineEvent
		want  string
	}{
		{TimelineEvent{EventType: EventAttachmentUploaded, ActorPrincipal: "ana"}, "ana uploaded a file"},
		{TimelineEvent{EventType: EventScheduleEventDeleted}, "Someone cancelled an event"},
		{TimelineEvent{EventType: EventType("Unknown"), ActorPrincipal: "bo"}, "bo made a change"},
	}
	for _, tc := range cases {
		if got := tc.event.Humanize(); got != tc.want {
			t.Fatalf("humanize %s: expected %q, got %q", tc.event.EventType, tc.want, got)
		}
	}
}

func TestParseEventType(t *testing.T) {
	if _, err := ParseEventType("AttachmentDeleted"); err != nil {
		t.Fatalf("parse event type: %v", err)
	}
	if _, err := ParseEventType("attachmentdeleted"); err == nil {
		t.Fatal("expected case-sensitive mismatch to fail")
	}
}
