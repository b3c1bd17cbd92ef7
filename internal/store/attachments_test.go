package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"eduops/internal/models"
)

func mustRegistry(t *testing.T, st *Store, kind models.AttachmentKind) *Registry {
	t.Helper()
	reg, err := st.Attachments(kind)
	if err != nil {
		t.Fatalf("registry %s: %v", kind, err)
	}
	return reg
}

func TestRegistryCreateGetListArchive(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	reg := mustRegistry(t, st, models.AttachmentKindActivity)
	now := time.Now().UTC().Truncate(time.Millisecond)
	parent := models.ParentRef{Kind: models.AttachmentKindActivity, ID: "act-1", ProgramID: "prg-1"}

	first := &models.Attachment{
		ID:          "att-a1",
		Filename:    "plan.pdf",
		ContentType: "application/pdf",
		ByteSize:    512000,
		SHA256:      "abc",
		UploadedAt:  now.Add(-time.Minute),
		UploadedBy:  "ana",
	}
	second := &models.Attachment{
		ID:          "att-a2",
		Filename:    "photo.png",
		ContentType: "image/png",
		ByteSize:    10,
		IsImage:     true,
		UploadedAt:  now,
	}
	for _, a := range []*models.Attachment{first, second} {
		if err := reg.Create(ctx, parent, a); err != nil {
			t.Fatalf("create %s: %v", a.ID, err)
		}
	}

	got, err := reg.Get(ctx, "att-a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected attachment")
	}
	if got.ActivityID != "act-1" || got.ProgramID != "prg-1" || got.Kind != models.AttachmentKindActivity {
		t.Fatalf("unexpected linkage: %#v", got)
	}
	if !got.UploadedAt.Equal(first.UploadedAt) || got.UploadedBy != "ana" || got.ByteSize != 512000 {
		t.Fatalf("unexpected round trip: %#v", got)
	}

	listed, err := reg.List(ctx, "act-1", ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "att-a1" || listed[1].ID != "att-a2" {
		t.Fatalf("expected both attachments oldest first, got %#v", listed)
	}

	images := true
	listed, err = reg.List(ctx, "act-1", ListFilter{Images: &images})
	if err != nil {
		t.Fatalf("list images: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "att-a2" {
		t.Fatalf("expected only image attachment, got %#v", listed)
	}

	archived, changed, err := reg.Archive(ctx, "att-a1", now)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !changed || !archived.IsArchived || archived.ArchivedAt == nil {
		t.Fatalf("expected archived row, got changed=%v %#v", changed, archived)
	}
	_, changed, err = reg.Archive(ctx, "att-a1", now)
	if err != nil {
		t.Fatalf("archive again: %v", err)
	}
	if changed {
		t.Fatal("expected second archive to be a no-op")
	}

	listed, err = reg.List(ctx, "act-1", ListFilter{})
	if err != nil {
		t.Fatalf("list after archive: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "att-a2" {
		t.Fatalf("expected archived attachment hidden, got %#v", listed)
	}

	stillThere, err := reg.Get(ctx, "att-a1")
	if err != nil || stillThere == nil {
		t.Fatalf("expected archived row to remain readable, got %v %v", stillThere, err)
	}
}

func TestRegistryDuplicateIDAcrossPartitions(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	programs := mustRegistry(t, st, models.AttachmentKindProgram)
	docs := mustRegistry(t, st, models.AttachmentKindDocumentation)

	original := &models.Attachment{ID: "att-dup", Filename: "a.txt", ContentType: "text/plain", ByteSize: 1}
	if err := programs.Create(ctx, models.ParentRef{Kind: models.AttachmentKindProgram, ID: "prg-1", ProgramID: "prg-1"}, original); err != nil {
		t.Fatalf("create: %v", err)
	}

	clash := &models.Attachment{ID: "att-dup", Filename: "b.txt", ContentType: "text/plain", ByteSize: 2}
	err := docs.Create(ctx, models.ParentRef{Kind: models.AttachmentKindDocumentation, ID: "doc-1", ProgramID: "prg-1"}, clash)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}

	again := &models.Attachment{ID: "att-dup", Filename: "c.txt", ContentType: "text/plain", ByteSize: 3}
	err = programs.Create(ctx, models.ParentRef{Kind: models.AttachmentKindProgram, ID: "prg-1", ProgramID: "prg-1"}, again)
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected duplicate id error in same partition, got %v", err)
	}

	got, err := docs.Get(ctx, "att-dup")
	if err != nil {
		t.Fatalf("get doc: %v", err)
	}
	if got != nil {
		t.Fatalf("expected documentation partition untouched, got %#v", got)
	}
	kept, err := programs.Get(ctx, "att-dup")
	if err != nil || kept == nil || kept.Filename != "a.txt" || kept.ByteSize != 1 {
		t.Fatalf("expected original row unchanged, got %#v (%v)", kept, err)
	}

	kind, ok, err := st.AttachmentKindOf(ctx, "att-dup")
	if err != nil || !ok || kind != models.AttachmentKindProgram {
		t.Fatalf("expected ledger kind program, got %s %v %v", kind, ok, err)
	}
}

func TestRegistryArchiveWrongPartition(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	programs := mustRegistry(t, st, models.AttachmentKindProgram)
	activities := mustRegistry(t, st, models.AttachmentKindActivity)

	a := &models.Attachment{ID: "att-p1", Filename: "a.txt", ContentType: "text/plain", ByteSize: 1}
	if err := programs.Create(ctx, models.ParentRef{Kind: models.AttachmentKindProgram, ID: "prg-1", ProgramID: "prg-1"}, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, _, err := activities.Archive(ctx, "att-p1", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found from other partition, got %v", err)
	}
	got, err := programs.Get(ctx, "att-p1")
	if err != nil || got == nil || got.IsArchived {
		t.Fatalf("expected program attachment untouched, got %#v (%v)", got, err)
	}
}

func TestRegistryRejectsMismatchedParentKind(t *testing.T) {
	st := testStore(t)
	reg := mustRegistry(t, st, models.AttachmentKindProgram)
	err := reg.Create(context.Background(),
		models.ParentRef{Kind: models.AttachmentKindActivity, ID: "act-1", ProgramID: "prg-1"},
		&models.Attachment{ID: "att-x"})
	if err == nil {
		t.Fatal("expected kind mismatch error")
	}
}

func TestReferencedAttachmentIDsIncludesArchived(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	reg := mustRegistry(t, st, models.AttachmentKindActivity)
	parent := models.ParentRef{Kind: models.AttachmentKindActivity, ID: "act-1", ProgramID: "prg-1"}

	for _, id := range []string{"live", "gone"} {
		if err := reg.Create(ctx, parent, &models.Attachment{ID: id, Filename: id, ContentType: "text/plain"}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if _, _, err := reg.Archive(ctx, "gone", time.Now()); err != nil {
		t.Fatalf("archive: %v", err)
	}

	refs, err := st.ReferencedAttachmentIDs(ctx, []string{"live", "gone", "orphan"})
	if err != nil {
		t.Fatalf("referenced: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 referenced ids, got %v", refs)
	}
	if _, ok := refs["orphan"]; ok {
		t.Fatal("orphan should not be referenced")
	}
}

func TestUnknownAttachmentKind(t *testing.T) {
	st := testStore(t)
	if _, err := st.Attachments(models.AttachmentKind("orphanage")); err == nil {
		t.Fatal("expected invalid kind error")
	}
}
