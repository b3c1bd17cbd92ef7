package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"eduops/internal/blobstore"
	"eduops/internal/models"
	"eduops/internal/store"
	"eduops/internal/upload"
)

const fallbackAttachmentContentType = "application/octet-stream"

// AttachmentService runs uploads into the blob store and registries and
// serves attachment reads and archival.
type AttachmentService struct {
	catalog     store.CatalogStore
	attachments store.AttachmentStore
	blobs       blobstore.BlobStore
	timeline    *TimelineService
	policy      upload.Policy
	gate        *sync.RWMutex
}

// AttachmentContent describes a readable attachment.
type AttachmentContent struct {
	Reader      io.ReadCloser
	SizeBytes   int64
	ContentType string
	Filename    string
	SHA256      string
}

// UploadInput is the metadata of a single-call upload or finalize call.
type UploadInput struct {
	Target upload.Target
	Meta   upload.Metadata
}

// NewAttachmentService constructs an AttachmentService.
func NewAttachmentService(catalog store.CatalogStore, attachments store.AttachmentStore, blobs blobstore.BlobStore, timeline *TimelineService, policy upload.Policy, gate *sync.RWMutex) *AttachmentService {
	if gate == nil {
		gate = &sync.RWMutex{}
	}
	return &AttachmentService{
		catalog:     catalog,
		attachments: attachments,
		blobs:       blobs,
		timeline:    timeline,
		policy:      policy.Normalized(),
		gate:        gate,
	}
}

// Policy returns the limits enforced on uploads.
func (s *AttachmentService) Policy() upload.Policy {
	return s.policy
}

// UploadSingle stores a file that fits in one request and registers it.
func (s *AttachmentService) UploadSingle(ctx context.Context, in UploadInput, content io.Reader) (models.Attachment, error) {
	var zero models.Attachment
	if content == nil {
		return zero, badRequestCode(fmt.Errorf("content is required"), ErrCodeMissingRequired)
	}
	parent, err := s.prepare(ctx, in)
	if err != nil {
		return zero, err
	}
	if in.Meta.ByteSize > s.policy.SingleCallThreshold {
		return zero, badRequest(fmt.Errorf("files over %d bytes must be uploaded in chunks", s.policy.SingleCallThreshold))
	}

	if err := s.ensureUnregistered(ctx, in.Meta.ID); err != nil {
		return zero, err
	}
	blob, err := s.blobs.Stat(ctx, in.Meta.ID)
	if err != nil {
		return zero, err
	}
	if blob.State != models.BlobStateEmpty {
		return zero, conflictCode(fmt.Errorf("upload %s already has stored bytes", in.Meta.ID), ErrCodeConflict)
	}

	// One byte past the declared size is enough to detect a lying client.
	data, err := io.ReadAll(io.LimitReader(content, in.Meta.ByteSize+1))
	if err != nil {
		return zero, badRequest(fmt.Errorf("read content: %w", err))
	}
	if int64(len(data)) != in.Meta.ByteSize {
		return zero, fmt.Errorf("%w: content is %d bytes, byte_size is %d", blobstore.ErrSizeMismatch, len(data), in.Meta.ByteSize)
	}
	return s.finalizeAndRegister(ctx, parent, in.Meta, data)
}

// AppendChunk appends one chunk of a chunked upload. The id must not already
// belong to a registered attachment.
func (s *AttachmentService) AppendChunk(ctx context.Context, id string, chunk []byte) (models.Blob, error) {
	if err := blobstore.ValidateID(id); err != nil {
		return models.Blob{}, badRequestCode(err, ErrCodeInvalidID)
	}
	if int64(len(chunk)) > s.policy.ChunkSize {
		return models.Blob{}, badRequestCode(fmt.Errorf("chunk exceeds %d bytes", s.policy.ChunkSize), ErrCodeRequestTooLarge)
	}
	if err := s.ensureUnregistered(ctx, id); err != nil {
		return models.Blob{}, err
	}

	current, err := s.blobs.Stat(ctx, id)
	if err != nil {
		return models.Blob{}, err
	}
	if current.SizeBytes+int64(len(chunk)) > s.policy.MaxFileBytes {
		return models.Blob{}, fmt.Errorf("%w: upload %s would exceed %d bytes", upload.ErrFileTooLarge, id, s.policy.MaxFileBytes)
	}

	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.blobs.Append(ctx, id, chunk)
}

func (s *AttachmentService) ensureUnregistered(ctx context.Context, id string) error {
	kind, registered, err := s.attachments.AttachmentKindOf(ctx, id)
	if err != nil {
		return err
	}
	if registered {
		return conflictCode(fmt.Errorf("%w: %s is already a %s attachment", store.ErrDuplicateID, id, kind), ErrCodeAttachmentIDExists)
	}
	return nil
}

// Finalize completes a chunked upload and registers it.
func (s *AttachmentService) Finalize(ctx context.Context, in UploadInput) (models.Attachment, error) {
	parent, err := s.prepare(ctx, in)
	if err != nil {
		return models.Attachment{}, err
	}
	return s.finalizeAndRegister(ctx, parent, in.Meta, nil)
}

// finalizeAndRegister seals the blob and inserts the registry row while
// holding the shared side of the upload gate, so a collector sweep can never
// observe the finalized blob without its row. A non-nil pending is the whole
// content of a single-call upload and is written under the same hold.
func (s *AttachmentService) finalizeAndRegister(ctx context.Context, parent models.ParentRef, meta upload.Metadata, pending []byte) (models.Attachment, error) {
	registry, err := s.attachments.Attachments(parent.Kind)
	if err != nil {
		return models.Attachment{}, badRequestCode(err, ErrCodeInvalidKind)
	}

	s.gate.RLock()
	attachment, err := s.seal(ctx, registry, parent, meta, pending)
	s.gate.RUnlock()
	if err != nil {
		return models.Attachment{}, err
	}

	s.timeline.Record(ctx, attachment.ProgramID, models.EventAttachmentUploaded, attachment.ID,
		fmt.Sprintf("%s attachment %q (%d bytes)", parent.Kind, attachment.Filename, attachment.ByteSize))
	return *attachment, nil
}

// seal must run with the upload gate held.
func (s *AttachmentService) seal(ctx context.Context, registry *store.Registry, parent models.ParentRef, meta upload.Metadata, pending []byte) (*models.Attachment, error) {
	if pending != nil {
		if _, err := s.blobs.Append(ctx, meta.ID, pending); err != nil {
			return nil, err
		}
	}
	blob, err := s.blobs.Finalize(ctx, meta.ID, meta.ByteSize)
	if err != nil {
		return nil, err
	}

	attachment := &models.Attachment{
		ID:          meta.ID,
		Filename:    strings.TrimSpace(meta.Filename),
		ContentType: upload.NormalizeContentType(meta.ContentType),
		ByteSize:    blob.SizeBytes,
		SHA256:      blob.SHA256,
		IsImage:     meta.IsImage,
		UploadedAt:  time.Now().UTC(),
		UploadedBy:  actorFromContext(ctx),
	}
	if err := registry.Create(ctx, parent, attachment); err != nil {
		return nil, err
	}
	return attachment, nil
}

// prepare validates metadata against the policy and resolves the parent.
func (s *AttachmentService) prepare(ctx context.Context, in UploadInput) (models.ParentRef, error) {
	var zero models.ParentRef
	if err := blobstore.ValidateID(in.Meta.ID); err != nil {
		return zero, badRequestCode(err, ErrCodeInvalidID)
	}
	if strings.TrimSpace(in.Meta.Filename) == "" {
		return zero, badRequestCode(fmt.Errorf("filename is required"), ErrCodeMissingRequired)
	}
	if err := s.policy.Validate(in.Meta.ByteSize, in.Meta.ContentType, in.Meta.IsImage); err != nil {
		return zero, err
	}
	return s.resolveParent(ctx, in.Target)
}

// resolveParent checks the parent exists and derives its program. A
// documentation target must name the program its entry belongs to.
func (s *AttachmentService) resolveParent(ctx context.Context, target upload.Target) (models.ParentRef, error) {
	ref := models.ParentRef{Kind: target.Kind, ID: strings.TrimSpace(target.ParentID)}
	if !validateID(ref.ID) {
		return models.ParentRef{}, badRequestCode(fmt.Errorf("invalid parent id"), ErrCodeInvalidID)
	}

	switch target.Kind {
	case models.AttachmentKindProgram:
		program, err := s.catalog.GetProgram(ctx, ref.ID)
		if err != nil {
			return models.ParentRef{}, err
		}
		if program == nil || program.IsArchived {
			return models.ParentRef{}, notFoundCode(fmt.Errorf("program not found"), ErrCodeProgramNotFound)
		}
		ref.ProgramID = program.ID
	case models.AttachmentKindActivity:
		activity, err := s.catalog.GetActivity(ctx, ref.ID)
		if err != nil {
			return models.ParentRef{}, err
		}
		if activity == nil || activity.IsArchived {
			return models.ParentRef{}, notFoundCode(fmt.Errorf("activity not found"), ErrCodeParentNotFound)
		}
		ref.ProgramID = activity.ProgramID
	case models.AttachmentKindDocumentation:
		entry, err := s.catalog.GetDocumentationEntry(ctx, ref.ID)
		if err != nil {
			return models.ParentRef{}, err
		}
		if entry == nil || entry.IsArchived {
			return models.ParentRef{}, notFoundCode(fmt.Errorf("documentation entry not found"), ErrCodeParentNotFound)
		}
		programID := strings.TrimSpace(target.ProgramID)
		if programID == "" {
			return models.ParentRef{}, badRequestCode(fmt.Errorf("program_id is required for documentation attachments"), ErrCodeMissingRequired)
		}
		if programID != entry.ProgramID {
			return models.ParentRef{}, badRequestCode(fmt.Errorf("documentation entry does not belong to program %s", programID), ErrCodeProgramMismatch)
		}
		ref.ProgramID = entry.ProgramID
	default:
		return models.ParentRef{}, badRequestCode(fmt.Errorf("invalid attachment kind: %s", target.Kind), ErrCodeInvalidKind)
	}
	return ref, nil
}

// List returns the non-archived attachments of a parent.
func (s *AttachmentService) List(ctx context.Context, kind models.AttachmentKind, parentID string, images *bool) ([]models.Attachment, error) {
	if err := s.ensureParentExists(ctx, kind, parentID); err != nil {
		return nil, err
	}
	registry, err := s.attachments.Attachments(kind)
	if err != nil {
		return nil, badRequestCode(err, ErrCodeInvalidKind)
	}
	return registry.List(ctx, parentID, store.ListFilter{Images: images})
}

// ensureParentExists only checks existence; archived parents stay readable.
func (s *AttachmentService) ensureParentExists(ctx context.Context, kind models.AttachmentKind, parentID string) error {
	var exists bool
	switch kind {
	case models.AttachmentKindProgram:
		program, err := s.catalog.GetProgram(ctx, parentID)
		if err != nil {
			return err
		}
		exists = program != nil
	case models.AttachmentKindActivity:
		activity, err := s.catalog.GetActivity(ctx, parentID)
		if err != nil {
			return err
		}
		exists = activity != nil
	case models.AttachmentKindDocumentation:
		entry, err := s.catalog.GetDocumentationEntry(ctx, parentID)
		if err != nil {
			return err
		}
		exists = entry != nil
	default:
		return badRequestCode(fmt.Errorf("invalid attachment kind: %s", kind), ErrCodeInvalidKind)
	}
	if !exists {
		return notFoundCode(fmt.Errorf("%s not found", kind), ErrCodeParentNotFound)
	}
	return nil
}

// Get returns one attachment from the kind's partition, archived included.
func (s *AttachmentService) Get(ctx context.Context, kind models.AttachmentKind, id string) (models.Attachment, error) {
	registry, err := s.attachments.Attachments(kind)
	if err != nil {
		return models.Attachment{}, badRequestCode(err, ErrCodeInvalidKind)
	}
	attachment, err := registry.Get(ctx, id)
	if err != nil {
		return models.Attachment{}, err
	}
	if attachment == nil {
		return models.Attachment{}, notFoundCode(fmt.Errorf("%s attachment not found", kind), ErrCodeAttachmentNotFound)
	}
	return *attachment, nil
}

// OpenContent returns the bytes of an attachment. Archived attachments stay
// readable; ids outside the kind's partition or without finalized bytes are
// not found.
func (s *AttachmentService) OpenContent(ctx context.Context, kind models.AttachmentKind, id string) (*AttachmentContent, error) {
	attachment, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	rc, blob, err := s.blobs.Open(ctx, attachment.ID)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, notFoundCode(fmt.Errorf("attachment content not found"), ErrCodeAttachmentNotFound)
		}
		return nil, blobStoreFailure(err)
	}

	contentType := strings.TrimSpace(attachment.ContentType)
	if contentType == "" {
		contentType = fallbackAttachmentContentType
	}
	filename := strings.TrimSpace(attachment.Filename)
	if filename == "" {
		filename = attachment.ID
	}
	return &AttachmentContent{
		Reader:      rc,
		SizeBytes:   blob.SizeBytes,
		ContentType: contentType,
		Filename:    filename,
		SHA256:      blob.SHA256,
	}, nil
}

// Archive soft-deletes an attachment. Repeating it is a no-op that emits no
// second timeline event.
func (s *AttachmentService) Archive(ctx context.Context, kind models.AttachmentKind, id string) (models.Attachment, error) {
	registry, err := s.attachments.Attachments(kind)
	if err != nil {
		return models.Attachment{}, badRequestCode(err, ErrCodeInvalidKind)
	}
	attachment, changed, err := registry.Archive(ctx, id, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Attachment{}, notFoundCode(fmt.Errorf("%s attachment not found", kind), ErrCodeAttachmentNotFound)
		}
		return models.Attachment{}, err
	}
	if changed {
		s.timeline.Record(ctx, attachment.ProgramID, models.EventAttachmentDeleted, attachment.ID,
			fmt.Sprintf("%s attachment %q", kind, attachment.Filename))
	}
	return *attachment, nil
}
