package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"eduops/internal/models"
)

// Target names the parent an upload binds to. ProgramID is only read for
// documentation targets.
type Target struct {
	Kind      models.AttachmentKind
	ParentID  string
	ProgramID string
}

// Metadata is sent with single-call uploads and finalize calls.
type Metadata struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	ByteSize    int64  `json:"byte_size"`
	IsImage     bool   `json:"is_image"`
}

// Transport performs the backend calls of an upload.
type Transport interface {
	UploadSingle(ctx context.Context, target Target, meta Metadata, data []byte) (*models.Attachment, error)
	AppendChunk(ctx context.Context, id string, seq int, chunk []byte) error
	Finalize(ctx context.Context, target Target, meta Metadata) (*models.Attachment, error)
}

// Request describes one file to upload. Size is the declared length of Body.
type Request struct {
	Target      Target
	ID          string
	Filename    string
	ContentType string
	IsImage     bool
	Size        int64
	Body        io.Reader
}

// ProgressFunc receives the number of bytes handed to the transport so far.
type ProgressFunc func(sent, total int64)

// ChunkTransferError reports the chunk call that failed. The upload is not
// retried and nothing is finalized; the partial blob is left for the
// collector.
type ChunkTransferError struct {
	ID  string
	Seq int
	Err error
}

func (e *ChunkTransferError) Error() string {
	return fmt.Sprintf("chunk %d of upload %s failed: %v", e.Seq, e.ID, e.Err)
}

func (e *ChunkTransferError) Unwrap() []error {
	return []error{ErrChunkTransferFailed, e.Err}
}

// Coordinator drives an upload through a Transport, choosing between the
// single-call and chunked paths. Chunks are sent one at a time in order.
type Coordinator struct {
	transport  Transport
	policy     Policy
	newID      func() string
	onProgress ProgressFunc
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Coordinator) { c.onProgress = fn }
}

// WithIDGenerator overrides attachment id generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) { c.newID = fn }
}

// NewCoordinator creates a coordinator enforcing policy.
func NewCoordinator(transport Transport, policy Policy, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport: transport,
		policy:    policy.Normalized(),
		newID:     NewAttachmentID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewAttachmentID returns a fresh client-side attachment id.
func NewAttachmentID() string {
	return "att-" + uuid.NewString()
}

// Upload validates req and sends it. Size and type failures are returned
// before any transport call.
func (c *Coordinator) Upload(ctx context.Context, req Request) (*models.Attachment, error) {
	if c.transport == nil {
		return nil, fmt.Errorf("upload transport is not configured")
	}
	if req.Body == nil {
		return nil, fmt.Errorf("upload body is required")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if err := c.policy.Validate(req.Size, req.ContentType, req.IsImage); err != nil {
		return nil, err
	}

	meta := Metadata{
		ID:          strings.TrimSpace(req.ID),
		Filename:    req.Filename,
		ContentType: req.ContentType,
		ByteSize:    req.Size,
		IsImage:     req.IsImage,
	}
	if meta.ID == "" {
		meta.ID = c.newID()
	}

	if !c.policy.UsesChunks(req.Size) {
		data, err := readExactly(req.Body, req.Size)
		if err != nil {
			return nil, err
		}
		attachment, err := c.transport.UploadSingle(ctx, req.Target, meta, data)
		if err != nil {
			return nil, err
		}
		c.progress(req.Size, req.Size)
		return attachment, nil
	}

	var sent int64
	for seq := 0; sent < req.Size; seq++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		want := c.policy.ChunkSize
		if remaining := req.Size - sent; remaining < want {
			want = remaining
		}
		chunk := make([]byte, want)
		if _, err := io.ReadFull(req.Body, chunk); err != nil {
			return nil, fmt.Errorf("read chunk %d: %w", seq, err)
		}
		if err := c.transport.AppendChunk(ctx, meta.ID, seq, chunk); err != nil {
			return nil, &ChunkTransferError{ID: meta.ID, Seq: seq, Err: err}
		}
		sent += want
		c.progress(sent, req.Size)
	}
	if err := expectEOF(req.Body); err != nil {
		return nil, err
	}

	attachment, err := c.transport.Finalize(ctx, req.Target, meta)
	if err != nil {
		return nil, fmt.Errorf("finalize upload %s: %w", meta.ID, err)
	}
	return attachment, nil
}

func (c *Coordinator) progress(sent, total int64) {
	if c.onProgress != nil {
		c.onProgress(sent, total)
	}
}

func readExactly(r io.Reader, size int64) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if err := expectEOF(r); err != nil {
		return nil, err
	}
	return data, nil
}

func expectEOF(r io.Reader) error {
	var probe [1]byte
	n, err := r.Read(probe[:])
	if n > 0 {
		return fmt.Errorf("file is larger than its declared size")
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read file: %w", err)
	}
	return nil
}
