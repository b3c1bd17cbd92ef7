package blobstore

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"regexp"
	"strings"
	"sync"

	"eduops/internal/models"
)

var (
	// ErrNotFound is returned when no finalized bytes exist for an id.
	ErrNotFound = errors.New("blob not found")
	// ErrSizeMismatch is returned by Finalize when the accumulated length
	// differs from the declared size.
	ErrSizeMismatch = errors.New("blob size mismatch")
	// ErrFinalized is returned when appending to a finalized blob.
	ErrFinalized = errors.New("blob already finalized")
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// BlobStore holds attachment bytes keyed by attachment id. A record moves from
// empty to accumulating on the first Append and to finalized on a successful
// Finalize. Chunks are stored in the order they arrive and are never
// deduplicated.
type BlobStore interface {
	Append(ctx context.Context, id string, chunk []byte) (models.Blob, error)
	Finalize(ctx context.Context, id string, declaredSize int64) (models.Blob, error)
	Open(ctx context.Context, id string) (io.ReadCloser, models.Blob, error)
	Stat(ctx context.Context, id string) (models.Blob, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Blob, error)
	Backend() string
}

var blobIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateID rejects ids that cannot be used as storage keys.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("blob id is required")
	}
	if !blobIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid blob id: %q", id)
	}
	return nil
}

func sizeMismatch(id string, have, declared int64) error {
	return fmt.Errorf("%w: %s has %d bytes, declared %d", ErrSizeMismatch, id, have, declared)
}

const lockStripes = 64

// idLocks serializes operations on the same id without a per-id allocation.
type idLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *idLocks) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
