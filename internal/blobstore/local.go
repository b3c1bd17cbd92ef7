package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"eduops/internal/models"
)

const (
	partialDir = "partial"
	objectsDir = "objects"
)

// LocalStore keeps blobs on the local filesystem. Accumulating bytes live under
// partial/<id>; Finalize moves them to objects/<id[:2]>/<id>.
type LocalStore struct {
	root  string
	locks idLocks
}

// NewLocalStore creates a filesystem blob store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{partialDir, objectsDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0o755); err != nil {
			return nil, err
		}
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Backend() string { return BackendLocal }

// Append writes chunk to the end of the partial record, creating it if absent.
func (s *LocalStore) Append(ctx context.Context, id string, chunk []byte) (models.Blob, error) {
	if err := s.check(ctx, id); err != nil {
		return models.Blob{}, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	if _, err := os.Stat(s.objectPath(id)); err == nil {
		return models.Blob{}, fmt.Errorf("%w: %s", ErrFinalized, id)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return models.Blob{}, err
	}

	f, err := os.OpenFile(s.partialPath(id), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return models.Blob{}, err
	}
	if _, err := f.Write(chunk); err != nil {
		_ = f.Close()
		return models.Blob{}, err
	}
	if err := f.Close(); err != nil {
		return models.Blob{}, err
	}
	return s.statPath(id, s.partialPath(id), models.BlobStateAccumulating)
}

// Finalize checks the accumulated length against declaredSize and publishes the
// record. Finalizing an already finalized blob of the same size is a no-op.
func (s *LocalStore) Finalize(ctx context.Context, id string, declaredSize int64) (models.Blob, error) {
	if err := s.check(ctx, id); err != nil {
		return models.Blob{}, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	partial := s.partialPath(id)
	info, err := os.Stat(partial)
	if errors.Is(err, fs.ErrNotExist) {
		return s.refinalize(id, declaredSize)
	}
	if err != nil {
		return models.Blob{}, err
	}
	if info.Size() != declaredSize {
		return models.Blob{}, sizeMismatch(id, info.Size(), declaredSize)
	}

	digest, err := fileDigest(partial)
	if err != nil {
		return models.Blob{}, err
	}
	dst := s.objectPath(id)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return models.Blob{}, err
	}
	if err := os.Rename(partial, dst); err != nil {
		return models.Blob{}, err
	}

	blob, err := s.statPath(id, dst, models.BlobStateFinalized)
	if err != nil {
		return models.Blob{}, err
	}
	blob.SHA256 = digest
	return blob, nil
}

func (s *LocalStore) refinalize(id string, declaredSize int64) (models.Blob, error) {
	blob, err := s.statPath(id, s.objectPath(id), models.BlobStateFinalized)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Blob{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.Blob{}, err
	}
	if blob.SizeBytes != declaredSize {
		return models.Blob{}, sizeMismatch(id, blob.SizeBytes, declaredSize)
	}
	digest, err := fileDigest(s.objectPath(id))
	if err != nil {
		return models.Blob{}, err
	}
	blob.SHA256 = digest
	return blob, nil
}

// Open returns a reader over finalized bytes. Accumulating records are not
// readable.
func (s *LocalStore) Open(ctx context.Context, id string) (io.ReadCloser, models.Blob, error) {
	if err := s.check(ctx, id); err != nil {
		return nil, models.Blob{}, err
	}
	f, err := os.Open(s.objectPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.Blob{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, models.Blob{}, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, models.Blob{}, err
	}
	return f, s.blobFromInfo(id, info, models.BlobStateFinalized), nil
}

// Stat reports the current state of id. Unknown ids report BlobStateEmpty.
func (s *LocalStore) Stat(ctx context.Context, id string) (models.Blob, error) {
	if err := s.check(ctx, id); err != nil {
		return models.Blob{}, err
	}
	if blob, err := s.statPath(id, s.objectPath(id), models.BlobStateFinalized); err == nil {
		return blob, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return models.Blob{}, err
	}
	if blob, err := s.statPath(id, s.partialPath(id), models.BlobStateAccumulating); err == nil {
		return blob, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return models.Blob{}, err
	}
	return models.Blob{ID: id, State: models.BlobStateEmpty, StorageBackend: BackendLocal}, nil
}

// Delete removes both partial and finalized bytes. Missing files are ignored.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	if err := s.check(ctx, id); err != nil {
		return err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	for _, path := range []string{s.partialPath(id), s.objectPath(id)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// List returns every record in the store, partial and finalized.
func (s *LocalStore) List(ctx context.Context) ([]models.Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blobs := []models.Blob{}
	seen := map[string]struct{}{}

	err := filepath.WalkDir(filepath.Join(s.root, objectsDir), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		id := d.Name()
		seen[id] = struct{}{}
		blobs = append(blobs, s.blobFromInfo(id, info, models.BlobStateFinalized))
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, partialDir))
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := seen[entry.Name()]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		blobs = append(blobs, s.blobFromInfo(entry.Name(), info, models.BlobStateAccumulating))
	}
	return blobs, nil
}

func (s *LocalStore) check(ctx context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ValidateID(id)
}

func (s *LocalStore) partialPath(id string) string {
	return filepath.Join(s.root, partialDir, id)
}

func (s *LocalStore) objectPath(id string) string {
	shard := id
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(s.root, objectsDir, shard, id)
}

func (s *LocalStore) statPath(id, path string, state models.BlobState) (models.Blob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Blob{}, err
	}
	return s.blobFromInfo(id, info, state), nil
}

func (s *LocalStore) blobFromInfo(id string, info fs.FileInfo, state models.BlobState) models.Blob {
	return models.Blob{
		ID:             id,
		State:          state,
		SizeBytes:      info.Size(),
		StorageBackend: BackendLocal,
		ModifiedAt:     info.ModTime().UTC(),
	}
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
