package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"eduops/internal/blobstore"
	"eduops/internal/models"
	"eduops/internal/store"
)

const (
	defaultBlobGCBatchSize = 500
	defaultBlobGCWorkers   = 4
)

// GCOptions configures one orphan sweep.
type GCOptions struct {
	DryRun bool
	// MinAge skips blobs modified more recently than this.
	MinAge    time.Duration
	BatchSize int
}

// GCResult reports one sweep.
type GCResult struct {
	CandidateCount int   `json:"candidate_count"`
	DeletedCount   int   `json:"deleted_count"`
	FailedCount    int   `json:"failed_count"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run"`
}

// BlobCollector deletes blobs no attachment registry references. Archived
// attachments still count as references.
type BlobCollector struct {
	blobs       blobstore.BlobStore
	attachments store.AttachmentStore
	gate        *sync.RWMutex
	batchSize   int
	workers     int
	logger      *slog.Logger
	now         func() time.Time
}

// NewBlobCollector constructs a collector sharing gate with the upload path.
func NewBlobCollector(blobs blobstore.BlobStore, attachments store.AttachmentStore, gate *sync.RWMutex, batchSize, workers int, logger *slog.Logger) *BlobCollector {
	if gate == nil {
		gate = &sync.RWMutex{}
	}
	if batchSize <= 0 {
		batchSize = defaultBlobGCBatchSize
	}
	if workers <= 0 {
		workers = defaultBlobGCWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BlobCollector{
		blobs:       blobs,
		attachments: attachments,
		gate:        gate,
		batchSize:   batchSize,
		workers:     workers,
		logger:      logger,
		now:         time.Now,
	}
}

// CollectOrphans scans the blob store and removes unreferenced blobs. It holds
// the upload gate exclusively, so no finalize is between its blob finalize
// and registry insert while the sweep runs. Running it twice deletes nothing
// the second time.
func (c *BlobCollector) CollectOrphans(ctx context.Context, opts GCOptions) (GCResult, error) {
	result := GCResult{DryRun: opts.DryRun}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = c.batchSize
	}

	c.gate.Lock()
	defer c.gate.Unlock()

	blobs, err := c.blobs.List(ctx)
	if err != nil {
		return result, err
	}

	cutoff := c.now().Add(-opts.MinAge)
	eligible := make([]models.Blob, 0, len(blobs))
	for _, blob := range blobs {
		if opts.MinAge > 0 && blob.ModifiedAt.After(cutoff) {
			continue
		}
		eligible = append(eligible, blob)
	}

	for start := 0; start < len(eligible); start += batchSize {
		end := min(start+batchSize, len(eligible))
		orphans, err := c.orphans(ctx, eligible[start:end])
		if err != nil {
			return result, err
		}
		result.CandidateCount += len(orphans)

		if opts.DryRun {
			for _, blob := range orphans {
				result.ReclaimedBytes += blob.SizeBytes
			}
			continue
		}
		if err := c.deleteAll(ctx, orphans, &result); err != nil {
			return result, err
		}
	}

	c.logger.Info("blob gc complete",
		"backend", c.blobs.Backend(),
		"scanned", len(blobs),
		"candidates", result.CandidateCount,
		"deleted", result.DeletedCount,
		"failed", result.FailedCount,
		"reclaimed_bytes", result.ReclaimedBytes,
		"dry_run", result.DryRun,
	)
	return result, nil
}

func (c *BlobCollector) orphans(ctx context.Context, batch []models.Blob) ([]models.Blob, error) {
	ids := make([]string, len(batch))
	for i, blob := range batch {
		ids[i] = blob.ID
	}
	referenced, err := c.attachments.ReferencedAttachmentIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Blob, 0, len(batch))
	for _, blob := range batch {
		if _, ok := referenced[blob.ID]; ok {
			continue
		}
		out = append(out, blob)
	}
	return out, nil
}

// deleteAll removes orphans concurrently. Per-blob failures are counted, not
// returned; only context cancellation aborts the batch.
func (c *BlobCollector) deleteAll(ctx context.Context, orphans []models.Blob, result *GCResult) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, blob := range orphans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := c.blobs.Delete(gctx, blob.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailedCount++
				c.logger.Warn("blob gc delete failed", "id", blob.ID, "error", err)
				return nil
			}
			result.DeletedCount++
			result.ReclaimedBytes += blob.SizeBytes
			return nil
		})
	}
	return g.Wait()
}
