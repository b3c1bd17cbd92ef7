package models

import "time"

// BlobState is the lifecycle position of a stored byte record.
type BlobState string

const (
	// BlobStateEmpty is reported for ids the store has never seen.
	BlobStateEmpty        BlobState = "empty"
	BlobStateAccumulating BlobState = "accumulating"
	BlobStateFinalized    BlobState = "finalized"
)

// Blob describes a byte record keyed by attachment id.
type Blob struct {
	ID             string    `json:"id"`
	State          BlobState `json:"state"`
	SHA256         string    `json:"sha256,omitempty"`
	SizeBytes      int64     `json:"size_bytes"`
	StorageBackend string    `json:"storage_backend"`
	ModifiedAt     time.Time `json:"modified_at"`
}
