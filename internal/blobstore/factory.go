package blobstore

import (
	"context"
	"fmt"
	"strings"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Root    string
	S3      S3Config
}

// New constructs the backend named by opts.Backend. An empty backend means
// local.
func New(ctx context.Context, opts Options) (BlobStore, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendLocal:
		return NewLocalStore(opts.Root)
	case BackendS3:
		return NewS3Store(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown blob backend: %s", opts.Backend)
	}
}
