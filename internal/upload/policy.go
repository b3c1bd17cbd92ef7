package upload

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

const (
	// MaxFileBytes is the largest file accepted by any upload path.
	MaxFileBytes int64 = 10 * 1024 * 1024
	// SingleCallThreshold is the largest file sent in one request.
	SingleCallThreshold int64 = 2 * 1024 * 1024
	// ChunkSize is the fixed chunk length for larger files. The last chunk
	// may be shorter.
	ChunkSize int64 = 1536 * 1024
)

var (
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedType     = errors.New("unsupported file type")
	ErrChunkTransferFailed = errors.New("chunk transfer failed")
)

// DefaultDocumentTypes are the content types accepted for non-image uploads.
var DefaultDocumentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"text/csv",
}

// DefaultImageTypes are the content types accepted for image uploads.
var DefaultImageTypes = []string{
	"image/png",
	"image/jpeg",
	"image/jpg",
	"image/gif",
	"image/webp",
}

// Policy is the size and type rule set shared by the client coordinator and
// the server upload handlers.
type Policy struct {
	MaxFileBytes        int64
	SingleCallThreshold int64
	ChunkSize           int64
	DocumentTypes       []string
	ImageTypes          []string
}

// DefaultPolicy returns the standard limits and allow-lists.
func DefaultPolicy() Policy {
	return Policy{
		MaxFileBytes:        MaxFileBytes,
		SingleCallThreshold: SingleCallThreshold,
		ChunkSize:           ChunkSize,
		DocumentTypes:       append([]string(nil), DefaultDocumentTypes...),
		ImageTypes:          append([]string(nil), DefaultImageTypes...),
	}
}

// Normalized fills unset limits from the defaults and keeps
// ChunkSize <= SingleCallThreshold <= MaxFileBytes.
func (p Policy) Normalized() Policy {
	if p.MaxFileBytes <= 0 {
		p.MaxFileBytes = MaxFileBytes
	}
	if p.SingleCallThreshold <= 0 {
		p.SingleCallThreshold = SingleCallThreshold
	}
	if p.SingleCallThreshold > p.MaxFileBytes {
		p.SingleCallThreshold = p.MaxFileBytes
	}
	if p.ChunkSize <= 0 {
		p.ChunkSize = ChunkSize
	}
	if p.ChunkSize > p.SingleCallThreshold {
		p.ChunkSize = p.SingleCallThreshold
	}
	if p.DocumentTypes == nil {
		p.DocumentTypes = append([]string(nil), DefaultDocumentTypes...)
	}
	if p.ImageTypes == nil {
		p.ImageTypes = append([]string(nil), DefaultImageTypes...)
	}
	return p
}

// Validate checks a declared file against the size limit and the allow-list
// chosen by isImage. An empty allow-list accepts any type.
func (p Policy) Validate(size int64, contentType string, isImage bool) error {
	if size < 0 {
		return fmt.Errorf("file size must be >= 0")
	}
	if size > p.MaxFileBytes {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, p.MaxFileBytes)
	}

	allowed := p.DocumentTypes
	if isImage {
		allowed = p.ImageTypes
	}
	if len(allowed) == 0 {
		return nil
	}
	normalized := NormalizeContentType(contentType)
	for _, candidate := range allowed {
		if NormalizeContentType(candidate) == normalized {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
}

// UsesChunks reports whether a file of size must go through the chunked path.
func (p Policy) UsesChunks(size int64) bool {
	return size > p.SingleCallThreshold
}

// ChunkCount is the number of chunk calls needed for size bytes.
func (p Policy) ChunkCount(size int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + p.ChunkSize - 1) / p.ChunkSize)
}

// NormalizeContentType lowercases a media type and drops parameters.
func NormalizeContentType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strings.ToLower(mediaType)
}
