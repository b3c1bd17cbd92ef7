package api

// AttachmentFinalizeRequest completes a chunked upload. ProgramID is required
// for documentation targets.
type AttachmentFinalizeRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	ByteSize    int64  `json:"byte_size"`
	IsImage     bool   `json:"is_image"`
	ProgramID   string `json:"program_id,omitempty"`
}

// ChunkResponse reports the blob after a chunk was appended.
type ChunkResponse struct {
	ID        string `json:"id"`
	Seq       int    `json:"seq"`
	State     string `json:"state"`
	SizeBytes int64  `json:"size_bytes"`
}

// ArchiveResponse is returned by attachment deletes.
type ArchiveResponse struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Archived bool   `json:"archived"`
}
