package api

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse describes server and database state.
type InfoResponse struct {
	DBPath         string         `json:"db_path"`
	SchemaVersion  int            `json:"schema_version"`
	BlobBackend    string         `json:"blob_backend"`
	Attachments    map[string]int `json:"attachments"`
	Archived       int            `json:"archived_attachments"`
	TimelineEvents int            `json:"timeline_events"`
	Programs       int            `json:"programs"`
	AuthRequired   bool           `json:"auth_required"`
}

// BlobGCRequest configures one orphan sweep.
type BlobGCRequest struct {
	DryRun    bool   `json:"dry_run"`
	BatchSize int    `json:"batch_size,omitempty"`
	MinAge    string `json:"min_age,omitempty"`
}

// BlobGCResponse reports a sweep.
type BlobGCResponse struct {
	CandidateCount int   `json:"candidate_count"`
	DeletedCount   int   `json:"deleted_count"`
	FailedCount    int   `json:"failed_count"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run"`
}
