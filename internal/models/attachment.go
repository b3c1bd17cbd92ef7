package models

import (
	"fmt"
	"strings"
	"time"
)

// AttachmentKind names the parent entity an attachment hangs off. Each kind
// owns its own registry partition.
type AttachmentKind string

const (
	AttachmentKindProgram       AttachmentKind = "program"
	AttachmentKindActivity      AttachmentKind = "activity"
	AttachmentKindDocumentation AttachmentKind = "documentation"
)

// AttachmentKinds lists every registry partition in a stable order.
var AttachmentKinds = []AttachmentKind{
	AttachmentKindProgram,
	AttachmentKindActivity,
	AttachmentKindDocumentation,
}

var validAttachmentKinds = map[AttachmentKind]struct{}{
	AttachmentKindProgram:       {},
	AttachmentKindActivity:      {},
	AttachmentKindDocumentation: {},
}

// Attachment is the registry metadata for one uploaded file. The bytes live in
// the blob store under the same id.
type Attachment struct {
	ID              string         `json:"id"`
	Kind            AttachmentKind `json:"kind"`
	ProgramID       string         `json:"program_id"`
	ActivityID      string         `json:"activity_id,omitempty"`
	DocumentationID string         `json:"documentation_id,omitempty"`
	Filename        string         `json:"filename"`
	ContentType     string         `json:"content_type"`
	ByteSize        int64          `json:"byte_size"`
	SHA256          string         `json:"sha256"`
	IsImage         bool           `json:"is_image"`
	IsArchived      bool           `json:"is_archived"`
	UploadedAt      time.Time      `json:"uploaded_at"`
	UploadedBy      string         `json:"uploaded_by,omitempty"`
	ArchivedAt      *time.Time     `json:"archived_at,omitempty"`
}

// ParentID returns the id of the direct parent for the attachment's kind.
func (a Attachment) ParentID() string {
	switch a.Kind {
	case AttachmentKindActivity:
		return a.ActivityID
	case AttachmentKindDocumentation:
		return a.DocumentationID
	default:
		return a.ProgramID
	}
}

// ParentRef identifies where an attachment is being bound. ProgramID is the
// owning program resolved at creation time.
type ParentRef struct {
	Kind      AttachmentKind
	ID        string
	ProgramID string
}

// Apply copies the parent linkage onto an attachment.
func (p ParentRef) Apply(a *Attachment) {
	a.Kind = p.Kind
	a.ProgramID = p.ProgramID
	a.ActivityID = ""
	a.DocumentationID = ""
	switch p.Kind {
	case AttachmentKindActivity:
		a.ActivityID = p.ID
	case AttachmentKindDocumentation:
		a.DocumentationID = p.ID
	}
}

func ParseAttachmentKind(raw string) (AttachmentKind, error) {
	value := AttachmentKind(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("attachment kind is required")
	}
	if _, ok := validAttachmentKinds[value]; !ok {
		return "", fmt.Errorf("invalid attachment kind: %s", value)
	}
	return value, nil
}
