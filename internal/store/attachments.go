package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"eduops/internal/models"
)

// partition describes the table backing one registry kind.
type partition struct {
	table        string
	parentColumn string
}

var partitions = map[models.AttachmentKind]partition{
	models.AttachmentKindProgram:       {table: "program_attachments", parentColumn: "program_id"},
	models.AttachmentKindActivity:      {table: "activity_attachments", parentColumn: "activity_id"},
	models.AttachmentKindDocumentation: {table: "documentation_attachments", parentColumn: "documentation_id"},
}

const attachmentValueColumns = "filename, content_type, byte_size, sha256, is_image, is_archived, uploaded_at, uploaded_by, archived_at"

// Registry is the metadata store for one attachment partition. All three
// partitions share the attachment_ids ledger so an id is unique across them.
type Registry struct {
	db   *sql.DB
	kind models.AttachmentKind
	part partition
}

// Attachments returns the registry for kind.
func (s *Store) Attachments(kind models.AttachmentKind) (*Registry, error) {
	part, ok := partitions[kind]
	if !ok {
		return nil, fmt.Errorf("invalid attachment kind: %s", kind)
	}
	return &Registry{db: s.db, kind: kind, part: part}, nil
}

// Kind reports the partition this registry serves.
func (r *Registry) Kind() models.AttachmentKind { return r.kind }

func (r *Registry) columns() string {
	if r.part.parentColumn == "program_id" {
		return "id, program_id, " + attachmentValueColumns
	}
	return "id, " + r.part.parentColumn + ", program_id, " + attachmentValueColumns
}

// Create inserts attachment under parent. It fails with ErrDuplicateID if any
// partition already holds the id; nothing is written in that case.
func (r *Registry) Create(ctx context.Context, parent models.ParentRef, attachment *models.Attachment) (err error) {
	if attachment == nil {
		return fmt.Errorf("attachment is required")
	}
	if parent.Kind != r.kind {
		return fmt.Errorf("parent kind %s does not match %s registry", parent.Kind, r.kind)
	}
	if strings.TrimSpace(attachment.ID) == "" {
		return fmt.Errorf("attachment id is required")
	}
	if strings.TrimSpace(parent.ID) == "" || strings.TrimSpace(parent.ProgramID) == "" {
		return fmt.Errorf("parent id and program id are required")
	}

	parent.Apply(attachment)
	if attachment.UploadedAt.IsZero() {
		attachment.UploadedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO attachment_ids (id, kind, created_at) VALUES (?, ?, ?)",
		attachment.ID, string(r.kind), dbFormatTime(attachment.UploadedAt),
	); err != nil {
		if isUniqueConstraint(err) {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, attachment.ID)
		}
		return err
	}

	args := []any{attachment.ID, parent.ID}
	if r.part.parentColumn != "program_id" {
		args = append(args, parent.ProgramID)
	}
	args = append(args,
		attachment.Filename,
		attachment.ContentType,
		attachment.ByteSize,
		nullIfEmpty(attachment.SHA256),
		boolInt(attachment.IsImage),
		boolInt(attachment.IsArchived),
		dbFormatTime(attachment.UploadedAt),
		nullIfEmpty(attachment.UploadedBy),
		nullTime(attachment.ArchivedAt),
	)
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO "+r.part.table+" ("+r.columns()+") VALUES ("+placeholders(len(args))+")",
		args...,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Get returns one attachment from this partition, archived or not. It returns
// nil when the id is not in this partition.
func (r *Registry) Get(ctx context.Context, id string) (*models.Attachment, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+r.columns()+" FROM "+r.part.table+" WHERE id = ?", id)
	return r.scan(row)
}

// ListFilter narrows List results.
type ListFilter struct {
	// Images restricts to image (true) or non-image (false) attachments.
	Images *bool
}

// List returns the non-archived attachments of parentID, oldest first.
func (r *Registry) List(ctx context.Context, parentID string, filter ListFilter) ([]models.Attachment, error) {
	query := "SELECT " + r.columns() + " FROM " + r.part.table + " WHERE " + r.part.parentColumn + " = ? AND is_archived = 0"
	args := []any{parentID}
	if filter.Images != nil {
		query += " AND is_image = ?"
		args = append(args, boolInt(*filter.Images))
	}
	query += " ORDER BY uploaded_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := []models.Attachment{}
	for rows.Next() {
		attachment, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		if attachment != nil {
			attachments = append(attachments, *attachment)
		}
	}
	return attachments, rows.Err()
}

// Archive marks id archived. changed is false when it was already archived.
// Ids outside this partition yield ErrNotFound.
func (r *Registry) Archive(ctx context.Context, id string, at time.Time) (_ *models.Attachment, changed bool, err error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE "+r.part.table+" SET is_archived = 1, archived_at = ? WHERE id = ? AND is_archived = 0",
		dbFormatTime(at), id,
	)
	if err != nil {
		return nil, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	attachment, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if attachment == nil {
		return nil, false, fmt.Errorf("%w: %s attachment %s", ErrNotFound, r.kind, id)
	}
	return attachment, affected > 0, nil
}

func (r *Registry) scan(scanner rowScanner) (*models.Attachment, error) {
	attachment := models.Attachment{Kind: r.kind}

	var parentID string
	var sha, uploadedBy, archivedAt sql.NullString
	var uploadedAt string
	var isImage, isArchived int

	dest := []any{&attachment.ID, &parentID}
	if r.part.parentColumn != "program_id" {
		dest = append(dest, &attachment.ProgramID)
	}
	dest = append(dest,
		&attachment.Filename,
		&attachment.ContentType,
		&attachment.ByteSize,
		&sha,
		&isImage,
		&isArchived,
		&uploadedAt,
		&uploadedBy,
		&archivedAt,
	)
	if err := scanner.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	switch r.kind {
	case models.AttachmentKindProgram:
		attachment.ProgramID = parentID
	case models.AttachmentKindActivity:
		attachment.ActivityID = parentID
	case models.AttachmentKindDocumentation:
		attachment.DocumentationID = parentID
	}
	attachment.SHA256 = sha.String
	attachment.UploadedBy = uploadedBy.String
	attachment.IsImage = isImage != 0
	attachment.IsArchived = isArchived != 0

	parsed, err := dbParseTime(uploadedAt)
	if err != nil {
		return nil, err
	}
	attachment.UploadedAt = parsed
	if archivedAt.Valid {
		parsedArchived, err := dbParseTime(archivedAt.String)
		if err != nil {
			return nil, err
		}
		attachment.ArchivedAt = &parsedArchived
	}
	return &attachment, nil
}

// AttachmentKindOf reports which partition holds id. ok is false when no
// registry references it.
func (s *Store) AttachmentKindOf(ctx context.Context, id string) (kind models.AttachmentKind, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, "SELECT kind FROM attachment_ids WHERE id = ?", id).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return models.AttachmentKind(raw), true, nil
}

// ReferencedAttachmentIDs returns the subset of ids held by any registry
// partition, archived rows included.
func (s *Store) ReferencedAttachmentIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	referenced := make(map[string]struct{}, len(ids))
	const batch = 500
	for start := 0; start < len(ids); start += batch {
		end := start + batch
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := s.db.QueryContext(ctx,
			"SELECT id FROM attachment_ids WHERE id IN ("+placeholders(len(chunk))+")", args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			referenced[id] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return referenced, nil
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
