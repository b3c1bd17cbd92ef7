package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"eduops/internal/models"
	"eduops/internal/upload"
)

// UploadTransport sends coordinator calls to the HTTP API.
type UploadTransport struct {
	client *Client
}

var _ upload.Transport = (*UploadTransport)(nil)

// NewUploadTransport wraps c as an upload.Transport.
func NewUploadTransport(c *Client) *UploadTransport {
	return &UploadTransport{client: c}
}

// UploadSingle posts the whole file as multipart form data.
func (t *UploadTransport) UploadSingle(ctx context.Context, target upload.Target, meta upload.Metadata, data []byte) (*models.Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"id", meta.ID},
		{"filename", meta.Filename},
		{"content_type", meta.ContentType},
		{"byte_size", strconv.FormatInt(meta.ByteSize, 10)},
		{"is_image", strconv.FormatBool(meta.IsImage)},
	}
	if target.ProgramID != "" {
		fields = append(fields, [2]string{"program_id", target.ProgramID})
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("content", meta.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var attachment models.Attachment
	err = t.client.send(ctx, http.MethodPost, parentPath(target.Kind, target.ParentID)+"/attachments", nil, &buf, mw.FormDataContentType(), &attachment)
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}

// AppendChunk posts one raw chunk.
func (t *UploadTransport) AppendChunk(ctx context.Context, id string, seq int, chunk []byte) error {
	query := url.Values{"seq": []string{strconv.Itoa(seq)}}
	return t.client.send(ctx, http.MethodPost, "/v1/uploads/"+url.PathEscape(id)+"/chunks", query, bytes.NewReader(chunk), "application/octet-stream", nil)
}

// Finalize completes a chunked upload.
func (t *UploadTransport) Finalize(ctx context.Context, target upload.Target, meta upload.Metadata) (*models.Attachment, error) {
	req := AttachmentFinalizeRequest{
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		ByteSize:    meta.ByteSize,
		IsImage:     meta.IsImage,
		ProgramID:   target.ProgramID,
	}
	var attachment models.Attachment
	path := parentPath(target.Kind, target.ParentID) + "/attachments/" + url.PathEscape(meta.ID) + "/finalize"
	if err := t.client.do(ctx, http.MethodPost, path, nil, req, &attachment); err != nil {
		return nil, err
	}
	return &attachment, nil
}
