package server

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"eduops/internal/api"
	"eduops/internal/models"
	"eduops/internal/upload"
)

const (
	attachmentMultipartOverhead = 1 << 20 // 1 MiB
	attachmentMultipartMemory   = 8 << 20 // 8 MiB
)

func (s *Server) handleUploadAttachment(kind models.AttachmentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := s.pathIDOrBadRequest(w, r)
		if !ok {
			return
		}

		policy := s.attachmentService.Policy()
		r.Body = http.MaxBytesReader(w, r.Body, policy.SingleCallThreshold+attachmentMultipartOverhead)
		if err := r.ParseMultipartForm(attachmentMultipartMemory); err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
			return
		}

		file, header, err := r.FormFile("content")
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("content is required"), ErrCodeMissingRequired))
			return
		}
		defer file.Close()

		byteSize := header.Size
		if raw := strings.TrimSpace(r.FormValue("byte_size")); raw != "" {
			byteSize, err = strconv.ParseInt(raw, 10, 64)
			if err != nil || byteSize < 0 {
				s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(fmt.Errorf("invalid byte_size")))
				return
			}
		}
		isImage, err := formBool(r, "is_image")
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}

		in := UploadInput{
			Target: upload.Target{
				Kind:      kind,
				ParentID:  parentID,
				ProgramID: strings.TrimSpace(r.FormValue("program_id")),
			},
			Meta: upload.Metadata{
				ID:          firstNonEmpty(r.FormValue("id"), upload.NewAttachmentID()),
				Filename:    firstNonEmpty(r.FormValue("filename"), header.Filename),
				ContentType: firstNonEmpty(r.FormValue("content_type"), header.Header.Get("Content-Type")),
				ByteSize:    byteSize,
				IsImage:     isImage,
			},
		}

		attachment, err := s.attachmentService.UploadSingle(r.Context(), in, file)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, attachment)
	}
}

func (s *Server) handleAppendChunk(w http.ResponseWriter, r *http.Request) {
	id, ok := s.attachmentIDOrBadRequest(w, r)
	if !ok {
		return
	}
	seq, err := queryIntDefault(r, "seq", 0)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	// One byte of slack lets the service report an oversized chunk itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.attachmentService.Policy().ChunkSize+1)
	chunk, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return
	}
	if len(chunk) == 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("chunk body is empty"), ErrCodeMissingRequired))
		return
	}

	blob, err := s.attachmentService.AppendChunk(r.Context(), id, chunk)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ChunkResponse{
		ID:        blob.ID,
		Seq:       seq,
		State:     string(blob.State),
		SizeBytes: blob.SizeBytes,
	})
}

func (s *Server) handleFinalizeAttachment(kind models.AttachmentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := s.pathIDOrBadRequest(w, r)
		if !ok {
			return
		}
		id, ok := s.attachmentIDOrBadRequest(w, r)
		if !ok {
			return
		}

		var req api.AttachmentFinalizeRequest
		if !s.decodeJSONReq(w, r, &req) {
			return
		}

		attachment, err := s.attachmentService.Finalize(r.Context(), UploadInput{
			Target: upload.Target{Kind: kind, ParentID: parentID, ProgramID: req.ProgramID},
			Meta: upload.Metadata{
				ID:          id,
				Filename:    req.Filename,
				ContentType: req.ContentType,
				ByteSize:    req.ByteSize,
				IsImage:     req.IsImage,
			},
		})
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, attachment)
	}
}

func (s *Server) handleListAttachments(kind models.AttachmentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, ok := s.pathIDOrBadRequest(w, r)
		if !ok {
			return
		}
		images, err := queryOptionalBool(r, "images")
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}

		attachments, err := s.attachmentService.List(r.Context(), kind, parentID, images)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if attachments == nil {
			attachments = []models.Attachment{}
		}
		s.writeJSON(w, http.StatusOK, attachments)
	}
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := s.attachmentRef(w, r)
	if !ok {
		return
	}
	attachment, err := s.attachmentService.Get(r.Context(), kind, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, attachment)
}

func (s *Server) handleGetAttachmentContent(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := s.attachmentRef(w, r)
	if !ok {
		return
	}
	content, err := s.attachmentService.OpenContent(r.Context(), kind, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer content.Reader.Close()

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(content.SizeBytes, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.Filename}))
	if content.SHA256 != "" {
		w.Header().Set("X-Content-SHA256", content.SHA256)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, content.Reader); err != nil {
		s.log().Warn("stream attachment content", "id", id, "kind", kind, "error", err)
	}
}

func (s *Server) handleArchiveAttachment(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := s.attachmentRef(w, r)
	if !ok {
		return
	}
	attachment, err := s.attachmentService.Archive(r.Context(), kind, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ArchiveResponse{
		ID:       attachment.ID,
		Kind:     string(kind),
		Archived: attachment.IsArchived,
	})
}

func (s *Server) attachmentRef(w http.ResponseWriter, r *http.Request) (models.AttachmentKind, string, bool) {
	kind, err := kindFromSegment(r.PathValue("kind"))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return "", "", false
	}
	id, ok := s.attachmentIDOrBadRequest(w, r)
	if !ok {
		return "", "", false
	}
	return kind, id, true
}

func formBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest(fmt.Errorf("invalid %s", key))
	}
	return value, nil
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidArgument)
}
