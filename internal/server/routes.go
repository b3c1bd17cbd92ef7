package server

import (
	"net/http"

	"eduops/internal/models"
)

// collectionSegment is the path segment listing parents of each kind.
var collectionSegment = map[models.AttachmentKind]string{
	models.AttachmentKindProgram:       "programs",
	models.AttachmentKindActivity:      "activities",
	models.AttachmentKindDocumentation: "documentation",
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Programs.
	mux.HandleFunc("POST /v1/programs", s.handleCreateProgram)
	mux.HandleFunc("GET /v1/programs", s.handleListPrograms)
	mux.HandleFunc("GET /v1/programs/{id}", s.handleGetProgram)
	mux.HandleFunc("PATCH /v1/programs/{id}", s.handleUpdateProgram)
	mux.HandleFunc("DELETE /v1/programs/{id}", s.handleArchiveProgram)
	mux.HandleFunc("GET /v1/programs/{id}/timeline", s.handleProgramTimeline)

	// Activities.
	mux.HandleFunc("POST /v1/programs/{id}/activities", s.handleCreateActivity)
	mux.HandleFunc("GET /v1/programs/{id}/activities", s.handleListActivities)
	mux.HandleFunc("GET /v1/activities/{id}", s.handleGetActivity)
	mux.HandleFunc("PATCH /v1/activities/{id}", s.handleUpdateActivity)
	mux.HandleFunc("DELETE /v1/activities/{id}", s.handleArchiveActivity)

	// Documentation entries.
	mux.HandleFunc("POST /v1/activities/{id}/documentation", s.handleCreateDocumentation)
	mux.HandleFunc("GET /v1/activities/{id}/documentation", s.handleListDocumentation)
	mux.HandleFunc("GET /v1/documentation/{id}", s.handleGetDocumentation)
	mux.HandleFunc("PATCH /v1/documentation/{id}", s.handleUpdateDocumentation)
	mux.HandleFunc("DELETE /v1/documentation/{id}", s.handleArchiveDocumentation)

	// Schedule.
	mux.HandleFunc("POST /v1/programs/{id}/schedule", s.handleCreateScheduleEvent)
	mux.HandleFunc("GET /v1/schedule/upcoming", s.handleUpcoming)
	mux.HandleFunc("GET /v1/schedule/{id}", s.handleGetScheduleEvent)
	mux.HandleFunc("PATCH /v1/schedule/{id}", s.handleUpdateScheduleEvent)
	mux.HandleFunc("DELETE /v1/schedule/{id}", s.handleArchiveScheduleEvent)

	// Attachment uploads, one route set per registry.
	for _, kind := range models.AttachmentKinds {
		base := "/v1/" + collectionSegment[kind] + "/{id}/attachments"
		mux.HandleFunc("POST "+base, s.handleUploadAttachment(kind))
		mux.HandleFunc("GET "+base, s.handleListAttachments(kind))
		mux.HandleFunc("POST "+base+"/{attachment_id}/finalize", s.handleFinalizeAttachment(kind))
	}
	mux.HandleFunc("POST /v1/uploads/{attachment_id}/chunks", s.handleAppendChunk)

	// Attachment reads and archival.
	mux.HandleFunc("GET /v1/attachments/{kind}/{attachment_id}", s.handleGetAttachment)
	mux.HandleFunc("GET /v1/attachments/{kind}/{attachment_id}/content", s.handleGetAttachmentContent)
	mux.HandleFunc("DELETE /v1/attachments/{kind}/{attachment_id}", s.handleArchiveAttachment)

	// Admin.
	mux.HandleFunc("POST /v1/admin/gc-blobs", s.handleAdminGCBlobs)

	return mux
}
