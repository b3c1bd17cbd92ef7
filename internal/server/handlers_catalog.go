package server

import (
	"net/http"

	"eduops/internal/api"
	"eduops/internal/models"
)

func (s *Server) handleCreateProgram(w http.ResponseWriter, r *http.Request) {
	var req api.ProgramCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	program, err := s.catalogService.CreateProgram(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, program)
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := s.catalogService.ListPrograms(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if programs == nil {
		programs = []models.Program{}
	}
	s.writeJSON(w, http.StatusOK, programs)
}

func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	program, err := s.catalogService.GetProgram(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, program)
}

func (s *Server) handleUpdateProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.ProgramUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	program, err := s.catalogService.UpdateProgram(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, program)
}

func (s *Server) handleArchiveProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.catalogService.ArchiveProgram(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "archived": true})
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	programID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.ActivityCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	activity, err := s.catalogService.CreateActivity(r.Context(), programID, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, activity)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	programID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	activities, err := s.catalogService.ListActivities(r.Context(), programID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	s.writeJSON(w, http.StatusOK, activities)
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	activity, err := s.catalogService.GetActivity(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, activity)
}

func (s *Server) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.ActivityUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	activity, err := s.catalogService.UpdateActivity(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, activity)
}

func (s *Server) handleArchiveActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.catalogService.ArchiveActivity(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "archived": true})
}

func (s *Server) handleCreateDocumentation(w http.ResponseWriter, r *http.Request) {
	activityID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.DocumentationCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	entry, err := s.catalogService.CreateDocumentationEntry(r.Context(), activityID, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListDocumentation(w http.ResponseWriter, r *http.Request) {
	activityID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	entries, err := s.catalogService.ListDocumentationEntries(r.Context(), activityID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.DocumentationEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetDocumentation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	entry, err := s.catalogService.GetDocumentationEntry(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpdateDocumentation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.DocumentationUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	entry, err := s.catalogService.UpdateDocumentationEntry(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleArchiveDocumentation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.catalogService.ArchiveDocumentationEntry(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "archived": true})
}

func (s *Server) handleCreateScheduleEvent(w http.ResponseWriter, r *http.Request) {
	programID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.ScheduleEventCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	event, err := s.catalogService.CreateScheduleEvent(r.Context(), programID, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, event)
}

func (s *Server) handleGetScheduleEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	event, err := s.catalogService.GetScheduleEvent(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleUpdateScheduleEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.ScheduleEventUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	event, err := s.catalogService.UpdateScheduleEvent(r.Context(), id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleArchiveScheduleEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.catalogService.ArchiveScheduleEvent(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "archived": true})
}
