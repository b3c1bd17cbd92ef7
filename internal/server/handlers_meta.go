package server

import (
	"net/http"

	"eduops/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.StoreInfo(r.Context())
	if err != nil {
		s.writeServiceError(w, r, storeFailure(err))
		return
	}

	resp := api.InfoResponse{
		DBPath:         s.dbPath,
		SchemaVersion:  info.SchemaVersion,
		BlobBackend:    s.blobs.Backend(),
		Attachments:    info.Attachments,
		Archived:       info.Archived,
		TimelineEvents: info.TimelineEvents,
		Programs:       info.Programs,
		AuthRequired:   s.issuer != nil,
	}

	s.writeJSON(w, http.StatusOK, resp)
}
