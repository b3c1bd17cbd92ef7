package server

import (
	"net/http"

	"eduops/internal/api"
	"eduops/internal/models"
)

const defaultTimelineLimit = 200

func (s *Server) handleProgramTimeline(w http.ResponseWriter, r *http.Request) {
	programID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	limit, err := queryIntDefault(r, "limit", defaultTimelineLimit)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	events, err := s.timelineService.QueryByProgram(r.Context(), programID, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]api.TimelineEventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, api.TimelineEventResponse{TimelineEvent: event, Summary: event.Humanize()})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r.URL.Query().Get("window"))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	from, to, events, err := s.timelineService.QueryUpcoming(r.Context(), window)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []models.ScheduleEvent{}
	}
	s.writeJSON(w, http.StatusOK, api.UpcomingResponse{From: from, To: to, Events: events})
}
