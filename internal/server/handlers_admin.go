package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"eduops/internal/api"
)

func (s *Server) handleAdminGCBlobs(w http.ResponseWriter, r *http.Request) {
	var req api.BlobGCRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if !req.DryRun && r.Header.Get("X-Confirm") != "true" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("non-dry-run requires X-Confirm: true header"), ErrCodeMissingRequired))
		return
	}
	if req.BatchSize < 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("batch_size must be >= 0"), ErrCodeInvalidQuery))
		return
	}

	minAge := s.gcMinAge
	if raw := strings.TrimSpace(req.MinAge); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid min_age %q", raw), ErrCodeInvalidTimeWindow))
			return
		}
		minAge = parsed
	}

	s.withSlot(w, r, s.gcSlots, "blob gc", func() {
		result, err := s.collector.CollectOrphans(r.Context(), GCOptions{
			DryRun:    req.DryRun,
			MinAge:    minAge,
			BatchSize: req.BatchSize,
		})
		if err != nil {
			s.writeServiceError(w, r, blobStoreFailure(err))
			return
		}

		s.writeJSON(w, http.StatusOK, api.BlobGCResponse{
			CandidateCount: result.CandidateCount,
			DeletedCount:   result.DeletedCount,
			FailedCount:    result.FailedCount,
			ReclaimedBytes: result.ReclaimedBytes,
			DryRun:         result.DryRun,
		})
	})
}
