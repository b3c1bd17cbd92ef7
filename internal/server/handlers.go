package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"eduops/internal/api"
	"eduops/internal/blobstore"
	"eduops/internal/store"
	"eduops/internal/upload"
)

const defaultJSONMaxBody = 1 << 20 // 1 MiB

// apiError carries the HTTP status and both error codes for a failure.
type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

// makeAPIError wraps err unless it already carries a status.
func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	if existing, ok := asAPIError(err); ok {
		return existing
	}
	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func asAPIError(err error) (apiError, bool) {
	var existing apiError
	if errors.As(err, &existing) && existing.status != 0 {
		return existing, true
	}
	return apiError{}, false
}

func badRequest(err error) error {
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, "not_found", code, err)
}

func conflictCode(err error, code int) error {
	return makeAPIError(http.StatusConflict, "conflict", code, err)
}

func unauthorized(err error) error {
	return makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized, err)
}

func forbidden(err error) error {
	return makeAPIError(http.StatusForbidden, "forbidden", ErrCodeForbidden, err)
}

func storeFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeStoreFailure, err)
}

func blobStoreFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeBlobStoreFailure, err)
}

// sentinelErrors maps package sentinels onto responses. First match wins.
var sentinelErrors = []struct {
	target  error
	status  int
	code    string
	errCode int
}{
	{upload.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large", ErrCodeFileTooLarge},
	{upload.ErrUnsupportedType, http.StatusUnsupportedMediaType, "unsupported_type", ErrCodeUnsupportedType},
	{blobstore.ErrSizeMismatch, http.StatusUnprocessableEntity, "size_mismatch", ErrCodeSizeMismatch},
	{blobstore.ErrFinalized, http.StatusConflict, "conflict", ErrCodeUploadFinalized},
	{store.ErrDuplicateID, http.StatusConflict, "conflict", ErrCodeAttachmentIDExists},
	{store.ErrNotFound, http.StatusNotFound, "not_found", ErrCodeAttachmentNotFound},
	{blobstore.ErrNotFound, http.StatusNotFound, "not_found", ErrCodeAttachmentNotFound},
}

// classifyServiceError turns any service error into an apiError. Unknown
// errors are storage failures.
func classifyServiceError(err error) error {
	if err == nil {
		return nil
	}
	if existing, ok := asAPIError(err); ok {
		return existing
	}
	for _, m := range sentinelErrors {
		if errors.Is(err, m.target) {
			return apiError{status: m.status, code: m.code, errCode: m.errCode, err: err}
		}
	}
	return storeFailure(err)
}

func httpStatusFromError(err error) int {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

// statusCodeNames is the string code used when an error carries none.
var statusCodeNames = map[int]string{
	http.StatusBadRequest:          "invalid_argument",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusConflict:            "conflict",
	http.StatusTooManyRequests:     "resource_exhausted",
	http.StatusInternalServerError: "internal",
}

func describeError(status int, err error) (string, int) {
	code := statusCodeNames[status]
	errCode := defaultErrorCodeByStatus(status)
	var apiErr apiError
	if errors.As(err, &apiErr) {
		if apiErr.code != "" {
			code = apiErr.code
		}
		if apiErr.errCode > 0 {
			errCode = apiErr.errCode
		}
	}
	return code, errCode
}

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	code, errCode := describeError(status, err)

	attrs := []any{"status", status, "code", code, "error_code", errCode, "error", err}
	if r != nil {
		attrs = append(attrs, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		if id := requestIDFromContext(r.Context()); id != "" {
			attrs = append(attrs, "request_id", id)
		}
	}

	message := err.Error()
	if status >= 500 {
		// Details stay in the log.
		message = "internal error"
	}
	s.log().Log(contextOf(r), rejectionLevel(status), "request failed", attrs...)
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: errCode})
}

func contextOf(r *http.Request) context.Context {
	if r == nil {
		return context.Background()
	}
	return r.Context()
}

func rejectionLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	err = classifyServiceError(err)
	s.writeErrorReq(w, r, httpStatusFromError(err), err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

// classifyDecodeJSONError reports body decode failures as 400s.
func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	default:
		return badRequestCode(err, ErrCodeInvalidJSON)
	}
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	return true
}

// withSlot runs fn while holding one slot of sem.
func (s *Server) withSlot(w http.ResponseWriter, r *http.Request, sem *semaphore.Weighted, name string, fn func()) {
	if !s.tryAcquire(sem, w, r, name) {
		return
	}
	if sem != nil {
		defer sem.Release(1)
	}
	fn()
}

func (s *Server) pathIDOrBadRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := requirePathID(r, "id")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return "", false
	}
	return id, true
}

func (s *Server) attachmentIDOrBadRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("attachment_id"))
	if err := blobstore.ValidateID(id); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid attachment_id"), ErrCodeInvalidID))
		return "", false
	}
	return id, true
}

func requirePathID(r *http.Request, key string) (string, error) {
	id := strings.TrimSpace(r.PathValue(key))
	if !validateID(id) {
		return "", badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidID)
	}
	return id, nil
}

func queryIntDefault(r *http.Request, key string, def int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(value)
	switch {
	case err != nil:
		return 0, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	case parsed < 0:
		return 0, badRequestCode(fmt.Errorf("%s must be >= 0", key), ErrCodeInvalidQuery)
	}
	return parsed, nil
}

// queryOptionalBool returns nil when key is absent.
func queryOptionalBool(r *http.Request, key string) (*bool, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	}
	return &parsed, nil
}

// maxWindow bounds query windows so now+window stays a four-digit year.
const maxWindow = 100 * 365 * 24 * time.Hour

// parseWindow accepts a Go duration, a bare number of seconds, or a day count
// such as "14d". Empty means the server default.
func parseWindow(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	window, ok := windowValue(value)
	if !ok {
		return 0, badRequestCode(fmt.Errorf("invalid window %q: expected a positive duration", value), ErrCodeInvalidTimeWindow)
	}
	if window > maxWindow {
		return 0, badRequestCode(fmt.Errorf("window %q exceeds %s", value, maxWindow), ErrCodeInvalidTimeWindow)
	}
	return window, nil
}

// windowValue parses value without overflowing; counts beyond maxWindow
// come back as maxWindow+1.
func windowValue(value string) (time.Duration, bool) {
	unit := time.Second
	count := value
	if days, ok := strings.CutSuffix(value, "d"); ok {
		unit, count = 24*time.Hour, days
	} else if d, err := time.ParseDuration(value); err == nil {
		return d, d > 0
	}
	n, err := strconv.ParseInt(count, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) && !strings.HasPrefix(count, "-") {
			return maxWindow + 1, true
		}
		return 0, false
	}
	if n <= 0 {
		return 0, false
	}
	if n > int64(maxWindow/unit) {
		return maxWindow + 1, true
	}
	return time.Duration(n) * unit, true
}
