package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"eduops/internal/blobstore"
	"eduops/internal/models"
	storepkg "eduops/internal/store"
)

func newTestServer(t *testing.T, opts Options) (*Server, *storepkg.Store) {
	t.Helper()

	st, err := storepkg.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	blobs, err := blobstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New("127.0.0.1:0", st, blobs, opts, logger), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var errResp struct {
		ErrorCode int `json:"error_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, w.Body.String())
	}
	return errResp.ErrorCode
}

func uploadMultipart(t *testing.T, h http.Handler, path string, fields map[string]string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	part, err := mw.CreateFormFile("content", fields["filename"])
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postChunk(t *testing.T, h http.Handler, id string, seq int, chunk []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/uploads/"+id+"/chunks?seq="+strconv.Itoa(seq), bytes.NewReader(chunk))
	req.Header.Set("Content-Type", "application/octet-stream")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func seedProgram(t *testing.T, h http.Handler, name string) models.Program {
	t.Helper()
	var program models.Program
	w := doJSON(t, h, http.MethodPost, "/v1/programs", map[string]string{"name": name}, &program)
	if w.Code != http.StatusCreated {
		t.Fatalf("create program: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	return program
}

func seedActivity(t *testing.T, h http.Handler, programID, title string) models.Activity {
	t.Helper()
	var activity models.Activity
	w := doJSON(t, h, http.MethodPost, "/v1/programs/"+programID+"/activities", map[string]string{"title": title}, &activity)
	if w.Code != http.StatusCreated {
		t.Fatalf("create activity: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	return activity
}

func seedDocumentation(t *testing.T, h http.Handler, activityID, content string) models.DocumentationEntry {
	t.Helper()
	var entry models.DocumentationEntry
	w := doJSON(t, h, http.MethodPost, "/v1/activities/"+activityID+"/documentation", map[string]string{"content": content}, &entry)
	if w.Code != http.StatusCreated {
		t.Fatalf("create documentation: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	return entry
}

func timelineTypes(t *testing.T, h http.Handler, programID string) []models.EventType {
	t.Helper()
	var events []models.TimelineEvent
	w := doJSON(t, h, http.MethodGet, "/v1/programs/"+programID+"/timeline", nil, &events)
	if w.Code != http.StatusOK {
		t.Fatalf("timeline: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	out := make([]models.EventType, len(events))
	for i, event := range events {
		out[i] = event.EventType
	}
	return out
}

func patterned(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*31 + i/251)
	}
	return data
}

type failingTimelineStore struct {
	storepkg.TimelineStore
}

func (failingTimelineStore) AppendTimelineEvent(context.Context, *models.TimelineEvent) error {
	return errors.New("timeline unavailable")
}
