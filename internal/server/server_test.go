package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"eduops/internal/api"
	"eduops/internal/auth"
)

func TestListenAddrRemoteGuard(t *testing.T) {
	t.Run("allows loopback", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		addr, err := ListenAddr("http://127.0.0.1:7433")
		if err != nil {
			t.Fatalf("expected loopback to be allowed, got error: %v", err)
		}
		if addr != "127.0.0.1:7433" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("blocks non-loopback by default", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		_, err := ListenAddr("http://0.0.0.0:7433")
		if err == nil {
			t.Fatal("expected error for non-loopback listen host")
		}
	})

	t.Run("allows non-loopback when explicitly enabled", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "true")
		addr, err := ListenAddr("http://0.0.0.0:7433")
		if err != nil {
			t.Fatalf("expected allow-remote to permit host, got error: %v", err)
		}
		if addr != "0.0.0.0:7433" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})
}

func TestWithAuth(t *testing.T) {
	issuer, err := auth.NewIssuer("test-secret-with-enough-length", 0)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token := func(role auth.Role) string {
		t.Helper()
		signed, _, err := issuer.Issue("ana", role)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		return signed
	}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = actorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := (&Server{issuer: issuer}).withAuth(next)

	serve := func(method, path, bearer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	t.Run("denies missing token", func(t *testing.T) {
		w := serve(http.MethodGet, "/v1/programs", "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
			t.Fatalf("decode error response: %v", err)
		}
		if errResp.ErrorCode != ErrCodeUnauthorized {
			t.Fatalf("expected error_code %d, got %d", ErrCodeUnauthorized, errResp.ErrorCode)
		}
	})

	t.Run("denies forged token", func(t *testing.T) {
		w := serve(http.MethodGet, "/v1/programs", "not-a-jwt")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("health needs no token", func(t *testing.T) {
		w := serve(http.MethodGet, "/health", "")
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	})

	t.Run("guest can read and records actor", func(t *testing.T) {
		seen = ""
		w := serve(http.MethodGet, "/v1/programs", token(auth.RoleGuest))
		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
		if seen != "ana" {
			t.Fatalf("expected actor ana, got %q", seen)
		}
	})

	t.Run("guest cannot write", func(t *testing.T) {
		w := serve(http.MethodPost, "/v1/programs", token(auth.RoleGuest))
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})

	t.Run("user can upload but not archive", func(t *testing.T) {
		if w := serve(http.MethodPost, "/v1/uploads/att-1/chunks", token(auth.RoleUser)); w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
		if w := serve(http.MethodDelete, "/v1/attachments/program/att-1", token(auth.RoleUser)); w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})

	t.Run("admin routes require admin", func(t *testing.T) {
		w := serve(http.MethodPost, "/v1/admin/gc-blobs", token(auth.RoleUser))
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
			t.Fatalf("decode error response: %v", err)
		}
		if errResp.ErrorCode != ErrCodeForbidden {
			t.Fatalf("expected error_code %d, got %d", ErrCodeForbidden, errResp.ErrorCode)
		}

		if w := serve(http.MethodPost, "/v1/admin/gc-blobs", token(auth.RoleAdmin)); w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
	})
}

func TestOpenModeUsesLocalPrincipal(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()
	program := seedProgram(t, h, "Open house")

	var events []api.TimelineEventResponse
	w := doJSON(t, h, http.MethodGet, "/v1/programs/"+program.ID+"/timeline", nil, &events)
	if w.Code != http.StatusOK || len(events) != 1 {
		t.Fatalf("expected one event, got %d %#v", w.Code, events)
	}
	if events[0].ActorPrincipal != localPrincipal.Name {
		t.Fatalf("expected actor %q, got %q", localPrincipal.Name, events[0].ActorPrincipal)
	}
	if events[0].Summary != "local created the program" {
		t.Fatalf("unexpected summary %q", events[0].Summary)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}
}

func TestInfoReportsCounts(t *testing.T) {
	srv, _ := newTestServer(t, Options{DBPath: "/tmp/eduops.db"})
	h := srv.Handler()
	program := seedProgram(t, h, "Debate")
	w := uploadMultipart(t, h, "/v1/programs/"+program.ID+"/attachments", map[string]string{
		"id": "att-info", "filename": "motion.txt", "content_type": "text/plain",
	}, []byte("resolved"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d", w.Code)
	}

	var info api.InfoResponse
	w = doJSON(t, h, http.MethodGet, "/v1/info", nil, &info)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if info.DBPath != "/tmp/eduops.db" || info.BlobBackend != "local" || info.AuthRequired {
		t.Fatalf("unexpected info: %#v", info)
	}
	if info.Programs != 1 || info.Attachments["program"] != 1 || info.TimelineEvents != 2 {
		t.Fatalf("unexpected counts: %#v", info)
	}
}
