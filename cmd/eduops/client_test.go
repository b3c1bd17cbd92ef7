package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eduops/internal/api"
	"eduops/internal/auth"
	"eduops/internal/config"
)

func TestLocalTokenIsAdmin(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "a-long-enough-shared-secret-for-tests"

	token, err := localToken(&cfg)
	require.NoError(t, err)

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, time.Minute)
	require.NoError(t, err)
	principal, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, auth.RoleAdmin, principal.Role)
	require.NotEmpty(t, principal.Name)
}

func TestLocalTokenNeedsSecret(t *testing.T) {
	cfg := config.Default()
	_, err := localToken(&cfg)
	require.ErrorIs(t, err, auth.ErrNoSecret)
}

func TestEnsureServerReusesRunningServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.APIURL = srv.URL
	stop, err := ensureServer(context.Background(), &cfg, api.NewClient(srv.URL))
	require.NoError(t, err)
	require.NotNil(t, stop)
	stop()
}

func TestAwaitReadyStopsOnForeignResponder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := awaitReady(ctx, api.NewClient(srv.URL))
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTeapot, apiErr.Status)
}
