package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"time"

	"eduops/internal/api"
	"eduops/internal/auth"
	"eduops/internal/config"
)

const (
	pingTimeout        = 500 * time.Millisecond
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	localTokenTTL      = 5 * time.Minute
)

// apiToken is the --token flag value; empty keeps EDUOPS_API_TOKEN.
var apiToken string

// newClient builds an API client for cfg. Without an explicit token and with
// a local auth.jwt_secret, it signs a short-lived admin token for the OS user.
func newClient(cfg *config.Config) *api.Client {
	client := api.NewClient(cfg.APIURL)
	client.SetToken(apiToken)
	if apiToken == "" && strings.TrimSpace(os.Getenv("EDUOPS_API_TOKEN")) == "" {
		if token, err := localToken(cfg); err == nil {
			client.SetToken(token)
		} else if cfg.Auth.JWTSecret != "" {
			slog.Debug("local token not issued", "error", err)
		}
	}
	return client
}

func localToken(cfg *config.Config) (string, error) {
	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, localTokenTTL)
	if err != nil {
		return "", err
	}
	name := "local"
	if current, err := user.Current(); err == nil {
		if normalized, err := auth.NormalizePrincipal(current.Username); err == nil {
			name = normalized
		}
	}
	token, _, err := issuer.Issue(name, auth.RoleAdmin)
	return token, err
}

// withClient runs fn against the configured server. When nothing answers at
// api_url, a child `eduops srv` serves the call and is stopped afterwards.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	client := newClient(cfg)
	stop, err := ensureServer(context.Background(), cfg, client)
	if err != nil {
		return err
	}
	defer stop()
	return fn(client)
}

func ensureServer(ctx context.Context, cfg *config.Config, client *api.Client) (func(), error) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := client.Ping(pingCtx)
	cancel()
	if err == nil {
		return func() {}, nil
	}

	child, err := spawnServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("start local server: %w", err)
	}
	stop := func() {
		_ = child.Process.Kill()
		_ = child.Wait()
	}

	readyCtx, cancel := context.WithTimeout(ctx, serverStartTimeout)
	defer cancel()
	if err := awaitReady(readyCtx, client); err != nil {
		stop()
		return nil, err
	}
	return stop, nil
}

func spawnServer(cfg *config.Config) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	child := exec.Command(exe, "srv")
	child.Env = append(os.Environ(),
		"EDUOPS_DB="+cfg.DBPath,
		"EDUOPS_API_URL="+cfg.APIURL,
	)
	child.Stdout = io.Discard
	child.Stderr = io.Discard
	if err := child.Start(); err != nil {
		return nil, err
	}
	return child, nil
}

// awaitReady polls /health until it answers or ctx ends. Anything other than
// a dial failure means another process owns the port.
func awaitReady(ctx context.Context, client *api.Client) error {
	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		err := client.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !isDialError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.New("server did not start in time")
		case <-ticker.C:
		}
	}
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
