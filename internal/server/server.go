package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"eduops/internal/auth"
	"eduops/internal/blobstore"
	"eduops/internal/store"
	"eduops/internal/upload"
)

const (
	allowRemoteEnvKey  = "EDUOPS_ALLOW_REMOTE"
	readHeaderTimeout  = 5 * time.Second
	readTimeout        = 60 * time.Second
	writeTimeout       = 120 * time.Second
	idleTimeout        = 60 * time.Second
	shutdownTimeout    = 10 * time.Second
	gcConcurrencyLimit = 1
)

// Backend is the persistence surface the API needs.
type Backend interface {
	store.AttachmentStore
	store.TimelineStore
	store.CatalogStore
	StoreInfo(ctx context.Context) (*store.Info, error)
}

// Options tunes a Server. Zero values select defaults.
type Options struct {
	DBPath         string
	Policy         upload.Policy
	Issuer         *auth.Issuer
	UpcomingWindow time.Duration
	GCBatchSize    int
	GCMinAge       time.Duration
	GCWorkers      int
}

// Server wraps HTTP handlers for the eduops API.
type Server struct {
	addr              string
	store             Backend
	blobs             blobstore.BlobStore
	dbPath            string
	issuer            *auth.Issuer
	attachmentService *AttachmentService
	timelineService   *TimelineService
	catalogService    *CatalogService
	collector         *BlobCollector
	gcMinAge          time.Duration
	logger            *slog.Logger
	gcSlots           *semaphore.Weighted
}

// New creates a new server instance.
func New(addr string, backend Backend, blobs blobstore.BlobStore, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	// Finalize takes the shared side, GC the exclusive side.
	gate := &sync.RWMutex{}
	timeline := NewTimelineService(backend, backend, opts.UpcomingWindow, logger)

	return &Server{
		addr:              addr,
		store:             backend,
		blobs:             blobs,
		dbPath:            opts.DBPath,
		issuer:            opts.Issuer,
		attachmentService: NewAttachmentService(backend, backend, blobs, timeline, opts.Policy, gate),
		timelineService:   timeline,
		catalogService:    NewCatalogService(backend, timeline),
		collector:         NewBlobCollector(blobs, backend, gate, opts.GCBatchSize, opts.GCWorkers, logger),
		gcMinAge:          opts.GCMinAge,
		logger:            logger,
		gcSlots:           semaphore.NewWeighted(gcConcurrencyLimit),
	}
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withAuth(s.routes()))
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr, "blob_backend", s.blobs.Backend(), "auth", s.issuer != nil)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// ListenAddr turns api_url into a listen address. Hosts other than loopback
// or localhost need EDUOPS_ALLOW_REMOTE=true.
func ListenAddr(apiURL string) (string, error) {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}

	addr := apiURL
	host := ""
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		addr, host = u.Host, u.Hostname()
	} else if h, _, err := net.SplitHostPort(apiURL); err == nil {
		host = h
	}

	if !listenHostAllowed(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}
	return addr, nil
}

func listenHostAllowed(host string) bool {
	if host == "" || host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	allow, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)))
	return err == nil && allow
}

// tryAcquire takes one slot of sem or answers 429.
func (s *Server) tryAcquire(sem *semaphore.Weighted, w http.ResponseWriter, r *http.Request, name string) bool {
	if sem == nil || sem.TryAcquire(1) {
		return true
	}
	err := apiError{
		status:  http.StatusTooManyRequests,
		code:    "resource_exhausted",
		errCode: ErrCodeResourceExhausted,
		err:     fmt.Errorf("too many concurrent %s requests", name),
	}
	s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
	return false
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
