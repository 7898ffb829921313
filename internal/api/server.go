// Package api serves the board's JSON REST interface under /api.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/featureboard/featureboard/internal/lanes"
)

// DetermineAccess inspects the requested listen address and reports whether
// it binds beyond loopback. Remote bindings are rejected unless allowRemote
// is set.
func DetermineAccess(listenAddr string, allowRemote bool) (bool, error) {
	host, _, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return false, fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
	}

	normalizedHost := host
	if normalizedHost == "" {
		normalizedHost = "0.0.0.0"
	}

	if isLoopbackHost(normalizedHost) {
		return false, nil
	}

	if !allowRemote {
		return false, fmt.Errorf("refusing remote bind to %q without --allow-remote", normalizedHost)
	}

	return true, nil
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// Config captures the inputs required to build the API handler.
type Config struct {
	Engine *lanes.Engine

	// StoresFile is the registry file listed by /api/databases.
	StoresFile string

	// CORSOrigins are the exact origins allowed to call the API from a browser.
	CORSOrigins []string

	Logger *slog.Logger

	// Now is used to resolve relative completed_after filters.
	Now func() time.Time
}

// Server holds the handler state.
type Server struct {
	engine     *lanes.Engine
	storesFile string
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandler builds the routed, logged and CORS-wrapped handler.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	s := &Server{
		engine:     cfg.Engine,
		storesFile: cfg.StoresFile,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}

	mux := http.NewServeMux()
	s.Register(mux)

	var h http.Handler = mux
	h = withCORS(h, cfg.CORSOrigins)
	h = withRequestLog(h, s.logger)
	return h, nil
}

// Register adds every /api route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/databases", s.handleDatabases)

	mux.HandleFunc("GET /api/features", s.handleList)
	mux.HandleFunc("POST /api/features", s.handleCreate)
	mux.HandleFunc("GET /api/features/stats", s.handleStats)
	mux.HandleFunc("GET /api/features/{id}", s.handleGet)
	mux.HandleFunc("PUT /api/features/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/features/{id}", s.handleDelete)
	mux.HandleFunc("PATCH /api/features/{id}/state", s.handleState)
	mux.HandleFunc("PATCH /api/features/{id}/priority", s.handlePriority)
	mux.HandleFunc("PATCH /api/features/{id}/move", s.handleMove)
	mux.HandleFunc("PATCH /api/features/{id}/reorder", s.handleReorder)
}

// Serve runs h on ln until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
