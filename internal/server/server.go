// server.go - Server construction and route table.
//
// Wires the access service, credential verifier, metrics and health
// checks into one handler behind the request id, logging and security
// header middleware.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"secure-file-share/internal/access"
)

// Pinger is a dependency whose reachability /health reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr           string // e.g. ":8080"
	Service        *access.Service
	Verifier       *access.Verifier
	Logger         *slog.Logger
	MaxUploadBytes int64
	// Checks are reported by /health under their map key.
	Checks map[string]Pinger
}

type Server struct {
	httpServer *http.Server
	svc        *access.Service
	verifier   *access.Verifier
	logger     *slog.Logger
	maxUpload  int64
	checks     map[string]Pinger
	metrics    *Metrics
}

func New(cfg Config) *Server {
	s := &Server{
		svc:       cfg.Service,
		verifier:  cfg.Verifier,
		logger:    cfg.Logger,
		maxUpload: cfg.MaxUploadBytes,
		checks:    cfg.Checks,
		metrics:   newMetrics(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 50 << 20
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("GET /api/auth/me", s.authed(s.handleMe))
	mux.Handle("GET /api/users", s.authed(s.handleUsers))

	mux.Handle("POST /api/files", s.authed(s.handleUpload))
	mux.Handle("POST /api/files/batch", s.authed(s.handleBatchUpload))
	mux.Handle("GET /api/files", s.authed(s.handleOwnedFiles))
	mux.Handle("GET /api/files/shared", s.authed(s.handleSharedFiles))
	mux.Handle("GET /api/files/{id}/download", s.authed(s.handleDownload))
	mux.Handle("DELETE /api/files/{id}", s.authed(s.handleDelete))
	mux.Handle("GET /api/files/{id}/audit", s.authed(s.handleAudit))

	mux.Handle("POST /api/files/{id}/grants", s.authed(s.handleGrant))
	mux.Handle("POST /api/files/{id}/link", s.authed(s.handleMintLink))
	mux.Handle("DELETE /api/files/{id}/link", s.authed(s.handleRevokeLink))
	mux.Handle("GET /api/share/{token}", s.authed(s.handleResolveLink))

	// Wrap middleware: requestID -> logging -> security headers -> mux
	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Metrics exposes the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler exposes the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
