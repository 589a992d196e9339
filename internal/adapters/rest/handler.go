package rest

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/ewilliams-labs/trackfinder/internal/core/services"
)

// ArtifactOpener streams a named raw artifact.
type ArtifactOpener interface {
	OpenRaw(ctx context.Context, name string) (io.ReadCloser, string, error)
}

// Options configures the middleware stack.
type Options struct {
	// RateLimit is the sustained requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	// AllowedOrigin is echoed in Access-Control-Allow-Origin; empty means "*".
	AllowedOrigin string
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc       *services.Orchestrator // Dependency on the Core Service
	artifacts ArtifactOpener
	log       *slog.Logger
	router    *http.ServeMux // Standard library router
	chain     http.Handler
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc *services.Orchestrator, artifacts ArtifactOpener, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{
		svc:       svc,
		artifacts: artifacts,
		log:       logger,
		router:    http.NewServeMux(),
	}

	// Register Routes
	h.routes()

	h.chain = Chain(h.router,
		RequestID(),
		AccessLog(logger),
		CORS(opts.AllowedOrigin),
		RateLimit(opts.RateLimit, opts.Burst),
	)
	return h
}

// ServeHTTP satisfies the http.Handler interface.
// It passes the request through the middleware chain to our internal router.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.chain.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	// Health Checks
	h.router.HandleFunc("GET /health", h.HealthCheck)
	h.router.HandleFunc("GET /ready", h.ReadyCheck)
	// Track Lookup
	h.router.HandleFunc("GET /tracks", h.SearchTracks)
	h.router.HandleFunc("GET /tracks/random", h.RandomTrack)
	h.router.HandleFunc("GET /tracks/lookup", h.LookupTrack)
	h.router.HandleFunc("GET /tracks/{id}", h.GetTrack)
	h.router.HandleFunc("GET /tracks/{id}/similar", h.SimilarTracks)
	// Static Artifacts
	h.router.HandleFunc("GET /artifacts/{name}", h.GetArtifact)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyCheck reports whether the catalog and neighbor table are loaded.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
