package artifact

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
	"github.com/ewilliams-labs/trackfinder/internal/core/ports"
)

// Router dispatches a location to the ArtifactSource registered for its scheme.
// Plain paths and Windows drive letters resolve to the "file" scheme.
type Router struct {
	mu      sync.RWMutex
	sources map[string]ports.ArtifactSource
}

func NewRouter() *Router {
	return &Router{sources: make(map[string]ports.ArtifactSource)}
}

// Register binds scheme to src, replacing any previous binding.
func (r *Router) Register(scheme string, src ports.ArtifactSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[strings.ToLower(scheme)] = src
}

// Open implements ports.ArtifactSource. A scheme with no registered source is
// a configuration problem and reports DataUnavailable.
func (r *Router) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	scheme := Scheme(location)
	r.mu.RLock()
	src, ok := r.sources[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.DataUnavailableError{Resource: location, Reason: "no source registered for scheme " + strconv.Quote(scheme)}
	}
	return src.Open(ctx, location)
}

// Scheme returns the lower-cased URI scheme of location, or "file".
func Scheme(location string) string {
	u, err := url.Parse(location)
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}
