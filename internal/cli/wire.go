package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ewilliams-labs/trackfinder/internal/adapters/artifact"
	"github.com/ewilliams-labs/trackfinder/internal/adapters/httpfetch"
	"github.com/ewilliams-labs/trackfinder/internal/adapters/localfs"
	"github.com/ewilliams-labs/trackfinder/internal/adapters/miniostore"
	"github.com/ewilliams-labs/trackfinder/internal/adapters/rest"
	"github.com/ewilliams-labs/trackfinder/internal/adapters/s3store"
	"github.com/ewilliams-labs/trackfinder/internal/adapters/sqlite"
	"github.com/ewilliams-labs/trackfinder/internal/config"
	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
	"github.com/ewilliams-labs/trackfinder/internal/core/ports"
	"github.com/ewilliams-labs/trackfinder/internal/core/services"
)

// app is the wired service graph behind every command.
type app struct {
	svc *services.Orchestrator
	// artifacts is nil unless the artifacts driver is active.
	artifacts *artifact.Reader
	closers   []func() error
}

func (a *app) Close() error {
	if a.svc != nil {
		a.svc.Close()
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// opener returns the raw artifact opener for the HTTP handler, or nil.
func (a *app) opener(serve bool) rest.ArtifactOpener {
	if !serve || a.artifacts == nil {
		return nil
	}
	return a.artifacts
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	var (
		catalogs  ports.CatalogReader
		neighbors ports.NeighborReader
	)
	switch cfg.Data.Driver {
	case config.DriverSQLite:
		db, err := sqlite.NewAdapter(cfg.Data.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		catalogs, neighbors = db, db
	default:
		reader := newArtifactReader(cfg, cfg.Data.Catalog, cfg.Data.Neighbors, logger)
		a.artifacts = reader
		catalogs, neighbors = reader, reader
	}

	loader := services.NewLoader(catalogs, neighbors, logger)
	svc, err := services.NewOrchestrator(loader, services.Options{
		SearchCacheSize:   cfg.Search.CacheSize,
		NeighborCacheCost: cfg.Search.NeighborCacheCost,
	}, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.svc = svc
	return a, nil
}

func newArtifactReader(cfg *config.Config, catalogLocation, neighborsLocation string, logger *slog.Logger) *artifact.Reader {
	return artifact.NewReader(newSourceRouter(cfg), catalogLocation, neighborsLocation, logger)
}

// newSourceRouter registers a source per supported scheme. Object store
// clients are built on first use so a local-only setup never touches cloud
// credentials.
func newSourceRouter(cfg *config.Config) *artifact.Router {
	router := artifact.NewRouter()
	router.Register("file", localfs.New(cfg.Data.Root))

	h := cfg.Sources.HTTP
	fetcher := httpfetch.NewClient(&http.Client{Timeout: h.Timeout}, httpfetch.Credentials{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		TokenURL:     h.TokenURL,
		Scopes:       h.Scopes,
	}, h.UserAgent)
	router.Register("http", fetcher)
	router.Register("https", fetcher)

	s3cfg := cfg.Sources.S3
	router.Register("s3", &lazySource{build: func(ctx context.Context) (ports.ArtifactSource, error) {
		return s3store.New(ctx, s3store.Options{
			Region:       s3cfg.Region,
			Endpoint:     s3cfg.Endpoint,
			UsePathStyle: s3cfg.UsePathStyle,
		})
	}})

	m := cfg.Sources.MinIO
	router.Register("minio", &lazySource{build: func(context.Context) (ports.ArtifactSource, error) {
		if m.Endpoint == "" {
			return nil, &domain.DataUnavailableError{Resource: "minio", Reason: "sources.minio.endpoint is not configured"}
		}
		return miniostore.New(miniostore.Options{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Secure:    m.Secure,
			Region:    m.Region,
		})
	}})
	return router
}

// lazySource builds its ArtifactSource on the first Open. A failed build is
// retried on the next Open.
type lazySource struct {
	build func(ctx context.Context) (ports.ArtifactSource, error)

	mu  sync.Mutex
	src ports.ArtifactSource
}

func (l *lazySource) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	src, err := l.source(ctx)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx, location)
}

func (l *lazySource) source(ctx context.Context) (ports.ArtifactSource, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.src != nil {
		return l.src, nil
	}
	src, err := l.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("cli: build source: %w", err)
	}
	l.src = src
	return src, nil
}
