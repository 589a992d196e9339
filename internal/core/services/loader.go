package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
	"github.com/ewilliams-labs/trackfinder/internal/core/ports"
)

const (
	catalogResource   = "catalog"
	neighborsResource = "neighbors"
)

// Loader fetches the catalog and neighbor table once and serves them from
// memory for the rest of the process lifetime.
//
// Each resource moves from absent to present exactly once. Concurrent first
// calls share a single fetch. A failed fetch is not cached, so the next call
// tries again. The shared fetch is detached from any one caller's
// cancellation; a cancelled caller stops waiting while the others keep going.
type Loader struct {
	catalogs  ports.CatalogReader
	neighbors ports.NeighborReader
	log       *slog.Logger

	group         singleflight.Group
	catalog       atomic.Pointer[domain.Catalog]
	neighborTable atomic.Pointer[domain.NeighborTable]
}

// NewLoader constructs a Loader. A nil logger discards output.
func NewLoader(catalogs ports.CatalogReader, neighbors ports.NeighborReader, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		catalogs:  catalogs,
		neighbors: neighbors,
		log:       logger,
	}
}

// LoadCatalog returns the cached catalog, fetching it on first use.
func (l *Loader) LoadCatalog(ctx context.Context) (*domain.Catalog, error) {
	if c := l.catalog.Load(); c != nil {
		return c, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	v, err := l.share(ctx, catalogResource, func() (any, error) {
		if c := l.catalog.Load(); c != nil {
			return c, nil
		}
		c, err := l.catalogs.ReadCatalog(fetchCtx)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, &domain.DataUnavailableError{Resource: catalogResource, Reason: "reader returned no catalog"}
		}
		l.catalog.Store(c)
		l.log.Info("loader: catalog cached", "tracks", c.Len())
		return c, nil
	})
	if err != nil {
		l.log.Error("loader: catalog load failed", "error", err)
		return nil, fmt.Errorf("loader: load catalog: %w", err)
	}
	return v.(*domain.Catalog), nil
}

// LoadNeighborTable returns the cached neighbor table, fetching it on first use.
func (l *Loader) LoadNeighborTable(ctx context.Context) (*domain.NeighborTable, error) {
	if t := l.neighborTable.Load(); t != nil {
		return t, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	v, err := l.share(ctx, neighborsResource, func() (any, error) {
		if t := l.neighborTable.Load(); t != nil {
			return t, nil
		}
		t, err := l.neighbors.ReadNeighbors(fetchCtx)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, &domain.DataUnavailableError{Resource: neighborsResource, Reason: "reader returned no table"}
		}
		l.neighborTable.Store(t)
		l.log.Info("loader: neighbor table cached", "tracks", t.Len())
		return t, nil
	})
	if err != nil {
		l.log.Error("loader: neighbor table load failed", "error", err)
		return nil, fmt.Errorf("loader: load neighbor table: %w", err)
	}
	return v.(*domain.NeighborTable), nil
}

// share joins the in-flight fetch for key, returning early if ctx ends first.
func (l *Loader) share(ctx context.Context, key string, fetch func() (any, error)) (any, error) {
	select {
	case res := <-l.group.DoChan(key, fetch):
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LoadAll loads both resources in parallel and returns once both are present.
func (l *Loader) LoadAll(ctx context.Context) (*domain.Catalog, *domain.NeighborTable, error) {
	var (
		catalog *domain.Catalog
		table   *domain.NeighborTable
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := l.LoadCatalog(gctx)
		catalog = c
		return err
	})
	g.Go(func() error {
		t, err := l.LoadNeighborTable(gctx)
		table = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return catalog, table, nil
}

// Ready reports whether both resources are cached.
func (l *Loader) Ready() bool {
	return l.catalog.Load() != nil && l.neighborTable.Load() != nil
}
