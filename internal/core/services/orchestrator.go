package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

const (
	defaultSearchCacheSize  = 512
	defaultNeighborCacheMax = 1 << 16
)

// Options tunes the result caches.
type Options struct {
	// SearchCacheSize bounds the number of memoized query results.
	SearchCacheSize int
	// NeighborCacheCost bounds the memoized neighbor lists, counted in entries.
	NeighborCacheCost int64
}

// Orchestrator coordinates the data loader, the search index and the neighbor resolver.
type Orchestrator struct {
	loader *Loader
	log    *slog.Logger

	indexMu sync.Mutex
	index   *Index

	results   *lru.Cache[string, []domain.Track]
	neighbors *ristretto.Cache
}

// SimilarResult is a selected track with its resolved neighbors.
type SimilarResult struct {
	Track     domain.Track
	Neighbors []domain.Neighbor
}

// NewOrchestrator constructs an Orchestrator around an explicitly owned Loader.
func NewOrchestrator(loader *Loader, opts Options, logger *slog.Logger) (*Orchestrator, error) {
	if loader == nil {
		return nil, errors.New("service: loader is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.SearchCacheSize <= 0 {
		opts.SearchCacheSize = defaultSearchCacheSize
	}
	if opts.NeighborCacheCost <= 0 {
		opts.NeighborCacheCost = defaultNeighborCacheMax
	}

	results, err := lru.New[string, []domain.Track](opts.SearchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("service: search cache: %w", err)
	}
	neighbors, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.NeighborCacheCost * 10,
		MaxCost:     opts.NeighborCacheCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("service: neighbor cache: %w", err)
	}

	return &Orchestrator{
		loader:    loader,
		log:       logger,
		results:   results,
		neighbors: neighbors,
	}, nil
}

// Close releases the neighbor cache.
func (o *Orchestrator) Close() {
	o.neighbors.Close()
}

// Warm loads both artifacts and builds the search index.
func (o *Orchestrator) Warm(ctx context.Context) error {
	if _, _, err := o.loader.LoadAll(ctx); err != nil {
		return fmt.Errorf("service: warm: %w", err)
	}
	if _, err := o.searchIndex(ctx); err != nil {
		return fmt.Errorf("service: warm: %w", err)
	}
	return nil
}

// Ready reports whether both artifacts are loaded.
func (o *Orchestrator) Ready() bool {
	return o.loader.Ready()
}

// Search runs a catalog search. Repeated queries are answered from memory.
func (o *Orchestrator) Search(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return []domain.Track{}, nil
	}
	limit = clampLimit(limit, DefaultSearchLimit, MaxSearchLimit)

	key := strconv.Itoa(limit) + "\x00" + strings.Join(tokens, " ")
	if hit, ok := o.results.Get(key); ok {
		return slices.Clone(hit), nil
	}

	ix, err := o.searchIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: search: %w", err)
	}
	found := ix.Search(query, limit)
	o.results.Add(key, found)
	o.log.Debug("service: search", "query", query, "limit", limit, "results", len(found))
	return slices.Clone(found), nil
}

// List returns the unfiltered catalog in display order.
func (o *Orchestrator) List(ctx context.Context, offset, limit int) ([]domain.Track, error) {
	catalog, err := o.loader.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list: %w", err)
	}
	return List(catalog, offset, limit), nil
}

// Track resolves a track by id.
func (o *Orchestrator) Track(ctx context.Context, id string) (domain.Track, error) {
	catalog, err := o.loader.LoadCatalog(ctx)
	if err != nil {
		return domain.Track{}, fmt.Errorf("service: track: %w", err)
	}
	t, ok := catalog.Get(id)
	if !ok {
		return domain.Track{}, fmt.Errorf("service: track %q: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// TrackByKey resolves a track by its "Artist - Title" key.
func (o *Orchestrator) TrackByKey(ctx context.Context, key string) (domain.Track, error) {
	catalog, err := o.loader.LoadCatalog(ctx)
	if err != nil {
		return domain.Track{}, fmt.Errorf("service: track: %w", err)
	}
	t, ok := catalog.GetByKey(key)
	if !ok {
		return domain.Track{}, fmt.Errorf("service: track %q: %w", key, domain.ErrNotFound)
	}
	return t, nil
}

// Random picks a track uniformly from the catalog.
func (o *Orchestrator) Random(ctx context.Context) (domain.Track, error) {
	catalog, err := o.loader.LoadCatalog(ctx)
	if err != nil {
		return domain.Track{}, fmt.Errorf("service: random: %w", err)
	}
	if catalog.Len() == 0 {
		return domain.Track{}, fmt.Errorf("service: random: %w", domain.ErrNotFound)
	}
	return catalog.At(rand.IntN(catalog.Len())), nil
}

// Similar resolves the neighbors of a track. Both artifacts are loaded first.
//
// A track missing from the neighbor table returns the track, no neighbors and
// an error wrapping domain.ErrNeighborsUnavailable.
func (o *Orchestrator) Similar(ctx context.Context, id string, k int) (SimilarResult, error) {
	catalog, table, err := o.loader.LoadAll(ctx)
	if err != nil {
		return SimilarResult{}, fmt.Errorf("service: similar: %w", err)
	}
	t, ok := catalog.Get(id)
	if !ok {
		return SimilarResult{}, fmt.Errorf("service: track %q: %w", id, domain.ErrNotFound)
	}
	k = clampLimit(k, DefaultNeighborCount, MaxNeighborCount)

	key := id + "\x00" + strconv.Itoa(k)
	if v, ok := o.neighbors.Get(key); ok {
		if cached, ok := v.([]domain.Neighbor); ok {
			return SimilarResult{Track: t, Neighbors: slices.Clone(cached)}, nil
		}
	}

	list, err := NeighborsOf(id, table, catalog, k)
	if err != nil {
		o.log.Info("service: no neighbors", "track", id)
		return SimilarResult{Track: t, Neighbors: list}, err
	}
	o.neighbors.Set(key, list, int64(len(list)+1))
	return SimilarResult{Track: t, Neighbors: slices.Clone(list)}, nil
}

func (o *Orchestrator) searchIndex(ctx context.Context) (*Index, error) {
	catalog, err := o.loader.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	o.indexMu.Lock()
	defer o.indexMu.Unlock()
	if o.index == nil || o.index.Catalog() != catalog {
		o.index = NewIndex(catalog)
		o.log.Debug("service: search index built", "tracks", catalog.Len())
	}
	return o.index, nil
}
