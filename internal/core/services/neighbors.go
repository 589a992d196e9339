package services

import (
	"fmt"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

const (
	DefaultNeighborCount = 5
	MaxNeighborCount     = 50
)

// NeighborsOf resolves the first k precomputed neighbors of trackID.
//
// The table order is kept as is. Entries whose id is missing from the catalog
// are dropped, as is trackID itself. A trackID without a table entry yields an
// empty result and an error wrapping domain.ErrNeighborsUnavailable.
func NeighborsOf(trackID string, table *domain.NeighborTable, catalog *domain.Catalog, k int) ([]domain.Neighbor, error) {
	k = clampLimit(k, DefaultNeighborCount, MaxNeighborCount)

	entries, ok := table.Lookup(trackID)
	if !ok {
		return []domain.Neighbor{}, fmt.Errorf("resolver: track %q: %w", trackID, domain.ErrNeighborsUnavailable)
	}
	if len(entries) > k {
		entries = entries[:k]
	}

	out := make([]domain.Neighbor, 0, len(entries))
	for _, e := range entries {
		if e.ID == trackID {
			continue
		}
		t, ok := catalog.Get(e.ID)
		if !ok {
			continue
		}
		out = append(out, domain.Neighbor{Track: t, Distance: e.Distance})
	}
	return out, nil
}
