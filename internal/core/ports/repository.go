package ports

import (
	"context"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

// CatalogReader produces the track catalog from its backing store.
type CatalogReader interface {
	ReadCatalog(ctx context.Context) (*domain.Catalog, error)
}

// NeighborReader produces the precomputed neighbor table from its backing store.
type NeighborReader interface {
	ReadNeighbors(ctx context.Context) (*domain.NeighborTable, error)
}

// SnapshotWriter persists a catalog and neighbor table together.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, c *domain.Catalog, n *domain.NeighborTable) error
}
