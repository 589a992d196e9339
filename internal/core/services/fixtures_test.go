package services

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

// --- Mocks ---

type mockCatalogReader struct {
	catalog *domain.Catalog
	err     error
	calls   atomic.Int32
}

func (m *mockCatalogReader) ReadCatalog(ctx context.Context) (*domain.Catalog, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.catalog, nil
}

type mockNeighborReader struct {
	table *domain.NeighborTable
	err   error
	calls atomic.Int32
}

func (m *mockNeighborReader) ReadNeighbors(ctx context.Context) (*domain.NeighborTable, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.table, nil
}

// --- Fixtures ---

func scenarioCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	c, err := domain.NewCatalog([]domain.Track{
		{ID: "0", Artist: "A", Title: "Song One"},
		{ID: "1", Artist: "B", Title: "Song Two"},
	})
	require.NoError(t, err)
	return c
}

func scenarioTable() *domain.NeighborTable {
	return domain.NewNeighborTable(map[string][]domain.NeighborEntry{
		"0": {{ID: "1", Distance: 0.2}},
	})
}

func largerCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	c, err := domain.NewCatalog([]domain.Track{
		{ID: "0", Artist: "Radiohead", Title: "Everything In Its Right Place"},
		{ID: "1", Artist: "The Beatles", Title: "Love Me Do"},
		{ID: "2", Artist: "Whitney Houston", Title: "I Will Always Love You"},
		{ID: "3", Artist: "Björk", Title: "Army of Me"},
		{ID: "4", Artist: "Love", Title: "Alone Again Or"},
		{ID: "5", Artist: "Daft Punk", Title: "One More Time"},
		{ID: "6", Artist: "LOVELESS", Title: "ÉTUDE"},
		{ID: "7", Artist: "Massive Attack", Title: "Teardrop"},
		{ID: "8", Artist: "The Beatles", Title: "All You Need Is Love"},
		{ID: "9", Artist: "Queen", Title: "Love Of My Life"},
	})
	require.NoError(t, err)
	return c
}

func trackIDs(tracks []domain.Track) []string {
	ids := make([]string, 0, len(tracks))
	for _, tr := range tracks {
		ids = append(ids, tr.ID)
	}
	return ids
}
