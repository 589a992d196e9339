package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

func newTestOrchestrator(t *testing.T, catalogs *mockCatalogReader, neighbors *mockNeighborReader) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(NewLoader(catalogs, neighbors, nil), Options{SearchCacheSize: 8}, nil)
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o
}

func TestNewOrchestrator_RequiresLoader(t *testing.T) {
	_, err := NewOrchestrator(nil, Options{}, nil)
	assert.Error(t, err)
}

func TestOrchestrator_Search(t *testing.T) {
	catalogs := &mockCatalogReader{catalog: largerCatalog(t)}
	o := newTestOrchestrator(t, catalogs, &mockNeighborReader{table: scenarioTable()})
	ctx := context.Background()

	got, err := o.Search(ctx, "Beatles", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "8"}, trackIDs(got))

	// mutating a result must not leak into the memoized copy
	got[0].Title = "changed"
	again, err := o.Search(ctx, "beatles", 10)
	require.NoError(t, err)
	assert.Equal(t, "Love Me Do", again[0].Title)

	empty, err := o.Search(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.Equal(t, int32(1), catalogs.calls.Load())
}

func TestOrchestrator_SearchPropagatesLoadFailure(t *testing.T) {
	o := newTestOrchestrator(t,
		&mockCatalogReader{err: &domain.DataUnavailableError{Resource: "catalog"}},
		&mockNeighborReader{table: scenarioTable()},
	)
	_, err := o.Search(context.Background(), "love", 10)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestOrchestrator_Similar(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		wantErr   error
		wantTrack string
		wantIDs   []string
	}{
		{name: "resolves neighbors", id: "0", wantTrack: "Song One", wantIDs: []string{"1"}},
		{name: "no table entry is non-fatal", id: "1", wantErr: domain.ErrNeighborsUnavailable, wantTrack: "Song Two", wantIDs: []string{}},
		{name: "unknown track", id: "42", wantErr: domain.ErrNotFound},
	}

	o := newTestOrchestrator(t, &mockCatalogReader{catalog: scenarioCatalog(t)}, &mockNeighborReader{table: scenarioTable()})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// twice: the second call may come from the cache
			for i := 0; i < 2; i++ {
				res, err := o.Similar(context.Background(), tc.id, 5)
				if tc.wantErr != nil {
					require.ErrorIs(t, err, tc.wantErr)
				} else {
					require.NoError(t, err)
				}
				if tc.wantTrack == "" {
					continue
				}
				assert.Equal(t, tc.wantTrack, res.Track.Title)
				ids := make([]string, 0, len(res.Neighbors))
				for _, n := range res.Neighbors {
					ids = append(ids, n.Track.ID)
				}
				assert.Equal(t, tc.wantIDs, ids)
			}
		})
	}
}

func TestOrchestrator_SimilarWaitsForBothArtifacts(t *testing.T) {
	neighbors := &mockNeighborReader{err: &domain.TransportError{Resource: "neighbors", Err: errors.New("reset")}}
	o := newTestOrchestrator(t, &mockCatalogReader{catalog: scenarioCatalog(t)}, neighbors)

	_, err := o.Similar(context.Background(), "0", 5)
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
	assert.False(t, o.Ready())
}

func TestOrchestrator_Lookups(t *testing.T) {
	o := newTestOrchestrator(t, &mockCatalogReader{catalog: largerCatalog(t)}, &mockNeighborReader{table: scenarioTable()})
	ctx := context.Background()

	tr, err := o.Track(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, "One More Time", tr.Title)

	_, err = o.Track(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	tr, err = o.TrackByKey(ctx, "Queen - Love Of My Life")
	require.NoError(t, err)
	assert.Equal(t, "9", tr.ID)

	_, err = o.TrackByKey(ctx, "Queen - Bohemian Rhapsody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for i := 0; i < 20; i++ {
		tr, err = o.Random(ctx)
		require.NoError(t, err)
		_, err = o.Track(ctx, tr.ID)
		require.NoError(t, err)
	}

	page, err := o.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, trackIDs(page))
}

func TestOrchestrator_Warm(t *testing.T) {
	o := newTestOrchestrator(t, &mockCatalogReader{catalog: scenarioCatalog(t)}, &mockNeighborReader{table: scenarioTable()})
	assert.False(t, o.Ready())
	require.NoError(t, o.Warm(context.Background()))
	assert.True(t, o.Ready())
}
