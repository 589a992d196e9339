package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogBuilder_Add(t *testing.T) {
	tests := []struct {
		name    string
		initial []Track
		toAdd   Track
		wantErr bool
		wantLen int
	}{
		{
			name:    "adds new track successfully",
			toAdd:   Track{ID: "0", Title: "Song One", Artist: "Artist A"},
			wantLen: 1,
		},
		{
			name:    "rejects duplicate id",
			initial: []Track{{ID: "0", Title: "Existing", Artist: "Artist A"}},
			toAdd:   Track{ID: "0", Title: "Song Two", Artist: "Artist B"},
			wantErr: true,
			wantLen: 1,
		},
		{
			name:    "rejects empty title",
			toAdd:   Track{ID: "0", Title: "", Artist: "X"},
			wantErr: true,
			wantLen: 0,
		},
		{
			name:    "rejects empty artist",
			toAdd:   Track{ID: "0", Title: "Song", Artist: ""},
			wantErr: true,
			wantLen: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var b CatalogBuilder
			for _, tr := range tc.initial {
				require.NoError(t, b.Add(tr))
			}

			err := b.Add(tc.toAdd)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantLen, b.Len())
		})
	}
}

func TestCatalogBuilder_DuplicateSentinel(t *testing.T) {
	var b CatalogBuilder
	require.NoError(t, b.Add(Track{ID: "7", Title: "A", Artist: "B"}))
	assert.ErrorIs(t, b.Add(Track{ID: "7", Title: "C", Artist: "D"}), ErrDuplicateTrack)
}

func TestCatalog_Lookups(t *testing.T) {
	c, err := NewCatalog([]Track{
		{ID: "0", Artist: "A", Title: "Song One"},
		{ID: "1", Artist: "B", Title: "Song Two"},
		{ID: "2", Artist: "C", Title: "Intro - Reprise"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "1", c.At(1).ID)

	got, ok := c.Get("1")
	require.True(t, ok)
	assert.Equal(t, "Song Two", got.Title)

	_, ok = c.Get("9")
	assert.False(t, ok)

	got, ok = c.GetByKey("A - Song One")
	require.True(t, ok)
	assert.Equal(t, "0", got.ID)

	got, ok = c.GetByKey("  C  -  Intro - Reprise ")
	require.True(t, ok)
	assert.Equal(t, "2", got.ID)

	_, ok = c.GetByKey("Nobody - Nothing")
	assert.False(t, ok)
}

func TestCatalog_Slice(t *testing.T) {
	c, err := NewCatalog([]Track{
		{ID: "0", Artist: "A", Title: "One"},
		{ID: "1", Artist: "B", Title: "Two"},
		{ID: "2", Artist: "C", Title: "Three"},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		offset  int
		limit   int
		wantIDs []string
	}{
		{name: "first page", offset: 0, limit: 2, wantIDs: []string{"0", "1"}},
		{name: "truncated tail", offset: 2, limit: 5, wantIDs: []string{"2"}},
		{name: "offset past end", offset: 3, limit: 5, wantIDs: []string{}},
		{name: "negative offset clamps", offset: -1, limit: 1, wantIDs: []string{"0"}},
		{name: "zero limit", offset: 0, limit: 0, wantIDs: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Slice(tc.offset, tc.limit)
			ids := make([]string, 0, len(got))
			for _, tr := range got {
				ids = append(ids, tr.ID)
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func TestParseKey(t *testing.T) {
	artist, title := ParseKey("Daft Punk - One More Time - Radio Edit")
	assert.Equal(t, "Daft Punk", artist)
	assert.Equal(t, "One More Time - Radio Edit", title)

	artist, title = ParseKey("no separator")
	assert.Equal(t, "no separator", artist)
	assert.Equal(t, "", title)
}

func TestNeighbor_Similarity(t *testing.T) {
	tests := []struct {
		distance float64
		want     int
	}{
		{0, 100},
		{0.2, 80},
		{0.254, 75},
		{1.5, 0},
		{-0.5, 100},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Neighbor{Distance: tc.distance}.Similarity(), "distance %v", tc.distance)
	}
}

func TestErrors_Is(t *testing.T) {
	assert.ErrorIs(t, &DataUnavailableError{Resource: "catalog"}, ErrDataUnavailable)
	assert.ErrorIs(t, &MalformedRecordError{Resource: "catalog", Row: 3, Reason: "empty title"}, ErrMalformedRecord)
	assert.ErrorIs(t, &TransportError{Resource: "neighbors"}, ErrTransportFailure)
	assert.NotErrorIs(t, &TransportError{Resource: "neighbors"}, ErrDataUnavailable)
}

func TestMalformedRecordError_Message(t *testing.T) {
	byRow := &MalformedRecordError{Resource: "catalog", Row: 3, Reason: "empty title"}
	assert.Contains(t, byRow.Error(), "catalog row 3: empty title")

	byKey := &MalformedRecordError{Resource: "neighbors", Row: 9, Key: "42", Reason: "invalid distance"}
	assert.Contains(t, byKey.Error(), `neighbors record "42": invalid distance`)
	assert.NotContains(t, byKey.Error(), "row")
}
