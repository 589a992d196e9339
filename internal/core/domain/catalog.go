package domain

import "errors"

// ErrDuplicateTrack is returned when a track id is already in the catalog.
var ErrDuplicateTrack = errors.New("domain: duplicate track id")

// Catalog is the immutable, ordered collection of known tracks.
type Catalog struct {
	tracks []Track
	byID   map[string]int
	byKey  map[string]int
}

// CatalogBuilder accumulates tracks in insertion order. The zero value is ready to use.
type CatalogBuilder struct {
	tracks []Track
	byID   map[string]int
}

// Add appends a track. Tracks without an id, title or artist are rejected,
// as are ids already present.
func (b *CatalogBuilder) Add(t Track) error {
	if t.ID == "" || t.Title == "" || t.Artist == "" {
		return errors.New("domain: track requires id, title and artist")
	}
	if b.byID == nil {
		b.byID = make(map[string]int)
	}
	if _, exists := b.byID[t.ID]; exists {
		return ErrDuplicateTrack
	}
	b.byID[t.ID] = len(b.tracks)
	b.tracks = append(b.tracks, t)
	return nil
}

// Len reports how many tracks have been added.
func (b *CatalogBuilder) Len() int {
	return len(b.tracks)
}

// Build freezes the builder into a Catalog. The builder must not be reused.
func (b *CatalogBuilder) Build() *Catalog {
	c := &Catalog{
		tracks: b.tracks,
		byID:   b.byID,
		byKey:  make(map[string]int, len(b.tracks)),
	}
	if c.byID == nil {
		c.byID = map[string]int{}
	}
	for i, t := range c.tracks {
		// first occurrence wins for display keys
		if _, ok := c.byKey[t.Key()]; !ok {
			c.byKey[t.Key()] = i
		}
	}
	b.tracks = nil
	b.byID = nil
	return c
}

// NewCatalog builds a catalog from tracks, failing on the first invalid one.
func NewCatalog(tracks []Track) (*Catalog, error) {
	var b CatalogBuilder
	for _, t := range tracks {
		if err := b.Add(t); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// At returns the track at position i in display order.
func (c *Catalog) At(i int) Track {
	return c.tracks[i]
}

// Get resolves a track id.
func (c *Catalog) Get(id string) (Track, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Track{}, false
	}
	return c.tracks[i], true
}

// GetByKey resolves an "Artist - Title" display key.
func (c *Catalog) GetByKey(key string) (Track, bool) {
	i, ok := c.byKey[key]
	if !ok {
		artist, title := ParseKey(key)
		i, ok = c.byKey[artist+" - "+title]
		if !ok {
			return Track{}, false
		}
	}
	return c.tracks[i], true
}

// Slice returns a copy of tracks in [offset, offset+limit).
func (c *Catalog) Slice(offset, limit int) []Track {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(c.tracks) || limit <= 0 {
		return []Track{}
	}
	end := offset + limit
	if end > len(c.tracks) {
		end = len(c.tracks)
	}
	out := make([]Track, end-offset)
	copy(out, c.tracks[offset:end])
	return out
}
