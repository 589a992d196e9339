package domain

import "math"

// NeighborEntry references a similar track by id. Lower distance means more similar.
type NeighborEntry struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// Neighbor is a NeighborEntry resolved against the catalog.
type Neighbor struct {
	Track    Track   `json:"track"`
	Distance float64 `json:"distance"`
}

// Similarity converts the distance into a 0-100 percentage.
func (n Neighbor) Similarity() int {
	pct := math.Round((1 - n.Distance) * 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// NeighborTable maps a track id to its neighbors, pre-sorted by ascending distance.
type NeighborTable struct {
	entries map[string][]NeighborEntry
}

// NewNeighborTable takes ownership of entries; callers must not mutate it afterwards.
func NewNeighborTable(entries map[string][]NeighborEntry) *NeighborTable {
	if entries == nil {
		entries = map[string][]NeighborEntry{}
	}
	return &NeighborTable{entries: entries}
}

// Lookup returns the neighbor list for id. The returned slice is shared and read-only.
func (t *NeighborTable) Lookup(id string) ([]NeighborEntry, bool) {
	list, ok := t.entries[id]
	return list, ok
}

// Len returns the number of tracks with a neighbor list.
func (t *NeighborTable) Len() int {
	return len(t.entries)
}

// Each calls fn for every track id and its list, in no particular order.
func (t *NeighborTable) Each(fn func(id string, list []NeighborEntry)) {
	for id, list := range t.entries {
		fn(id, list)
	}
}
