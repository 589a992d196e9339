package domain

import "strings"

// AudioFeatures holds the descriptive features computed offline for a track.
type AudioFeatures struct {
	Tempo         float64 `json:"tempo"`
	Tonic         string  `json:"tonic"`
	Mode          string  `json:"mode"`
	HarmonyDegree float64 `json:"harmony_degree"`
	Progression1  string  `json:"progression1"`
	Progression2  string  `json:"progression2"`
}

// Track represents a musical track in the domain layer.
type Track struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Artist   string         `json:"artist"`
	Features *AudioFeatures `json:"features,omitempty"` // optional
}

// Key returns the "Artist - Title" display key.
func (t Track) Key() string {
	return t.Artist + " - " + t.Title
}

// SearchText is the combined representation matched by search queries.
func (t Track) SearchText() string {
	return t.Artist + " " + t.Title
}

// ParseKey splits an "Artist - Title" display key. Titles may contain the
// separator themselves, so only the first occurrence splits.
func ParseKey(key string) (artist string, title string) {
	artist, title, _ = strings.Cut(key, " - ")
	return strings.TrimSpace(artist), strings.TrimSpace(title)
}
