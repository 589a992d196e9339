package services

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// Search returns catalog tracks whose "artist title" text contains every
// whitespace-delimited token of query, ignoring case. Matches keep catalog
// order and are truncated to limit. An empty query matches nothing.
func Search(query string, catalog *domain.Catalog, limit int) []domain.Track {
	tokens := queryTokens(query)
	if len(tokens) == 0 || catalog == nil {
		return []domain.Track{}
	}
	limit = clampLimit(limit, DefaultSearchLimit, MaxSearchLimit)

	fold := cases.Fold()
	out := make([]domain.Track, 0, limit)
	for i := 0; i < catalog.Len() && len(out) < limit; i++ {
		t := catalog.At(i)
		if containsAll(fold.String(t.SearchText()), tokens) {
			out = append(out, t)
		}
	}
	return out
}

// List returns the unfiltered catalog slice used as a default listing.
func List(catalog *domain.Catalog, offset, limit int) []domain.Track {
	if catalog == nil {
		return []domain.Track{}
	}
	return catalog.Slice(offset, clampLimit(limit, DefaultSearchLimit, MaxSearchLimit))
}

func queryTokens(query string) []string {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	// cases.Caser is stateful; one per call.
	return strings.Fields(cases.Fold().String(query))
}

func containsAll(text string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(text, tok) {
			return false
		}
	}
	return true
}

func clampLimit(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}
