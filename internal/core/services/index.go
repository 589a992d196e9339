package services

import (
	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/text/cases"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

const gramSize = 3

// Index answers the same queries as Search, using trigram postings to skip
// tracks that cannot match. Built once per catalog and read-only afterwards.
type Index struct {
	catalog *domain.Catalog
	texts   []string
	grams   map[string]*roaring.Bitmap
}

// NewIndex folds every track's search text and records its trigrams.
func NewIndex(catalog *domain.Catalog) *Index {
	ix := &Index{
		catalog: catalog,
		texts:   make([]string, catalog.Len()),
		grams:   make(map[string]*roaring.Bitmap),
	}

	fold := cases.Fold()
	for i := 0; i < catalog.Len(); i++ {
		text := fold.String(catalog.At(i).SearchText())
		ix.texts[i] = text

		runes := []rune(text)
		for j := 0; j+gramSize <= len(runes); j++ {
			g := string(runes[j : j+gramSize])
			bm, ok := ix.grams[g]
			if !ok {
				bm = roaring.New()
				ix.grams[g] = bm
			}
			bm.Add(uint32(i))
		}
	}
	for _, bm := range ix.grams {
		bm.RunOptimize()
	}
	return ix
}

// Catalog returns the catalog the index was built from.
func (ix *Index) Catalog() *domain.Catalog {
	return ix.catalog
}

// Search mirrors the package-level Search.
func (ix *Index) Search(query string, limit int) []domain.Track {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return []domain.Track{}
	}
	limit = clampLimit(limit, DefaultSearchLimit, MaxSearchLimit)

	candidates, ok := ix.candidates(tokens)
	if !ok {
		return []domain.Track{}
	}

	out := make([]domain.Track, 0, limit)
	if candidates == nil {
		// every token is shorter than a trigram
		for i := 0; i < len(ix.texts) && len(out) < limit; i++ {
			if containsAll(ix.texts[i], tokens) {
				out = append(out, ix.catalog.At(i))
			}
		}
		return out
	}

	it := candidates.Iterator()
	for it.HasNext() && len(out) < limit {
		i := int(it.Next())
		if containsAll(ix.texts[i], tokens) {
			out = append(out, ix.catalog.At(i))
		}
	}
	return out
}

// candidates intersects the postings of every trigram in tokens. It returns
// (nil, true) when no token is long enough to constrain the result and
// (nil, false) when some trigram never occurs.
func (ix *Index) candidates(tokens []string) (*roaring.Bitmap, bool) {
	var acc *roaring.Bitmap
	for _, tok := range tokens {
		runes := []rune(tok)
		for j := 0; j+gramSize <= len(runes); j++ {
			bm, ok := ix.grams[string(runes[j:j+gramSize])]
			if !ok {
				return nil, false
			}
			if acc == nil {
				acc = bm.Clone()
			} else {
				acc.And(bm)
			}
			if acc.IsEmpty() {
				return nil, false
			}
		}
	}
	return acc, true
}
