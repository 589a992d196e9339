package artifact

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

// DecodeNeighbors parses a neighbor table. Two shapes are accepted:
//
//	{"<id>": [{"id": "<id>", "distance": 0.12}, ...], ...}
//	{"indices": [[0, 4, ...], ...], "distances": [[0.0, 0.12, ...], ...]}
//
// In the second shape row i belongs to the track with id i and each index is
// a track id. Lists are kept in stored order.
func DecodeNeighbors(r io.Reader, resource string, logger *slog.Logger) (*domain.NeighborTable, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, domain.ErrTransportFailure) {
			return nil, err
		}
		return nil, &domain.DataUnavailableError{Resource: resource, Reason: "invalid neighbor table", Err: err}
	}
	if doc == nil {
		return nil, &domain.DataUnavailableError{Resource: resource, Reason: "neighbor table is null"}
	}

	d := neighborDecoder{resource: resource, log: logger}
	_, hasIndices := doc["indices"]
	_, hasDistances := doc["distances"]
	var (
		entries map[string][]domain.NeighborEntry
		err     error
	)
	if hasIndices && hasDistances {
		entries, err = d.decodeKNN(doc["indices"], doc["distances"])
	} else {
		entries, err = d.decodeMap(doc)
	}
	if err != nil {
		return nil, err
	}

	if d.dropped > 0 {
		logger.Warn("artifact: neighbor entries dropped", "resource", resource, "dropped", d.dropped)
	}
	if d.unsorted > 0 {
		logger.Warn("artifact: neighbor lists not sorted by distance", "resource", resource, "lists", d.unsorted)
	}
	return domain.NewNeighborTable(entries), nil
}

type neighborDecoder struct {
	resource string
	log      *slog.Logger
	dropped  int
	unsorted int
}

func (d *neighborDecoder) drop(row int, reason string) {
	d.skip(&domain.MalformedRecordError{Resource: d.resource, Row: row, Reason: reason})
}

// dropTrack records a bad entry in the map shape, which has no row order.
func (d *neighborDecoder) dropTrack(id, reason string) {
	d.skip(&domain.MalformedRecordError{Resource: d.resource, Key: id, Reason: reason})
}

func (d *neighborDecoder) skip(err *domain.MalformedRecordError) {
	d.dropped++
	d.log.Debug("artifact: skipping neighbor entry", "error", err)
}

func (d *neighborDecoder) checkOrder(list []domain.NeighborEntry) {
	for i := 1; i < len(list); i++ {
		if list[i].Distance < list[i-1].Distance {
			d.unsorted++
			return
		}
	}
}

type rawNeighbor struct {
	ID       flexibleID `json:"id"`
	Distance *float64   `json:"distance"`
}

func (d *neighborDecoder) decodeMap(doc map[string]json.RawMessage) (map[string][]domain.NeighborEntry, error) {
	entries := make(map[string][]domain.NeighborEntry, len(doc))
	for id, raw := range doc {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			d.dropTrack(id, "neighbor list is not an array")
			continue
		}
		out := make([]domain.NeighborEntry, 0, len(list))
		for _, item := range list {
			var n rawNeighbor
			if err := json.Unmarshal(item, &n); err != nil {
				d.dropTrack(id, err.Error())
				continue
			}
			if n.ID == "" || n.Distance == nil {
				d.dropTrack(id, "neighbor missing id or distance")
				continue
			}
			if !validDistance(*n.Distance) {
				d.dropTrack(id, "invalid distance")
				continue
			}
			out = append(out, domain.NeighborEntry{ID: string(n.ID), Distance: *n.Distance})
		}
		d.checkOrder(out)
		entries[id] = out
	}
	return entries, nil
}

func (d *neighborDecoder) decodeKNN(rawIndices, rawDistances json.RawMessage) (map[string][]domain.NeighborEntry, error) {
	var indices [][]int
	var distances [][]float64
	if err := json.Unmarshal(rawIndices, &indices); err != nil {
		return nil, &domain.DataUnavailableError{Resource: d.resource, Reason: "invalid indices", Err: err}
	}
	if err := json.Unmarshal(rawDistances, &distances); err != nil {
		return nil, &domain.DataUnavailableError{Resource: d.resource, Reason: "invalid distances", Err: err}
	}
	if len(indices) != len(distances) {
		return nil, &domain.DataUnavailableError{Resource: d.resource, Reason: "indices and distances differ in length"}
	}

	entries := make(map[string][]domain.NeighborEntry, len(indices))
	for i, row := range indices {
		dist := distances[i]
		if len(row) != len(dist) {
			d.drop(i, "row length mismatch")
		}
		n := min(len(row), len(dist))
		out := make([]domain.NeighborEntry, 0, n)
		for j := 0; j < n; j++ {
			if row[j] < 0 || !validDistance(dist[j]) {
				d.drop(i, "invalid index or distance")
				continue
			}
			out = append(out, domain.NeighborEntry{ID: strconv.Itoa(row[j]), Distance: dist[j]})
		}
		d.checkOrder(out)
		entries[strconv.Itoa(i)] = out
	}
	return entries, nil
}

func validDistance(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
