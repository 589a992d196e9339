package rest

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

type trackResponse struct {
	ID       string                `json:"id"`
	Title    string                `json:"title"`
	Artist   string                `json:"artist"`
	Key      string                `json:"key"`
	Features *domain.AudioFeatures `json:"features,omitempty"`
}

type trackListResponse struct {
	Query  string          `json:"query,omitempty"`
	Offset int             `json:"offset,omitempty"`
	Tracks []trackResponse `json:"tracks"`
}

type neighborResponse struct {
	Track      trackResponse `json:"track"`
	Distance   float64       `json:"distance"`
	Similarity int           `json:"similarity"`
}

type similarResponse struct {
	Track     trackResponse      `json:"track"`
	Neighbors []neighborResponse `json:"neighbors"`
	Message   string             `json:"message,omitempty"`
}

const noSimilarMessage = "no similar tracks found"

func toTrackResponse(t domain.Track) trackResponse {
	return trackResponse{
		ID:       t.ID,
		Title:    t.Title,
		Artist:   t.Artist,
		Key:      t.Key(),
		Features: t.Features,
	}
}

func toTrackList(tracks []domain.Track) []trackResponse {
	out := make([]trackResponse, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, toTrackResponse(t))
	}
	return out
}

// SearchTracks handles GET /tracks?q=&limit= and GET /tracks?all=true&offset=&limit=
func (h *Handler) SearchTracks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "limit must be an integer", errCodeBadRequest)
		return
	}

	if all, _ := strconv.ParseBool(q.Get("all")); all {
		offset, err := intParam(q.Get("offset"))
		if err != nil || offset < 0 {
			writeErrorWithCode(w, http.StatusBadRequest, "offset must be a non-negative integer", errCodeBadRequest)
			return
		}
		tracks, err := h.svc.List(r.Context(), offset, limit)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, trackListResponse{Offset: offset, Tracks: toTrackList(tracks)})
		return
	}

	query := q.Get("q")
	tracks, err := h.svc.Search(r.Context(), query, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trackListResponse{Query: query, Tracks: toTrackList(tracks)})
}

// RandomTrack handles GET /tracks/random
func (h *Handler) RandomTrack(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Random(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrackResponse(t))
}

// LookupTrack handles GET /tracks/lookup?key=Artist - Title
func (h *Handler) LookupTrack(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		writeErrorWithCode(w, http.StatusBadRequest, "key is required", errCodeBadRequest)
		return
	}
	t, err := h.svc.TrackByKey(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrackResponse(t))
}

// GetTrack handles GET /tracks/{id}
func (h *Handler) GetTrack(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Track(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrackResponse(t))
}

// SimilarTracks handles GET /tracks/{id}/similar?k=
func (h *Handler) SimilarTracks(w http.ResponseWriter, r *http.Request) {
	k, err := intParam(r.URL.Query().Get("k"))
	if err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "k must be an integer", errCodeBadRequest)
		return
	}

	res, err := h.svc.Similar(r.Context(), r.PathValue("id"), k)
	resp := similarResponse{Neighbors: []neighborResponse{}}
	switch {
	case errors.Is(err, domain.ErrNeighborsUnavailable):
		// the track exists but has no precomputed neighbors
		resp.Message = noSimilarMessage
	case err != nil:
		h.writeServiceError(w, r, err)
		return
	}

	resp.Track = toTrackResponse(res.Track)
	for _, n := range res.Neighbors {
		resp.Neighbors = append(resp.Neighbors, neighborResponse{
			Track:      toTrackResponse(n.Track),
			Distance:   n.Distance,
			Similarity: n.Similarity(),
		})
	}
	if len(resp.Neighbors) == 0 {
		resp.Message = noSimilarMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetArtifact handles GET /artifacts/{name}
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	if h.artifacts == nil {
		writeErrorWithCode(w, http.StatusNotFound, "artifacts are not served", errCodeNotFound)
		return
	}
	body, contentType, err := h.artifacts.OpenRaw(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		// headers are gone; all we can do is log
		h.log.Warn("rest: artifact stream interrupted", "artifact", r.PathValue("name"), "error", err)
	}
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
