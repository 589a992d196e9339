package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
	"github.com/ewilliams-labs/trackfinder/internal/core/services"
)

// --- Mocks ---

// The Handler depends on the concrete *Orchestrator, so tests build a real
// one on top of mock readers.

type mockCatalogReader struct {
	catalog *domain.Catalog
	err     error
}

func (m *mockCatalogReader) ReadCatalog(ctx context.Context) (*domain.Catalog, error) {
	return m.catalog, m.err
}

type mockNeighborReader struct {
	table *domain.NeighborTable
	err   error
}

func (m *mockNeighborReader) ReadNeighbors(ctx context.Context) (*domain.NeighborTable, error) {
	return m.table, m.err
}

type mockArtifacts struct {
	body string
	err  error
}

func (m *mockArtifacts) OpenRaw(ctx context.Context, name string) (io.ReadCloser, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	if name != "catalog" {
		return nil, "", domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(m.body)), "text/csv; charset=utf-8", nil
}

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	c, err := domain.NewCatalog([]domain.Track{
		{ID: "0", Title: "Song One", Artist: "A", Features: &domain.AudioFeatures{Tempo: 120, Tonic: "C", Mode: "major"}},
		{ID: "1", Title: "Song Two", Artist: "B"},
		{ID: "2", Title: "Other Tune", Artist: "C"},
	})
	require.NoError(t, err)
	return c
}

func testTable() *domain.NeighborTable {
	return domain.NewNeighborTable(map[string][]domain.NeighborEntry{
		"0": {{ID: "0", Distance: 0}, {ID: "1", Distance: 0.2}, {ID: "2", Distance: 0.55}},
	})
}

func newTestHandler(t *testing.T, catalogs *mockCatalogReader, neighbors *mockNeighborReader, opts Options) *Handler {
	t.Helper()
	svc, err := services.NewOrchestrator(services.NewLoader(catalogs, neighbors, nil), services.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return NewHandler(svc, &mockArtifacts{body: "track_name,artist_name\n"}, opts, nil)
}

func do(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHandler_Routes(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedBody   string // substring match
	}{
		{name: "health", target: "/health", expectedStatus: http.StatusOK, expectedBody: `"status":"ok"`},
		{name: "search", target: "/tracks?q=song+one", expectedStatus: http.StatusOK, expectedBody: `"key":"A - Song One"`},
		{name: "search case-insensitive", target: "/tracks?q=SONG", expectedStatus: http.StatusOK, expectedBody: `"id":"1"`},
		{name: "empty search", target: "/tracks?q=", expectedStatus: http.StatusOK, expectedBody: `"tracks":[]`},
		{name: "bad limit", target: "/tracks?q=song&limit=ten", expectedStatus: http.StatusBadRequest, expectedBody: `"code":"BAD_REQUEST"`},
		{name: "listing", target: "/tracks?all=true&offset=2", expectedStatus: http.StatusOK, expectedBody: `"title":"Other Tune"`},
		{name: "negative offset", target: "/tracks?all=true&offset=-1", expectedStatus: http.StatusBadRequest, expectedBody: "offset"},
		{name: "track", target: "/tracks/0", expectedStatus: http.StatusOK, expectedBody: `"tempo":120`},
		{name: "unknown track", target: "/tracks/42", expectedStatus: http.StatusNotFound, expectedBody: `"code":"NOT_FOUND"`},
		{name: "lookup", target: "/tracks/lookup?key=B+-+Song+Two", expectedStatus: http.StatusOK, expectedBody: `"id":"1"`},
		{name: "lookup missing key", target: "/tracks/lookup", expectedStatus: http.StatusBadRequest, expectedBody: "key is required"},
		{name: "random", target: "/tracks/random", expectedStatus: http.StatusOK, expectedBody: `"key":`},
		{name: "similar unknown", target: "/tracks/42/similar", expectedStatus: http.StatusNotFound, expectedBody: `"code":"NOT_FOUND"`},
		{name: "artifact", target: "/artifacts/catalog", expectedStatus: http.StatusOK, expectedBody: "track_name,artist_name"},
		{name: "unknown artifact", target: "/artifacts/secrets", expectedStatus: http.StatusNotFound, expectedBody: `"code":"NOT_FOUND"`},
	}

	h := newTestHandler(t, &mockCatalogReader{catalog: testCatalog(t)}, &mockNeighborReader{table: testTable()}, Options{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.target)
			assert.Equal(t, tt.expectedStatus, rec.Code, "body: %s", rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
		})
	}
}

func TestHandler_SimilarTracks(t *testing.T) {
	h := newTestHandler(t, &mockCatalogReader{catalog: testCatalog(t)}, &mockNeighborReader{table: testTable()}, Options{})

	rec := do(h, "/tracks/0/similar?k=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp similarResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0", resp.Track.ID)
	require.Len(t, resp.Neighbors, 2, "self match is excluded")
	assert.Equal(t, "1", resp.Neighbors[0].Track.ID)
	assert.Equal(t, 80, resp.Neighbors[0].Similarity)
	assert.Equal(t, 45, resp.Neighbors[1].Similarity)
	assert.Empty(t, resp.Message)

	// k truncates before the self match is removed
	rec = do(h, "/tracks/0/similar?k=2")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Neighbors, 1)

	rec = do(h, "/tracks/1/similar")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = similarResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Song Two", resp.Track.Title)
	assert.Empty(t, resp.Neighbors)
	assert.Equal(t, "no similar tracks found", resp.Message)
	assert.Contains(t, rec.Body.String(), `"neighbors":[]`)
}

func TestHandler_LoadFailures(t *testing.T) {
	tests := []struct {
		name           string
		catalogErr     error
		neighborErr    error
		target         string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "catalog unavailable",
			catalogErr:     &domain.DataUnavailableError{Resource: "tracks.csv", Reason: "not found", Err: domain.ErrNotFound},
			target:         "/tracks?q=song",
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "DATA_UNAVAILABLE",
		},
		{
			name:           "catalog transport failure",
			catalogErr:     &domain.TransportError{Resource: "tracks.csv", Err: errors.New("reset")},
			target:         "/tracks/0",
			expectedStatus: http.StatusBadGateway,
			expectedCode:   "TRANSPORT_FAILURE",
		},
		{
			name:           "neighbors unavailable blocks similar",
			neighborErr:    &domain.DataUnavailableError{Resource: "neighbors.json"},
			target:         "/tracks/0/similar",
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "DATA_UNAVAILABLE",
		},
		{
			name:           "unexpected error",
			catalogErr:     errors.New("boom"),
			target:         "/tracks/random",
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "INTERNAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalogs := &mockCatalogReader{catalog: testCatalog(t), err: tt.catalogErr}
			if tt.catalogErr != nil {
				catalogs.catalog = nil
			}
			neighbors := &mockNeighborReader{table: testTable(), err: tt.neighborErr}
			if tt.neighborErr != nil {
				neighbors.table = nil
			}
			h := newTestHandler(t, catalogs, neighbors, Options{})

			rec := do(h, tt.target)
			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"`+tt.expectedCode+`"`)
		})
	}
}

func TestHandler_Ready(t *testing.T) {
	h := newTestHandler(t, &mockCatalogReader{catalog: testCatalog(t)}, &mockNeighborReader{table: testTable()}, Options{})

	assert.Equal(t, http.StatusServiceUnavailable, do(h, "/ready").Code)
	require.NoError(t, h.svc.Warm(context.Background()))
	assert.Equal(t, http.StatusOK, do(h, "/ready").Code)
}

func TestMiddleware_RequestID(t *testing.T) {
	h := newTestHandler(t, &mockCatalogReader{catalog: testCatalog(t)}, &mockNeighborReader{table: testTable()}, Options{})

	rec := do(h, "/health")
	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	assert.NoError(t, err)

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", incoming)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, incoming, rec.Header().Get("X-Request-ID"))
}

func TestMiddleware_CORS(t *testing.T) {
	h := newTestHandler(t, &mockCatalogReader{catalog: testCatalog(t)}, &mockNeighborReader{table: testTable()}, Options{AllowedOrigin: "https://app.example"})

	req := httptest.NewRequest(http.MethodOptions, "/tracks", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMiddleware_RateLimit(t *testing.T) {
	h := newTestHandler(t, &mockCatalogReader{catalog: testCatalog(t)}, &mockNeighborReader{table: testTable()}, Options{RateLimit: 0.001, Burst: 2})

	assert.Equal(t, http.StatusOK, do(h, "/health").Code)
	assert.Equal(t, http.StatusOK, do(h, "/health").Code)
	rec := do(h, "/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"RATE_LIMITED"`)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }), mw("outer"), mw("inner"))
	do(h, "/")
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
