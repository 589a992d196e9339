package httpfetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

func TestClient_Open(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/tracks.csv":
			assert.Equal(t, "trackfinder-test", r.Header.Get("User-Agent"))
			_, _ = io.WriteString(w, "track_name,artist_name\n")
		case "/gone.csv":
			w.WriteHeader(http.StatusGone)
		case "/broken.csv":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(server.Client(), Credentials{}, "trackfinder-test")
	ctx := context.Background()

	rc, err := c.Open(ctx, server.URL+"/tracks.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "track_name,artist_name\n", string(body))

	tests := []struct {
		path string
		want error
	}{
		{path: "/missing.csv", want: domain.ErrNotFound},
		{path: "/gone.csv", want: domain.ErrNotFound},
		{path: "/broken.csv", want: domain.ErrTransportFailure},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			_, err := c.Open(ctx, server.URL+tc.path)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// no retry on server errors
	before := hits.Load()
	_, _ = c.Open(ctx, server.URL+"/broken.csv")
	assert.Equal(t, before+1, hits.Load())
}

func TestClient_OpenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(nil, Credentials{}, "").Open(context.Background(), url+"/tracks.csv")
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
}

func TestClient_ClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token": "secret-token", "token_type": "bearer", "expires_in": 3600}`)
	})
	mux.HandleFunc("/neighbors.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient(server.Client(), Credentials{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     server.URL + "/token",
	}, "")

	rc, err := c.Open(context.Background(), server.URL+"/neighbors.json")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))

	_, err = NewClient(server.Client(), Credentials{}, "").Open(context.Background(), server.URL+"/neighbors.json")
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
}
