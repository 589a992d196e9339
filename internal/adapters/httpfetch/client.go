package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/trackfinder/internal/adapters/artifact"
	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
	"github.com/ewilliams-labs/trackfinder/internal/core/ports"
)

const defaultTimeout = 30 * time.Second

// Client fetches artifacts over HTTP(S). Each fetch is a single attempt.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// compile-time interface assertion
var _ ports.ArtifactSource = (*Client)(nil)

// Credentials configures OAuth2 client-credentials authentication for
// protected artifact hosts. A zero value disables authentication.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

func (c Credentials) enabled() bool {
	return c.ClientID != "" && c.TokenURL != ""
}

// NewClient constructs a new artifact fetcher. A nil httpClient gets a
// client with a 30s timeout.
func NewClient(httpClient *http.Client, creds Credentials, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if creds.enabled() {
		cfg := clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     creds.TokenURL,
			Scopes:       creds.Scopes,
		}
		// token requests go through the same base client
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		authed := cfg.Client(ctx)
		authed.Timeout = httpClient.Timeout
		httpClient = authed
	}
	return &Client{httpClient: httpClient, userAgent: userAgent}
}

// Open issues a GET for location. 404 and 410 map to domain.ErrNotFound; any
// other non-2xx status or network failure is a transport failure.
func (c *Client) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// #nosec G107 -- URL comes from operator configuration
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Resource: location, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("httpfetch: %s: status %d: %w", location, resp.StatusCode, domain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_ = resp.Body.Close()
		return nil, &domain.TransportError{Resource: location, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	return artifact.TransportBody(location, resp.Body), nil
}
