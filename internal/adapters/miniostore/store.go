package miniostore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ewilliams-labs/trackfinder/internal/adapters/artifact"
	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
	"github.com/ewilliams-labs/trackfinder/internal/core/ports"
)

// Options configures the MinIO connection.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	// Region skips the bucket location lookup when set.
	Region string
}

// Store fetches artifacts addressed as minio://bucket/key.
type Store struct {
	client *minio.Client
}

// compile-time interface assertion
var _ ports.ArtifactSource = (*Store)(nil)

func NewStore(client *minio.Client) *Store {
	return &Store{client: client}
}

func New(opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("miniostore: %w", err)
	}
	return NewStore(client), nil
}

func (s *Store) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(location, err)
	}
	// GetObject is lazy; Stat issues the request and surfaces a missing key
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, classify(location, err)
	}
	return artifact.TransportBody(location, obj), nil
}

func classify(location string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return fmt.Errorf("miniostore: %s: %w", location, domain.ErrNotFound)
	default:
		return &domain.TransportError{Resource: location, Err: err}
	}
}

// ParseLocation splits minio://bucket/key into its parts.
func ParseLocation(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("miniostore: %w", err)
	}
	if u.Scheme != "minio" {
		return "", "", fmt.Errorf("miniostore: unsupported scheme %q", u.Scheme)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("miniostore: location %q must be minio://bucket/key", location)
	}
	return u.Host, key, nil
}
