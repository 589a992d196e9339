package ports

import (
	"context"
	"io"
)

// ArtifactSource fetches the raw bytes of a static artifact by location.
//
// Implementations return an error satisfying errors.Is(err, domain.ErrNotFound)
// when the artifact does not exist; any other error is treated as a transport failure.
type ArtifactSource interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}
