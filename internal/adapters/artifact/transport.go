package artifact

import (
	"errors"
	"io"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

// TransportBody wraps a network response body so that read failures are
// reported as transport failures rather than malformed data.
func TransportBody(resource string, body io.ReadCloser) io.ReadCloser {
	return &transportBody{resource: resource, body: body}
}

type transportBody struct {
	resource string
	body     io.ReadCloser
}

func (t *transportBody) Read(p []byte) (int, error) {
	n, err := t.body.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &domain.TransportError{Resource: t.resource, Err: err}
	}
	return n, err
}

func (t *transportBody) Close() error {
	return t.body.Close()
}
