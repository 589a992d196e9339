package artifact

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the codec applied to an artifact, derived from its suffix.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionLZ4
)

var compressionSuffixes = map[string]Compression{
	".gz":   CompressionGzip,
	".gzip": CompressionGzip,
	".zst":  CompressionZstd,
	".zstd": CompressionZstd,
	".lz4":  CompressionLZ4,
}

// objectName returns the last path element of a location, ignoring any URL query.
func objectName(location string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		location = u.Path
	}
	return strings.ToLower(path.Base(strings.ReplaceAll(location, "\\", "/")))
}

// splitCompression returns the codec of name and the name without its codec suffix.
func splitCompression(name string) (Compression, string) {
	ext := path.Ext(name)
	if c, ok := compressionSuffixes[ext]; ok {
		return c, strings.TrimSuffix(name, ext)
	}
	return CompressionNone, name
}

// decompress wraps r according to c. Closing the result closes r.
func decompress(r io.ReadCloser, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return r, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, r}}, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return &stackedCloser{Reader: dec, closers: []io.Closer{dec.IOReadCloser(), r}}, nil
	case CompressionLZ4:
		return &stackedCloser{Reader: lz4.NewReader(r), closers: []io.Closer{r}}, nil
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
