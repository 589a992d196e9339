package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/exp/mmap"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
	"github.com/ewilliams-labs/trackfinder/internal/core/ports"
)

// Source reads artifacts from the local filesystem through a read-only
// memory map. Relative paths resolve against Root.
type Source struct {
	Root string
}

// compile-time interface assertion
var _ ports.ArtifactSource = (*Source)(nil)

func New(root string) *Source {
	return &Source{Root: root}
}

// Open maps the file at location, a plain path or file:// URI.
func (s *Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.resolve(location)
	if err != nil {
		return nil, err
	}

	ra, err := mmap.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("localfs: %s: %w", p, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("localfs: mmap %s: %w", p, err)
	}
	return &mappedFile{
		SectionReader: io.NewSectionReader(ra, 0, int64(ra.Len())),
		ra:            ra,
	}, nil
}

func (s *Source) resolve(location string) (string, error) {
	p := location
	if strings.HasPrefix(strings.ToLower(location), "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("localfs: %w", err)
		}
		p = u.Path
		if u.Host != "" && u.Host != "localhost" {
			// file://relative/path
			p = filepath.Join(u.Host, u.Path)
		}
	}
	if p == "" {
		return "", fmt.Errorf("localfs: empty path: %w", domain.ErrNotFound)
	}
	p = filepath.FromSlash(p)
	if !filepath.IsAbs(p) && s.Root != "" {
		p = filepath.Join(s.Root, p)
	}
	return filepath.Clean(p), nil
}

type mappedFile struct {
	*io.SectionReader
	ra *mmap.ReaderAt
}

func (m *mappedFile) Close() error {
	return m.ra.Close()
}
