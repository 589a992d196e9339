package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
	"github.com/ewilliams-labs/trackfinder/internal/core/ports"
)

// Artifact names exposed by OpenRaw.
const (
	CatalogArtifact   = "catalog"
	NeighborsArtifact = "neighbors"
)

// Reader loads the catalog and neighbor table from static artifacts.
// It implements ports.CatalogReader and ports.NeighborReader.
type Reader struct {
	source    ports.ArtifactSource
	catalog   string
	neighbors string
	log       *slog.Logger
}

func NewReader(source ports.ArtifactSource, catalogLocation, neighborsLocation string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reader{
		source:    source,
		catalog:   catalogLocation,
		neighbors: neighborsLocation,
		log:       logger,
	}
}

func (r *Reader) ReadCatalog(ctx context.Context) (*domain.Catalog, error) {
	rc, format, err := r.open(ctx, r.catalog)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	c, err := DecodeCatalog(rc, format, r.catalog, r.log)
	if err != nil {
		return nil, err
	}
	r.log.Info("artifact: catalog loaded", "location", r.catalog, "tracks", c.Len())
	return c, nil
}

func (r *Reader) ReadNeighbors(ctx context.Context) (*domain.NeighborTable, error) {
	rc, _, err := r.open(ctx, r.neighbors)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t, err := DecodeNeighbors(rc, r.neighbors, r.log)
	if err != nil {
		return nil, err
	}
	r.log.Info("artifact: neighbor table loaded", "location", r.neighbors, "tracks", t.Len())
	return t, nil
}

// OpenRaw streams the decompressed bytes of a named artifact along with its
// content type. Unknown names fail with domain.ErrNotFound.
func (r *Reader) OpenRaw(ctx context.Context, name string) (io.ReadCloser, string, error) {
	var location string
	switch name {
	case CatalogArtifact:
		location = r.catalog
	case NeighborsArtifact:
		location = r.neighbors
	default:
		return nil, "", fmt.Errorf("artifact %q: %w", name, domain.ErrNotFound)
	}

	rc, format, err := r.open(ctx, location)
	if err != nil {
		return nil, "", err
	}
	contentType := "application/json"
	if name == CatalogArtifact && format != FormatJSON {
		contentType = "text/csv; charset=utf-8"
	}
	return rc, contentType, nil
}

func (r *Reader) open(ctx context.Context, location string) (io.ReadCloser, Format, error) {
	if location == "" {
		return nil, FormatUnknown, &domain.DataUnavailableError{Resource: "artifact", Reason: "no location configured"}
	}

	body, err := r.source.Open(ctx, location)
	if err != nil {
		return nil, FormatUnknown, classifyOpenError(location, err)
	}

	codec, name := splitCompression(objectName(location))
	rc, err := decompress(body, codec)
	if err != nil {
		body.Close()
		return nil, FormatUnknown, &domain.DataUnavailableError{Resource: location, Reason: "decompress", Err: err}
	}

	format := FormatUnknown
	switch path.Ext(name) {
	case ".csv":
		format = FormatCSV
	case ".json":
		format = FormatJSON
	}
	return rc, format, nil
}

func classifyOpenError(location string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &domain.DataUnavailableError{Resource: location, Reason: "not found", Err: err}
	case errors.Is(err, domain.ErrTransportFailure), errors.Is(err, domain.ErrDataUnavailable):
		return err
	default:
		return &domain.TransportError{Resource: location, Err: err}
	}
}
