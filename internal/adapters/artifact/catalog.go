package artifact

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/trackfinder/internal/core/domain"
)

// Format is the serialization of a catalog artifact.
type Format int

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatJSON
)

// column aliases accepted in CSV headers, after trimming and lower-casing
var (
	titleColumns  = []string{"track_name", "title"}
	artistColumns = []string{"artist_name", "artist"}
)

// DecodeCatalog parses a catalog artifact. Rows failing validation are logged
// and skipped; a missing header, an unparseable document or a catalog with no
// valid rows fails with domain.ErrDataUnavailable.
func DecodeCatalog(r io.Reader, format Format, resource string, logger *slog.Logger) (*domain.Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	br := bufio.NewReader(r)
	if format == FormatUnknown {
		format = sniffFormat(br)
	}

	d := catalogDecoder{resource: resource, log: logger}
	var err error
	switch format {
	case FormatJSON:
		err = d.decodeJSON(br)
	default:
		err = d.decodeCSV(br)
	}
	if err != nil {
		return nil, err
	}

	if d.builder.Len() == 0 {
		return nil, &domain.DataUnavailableError{Resource: resource, Reason: "no valid tracks found"}
	}
	if d.dropped > 0 {
		logger.Warn("artifact: catalog rows dropped", "resource", resource, "dropped", d.dropped, "kept", d.builder.Len())
	}
	return d.builder.Build(), nil
}

func sniffFormat(br *bufio.Reader) Format {
	// a short peek still returns whatever was buffered
	peek, _ := br.Peek(512)
	peek = bytes.TrimPrefix(peek, []byte("\xef\xbb\xbf"))
	peek = bytes.TrimLeft(peek, " \t\r\n")
	if len(peek) > 0 && (peek[0] == '{' || peek[0] == '[') {
		return FormatJSON
	}
	return FormatCSV
}

type catalogDecoder struct {
	resource string
	log      *slog.Logger
	builder  domain.CatalogBuilder
	dropped  int
}

func (d *catalogDecoder) drop(row int, reason string) {
	d.dropped++
	err := &domain.MalformedRecordError{Resource: d.resource, Row: row, Reason: reason}
	d.log.Warn("artifact: skipping record", "error", err)
}

func (d *catalogDecoder) add(row int, t domain.Track) {
	if err := d.builder.Add(t); err != nil {
		if errors.Is(err, domain.ErrDuplicateTrack) {
			d.drop(row, "duplicate id "+strconv.Quote(t.ID))
			return
		}
		d.drop(row, err.Error())
	}
}

// --- CSV ---

type csvColumns struct {
	id, title, artist                                       int
	tempo, tonic, mode, harmony, progression1, progression2 int
}

func (c csvColumns) hasFeatures() bool {
	return c.tempo >= 0 || c.tonic >= 0 || c.mode >= 0 || c.harmony >= 0 || c.progression1 >= 0 || c.progression2 >= 0
}

func (d *catalogDecoder) decodeCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.DataUnavailableError{Resource: d.resource, Reason: "empty catalog"}
		}
		return d.readFailure(err)
	}
	cols, ok := mapHeader(header)
	if !ok {
		return &domain.DataUnavailableError{Resource: d.resource, Reason: "invalid CSV format - missing required columns track_name and artist_name"}
	}

	// ids follow the position among non-blank data lines, so dropped rows
	// never shift the ids of the rows after them
	index := -1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				index++
				d.drop(index, perr.Err.Error())
				continue
			}
			return d.readFailure(err)
		}
		if blankRecord(record) {
			continue
		}
		index++

		t, reason := csvTrack(record, cols, index)
		if reason != "" {
			d.drop(index, reason)
			continue
		}
		d.add(index, t)
	}
}

func mapHeader(header []string) (csvColumns, bool) {
	cols := csvColumns{id: -1, title: -1, artist: -1, tempo: -1, tonic: -1, mode: -1, harmony: -1, progression1: -1, progression2: -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case name == "id":
			cols.id = i
		case slices.Contains(titleColumns, name) && cols.title < 0:
			cols.title = i
		case slices.Contains(artistColumns, name) && cols.artist < 0:
			cols.artist = i
		case name == "tempo":
			cols.tempo = i
		case name == "tonic":
			cols.tonic = i
		case name == "mode":
			cols.mode = i
		case name == "harmony_degree":
			cols.harmony = i
		case name == "progression1":
			cols.progression1 = i
		case name == "progression2":
			cols.progression2 = i
		}
	}
	return cols, cols.title >= 0 && cols.artist >= 0
}

func csvTrack(record []string, cols csvColumns, index int) (domain.Track, string) {
	t := domain.Track{
		ID:     strconv.Itoa(index),
		Title:  field(record, cols.title),
		Artist: field(record, cols.artist),
	}
	if id := field(record, cols.id); id != "" {
		t.ID = id
	}
	if t.Title == "" || t.Artist == "" {
		return domain.Track{}, "missing title or artist"
	}
	if !cols.hasFeatures() {
		return t, ""
	}

	var f domain.AudioFeatures
	present := false
	if raw := field(record, cols.tempo); raw != "" {
		v, err := parseNonNegative(raw)
		if err != nil {
			return domain.Track{}, "tempo: " + err.Error()
		}
		f.Tempo, present = v, true
	}
	if raw := field(record, cols.harmony); raw != "" {
		v, err := parseNonNegative(raw)
		if err != nil {
			return domain.Track{}, "harmony_degree: " + err.Error()
		}
		f.HarmonyDegree, present = v, true
	}
	for _, s := range []struct {
		dst *string
		col int
	}{
		{&f.Tonic, cols.tonic},
		{&f.Mode, cols.mode},
		{&f.Progression1, cols.progression1},
		{&f.Progression2, cols.progression2},
	} {
		if v := field(record, s.col); v != "" {
			*s.dst, present = v, true
		}
	}
	if present {
		t.Features = &f
	}
	return t, ""
}

func (d *catalogDecoder) readFailure(err error) error {
	if errors.Is(err, domain.ErrTransportFailure) {
		return err
	}
	return &domain.DataUnavailableError{Resource: d.resource, Reason: "read failed", Err: err}
}

// --- JSON ---

// catalogRecord is the accepted JSON shape of one catalog row. Pointer fields
// distinguish absent from empty.
type catalogRecord struct {
	ID            flexibleID `json:"id"`
	Title         *string    `json:"title"`
	TrackName     *string    `json:"track_name"`
	Artist        *string    `json:"artist"`
	ArtistName    *string    `json:"artist_name"`
	Tempo         *float64   `json:"tempo"`
	Tonic         *string    `json:"tonic"`
	Mode          *string    `json:"mode"`
	HarmonyDegree *float64   `json:"harmony_degree"`
	Progression1  *string    `json:"progression1"`
	Progression2  *string    `json:"progression2"`
}

func (rec catalogRecord) track(index int) (domain.Track, string) {
	t := domain.Track{
		ID:     string(rec.ID),
		Title:  strings.TrimSpace(firstNonNil(rec.Title, rec.TrackName)),
		Artist: strings.TrimSpace(firstNonNil(rec.Artist, rec.ArtistName)),
	}
	if t.ID == "" {
		t.ID = strconv.Itoa(index)
	}
	if t.Title == "" || t.Artist == "" {
		return domain.Track{}, "missing title or artist"
	}
	if rec.Tempo != nil && *rec.Tempo < 0 {
		return domain.Track{}, "tempo: negative"
	}
	if rec.HarmonyDegree != nil && *rec.HarmonyDegree < 0 {
		return domain.Track{}, "harmony_degree: negative"
	}

	if rec.Tempo == nil && rec.HarmonyDegree == nil && rec.Tonic == nil && rec.Mode == nil && rec.Progression1 == nil && rec.Progression2 == nil {
		return t, ""
	}
	f := domain.AudioFeatures{
		Tonic:        deref(rec.Tonic),
		Mode:         deref(rec.Mode),
		Progression1: deref(rec.Progression1),
		Progression2: deref(rec.Progression2),
	}
	if rec.Tempo != nil {
		f.Tempo = *rec.Tempo
	}
	if rec.HarmonyDegree != nil {
		f.HarmonyDegree = *rec.HarmonyDegree
	}
	t.Features = &f
	return t, ""
}

func (d *catalogDecoder) decodeJSON(r io.Reader) error {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return d.readFailure(err)
	}

	var rows []json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return &domain.DataUnavailableError{Resource: d.resource, Reason: "invalid JSON", Err: err}
		}
	} else {
		var doc struct {
			Tracks []json.RawMessage `json:"tracks"`
			Error  string            `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return &domain.DataUnavailableError{Resource: d.resource, Reason: "invalid JSON", Err: err}
		}
		if doc.Error != "" {
			return &domain.DataUnavailableError{Resource: d.resource, Reason: doc.Error}
		}
		if doc.Tracks == nil {
			return &domain.DataUnavailableError{Resource: d.resource, Reason: "response missing tracks array"}
		}
		rows = doc.Tracks
	}

	for i, row := range rows {
		var rec catalogRecord
		if err := json.Unmarshal(row, &rec); err != nil {
			d.drop(i, err.Error())
			continue
		}
		t, reason := rec.track(i)
		if reason != "" {
			d.drop(i, reason)
			continue
		}
		d.add(i, t)
	}
	return nil
}

// flexibleID accepts a JSON string or number.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

// --- helpers ---

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// blankRecord reports whether record came from a whitespace-only line. A line
// of empty fields such as ",," is a data row and keeps its position.
func blankRecord(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}

func parseNonNegative(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("out of range")
	}
	return v, nil
}

func firstNonNil(vals ...*string) string {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
