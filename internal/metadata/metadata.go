// package metadata reads embedded tags and audio properties from the leading bytes of a remote file.
package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/shared"
	"github.com/dhowden/tag"
)

// Prefix is the head of a remote file plus what the provider reported about the whole file.
type Prefix struct {
	Data     []byte
	Size     int64 // -1 when unknown
	MimeType string
}

// PrefixReader fetches at most n leading bytes of a file.
type PrefixReader interface {
	ReadPrefix(ctx context.Context, fileID string, n int64) (*Prefix, error)
}

// Result holds whatever could be read from a file's head.
type Result struct {
	Title         string
	Artist        string
	Album         string
	Year          string
	Genre         string
	Track         string
	AudioFeatures *models.AudioFeatures
}

// HasTags reports whether a title or artist was found.
func (r *Result) HasTags() bool {
	return r != nil && (r.Title != "" || r.Artist != "")
}

// Empty reports whether nothing useful was found.
func (r *Result) Empty() bool {
	return r == nil || (r.Title == "" && r.Artist == "" && r.Album == "" && r.Year == "" &&
		r.Genre == "" && r.Track == "" && r.AudioFeatures.IsEmpty())
}

// Extractor reads embedded metadata through a [PrefixReader].
type Extractor struct {
	source   PrefixReader
	maxBytes int64
	logger   *log.Logger
}

// NewExtractor builds an Extractor reading at most maxBytes per file.
//
// maxBytes <= 0 uses [shared.DefaultMetadataBytes].
func NewExtractor(source PrefixReader, maxBytes int64, logger *log.Logger) *Extractor {
	if maxBytes <= 0 {
		maxBytes = shared.DefaultMetadataBytes
	}
	return &Extractor{source: source, maxBytes: maxBytes, logger: shared.WithLogger(logger, "component", "metadata")}
}

// Extract fetches the file's prefix and parses it.
//
// A prefix that yields nothing is reported as (nil, nil). Errors are returned only when
// the prefix itself could not be fetched.
func (e *Extractor) Extract(ctx context.Context, fileID string) (*Result, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", shared.ErrInvalidRequest)
	}

	prefix, err := e.source.ReadPrefix(ctx, fileID, e.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read file prefix: %w", err)
	}

	result := Parse(prefix)
	if result.Empty() {
		e.logger.Debug("no embedded metadata", "file_id", fileID, "bytes", len(prefix.Data))
		return nil, nil
	}

	e.logger.Debug("parsed embedded metadata", "file_id", fileID, "title", result.Title, "artist", result.Artist)
	return result, nil
}

// Parse reads tags and audio features from a prefix. It never fails; missing pieces stay empty.
func Parse(p *Prefix) *Result {
	result := &Result{}
	if p == nil || len(p.Data) == 0 {
		return result
	}

	if m, err := tag.ReadFrom(bytes.NewReader(p.Data)); err == nil {
		applyTags(result, m)
	}

	features, err := parseFeatures(p.Data, p.Size)
	if err == nil && !features.IsEmpty() {
		result.AudioFeatures = features
	}

	return result
}

func applyTags(r *Result, m tag.Metadata) {
	r.Title = m.Title()
	r.Artist = m.Artist()
	if r.Artist == "" {
		r.Artist = m.AlbumArtist()
	}
	r.Album = m.Album()
	r.Genre = m.Genre()
	if y := m.Year(); y > 0 {
		r.Year = strconv.Itoa(y)
	}
	if n, _ := m.Track(); n > 0 {
		r.Track = strconv.Itoa(n)
	}
}

var errUnknownFormat = errors.New("unrecognized audio format")

// parseFeatures dispatches on the container's magic bytes.
func parseFeatures(data []byte, size int64) (*models.AudioFeatures, error) {
	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return parseFLAC(data, size)
	case bytes.HasPrefix(skipID3(data), []byte("fLaC")):
		return parseFLAC(skipID3(data), size)
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return parseWAV(data, size)
	case len(data) >= 8 && string(data[4:8]) == "ftyp":
		return parseMP4(data, size)
	case bytes.HasPrefix(data, []byte("OggS")):
		return parseOgg(data)
	default:
		return parseMPEG(data, size)
	}
}
