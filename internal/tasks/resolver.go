package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/lyrics"
	"github.com/desertthunder/drivetune/internal/metadata"
	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/repositories"
	"github.com/desertthunder/drivetune/internal/services"
	"github.com/desertthunder/drivetune/internal/shared"
	"golang.org/x/sync/errgroup"
)

// fileNameSeparators split "Artist - Title" style names.
var fileNameSeparators = []string{" - ", " – ", " — "}

// MetadataSource reads embedded tags from a stored file. [metadata.Extractor] implements it.
type MetadataSource interface {
	Extract(ctx context.Context, fileID string) (*metadata.Result, error)
}

// SongResolver resolves one song. [Resolver] implements it.
type SongResolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*models.Song, error)
}

// ResolveRequest identifies the file to resolve. At least one field must be set.
type ResolveRequest struct {
	FileID   string
	FileName string
}

// Resolver assembles a [models.Song] from the cache, embedded metadata and the lyrics source.
//
// Every dependency is optional. A nil store disables caching, a nil lyrics source disables
// lyrics lookups and a nil metadata source disables extraction.
type Resolver struct {
	store    repositories.SongStore
	source   services.LyricsSource
	metadata MetadataSource
	logger   *log.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store repositories.SongStore, source services.LyricsSource, meta MetadataSource, logger *log.Logger) *Resolver {
	return &Resolver{
		store:    store,
		source:   source,
		metadata: meta,
		logger:   shared.WithLogger(logger, "component", "resolver"),
	}
}

// Resolve returns the best known record for the request.
//
// External failures are logged and absorbed; the only error is [shared.ErrInvalidRequest]
// when neither a file id nor a file name is given.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*models.Song, error) {
	req.FileID = strings.TrimSpace(req.FileID)
	req.FileName = strings.TrimSpace(req.FileName)
	if req.FileID == "" && req.FileName == "" {
		return nil, fmt.Errorf("%w: file id or file name is required", shared.ErrInvalidRequest)
	}

	if record := r.lookup(ctx, req); record != nil {
		return r.complete(ctx, req, record), nil
	}
	return r.discover(ctx, req), nil
}

// lookup finds a cached record by id, then by name. Store errors count as a miss.
func (r *Resolver) lookup(ctx context.Context, req ResolveRequest) *models.Song {
	if r.store == nil {
		return nil
	}

	if req.FileID != "" {
		song, err := r.store.FindByFileID(ctx, req.FileID)
		if err != nil {
			r.logger.Warn("song lookup failed", "file_id", req.FileID, "error", err)
		} else if song != nil {
			return song
		}
	}

	if req.FileName != "" {
		song, err := r.store.FindByFileName(ctx, req.FileName)
		if err != nil {
			r.logger.Warn("song lookup failed", "file_name", req.FileName, "error", err)
			return nil
		}
		return song
	}
	return nil
}

// complete fills in lyrics and audio features missing from a cached record.
func (r *Resolver) complete(ctx context.Context, req ResolveRequest, record *models.Song) *models.Song {
	song := *record
	title, artist := record.DisplayTitle(), record.Artist

	var (
		g         errgroup.Group
		found     string
		extracted *metadata.Result
	)

	if record.Lyrics.HasText() {
		r.logger.Debug("cached lyrics present, skipping lookup", "file_id", req.FileID)
	} else if title != "" && req.FileID != "" {
		g.Go(func() error {
			text, ok := r.findLyrics(ctx, title, artist)
			if !ok {
				return nil
			}
			found = text
			if record.Persisted() {
				if err := r.store.UpdateLyrics(ctx, record.StoreID, text); err != nil {
					r.logger.Warn("failed to store lyrics", "file_id", req.FileID, "error", err)
				}
			}
			return nil
		})
	}

	if !record.HasAudioFeatures() && req.FileID != "" {
		g.Go(func() error {
			extracted = r.extract(ctx, req.FileID)
			if extracted == nil || extracted.AudioFeatures.IsEmpty() || !record.Persisted() {
				return nil
			}
			applied, err := r.store.UpdateAudioFeatures(ctx, record.StoreID, extracted.AudioFeatures)
			if err != nil {
				r.logger.Warn("failed to store audio features", "file_id", req.FileID, "error", err)
			} else if !applied {
				r.logger.Debug("audio features already stored", "file_id", req.FileID)
			}
			return nil
		})
	}

	_ = g.Wait()

	fresh := songFromResult(req, extracted)
	fresh.Lyrics = models.PlainText(found)
	fillSong(&song, fresh)
	return &song
}

// discover builds a record for a file the cache does not know and stores it when it carries anything.
func (r *Resolver) discover(ctx context.Context, req ResolveRequest) *models.Song {
	var extracted *metadata.Result
	if req.FileID != "" {
		extracted = r.extract(ctx, req.FileID)
	}

	song := songFromResult(req, extracted)
	if song.Title == "" && req.FileName != "" {
		guessedTitle, guessedArtist := GuessFromFileName(req.FileName)
		song.Title = guessedTitle
		if song.Artist == "" {
			song.Artist = guessedArtist
		}
	}

	if song.Title != "" {
		if text, ok := r.findLyrics(ctx, song.Title, song.Artist); ok {
			song.Lyrics = models.PlainText(text)
		}
	}

	if r.store == nil || req.FileID == "" || (!song.Lyrics.HasText() && extracted.Empty()) {
		return song
	}

	stored, err := r.store.Upsert(ctx, song)
	if err != nil {
		r.logger.Warn("failed to store song", "file_id", req.FileID, "error", err)
		return song
	}
	if stored == nil {
		return song
	}
	fillSong(stored, song)
	return stored
}

// findLyrics searches the lyrics source and extracts the first hit's lyrics.
func (r *Resolver) findLyrics(ctx context.Context, title, artist string) (string, bool) {
	if r.source == nil {
		return "", false
	}

	query := title
	if artist != "" {
		query = artist + " " + title
	}

	hits, err := r.source.Search(ctx, query)
	if err != nil {
		r.logger.Warn("lyrics search failed", "query", query, "error", err)
		return "", false
	}
	if len(hits) == 0 || hits[0].URL == "" {
		r.logger.Debug("no lyrics search hits", "query", query)
		return "", false
	}

	hit := hits[0]
	page, err := r.source.Page(ctx, hit.URL)
	if err != nil {
		r.logger.Warn("lyrics page fetch failed", "url", hit.URL, "error", err)
		return "", false
	}

	text, ok := lyrics.Extract(page)
	if !ok {
		r.logger.Debug("no lyrics found on page", "url", hit.URL, "bytes", len(page))
		return "", false
	}
	r.logger.Debug("lyrics extracted", "url", hit.URL, "song", hit.Title)
	return text, true
}

func (r *Resolver) extract(ctx context.Context, fileID string) *metadata.Result {
	if r.metadata == nil {
		return nil
	}
	result, err := r.metadata.Extract(ctx, fileID)
	if err != nil {
		r.logger.Warn("metadata extraction failed", "file_id", fileID, "error", err)
		return nil
	}
	return result
}

// GuessFromFileName derives a title and artist from a name such as "Artist - Title.mp3".
//
// The extension is dropped and the name split on its first dash separator. Without one,
// the whole name is the title.
func GuessFromFileName(name string) (title, artist string) {
	base := strings.TrimSpace(shared.BaseName(strings.TrimSpace(name)))

	idx, sep := -1, ""
	for _, s := range fileNameSeparators {
		if i := strings.Index(base, s); i >= 0 && (idx < 0 || i < idx) {
			idx, sep = i, s
		}
	}
	if idx < 0 {
		return base, ""
	}

	artist = strings.TrimSpace(base[:idx])
	title = strings.TrimSpace(base[idx+len(sep):])
	if artist == "" || title == "" {
		return base, ""
	}
	return title, artist
}

func songFromResult(req ResolveRequest, r *metadata.Result) *models.Song {
	song := &models.Song{FileID: req.FileID, FileName: req.FileName}
	if r == nil {
		return song
	}
	song.Title = r.Title
	song.Artist = r.Artist
	song.Album = r.Album
	song.Year = r.Year
	song.Genre = r.Genre
	song.Track = r.Track
	if !r.AudioFeatures.IsEmpty() {
		song.AudioFeatures = r.AudioFeatures
	}
	return song
}

// fillSong copies fresh values into fields dst leaves empty.
func fillSong(dst, fresh *models.Song) {
	fill := func(field *string, v string) {
		if *field == "" {
			*field = v
		}
	}
	fill(&dst.FileID, fresh.FileID)
	fill(&dst.FileName, fresh.FileName)
	fill(&dst.Title, fresh.Title)
	fill(&dst.Artist, fresh.Artist)
	fill(&dst.Album, fresh.Album)
	fill(&dst.Year, fresh.Year)
	fill(&dst.Genre, fresh.Genre)
	fill(&dst.Track, fresh.Track)

	if !dst.Lyrics.HasText() {
		dst.Lyrics = fresh.Lyrics
	}
	if !dst.HasAudioFeatures() && !fresh.AudioFeatures.IsEmpty() {
		dst.AudioFeatures = fresh.AudioFeatures
	}
}
