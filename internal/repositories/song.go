package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/shared"
)

const songColumns = `id, file_id, file_name, title, artist, album, year, genre, track, lyrics,
	duration, bitrate, sample_rate, codec, container, created_at, updated_at`

// featuresUnset holds when a row has no audio features. Features are written as a group.
const featuresUnset = `songs.duration IS NULL AND songs.bitrate IS NULL AND songs.sample_rate IS NULL
	AND songs.codec IS NULL AND songs.container IS NULL`

// SQLiteSongStore implements [SongStore] on the songs table.
//
// file_id carries a UNIQUE index, so concurrent first writes for one file collapse into a
// single row through INSERT ... ON CONFLICT.
type SQLiteSongStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewSQLiteSongStore creates a store on a migrated database.
func NewSQLiteSongStore(db *sql.DB, logger *log.Logger) *SQLiteSongStore {
	return &SQLiteSongStore{db: db, logger: shared.WithLogger(logger, "store", "sqlite")}
}

// FindByFileID returns the song for fileID, or nil.
func (r *SQLiteSongStore) FindByFileID(ctx context.Context, fileID string) (*models.Song, error) {
	if fileID == "" {
		return nil, nil
	}
	query := `SELECT ` + songColumns + ` FROM songs WHERE file_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, fileID))
}

// FindByFileName matches name against file_name first, then title.
func (r *SQLiteSongStore) FindByFileName(ctx context.Context, name string) (*models.Song, error) {
	if name == "" {
		return nil, nil
	}
	query := `
		SELECT ` + songColumns + `
		FROM songs
		WHERE file_name = ? OR title = ?
		ORDER BY CASE WHEN file_name = ? THEN 0 ELSE 1 END, created_at ASC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, name, name, name))
}

// UpdateLyrics sets the lyrics column only.
func (r *SQLiteSongStore) UpdateLyrics(ctx context.Context, storeID, lyrics string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE songs SET lyrics = ?, updated_at = ? WHERE id = ?`,
		nullString(lyrics), time.Now().UTC(), storeID,
	)
	if err != nil {
		return fmt.Errorf("failed to update lyrics: %w", err)
	}
	return requireRow(result, storeID)
}

// UpdateAudioFeatures writes the feature columns when all of them are still NULL.
func (r *SQLiteSongStore) UpdateAudioFeatures(ctx context.Context, storeID string, f *models.AudioFeatures) (bool, error) {
	if f.IsEmpty() {
		return false, nil
	}

	query := `
		UPDATE songs
		SET duration = ?, bitrate = ?, sample_rate = ?, codec = ?, container = ?, updated_at = ?
		WHERE id = ? AND ` + featuresUnset + `
	`

	result, err := r.db.ExecContext(ctx, query,
		nullFloat(f.Duration),
		nullInt(f.Bitrate),
		nullInt(f.SampleRate),
		nullString(f.Codec),
		nullString(f.Container),
		time.Now().UTC(),
		storeID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update audio features: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		r.logger.Debug("audio features already set", "id", storeID)
	}
	return rows > 0, nil
}

// Upsert inserts song or merges it into the existing row for its file id.
//
// On conflict non-empty incoming values replace stored ones, except lyrics and audio
// features, which are only filled in when the stored row has none.
func (r *SQLiteSongStore) Upsert(ctx context.Context, song *models.Song) (*models.Song, error) {
	if err := song.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	f := song.AudioFeatures
	if f == nil {
		f = &models.AudioFeatures{}
	}

	query := `
		INSERT INTO songs (` + songColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			file_name = COALESCE(excluded.file_name, songs.file_name),
			title = COALESCE(excluded.title, songs.title),
			artist = COALESCE(excluded.artist, songs.artist),
			album = COALESCE(excluded.album, songs.album),
			year = COALESCE(excluded.year, songs.year),
			genre = COALESCE(excluded.genre, songs.genre),
			track = COALESCE(excluded.track, songs.track),
			lyrics = COALESCE(songs.lyrics, excluded.lyrics),
			duration = CASE WHEN ` + featuresUnset + ` THEN excluded.duration ELSE songs.duration END,
			bitrate = CASE WHEN ` + featuresUnset + ` THEN excluded.bitrate ELSE songs.bitrate END,
			sample_rate = CASE WHEN ` + featuresUnset + ` THEN excluded.sample_rate ELSE songs.sample_rate END,
			codec = CASE WHEN ` + featuresUnset + ` THEN excluded.codec ELSE songs.codec END,
			container = CASE WHEN ` + featuresUnset + ` THEN excluded.container ELSE songs.container END,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		shared.GenerateID(),
		song.FileID,
		nullString(song.FileName),
		nullString(song.Title),
		nullString(song.Artist),
		nullString(song.Album),
		nullString(song.Year),
		nullString(song.Genre),
		nullString(song.Track),
		nullString(song.Lyrics.String()),
		nullFloat(f.Duration),
		nullInt(f.Bitrate),
		nullInt(f.SampleRate),
		nullString(f.Codec),
		nullString(f.Container),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert song: %w", err)
	}

	stored, err := r.FindByFileID(ctx, song.FileID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s vanished after upsert", shared.ErrSongNotFound, song.FileID)
	}
	return stored, nil
}

// DB exposes the underlying database so run history can share the connection pool.
func (r *SQLiteSongStore) DB() *sql.DB {
	return r.db
}

// Close closes the database.
func (r *SQLiteSongStore) Close(context.Context) error {
	return r.db.Close()
}

// scanOne scans a single [sql.Row] into a [models.Song], mapping no rows to nil.
func (r *SQLiteSongStore) scanOne(row *sql.Row) (*models.Song, error) {
	var (
		song                                        models.Song
		fileName, title, artist, album, year, genre sql.NullString
		track, lyrics, codec, container             sql.NullString
		duration                                    sql.NullFloat64
		bitrate, sampleRate                         sql.NullInt64
	)

	err := row.Scan(
		&song.StoreID, &song.FileID, &fileName, &title, &artist, &album, &year, &genre, &track, &lyrics,
		&duration, &bitrate, &sampleRate, &codec, &container, &song.CreatedAt, &song.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}

	song.FileName = fileName.String
	song.Title = title.String
	song.Artist = artist.String
	song.Album = album.String
	song.Year = year.String
	song.Genre = genre.String
	song.Track = track.String
	song.Lyrics = models.PlainText(lyrics.String)

	features := &models.AudioFeatures{
		Duration:   duration.Float64,
		Bitrate:    int(bitrate.Int64),
		SampleRate: int(sampleRate.Int64),
		Codec:      codec.String,
		Container:  container.String,
	}
	if !features.IsEmpty() {
		song.AudioFeatures = features
	}

	return &song, nil
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSongNotFound, id)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}
