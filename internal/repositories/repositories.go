// package repositories provides the song cache backends.
package repositories

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/shared"
)

// SongStore is the document cache keyed by file id.
//
// Finders return (nil, nil) when nothing matches.
type SongStore interface {
	// FindByFileID looks the id up under every file id alias.
	FindByFileID(ctx context.Context, fileID string) (*models.Song, error)

	// FindByFileName looks the name up under every display name alias.
	FindByFileName(ctx context.Context, name string) (*models.Song, error)

	// UpdateLyrics sets only the lyrics of the record with the given store id.
	UpdateLyrics(ctx context.Context, storeID, lyrics string) error

	// UpdateAudioFeatures sets the features only if the record has none yet and
	// reports whether the write happened.
	UpdateAudioFeatures(ctx context.Context, storeID string, features *models.AudioFeatures) (bool, error)

	// Upsert writes song keyed by its file id and returns the stored record.
	Upsert(ctx context.Context, song *models.Song) (*models.Song, error)

	Close(ctx context.Context) error
}

// OpenSongStore opens the backend selected by c.Driver. [shared.DriverNone] yields a nil store.
func OpenSongStore(ctx context.Context, c shared.DatabaseConfig, logger *log.Logger) (SongStore, error) {
	logger = shared.WithLogger(logger, "driver", c.Driver)

	switch c.Driver {
	case shared.DriverNone:
		return nil, nil
	case shared.DriverSQLite:
		db, err := shared.NewDatabase(c.Path)
		if err != nil {
			return nil, err
		}
		shared.ConfigureDatabase(db, c.MaxOpenConns, c.MaxIdleConns)

		if err := shared.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return NewSQLiteSongStore(db, logger), nil
	case shared.DriverMongo:
		client, err := shared.NewMongoClient(ctx, c.URI, c.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		store := NewMongoSongStore(client.Database(c.Name).Collection(c.Collection), logger)
		store.client = client
		if err := store.EnsureIndexes(ctx); err != nil {
			logger.Warn("failed to create song indexes", "error", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, c.Driver)
	}
}
