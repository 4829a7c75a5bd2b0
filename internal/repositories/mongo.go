package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSongStore implements [SongStore] on a document collection.
//
// Documents are read as raw maps so records written under alias field names or with
// legacy lyrics shapes are still recognized. Writes always use the canonical names.
type MongoSongStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *log.Logger
}

// NewMongoSongStore wraps coll. Close is a no-op unless the store owns the client.
func NewMongoSongStore(coll *mongo.Collection, logger *log.Logger) *MongoSongStore {
	return &MongoSongStore{coll: coll, logger: shared.WithLogger(logger, "store", "mongo")}
}

// EnsureIndexes creates a unique index on fileId so concurrent first writes cannot duplicate.
func (m *MongoSongStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "fileId", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"fileId": bson.M{"$type": "string"}},
			),
		},
		{Keys: bson.D{{Key: "fileName", Value: 1}}},
	})
	return err
}

// aliasFilter matches value under any of fields.
func aliasFilter(fields []string, value string) bson.M {
	or := make(bson.A, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: value})
	}
	return bson.M{"$or": or}
}

// storeIDFilter matches _id as an ObjectID when storeID is one, else as a plain string.
func storeIDFilter(storeID string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(storeID); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": storeID}
}

// featuresUnsetFilter matches documents without usable audio features.
func featuresUnsetFilter() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"audioFeatures": bson.M{"$exists": false}},
		bson.M{"audioFeatures": nil},
		bson.M{"audioFeatures": bson.M{}},
	}}
}

func (m *MongoSongStore) findOne(ctx context.Context, filter bson.M) (*models.Song, error) {
	var doc bson.M
	err := m.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find song: %w", err)
	}
	return songFromDocument(doc), nil
}

// FindByFileID returns the song stored under any file id alias, or nil.
func (m *MongoSongStore) FindByFileID(ctx context.Context, fileID string) (*models.Song, error) {
	if fileID == "" {
		return nil, nil
	}
	return m.findOne(ctx, aliasFilter(models.FileIDAliases, fileID))
}

// FindByFileName returns the song stored under any display name alias, or nil.
func (m *MongoSongStore) FindByFileName(ctx context.Context, name string) (*models.Song, error) {
	if name == "" {
		return nil, nil
	}
	return m.findOne(ctx, aliasFilter(models.FileNameAliases, name))
}

// UpdateLyrics sets the lyrics field only.
func (m *MongoSongStore) UpdateLyrics(ctx context.Context, storeID, lyrics string) error {
	update := bson.M{"$set": bson.M{"lyrics": lyrics, "updatedAt": time.Now().UTC()}}

	result, err := m.coll.UpdateOne(ctx, storeIDFilter(storeID), update)
	if err != nil {
		return fmt.Errorf("failed to update lyrics: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSongNotFound, storeID)
	}
	return nil
}

// UpdateAudioFeatures sets audioFeatures only on a document that has none.
func (m *MongoSongStore) UpdateAudioFeatures(ctx context.Context, storeID string, f *models.AudioFeatures) (bool, error) {
	if f.IsEmpty() {
		return false, nil
	}

	filter := bson.M{"$and": bson.A{storeIDFilter(storeID), featuresUnsetFilter()}}
	update := bson.M{"$set": bson.M{"audioFeatures": f, "updatedAt": time.Now().UTC()}}

	result, err := m.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update audio features: %w", err)
	}
	if result.ModifiedCount == 0 {
		m.logger.Debug("audio features already set", "id", storeID)
	}
	return result.ModifiedCount > 0, nil
}

// Upsert re-checks every file id alias right before writing. An existing document is
// updated in place; otherwise one is inserted with an upsert on fileId.
func (m *MongoSongStore) Upsert(ctx context.Context, song *models.Song) (*models.Song, error) {
	if err := song.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	existing, err := m.FindByFileID(ctx, song.FileID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		set := songFields(song, existing)
		set["fileId"] = song.FileID
		set["updatedAt"] = now
		if _, err := m.coll.UpdateOne(ctx, storeIDFilter(existing.StoreID), bson.M{"$set": set}); err != nil {
			return nil, fmt.Errorf("failed to update song: %w", err)
		}
	} else {
		set := songFields(song, nil)
		set["fileId"] = song.FileID
		set["updatedAt"] = now
		update := bson.M{"$set": set, "$setOnInsert": bson.M{"createdAt": now}}

		_, err := m.coll.UpdateOne(ctx, bson.M{"fileId": song.FileID}, update, options.Update().SetUpsert(true))
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to upsert song: %w", err)
		}
	}

	stored, err := m.FindByFileID(ctx, song.FileID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s vanished after upsert", shared.ErrSongNotFound, song.FileID)
	}
	return stored, nil
}

// Close disconnects the owned client.
func (m *MongoSongStore) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

// songFields returns the $set document for song. Non-empty descriptive fields are always
// written; lyrics and audio features only when existing lacks them.
func songFields(song, existing *models.Song) bson.M {
	set := bson.M{}
	for k, v := range map[string]string{
		"fileName": song.FileName,
		"title":    song.Title,
		"artist":   song.Artist,
		"album":    song.Album,
		"year":     song.Year,
		"genre":    song.Genre,
		"track":    song.Track,
	} {
		if v != "" {
			set[k] = v
		}
	}

	if text, ok := song.Lyrics.Text(); ok && (existing == nil || !existing.Lyrics.HasText()) {
		set["lyrics"] = text
	}
	if song.HasAudioFeatures() && (existing == nil || !existing.HasAudioFeatures()) {
		set["audioFeatures"] = song.AudioFeatures
	}
	return set
}

// songFromDocument maps a raw document onto [models.Song], resolving alias fields.
func songFromDocument(doc bson.M) *models.Song {
	song := &models.Song{
		FileID:   firstString(doc, models.FileIDAliases...),
		FileName: firstString(doc, models.FileNameAliases...),
		Title:    firstString(doc, "title"),
		Artist:   firstString(doc, "artist"),
		Album:    firstString(doc, "album"),
		Year:     scalarString(doc["year"]),
		Genre:    firstString(doc, "genre"),
		Track:    scalarString(doc["track"]),
		Lyrics:   models.NormalizeLyrics(plain(doc["lyrics"])),
	}

	switch id := doc["_id"].(type) {
	case primitive.ObjectID:
		song.StoreID = id.Hex()
	case string:
		song.StoreID = id
	}

	if f, ok := plain(doc["audioFeatures"]).(map[string]any); ok && len(f) > 0 {
		song.FeaturesStored = true
		features := &models.AudioFeatures{
			Duration:   toFloat(f["duration"]),
			Bitrate:    int(toFloat(f["bitrate"])),
			SampleRate: int(toFloat(f["sampleRate"])),
			Codec:      scalarString(f["codec"]),
			Container:  scalarString(f["container"]),
		}
		if !features.IsEmpty() {
			song.AudioFeatures = features
		}
	}

	song.CreatedAt = toTime(doc["createdAt"])
	song.UpdatedAt = toTime(doc["updatedAt"])
	return song
}

// plain converts driver container types into the maps and slices [models.NormalizeLyrics] expects.
func plain(v any) any {
	switch val := v.(type) {
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = plain(e.Value)
		}
		return out
	default:
		return v
	}
}

func firstString(doc bson.M, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// scalarString renders numeric tags such as year or track number stored as numbers.
func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int32, int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return ""
	}
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case int:
		return float64(val)
	default:
		return 0
	}
}

func toTime(v any) time.Time {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val
	default:
		return time.Time{}
	}
}
