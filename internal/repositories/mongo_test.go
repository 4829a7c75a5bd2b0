package repositories

import (
	"testing"
	"time"

	"github.com/desertthunder/drivetune/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSongFromDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		doc   bson.M
		check func(t *testing.T, s *models.Song)
	}{
		{
			name: "canonical fields",
			doc: bson.M{
				"_id":       oid,
				"fileId":    "f1",
				"fileName":  "Song.mp3",
				"title":     "Song",
				"artist":    "Band",
				"lyrics":    "hello",
				"createdAt": primitive.NewDateTimeFromTime(created),
				"audioFeatures": bson.M{
					"duration":   int32(180),
					"bitrate":    int64(320000),
					"sampleRate": int32(44100),
					"codec":      "MPEG 1 Layer 3",
				},
			},
			check: func(t *testing.T, s *models.Song) {
				if s.StoreID != oid.Hex() || s.FileID != "f1" || s.FileName != "Song.mp3" {
					t.Errorf("unexpected identity %+v", s)
				}
				if text, _ := s.Lyrics.Text(); text != "hello" {
					t.Errorf("unexpected lyrics %q", text)
				}
				f := s.AudioFeatures
				if f == nil || f.Duration != 180 || f.Bitrate != 320000 || f.SampleRate != 44100 {
					t.Errorf("unexpected features %+v", f)
				}
				if !s.CreatedAt.Equal(created) {
					t.Errorf("unexpected createdAt %v", s.CreatedAt)
				}
			},
		},
		{
			name: "alias identity fields",
			doc:  bson.M{"_id": "custom", "googleDriveId": "g1", "name": "Other.flac"},
			check: func(t *testing.T, s *models.Song) {
				if s.StoreID != "custom" || s.FileID != "g1" || s.FileName != "Other.flac" {
					t.Errorf("unexpected identity %+v", s)
				}
			},
		},
		{
			name: "title stands in for file name",
			doc:  bson.M{"driveId": "d1", "title": "Just A Title"},
			check: func(t *testing.T, s *models.Song) {
				if s.FileName != "Just A Title" || s.Title != "Just A Title" {
					t.Errorf("unexpected names %+v", s)
				}
			},
		},
		{
			name: "legacy lyrics list",
			doc:  bson.M{"fileId": "f", "lyrics": bson.A{"one", "", "two", int32(3)}},
			check: func(t *testing.T, s *models.Song) {
				if text, _ := s.Lyrics.Text(); text != "one\ntwo" {
					t.Errorf("unexpected lyrics %q", text)
				}
			},
		},
		{
			name: "legacy lyrics object",
			doc:  bson.M{"fileId": "f", "lyrics": bson.D{{Key: "text", Value: "from object"}}},
			check: func(t *testing.T, s *models.Song) {
				if text, _ := s.Lyrics.Text(); text != "from object" {
					t.Errorf("unexpected lyrics %q", text)
				}
			},
		},
		{
			name: "blank lyrics and empty features",
			doc:  bson.M{"fileId": "f", "lyrics": "   ", "audioFeatures": bson.M{}},
			check: func(t *testing.T, s *models.Song) {
				if s.Lyrics.HasText() || s.AudioFeatures != nil || s.HasAudioFeatures() {
					t.Errorf("expected empty lyrics and features, got %+v", s)
				}
			},
		},
		{
			name: "null valued features are stored",
			doc: bson.M{"fileId": "f", "audioFeatures": bson.M{
				"duration": nil, "bitrate": nil, "sampleRate": nil, "codec": nil, "container": nil,
			}},
			check: func(t *testing.T, s *models.Song) {
				if !s.HasAudioFeatures() || s.AudioFeatures != nil {
					t.Errorf("expected stored features with no values, got %+v", s)
				}
			},
		},
		{
			name: "unrecognised legacy features are stored",
			doc:  bson.M{"fileId": "f2", "audioFeatures": bson.M{"bpm": int32(120)}},
			check: func(t *testing.T, s *models.Song) {
				if !s.HasAudioFeatures() {
					t.Error("expected legacy features to count as stored")
				}
			},
		},
		{
			name: "numeric year and track",
			doc:  bson.M{"fileId": "f", "year": int32(1999), "track": int64(4)},
			check: func(t *testing.T, s *models.Song) {
				if s.Year != "1999" || s.Track != "4" {
					t.Errorf("unexpected year %q track %q", s.Year, s.Track)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, songFromDocument(tt.doc))
		})
	}
}

func TestSongFields(t *testing.T) {
	song := &models.Song{
		FileID:        "f",
		Title:         "T",
		Lyrics:        models.PlainText("words"),
		AudioFeatures: &models.AudioFeatures{Codec: "FLAC"},
	}

	t.Run("New Document", func(t *testing.T) {
		set := songFields(song, nil)
		if set["title"] != "T" || set["lyrics"] != "words" || set["audioFeatures"] == nil {
			t.Errorf("unexpected set %v", set)
		}
		if _, ok := set["artist"]; ok {
			t.Error("empty fields must not be written")
		}
	})

	t.Run("Existing Lyrics And Features Are Kept", func(t *testing.T) {
		existing := &models.Song{
			Lyrics:        models.PlainText("old"),
			AudioFeatures: &models.AudioFeatures{Codec: "PCM"},
		}
		set := songFields(song, existing)
		if _, ok := set["lyrics"]; ok {
			t.Error("lyrics must not be overwritten")
		}
		if _, ok := set["audioFeatures"]; ok {
			t.Error("audio features must not be overwritten")
		}
		if set["title"] != "T" {
			t.Errorf("expected title in set, got %v", set)
		}
	})
}

func TestFilters(t *testing.T) {
	t.Run("Alias Filter", func(t *testing.T) {
		f := aliasFilter(models.FileIDAliases, "x")
		or, ok := f["$or"].(bson.A)
		if !ok || len(or) != len(models.FileIDAliases) {
			t.Fatalf("unexpected filter %v", f)
		}
		if or[3].(bson.M)["googleDriveId"] != "x" {
			t.Errorf("unexpected clause %v", or[3])
		}
	})

	t.Run("Store ID Filter", func(t *testing.T) {
		oid := primitive.NewObjectID()
		if got := storeIDFilter(oid.Hex())["_id"]; got != oid {
			t.Errorf("expected ObjectID, got %v", got)
		}
		if got := storeIDFilter("plain")["_id"]; got != "plain" {
			t.Errorf("expected string id, got %v", got)
		}
	})
}
