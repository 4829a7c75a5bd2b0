package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Alias field names a stored record may use for its identity.
var (
	FileIDAliases   = []string{"fileId", "id", "driveId", "googleDriveId"}
	FileNameAliases = []string{"fileName", "name", "title"}
)

// Song is the cached record for one audio file.
type Song struct {
	StoreID       string         `json:"_id,omitempty"`
	FileID        string         `json:"fileId,omitempty"`
	FileName      string         `json:"fileName,omitempty"`
	Title         string         `json:"title,omitempty"`
	Artist        string         `json:"artist,omitempty"`
	Album         string         `json:"album,omitempty"`
	Year          string         `json:"year,omitempty"`
	Genre         string         `json:"genre,omitempty"`
	Track         string         `json:"track,omitempty"`
	Lyrics        Lyrics         `json:"lyrics"`
	AudioFeatures *AudioFeatures `json:"audioFeatures,omitempty"`
	CreatedAt     time.Time      `json:"createdAt,omitzero"`
	UpdatedAt     time.Time      `json:"updatedAt,omitzero"`

	// FeaturesStored marks a record whose store already holds a non-empty features
	// entry, even one with no recognised values.
	FeaturesStored bool `json:"-"`
}

// Persisted reports whether the record came from, or was written to, a store.
func (s *Song) Persisted() bool {
	return s != nil && s.StoreID != ""
}

// DisplayTitle is the title, falling back to the file name.
func (s *Song) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return s.FileName
}

// HasAudioFeatures reports whether non-empty features are attached or already stored.
func (s *Song) HasAudioFeatures() bool {
	return s.FeaturesStored || !s.AudioFeatures.IsEmpty()
}

// Validate checks that the record can be keyed.
func (s *Song) Validate() error {
	if strings.TrimSpace(s.FileID) == "" {
		return fmt.Errorf("song requires a file id")
	}
	return nil
}

// AudioFeatures are technical properties of the encoded audio.
type AudioFeatures struct {
	Duration   float64 `json:"duration,omitempty" bson:"duration,omitempty"`
	Bitrate    int     `json:"bitrate,omitempty" bson:"bitrate,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty" bson:"sampleRate,omitempty"`
	Codec      string  `json:"codec,omitempty" bson:"codec,omitempty"`
	Container  string  `json:"container,omitempty" bson:"container,omitempty"`
}

// IsEmpty reports whether no feature has been set.
func (a *AudioFeatures) IsEmpty() bool {
	return a == nil || *a == AudioFeatures{}
}

// Lyrics is either empty or holds plain text. The zero value is empty.
type Lyrics struct {
	text string
}

// PlainText wraps s. Blank text yields the empty variant.
func PlainText(s string) Lyrics {
	if strings.TrimSpace(s) == "" {
		return Lyrics{}
	}
	return Lyrics{text: s}
}

// Text returns the lyrics and whether any are present.
func (l Lyrics) Text() (string, bool) {
	return l.text, l.text != ""
}

// HasText reports whether the lyrics are non-empty.
func (l Lyrics) HasText() bool {
	return l.text != ""
}

func (l Lyrics) String() string {
	return l.text
}

// MarshalJSON encodes empty lyrics as null and text as a string.
func (l Lyrics) MarshalJSON() ([]byte, error) {
	if l.text == "" {
		return []byte("null"), nil
	}
	return json.Marshal(l.text)
}

// UnmarshalJSON accepts every shape [NormalizeLyrics] understands.
func (l *Lyrics) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = NormalizeLyrics(v)
	return nil
}

// NormalizeLyrics folds a stored lyrics value into [Lyrics].
//
// Accepted shapes are a string, a list whose string entries are joined by newlines,
// and an object with a string "text" field. Anything else is empty.
func NormalizeLyrics(v any) Lyrics {
	switch val := v.(type) {
	case nil:
		return Lyrics{}
	case string:
		return PlainText(val)
	case []string:
		return joinLyrics(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return joinLyrics(parts)
	case map[string]any:
		if s, ok := val["text"].(string); ok {
			return PlainText(s)
		}
		return Lyrics{}
	case Lyrics:
		return val
	default:
		return Lyrics{}
	}
}

func joinLyrics(parts []string) Lyrics {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return PlainText(strings.Join(kept, "\n"))
}

// FileInfo describes a remote file as reported by the storage provider.
//
// Size is -1 when the provider does not report one.
type FileInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	ModifiedTime time.Time `json:"modifiedTime,omitzero"`
}

// SizeKnown reports whether the provider reported a size.
func (f *FileInfo) SizeKnown() bool {
	return f != nil && f.Size >= 0
}

// ResolveRun records one cache warm pass over the file store.
type ResolveRun struct {
	ID         string     `json:"id"`
	Query      string     `json:"query,omitempty"`
	Total      int        `json:"total"`
	Resolved   int        `json:"resolved"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Finished reports whether the run has completed.
func (r *ResolveRun) Finished() bool {
	return r.FinishedAt != nil
}
