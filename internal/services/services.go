// Provider interfaces consumed by the stream proxy and the resolver
package services

import (
	"context"
	"net/http"

	"github.com/desertthunder/drivetune/internal/models"
)

// TokenProvider hands out bearer tokens for the file store.
type TokenProvider interface {
	// AccessToken returns a currently valid token, refreshing it when expired.
	AccessToken(ctx context.Context) (string, error)

	// ForceRefresh obtains a new token regardless of the cached token's expiry.
	ForceRefresh(ctx context.Context) (string, error)
}

// FileStore is the remote object-storage provider holding the audio files.
type FileStore interface {
	// FileInfo returns the file's name, size and MIME type.
	FileInfo(ctx context.Context, fileID string) (*models.FileInfo, error)

	// Fetch requests the file's bytes with the given token. rangeHeader is sent as-is when non-empty.
	// The caller owns the response body and interprets the status.
	Fetch(ctx context.Context, fileID, token, rangeHeader string) (*http.Response, error)

	// ListAudioFiles returns a single page of audio files, optionally filtered by name.
	ListAudioFiles(ctx context.Context, query string) ([]models.FileInfo, error)
}

// LyricsSource searches a lyrics site and fetches its pages.
type LyricsSource interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
	Page(ctx context.Context, pageURL string) (string, error)
}

// SearchHit is one search result from the lyrics source.
type SearchHit struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}
