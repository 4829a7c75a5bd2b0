// Google Drive v3 implementation of [FileStore]
//
// API reference: https://developers.google.com/drive/api/reference/rest/v3/files
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/shared"
)

const (
	driveBaseURL  = "https://www.googleapis.com/drive/v3"
	drivePageSize = 100
)

// AudioMimeTypes are the MIME types listed as playable audio.
var AudioMimeTypes = []string{
	"audio/mpeg",
	"audio/mp3",
	"audio/mp4",
	"audio/wav",
	"audio/ogg",
	"audio/flac",
	"audio/aac",
	"audio/x-ms-wma",
	"audio/webm",
}

// driveFile is the files resource subset requested via the fields parameter.
type driveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         string `json:"size"` // int64 encoded as a string
	ModifiedTime string `json:"modifiedTime"`
}

func (f driveFile) toModel() models.FileInfo {
	info := models.FileInfo{ID: f.ID, Name: f.Name, MimeType: f.MimeType, Size: -1}
	if n, err := strconv.ParseInt(f.Size, 10, 64); err == nil {
		info.Size = n
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		info.ModifiedTime = t
	}
	return info
}

// DriveService talks to the Drive REST API with tokens from a [TokenProvider].
type DriveService struct {
	baseURL string
	tokens  TokenProvider
	api     *APIClient
	client  *http.Client
	logger  *log.Logger
}

// NewDriveService creates a Drive client. Empty baseURL uses the public endpoint; nil client uses
// [http.DefaultClient].
func NewDriveService(baseURL string, tokens TokenProvider, client *http.Client, logger *log.Logger) *DriveService {
	if baseURL == "" {
		baseURL = driveBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &DriveService{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		api:     NewAPIClient(client),
		client:  client,
		logger:  shared.WithLogger(logger, "component", "drive"),
	}
}

// Name returns the provider name.
func (d *DriveService) Name() string {
	return "Google Drive"
}

// getJSON performs an authorized JSON request, refreshing the token once on 401.
func (d *DriveService) getJSON(ctx context.Context, rawURL string, result any) error {
	token, err := d.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	err = d.api.GetJSON(ctx, rawURL, result, WithBearer(token))

	var upstream *shared.UpstreamError
	if errors.As(err, &upstream) && upstream.Status == http.StatusUnauthorized {
		d.logger.Debug("drive rejected token, refreshing", "url", rawURL)
		if token, err = d.tokens.ForceRefresh(ctx); err != nil {
			return err
		}
		err = d.api.GetJSON(ctx, rawURL, result, WithBearer(token))
		if errors.As(err, &upstream) && upstream.Status == http.StatusUnauthorized {
			return fmt.Errorf("%w: %w", shared.ErrUpstreamAuthFailed, err)
		}
	}
	return err
}

// FileInfo returns metadata for a single file.
func (d *DriveService) FileInfo(ctx context.Context, fileID string) (*models.FileInfo, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", shared.ErrInvalidRequest)
	}

	q := url.Values{"fields": {"id,name,size,mimeType,modifiedTime"}}
	endpoint := fmt.Sprintf("%s/files/%s?%s", d.baseURL, url.PathEscape(fileID), q.Encode())

	var f driveFile
	if err := d.getJSON(ctx, endpoint, &f); err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	info := f.toModel()
	if info.ID == "" {
		info.ID = fileID
	}
	return &info, nil
}

// Fetch requests the file's media. The response is returned whatever its status.
func (d *DriveService) Fetch(ctx context.Context, fileID, token, rangeHeader string) (*http.Response, error) {
	endpoint := fmt.Sprintf("%s/files/%s?alt=media", d.baseURL, url.PathEscape(fileID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return resp, nil
}

// AudioFilesQuery builds the files.list q parameter: audio MIME types, not trashed,
// optionally restricted to names containing query.
func AudioFilesQuery(query string) string {
	types := make([]string, len(AudioMimeTypes))
	for i, t := range AudioMimeTypes {
		types[i] = fmt.Sprintf("mimeType='%s'", t)
	}

	q := fmt.Sprintf("(%s) and trashed=false", strings.Join(types, " or "))
	if query = strings.TrimSpace(query); query != "" {
		escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(query)
		q = fmt.Sprintf("name contains '%s' and %s", escaped, q)
	}
	return q
}

// ListAudioFiles returns the most recently modified audio files, one page only.
func (d *DriveService) ListAudioFiles(ctx context.Context, query string) ([]models.FileInfo, error) {
	params := url.Values{
		"q":        {AudioFilesQuery(query)},
		"fields":   {"files(id, name, mimeType, size, modifiedTime)"},
		"pageSize": {strconv.Itoa(drivePageSize)},
		"orderBy":  {"modifiedTime desc"},
	}

	var resp struct {
		Files []driveFile `json:"files"`
	}
	if err := d.getJSON(ctx, d.baseURL+"/files?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]models.FileInfo, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, f.toModel())
	}
	return files, nil
}
