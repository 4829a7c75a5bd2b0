package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/lyrics"
	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/services"
	"github.com/desertthunder/drivetune/internal/shared"
	"github.com/desertthunder/drivetune/internal/stream"
	"github.com/desertthunder/drivetune/internal/tasks"
)

// Streamer opens a file for proxied reading. [stream.Proxy] implements it.
type Streamer interface {
	Stream(ctx context.Context, fileID, rangeHeader string) (*stream.Response, error)
}

// LyricsService is a lyrics source that can also look songs up by id.
type LyricsService interface {
	services.LyricsSource
	Song(ctx context.Context, id int) (*services.SearchHit, error)
}

// APIDeps holds the components behind the JSON and streaming endpoints. Nil members answer 503.
type APIDeps struct {
	Resolver tasks.SongResolver
	Streamer Streamer
	Files    services.FileStore
	Lyrics   LyricsService
	Logger   *log.Logger
}

// API serves songs, files, streams and lyrics.
type API struct {
	deps   APIDeps
	logger *log.Logger
}

// NewAPI creates the API handlers.
func NewAPI(deps APIDeps) *API {
	return &API{deps: deps, logger: shared.WithLogger(deps.Logger, "component", "api")}
}

// Register adds every API route to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/api/songs", http.HandlerFunc(a.song))
	r.Handle(http.MethodGet, "/api/files", http.HandlerFunc(a.listFiles))
	r.Handle(http.MethodGet, "/api/files/{id}", http.HandlerFunc(a.fileInfo))
	r.Handle(http.MethodGet, "/api/files/{id}/stream", http.HandlerFunc(a.stream))
	r.Handle(http.MethodGet, "/api/lyrics/search", http.HandlerFunc(a.searchLyrics))
	r.Handle(http.MethodGet, "/api/lyrics", http.HandlerFunc(a.lyricsPage))
}

func unavailable(name string) error {
	return fmt.Errorf("%w: %s is not configured", shared.ErrServiceUnavailable, name)
}

// song handles GET /api/songs?fileId=&fileName=
func (a *API) song(w http.ResponseWriter, r *http.Request) {
	if a.deps.Resolver == nil {
		writeError(w, unavailable("resolver"))
		return
	}

	q := r.URL.Query()
	song, err := a.deps.Resolver.Resolve(r.Context(), tasks.ResolveRequest{
		FileID:   q.Get("fileId"),
		FileName: q.Get("fileName"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.Song{"song": song})
}

// listFiles handles GET /api/files?q=
func (a *API) listFiles(w http.ResponseWriter, r *http.Request) {
	if a.deps.Files == nil {
		writeError(w, unavailable("file store"))
		return
	}

	files, err := a.deps.Files.ListAudioFiles(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	if files == nil {
		files = []models.FileInfo{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.FileInfo{"files": files})
}

type fileInfoResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	Size        *int64 `json:"size,omitempty"`
	DownloadURL string `json:"downloadUrl"`
}

// fileInfo handles GET /api/files/{id}
func (a *API) fileInfo(w http.ResponseWriter, r *http.Request) {
	if a.deps.Files == nil {
		writeError(w, unavailable("file store"))
		return
	}

	id := r.PathValue("id")
	info, err := a.deps.Files.FileInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := fileInfoResponse{
		ID:          info.ID,
		Name:        info.Name,
		MimeType:    info.MimeType,
		DownloadURL: "/api/files/" + id + "/stream",
	}
	if resp.ID == "" {
		resp.ID = id
	}
	if info.SizeKnown() {
		resp.Size = &info.Size
	}
	writeJSON(w, http.StatusOK, resp)
}

// stream handles GET and HEAD /api/files/{id}/stream, relaying Range requests.
func (a *API) stream(w http.ResponseWriter, r *http.Request) {
	if a.deps.Streamer == nil {
		writeError(w, unavailable("stream proxy"))
		return
	}

	id := r.PathValue("id")
	resp, err := a.deps.Streamer.Stream(r.Context(), id, r.Header.Get("Range"))
	if err != nil {
		a.logger.Warn("stream failed", "file_id", id, "error", err)
		writeError(w, err)
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.Status)

	if r.Method == http.MethodHead {
		return
	}
	if n, err := io.Copy(w, resp.Body); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Debug("stream interrupted", "file_id", id, "bytes", n, "error", err)
	}
}

// searchLyrics handles GET /api/lyrics/search?q=
func (a *API) searchLyrics(w http.ResponseWriter, r *http.Request) {
	if a.deps.Lyrics == nil {
		writeError(w, unavailable("lyrics source"))
		return
	}

	hits, err := a.deps.Lyrics.Search(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		writeError(w, err)
		return
	}
	if hits == nil {
		hits = []services.SearchHit{}
	}
	writeJSON(w, http.StatusOK, map[string][]services.SearchHit{"songs": hits})
}

type lyricsResponse struct {
	Lyrics *string `json:"lyrics"`
	URL    string  `json:"url"`
	Error  string  `json:"error,omitempty"`
}

// lyricsPage handles GET /api/lyrics?url= or ?id=
//
// A page that cannot be fetched or parsed is still a 200 with null lyrics and the page url.
func (a *API) lyricsPage(w http.ResponseWriter, r *http.Request) {
	if a.deps.Lyrics == nil {
		writeError(w, unavailable("lyrics source"))
		return
	}

	q := r.URL.Query()
	pageURL := strings.TrimSpace(q.Get("url"))
	if pageURL == "" {
		rawID := strings.TrimSpace(q.Get("id"))
		if rawID == "" {
			writeError(w, fmt.Errorf("%w: id or url is required", shared.ErrInvalidRequest))
			return
		}
		id, err := strconv.Atoi(rawID)
		if err != nil {
			writeError(w, fmt.Errorf("%w: id must be numeric", shared.ErrInvalidRequest))
			return
		}
		hit, err := a.deps.Lyrics.Song(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		pageURL = hit.URL
	}

	page, err := a.deps.Lyrics.Page(r.Context(), pageURL)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidRequest) {
			writeError(w, err)
			return
		}
		a.logger.Warn("lyrics page fetch failed", "url", pageURL, "error", err)
		writeJSON(w, http.StatusOK, lyricsResponse{URL: pageURL, Error: "failed to fetch lyrics page"})
		return
	}

	text, ok := lyrics.Extract(page)
	if !ok {
		writeJSON(w, http.StatusOK, lyricsResponse{URL: pageURL, Error: "could not extract lyrics from page"})
		return
	}
	writeJSON(w, http.StatusOK, lyricsResponse{Lyrics: &text, URL: pageURL})
}
