package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/services"
	"github.com/desertthunder/drivetune/internal/shared"
	tu "github.com/desertthunder/drivetune/internal/testing"
	"golang.org/x/oauth2"
)

const lyricsPage = `<html><body><div data-lyrics-container="true">Line one<br/>Line two</div></body></html>`

type fakeTokens struct {
	tu.FakeTokenProvider
	authenticated bool
}

func (f *fakeTokens) HasCredential() bool { return f.authenticated }

func (f *fakeTokens) AuthCodeURL(state string) string {
	return "https://accounts.test/o/oauth2/auth?state=" + state
}

func (f *fakeTokens) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "tok-" + code}, nil
}

// memFiles serves in-memory files through http.ServeContent so Range requests behave like Drive.
type memFiles struct {
	files   []models.FileInfo
	content map[string][]byte
	listErr error

	mu    sync.Mutex
	query string
}

func newMemFiles(names ...string) *memFiles {
	m := &memFiles{content: map[string][]byte{}}
	for i, name := range names {
		id := fmt.Sprintf("f%d", i+1)
		data := make([]byte, 1000)
		for j := range data {
			data[j] = byte('a' + j%26)
		}
		m.content[id] = data
		m.files = append(m.files, models.FileInfo{
			ID:           id,
			Name:         name,
			MimeType:     "audio/mpeg",
			Size:         int64(len(data)),
			ModifiedTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		})
	}
	return m
}

func (m *memFiles) FileInfo(_ context.Context, id string) (*models.FileInfo, error) {
	for _, f := range m.files {
		if f.ID == id {
			info := f
			return &info, nil
		}
	}
	return nil, shared.NewUpstreamError(http.StatusNotFound, []byte("File not found"))
}

func (m *memFiles) Fetch(_ context.Context, id, _, rangeHeader string) (*http.Response, error) {
	req := httptest.NewRequest(http.MethodGet, "/"+id, nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	http.ServeContent(rec, req, "", time.Time{}, bytes.NewReader(m.content[id]))
	return rec.Result(), nil
}

func (m *memFiles) ListAudioFiles(_ context.Context, query string) ([]models.FileInfo, error) {
	m.mu.Lock()
	m.query = query
	m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.files, nil
}

type stubLyrics struct{}

func (s *stubLyrics) Search(_ context.Context, q string) ([]services.SearchHit, error) {
	return []services.SearchHit{{ID: 7, Title: q, URL: "https://genius.test/song-lyrics"}}, nil
}

func (s *stubLyrics) Page(context.Context, string) (string, error) {
	return lyricsPage, nil
}

func (s *stubLyrics) Song(_ context.Context, id int) (*services.SearchHit, error) {
	return &services.SearchHit{ID: id, URL: "https://genius.test/song-lyrics"}, nil
}

type memRuns struct {
	mu       sync.Mutex
	started  int
	finished []*models.ResolveRun
	recent   []*models.ResolveRun
}

func (m *memRuns) Start(_ context.Context, query string) (*models.ResolveRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	return &models.ResolveRun{ID: fmt.Sprintf("run-%d", m.started), Query: query, StartedAt: time.Now()}, nil
}

func (m *memRuns) Finish(_ context.Context, run *models.ResolveRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	run.FinishedAt = &now
	m.finished = append(m.finished, run)
	return nil
}

func (m *memRuns) Recent(_ context.Context, limit int) ([]*models.ResolveRun, error) {
	if limit < len(m.recent) {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

func newTestRunner(t *testing.T, output *bytes.Buffer, names ...string) *Runner {
	t.Helper()
	config := shared.DefaultConfig()
	config.Database.Driver = shared.DriverNone
	return NewRunner(RunnerOpts{
		Config: config,
		Output: output,
		Logger: shared.NewLogger(&bytes.Buffer{}),
		Tokens: &fakeTokens{FakeTokenProvider: tu.FakeTokenProvider{Token: "tok"}, authenticated: true},
		Files:  newMemFiles(names...),
		Lyrics: &stubLyrics{},
	})
}

func runApp(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	return runAppWithConfig(t, r, filepath.Join(t.TempDir(), "config.toml"), args...)
}

func runAppWithConfig(t *testing.T, r *Runner, configPath string, args ...string) error {
	t.Helper()
	argv := append([]string{"drivetune", "--config", configPath}, args...)
	return newApp(r).Run(context.Background(), argv)
}

func TestFilesCommand(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out, "First.mp3", "Second.mp3")

		if err := runApp(t, r, "files"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"NAME", "First.mp3", "Second.mp3"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("csv with query", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out, "First.mp3")

		if err := runApp(t, r, "files", "--format", "csv", "First"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.HasPrefix(out.String(), "ID,Name,MimeType,Size,Modified\n") {
			t.Errorf("unexpected CSV output %q", out.String())
		}
		if got := r.files.(*memFiles).query; got != "First" {
			t.Errorf("expected query to be forwarded, got %q", got)
		}
	})

	t.Run("json", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out, "First.mp3")

		if err := runApp(t, r, "files", "--format", "json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var files []models.FileInfo
		if err := json.Unmarshal(out.Bytes(), &files); err != nil {
			t.Fatalf("invalid JSON %q: %v", out.String(), err)
		}
		if len(files) != 1 || files[0].ID != "f1" {
			t.Errorf("unexpected files %+v", files)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		r := newTestRunner(t, &bytes.Buffer{})

		err := runApp(t, r, "files", "--format", "xml")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("listing failure", func(t *testing.T) {
		r := newTestRunner(t, &bytes.Buffer{})
		r.files.(*memFiles).listErr = shared.ErrAuthUnavailable

		if err := runApp(t, r, "files"); !errors.Is(err, shared.ErrAuthUnavailable) {
			t.Errorf("expected ErrAuthUnavailable, got %v", err)
		}
	})
}

func TestResolveCommand(t *testing.T) {
	t.Run("requires id or name", func(t *testing.T) {
		r := newTestRunner(t, &bytes.Buffer{})

		if err := runApp(t, r, "resolve"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("text output", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out, "Artist - Title.mp3")
		r.palette = nil

		if err := runApp(t, r, "resolve", "--id", "f1", "--name", "Artist - Title.mp3", "--lyrics"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"Title", "Artist", "Line one\nLine two"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("json output", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out, "Artist - Title.mp3")

		if err := runApp(t, r, "resolve", "--id", "f1", "--name", "Artist - Title.mp3", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var song models.Song
		if err := json.Unmarshal(out.Bytes(), &song); err != nil {
			t.Fatalf("invalid JSON %q: %v", out.String(), err)
		}
		if song.Title != "Title" || song.Artist != "Artist" || song.FileID != "f1" {
			t.Errorf("unexpected song %+v", song)
		}
		if song.Lyrics.String() != "Line one\nLine two" {
			t.Errorf("unexpected lyrics %q", song.Lyrics.String())
		}
	})
}

func TestStreamCommand(t *testing.T) {
	t.Run("range to stdout", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out, "song.mp3")

		if err := runApp(t, r, "stream", "--range", "bytes=100-199", "f1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := r.files.(*memFiles).content["f1"][100:200]
		if !bytes.Equal(out.Bytes(), want) {
			t.Errorf("expected 100 bytes from offset 100, got %d bytes", out.Len())
		}
	})

	t.Run("whole file to output path", func(t *testing.T) {
		r := newTestRunner(t, &bytes.Buffer{}, "song.mp3")
		path := filepath.Join(t.TempDir(), "out.mp3")

		if err := runApp(t, r, "stream", "-o", path, "f1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := tu.MustReadFile(t, path); got != string(r.files.(*memFiles).content["f1"]) {
			t.Errorf("expected whole file, got %d bytes", len(got))
		}
	})

	t.Run("missing id", func(t *testing.T) {
		r := newTestRunner(t, &bytes.Buffer{})

		if err := runApp(t, r, "stream"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("unknown file", func(t *testing.T) {
		r := newTestRunner(t, &bytes.Buffer{}, "song.mp3")

		err := runApp(t, r, "stream", "nope")
		var upstream *shared.UpstreamError
		if !errors.As(err, &upstream) || upstream.Status != http.StatusNotFound {
			t.Errorf("expected 404 upstream error, got %v", err)
		}
	})

	t.Run("malformed range", func(t *testing.T) {
		r := newTestRunner(t, &bytes.Buffer{}, "song.mp3")

		if err := runApp(t, r, "stream", "--range", "lines=1-2", "f1"); !errors.Is(err, shared.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})
}

func TestWarmCommand(t *testing.T) {
	t.Run("prints progress and summary", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out, "A - One.mp3", "B - Two.mp3")
		runs := &memRuns{}
		r.runs = runs

		if err := runApp(t, r, "warm", "--rate", "100", "--workers", "2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"Found 2 audio files", "[1/2]", "[2/2]", "Run run-1", "2 resolved", "of 2 files"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, out.String())
			}
		}
		if len(runs.finished) != 1 || runs.finished[0].Resolved != 2 {
			t.Errorf("expected one finished run with 2 resolved, got %+v", runs.finished)
		}
	})

	t.Run("json", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out, "A - One.mp3")

		if err := runApp(t, r, "warm", "--rate", "100", "--json", "--query", "One"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var view warmJSON
		if err := json.Unmarshal(out.Bytes(), &view); err != nil {
			t.Fatalf("invalid JSON %q: %v", out.String(), err)
		}
		if view.Run == nil || view.Run.Total != 1 || view.Run.Query != "One" {
			t.Errorf("unexpected run %+v", view.Run)
		}
		if len(view.Files) != 1 || view.Files[0].Title != "One" || !view.Files[0].Lyrics {
			t.Errorf("unexpected files %+v", view.Files)
		}
	})

	t.Run("listing failure", func(t *testing.T) {
		r := newTestRunner(t, &bytes.Buffer{})
		r.files.(*memFiles).listErr = shared.ErrAuthUnavailable

		if err := runApp(t, r, "warm"); !errors.Is(err, shared.ErrAuthUnavailable) {
			t.Errorf("expected ErrAuthUnavailable, got %v", err)
		}
	})
}

func TestRunsCommand(t *testing.T) {
	t.Run("lists recent runs", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out)
		finished := time.Date(2024, 1, 1, 0, 0, 2, 0, time.UTC)
		r.runs = &memRuns{recent: []*models.ResolveRun{
			{ID: "r2", Total: 3, Resolved: 3, StartedAt: finished.Add(-2 * time.Second), FinishedAt: &finished},
			{ID: "r1", Total: 2, Resolved: 1, Failed: 1},
		}}

		if err := runApp(t, r, "runs", "--limit", "5"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"Recent warm runs", "Run r2", "Run r1", "1 failed"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("empty history", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out)
		r.runs = &memRuns{}

		if err := runApp(t, r, "runs"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out.String(), "No warm runs recorded") {
			t.Errorf("unexpected output %q", out.String())
		}
	})

	t.Run("without sqlite cache", func(t *testing.T) {
		r := newTestRunner(t, &bytes.Buffer{})

		if err := runApp(t, r, "runs"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("status authenticated", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out)

		if err := runApp(t, r, "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out.String(), "Authenticated") {
			t.Errorf("unexpected output %q", out.String())
		}
	})

	t.Run("status without credential", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out)
		r.tokens.(*fakeTokens).authenticated = false

		if err := runApp(t, r, "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out.String(), "drivetune auth login") {
			t.Errorf("unexpected output %q", out.String())
		}
	})

	t.Run("login requires client credentials", func(t *testing.T) {
		r := newTestRunner(t, &bytes.Buffer{})
		r.config.Credentials.Google.ClientID = ""
		t.Setenv("GOOGLE_CLIENT_ID", "")

		if err := runApp(t, r, "auth", "login"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := runAppWithConfig(t, r, path, "setup", "config"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(out.String(), path) {
			t.Errorf("expected path in output, got %q", out.String())
		}

		if err := runAppWithConfig(t, NewRunner(RunnerOpts{Output: &bytes.Buffer{}}), path, "setup", "config"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for existing file, got %v", err)
		}
	})

	t.Run("database disabled", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out)

		if err := runApp(t, r, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(out.String(), "disabled") {
			t.Errorf("unexpected output %q", out.String())
		}
	})

	t.Run("database sqlite", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := newTestRunner(t, out)
		r.config.Database.Driver = shared.DriverSQLite
		r.config.Database.Path = filepath.Join(t.TempDir(), "cache.db")
		defer r.Close(context.Background())

		if err := runApp(t, r, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, r.config.Database.Path)
		if r.runs == nil {
			t.Error("expected run history after sqlite setup")
		}
	})
}

func TestConfigLoading(t *testing.T) {
	t.Run("loads config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		conf := "[database]\ndriver = \"\"\n\n[server]\nhost = \"127.0.0.1\"\nport = 8088\n"
		if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
			t.Fatal(err)
		}

		r := newTestRunner(t, &bytes.Buffer{})
		if err := runAppWithConfig(t, r, path, "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if r.config.Addr() != "127.0.0.1:8088" {
			t.Errorf("expected loaded server address, got %s", r.config.Addr())
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte("[database]\ndriver = \"postgres\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		r := newTestRunner(t, &bytes.Buffer{})
		if err := runAppWithConfig(t, r, path, "auth", "status"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("GENIUS_ACCESS_TOKEN", "from-env")
		r := newTestRunner(t, &bytes.Buffer{})

		if err := runApp(t, r, "auth", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if r.config.Credentials.Genius.AccessToken != "from-env" {
			t.Errorf("expected env token, got %q", r.config.Credentials.Genius.AccessToken)
		}
	})
}

func TestServeHandler(t *testing.T) {
	r := newTestRunner(t, &bytes.Buffer{}, "Artist - Title.mp3")

	h, err := r.handler(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	t.Run("auth status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))

		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"authenticated":true`) {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("ranged stream", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/files/f1/stream", nil)
		req.Header.Set("Range", "bytes=0-9")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusPartialContent {
			t.Fatalf("expected 206, got %d", rec.Code)
		}
		if rec.Body.String() != "abcdefghij" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("expected CORS header")
		}
	})

	t.Run("song", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/songs?fileId=f1&fileName=Artist%20-%20Title.mp3", nil))

		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"title":"Title"`) {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("callback route from redirect uri", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/auth/callback?code=x&state=y", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 without a state cookie, got %d", rec.Code)
		}
	})
}
