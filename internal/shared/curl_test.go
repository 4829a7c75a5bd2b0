package shared

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantHeaders map[string]string
		wantCookie  string
		wantErr     bool
	}{
		{
			name:        "single header with single quotes",
			curlCmd:     `curl -H 'User-Agent: Mozilla/5.0' https://genius.com/song-lyrics`,
			wantHeaders: map[string]string{"User-Agent": "Mozilla/5.0"},
		},
		{
			name:        "single header with double quotes",
			curlCmd:     `curl -H "Accept-Language: en-US" https://genius.com/song-lyrics`,
			wantHeaders: map[string]string{"Accept-Language": "en-US"},
		},
		{
			name:        "cookie in -b flag",
			curlCmd:     `curl -b 'session=abc123' https://genius.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "session=abc123",
		},
		{
			name:        "cookie header is kept out of regular headers",
			curlCmd:     `curl -H 'Cookie: session=abc123' -H 'Referer: https://genius.com/' https://genius.com`,
			wantHeaders: map[string]string{"Referer": "https://genius.com/"},
			wantCookie:  "session=abc123",
		},
		{
			name:        "-b cookie takes precedence over -H cookie",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://genius.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
		},
		{
			name: "multiline with backslashes",
			curlCmd: `curl 'https://genius.com/Artist-song-lyrics' \
  -H 'accept: text/html' \
  -H 'accept-language: en-US,en;q=0.9' \
  -H 'cookie: _genius_ab_test=1'`,
			wantHeaders: map[string]string{
				"accept":          "text/html",
				"accept-language": "en-US,en;q=0.9",
			},
			wantCookie: "_genius_ab_test=1",
		},
		{
			name:        "spaces around colon",
			curlCmd:     `curl -H 'Referer : https://genius.com/' https://genius.com`,
			wantHeaders: map[string]string{"Referer": "https://genius.com/"},
		},
		{name: "no headers or cookies", curlCmd: `curl https://genius.com`, wantErr: true},
		{name: "empty command", curlCmd: "", wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCurlCommand(tc.curlCmd)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseCurlCommand() error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}

			if len(result.Headers) != len(tc.wantHeaders) {
				t.Errorf("headers count = %d, want %d", len(result.Headers), len(tc.wantHeaders))
			}
			for key, want := range tc.wantHeaders {
				if got := result.Headers[key]; got != want {
					t.Errorf("header[%s] = %q, want %q", key, got, want)
				}
			}
			if result.Cookie != tc.wantCookie {
				t.Errorf("cookie = %q, want %q", result.Cookie, tc.wantCookie)
			}
		})
	}
}

func TestParseCurlFile(t *testing.T) {
	t.Run("successful file parse", func(t *testing.T) {
		curlFile := filepath.Join(t.TempDir(), "genius.sh")
		cmd := `curl -H 'User-Agent: Mozilla/5.0' -b 'session=xyz' https://genius.com`
		if err := os.WriteFile(curlFile, []byte(cmd), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		result, err := ParseCurlFile(curlFile)
		if err != nil {
			t.Fatalf("ParseCurlFile() error = %v", err)
		}
		if result.Headers["User-Agent"] != "Mozilla/5.0" || result.Cookie != "session=xyz" {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("file does not exist", func(t *testing.T) {
		if _, err := ParseCurlFile("/nonexistent/file.sh"); err == nil {
			t.Error("expected error for nonexistent file")
		}
	})
}

func TestRequestHeadersApply(t *testing.T) {
	h := http.Header{}
	h.Set("User-Agent", "default")

	rh := &RequestHeaders{Headers: map[string]string{"user-agent": "browser"}, Cookie: "a=b"}
	rh.Apply(h)

	if h.Get("User-Agent") != "browser" {
		t.Errorf("expected overridden user agent, got %q", h.Get("User-Agent"))
	}
	if h.Get("Cookie") != "a=b" {
		t.Errorf("expected cookie, got %q", h.Get("Cookie"))
	}

	var nilHeaders *RequestHeaders
	nilHeaders.Apply(h)
}
