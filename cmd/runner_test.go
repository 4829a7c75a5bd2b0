package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/desertthunder/drivetune/internal/shared"
	tu "github.com/desertthunder/drivetune/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			tokens := &fakeTokens{}
			files := &memFiles{}
			lyricsSrc := &stubLyrics{}
			runs := &memRuns{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Tokens:     tokens,
				Files:      files,
				Lyrics:     lyricsSrc,
				Runs:       runs,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.credentials() != tokens {
				t.Error("expected tokens to be set")
			}
			if runner.fileStore() != files {
				t.Error("expected files to be set")
			}
			if runner.runs != runs {
				t.Error("expected runs to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with empty configPath", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: ""})

			if runner.configPath != "config.toml" {
				t.Errorf("expected default configPath, got %s", runner.configPath)
			}
		})
	})

	t.Run("pipeline", func(t *testing.T) {
		t.Run("builds once without a cache", func(t *testing.T) {
			runner := newTestRunner(t, &bytes.Buffer{})

			first, err := runner.pipeline(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			second, _ := runner.pipeline(context.Background())
			if first != second {
				t.Error("expected pipeline to be reused")
			}
			if runner.store != nil {
				t.Error("expected no store with an empty driver")
			}
			if err := runner.Close(context.Background()); err != nil {
				t.Errorf("expected Close without a store to succeed, got %v", err)
			}
		})

		t.Run("builds default services from config", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Database.Driver = shared.DriverNone
			config.Credentials.Google.TokenPath = t.TempDir() + "/token.json"
			runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}})

			if _, err := runner.pipeline(context.Background()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.credentials().HasCredential() {
				t.Error("expected no credential before login")
			}
			if runner.lyrics == nil || runner.files == nil {
				t.Error("expected default lyrics and file services")
			}
		})

		t.Run("opens sqlite store with run history", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Database.Driver = shared.DriverSQLite
			config.Database.Path = t.TempDir() + "/cache.db"
			runner := NewRunner(RunnerOpts{Config: config, Tokens: &fakeTokens{}, Files: &memFiles{}, Lyrics: &stubLyrics{}})
			defer runner.Close(context.Background())

			if _, err := runner.pipeline(context.Background()); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if runner.store == nil {
				t.Fatal("expected sqlite store")
			}
			if runner.runs == nil {
				t.Error("expected run history on sqlite")
			}
		})

		t.Run("fails on missing page headers file", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Database.Driver = shared.DriverNone
			config.Credentials.Genius.HeadersPath = t.TempDir() + "/missing.curl"
			runner := NewRunner(RunnerOpts{Config: config, Tokens: &fakeTokens{}, Files: &memFiles{}})

			if _, err := runner.pipeline(context.Background()); err == nil {
				t.Error("expected error for missing headers file")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("writes line with leading blank line", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("done"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "\ndone\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"serve", "resolve", "stream", "files", "warm", "runs", "auth", "setup"} {
			if !names[want] {
				t.Errorf("expected %q command to be registered", want)
			}
		}
	})
}
