package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/formatter"
	"github.com/desertthunder/drivetune/internal/metadata"
	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/repositories"
	"github.com/desertthunder/drivetune/internal/server"
	"github.com/desertthunder/drivetune/internal/services"
	"github.com/desertthunder/drivetune/internal/shared"
	"github.com/desertthunder/drivetune/internal/stream"
	"github.com/desertthunder/drivetune/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Tokens is the credential holder shared by the stream proxy and the auth commands.
// [services.TokenManager] implements it.
type Tokens interface {
	services.TokenProvider
	server.Authenticator
}

// RunHistory records warm runs and lists past ones. [repositories.RunRepository] implements it.
type RunHistory interface {
	tasks.RunRecorder
	Recent(ctx context.Context, limit int) ([]*models.ResolveRun, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Pipeline components left nil in [RunnerOpts] are built from the config on first use.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	palette    *formatter.Palette

	tokens Tokens
	files  services.FileStore
	lyrics server.LyricsService
	store  repositories.SongStore
	runs   RunHistory

	storeOpened bool
	pipe        *pipeline
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Palette    *formatter.Palette

	Tokens Tokens
	Files  services.FileStore
	Lyrics server.LyricsService
	Store  repositories.SongStore
	Runs   RunHistory
}

// pipeline is the wired resolution stack.
type pipeline struct {
	proxy    *stream.Proxy
	resolver *tasks.Resolver
	warmer   *tasks.Warmer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		palette:     opts.Palette,
		tokens:      opts.Tokens,
		files:       opts.Files,
		lyrics:      opts.Lyrics,
		store:       opts.Store,
		runs:        opts.Runs,
		storeOpened: opts.Store != nil,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, resolveCommand, streamCommand, filesCommand, warmCommand, runsCommand, authCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// credentials returns the token manager, building it from the Google credentials.
func (r *Runner) credentials() Tokens {
	if r.tokens == nil {
		google := r.config.Credentials.Google
		r.tokens = services.NewTokenManager(
			services.NewGoogleOAuthConfig(google),
			services.FileTokenStore{Path: google.TokenPath},
			services.WithTokenHTTPClient(r.httpClient),
			services.WithTokenLogger(r.logger),
		)
	}
	return r.tokens
}

func (r *Runner) fileStore() services.FileStore {
	if r.files == nil {
		r.files = services.NewDriveService("", r.credentials(), r.httpClient, r.logger)
	}
	return r.files
}

func (r *Runner) lyricsService() (server.LyricsService, error) {
	if r.lyrics != nil {
		return r.lyrics, nil
	}

	genius := r.config.Credentials.Genius
	opts := []services.GeniusOption{services.WithGeniusLogger(r.logger)}
	if r.httpClient.Transport != nil {
		opts = append(opts, services.WithGeniusTransport(r.httpClient.Transport))
	}
	if genius.HeadersPath != "" {
		headers, err := shared.ParseCurlFile(genius.HeadersPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load lyrics page headers: %w", err)
		}
		opts = append(opts, services.WithPageHeaders(headers))
	}

	r.lyrics = services.NewGeniusService(genius, opts...)
	return r.lyrics, nil
}

// songStore opens the configured cache once. A disabled cache yields a nil store.
func (r *Runner) songStore(ctx context.Context) (repositories.SongStore, error) {
	if r.storeOpened {
		return r.store, nil
	}

	store, err := repositories.OpenSongStore(ctx, r.config.Database, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open song store: %w", err)
	}
	r.store = store
	r.storeOpened = true

	if sqlite, ok := store.(*repositories.SQLiteSongStore); ok && r.runs == nil {
		r.runs = repositories.NewRunRepository(sqlite.DB())
	}
	return r.store, nil
}

// pipeline wires the proxy, extractor, resolver and warmer.
func (r *Runner) pipeline(ctx context.Context) (*pipeline, error) {
	if r.pipe != nil {
		return r.pipe, nil
	}

	store, err := r.songStore(ctx)
	if err != nil {
		return nil, err
	}
	lyricsSrc, err := r.lyricsService()
	if err != nil {
		return nil, err
	}

	files := r.fileStore()
	proxy := stream.NewProxy(files, r.credentials(), r.logger)
	extractor := metadata.NewExtractor(proxy, r.config.MetadataBytes(), r.logger)
	resolver := tasks.NewResolver(store, lyricsSrc, extractor, r.logger)

	var recorder tasks.RunRecorder
	if r.runs != nil {
		recorder = r.runs
	}

	r.pipe = &pipeline{
		proxy:    proxy,
		resolver: resolver,
		warmer:   tasks.NewWarmer(files, resolver, recorder, r.logger),
	}
	return r.pipe, nil
}

// Close releases the song store.
func (r *Runner) Close(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.Close(ctx)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
