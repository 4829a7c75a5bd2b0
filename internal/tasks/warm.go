package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/services"
	"github.com/desertthunder/drivetune/internal/shared"
	"golang.org/x/time/rate"
)

// RunRecorder persists warm runs. [repositories.RunRepository] implements it.
type RunRecorder interface {
	Start(ctx context.Context, query string) (*models.ResolveRun, error)
	Finish(ctx context.Context, run *models.ResolveRun) error
}

// WarmOpts contains configuration for a cache warm pass.
type WarmOpts struct {
	Query      string  // Optional name filter for the file listing
	NumWorkers int     // Concurrent workers (default: 4, max: 10)
	RateLimit  float64 // Resolutions started per second (default: 2)
}

// WarmFileResult is the outcome for a single file.
type WarmFileResult struct {
	File  models.FileInfo
	Song  *models.Song
	Error error
}

// WarmResult summarizes a warm pass.
type WarmResult struct {
	Run     *models.ResolveRun
	Results []WarmFileResult
}

// Warmer resolves every listed audio file so later lookups hit the cache.
type Warmer struct {
	files    services.FileStore
	resolver SongResolver
	runs     RunRecorder // optional
	logger   *log.Logger
}

// NewWarmer creates a Warmer. runs may be nil.
func NewWarmer(files services.FileStore, resolver SongResolver, runs RunRecorder, logger *log.Logger) *Warmer {
	return &Warmer{
		files:    files,
		resolver: resolver,
		runs:     runs,
		logger:   shared.WithLogger(logger, "component", "warm"),
	}
}

// Warm lists audio files and resolves each of them with a bounded worker pool.
//
// Individual failures are collected in the result; an error is returned only when the
// listing fails or the context is cancelled before any work is queued.
func (w *Warmer) Warm(ctx context.Context, prog chan<- ProgressUpdate, opts WarmOpts) (*WarmResult, error) {
	if w.files == nil || w.resolver == nil {
		return nil, fmt.Errorf("%w: file store and resolver are required", shared.ErrServiceUnavailable)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	w.sendProgress(prog, listingFilesUpdate(opts.Query))
	files, err := w.files.ListAudioFiles(ctx, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to list audio files: %w", err)
	}
	w.sendProgress(prog, foundFilesUpdate(len(files)))

	run := w.startRun(ctx, opts.Query)
	run.Total = len(files)
	result := &WarmResult{Run: run, Results: make([]WarmFileResult, 0, len(files))}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan models.FileInfo, len(files))
	results := make(chan WarmFileResult, len(files))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go w.worker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, file := range files {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- file
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Error != nil {
			run.Failed++
			w.sendProgress(prog, resolveFailedUpdate(completed, len(files), res.File, res.Error))
			continue
		}
		run.Resolved++
		w.sendProgress(prog, resolvedUpdate(completed, len(files), res.File, res.Song))
	}

	w.finishRun(context.WithoutCancel(ctx), run)
	w.sendProgress(prog, runRecordedUpdate(run))

	if completed == 0 && len(files) > 0 && ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

// worker resolves files from the jobs channel until it is closed.
func (w *Warmer) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan models.FileInfo, results chan<- WarmFileResult) {
	defer wg.Done()

	for file := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		song, err := w.resolver.Resolve(ctx, ResolveRequest{FileID: file.ID, FileName: file.Name})
		results <- WarmFileResult{File: file, Song: song, Error: err}
	}
}

func (w *Warmer) startRun(ctx context.Context, query string) *models.ResolveRun {
	if w.runs != nil {
		run, err := w.runs.Start(ctx, query)
		if err == nil {
			return run
		}
		w.logger.Warn("failed to record run start", "error", err)
	}
	return &models.ResolveRun{ID: shared.GenerateID(), Query: query, StartedAt: time.Now().UTC()}
}

func (w *Warmer) finishRun(ctx context.Context, run *models.ResolveRun) {
	if w.runs != nil {
		err := w.runs.Finish(ctx, run)
		if err == nil {
			return
		}
		w.logger.Warn("failed to record run finish", "run", run.ID, "error", err)
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
}

// sendProgress sends a progress update through the channel without blocking.
func (w *Warmer) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
