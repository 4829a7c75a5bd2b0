package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/drivetune/internal/formatter"
	"github.com/desertthunder/drivetune/internal/models"
	"github.com/desertthunder/drivetune/internal/shared"
	"github.com/desertthunder/drivetune/internal/tasks"
	"github.com/urfave/cli/v3"
)

type warmFileJSON struct {
	FileID string `json:"fileId"`
	Name   string `json:"name"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Lyrics bool   `json:"lyrics"`
	Error  string `json:"error,omitempty"`
}

type warmJSON struct {
	Run   *models.ResolveRun `json:"run"`
	Files []warmFileJSON     `json:"files"`
}

// Warm resolves every listed audio file, printing progress as it goes.
func (r *Runner) Warm(ctx context.Context, cmd *cli.Command) error {
	pipe, err := r.pipeline(ctx)
	if err != nil {
		return err
	}

	opts := tasks.WarmOpts{
		Query:      cmd.String("query"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	}
	asJSON := cmd.Bool("json")

	r.logger.Info("starting warm run", "query", opts.Query, "workers", opts.NumWorkers, "rate", opts.RateLimit)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if asJSON {
				continue
			}
			switch update.Phase {
			case tasks.ListFiles:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ResolveSongs:
				r.writePlain("   %s\n", update.Message)
			case tasks.RecordRun:
				r.logger.Debug(update.Message)
			}
		}
	}()

	result, err := pipe.warmer.Warm(ctx, progressCh, opts)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(warmView(result), true)
	}

	r.writePlain("\n")
	return r.writePlain("%s", formatter.RunSummary(result.Run, r.palette))
}

func warmView(result *tasks.WarmResult) warmJSON {
	view := warmJSON{Run: result.Run, Files: make([]warmFileJSON, 0, len(result.Results))}
	for _, res := range result.Results {
		item := warmFileJSON{FileID: res.File.ID, Name: res.File.Name}
		if res.Song != nil {
			item.Title = res.Song.Title
			item.Artist = res.Song.Artist
			item.Lyrics = res.Song.Lyrics.HasText()
		}
		if res.Error != nil {
			item.Error = res.Error.Error()
		}
		view.Files = append(view.Files, item)
	}
	return view
}

// Runs prints the most recent warm runs.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.songStore(ctx); err != nil {
		return err
	}
	if r.runs == nil {
		return fmt.Errorf("%w: run history requires the sqlite cache", shared.ErrServiceUnavailable)
	}

	runs, err := r.runs.Recent(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No warm runs recorded\n")
	}

	r.writePlainHeader("Recent warm runs")
	for _, run := range runs {
		if err := r.writePlain("%s", formatter.RunSummary(run, r.palette)); err != nil {
			return err
		}
	}
	return nil
}
