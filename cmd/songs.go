package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/desertthunder/drivetune/internal/formatter"
	"github.com/desertthunder/drivetune/internal/shared"
	"github.com/desertthunder/drivetune/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Resolve looks a song up by file id and/or name and prints it.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	req := tasks.ResolveRequest{FileID: cmd.String("id"), FileName: cmd.String("name")}
	if strings.TrimSpace(req.FileID) == "" && strings.TrimSpace(req.FileName) == "" {
		return fmt.Errorf("%w: --id or --name is required", shared.ErrMissingArgument)
	}

	pipe, err := r.pipeline(ctx)
	if err != nil {
		return err
	}

	r.logger.Debug("resolving song", "file_id", req.FileID, "file_name", req.FileName)

	song, err := pipe.resolver.Resolve(ctx, req)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(song, cmd.Bool("pretty"))
	}
	return r.writePlain("%s", formatter.SongText(song, r.palette, cmd.Bool("lyrics")))
}

// Stream copies a file, or the requested byte range, to --output or stdout.
func (r *Runner) Stream(ctx context.Context, cmd *cli.Command) error {
	fileID := cmd.StringArg("id")
	if fileID == "" {
		return fmt.Errorf("%w: file id is required", shared.ErrMissingArgument)
	}

	pipe, err := r.pipeline(ctx)
	if err != nil {
		return err
	}

	resp, err := pipe.proxy.Stream(ctx, fileID, cmd.String("range"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.Status >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return shared.NewUpstreamError(resp.Status, body)
	}

	r.logger.Info("streaming file",
		"file_id", fileID,
		"status", resp.Status,
		"content_range", resp.Header.Get("Content-Range"),
		"size", resp.Size,
	)

	out := r.output
	if path := cmd.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to copy stream: %w", err)
	}

	r.logger.Debug("stream complete", "bytes", n)
	return nil
}

// Files lists audio files as a table, CSV or JSON.
func (r *Runner) Files(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	switch format {
	case "table", "csv", "json":
	default:
		return fmt.Errorf("%w: unknown format %q (want table, csv or json)", shared.ErrInvalidFlag, format)
	}

	files, err := r.fileStore().ListAudioFiles(ctx, cmd.StringArg("query"))
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return r.writeJSON(files, cmd.Bool("pretty"))
	case "csv":
		data, err := formatter.FilesCSV(files)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	default:
		return r.writePlain("%s", formatter.FilesTable(files, r.palette))
	}
}
