// submodule cmd contains command definitions
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/drivetune/internal/shared"
	"github.com/urfave/cli/v3"
)

// newApp builds the root command. Global flags are read before any subcommand runs.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "drivetune",
		Usage:   "Stream audio from Google Drive and resolve songs with lyrics and metadata",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

// before loads the config file when present, applies environment overrides and validates.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	r.config.ApplyEnv(os.Getenv)
	if err := r.config.Validate(); err != nil {
		return ctx, fmt.Errorf("config %s: %w", r.configPath, err)
	}
	return ctx, nil
}

// serveCommand starts the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the song, file, stream and lyrics HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// resolveCommand resolves a single song
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve a song by file id and/or file name",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "Drive file ID",
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "File display name",
			},
			&cli.BoolFlag{
				Name:    "lyrics",
				Aliases: []string{"l"},
				Usage:   "Print the full lyrics",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Resolve,
	}
}

// streamCommand writes proxied file bytes
func streamCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Download a file, or a byte range of it, through the streaming proxy",
		ArgsUsage: "<file-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "range",
				Aliases: []string{"r"},
				Usage:   "HTTP Range header value, e.g. bytes=0-99",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (defaults to stdout)",
			},
		},
		Action: r.Stream,
	}
}

// filesCommand lists audio files
func filesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "files",
		Aliases:   []string{"ls"},
		Usage:     "List audio files, optionally filtered by name",
		ArgsUsage: "[query]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: table, csv or json",
				Value:   "table",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
		},
		Action: r.Files,
	}
}

// warmCommand resolves every listed file into the cache
func warmCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "warm",
		Usage: "Resolve every audio file into the song cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Only warm files whose name contains this text",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Number of concurrent workers (max 10)",
				Value:   4,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Maximum resolutions started per second",
				Value: 2,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Warm,
	}
}

// runsCommand lists past warm runs
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Show recent warm runs (sqlite cache only)",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Runs,
	}
}

// authCommand handles Google Drive authorization
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Google Drive authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize Drive access in the browser and save the token",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Report whether a Drive credential is available",
				Action: r.AuthStatus,
			},
		},
	}
}

// setupCommand initializes local state
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and the song cache",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the cache database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}
