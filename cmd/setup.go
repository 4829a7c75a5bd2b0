package main

import (
	"context"

	"github.com/desertthunder/drivetune/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example config to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", r.configPath)
	r.writePlain("✓ Config written to %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.google client_id and client_secret (or GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET)\n")
	r.writePlain("2. Set credentials.genius access_token (or GENIUS_ACCESS_TOKEN)\n")
	r.writePlain("3. Run 'drivetune setup database' and 'drivetune auth login'\n")
	return nil
}

// SetupDatabase initializes the configured cache and runs migrations or index creation.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	db := r.config.Database
	if db.Driver == shared.DriverNone {
		return r.writePlain("Song cache is disabled (database.driver is empty); nothing to set up\n")
	}

	r.logger.Info("initializing song cache", "driver", db.Driver, "path", db.Path)

	if _, err := r.songStore(ctx); err != nil {
		return err
	}

	r.logger.Infof("setup complete for %s cache", db.Driver)
	switch db.Driver {
	case shared.DriverSQLite:
		return r.writePlain("✓ Database ready at %s\n", db.Path)
	default:
		return r.writePlain("✓ Collection %s.%s ready\n", db.Name, db.Collection)
	}
}
