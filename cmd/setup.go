package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tiagowl/ImgMigrator/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes a default config when none exists, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.writePlain("✓ Wrote %s\n", configPath)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	applied, err := shared.AppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	r.writePlain("✓ Database ready at %s (%d migrations applied)\n", r.config.Database.Path, len(applied))
	r.writePlainln("Next steps:")
	r.writePlain("1. imgmigrator user add --email you@example.com\n")
	r.writePlain("2. imgmigrator credentials set icloud --user you@example.com --session <proxy session>\n")
	r.writePlain("3. imgmigrator credentials connect google --user you@example.com\n")
	r.writePlain("4. imgmigrator migrate create --user you@example.com\n")
	return nil
}
