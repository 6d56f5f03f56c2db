package main

import (
	"context"
	"errors"
	"os"

	"github.com/tiagowl/ImgMigrator/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	app := &cli.Command{
		Name:    "imgmigrator",
		Usage:   "Move photo libraries from iCloud Photos to Google Drive or S3",
		Version: "0.3.0",
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
		Before:   runner.before,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			runner.Close()
			os.Exit(0)
		}
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}
