// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User ID or email",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func idArg() cli.Argument {
	return &cli.StringArg{Name: "id", UsageText: "migration ID"}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Write a default config if missing, initialize the database and run migrations",
		Action: r.SetupDatabase,
	}
}

// userCommand manages users.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "user",
		Aliases: []string{"users"},
		Usage:   "Manage users",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "User email",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name",
					},
				},
				Action: r.UserAdd,
			},
			{
				Name:   "list",
				Usage:  "List users",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.UserList,
			},
		},
	}
}

// credentialsCommand connects the source and sink services.
func credentialsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "credentials",
		Aliases: []string{"creds"},
		Usage:   "Connect photo services",
		Commands: []*cli.Command{
			{
				Name:  "connect",
				Usage: "Authorize a service in the browser",
				Commands: []*cli.Command{
					{
						Name:   "google",
						Usage:  "Authorize Google Drive using OAuth2",
						Flags:  []cli.Flag{userFlag()},
						Action: r.ConnectGoogle,
					},
				},
			},
			{
				Name:  "set",
				Usage: "Store credentials directly",
				Commands: []*cli.Command{
					{
						Name:  "icloud",
						Usage: "Store the iCloud proxy session key",
						Flags: []cli.Flag{
							userFlag(),
							&cli.StringFlag{
								Name:     "session",
								Usage:    "Session key issued by the iCloud proxy",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "skip-verify",
								Usage: "Store without checking the session against the proxy",
							},
						},
						Action: r.SetICloud,
					},
					{
						Name:  "s3",
						Usage: "Store S3 access keys",
						Flags: []cli.Flag{
							userFlag(),
							&cli.StringFlag{
								Name:     "access-key-id",
								Usage:    "Access key ID",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "secret-access-key",
								Usage:    "Secret access key",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "skip-verify",
								Usage: "Store without checking the bucket",
							},
						},
						Action: r.SetS3,
					},
				},
			},
			{
				Name:   "list",
				Usage:  "Show which services are connected",
				Flags:  []cli.Flag{userFlag(), jsonFlag()},
				Action: r.ListCredentials,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Disconnect a service",
				Flags:     []cli.Flag{userFlag()},
				Arguments: []cli.Argument{&cli.StringArg{Name: "service", UsageText: "icloud, google_drive or s3"}},
				Action:    r.RemoveCredential,
			},
		},
	}
}

// migrateCommand handles migration operations.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"migration", "m"},
		Usage:   "Create and run photo migrations",
		Commands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Create a pending migration",
				Flags:  []cli.Flag{userFlag(), jsonFlag()},
				Action: r.MigrateCreate,
			},
			{
				Name:      "run",
				Usage:     "Run a migration in the foreground",
				Arguments: []cli.Argument{idArg()},
				Flags:     []cli.Flag{userFlag()},
				Action:    r.MigrateRun,
			},
			{
				Name:      "pause",
				Usage:     "Pause a running migration",
				Arguments: []cli.Argument{idArg()},
				Flags:     []cli.Flag{userFlag()},
				Action:    r.MigratePause,
			},
			{
				Name:      "resume",
				Usage:     "Resume a paused migration",
				Arguments: []cli.Argument{idArg()},
				Flags:     []cli.Flag{userFlag()},
				Action:    r.MigrateResume,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a migration",
				Arguments: []cli.Argument{idArg()},
				Flags:     []cli.Flag{userFlag()},
				Action:    r.MigrateCancel,
			},
			{
				Name:      "status",
				Usage:     "Show migration progress",
				Arguments: []cli.Argument{idArg()},
				Flags:     []cli.Flag{userFlag(), jsonFlag()},
				Action:    r.MigrateStatus,
			},
			{
				Name:  "list",
				Usage: "List migrations",
				Flags: []cli.Flag{
					userFlag(),
					jsonFlag(),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show migrations with this status",
					},
				},
				Action: r.MigrateList,
			},
			{
				Name:      "report",
				Usage:     "Export the item log of a migration",
				Arguments: []cli.Argument{idArg()},
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, md, txt, json)",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (directory for md)",
					},
				},
				Action: r.MigrateReport,
			},
		},
	}
}

// serveCommand starts the HTTP API with the background dispatcher.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API and background workers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
			&cli.StringSliceFlag{
				Name:  "allow-origin",
				Usage: "CORS origin allowed to call the API (repeatable)",
			},
		},
		Action: r.Serve,
	}
}
