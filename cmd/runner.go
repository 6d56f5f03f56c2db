package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/tiagowl/ImgMigrator/internal/repositories"
	"github.com/tiagowl/ImgMigrator/internal/secrets"
	"github.com/tiagowl/ImgMigrator/internal/services"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"github.com/tiagowl/ImgMigrator/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, repositories, secret store and engine are opened on first use by [Runner.open].
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	palette    *Palette
	isTerminal func() bool

	db          *sql.DB
	users       *repositories.UserRepository
	credentials *repositories.CredentialRepository
	migrations  *repositories.MigrationRepository
	logs        *repositories.MigrationLogRepository
	secrets     *secrets.Store
	engine      *tasks.MigrationEngine

	source *tasks.SourceBinding
	sink   *tasks.SinkBinding
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// DB skips opening config.Database.Path; migrations are still applied.
	DB *sql.DB
	// Source and Sink replace the adapters chosen from config.
	Source *tasks.SourceBinding
	Sink   *tasks.SinkBinding
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
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

	isTerminal := func() bool { return false }
	if f, ok := opts.Output.(*os.File); ok {
		isTerminal = func() bool { return term.IsTerminal(int(f.Fd())) }
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    DefaultPalette(),
		isTerminal: isTerminal,
		db:         opts.DB,
		source:     opts.Source,
		sink:       opts.Sink,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, userCommand, credentialsCommand, migrateCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration named by --config and applies --verbose.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	if path == "" {
		return ctx, nil
	}
	r.configPath = path

	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return ctx, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// open prepares the database and the engine.
func (r *Runner) open() error {
	if r.engine != nil {
		return nil
	}

	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
	} else if err := shared.RunMigrations(r.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.users = repositories.NewUserRepository(r.db)
	r.credentials = repositories.NewCredentialRepository(r.db)
	r.migrations = repositories.NewMigrationRepository(r.db)
	r.logs = repositories.NewMigrationLogRepository(r.db)

	r.secrets = secrets.NewStore(r.credentials, r.logger,
		secrets.WithOAuthConfig(shared.SinkGoogleDrive, services.GoogleOAuthConfig(r.config.Credentials.Google)),
	)

	r.engine = tasks.NewMigrationEngine(
		r.migrations,
		r.secrets,
		r.sourceBinding(),
		r.sinkBinding(),
		r.config.Engine,
		r.logger,
		tasks.WithItemLogger(r.logs),
	)
	return nil
}

// Close releases the token cache and the database handle.
func (r *Runner) Close() error {
	if r.secrets != nil {
		r.secrets.Close()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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
	r.writePlain("%v\n", r.palette.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}
