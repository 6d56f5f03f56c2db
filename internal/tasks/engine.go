package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/services"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPageSize     = 50
	defaultPersistEvery = 10

	ReasonPaused  = "paused"
	ReasonYielded = "yielded"
)

// OutcomeKind classifies how a run ended.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeInterrupted
	OutcomeCancelled
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return ""
	}
}

// Outcome is the result of [Engine.Run].
//
// Reason is [ReasonPaused] or [ReasonYielded] for interrupted runs and the failure message for failed ones.
type Outcome struct {
	Kind     OutcomeKind
	Reason   string
	Progress *models.Progress
}

func (o *Outcome) String() string {
	if o.Reason == "" {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s (%s)", o.Kind, o.Reason)
}

// Yielded reports a run that stopped for its context and should be scheduled again.
func (o *Outcome) Yielded() bool {
	return o.Kind == OutcomeInterrupted && o.Reason == ReasonYielded
}

// Engine defines the operations on migrations.
type Engine interface {
	// CreateMigration records a pending migration. Both credentials must already exist.
	CreateMigration(ctx context.Context, userID string) (*models.Migration, error)

	// Run executes (or continues) a migration until it completes, is interrupted, cancelled or fails.
	Run(ctx context.Context, migrationID, userID string, progress chan<- ProgressUpdate) (*Outcome, error)

	// Pause, Resume and Cancel report false when the transition does not apply.
	Pause(ctx context.Context, migrationID, userID string) (bool, error)
	Resume(ctx context.Context, migrationID, userID string) (bool, error)
	Cancel(ctx context.Context, migrationID, userID string) (bool, error)

	// Fail marks a migration failed without an ownership check.
	Fail(ctx context.Context, migrationID, reason string) (bool, error)

	GetProgress(ctx context.Context, migrationID, userID string) (*models.Progress, error)
	GetMigration(ctx context.Context, migrationID, userID string) (*models.Migration, error)
	ListMigrations(ctx context.Context, userID string, status models.Status) ([]*models.Migration, error)
}

// MigrationStore persists migration records. See repositories.MigrationRepository.
type MigrationStore interface {
	Create(migration *models.Migration) error
	Get(id string) (*models.Migration, error)
	UpdateIf(migration *models.Migration, expected ...models.Status) (bool, error)
	List(criteria map[string]any) ([]*models.Migration, error)
}

// TokenStore resolves service tokens. See secrets.Store.
type TokenStore interface {
	GetValidToken(ctx context.Context, userID, service string) (*oauth2.Token, error)
	Refresh(ctx context.Context, userID, service string) (*oauth2.Token, error)
	Has(ctx context.Context, userID, service string) (bool, error)
}

// ItemLogger records processed items. Failures are logged and otherwise ignored.
type ItemLogger interface {
	LogItem(migrationID string, item models.TransferItem) error
}

// SourceBinding names the source service and builds its adapter.
type SourceBinding struct {
	Service string
	New     services.SourceFactory
}

// SinkBinding names the sink service and builds its adapter.
type SinkBinding struct {
	Service string
	New     services.SinkFactory
}

// MigrationEngine implements [Engine].
type MigrationEngine struct {
	migrations MigrationStore
	tokens     TokenStore
	source     SourceBinding
	sink       SinkBinding
	items      ItemLogger
	cfg        shared.EngineConfig
	logger     *log.Logger
	now        func() time.Time
	runs       singleflight.Group
}

// EngineOption configures a [MigrationEngine].
type EngineOption func(*MigrationEngine)

// WithItemLogger records every processed item through l.
func WithItemLogger(l ItemLogger) EngineOption {
	return func(e *MigrationEngine) { e.items = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *MigrationEngine) { e.now = now }
}

// NewMigrationEngine creates a new MigrationEngine.
func NewMigrationEngine(
	migrations MigrationStore,
	tokens TokenStore,
	source SourceBinding,
	sink SinkBinding,
	cfg shared.EngineConfig,
	logger *log.Logger,
	opts ...EngineOption,
) *MigrationEngine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PersistEvery <= 0 {
		cfg.PersistEvery = defaultPersistEvery
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	e := &MigrationEngine{
		migrations: migrations,
		tokens:     tokens,
		source:     source,
		sink:       sink,
		cfg:        cfg,
		logger:     shared.WithLogger(logger, "component", "engine"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func (e *MigrationEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// CreateMigration checks that the user connected both services and records a pending migration.
func (e *MigrationEngine) CreateMigration(ctx context.Context, userID string) (*models.Migration, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrMissingArgument)
	}

	for _, service := range []string{e.source.Service, e.sink.Service} {
		ok, err := e.tokens.Has(ctx, userID, service)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s credentials: %w", service, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: connect %s first", shared.ErrMissingCredentials, service)
		}
	}

	m := models.NewMigration(0, userID, e.source.Service, e.sink.Service)
	if err := e.migrations.Create(m); err != nil {
		return nil, fmt.Errorf("failed to create migration: %w", err)
	}

	e.logger.Info("migration created", "migration", m.ID(), "user", userID)
	return m, nil
}

// Run executes the migration. Concurrent calls for the same migration share one execution.
//
// Per-item failures are counted, not returned. Fatal problems (credentials, verification) end the run
// with an [OutcomeFailed] and a nil error. Errors wrapping [shared.ErrRunTransient] are worth retrying.
func (e *MigrationEngine) Run(ctx context.Context, migrationID, userID string, progress chan<- ProgressUpdate) (*Outcome, error) {
	if _, err := e.load(migrationID, userID); err != nil {
		if errors.Is(err, shared.ErrMigrationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrRunTransient, err)
	}

	v, err, joined := e.runs.Do(migrationID, func() (any, error) {
		return e.run(ctx, migrationID, progress)
	})
	if joined {
		e.logger.Debug("joined running migration", "migration", migrationID)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Outcome), nil
}

func (e *MigrationEngine) run(ctx context.Context, id string, progress chan<- ProgressUpdate) (*Outcome, error) {
	m, err := e.migrations.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRunTransient, err)
	}

	switch m.Status() {
	case models.StatusCompleted:
		return e.outcome(m, OutcomeCompleted, ""), nil
	case models.StatusFailed:
		return e.outcome(m, OutcomeFailed, m.ErrorMessage()), nil
	case models.StatusPaused:
		return e.outcome(m, OutcomeInterrupted, ReasonPaused), nil
	}

	logger := shared.WithLogger(e.logger, "migration", id)
	logger.Info("run started", "status", m.Status(), "offset", m.NextOffset())

	r := &run{e: e, m: m, logger: logger, progress: progress}
	outcome, err := r.execute(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		return nil, err
	}

	logger.Info("run finished", "outcome", outcome, "transferred", m.TransferredItems(), "failed", m.FailedItems())
	e.sendProgress(progress, finishUpdate(m, outcome))
	return outcome, nil
}

func (e *MigrationEngine) outcome(m *models.Migration, kind OutcomeKind, reason string) *Outcome {
	return &Outcome{Kind: kind, Reason: reason, Progress: m.Progress()}
}

// Pause stops an in_progress migration at its next checkpoint.
func (e *MigrationEngine) Pause(ctx context.Context, migrationID, userID string) (bool, error) {
	return e.transition(migrationID, userID, func(m *models.Migration) error {
		return m.Pause()
	})
}

// Resume re-arms a paused migration. The caller schedules the next run.
func (e *MigrationEngine) Resume(ctx context.Context, migrationID, userID string) (bool, error) {
	return e.transition(migrationID, userID, func(m *models.Migration) error {
		return m.Resume()
	})
}

// Cancel fails a non-terminal migration with [models.CancelledMessage].
func (e *MigrationEngine) Cancel(ctx context.Context, migrationID, userID string) (bool, error) {
	return e.transition(migrationID, userID, func(m *models.Migration) error {
		return m.Cancel(e.now())
	})
}

// Fail marks a non-terminal migration failed with reason. Used when retries are exhausted.
func (e *MigrationEngine) Fail(ctx context.Context, migrationID, reason string) (bool, error) {
	return e.transition(migrationID, "", func(m *models.Migration) error {
		return m.Fail(reason, e.now())
	})
}

// transition applies apply to the stored migration and writes it only if the status did not change
// in between. A lost race is retried against the new status.
func (e *MigrationEngine) transition(id, userID string, apply func(*models.Migration) error) (bool, error) {
	const attempts = 3

	for range attempts {
		var (
			m   *models.Migration
			err error
		)
		if userID == "" {
			m, err = e.migrations.Get(id)
		} else {
			m, err = e.load(id, userID)
		}
		if err != nil {
			return false, err
		}

		from := m.Status()
		if err := apply(m); err != nil {
			if errors.Is(err, shared.ErrInvalidTransition) {
				return false, nil
			}
			return false, err
		}

		ok, err := e.migrations.UpdateIf(m, from)
		if err != nil {
			return false, err
		}
		if ok {
			e.logger.Info("migration status changed", "migration", id, "from", from, "to", m.Status())
			return true, nil
		}
	}
	return false, nil
}

// GetProgress returns the stored counters of a migration.
func (e *MigrationEngine) GetProgress(ctx context.Context, migrationID, userID string) (*models.Progress, error) {
	m, err := e.load(migrationID, userID)
	if err != nil {
		return nil, err
	}
	return m.Progress(), nil
}

// GetMigration returns a migration owned by userID.
func (e *MigrationEngine) GetMigration(ctx context.Context, migrationID, userID string) (*models.Migration, error) {
	return e.load(migrationID, userID)
}

// ListMigrations returns the user's migrations, newest first. An empty status lists all.
func (e *MigrationEngine) ListMigrations(ctx context.Context, userID string, status models.Status) ([]*models.Migration, error) {
	criteria := map[string]any{"user_id": userID}
	if status != "" {
		criteria["status"] = status
	}
	return e.migrations.List(criteria)
}

// load fetches a migration and hides other users' migrations behind [shared.ErrMigrationNotFound].
func (e *MigrationEngine) load(id, userID string) (*models.Migration, error) {
	m, err := e.migrations.Get(id)
	if err != nil {
		return nil, err
	}
	if !m.OwnedBy(userID) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMigrationNotFound, id)
	}
	return m, nil
}
