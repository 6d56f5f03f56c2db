package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
)

const (
	defaultSweepSchedule = "@every 5m"
	defaultStaleAfter    = 20 * time.Minute
)

// MigrationLister finds migrations by criteria. See repositories.MigrationRepository.
type MigrationLister interface {
	List(criteria map[string]any) ([]*models.Migration, error)
}

// Enqueuer accepts runs. See [Queue].
type Enqueuer interface {
	Enqueue(migrationID, userID string) error
}

// Sweeper re-queues migrations that have no run in flight.
type Sweeper struct {
	lister     MigrationLister
	queue      Enqueuer
	staleAfter time.Duration
	logger     *log.Logger
	now        func() time.Time
	cron       *cron.Cron
}

// NewSweeper creates a sweeper scheduled with cfg.SweepSchedule (standard cron or "@every" syntax).
func NewSweeper(lister MigrationLister, queue Enqueuer, cfg shared.DispatchConfig, logger *log.Logger) (*Sweeper, error) {
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = defaultSweepSchedule
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Sweeper{
		lister:     lister,
		queue:      queue,
		staleAfter: cfg.StaleAfter,
		logger:     shared.WithLogger(logger, "component", "sweeper"),
		now:        time.Now,
		cron:       cron.New(),
	}
	if _, err := s.cron.AddFunc(cfg.SweepSchedule, func() { s.Sweep() }); err != nil {
		return nil, fmt.Errorf("%w: sweep schedule %q: %v", shared.ErrInvalidConfig, cfg.SweepSchedule, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule. The returned context is done once a running sweep finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep queues every pending migration and every in_progress migration not updated within the
// stale window. It returns the number of migrations queued.
func (s *Sweeper) Sweep() int {
	migrations, err := s.lister.List(map[string]any{
		"statuses": []models.Status{models.StatusPending, models.StatusInProgress},
	})
	if err != nil {
		s.logger.Error("failed to list migrations", "error", err)
		return 0
	}

	cutoff := s.now().Add(-s.staleAfter)
	queued := 0
	for _, m := range migrations {
		if m.Status() == models.StatusInProgress && m.UpdatedAt().After(cutoff) {
			continue
		}

		err := s.queue.Enqueue(m.ID(), m.UserID())
		switch {
		case err == nil:
			queued++
		case errors.Is(err, shared.ErrAlreadyQueued):
		default:
			s.logger.Warn("failed to queue migration", "migration", m.ID(), "error", err)
		}
	}

	if queued > 0 {
		s.logger.Info("sweep queued migrations", "count", queued)
	}
	return queued
}
