package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/services"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

// run holds the state of one execution of a migration.
//
// m is the in-memory copy of the record. Every write is conditional on the stored status, so a pause or
// cancel issued elsewhere is noticed on the next write or checkpoint.
type run struct {
	e        *MigrationEngine
	m        *models.Migration
	logger   *log.Logger
	progress chan<- ProgressUpdate

	src     services.Source
	sink    services.Sink
	started bool
	unsaved int
}

func (r *run) execute(ctx context.Context) (*Outcome, error) {
	e := r.e
	e.sendProgress(r.progress, connectUpdate(e.source.Service, e.sink.Service))

	if err := r.connect(ctx); err != nil {
		switch {
		case ctx.Err() != nil:
			return r.yield()
		case shared.IsFatal(err):
			return r.fail(err.Error())
		default:
			return nil, fmt.Errorf("%w: %w", shared.ErrRunTransient, err)
		}
	}

	from := r.m.Status()
	if err := r.m.Start(e.now()); err != nil {
		return nil, err
	}
	ok, err := e.migrations.UpdateIf(r.m, from)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to start migration: %w", shared.ErrRunTransient, err)
	}
	if !ok {
		if out, err := r.reload(); out != nil || err != nil {
			return out, err
		}
	}
	r.started = true

	r.estimateTotal(ctx)
	r.ensureContainer(ctx)
	if out, err := r.save(); out != nil || err != nil {
		return out, err
	}

	return r.transferAll(ctx)
}

// connect resolves both tokens, builds the adapters and verifies them.
func (r *run) connect(ctx context.Context) error {
	e := r.e
	userID := r.m.UserID()

	srcToken, err := e.tokens.GetValidToken(ctx, userID, e.source.Service)
	if err != nil {
		return fmt.Errorf("failed to resolve %s credentials: %w", e.source.Service, err)
	}
	src, err := e.source.New(ctx, userID, srcToken)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", e.source.Service, err)
	}
	r.src = services.NewRefreshingSource(src, func(ctx context.Context) (*oauth2.Token, error) {
		return e.tokens.Refresh(ctx, userID, e.source.Service)
	})

	sinkToken, err := e.tokens.GetValidToken(ctx, userID, e.sink.Service)
	if err != nil {
		return fmt.Errorf("failed to resolve %s credentials: %w", e.sink.Service, err)
	}
	sink, err := e.sink.New(ctx, userID, sinkToken)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", e.sink.Service, err)
	}
	r.sink = services.NewRefreshingSink(sink, func(ctx context.Context) (*oauth2.Token, error) {
		return e.tokens.Refresh(ctx, userID, e.sink.Service)
	})

	if !r.src.VerifyCredentials(ctx) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s rejected the stored credentials", shared.ErrInvalidCredentials, r.src.Name())
	}
	if !r.sink.VerifyConnection(ctx) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s rejected the stored credentials", shared.ErrInvalidCredentials, r.sink.Name())
	}
	return nil
}

// estimateTotal sets the total from the source count, or a provisional total when the count is unknown.
func (r *run) estimateTotal(ctx context.Context) {
	if count := r.src.CountItems(ctx); count > 0 {
		r.m.SetCountedTotal(max(count, r.m.ProcessedItems()))
	} else {
		r.m.ReviseTotal(max(1, r.m.TotalItems()), true)
	}
	r.e.sendProgress(r.progress, countUpdate(r.m.TotalItems(), r.m.TotalEstimated()))
}

// ensureContainer reuses the container of a previous run or creates one. Without a container
// items go to the sink's default location.
func (r *run) ensureContainer(ctx context.Context) {
	if r.m.ContainerID() != "" {
		r.e.sendProgress(r.progress, containerUpdate("", true))
		return
	}

	name := r.m.ContainerName(r.e.cfg.ContainerPrefix)
	id, err := r.sink.CreateContainer(ctx, name)
	if err != nil {
		r.logger.Warn("failed to create folder, using default location", "name", name, "error", err)
		return
	}
	r.m.SetContainerID(id)
	r.e.sendProgress(r.progress, containerUpdate(name, false))
}

func (r *run) transferAll(ctx context.Context) (*Outcome, error) {
	pageSize := r.e.cfg.PageSize
	offset := r.m.NextOffset()

	for {
		if out, err := r.checkpoint(ctx); out != nil || err != nil {
			return out, err
		}

		page, err := r.src.ListItems(ctx, pageSize, offset)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return r.yield()
			case errors.Is(err, shared.ErrInvalidCredentials):
				return r.fail(fmt.Sprintf("credentials rejected while listing items: %v", err))
			}
			if out, serr := r.save(); out != nil || serr != nil {
				return out, serr
			}
			return nil, fmt.Errorf("%w: failed to list items at offset %d: %w", shared.ErrRunTransient, offset, err)
		}
		if len(page) == 0 {
			break
		}

		if r.m.TotalEstimated() {
			if len(page) == pageSize {
				r.m.ReviseTotal(offset+len(page)+pageSize, true)
			} else {
				r.m.ReviseTotal(offset+len(page), true)
			}
		}

		r.logger.Debug("page listed", "offset", offset, "count", len(page))
		for i, item := range page {
			if out, err := r.checkpoint(ctx); out != nil || err != nil {
				return out, err
			}

			index := offset + i
			done, err := r.transfer(ctx, item, index)
			switch {
			case err == nil:
				r.m.RecordTransferred()
			case ctx.Err() != nil:
				return r.yield()
			case errors.Is(err, shared.ErrInvalidCredentials):
				r.logItem(done)
				return r.fail(fmt.Sprintf("credentials rejected while transferring %s: %v", done.DisplayName, err))
			default:
				r.m.RecordFailed()
				r.logger.Warn("item failed", "item", done.SourceID, "name", done.DisplayName, "error", err)
			}

			r.m.SetNextOffset(index + 1)
			r.logItem(done)
			r.e.sendProgress(r.progress, itemUpdate(r.m, done))

			r.unsaved++
			if r.unsaved >= r.e.cfg.PersistEvery {
				if out, err := r.save(); out != nil || err != nil {
					return out, err
				}
			}
		}

		offset += len(page)
		if out, err := r.save(); out != nil || err != nil {
			return out, err
		}
		if len(page) < pageSize {
			break
		}
	}

	return r.complete()
}

// transfer moves one item: metadata (best-effort), download, MIME resolution, upload.
func (r *run) transfer(ctx context.Context, item models.TransferItem, index int) (models.TransferItem, error) {
	item.Status = models.ItemDownloading
	if meta, err := r.src.GetMetadata(ctx, item.SourceID); err != nil {
		r.logger.Debug("metadata unavailable", "item", item.SourceID, "error", err)
	} else {
		item = item.Merge(meta)
	}
	if item.DisplayName == "" {
		item.DisplayName = fmt.Sprintf("photo_%d.jpg", index)
	}

	data, err := r.src.Download(ctx, item.SourceID)
	if err != nil {
		return failItem(item, err), err
	}
	item.MimeType = shared.ResolveMimeType(item.MimeType, item.DisplayName, data)
	if item.SizeBytes <= 0 {
		item.SizeBytes = int64(len(data))
	}

	item.Status = models.ItemUploading
	remoteID, err := r.sink.PutItem(ctx, data, item.DisplayName, item.MimeType, r.m.ContainerID())
	if err != nil {
		return failItem(item, err), err
	}

	item.RemoteID = remoteID
	item.Status = models.ItemCompleted
	return item, nil
}

func failItem(item models.TransferItem, err error) models.TransferItem {
	item.Status = models.ItemFailed
	item.ErrorMessage = err.Error()
	return item
}

func (r *run) logItem(item models.TransferItem) {
	if r.e.items == nil {
		return
	}
	if err := r.e.items.LogItem(r.m.ID(), item); err != nil {
		r.logger.Warn("failed to log item", "item", item.SourceID, "error", err)
	}
}

// checkpoint stops the run when the stored status left in_progress or ctx is done.
func (r *run) checkpoint(ctx context.Context) (*Outcome, error) {
	stored, err := r.e.migrations.Get(r.m.ID())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reload migration: %w", shared.ErrRunTransient, err)
	}
	if stored.Status() != models.StatusInProgress {
		return r.settle(stored)
	}

	if ctx.Err() != nil {
		return r.yield()
	}
	return nil, nil
}

// save persists counters and cursor while the migration is still in_progress.
func (r *run) save() (*Outcome, error) {
	ok, err := r.e.migrations.UpdateIf(r.m, models.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to save progress: %w", shared.ErrRunTransient, err)
	}
	r.unsaved = 0
	if !ok {
		return r.reload()
	}
	return nil, nil
}

// yield saves and hands the migration back for a later run. The status stays in_progress.
func (r *run) yield() (*Outcome, error) {
	if r.started {
		if out, err := r.save(); out != nil || err != nil {
			return out, err
		}
	}
	r.logger.Info("run yielded", "offset", r.m.NextOffset())
	return r.e.outcome(r.m, OutcomeInterrupted, ReasonYielded), nil
}

// fail records a migration-fatal error.
func (r *run) fail(reason string) (*Outcome, error) {
	from := r.m.Status()
	if err := r.m.Fail(reason, r.e.now()); err != nil {
		return r.reload()
	}
	ok, err := r.e.migrations.UpdateIf(r.m, from)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to record failure: %w", shared.ErrRunTransient, err)
	}
	if !ok {
		return r.reload()
	}
	r.logger.Error("migration failed", "reason", reason)
	return r.e.outcome(r.m, OutcomeFailed, reason), nil
}

func (r *run) complete() (*Outcome, error) {
	if err := r.m.Complete(r.e.now()); err != nil {
		return r.reload()
	}
	ok, err := r.e.migrations.UpdateIf(r.m, models.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to complete migration: %w", shared.ErrRunTransient, err)
	}
	if !ok {
		return r.reload()
	}
	return r.e.outcome(r.m, OutcomeCompleted, ""), nil
}

func (r *run) reload() (*Outcome, error) {
	stored, err := r.e.migrations.Get(r.m.ID())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reload migration: %w", shared.ErrRunTransient, err)
	}
	return r.settle(stored)
}

// settle resolves a status change made outside the run.
//
// Paused and failed records keep the run's counters. A record that went back to pending (paused and
// resumed between two checkpoints) is claimed again and the run continues with a nil outcome.
func (r *run) settle(stored *models.Migration) (*Outcome, error) {
	switch stored.Status() {
	case models.StatusPaused:
		r.carry(stored)
		r.logger.Info("run paused", "offset", r.m.NextOffset())
		return r.e.outcome(r.m, OutcomeInterrupted, ReasonPaused), nil
	case models.StatusFailed:
		r.carry(stored)
		r.logger.Info("run cancelled", "reason", stored.ErrorMessage())
		return r.e.outcome(r.m, OutcomeCancelled, stored.ErrorMessage()), nil
	case models.StatusCompleted:
		r.m = stored
		return r.e.outcome(r.m, OutcomeCompleted, ""), nil
	case models.StatusPending:
		r.copyCounters(stored)
		if err := stored.Start(r.e.now()); err != nil {
			return nil, err
		}
		ok, err := r.e.migrations.UpdateIf(stored, models.StatusPending)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to restart migration: %w", shared.ErrRunTransient, err)
		}
		r.m = stored
		if !ok {
			return r.reload()
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: migration %s changed concurrently", shared.ErrRunTransient, stored.ID())
	}
}

// carry writes the run's counters onto the stored record without touching its status.
func (r *run) carry(stored *models.Migration) {
	r.copyCounters(stored)
	if _, err := r.e.migrations.UpdateIf(stored, stored.Status()); err != nil {
		r.logger.Warn("failed to save counters", "error", err)
	}
	r.m = stored
}

func (r *run) copyCounters(stored *models.Migration) {
	stored.SetTransferredItems(r.m.TransferredItems())
	stored.SetFailedItems(r.m.FailedItems())
	stored.ReviseTotal(r.m.TotalItems(), r.m.TotalEstimated())
	stored.SetNextOffset(r.m.NextOffset())
	if r.m.ContainerID() != "" {
		stored.SetContainerID(r.m.ContainerID())
	}
}
