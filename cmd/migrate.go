package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tiagowl/ImgMigrator/internal/formatter"
	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"github.com/tiagowl/ImgMigrator/internal/tasks"
	"github.com/urfave/cli/v3"
)

// migrationArgs opens the store and resolves --user and the id argument.
func (r *Runner) migrationArgs(cmd *cli.Command) (id, userID string, err error) {
	if err := r.open(); err != nil {
		return "", "", err
	}
	if userID, err = r.resolveUser(cmd); err != nil {
		return "", "", err
	}
	if id = cmd.StringArg("id"); id == "" {
		return "", "", fmt.Errorf("%w: migration ID is required", shared.ErrMissingArgument)
	}
	return id, userID, nil
}

// MigrateCreate records a pending migration for the user.
func (r *Runner) MigrateCreate(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	userID, err := r.resolveUser(cmd)
	if err != nil {
		return err
	}

	m, err := r.engine.CreateMigration(ctx, userID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(m.View(), true)
	}
	r.writePlain("✓ Created migration %s (%s → %s)\n", m.ID(), m.SourceService(), m.SinkService())
	return r.writePlain("Run it with: imgmigrator migrate run --user %s %s\n", cmd.String("user"), m.ID())
}

// MigrateRun executes a migration in the foreground until it ends or is interrupted.
//
// Ctrl-C stops the run at the next item; the migration stays resumable.
func (r *Runner) MigrateRun(ctx context.Context, cmd *cli.Command) error {
	id, userID, err := r.migrationArgs(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writePlainHeader("Photo Migration")

	updates := make(chan tasks.ProgressUpdate, 64)
	printer := newProgressPrinter(r.output, r.palette, r.isTerminal())
	done := make(chan struct{})
	go func() {
		printer.consume(updates)
		close(done)
	}()

	outcome, err := r.engine.Run(ctx, id, userID, updates)
	close(updates)
	<-done
	if err != nil {
		return err
	}

	return r.printOutcome(outcome)
}

func (r *Runner) printOutcome(outcome *tasks.Outcome) error {
	p := outcome.Progress
	switch outcome.Kind {
	case tasks.OutcomeCompleted:
		r.writePlain("%s\n", r.palette.OK("✓ Migration completed"))
	case tasks.OutcomeInterrupted:
		r.writePlain("%s\n", r.palette.Warn("⏸ Migration interrupted ("+outcome.Reason+")"))
		if p != nil && outcome.Reason == tasks.ReasonPaused {
			r.writePlain("Resume with: imgmigrator migrate resume --user <user> %s\n", p.MigrationID)
		} else if p != nil {
			r.writePlain("Continue with: imgmigrator migrate run --user <user> %s\n", p.MigrationID)
		}
	case tasks.OutcomeCancelled:
		r.writePlain("%s\n", r.palette.Warn("Migration cancelled"))
	case tasks.OutcomeFailed:
		r.writePlain("%s\n", r.palette.Err("✗ Migration failed: "+outcome.Reason))
	}
	if p != nil {
		r.printProgress(p)
	}
	return nil
}

func (r *Runner) printProgress(p *models.Progress) {
	total := fmt.Sprintf("%d", p.TotalItems)
	if p.Estimated {
		total = "~" + total
	}
	r.writePlain("  Status:      %s\n", r.palette.Status(p.Status))
	r.writePlain("  Transferred: %d / %s (%.1f%%)\n", p.TransferredItems, total, p.ProgressPercent)
	r.writePlain("  Failed:      %d\n", p.FailedItems)
	if p.ErrorMessage != "" {
		r.writePlain("  Error:       %s\n", p.ErrorMessage)
	}
}

// MigratePause pauses a running migration.
func (r *Runner) MigratePause(ctx context.Context, cmd *cli.Command) error {
	return r.transition(ctx, cmd, "pause")
}

// MigrateResume returns a paused migration to pending.
func (r *Runner) MigrateResume(ctx context.Context, cmd *cli.Command) error {
	return r.transition(ctx, cmd, "resume")
}

// MigrateCancel stops a migration for good.
func (r *Runner) MigrateCancel(ctx context.Context, cmd *cli.Command) error {
	return r.transition(ctx, cmd, "cancel")
}

func (r *Runner) transition(ctx context.Context, cmd *cli.Command, verb string) error {
	id, userID, err := r.migrationArgs(cmd)
	if err != nil {
		return err
	}

	apply := map[string]func(context.Context, string, string) (bool, error){
		"pause":  r.engine.Pause,
		"resume": r.engine.Resume,
		"cancel": r.engine.Cancel,
	}[verb]

	ok, err := apply(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: cannot %s migration %s", shared.ErrInvalidTransition, verb, id)
	}

	m, err := r.engine.GetMigration(ctx, id, userID)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Migration %s is now %s\n", id, r.palette.Status(m.Status()))
}

// MigrateStatus prints the progress of one migration.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	id, userID, err := r.migrationArgs(cmd)
	if err != nil {
		return err
	}

	p, err := r.engine.GetProgress(ctx, id, userID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(p, true)
	}

	r.writePlain("Migration %s\n", id)
	r.printProgress(p)
	return nil
}

// MigrateList prints the user's migrations, newest first.
func (r *Runner) MigrateList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}
	userID, err := r.resolveUser(cmd)
	if err != nil {
		return err
	}

	var status models.Status
	if s := cmd.String("status"); s != "" {
		if status, err = models.ParseStatus(s); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
		}
	}

	migrations, err := r.engine.ListMigrations(ctx, userID, status)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]models.MigrationView, 0, len(migrations))
		for _, m := range migrations {
			views = append(views, m.View())
		}
		return r.writeJSON(views, true)
	}

	if len(migrations) == 0 {
		return r.writePlain("No migrations found.\n")
	}
	for _, m := range migrations {
		r.writePlain("%s  %-12s %4d/%-4d %s  %s\n",
			m.ID(),
			r.palette.Status(m.Status()),
			m.TransferredItems(),
			m.TotalItems(),
			m.SinkService(),
			r.palette.Muted(m.CreatedAt().Format(time.DateTime)),
		)
	}
	return nil
}

// MigrateReport exports the item log of a migration.
func (r *Runner) MigrateReport(ctx context.Context, cmd *cli.Command) error {
	id, userID, err := r.migrationArgs(cmd)
	if err != nil {
		return err
	}

	m, err := r.engine.GetMigration(ctx, id, userID)
	if err != nil {
		return err
	}
	logs, err := r.logs.List(map[string]any{"migration_id": m.ID()})
	if err != nil {
		return fmt.Errorf("failed to load item log: %w", err)
	}
	report := formatter.NewReport(m, logs)

	output := cmd.String("output")
	switch format := cmd.String("format"); format {
	case "csv":
		result, err := formatter.WriteCSVExport(report, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Wrote %s\n", result.ItemsFile)
		return r.writePlain("✓ Wrote %s\n", result.SummaryFile)
	case "md", "markdown":
		path, err := formatter.WriteMarkdownExport(report, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", path)
	case "txt", "text":
		path, err := formatter.WriteTextExport(report, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", path)
	case "json":
		path, err := formatter.WriteJSONExport(report, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", path)
	default:
		return fmt.Errorf("%w: unknown format %q (use csv, md, txt or json)", shared.ErrInvalidFlag, format)
	}
}
