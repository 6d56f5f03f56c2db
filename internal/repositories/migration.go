package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
)

const migrationColumns = `
	id, sequence, user_id, source_service, sink_service, status,
	total_items, transferred_items, failed_items, total_estimated, next_offset,
	container_id, error_message, started_at, completed_at,
	created_at, updated_at, deleted_at
`

// MigrationRepository implements models.Repository[*models.Migration].
//
// Handles migration CRUD with soft delete support, status-based queries and conditional updates.
type MigrationRepository struct {
	db *sql.DB
}

// NewMigrationRepository creates a new MigrationRepository with the given database connection
func NewMigrationRepository(db *sql.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// Create inserts a new migration into the database with generated ID and sequence
func (r *MigrationRepository) Create(migration *models.Migration) error {
	sequence, err := NextSequence(r.db, "migrations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	migration.SetID(shared.GenerateID())
	migration.SetSequence(sequence)

	if err := migration.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO migrations (` + migrationColumns + `) VALUES (` + placeholders(18) + `)`

	_, err = r.db.Exec(query,
		migration.ID(),
		sequence,
		migration.UserID(),
		migration.SourceService(),
		migration.SinkService(),
		string(migration.Status()),
		migration.TotalItems(),
		migration.TransferredItems(),
		migration.FailedItems(),
		migration.TotalEstimated(),
		migration.NextOffset(),
		nullString(migration.ContainerID()),
		nullString(migration.ErrorMessage()),
		nullTime(migration.StartedAt()),
		nullTime(migration.CompletedAt()),
		migration.CreatedAt(),
		migration.UpdatedAt(),
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to insert migration: %w", err)
	}

	return nil
}

// Get retrieves a migration by ID, excluding soft-deleted migrations.
//
// Returns an error wrapping [shared.ErrMigrationNotFound] when absent.
func (r *MigrationRepository) Get(id string) (*models.Migration, error) {
	query := `SELECT ` + migrationColumns + ` FROM migrations WHERE id = ? AND deleted_at IS NULL`

	migration, err := r.scan(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrMigrationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return migration, nil
}

// Update writes every mutable field of the migration unconditionally.
func (r *MigrationRepository) Update(migration *models.Migration) error {
	ok, err := r.update(migration, nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrMigrationNotFound, migration.ID())
	}
	return nil
}

// UpdateIf writes the migration only if its stored status is one of expected.
//
// It reports false, without error, when the stored status no longer matches (or the row is gone).
// The check and the write happen in one statement.
func (r *MigrationRepository) UpdateIf(migration *models.Migration, expected ...models.Status) (bool, error) {
	if len(expected) == 0 {
		return false, fmt.Errorf("%w: at least one expected status is required", shared.ErrInvalidArgument)
	}
	return r.update(migration, expected)
}

func (r *MigrationRepository) update(migration *models.Migration, expected []models.Status) (bool, error) {
	if err := migration.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()

	query := `
		UPDATE migrations
		SET status = ?, total_items = ?, transferred_items = ?, failed_items = ?,
			total_estimated = ?, next_offset = ?, container_id = ?, error_message = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	args := []any{
		string(migration.Status()),
		migration.TotalItems(),
		migration.TransferredItems(),
		migration.FailedItems(),
		migration.TotalEstimated(),
		migration.NextOffset(),
		nullString(migration.ContainerID()),
		nullString(migration.ErrorMessage()),
		nullTime(migration.StartedAt()),
		nullTime(migration.CompletedAt()),
		now,
		migration.ID(),
	}

	if len(expected) > 0 {
		query += " AND status IN (" + placeholders(len(expected)) + ")"
		for _, s := range expected {
			args = append(args, string(s))
		}
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update migration: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	migration.SetUpdatedAt(now)
	return true, nil
}

// Delete soft-deletes a migration by ID
func (r *MigrationRepository) Delete(id string) error {
	return softDelete(r.db, "migrations", id)
}

// List retrieves migrations matching the given criteria, newest first, excluding soft-deleted migrations.
//
// Supported criteria: "user_id" (string), "status" (string or [models.Status]),
// "statuses" ([]models.Status), "limit" and "offset" (int).
func (r *MigrationRepository) List(criteria map[string]any) ([]*models.Migration, error) {
	query := `SELECT ` + migrationColumns + ` FROM migrations WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	statuses, _ := criteria["statuses"].([]models.Status)
	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			statuses = append(statuses, models.Status(status))
		}
	case models.Status:
		statuses = append(statuses, status)
	}
	if len(statuses) > 0 {
		query += " AND status IN (" + placeholders(len(statuses)) + ")"
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset, ok := criteria["offset"].(int); ok && offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var migrations []*models.Migration
	for rows.Next() {
		migration, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, migration)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return migrations, nil
}

// scan hydrates a [models.Migration] from a row selected with migrationColumns.
// [sql.ErrNoRows] is returned unwrapped.
func (r *MigrationRepository) scan(row scanner) (*models.Migration, error) {
	var (
		id               string
		sequence         int
		userID           string
		sourceService    string
		sinkService      string
		status           string
		totalItems       int
		transferredItems int
		failedItems      int
		totalEstimated   bool
		nextOffset       int
		containerID      sql.NullString
		errorMessage     sql.NullString
		startedAt        sql.NullTime
		completedAt      sql.NullTime
		createdAt        time.Time
		updatedAt        time.Time
		deletedAt        sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &userID, &sourceService, &sinkService, &status,
		&totalItems, &transferredItems, &failedItems, &totalEstimated, &nextOffset,
		&containerID, &errorMessage, &startedAt, &completedAt,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration: %w", err)
	}

	migration := models.NewMigration(sequence, userID, sourceService, sinkService)
	migration.SetID(id)
	migration.SetCreatedAt(createdAt)
	migration.SetUpdatedAt(updatedAt)
	migration.SetStatus(models.Status(status))
	migration.SetTotalItems(totalItems)
	migration.SetTransferredItems(transferredItems)
	migration.SetFailedItems(failedItems)
	migration.SetTotalEstimated(totalEstimated)
	migration.SetNextOffset(nextOffset)
	migration.SetContainerID(containerID.String)
	migration.SetErrorMessage(errorMessage.String)
	migration.SetStartedAt(timePtr(startedAt))
	migration.SetCompletedAt(timePtr(completedAt))
	migration.SetDeletedAt(timePtr(deletedAt))

	return migration, nil
}
