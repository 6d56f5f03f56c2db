package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
)

const migrationLogColumns = `
	id, sequence, migration_id, source_id, file_name, file_size, mime_type,
	status, error_message, remote_id, created_at, updated_at, deleted_at
`

// MigrationLogRepository implements [models.Repository] for [models.MigrationLog] persistence.
type MigrationLogRepository struct {
	db *sql.DB
}

// NewMigrationLogRepository creates a new [MigrationLogRepository] with the given database connection
func NewMigrationLogRepository(db *sql.DB) *MigrationLogRepository {
	return &MigrationLogRepository{db: db}
}

// Create inserts a log entry with generated ID and sequence
func (r *MigrationLogRepository) Create(log *models.MigrationLog) error {
	if err := log.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "migration_logs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	log.SetID(shared.GenerateID())
	log.SetSequence(sequence)

	item := log.Item()
	query := `INSERT INTO migration_logs (` + migrationLogColumns + `) VALUES (` + placeholders(13) + `)`
	_, err = r.db.Exec(query,
		log.ID(),
		sequence,
		log.MigrationID(),
		item.SourceID,
		nullString(item.DisplayName),
		item.SizeBytes,
		nullString(item.MimeType),
		string(item.Status),
		nullString(item.ErrorMessage),
		nullString(item.RemoteID),
		log.CreatedAt(),
		log.UpdatedAt(),
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to insert migration log: %w", err)
	}
	return nil
}

// Get retrieves a log entry by ID
func (r *MigrationLogRepository) Get(id string) (*models.MigrationLog, error) {
	query := `SELECT ` + migrationLogColumns + ` FROM migration_logs WHERE id = ? AND deleted_at IS NULL`
	log, err := r.scan(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: migration log %s", shared.ErrNotFound, id)
	}
	return log, err
}

// Update rewrites the item fields of a log entry
func (r *MigrationLogRepository) Update(log *models.MigrationLog) error {
	if err := log.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	item := log.Item()
	result, err := r.db.Exec(`
		UPDATE migration_logs
		SET file_name = ?, file_size = ?, mime_type = ?, status = ?, error_message = ?, remote_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`,
		nullString(item.DisplayName), item.SizeBytes, nullString(item.MimeType), string(item.Status),
		nullString(item.ErrorMessage), nullString(item.RemoteID), now, log.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update migration log: %w", err)
	}
	if err := expectAffected(result, "migration_logs", log.ID()); err != nil {
		return err
	}
	log.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a log entry by ID
func (r *MigrationLogRepository) Delete(id string) error {
	return softDelete(r.db, "migration_logs", id)
}

// List retrieves log entries in processing order, filtered by "migration_id" and "status".
func (r *MigrationLogRepository) List(criteria map[string]any) ([]*models.MigrationLog, error) {
	query := `SELECT ` + migrationLogColumns + ` FROM migration_logs WHERE deleted_at IS NULL`
	args := []any{}

	if migrationID, ok := criteria["migration_id"].(string); ok && migrationID != "" {
		query += " AND migration_id = ?"
		args = append(args, migrationID)
	}
	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.ItemStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.MigrationLog
	for rows.Next() {
		log, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return logs, nil
}

// LogItem records a processed item; it satisfies the engine's item logger.
func (r *MigrationLogRepository) LogItem(migrationID string, item models.TransferItem) error {
	return r.Create(models.NewMigrationLog(0, migrationID, item))
}

func (r *MigrationLogRepository) scan(row scanner) (*models.MigrationLog, error) {
	var (
		id           string
		sequence     int
		migrationID  string
		sourceID     string
		fileName     sql.NullString
		fileSize     int64
		mimeType     sql.NullString
		status       string
		errorMessage sql.NullString
		remoteID     sql.NullString
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &migrationID, &sourceID, &fileName, &fileSize, &mimeType,
		&status, &errorMessage, &remoteID, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration log: %w", err)
	}

	log := models.NewMigrationLog(sequence, migrationID, models.TransferItem{
		SourceID:     sourceID,
		DisplayName:  fileName.String,
		SizeBytes:    fileSize,
		MimeType:     mimeType.String,
		Status:       models.ItemStatus(status),
		ErrorMessage: errorMessage.String,
		RemoteID:     remoteID.String,
	})
	log.SetID(id)
	log.SetCreatedAt(createdAt)
	log.SetUpdatedAt(updatedAt)
	log.SetDeletedAt(timePtr(deletedAt))
	return log, nil
}
