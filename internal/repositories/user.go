package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
)

// UserRepository implements [models.Repository] for user [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	user.SetID(shared.GenerateID())
	user.SetSequence(sequence)

	query := `INSERT INTO users (id, sequence, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.Exec(query, user.ID(), sequence, user.Email(), user.Name(), user.CreatedAt(), user.UpdatedAt()); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	return r.getBy("id", id)
}

// GetByEmail retrieves a user by email address, excluding soft-deleted users
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	return r.getBy("email", strings.TrimSpace(email))
}

// Resolve accepts either a user ID or an email address.
func (r *UserRepository) Resolve(ref string) (*models.User, error) {
	if strings.Contains(ref, "@") {
		return r.GetByEmail(ref)
	}
	return r.Get(ref)
}

func (r *UserRepository) getBy(column, value string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, sequence, email, name, created_at, updated_at, deleted_at
		FROM users
		WHERE %s = ? AND deleted_at IS NULL
	`, column)

	user, err := r.scan(r.db.QueryRow(query, value))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, value)
	}
	return user, err
}

// Update modifies an existing user's name
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	result, err := r.db.Exec(`UPDATE users SET name = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, user.Name(), now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := expectAffected(result, "users", user.ID()); err != nil {
		return err
	}

	user.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	return softDelete(r.db, "users", id)
}

// List retrieves all users, optionally filtered by "email".
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT id, sequence, email, name, created_at, updated_at, deleted_at FROM users WHERE deleted_at IS NULL`
	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return users, nil
}

func (r *UserRepository) scan(row scanner) (*models.User, error) {
	var (
		id        string
		sequence  int
		email     string
		name      sql.NullString
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &email, &name, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user := models.NewUser(sequence, email, name.String)
	user.SetID(id)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	user.SetDeletedAt(timePtr(deletedAt))
	return user, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
