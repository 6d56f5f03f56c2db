package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tiagowl/ImgMigrator/internal/models"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"golang.org/x/oauth2"
)

const credentialColumns = `
	id, sequence, user_id, service, access_token, refresh_token, token_type,
	expires_at, created_at, updated_at, deleted_at
`

// CredentialRepository implements [models.Repository] for [models.Credential] persistence.
//
// At most one live credential exists per (user_id, service).
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create inserts a new credential with generated ID and sequence
func (r *CredentialRepository) Create(credential *models.Credential) error {
	sequence, err := NextSequence(r.db, "credentials")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	credential.SetID(shared.GenerateID())
	credential.SetSequence(sequence)

	if err := credential.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO credentials (` + credentialColumns + `) VALUES (` + placeholders(11) + `)`
	_, err = r.db.Exec(query,
		credential.ID(),
		sequence,
		credential.UserID(),
		credential.Service(),
		credential.AccessToken(),
		nullString(credential.RefreshToken()),
		nullString(credential.TokenType()),
		nullTime(credential.ExpiresAt()),
		credential.CreatedAt(),
		credential.UpdatedAt(),
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	return nil
}

// Get retrieves a credential by ID, excluding soft-deleted credentials
func (r *CredentialRepository) Get(id string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ? AND deleted_at IS NULL`
	credential, err := r.scan(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: credential %s", shared.ErrNotFound, id)
	}
	return credential, err
}

// GetByUserAndService retrieves the live credential for (userID, service).
func (r *CredentialRepository) GetByUserAndService(userID, service string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + `
		FROM credentials
		WHERE user_id = ? AND service = ? AND deleted_at IS NULL`
	credential, err := r.scan(r.db.QueryRow(query, userID, service))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s credential for user %s", shared.ErrNotFound, service, userID)
	}
	return credential, err
}

// Upsert stores token for (userID, service), replacing an existing credential's token.
func (r *CredentialRepository) Upsert(userID, service string, token *oauth2.Token) (*models.Credential, error) {
	existing, err := r.GetByUserAndService(userID, service)
	switch {
	case err == nil:
		existing.SetToken(token)
		if err := r.Update(existing); err != nil {
			return nil, err
		}
		return existing, nil
	case isNotFound(err):
		credential := models.NewCredential(0, userID, service, token)
		if err := r.Create(credential); err != nil {
			return nil, err
		}
		return credential, nil
	default:
		return nil, err
	}
}

// Update replaces the token fields of an existing credential
func (r *CredentialRepository) Update(credential *models.Credential) error {
	if err := credential.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	query := `
		UPDATE credentials
		SET access_token = ?, refresh_token = ?, token_type = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.Exec(query,
		credential.AccessToken(),
		nullString(credential.RefreshToken()),
		nullString(credential.TokenType()),
		nullTime(credential.ExpiresAt()),
		now,
		credential.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if err := expectAffected(result, "credentials", credential.ID()); err != nil {
		return err
	}

	credential.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a credential by ID
func (r *CredentialRepository) Delete(id string) error {
	return softDelete(r.db, "credentials", id)
}

// List retrieves credentials filtered by "user_id" and "service".
func (r *CredentialRepository) List(criteria map[string]any) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if service, ok := criteria["service"].(string); ok && service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*models.Credential
	for rows.Next() {
		credential, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return credentials, nil
}

func (r *CredentialRepository) scan(row scanner) (*models.Credential, error) {
	var (
		id           string
		sequence     int
		userID       string
		service      string
		accessToken  string
		refreshToken sql.NullString
		tokenType    sql.NullString
		expiresAt    sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &userID, &service, &accessToken, &refreshToken, &tokenType,
		&expiresAt, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}

	token := &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken.String, TokenType: tokenType.String}
	if expiresAt.Valid {
		token.Expiry = expiresAt.Time
	}

	credential := models.NewCredential(sequence, userID, service, token)
	credential.SetID(id)
	credential.SetCreatedAt(createdAt)
	credential.SetUpdatedAt(updatedAt)
	credential.SetDeletedAt(timePtr(deletedAt))
	return credential, nil
}
