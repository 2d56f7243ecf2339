package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-planner-api/internal/models"
)

const refreshTokenColumns = `id, user_id, token_hash, expires_at, revoked_at, replaced_by, ip_address, user_agent, created_at`

// RefreshTokenRepository persists refresh sessions. Rows are only ever revoked, never deleted.
type RefreshTokenRepository struct {
	db *sqlx.DB
}

// NewRefreshTokenRepository constructs the repository.
func NewRefreshTokenRepository(db *sqlx.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// FindByHash returns the token row with the given secret hash.
func (r *RefreshTokenRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE token_hash = $1 LIMIT 1`
	var token models.RefreshToken
	if err := r.db.GetContext(ctx, &token, query, hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &token, nil
}

// Create persists a new active token.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	prepareToken(token)
	if _, err := r.db.NamedExecContext(ctx, insertRefreshToken, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// Rotate revokes current in favour of next and inserts next, in one transaction. When current was
// revoked concurrently nothing is written and ErrTokenRevoked is returned.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, currentID string, next *models.RefreshToken, revokedAt time.Time) (err error) {
	prepareToken(next)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotation transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const revokeQuery = `UPDATE refresh_tokens SET revoked_at = $2, replaced_by = $3 WHERE id = $1 AND revoked_at IS NULL`
	res, err := tx.ExecContext(ctx, revokeQuery, currentID, revokedAt, next.TokenHash)
	if err != nil {
		return fmt.Errorf("revoke rotated token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke rotated token: %w", err)
	}
	if affected == 0 {
		return ErrTokenRevoked
	}

	if _, err = tx.NamedExecContext(ctx, insertRefreshToken, next); err != nil {
		return fmt.Errorf("insert successor token: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rotation: %w", err)
	}
	return nil
}

// RevokeByHash revokes the token with the given hash if it is still active. It reports whether a
// row changed.
func (r *RefreshTokenRepository) RevokeByHash(ctx context.Context, hash string, revokedAt time.Time) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE token_hash = $1 AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, hash, revokedAt)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return affected > 0, nil
}

// RevokeAllActiveForUser revokes every unrevoked token of a user and returns how many were hit.
func (r *RefreshTokenRepository) RevokeAllActiveForUser(ctx context.Context, userID string, revokedAt time.Time) (int64, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, userID, revokedAt)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return affected, nil
}

const insertRefreshToken = `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, ip_address, user_agent, created_at) VALUES (:id, :user_id, :token_hash, :expires_at, :revoked_at, :replaced_by, :ip_address, :user_agent, :created_at)`

func prepareToken(token *models.RefreshToken) {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
}
