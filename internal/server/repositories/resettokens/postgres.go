package resettokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, created_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.CreatedAt, token.ExpiresAt, token.IsActive); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrActiveResetToken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, arg any) (*models.PasswordResetToken, error) {
	t := &models.PasswordResetToken{}
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&t.ID, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.PasswordResetToken, error) {
	return r.scanOne(ctx, `
		SELECT id, user_id, created_at, expires_at, is_active
		FROM password_reset_tokens
		WHERE id = $1
	`, id)
}

func (r *PostgresRepository) FindActiveByUser(ctx context.Context, userID string) (*models.PasswordResetToken, error) {
	return r.scanOne(ctx, `
		SELECT id, user_id, created_at, expires_at, is_active
		FROM password_reset_tokens
		WHERE user_id = $1 AND is_active
	`, userID)
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE password_reset_tokens
		SET is_active = FALSE
		WHERE id = $1 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
