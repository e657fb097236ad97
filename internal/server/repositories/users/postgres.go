package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, is_active, two_factor_enabled, two_factor_secret, created_at`

// userRow is the storage shape of a users row; nullable columns are mapped
// to empty strings on the way out and back to NULL on the way in.
type userRow struct {
	ID               string
	Email            string
	PasswordHash     sql.NullString
	IsActive         bool
	TwoFactorEnabled bool
	TwoFactorSecret  sql.NullString
	CreatedAt        time.Time
}

func (r *userRow) toModel() *models.User {
	return &models.User{
		ID:               r.ID,
		Email:            r.Email,
		PasswordHash:     r.PasswordHash.String,
		IsActive:         r.IsActive,
		TwoFactorEnabled: r.TwoFactorEnabled,
		TwoFactorSecret:  r.TwoFactorSecret.String,
		CreatedAt:        r.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	row := &userRow{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&row.ID, &row.Email, &row.PasswordHash, &row.IsActive,
		&row.TwoFactorEnabled, &row.TwoFactorSecret, &row.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return row.toModel(), nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `email = $1`, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, `id = $1`, id)
}

// Create inserts user, assigning a new UUID when ID is empty, and fills in
// the database-assigned created_at.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO users (id, email, password_hash, is_active, two_factor_enabled, two_factor_secret)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, nullString(user.PasswordHash), user.IsActive,
		user.TwoFactorEnabled, nullString(user.TwoFactorSecret)).Scan(&user.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`UPDATE users
		 SET email = $2, password_hash = $3, is_active = $4, two_factor_enabled = $5, two_factor_secret = $6
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, nullString(user.PasswordHash), user.IsActive,
		user.TwoFactorEnabled, nullString(user.TwoFactorSecret))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return nil, common.ErrorNotFound
	}

	return user, nil
}
