// Package users declares the credential-store contract and its PostgreSQL
// implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository persists user records. Lookups return common.ErrorNotFound when
// no row matches; Create returns common.ErrDuplicateAccount when the email is
// already taken.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// Save overwrites the mutable fields of an existing user.
	Save(ctx context.Context, user *models.User) (*models.User, error)
}
