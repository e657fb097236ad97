// Package resettokens declares the password-reset token ledger contract and
// its PostgreSQL implementation.
package resettokens

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository stores password-reset tokens. At most one token per user may be
// active; the schema enforces this with a partial unique index, so Create
// fails unless the previous active token was revoked first.
type Repository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	FindByID(ctx context.Context, id string) (*models.PasswordResetToken, error)
	// FindActiveByUser returns common.ErrorNotFound when userID has no active token.
	FindActiveByUser(ctx context.Context, userID string) (*models.PasswordResetToken, error)
	Revoke(ctx context.Context, id string) (bool, error)
}
