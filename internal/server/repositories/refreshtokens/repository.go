// Package refreshtokens declares the refresh-token ledger contract and its
// PostgreSQL implementation. Rows are never deleted; revocation clears
// is_active so the rotation history stays auditable.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByID returns common.ErrorNotFound when no token has this id,
	// regardless of its active flag.
	FindByID(ctx context.Context, id string) (*models.RefreshToken, error)

	// Revoke deactivates the token if it is still active and reports whether
	// this call did so. Concurrent callers racing on one token see exactly
	// one true.
	Revoke(ctx context.Context, id string) (bool, error)

	// RevokeAllForUser deactivates every active token of userID and returns
	// how many were affected.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}
