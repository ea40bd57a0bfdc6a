// Package refreshtokens provides a PostgreSQL-backed repository for the
// refresh tokens issued alongside access tokens.
package refreshtokens

import (
	"context"
	"time"

	"pocketsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID string, token string, validity time.Duration) error
	Find(ctx context.Context, token string) (*models.RefreshToken, error)
	Delete(ctx context.Context, token string) error
}
