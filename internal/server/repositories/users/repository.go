// Package users provides a PostgreSQL-backed repository for account rows.
package users

import (
	"context"

	"pocketsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	IncrementCurrentVersion(ctx context.Context, userID string) (int64, error)
}
