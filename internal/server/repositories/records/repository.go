// Package records provides PostgreSQL-backed repositories for synced profile
// snapshots and the version queries the sync endpoint relies on.
package records

import (
	"context"

	"pocketsync/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, id string) (*models.Record, error)
	CreateOrUpdate(ctx context.Context, record *models.Record) error
	SelectUpdated(ctx context.Context, userID string, minVersion int64) ([]*models.Record, error)
}
