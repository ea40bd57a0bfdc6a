package users

import (
	"context"

	"pocketsync/internal/client/models"
)

// Repository describes operations on the local account table.
// Implementations are backed by the on-device SQLite database and use
// tombstones plus a pending flag for synchronization bookkeeping.
type Repository interface {
	// Create inserts a new account row. Returns common.ErrorEmailTaken when
	// the (lowercased) email is already present.
	Create(ctx context.Context, user *models.User) error

	// GetByEmail returns the non-deleted row with the given normalized email,
	// or common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the non-deleted row with the given id, or
	// common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// UpdateName changes the display name and marks the row pending.
	UpdateName(ctx context.Context, id string, name string) error

	// DeleteByID marks the row as a tombstone and pending, so the deletion
	// propagates on the next reconciliation pass.
	DeleteByID(ctx context.Context, id string) error

	// GetAllPending returns rows with local changes not yet acknowledged by
	// the server.
	GetAllPending(ctx context.Context) ([]*models.User, error)

	// ApplyRemote upserts a server-versioned row and clears its pending flag.
	ApplyRemote(ctx context.Context, user *models.User) error

	// MarkSynced records the server-assigned version of a pushed row, clearing
	// pending only if the row still matches the pushed snapshot.
	MarkSynced(ctx context.Context, pushed *models.User) error

	// MaxVersion returns the highest server version seen locally, 0 when the
	// table is empty.
	MaxVersion(ctx context.Context) (int64, error)
}
