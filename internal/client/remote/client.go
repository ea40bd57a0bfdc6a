// Package remote talks to the pocketsync backend. The Client interface is
// what the rest of the agent depends on; the HTTP implementation lives in
// this package too.
package remote

import (
	"context"

	"pocketsync/internal/client/models"
)

// Client is the device-side view of the backend.
type Client interface {
	Close() error

	// Register creates the account on the server with the client-assigned id.
	Register(ctx context.Context, user *models.User, password string) error

	// Login authenticates and stores the token pair for subsequent calls.
	// Returns the server's copy of the account record.
	Login(ctx context.Context, email string, password string) (*models.User, error)

	// Ping checks backend liveness.
	Ping(ctx context.Context) error

	// Sync pushes pending records and pulls records changed past sinceVersion.
	// Returns the acknowledged pushed records (with assigned versions), the
	// records changed elsewhere, and the account's max version.
	Sync(ctx context.Context, pending []*models.User, sinceVersion int64) (processed []*models.User, updated []*models.User, maxVersion int64, err error)

	// AvatarUploadURL returns a storage key and a presigned PUT URL.
	AvatarUploadURL(ctx context.Context) (key string, url string, err error)

	// AvatarDownloadURL returns a presigned GET URL for a storage key.
	AvatarDownloadURL(ctx context.Context, key string) (string, error)
}
