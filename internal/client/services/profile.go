package services

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"pocketsync/internal/client/remote"
	"pocketsync/internal/client/repositories/metadata"
	"pocketsync/internal/client/repositories/users"
	"pocketsync/internal/client/session"
	"pocketsync/internal/common"
	"pocketsync/internal/logging"
)

// avatarKey is the metadata key remembering the uploaded avatar's storage key.
const avatarKey = "avatar_key"

// ProfileService edits the authenticated user's profile. Edits are written
// to the account row first (marking it pending for sync) and then mirrored
// into the session snapshot, so a reload shows the new values and the next
// reconciliation pass pushes them.
type ProfileService interface {
	Rename(ctx context.Context, name string) error
	UploadAvatar(ctx context.Context, path string) (string, error)
	AvatarURL(ctx context.Context) (string, error)
}

type profileService struct {
	client  remote.Client
	db      *sql.DB
	session *session.Manager
	logger  logging.Logger
}

func NewProfileService(client remote.Client, db *sql.DB, sm *session.Manager, logger logging.Logger) ProfileService {
	return &profileService{client: client, db: db, session: sm, logger: logger.With("module", "profile")}
}

func (p *profileService) Rename(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", common.ErrorValidation)
	}

	cur := p.session.Current()
	if cur == nil {
		return common.ErrorUnauthorized
	}

	if err := users.NewSQLiteRepository(p.db).UpdateName(ctx, cur.ID, name); err != nil {
		return fmt.Errorf("error renaming account: %w", err)
	}
	return p.session.UpdateName(ctx, name)
}

// UploadAvatar reads the file at path, PUTs it to a presigned URL issued by
// the backend, and remembers the storage key. Returns the key.
func (p *profileService) UploadAvatar(ctx context.Context, path string) (string, error) {
	if !p.session.LoggedIn() {
		return "", common.ErrorUnauthorized
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading avatar file: %w", err)
	}

	key, url, err := p.client.AvatarUploadURL(ctx)
	if err != nil {
		return "", fmt.Errorf("error requesting upload url: %w", err)
	}

	if err := remote.UploadToPresignedURL(ctx, url, data); err != nil {
		return "", fmt.Errorf("error uploading avatar: %w", err)
	}

	if err := metadata.NewSQLiteRepository(p.db).Set(ctx, avatarKey, []byte(key)); err != nil {
		return "", err
	}

	p.logger.Info(ctx, "avatar uploaded", "key", key)
	return key, nil
}

// AvatarURL returns a presigned download URL for the stored avatar, or
// common.ErrorNotFound when none was uploaded.
func (p *profileService) AvatarURL(ctx context.Context) (string, error) {
	key, err := metadata.NewSQLiteRepository(p.db).Get(ctx, avatarKey)
	if err != nil {
		return "", err
	}
	if key == nil {
		return "", common.ErrorNotFound
	}
	return p.client.AvatarDownloadURL(ctx, string(key))
}
