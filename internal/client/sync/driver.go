// Package sync reconciles the local store with the backend. One Driver per
// process performs reconciliation passes; a Scheduler owns the periodic
// trigger and its lifecycle.
package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"pocketsync/internal/client/models"
	"pocketsync/internal/client/remote"
	"pocketsync/internal/client/repositories/metadata"
	"pocketsync/internal/client/repositories/users"
	"pocketsync/internal/common"
	"pocketsync/internal/dbx"
	"pocketsync/internal/logging"
)

// versionKey is the metadata key holding the highest server version this
// device has fully applied.
const versionKey = "sync_version"

// Driver performs one reconciliation pass at a time. Overlapping
// CheckAndSync calls collapse into the in-flight pass, so a manual trigger
// racing the periodic timer never produces duplicate remote writes.
type Driver struct {
	db     *sql.DB
	client remote.Client
	logger logging.Logger
	group  singleflight.Group

	// retry policy for transient backend failures inside a single pass
	retryBase     time.Duration
	retryAttempts uint64
}

func NewDriver(db *sql.DB, client remote.Client, logger logging.Logger) *Driver {
	return &Driver{
		db:            db,
		client:        client,
		logger:        logger.With("module", "sync"),
		retryBase:     500 * time.Millisecond,
		retryAttempts: 3,
	}
}

// CheckAndSync runs one reconciliation pass. Calls made while a pass is in
// flight share that pass's result instead of starting another one.
func (d *Driver) CheckAndSync(ctx context.Context) error {
	_, err, _ := d.group.Do("sync", func() (any, error) {
		return nil, d.pass(ctx)
	})
	return err
}

func (d *Driver) pass(ctx context.Context) error {
	userRepo := users.NewSQLiteRepository(d.db)

	pending, err := userRepo.GetAllPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect pending records: %w", err)
	}

	since, err := d.syncedVersion(ctx)
	if err != nil {
		return err
	}

	var processed, updated []*models.User
	var maxVersion int64

	backoff := retry.WithMaxRetries(d.retryAttempts, retry.NewExponential(d.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		p, u, v, err := d.client.Sync(ctx, pending, since)
		if err != nil {
			if errors.Is(err, common.ErrorUnavailable) {
				return retry.RetryableError(err)
			}
			return err
		}
		processed, updated, maxVersion = p, u, v
		return nil
	})
	if err != nil {
		// pending flags stay set, so the next pass pushes the same changes
		return fmt.Errorf("sync pass failed: %w", err)
	}

	err = dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txUsers := users.NewSQLiteRepository(tx)
		txMeta := metadata.NewSQLiteRepository(tx)

		for _, p := range processed {
			if err := txUsers.MarkSynced(ctx, p); err != nil {
				return err
			}
		}
		for _, u := range updated {
			if err := txUsers.ApplyRemote(ctx, u); err != nil {
				return err
			}
		}
		return txMeta.Set(ctx, versionKey, []byte(strconv.FormatInt(maxVersion, 10)))
	})
	if err != nil {
		return fmt.Errorf("failed to apply sync results: %w", err)
	}

	d.logger.Info(ctx, "sync pass finished",
		"pushed", len(processed), "pulled", len(updated), "version", maxVersion)
	return nil
}

func (d *Driver) syncedVersion(ctx context.Context) (int64, error) {
	raw, err := metadata.NewSQLiteRepository(d.db).Get(ctx, versionKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read synced version: %w", err)
	}
	if raw == nil {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt synced version %q: %w", raw, err)
	}
	return v, nil
}
