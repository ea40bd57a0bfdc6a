package services

import (
	"context"
	"database/sql"
	"fmt"

	"pocketsync/internal/dbx"
	"pocketsync/internal/server/config"
	"pocketsync/internal/server/models"
	"pocketsync/internal/server/repositories/repomanager"
)

// SyncService reconciles records pushed by one device with changes made by
// the account's other devices.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: m,
		config:      cfg,
	}
}

// Sync stores the pushed records, stamping each with a fresh per-account
// version inside one transaction, and returns records other devices changed
// past sinceVersion. The returned max version never regresses sinceVersion,
// so it is safe to persist as the device's new watermark.
func (s *SyncService) Sync(ctx context.Context, userID string, pending []*models.Record, sinceVersion int64) ([]*models.Record, []*models.Record, int64, error) {
	recordRepo := s.repomanager.Records(s.db)

	var processed []*models.Record
	maxVersion := sinceVersion

	updated, err := recordRepo.SelectUpdated(ctx, userID, sinceVersion)
	if err != nil {
		return nil, nil, 0, err
	}
	for _, u := range updated {
		if u.Version > maxVersion {
			maxVersion = u.Version
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txUsers := s.repomanager.Users(tx)
		txRecords := s.repomanager.Records(tx)

		for _, r := range pending {
			version, err := txUsers.IncrementCurrentVersion(ctx, userID)
			if err != nil {
				return err
			}

			r.UserID = userID
			r.Version = version
			if version > maxVersion {
				maxVersion = version
			}

			if err := txRecords.CreateOrUpdate(ctx, r); err != nil {
				return err
			}

			processed = append(processed, r)
		}

		return nil
	})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("error storing records: %w", err)
	}

	return processed, updated, maxVersion, nil
}
