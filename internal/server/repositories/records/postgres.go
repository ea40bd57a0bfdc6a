package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pocketsync/internal/common"
	"pocketsync/internal/dbx"
	"pocketsync/internal/server/models"
)

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns a record by its device-assigned ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	query := `
		SELECT id, user_id, name, email, version, deleted, created_at
		FROM records
		WHERE id = $1
	`
	record := &models.Record{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.UserID, &record.Name, &record.Email,
		&record.Version, &record.Deleted, &record.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return record, nil
}

// CreateOrUpdate upserts a record by ID for a specific user. If a conflicting
// row exists for another user, no row is updated and ErrorConflict is returned.
func (r *PostgresRepository) CreateOrUpdate(ctx context.Context, record *models.Record) error {
	query := `
		INSERT INTO records (id, user_id, name, email, version, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			version = EXCLUDED.version,
			deleted = EXCLUDED.deleted
			WHERE records.user_id = EXCLUDED.user_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.Name, record.Email,
		record.Version, record.Deleted, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// SelectUpdated returns all records for userID with version > minVersion.
func (r *PostgresRepository) SelectUpdated(ctx context.Context, userID string, minVersion int64) ([]*models.Record, error) {
	query := `
		SELECT id, user_id, name, email, version, deleted, created_at
		FROM records
		WHERE user_id = $1 AND version > $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, minVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		var item models.Record
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Name, &item.Email,
			&item.Version, &item.Deleted, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
