package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pocketsync/internal/client/models"
	"pocketsync/internal/common"
	"pocketsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (id, name, email, password_hash, created_at, version, pending, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt, u.Version, u.Pending, u.Deleted)
	if err != nil {
		// the sqlite driver reports duplicates only through the error text
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return common.ErrorEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, name, email, password_hash, created_at, version, pending, deleted
			FROM users WHERE email = ? AND deleted = 0`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, name, email, password_hash, created_at, version, pending, deleted
			FROM users WHERE id = ? AND deleted = 0`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRepository) scanOne(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.Version, &u.Pending, &u.Deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return u, nil
}

// UpdateName changes the display name and flags the row for the next sync
// pass. It expects exactly one row to be affected.
func (r *SQLiteRepository) UpdateName(ctx context.Context, id string, name string) error {
	query := `UPDATE users SET name = ?, pending = 1 WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, name, id)
	if err != nil {
		return fmt.Errorf("failed to update user name: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

// DeleteByID marks a row as deleted (soft delete) and pending.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	query := `UPDATE users SET deleted = 1, pending = 1 WHERE id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetAllPending(ctx context.Context) ([]*models.User, error) {
	query := `SELECT id, name, email, password_hash, created_at, version, pending, deleted
			FROM users WHERE pending = 1`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending users: %w", err)
	}
	defer rows.Close()

	var pending []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.Version, &u.Pending, &u.Deleted); err != nil {
			return nil, err
		}
		pending = append(pending, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pending, nil
}

// ApplyRemote upserts a row the server reported as authoritative. On conflict
// by id, the server copy wins and the pending flag is cleared.
func (r *SQLiteRepository) ApplyRemote(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (id, name, email, password_hash, created_at, version, pending, deleted)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name,
				password_hash = CASE WHEN length(excluded.password_hash) > 0
					THEN excluded.password_hash ELSE users.password_hash END,
				version = excluded.version,
				deleted = excluded.deleted,
				pending = 0`

	// rows originating on another device carry no password hash
	hash := u.PasswordHash
	if hash == nil {
		hash = []byte{}
	}

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, hash, u.CreatedAt, u.Version, u.Deleted)
	if err != nil {
		return fmt.Errorf("failed to apply remote user: %w", err)
	}
	return nil
}

// MarkSynced records the server-assigned version for a pushed row. Pending is
// cleared only if the row still matches the pushed snapshot; an edit made
// while the push was in flight keeps the flag set for the next pass.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, pushed *models.User) error {
	query := `UPDATE users SET version = ?, pending = 0
			WHERE id = ? AND name = ? AND deleted = ?`
	res, err := r.db.ExecContext(ctx, query, pushed.Version, pushed.ID, pushed.Name, pushed.Deleted)
	if err != nil {
		return fmt.Errorf("failed to mark user synced: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		// row changed under the push; record the version, keep it pending
		_, err = r.db.ExecContext(ctx, `UPDATE users SET version = ? WHERE id = ?`, pushed.Version, pushed.ID)
		if err != nil {
			return fmt.Errorf("failed to record synced version: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) MaxVersion(ctx context.Context) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM users`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to get max version: %w", err)
	}
	return v, nil
}
