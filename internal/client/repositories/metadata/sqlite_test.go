package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB NOT NULL)`)
	require.NoError(t, err)
	return db
}

func TestSetGet(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "session", []byte(`{"id":"u1"}`)))

	got, err := r.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"u1"}`), got)

	// overwrite
	require.NoError(t, r.Set(ctx, "session", []byte(`{"id":"u2"}`)))
	got, err = r.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"u2"}`), got)
}

func TestGet_Missing(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	got, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteAndClear(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a", []byte("1")))
	require.NoError(t, r.Set(ctx, "b", []byte("2")))

	require.NoError(t, r.Delete(ctx, "a"))
	got, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	// deleting an absent key is fine
	require.NoError(t, r.Delete(ctx, "a"))

	require.NoError(t, r.Clear(ctx))
	got, err = r.Get(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, got)
}
