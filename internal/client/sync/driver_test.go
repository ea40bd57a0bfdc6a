package sync

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketsync/internal/client/models"
	"pocketsync/internal/client/remote"
	"pocketsync/internal/client/repositories/metadata"
	"pocketsync/internal/client/repositories/users"
	"pocketsync/internal/common"
	"pocketsync/internal/logging"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:driver?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash BLOB NOT NULL,
  created_at TIMESTAMP NOT NULL,
  version INTEGER NOT NULL DEFAULT 0,
  pending INTEGER NOT NULL DEFAULT 0,
  deleted INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
DELETE FROM users;
DELETE FROM metadata;
`)
	require.NoError(t, err)
	return db
}

// fakeClient implements the subset of remote.Client the driver exercises.
type fakeClient struct {
	remote.Client

	mu        gosync.Mutex
	calls     int
	failTimes int
	block     chan struct{} // when set, Sync waits here after registering the call
	started   chan struct{} // signaled once per Sync entry

	updated    []*models.User
	maxVersion int64
}

func (f *fakeClient) Sync(ctx context.Context, pending []*models.User, since int64) ([]*models.User, []*models.User, int64, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failTimes > 0
	if fail {
		f.failTimes--
	}
	block := f.block
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if fail {
		return nil, nil, 0, common.ErrorUnavailable
	}

	// echo pushed records back with assigned versions
	processed := make([]*models.User, 0, len(pending))
	v := f.maxVersion
	for _, p := range pending {
		v++
		c := *p
		c.Version = v
		processed = append(processed, &c)
	}
	return processed, f.updated, v, nil
}

func (f *fakeClient) syncCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testDriver(t *testing.T, db *sql.DB, c remote.Client) *Driver {
	t.Helper()
	d := NewDriver(db, c, logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	d.retryBase = time.Millisecond
	return d
}

func seedPending(t *testing.T, db *sql.DB, id, email string) {
	t.Helper()
	u := &models.User{ID: id, Name: "Asha Rao", Email: email,
		PasswordHash: []byte("h"), CreatedAt: time.Now().UTC(), Pending: true}
	require.NoError(t, users.NewSQLiteRepository(db).Create(context.Background(), u))
}

func TestCheckAndSync_PushAndPull(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	seedPending(t, db, "u1", "asha@x.com")

	fc := &fakeClient{
		maxVersion: 5,
		updated:    []*models.User{{ID: "u2", Name: "Noor", Email: "noor@x.com", Version: 5, CreatedAt: time.Now().UTC()}},
	}
	d := testDriver(t, db, fc)

	require.NoError(t, d.CheckAndSync(ctx))

	repo := users.NewSQLiteRepository(db)

	// pushed row acknowledged
	pushed, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, pushed.Pending)
	assert.Equal(t, int64(6), pushed.Version)

	// pulled row applied
	pulled, err := repo.GetByID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "Noor", pulled.Name)

	// high-water version recorded
	v, err := d.syncedVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)
}

func TestCheckAndSync_SingleFlight(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	seedPending(t, db, "u1", "asha@x.com")

	fc := &fakeClient{
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	d := testDriver(t, db, fc)

	var wg gosync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() { defer wg.Done(); errs[0] = d.CheckAndSync(ctx) }()

	// wait until the first pass is inside the remote call, then race a second one
	<-fc.started
	wg.Add(1)
	go func() { defer wg.Done(); errs[1] = d.CheckAndSync(ctx) }()

	time.Sleep(20 * time.Millisecond)
	close(fc.block)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, fc.syncCalls(), "overlapping passes must coalesce into one remote call")
}

func TestCheckAndSync_RetriesTransientFailure(t *testing.T) {
	db := setupDB(t)
	seedPending(t, db, "u1", "asha@x.com")

	fc := &fakeClient{failTimes: 2}
	d := testDriver(t, db, fc)

	require.NoError(t, d.CheckAndSync(context.Background()))
	assert.Equal(t, 3, fc.syncCalls())
}

func TestCheckAndSync_FailureKeepsPending(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	seedPending(t, db, "u1", "asha@x.com")

	fc := &fakeClient{failTimes: 10}
	d := testDriver(t, db, fc)

	err := d.CheckAndSync(ctx)
	require.ErrorIs(t, err, common.ErrorUnavailable)

	pending, err := users.NewSQLiteRepository(db).GetAllPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "failed pass must leave changes pending")

	// next pass pushes the change exactly once
	fc.mu.Lock()
	fc.failTimes = 0
	fc.calls = 0
	fc.mu.Unlock()
	require.NoError(t, d.CheckAndSync(ctx))
	assert.Equal(t, 1, fc.syncCalls())

	pending, err = users.NewSQLiteRepository(db).GetAllPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCheckAndSync_EditDuringPassStaysPending(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	seedPending(t, db, "u1", "asha@x.com")

	fc := &fakeClient{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	d := testDriver(t, db, fc)

	done := make(chan error, 1)
	go func() { done <- d.CheckAndSync(ctx) }()

	// rename while the pass is inside the remote call
	<-fc.started
	repo := users.NewSQLiteRepository(db)
	require.NoError(t, repo.UpdateName(ctx, "u1", "Asha R."))
	close(fc.block)
	require.NoError(t, <-done)

	// the acknowledgement must not swallow the newer name
	u, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha R.", u.Name)
	assert.True(t, u.Pending, "edit made during the pass must stay pending")

	// the next pass pushes the rename
	require.NoError(t, d.CheckAndSync(ctx))
	u, err = repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha R.", u.Name)
	assert.False(t, u.Pending)
	assert.Equal(t, 2, fc.syncCalls())
}

func TestSyncedVersion_Corrupt(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	require.NoError(t, metadata.NewSQLiteRepository(db).Set(ctx, versionKey, []byte("not-a-number")))

	d := testDriver(t, db, &fakeClient{})
	_, err := d.syncedVersion(ctx)
	assert.Error(t, err)
}
