// Package session owns the authenticated user's snapshot. Screens read the
// snapshot from the Manager and subscribe to changes instead of touching
// storage keys directly.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pocketsync/internal/client/models"
	"pocketsync/internal/client/repositories/metadata"
	"pocketsync/internal/logging"
)

// Key is the metadata key holding the serialized session snapshot.
const Key = "session"

// Observer is called with the new snapshot after every change. A nil
// snapshot means the session was cleared.
type Observer func(*models.Session)

// Manager is the single owner of the session snapshot. The snapshot is
// persisted under one metadata key and mirrored in memory; a persist failure
// leaves both the stored and the in-memory snapshot untouched.
type Manager struct {
	repo   metadata.Repository
	logger logging.Logger

	mu      sync.RWMutex
	current *models.Session
	subs    map[int]Observer
	nextSub int
}

func NewManager(repo metadata.Repository, logger logging.Logger) *Manager {
	return &Manager{
		repo:   repo,
		logger: logger.With("module", "session"),
		subs:   make(map[int]Observer),
	}
}

// Load reads the persisted snapshot into memory. Called once at startup,
// after the store is open. A missing key leaves the manager logged out.
func (m *Manager) Load(ctx context.Context) error {
	raw, err := m.repo.Get(ctx, Key)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if raw == nil {
		return nil
	}

	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("failed to decode session: %w", err)
	}

	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()
	return nil
}

// Current returns a copy of the snapshot, or nil when logged out.
func (m *Manager) Current() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// LoggedIn reports whether a session snapshot is present.
func (m *Manager) LoggedIn() bool {
	return m.Current() != nil
}

// Set persists and installs a new snapshot, stamping LoginTime when unset.
func (m *Manager) Set(ctx context.Context, s models.Session) error {
	if s.LoginTime.IsZero() {
		s.LoginTime = time.Now().UTC()
	}
	return m.replace(ctx, &s)
}

// UpdateName rewrites the snapshot with a new display name. The caller is
// responsible for propagating the rename to the account row as well.
func (m *Manager) UpdateName(ctx context.Context, name string) error {
	cur := m.Current()
	if cur == nil {
		return fmt.Errorf("no active session")
	}
	cur.Name = name
	return m.replace(ctx, cur)
}

// Clear removes the snapshot. The local account row is never touched.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.repo.Delete(ctx, Key); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	m.notify(ctx, nil)
	return nil
}

// Subscribe registers an observer and returns its cancel func. Observers are
// invoked synchronously after a change is persisted.
func (m *Manager) Subscribe(fn Observer) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) replace(ctx context.Context, s *models.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	// persist first so a storage failure leaves the previous snapshot intact
	if err := m.repo.Set(ctx, Key, raw); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	m.notify(ctx, s)
	return nil
}

func (m *Manager) notify(ctx context.Context, s *models.Session) {
	m.mu.RLock()
	observers := make([]Observer, 0, len(m.subs))
	for _, fn := range m.subs {
		observers = append(observers, fn)
	}
	m.mu.RUnlock()

	for _, fn := range observers {
		var copied *models.Session
		if s != nil {
			c := *s
			copied = &c
		}
		fn(copied)
	}
	m.logger.Debug(ctx, "session changed", "logged_in", s != nil)
}
