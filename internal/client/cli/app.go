// Package cli implements the interactive shell of the pocketsync agent. It
// plays the role of the mobile app's screens: every command maps to a screen
// action (signup, login, profile edit, manual sync) and goes through the
// same services the screens would use.
package cli

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"pocketsync/internal/client/config"
	"pocketsync/internal/client/remote"
	"pocketsync/internal/client/services"
	"pocketsync/internal/client/session"
	"pocketsync/internal/client/store"
	syncer "pocketsync/internal/client/sync"
	"pocketsync/internal/logging"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
	ModeUnknown Mode = "unknown"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	store          *store.Store
	session        *session.Manager
	authService    services.AuthService
	profileService services.ProfileService
	driver         *syncer.Driver
	scheduler      *syncer.Scheduler
	reader         *bufio.Reader
	Mode           Mode
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	st, err := store.Open(ctx, c.DatabaseDSN)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	apiClient := remote.NewHTTPClient(c.ServerURL, c.RequestTimeout)

	sm := session.NewManager(st.Metadata, logger)
	if err := sm.Load(ctx); err != nil {
		return nil, err
	}

	if err := ensureDeviceID(ctx, st); err != nil {
		return nil, err
	}

	as := services.NewAuthService(apiClient, st.DB, sm, logger)
	ps := services.NewProfileService(apiClient, st.DB, sm, logger)

	driver := syncer.NewDriver(st.DB, apiClient, logger)
	scheduler := syncer.NewScheduler(driver, c.SyncInterval, logger)

	return &App{
		config:         c,
		logger:         logger,
		store:          st,
		session:        sm,
		authService:    as,
		profileService: ps,
		driver:         driver,
		scheduler:      scheduler,
		reader:         bufio.NewReader(os.Stdin),
		Mode:           ModeUnknown,
	}, nil
}

// ensureDeviceID assigns this installation a stable identifier on first run.
func ensureDeviceID(ctx context.Context, st *store.Store) error {
	v, err := st.Metadata.Get(ctx, "device_id")
	if err != nil {
		return err
	}
	if v != nil {
		return nil
	}
	return st.Metadata.Set(ctx, "device_id", []byte(uuid.NewString()))
}

func (a *App) isLoggedIn() bool {
	return a.session.LoggedIn()
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		a.logger.Info(ctx, "connectivity changed", "mode", mode)
	}
}

// StartOnlineStatusWatcher probes backend reachability on a fixed interval.
// On transition to online it triggers a reconciliation pass, so changes made
// while offline converge as soon as connectivity returns.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.authService.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ctx, ModeOffline)
				continue
			}
			wasOffline := a.Mode != ModeOnline
			a.setMode(ctx, ModeOnline)
			if wasOffline && a.isLoggedIn() {
				if err := a.driver.CheckAndSync(ctx); err != nil {
					a.logger.Warn(ctx, "sync after reconnect failed", "error", err)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// Run starts the watcher, arms the scheduler for an already-persisted
// session, and hands control to the REPL. On return every background task
// is stopped and the store closed.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		a.scheduler.Stop()
		_ = a.authService.Close(ctx)
		_ = a.store.Close()
	}()

	go a.StartOnlineStatusWatcher(ctx, a.config.PingInterval)

	if a.isLoggedIn() {
		a.scheduler.Start(ctx)
	}

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

func (a *App) status() string {
	if s := a.session.Current(); s != nil {
		return s.Name + " (" + string(a.Mode) + ")"
	}
	return "logged out (" + string(a.Mode) + ")"
}
