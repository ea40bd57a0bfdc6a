// Package httpapi exposes the backend over HTTP/JSON. The wire types live in
// internal/api and are shared with the device agent.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"pocketsync/internal/logging"
	"pocketsync/internal/server/models"
	"pocketsync/internal/server/services"
)

// UserService is the slice of services.UserService the handlers need.
type UserService interface {
	Register(ctx context.Context, id, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, *models.Record, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

// SyncService reconciles pushed records with the account's stored state.
type SyncService interface {
	Sync(ctx context.Context, userID string, pending []*models.Record, sinceVersion int64) ([]*models.Record, []*models.Record, int64, error)
}

// AvatarService hands out presigned object storage URLs.
type AvatarService interface {
	GetPresignedPutURL(ctx context.Context, userID string) (string, string, error)
	GetPresignedGetURL(ctx context.Context, key string) (string, error)
}

type Server struct {
	addr            string
	shutdownTimeout time.Duration
	logger          logging.Logger
	jwtSecret       []byte

	users   UserService
	sync    SyncService
	avatars AvatarService
}

func NewServer(addr string, shutdownTimeout time.Duration, logger logging.Logger,
	users UserService, sync SyncService, avatars AvatarService, jwtSecret []byte) *Server {
	return &Server{
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With("module", "httpapi"),
		jwtSecret:       jwtSecret,
		users:           users,
		sync:            sync,
		avatars:         avatars,
	}
}

// Router builds the route table. Split out so tests can drive handlers
// through httptest without binding a socket.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)
	authed.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	authed.HandleFunc("/avatar/upload-url", s.handleAvatarUploadURL).Methods(http.MethodGet)
	authed.HandleFunc("/avatar/download-url", s.handleAvatarDownloadURL).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
