// Package services contains application services for the pocketsync agent.
// This file defines the authentication service: signup, online/offline login,
// logout, and liveness probing.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pocketsync/internal/client/models"
	"pocketsync/internal/client/remote"
	"pocketsync/internal/client/repositories/users"
	"pocketsync/internal/client/session"
	"pocketsync/internal/common"
	"pocketsync/internal/dbx"
	"pocketsync/internal/logging"
)

// MinPasswordLen is the shortest accepted signup password.
const MinPasswordLen = 6

// AuthService defines account operations for the agent shell.
//
// Contract:
//   - SignUp: validate input, create the account locally, register remotely.
//   - LogIn: verify credentials locally, falling back to the server on a
//     fresh device, and install the session snapshot.
//   - LogOut: clear the session snapshot only; the account row stays.
//   - Ping: check backend liveness.
//   - Close: release the remote client.
//
// All methods honor context cancellation.
type AuthService interface {
	SignUp(ctx context.Context, name, email, password, confirm string) (string, error)
	LogIn(ctx context.Context, email, password string) error
	LogOut(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client  remote.Client
	db      *sql.DB
	session *session.Manager
	logger  logging.Logger
}

// NewAuthService constructs an AuthService bound to the remote client, the
// local database, and the session manager.
func NewAuthService(client remote.Client, db *sql.DB, sm *session.Manager, logger logging.Logger) AuthService {
	return &authService{client: client, db: db, session: sm, logger: logger.With("module", "auth")}
}

// SignUp creates the account. The local insert and the remote registration
// run under one local transaction, so a duplicate reported by either side
// leaves no partial row behind. An unreachable backend is not an error: the
// row stays pending and the next sync pass registers it.
func (a *authService) SignUp(ctx context.Context, name, email, password, confirm string) (string, error) {
	if err := validateSignUp(name, email, password, confirm); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing error: %w", err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        models.NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
		Pending:      true,
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := users.NewSQLiteRepository(tx).Create(ctx, u); err != nil {
			return err
		}

		switch err := a.client.Register(ctx, u, password); {
		case err == nil:
			return nil
		case errors.Is(err, common.ErrorUnavailable):
			a.logger.Warn(ctx, "backend unreachable, account registered locally", "email", u.Email)
			return nil
		default:
			// e.g. the email exists on another device; roll the local row back
			return err
		}
	})
	if err != nil {
		return "", err
	}

	return u.ID, nil
}

// LogIn verifies credentials and installs the session snapshot. The local
// store is consulted first; a device that has never seen the account pulls
// it from the server.
func (a *authService) LogIn(ctx context.Context, email, password string) error {
	email = models.NormalizeEmail(email)
	repo := users.NewSQLiteRepository(a.db)

	u, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil && len(u.PasswordHash) > 0:
		if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
			return common.ErrorUnauthorized
		}
		// refresh tokens for sync; offline login stays valid without them
		if _, err := a.client.Login(ctx, email, password); err != nil && !errors.Is(err, common.ErrorUnavailable) {
			a.logger.Warn(ctx, "remote login rejected", "error", err)
		}
	case err == nil, errors.Is(err, common.ErrorNotFound):
		// fresh device, or a row pulled from the server and carrying no
		// credentials yet
		remoteUser, err := a.client.Login(ctx, email, password)
		if err != nil {
			if errors.Is(err, common.ErrorUnavailable) {
				return fmt.Errorf("account unknown on this device and %w", err)
			}
			return err
		}
		// store a hash of the just-verified password so later logins on this
		// device work locally
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing error: %w", err)
		}
		remoteUser.PasswordHash = hash
		if err := repo.ApplyRemote(ctx, remoteUser); err != nil {
			return err
		}
		u = remoteUser
	default:
		return err
	}

	return a.session.Set(ctx, models.Session{ID: u.ID, Name: u.Name, Email: u.Email})
}

// LogOut removes the session snapshot and nothing else.
func (a *authService) LogOut(ctx context.Context) error {
	return a.session.Clear(ctx)
}

// Ping proxies a liveness check to the remote client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the remote client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

func validateSignUp(name, email, password, confirm string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", common.ErrorValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: malformed email", common.ErrorValidation)
	}
	if len(password) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, MinPasswordLen)
	}
	if password != confirm {
		return fmt.Errorf("%w: passwords do not match", common.ErrorValidation)
	}
	return nil
}
