package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"pocketsync/internal/api"
	"pocketsync/internal/common"
	"pocketsync/internal/server/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(r.Context(), w, common.ErrorValidation)
		return
	}

	user, err := s.users.Register(r.Context(), req.ID, req.Name, req.Email, req.Password)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.logger.Info(r.Context(), "account registered", "id", user.ID)
	s.writeJSON(r.Context(), w, http.StatusCreated, api.RegisterResponse{ID: user.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(r.Context(), w, common.ErrorValidation)
		return
	}

	pair, record, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(r.Context(), w, http.StatusOK, api.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         toPayload(record),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(r.Context(), w, common.ErrorValidation)
		return
	}

	pair, err := s.users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(r.Context(), w, http.StatusOK, api.RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(r.Context(), w, http.StatusOK, api.PingResponse{Status: "OK"})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req api.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(r.Context(), w, common.ErrorValidation)
		return
	}

	userID := userIDFromContext(r.Context())

	pending := make([]*models.Record, 0, len(req.Records))
	for _, p := range req.Records {
		pending = append(pending, fromPayload(p))
	}

	processed, updated, maxVersion, err := s.sync.Sync(r.Context(), userID, pending, req.SinceVersion)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	resp := api.SyncResponse{MaxVersion: maxVersion}
	for _, p := range processed {
		resp.Processed = append(resp.Processed, toPayload(p))
	}
	for _, u := range updated {
		resp.Updated = append(resp.Updated, toPayload(u))
	}

	s.logger.Info(r.Context(), "sync handled",
		"user", userID, "pushed", len(processed), "pulled", len(updated))
	s.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (s *Server) handleAvatarUploadURL(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	key, url, err := s.avatars.GetPresignedPutURL(r.Context(), userID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(r.Context(), w, http.StatusOK, api.AvatarURLResponse{Key: key, URL: url})
}

func (s *Server) handleAvatarDownloadURL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeError(r.Context(), w, common.ErrorValidation)
		return
	}

	url, err := s.avatars.GetPresignedGetURL(r.Context(), key)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(r.Context(), w, http.StatusOK, api.AvatarURLResponse{Key: key, URL: url})
}

func toPayload(rec *models.Record) api.UserPayload {
	return api.UserPayload{
		ID:        rec.ID,
		Name:      rec.Name,
		Email:     rec.Email,
		Version:   rec.Version,
		Deleted:   rec.Deleted,
		CreatedAt: rec.CreatedAt,
	}
}

func fromPayload(p api.UserPayload) *models.Record {
	return &models.Record{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Version:   p.Version,
		Deleted:   p.Deleted,
		CreatedAt: p.CreatedAt,
	}
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error(ctx, "failed to encode response", "error", err)
	}
}

// writeError maps sentinel errors onto HTTP statuses. Validation messages are
// passed through so the device can show them; everything else gets a generic
// body.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var status int
	msg := err.Error()

	switch {
	case errors.Is(err, common.ErrorValidation):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrorEmailTaken):
		status = http.StatusConflict
		msg = common.ErrorEmailTaken.Error()
	case errors.Is(err, common.ErrTokenExpired):
		status = http.StatusUnauthorized
		msg = common.ErrTokenExpired.Error()
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrRefreshTokenExpired):
		status = http.StatusUnauthorized
		msg = common.ErrorUnauthorized.Error()
	case errors.Is(err, common.ErrorNotFound):
		status = http.StatusNotFound
		msg = common.ErrorNotFound.Error()
	case errors.Is(err, common.ErrorConflict):
		status = http.StatusUnprocessableEntity
		msg = common.ErrorConflict.Error()
	default:
		status = http.StatusInternalServerError
		msg = common.ErrorInternal.Error()
		s.logger.Error(ctx, "request failed", "error", err)
	}

	s.writeJSON(ctx, w, status, api.ErrorResponse{Error: msg})
}
