package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketsync/internal/api"
	"pocketsync/internal/client/models"
	"pocketsync/internal/common"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, 2*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin_StoresTokensAndReturnsUser(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/login", r.URL.Path)
		var req api.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "asha@x.com", req.Email)

		writeJSON(w, http.StatusOK, api.LoginResponse{
			AccessToken:  "acc",
			RefreshToken: "ref",
			User:         api.UserPayload{ID: "u1", Name: "Asha Rao", Email: "asha@x.com", Version: 3},
		})
	}))

	u, err := c.Login(context.Background(), "asha@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, int64(3), u.Version)
	assert.Equal(t, "acc", c.accessToken)
	assert.Equal(t, "ref", c.refreshToken)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, api.ErrorResponse{Error: common.ErrorEmailTaken.Error()})
	}))

	err := c.Register(context.Background(), &models.User{ID: "u1", Name: "Asha Rao", Email: "asha@x.com"}, "secret1")
	assert.ErrorIs(t, err, common.ErrorEmailTaken)
}

func TestSync_RoundTrip(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sync", r.URL.Path)
		require.Equal(t, "Bearer acc", r.Header.Get("Authorization"))

		var req api.SyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Records, 1)
		require.Equal(t, int64(2), req.SinceVersion)

		pushed := req.Records[0]
		pushed.Version = 3
		writeJSON(w, http.StatusOK, api.SyncResponse{
			Processed:  []api.UserPayload{pushed},
			Updated:    []api.UserPayload{{ID: "u2", Name: "Noor", Email: "noor@x.com", Version: 4}},
			MaxVersion: 4,
		})
	}))
	c.accessToken = "acc"

	pending := []*models.User{{ID: "u1", Name: "Asha Rao", Email: "asha@x.com", Pending: true}}
	processed, updated, maxVersion, err := c.Sync(context.Background(), pending, 2)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, int64(3), processed[0].Version)
	require.Len(t, updated, 1)
	assert.Equal(t, "u2", updated[0].ID)
	assert.Equal(t, int64(4), maxVersion)
}

func TestSync_RefreshesExpiredToken(t *testing.T) {
	var syncCalls, refreshCalls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sync":
			syncCalls++
			if r.Header.Get("Authorization") != "Bearer fresh" {
				writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: common.ErrTokenExpired.Error()})
				return
			}
			writeJSON(w, http.StatusOK, api.SyncResponse{MaxVersion: 1})
		case "/api/refresh":
			refreshCalls++
			writeJSON(w, http.StatusOK, api.RefreshResponse{AccessToken: "fresh", RefreshToken: "ref2"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	c.accessToken = "stale"
	c.refreshToken = "ref1"

	_, _, maxVersion, err := c.Sync(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), maxVersion)
	assert.Equal(t, 2, syncCalls)
	assert.Equal(t, 1, refreshCalls)
	assert.Equal(t, "ref2", c.refreshToken)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.PingResponse{Status: "OK"})
	}))
	require.NoError(t, c.Ping(context.Background()))
}

func TestMapStatus_Unreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", 200*time.Millisecond)
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, common.ErrorUnavailable)
}

func TestMapStatus_Validation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "email is malformed"})
	}))
	err := c.Register(context.Background(), &models.User{ID: "u1", Email: "bad"}, "p")
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Contains(t, err.Error(), "email is malformed")
}
