// Package api defines the JSON payloads exchanged between the device agent
// and the backend. Both sides import this package so the wire format has a
// single source of truth.
package api

import "time"

// UserPayload is the wire form of an account record. Identifiers are
// client-assigned UUIDs so records keep the same identity on every device;
// versions are server-assigned and monotonic per account.
type UserPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Version   int64     `json:"version"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	ID string `json:"id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         UserPayload `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SyncRequest pushes locally pending records and names the highest version
// this device has already seen.
type SyncRequest struct {
	Records      []UserPayload `json:"records"`
	SinceVersion int64         `json:"sinceVersion"`
}

// SyncResponse acknowledges the pushed records with their assigned versions
// and returns records other devices changed past SinceVersion.
type SyncResponse struct {
	Processed  []UserPayload `json:"processed"`
	Updated    []UserPayload `json:"updated"`
	MaxVersion int64         `json:"maxVersion"`
}

type AvatarURLResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type PingResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
