// Package models defines client-side data models used by the pocketsync agent.
package models

import (
	"strings"
	"time"
)

// User is a versioned account record persisted locally and synced with the
// server. The password hash is write-only: it is stored at signup and
// compared at login, but never rendered anywhere.
type User struct {
	// ID is a globally unique identifier assigned at creation.
	ID string

	// Name is the display name. Mutable; edits mark the row pending.
	Name string

	// Email is unique per store and kept lowercase. Immutable after creation.
	Email string

	// PasswordHash is the bcrypt hash of the signup password.
	PasswordHash []byte

	// CreatedAt is the account creation time in UTC.
	CreatedAt time.Time

	// Version is the monotonic, server-assigned version used for sync/merge.
	Version int64

	// Pending marks local changes not yet acknowledged by the server.
	Pending bool

	// Deleted marks the record as a tombstone (kept for conflict-free sync).
	Deleted bool
}

// NormalizeEmail canonicalizes an email address for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
