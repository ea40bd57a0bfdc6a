// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account row. Email is stored lower-cased and is unique.
// CurrentVersion is the per-account monotonic counter used to stamp
// synced records.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   []byte
	CreatedAt      time.Time
	CurrentVersion int64
}
