package models

import "time"

// Session is the denormalized snapshot of the authenticated user, kept
// separately from the account row so identity can be rendered without a
// store round-trip. It is serialized as a single JSON value under one
// metadata key.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	LoginTime time.Time `json:"loginTime"`
}

// Projection reports whether the session is a valid projection of the given
// account record (same identity fields).
func (s Session) Projection(u *User) bool {
	return u != nil && s.ID == u.ID && s.Name == u.Name && s.Email == u.Email
}
