package models

import "time"

// Record is a synced profile snapshot. The ID is assigned by the device
// that created the record, so every device addresses the same row.
// Version is server-assigned and monotonic within the owning account.
type Record struct {
	ID        string
	UserID    string
	Name      string
	Email     string
	Version   int64
	Deleted   bool
	CreatedAt time.Time
}
