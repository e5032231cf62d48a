package store

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

// UsageRecord is one accounting entry for a billable call. Records are
// append-only.
type UsageRecord struct {
	ID            string    `json:"id"` // UUID
	UserID        int64     `json:"user_id"`
	Endpoint      string    `json:"endpoint"`
	TokenCount    int       `json:"token_count"`
	EstimatedCost float64   `json:"estimated_cost"`
	CreatedAt     time.Time `json:"created_at"`
}
