package models

import "time"

// CallLogEntry is one call attempt. Rows are append-only and never mutated;
// this table is the source of truth for recency-based scoring bonuses.
type CallLogEntry struct {
	ID        int64     `json:"id" db:"id"`
	ContactID string    `json:"contact_id" db:"contact_id"`
	CalledAt  time.Time `json:"called_at" db:"called_at"`
	Outcome   Outcome   `json:"outcome" db:"outcome"`
	Notes     string    `json:"notes" db:"notes"`
}
