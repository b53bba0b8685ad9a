package models

import "time"

// GeocodeEntry maps a normalized address key to coordinates. Entries are
// append-only; a cached key is never re-fetched from the provider.
type GeocodeEntry struct {
	AddressKey string    `json:"address_key" db:"address_key"`
	Lat        float64   `json:"lat" db:"lat"`
	Lon        float64   `json:"lon" db:"lon"`
	ResolvedAt time.Time `json:"resolved_at" db:"resolved_at"`
}
