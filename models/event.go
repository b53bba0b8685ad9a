package models

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventListing     EventType = "listing"
	EventSold        EventType = "sold"
	EventPriceChange EventType = "price_change"
	EventUnlisted    EventType = "unlisted"
	EventRelisted    EventType = "relisted"
	EventRental      EventType = "rental"
)

type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusSold      EventStatus = "sold"
	EventStatusWithdrawn EventStatus = "withdrawn"
)

// Property category buckets for comparable matching
const (
	CategoryHouse = "House"
	CategoryUnit  = "Unit"
	CategoryOther = "Other"
)

// MarketEvent is one detected real-world event (new listing, sale, price
// change, ...). At most one row exists per (normalized address, type,
// event date); duplicate ingestion is a silent no-op.
type MarketEvent struct {
	ID                int64           `json:"id" db:"id"`
	Address           string          `json:"address" db:"address"`
	NormalizedAddress string          `json:"normalized_address" db:"normalized_address"`
	Suburb            string          `json:"suburb" db:"suburb"`
	Type              EventType       `json:"type" db:"type"`
	Price             string          `json:"price" db:"price"`
	PricePrevious     string          `json:"price_previous" db:"price_previous"`
	ConfirmedPrice    string          `json:"confirmed_price" db:"confirmed_price"`
	Beds              int             `json:"beds" db:"beds"`
	Baths             int             `json:"baths" db:"baths"`
	Cars              int             `json:"cars" db:"cars"`
	PropertyType      string          `json:"property_type" db:"property_type"`
	AgentName         string          `json:"agent_name" db:"agent_name"`
	Agency            string          `json:"agency" db:"agency"`
	Source            string          `json:"source" db:"source"`
	EventDate         time.Time       `json:"event_date" db:"event_date"`
	DetectedAt        time.Time       `json:"detected_at" db:"detected_at"`
	Status            EventStatus     `json:"status" db:"status"`
	LinkedEventID     *int64          `json:"linked_event_id" db:"linked_event_id"`
	TopContacts       json.RawMessage `json:"top_contacts" db:"top_contacts"`
}

// Category buckets free-text property types into House/Unit/Other for
// comparable-property matching.
func (e *MarketEvent) Category() string {
	return BucketPropertyType(e.PropertyType)
}

// ScoredContact is one entry of an event's immutable top-contacts snapshot.
type ScoredContact struct {
	ContactID string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Score     int    `json:"score"`
}

// IngestResult is returned to ingestion adapters.
type IngestResult struct {
	Inserted     bool  `json:"inserted"`
	EventID      int64 `json:"event_id"`
	ContactCount int   `json:"contact_count"`
}
