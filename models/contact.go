package models

import (
	"strings"
	"time"
)

type Occupancy string

const (
	OccupancyOwner    Occupancy = "owner-occupied"
	OccupancyInvestor Occupancy = "investor"
	OccupancyUnknown  Occupancy = "unknown"
)

// Contact source tags. When two sources describe the same physical address
// the primary (farm) record wins and the CRM record is suppressed.
const (
	ContactSourceFarm = "farm"
	ContactSourceCRM  = "crm"
)

// Contact is a person/property owner in the farm area.
type Contact struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Phone            string    `json:"phone" db:"phone"`
	Address          string    `json:"address" db:"address"`
	StreetPart       string    `json:"street_part" db:"street_part"`
	Suburb           string    `json:"suburb" db:"suburb"`
	PropensityScore  int       `json:"propensity_score" db:"propensity_score"`
	TenureYears      int       `json:"tenure_years" db:"tenure_years"`
	Occupancy        Occupancy `json:"occupancy" db:"occupancy"`
	PropertyType     string    `json:"property_type" db:"property_type"`
	Beds             int       `json:"beds" db:"beds"`
	DoNotCall        bool      `json:"do_not_call" db:"do_not_call"`
	Source           string    `json:"source" db:"source"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Callable reports whether a contact is eligible for scoring at all.
// Contacts without a usable phone or flagged do-not-call never surface.
func (c *Contact) Callable() bool {
	return !c.DoNotCall && HasUsablePhone(c.Phone)
}

// HasUsablePhone requires at least 8 digits after stripping formatting.
func HasUsablePhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 8
}

// BucketPropertyType collapses free-text property descriptions into the
// House/Unit/Other comparable categories.
func BucketPropertyType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case t == "":
		return CategoryOther
	case strings.Contains(t, "house") || strings.Contains(t, "duplex") ||
		strings.Contains(t, "semi") || strings.Contains(t, "terrace") ||
		strings.Contains(t, "townhouse") || strings.Contains(t, "villa"):
		return CategoryHouse
	case strings.Contains(t, "unit") || strings.Contains(t, "apartment") ||
		strings.Contains(t, "apt") || strings.Contains(t, "flat") ||
		strings.Contains(t, "studio"):
		return CategoryUnit
	default:
		return CategoryOther
	}
}
