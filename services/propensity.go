package services

import (
	"fmt"
	"time"

	"farm_prospector/models"
	"farm_prospector/storage"
)

// Propensity weights. The score is an opaque non-negative integer; these
// values only need to rank contacts sensibly against each other.
const (
	tenureYearCap        = 10
	tenurePointsPerYear  = 3
	investorBonus        = 12
	ownerOccupierBonus   = 5
	appraisalBonus       = 20
	appraisalWindowDays  = 365
	recentContactPenalty = 5
)

// RecomputePropensities rebuilds every farm contact's propensity score
// from tenure, occupancy and appraisal history. Runs periodically; the
// queue and scorer read the stored value.
func RecomputePropensities(store *storage.SQLiteStore, suburbs []string) (int, error) {
	return recomputePropensitiesAt(store, suburbs, time.Now())
}

func recomputePropensitiesAt(store *storage.SQLiteStore, suburbs []string, now time.Time) (int, error) {
	contacts, err := store.ListFarmContacts(suburbs)
	if err != nil {
		return 0, fmt.Errorf("listing contacts: %w", err)
	}

	history, err := store.ListCallLogSince(now.AddDate(0, 0, -appraisalWindowDays))
	if err != nil {
		return 0, fmt.Errorf("loading call history: %w", err)
	}

	scores := make(map[string]int, len(contacts))
	for i := range contacts {
		scores[contacts[i].ID] = propensityFor(&contacts[i], history[contacts[i].ID], now)
	}

	if err := store.UpdatePropensityScores(scores); err != nil {
		return 0, fmt.Errorf("writing scores: %w", err)
	}
	return len(scores), nil
}

func propensityFor(c *models.Contact, history []models.CallLogEntry, now time.Time) int {
	tenure := c.TenureYears
	if tenure > tenureYearCap {
		tenure = tenureYearCap
	}
	score := tenure * tenurePointsPerYear

	switch c.Occupancy {
	case models.OccupancyInvestor:
		score += investorBonus
	case models.OccupancyOwner:
		score += ownerOccupierBonus
	}

	for _, entry := range history {
		if entry.Outcome == models.OutcomeAppraisalBooked {
			score += appraisalBonus
			break
		}
	}

	// a contact spoken to in the last week stays slightly de-prioritised
	// so the list rotates
	if len(history) > 0 && history[0].CalledAt.After(now.AddDate(0, 0, -7)) {
		score -= recentContactPenalty
	}
	if score < 0 {
		score = 0
	}
	return score
}
