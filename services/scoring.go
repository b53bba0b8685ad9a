package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"farm_prospector/address"
	"farm_prospector/config"
	"farm_prospector/geocode"
	"farm_prospector/models"
	"farm_prospector/storage"
)

// GeoResolver is the geocode boundary; nil disables geo-based scoring.
type GeoResolver interface {
	Resolve(ctx context.Context, streetPart, suburb string) (*models.GeocodeEntry, error)
}

// CRMReader supplies the secondary CRM-only contact pool; nil disables it.
type CRMReader interface {
	ListContacts(ctx context.Context, suburbs []string) ([]models.Contact, error)
}

// ScoringService ranks the contact pool around a market event by
// likelihood to transact.
type ScoringService struct {
	store *storage.SQLiteStore
	crm   CRMReader
	geo   GeoResolver
	cfg   config.FarmConfig
}

func NewScoringService(store *storage.SQLiteStore, crm CRMReader, geo GeoResolver, cfg config.FarmConfig) *ScoringService {
	return &ScoringService{store: store, crm: crm, geo: geo, cfg: cfg}
}

// Score builds the candidate pool for an event and returns the ranked
// top-N snapshot. Writes only to the geocode cache and the local mirror
// of CRM contacts.
func (s *ScoringService) Score(ctx context.Context, event *models.MarketEvent) ([]models.ScoredContact, error) {
	pool, err := s.BuildPool(ctx, event)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	since := now.AddDate(0, 0, -s.cfg.Scoring.OlderWindowDays)
	history, err := s.store.ListCallLogSince(since)
	if err != nil {
		return nil, err
	}

	eventGeo := s.resolve(ctx, address.StreetPart(event.Address), event.Suburb)

	geos := make(map[string]*models.GeocodeEntry, len(pool))
	if eventGeo != nil {
		for _, c := range pool {
			geos[c.ID] = s.resolve(ctx, c.StreetPart, c.Suburb)
		}
	}

	return s.rank(event, eventGeo, pool, geos, history, now), nil
}

// BuildPool assembles scoring candidates: farm contacts first, then CRM
// contacts for addresses the farm pool doesn't cover. The vendor's own
// address is always excluded.
func (s *ScoringService) BuildPool(ctx context.Context, event *models.MarketEvent) ([]models.Contact, error) {
	farm, err := s.store.ListFarmContacts(s.cfg.Suburbs)
	if err != nil {
		return nil, err
	}

	eventStreet := address.StreetPart(event.Address)
	seen := make(map[string]bool)
	seenAddress := make(map[string]bool)
	var pool []models.Contact

	for _, c := range farm {
		if !c.Callable() {
			continue
		}
		if c.StreetPart == "" {
			c.StreetPart = address.StreetPart(c.Address)
		}
		if c.StreetPart != "" && c.StreetPart == eventStreet {
			continue // the vendor's own address
		}
		if c.StreetPart != "" && seenAddress[c.StreetPart] {
			continue // one contact per physical address
		}
		seen[c.ID] = true
		if c.StreetPart != "" {
			seenAddress[c.StreetPart] = true
		}
		pool = append(pool, c)
	}

	if s.crm != nil {
		crmContacts, err := s.crm.ListContacts(ctx, s.cfg.Suburbs)
		if err != nil {
			return nil, err
		}
		for _, c := range crmContacts {
			if !c.Callable() || seen[c.ID] {
				continue
			}
			if c.StreetPart == "" {
				c.StreetPart = address.StreetPart(c.Address)
			}
			if c.StreetPart != "" && c.StreetPart == eventStreet {
				continue
			}
			// the farm record is the richer source; never double count
			// one address from both pools
			if c.StreetPart != "" && seenAddress[c.StreetPart] {
				continue
			}
			// mirror into the local store so queue rows can join on it
			if err := s.store.UpsertContact(&c); err != nil {
				return nil, err
			}
			seen[c.ID] = true
			if c.StreetPart != "" {
				seenAddress[c.StreetPart] = true
			}
			pool = append(pool, c)
		}
	}

	return pool, nil
}

// rank computes composite scores and returns the sorted, truncated
// snapshot. Ties keep candidate insertion order (stable sort).
func (s *ScoringService) rank(event *models.MarketEvent, eventGeo *models.GeocodeEntry,
	pool []models.Contact, geos map[string]*models.GeocodeEntry,
	history map[string][]models.CallLogEntry, now time.Time) []models.ScoredContact {

	scored := make([]models.ScoredContact, 0, len(pool))
	for _, c := range pool {
		total := c.PropensityScore +
			s.geoScore(event, eventGeo, &c, geos[c.ID]) +
			s.callBonus(history[c.ID], now) +
			s.comparableBonus(event, &c)

		scored = append(scored, models.ScoredContact{
			ContactID: c.ID,
			Name:      c.Name,
			Phone:     c.Phone,
			Address:   c.Address,
			Score:     total,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > s.cfg.Scoring.TopN {
		scored = scored[:s.cfg.Scoring.TopN]
	}
	return scored
}

// geoScore maps a contact's proximity to the event onto the configured
// tier ladder: same street, then haversine distance bands, then the
// numbered-avenue adjacency heuristic, then the suburb-only floor.
func (s *ScoringService) geoScore(event *models.MarketEvent, eventGeo *models.GeocodeEntry,
	c *models.Contact, contactGeo *models.GeocodeEntry) int {

	sc := s.cfg.Scoring
	eventStreet := address.StreetPart(event.Address)

	keyword := address.StreetKeyword(c.StreetPart)
	if keyword != "" && strings.Contains(eventStreet, keyword) {
		return sc.SameStreet
	}

	if eventGeo != nil && contactGeo != nil {
		dist := geocode.Haversine(eventGeo.Lat, eventGeo.Lon, contactGeo.Lat, contactGeo.Lon)
		for _, tier := range sc.GeoTiers {
			if dist <= tier.MaxMeters {
				return tier.Score
			}
		}
		return sc.SuburbFloor
	}

	if eventOrd, ok := address.AvenueOrdinal(event.Address); ok {
		if contactOrd, ok := address.AvenueOrdinal(c.StreetPart); ok {
			switch diff := absInt(eventOrd - contactOrd); diff {
			case 1:
				return sc.AvenueAdjacent
			case 2:
				return sc.AvenueTwoApart
			}
		}
	}

	return sc.SuburbFloor
}

// callBonus returns the single largest applicable recency bonus for a
// contact's call history. Bonuses never stack across calls.
func (s *ScoringService) callBonus(history []models.CallLogEntry, now time.Time) int {
	sc := s.cfg.Scoring
	recentCutoff := now.AddDate(0, 0, -sc.RecentWindowDays)
	olderCutoff := now.AddDate(0, 0, -sc.OlderWindowDays)

	best := 0
	for _, entry := range history {
		if entry.CalledAt.Before(olderCutoff) {
			continue
		}
		if negativeOutcome(entry.Outcome) {
			continue
		}

		var bonus int
		switch {
		case entry.Outcome == models.OutcomeCallbackRequested && !entry.CalledAt.Before(recentCutoff):
			bonus = sc.CallbackBonus
		case !entry.CalledAt.Before(recentCutoff):
			bonus = sc.RecentBonus
		default:
			bonus = sc.OlderBonus
		}
		if bonus > best {
			best = bonus
		}
	}
	return best
}

func negativeOutcome(o models.Outcome) bool {
	switch o {
	case models.OutcomeNotInterested, models.OutcomeDoNotCall,
		models.OutcomeWrongNumber, models.OutcomeDisconnected:
		return true
	}
	return false
}

// comparableBonus rewards contacts whose property resembles the event's:
// same category bucket, plus a bed-count closeness bonus.
func (s *ScoringService) comparableBonus(event *models.MarketEvent, c *models.Contact) int {
	sc := s.cfg.Scoring
	bonus := 0

	if models.BucketPropertyType(c.PropertyType) == event.Category() {
		bonus += sc.CategoryBonus
	}

	if event.Beds > 0 && c.Beds > 0 {
		switch absInt(event.Beds - c.Beds) {
		case 0:
			bonus += sc.BedExactBonus
		case 1:
			bonus += sc.BedCloseBonus
		}
	}
	return bonus
}

// Comparables applies the progressive relaxation ladder used by the batch
// proximity path: strict category+bed filtering first, relaxed step by
// step until the minimum result threshold is met. The most relaxed step's
// output is returned when no step reaches the threshold, so sparse areas
// still get a usable list.
func (s *ScoringService) Comparables(event *models.MarketEvent, pool []models.Contact) []models.Contact {
	category := event.Category()

	steps := []func(c *models.Contact) bool{
		func(c *models.Contact) bool {
			return models.BucketPropertyType(c.PropertyType) == category && bedsWithin(event, c, 1)
		},
		func(c *models.Contact) bool {
			return models.BucketPropertyType(c.PropertyType) == category && bedsWithin(event, c, 2)
		},
		func(c *models.Contact) bool {
			return models.BucketPropertyType(c.PropertyType) == category
		},
		func(c *models.Contact) bool { return true },
	}

	var result []models.Contact
	for _, step := range steps {
		result = result[:0]
		for i := range pool {
			if step(&pool[i]) {
				result = append(result, pool[i])
			}
		}
		if len(result) >= s.cfg.Scoring.MinResults {
			return result
		}
	}
	return result
}

func bedsWithin(event *models.MarketEvent, c *models.Contact, tolerance int) bool {
	if event.Beds == 0 || c.Beds == 0 {
		return false
	}
	return absInt(event.Beds-c.Beds) <= tolerance
}

// DedupAcrossEvents keeps each contact only under the event where its
// score is highest, for rendering multiple events together. Stored
// snapshots are not touched.
func DedupAcrossEvents(events []models.MarketEvent) map[int64][]models.ScoredContact {
	type placement struct {
		eventID int64
		score   int
	}
	best := make(map[string]placement)

	snapshots := make(map[int64][]models.ScoredContact, len(events))
	for _, e := range events {
		if len(e.TopContacts) == 0 {
			continue
		}
		var snapshot []models.ScoredContact
		if err := json.Unmarshal(e.TopContacts, &snapshot); err != nil {
			continue
		}
		snapshots[e.ID] = snapshot
		for _, sc := range snapshot {
			if p, ok := best[sc.ContactID]; !ok || sc.Score > p.score {
				best[sc.ContactID] = placement{eventID: e.ID, score: sc.Score}
			}
		}
	}

	out := make(map[int64][]models.ScoredContact, len(snapshots))
	for id, snapshot := range snapshots {
		kept := make([]models.ScoredContact, 0, len(snapshot))
		for _, sc := range snapshot {
			if best[sc.ContactID].eventID == id {
				kept = append(kept, sc)
			}
		}
		out[id] = kept
	}
	return out
}

// resolve absorbs geocode failures: scoring treats an unresolvable address
// as "no geo boost", never as an error.
func (s *ScoringService) resolve(ctx context.Context, streetPart, suburb string) *models.GeocodeEntry {
	if s.geo == nil || streetPart == "" {
		return nil
	}
	entry, err := s.geo.Resolve(ctx, streetPart, suburb)
	if err != nil {
		return nil
	}
	return entry
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
