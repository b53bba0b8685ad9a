package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"farm_prospector/models"
)

func TestGeoScoreTiers(t *testing.T) {
	store := newTestStore(t)
	s := NewScoringService(store, nil, nil, testFarmConfig())

	event := &models.MarketEvent{Address: "23 Wallace Street, Willoughby"}

	tests := []struct {
		name    string
		contact models.Contact
		geo     *models.GeocodeEntry
		event   *models.MarketEvent
		evtGeo  *models.GeocodeEntry
		want    int
	}{
		{
			name:    "same street",
			contact: models.Contact{StreetPart: "11 WALLACE ST"},
			event:   event,
			want:    40,
		},
		{
			name:    "first distance tier",
			contact: models.Contact{StreetPart: "4 PENSHURST ST"},
			event:   event,
			evtGeo:  &models.GeocodeEntry{Lat: -33.8000, Lon: 151.2000},
			geo:     &models.GeocodeEntry{Lat: -33.8005, Lon: 151.2000}, // ~55m south
			want:    35,
		},
		{
			name:    "mid distance tier",
			contact: models.Contact{StreetPart: "4 PENSHURST ST"},
			event:   event,
			evtGeo:  &models.GeocodeEntry{Lat: -33.8000, Lon: 151.2000},
			geo:     &models.GeocodeEntry{Lat: -33.8060, Lon: 151.2000}, // ~660m
			want:    20,
		},
		{
			name:    "beyond last tier falls to suburb floor",
			contact: models.Contact{StreetPart: "4 PENSHURST ST"},
			event:   event,
			evtGeo:  &models.GeocodeEntry{Lat: -33.8000, Lon: 151.2000},
			geo:     &models.GeocodeEntry{Lat: -33.8500, Lon: 151.2000}, // ~5.5km
			want:    5,
		},
		{
			name:    "adjacent numbered avenue",
			contact: models.Contact{StreetPart: "9 FIFTH AVE"},
			event:   &models.MarketEvent{Address: "4 Fourth Avenue, Willoughby"},
			want:    30,
		},
		{
			name:    "avenue two apart",
			contact: models.Contact{StreetPart: "9 SIXTH AVE"},
			event:   &models.MarketEvent{Address: "4 Fourth Avenue, Willoughby"},
			want:    18,
		},
		{
			name:    "distant avenue falls to suburb floor",
			contact: models.Contact{StreetPart: "9 TENTH AVE"},
			event:   &models.MarketEvent{Address: "4 Fourth Avenue, Willoughby"},
			want:    5,
		},
		{
			name:    "no geo data at all",
			contact: models.Contact{StreetPart: "4 PENSHURST ST"},
			event:   event,
			want:    5,
		},
	}

	for _, tt := range tests {
		got := s.geoScore(tt.event, tt.evtGeo, &tt.contact, tt.geo)
		if got != tt.want {
			t.Errorf("%s: geoScore = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestCallBonus(t *testing.T) {
	store := newTestStore(t)
	s := NewScoringService(store, nil, nil, testFarmConfig())
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	days := func(n int) time.Time { return now.AddDate(0, 0, -n) }

	tests := []struct {
		name    string
		history []models.CallLogEntry
		want    int
	}{
		{"no history", nil, 0},
		{
			"recent callback wins the largest bonus",
			[]models.CallLogEntry{{Outcome: models.OutcomeCallbackRequested, CalledAt: days(10)}},
			25,
		},
		{
			"recent connect",
			[]models.CallLogEntry{{Outcome: models.OutcomeConnected, CalledAt: days(10)}},
			15,
		},
		{
			"older positive outcome decays",
			[]models.CallLogEntry{{Outcome: models.OutcomeLeftMessage, CalledAt: days(60)}},
			8,
		},
		{
			"outcomes older than the window contribute nothing",
			[]models.CallLogEntry{{Outcome: models.OutcomeConnected, CalledAt: days(120)}},
			0,
		},
		{
			"callback outside the recent window scores as older",
			[]models.CallLogEntry{{Outcome: models.OutcomeCallbackRequested, CalledAt: days(45)}},
			8,
		},
		{
			"negative outcomes never add",
			[]models.CallLogEntry{{Outcome: models.OutcomeNotInterested, CalledAt: days(5)}},
			0,
		},
		{
			"bonuses take the single largest, no stacking",
			[]models.CallLogEntry{
				{Outcome: models.OutcomeCallbackRequested, CalledAt: days(3)},
				{Outcome: models.OutcomeConnected, CalledAt: days(8)},
				{Outcome: models.OutcomeLeftMessage, CalledAt: days(50)},
			},
			25,
		},
	}

	for _, tt := range tests {
		if got := s.callBonus(tt.history, now); got != tt.want {
			t.Errorf("%s: callBonus = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestComparableBonus(t *testing.T) {
	store := newTestStore(t)
	s := NewScoringService(store, nil, nil, testFarmConfig())

	event := &models.MarketEvent{PropertyType: "house", Beds: 4}

	tests := []struct {
		name    string
		contact models.Contact
		want    int
	}{
		{"same category and beds", models.Contact{PropertyType: "townhouse", Beds: 4}, 18},
		{"same category, one bed off", models.Contact{PropertyType: "house", Beds: 3}, 14},
		{"same category, beds far off", models.Contact{PropertyType: "house", Beds: 1}, 10},
		{"different category, same beds", models.Contact{PropertyType: "apartment", Beds: 4}, 8},
		{"unknown beds skip the bed bonus", models.Contact{PropertyType: "house", Beds: 0}, 10},
		{"nothing in common", models.Contact{PropertyType: "unit", Beds: 1}, 0},
	}

	for _, tt := range tests {
		if got := s.comparableBonus(event, &tt.contact); got != tt.want {
			t.Errorf("%s: comparableBonus = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestComparablesRelaxation(t *testing.T) {
	store := newTestStore(t)
	cfg := testFarmConfig()
	cfg.Scoring.MinResults = 3
	s := NewScoringService(store, nil, nil, cfg)

	event := &models.MarketEvent{PropertyType: "house", Beds: 4}

	pool := []models.Contact{
		{ID: "c1", PropertyType: "house", Beds: 4},
		{ID: "c2", PropertyType: "house", Beds: 3},
		{ID: "c3", PropertyType: "house", Beds: 6},
		{ID: "c4", PropertyType: "unit", Beds: 4},
		{ID: "c5", PropertyType: "house", Beds: 2},
	}

	got := s.Comparables(event, pool)
	// strict step yields only c1+c2; the beds<=2 step adds c3+c5 and meets
	// the threshold
	if len(got) != 4 {
		t.Fatalf("Comparables returned %d contacts, want 4", len(got))
	}
	for _, c := range got {
		if c.ID == "c4" {
			t.Fatalf("unit contact admitted before category relaxation was needed")
		}
	}

	// an impossible threshold falls through to the fully relaxed step
	cfg.Scoring.MinResults = 10
	s = NewScoringService(store, nil, nil, cfg)
	if got := s.Comparables(event, pool); len(got) != len(pool) {
		t.Fatalf("fully relaxed step returned %d contacts, want %d", len(got), len(pool))
	}
}

func TestScoreExcludesVendorAndUncallable(t *testing.T) {
	store := newTestStore(t)
	s := NewScoringService(store, nil, nil, testFarmConfig())

	seedContact(t, store, models.Contact{ID: "vendor", Name: "Vendor", Address: "23 Wallace Street, Willoughby"})
	seedContact(t, store, models.Contact{ID: "dnc", Name: "Flagged", Address: "10 Wallace Street, Willoughby", DoNotCall: true})
	seedContact(t, store, models.Contact{ID: "nophone", Name: "No Phone", Address: "12 Wallace Street, Willoughby", Phone: "n/a"})
	seedContact(t, store, models.Contact{ID: "ok", Name: "Neighbour", Address: "14 Wallace Street, Willoughby"})

	event := seedEvent(t, store, models.MarketEvent{
		Address: "23 Wallace Street, Willoughby",
		Type:    models.EventListing,
	})

	scored, err := s.Score(context.Background(), &event)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(scored) != 1 {
		t.Fatalf("got %d scored contacts, want 1: %+v", len(scored), scored)
	}
	if scored[0].ContactID != "ok" {
		t.Fatalf("scored contact = %s, want ok", scored[0].ContactID)
	}
}

func TestScoreOrdersAndTruncates(t *testing.T) {
	store := newTestStore(t)
	cfg := testFarmConfig()
	cfg.Scoring.TopN = 2
	s := NewScoringService(store, nil, nil, cfg)

	// all on the event's street so the geo component is equal
	seedContact(t, store, models.Contact{ID: "low", Address: "2 Wallace Street, Willoughby", PropensityScore: 10})
	seedContact(t, store, models.Contact{ID: "high", Address: "4 Wallace Street, Willoughby", PropensityScore: 90})
	seedContact(t, store, models.Contact{ID: "mid", Address: "6 Wallace Street, Willoughby", PropensityScore: 50})

	event := seedEvent(t, store, models.MarketEvent{
		Address: "23 Wallace Street, Willoughby",
		Type:    models.EventSold,
	})

	scored, err := s.Score(context.Background(), &event)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("got %d scored contacts, want top 2", len(scored))
	}
	if scored[0].ContactID != "high" || scored[1].ContactID != "mid" {
		t.Fatalf("order = %s, %s; want high, mid", scored[0].ContactID, scored[1].ContactID)
	}
	if scored[0].Score <= scored[1].Score {
		t.Fatalf("scores not descending: %d then %d", scored[0].Score, scored[1].Score)
	}
}

func TestDedupAcrossEvents(t *testing.T) {
	snapshot := func(contacts ...models.ScoredContact) json.RawMessage {
		raw, err := json.Marshal(contacts)
		if err != nil {
			t.Fatalf("marshal snapshot: %v", err)
		}
		return raw
	}

	events := []models.MarketEvent{
		{ID: 1, TopContacts: snapshot(
			models.ScoredContact{ContactID: "a", Score: 80},
			models.ScoredContact{ContactID: "b", Score: 40},
		)},
		{ID: 2, TopContacts: snapshot(
			models.ScoredContact{ContactID: "a", Score: 60},
			models.ScoredContact{ContactID: "c", Score: 55},
		)},
	}

	out := DedupAcrossEvents(events)

	ids := func(eventID int64) []string {
		var got []string
		for _, sc := range out[eventID] {
			got = append(got, sc.ContactID)
		}
		return got
	}

	if got := ids(1); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("event 1 kept %v, want [a b]", got)
	}
	if got := ids(2); len(got) != 1 || got[0] != "c" {
		t.Fatalf("event 2 kept %v, want [c] (a belongs to its higher-scoring event)", got)
	}
}
