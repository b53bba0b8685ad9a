package services

import (
	"path/filepath"
	"testing"
	"time"

	"farm_prospector/address"
	"farm_prospector/config"
	"farm_prospector/models"
	"farm_prospector/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testFarmConfig() config.FarmConfig {
	cfg := config.DefaultFarmConfig()
	cfg.Suburbs = []string{"Willoughby"}
	return cfg
}

func seedContact(t *testing.T, store *storage.SQLiteStore, c models.Contact) models.Contact {
	t.Helper()
	if c.Suburb == "" {
		c.Suburb = "Willoughby"
	}
	if c.Phone == "" {
		c.Phone = "0412 345 678"
	}
	if c.Source == "" {
		c.Source = models.ContactSourceFarm
	}
	if err := store.UpsertContact(&c); err != nil {
		t.Fatalf("seeding contact %s: %v", c.ID, err)
	}
	return c
}

func seedEvent(t *testing.T, store *storage.SQLiteStore, e models.MarketEvent) models.MarketEvent {
	t.Helper()
	if e.Suburb == "" {
		e.Suburb = "WILLOUGHBY"
	}
	if e.NormalizedAddress == "" {
		e.NormalizedAddress = address.Normalize(e.Address)
	}
	if e.EventDate.IsZero() {
		e.EventDate = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	}
	if e.DetectedAt.IsZero() {
		e.DetectedAt = e.EventDate
	}
	if e.Status == "" {
		e.Status = models.EventStatusActive
	}
	if _, err := store.InsertEvent(&e); err != nil {
		t.Fatalf("seeding event %s: %v", e.Address, err)
	}
	return e
}
