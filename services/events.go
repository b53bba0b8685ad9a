package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"farm_prospector/address"
	"farm_prospector/models"
	"farm_prospector/parser"
	"farm_prospector/storage"
)

// ErrInvalidEvent marks an event rejected by validation, as opposed to a
// storage failure. Batch ingestion skips and counts these; any other error
// aborts the run.
var ErrInvalidEvent = errors.New("invalid event")

// EventService ingests market events, links sales back to their listings
// and fans each new event out into a scored contact snapshot plus call
// queue entries.
type EventService struct {
	store  *storage.SQLiteStore
	scorer *ScoringService
}

func NewEventService(store *storage.SQLiteStore, scorer *ScoringService) *EventService {
	return &EventService{store: store, scorer: scorer}
}

// Ingest normalizes, dedups and stores one event. A duplicate (same
// normalized address, type and event date) is a silent no-op reporting
// the existing event's snapshot size.
func (s *EventService) Ingest(ctx context.Context, e *models.MarketEvent) (*models.IngestResult, error) {
	if strings.TrimSpace(e.Address) == "" {
		return nil, fmt.Errorf("%w: event has no address", ErrInvalidEvent)
	}

	e.NormalizedAddress = address.Normalize(e.Address)
	if e.Suburb == "" {
		e.Suburb = address.Suburb(e.Address)
	}
	if e.EventDate.IsZero() {
		e.EventDate = time.Now()
	}
	if e.DetectedAt.IsZero() {
		e.DetectedAt = time.Now()
	}
	if e.Status == "" {
		e.Status = models.EventStatusActive
	}

	inserted, err := s.store.InsertEvent(e)
	if err != nil {
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	if !inserted {
		existing, err := s.store.GetEvent(e.ID)
		if err != nil {
			return nil, err
		}
		return &models.IngestResult{
			Inserted:     false,
			EventID:      existing.ID,
			ContactCount: snapshotSize(existing.TopContacts),
		}, nil
	}

	if e.Type == models.EventSold || e.Type == models.EventUnlisted {
		s.linkToListing(e)
	}

	scored, err := s.scorer.Score(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("scoring event %d: %w", e.ID, err)
	}
	if err := s.store.SetEventTopContacts(e.ID, scored); err != nil {
		return nil, err
	}

	intel := eventIntel(e)
	now := time.Now()
	for _, sc := range scored {
		c, err := s.store.GetContact(sc.ContactID)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.Enqueue(c, intel, now); err != nil {
			return nil, fmt.Errorf("enqueueing contact %s: %w", c.ID, err)
		}
	}

	return &models.IngestResult{
		Inserted:     true,
		EventID:      e.ID,
		ContactCount: len(scored),
	}, nil
}

// IngestBatch parses raw input with the registered parser for source and
// ingests every event, recording counts in an ingest run row. Events
// failing validation are counted and skipped; any other failure marks the
// run failed and aborts it.
func (s *EventService) IngestBatch(ctx context.Context, source, raw string) (*models.IngestRun, error) {
	p, ok := parser.ForSource(source)
	if !ok {
		return nil, fmt.Errorf("no parser registered for source %q", source)
	}

	run := &models.IngestRun{
		Source:    source,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := s.store.CreateRun(run)
	if err != nil {
		return nil, err
	}
	run.ID = runID

	events, err := p.Parse(raw)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		s.finishRun(run)
		return run, fmt.Errorf("parsing %s input: %w", source, err)
	}
	run.EventsParsed = len(events)

	for i := range events {
		events[i].Source = source
		result, err := s.Ingest(ctx, &events[i])
		if errors.Is(err, ErrInvalidEvent) {
			log.Printf("Warning: skipping event at %q: %v", events[i].Address, err)
			run.ErrorsCount++
			continue
		}
		if err != nil {
			run.Status = models.RunStatusFailed
			run.ErrorsCount++
			s.finishRun(run)
			return run, fmt.Errorf("ingesting event at %q: %w", events[i].Address, err)
		}
		if result.Inserted {
			run.EventsInserted++
		} else {
			run.EventsSkipped++
		}
	}

	run.Status = models.RunStatusCompleted
	s.finishRun(run)
	return run, nil
}

// linkToListing back-links a sold or withdrawn event to the most recent
// listing of the same address and closes that listing. Absence of a
// listing is normal for sales detected outside the farm's watch window.
func (s *EventService) linkToListing(e *models.MarketEvent) {
	listing, err := s.store.FindLatestListingEvent(e.NormalizedAddress)
	if err != nil {
		log.Printf("Warning: looking up listing for %s: %v", e.NormalizedAddress, err)
		return
	}
	if listing == nil {
		return
	}

	status := models.EventStatusSold
	if e.Type == models.EventUnlisted {
		status = models.EventStatusWithdrawn
	}
	if err := s.store.UpdateEventStatus(listing.ID, status, e.Price, nil); err != nil {
		log.Printf("Warning: closing listing %d: %v", listing.ID, err)
		return
	}
	if err := s.store.UpdateEventStatus(e.ID, e.Status, "", &listing.ID); err != nil {
		log.Printf("Warning: linking event %d to listing %d: %v", e.ID, listing.ID, err)
		return
	}
	e.LinkedEventID = &listing.ID
}

func (s *EventService) finishRun(run *models.IngestRun) {
	now := time.Now()
	run.FinishedAt = &now
	if err := s.store.UpdateRun(run); err != nil {
		log.Printf("Warning: updating ingest run %d: %v", run.ID, err)
	}
}

// eventIntel is the one-line context shown next to a queue entry so the
// caller knows why the contact surfaced.
func eventIntel(e *models.MarketEvent) string {
	var b strings.Builder
	switch e.Type {
	case models.EventSold:
		b.WriteString("Sold nearby: ")
	case models.EventListing, models.EventRelisted:
		b.WriteString("New listing nearby: ")
	case models.EventPriceChange:
		b.WriteString("Price change nearby: ")
	default:
		b.WriteString("Market activity nearby: ")
	}
	b.WriteString(e.Address)
	if e.Price != "" {
		b.WriteString(" (")
		b.WriteString(e.Price)
		b.WriteString(")")
	}
	return b.String()
}

func snapshotSize(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var snapshot []models.ScoredContact
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return 0
	}
	return len(snapshot)
}
