package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"farm_prospector/config"
	"farm_prospector/parser"
	"farm_prospector/services"
	"farm_prospector/storage"
)

// Triggerable allows workers to be kicked outside their normal interval.
type Triggerable interface {
	Trigger()
}

// Scheduler runs the periodic jobs: the queue reactivation sweep and the
// inbox poll that feeds raw alert files into batch ingestion.
type Scheduler struct {
	cfg    *config.Config
	store  *storage.SQLiteStore
	events *services.EventService
	queue  *services.QueueService
	cron   *cron.Cron
	stopCh chan struct{}

	geocodeWorker Triggerable
}

func New(cfg *config.Config, store *storage.SQLiteStore, events *services.EventService, queue *services.QueueService) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		store:  store,
		events: events,
		queue:  queue,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

// SetGeocodeWorker registers the backfill worker so fresh ingests can kick
// it without waiting for its interval.
func (s *Scheduler) SetGeocodeWorker(w Triggerable) {
	s.geocodeWorker = w
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.InboxDir != "" {
		go s.pollInbox(ctx)
	}

	if s.cfg.Scheduler.SweepCron != "" {
		log.Printf("Scheduling reactivation sweep: %s", s.cfg.Scheduler.SweepCron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.SweepCron, func() {
			if _, err := s.queue.Reactivate(); err != nil {
				log.Printf("Sweep error: %v", err)
			}
			if n, err := services.RecomputePropensities(s.store, s.cfg.Farm.Suburbs); err != nil {
				log.Printf("Propensity recompute error: %v", err)
			} else {
				log.Printf("Recomputed propensity for %d contacts", n)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid sweep cron expression: %w", err)
		}
	}

	if s.cfg.Scheduler.IngestCron != "" {
		log.Printf("Scheduling inbox ingest: %s", s.cfg.Scheduler.IngestCron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.IngestCron, func() {
			s.drainInbox(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid ingest cron expression: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	close(s.stopCh)
}

// pollInbox watches the inbox directory for dropped alert files between
// cron runs, so manual drops are picked up within a minute.
func (s *Scheduler) pollInbox(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drainInbox(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// drainInbox ingests every file in the inbox directory. File names encode
// their source as a prefix ("agency_alert-monday.html"); processed files
// are renamed with a ".done" suffix so a crash mid-run never loses input.
func (s *Scheduler) drainInbox(ctx context.Context) {
	entries, err := os.ReadDir(s.cfg.InboxDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Error reading inbox: %v", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".done") {
			continue
		}

		source := sourceForFile(entry.Name())
		if source == "" {
			log.Printf("Warning: no parser for inbox file %s, skipping", entry.Name())
			continue
		}

		path := filepath.Join(s.cfg.InboxDir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Error reading %s: %v", path, err)
			continue
		}

		run, err := s.events.IngestBatch(ctx, source, string(raw))
		if err != nil {
			log.Printf("Ingest error for %s: %v", path, err)
			continue
		}
		log.Printf("Ingested %s: %d parsed, %d inserted, %d skipped, %d errors",
			entry.Name(), run.EventsParsed, run.EventsInserted, run.EventsSkipped, run.ErrorsCount)

		if err := os.Rename(path, path+".done"); err != nil {
			log.Printf("Warning: renaming processed file %s: %v", path, err)
		}

		if run.EventsInserted > 0 && s.geocodeWorker != nil {
			s.geocodeWorker.Trigger()
		}
	}
}

// sourceForFile matches an inbox file name against the registered parser
// source tags by prefix.
func sourceForFile(name string) string {
	for _, source := range parser.Sources() {
		if strings.HasPrefix(name, source) {
			return source
		}
	}
	return ""
}
