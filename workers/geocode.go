// Package workers holds the background batch workers that run alongside
// the scheduler in daemon mode.
package workers

import (
	"context"
	"log"
	"time"

	"farm_prospector/geocode"
	"farm_prospector/storage"
)

// GeocodeWorker backfills the geocode cache for contacts whose street has
// no coordinates yet. The resolver's own pacing keeps the provider at one
// request per second regardless of batch size.
type GeocodeWorker struct {
	store     *storage.SQLiteStore
	resolver  *geocode.Resolver
	triggerCh chan struct{}
}

func NewGeocodeWorker(store *storage.SQLiteStore, resolver *geocode.Resolver) *GeocodeWorker {
	return &GeocodeWorker{
		store:     store,
		resolver:  resolver,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run a batch immediately.
func (w *GeocodeWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *GeocodeWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Geocode worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *GeocodeWorker) processBatch(ctx context.Context, batchSize int) {
	contacts, err := w.store.ContactsMissingGeocode(batchSize)
	if err != nil {
		log.Printf("Geocode worker: query error: %v", err)
		return
	}
	if len(contacts) == 0 {
		return
	}

	resolved := 0
	for _, c := range contacts {
		if ctx.Err() != nil {
			return
		}
		entry, err := w.resolver.Resolve(ctx, c.StreetPart, c.Suburb)
		if err != nil {
			log.Printf("Geocode worker: %s: %v", c.StreetPart, err)
			continue
		}
		if entry != nil {
			resolved++
		}
	}
	log.Printf("Geocode worker: resolved %d/%d addresses", resolved, len(contacts))
}
