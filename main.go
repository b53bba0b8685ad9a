package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farm_prospector/api"
	"farm_prospector/config"
	"farm_prospector/geocode"
	"farm_prospector/logging"
	"farm_prospector/scheduler"
	"farm_prospector/services"
	"farm_prospector/storage"
	"farm_prospector/workers"
)

var (
	ingestFile = flag.String("ingest", "", "Ingest one raw event file and exit")
	ingestSrc  = flag.String("source", "portal_digest", "Parser source tag for -ingest")
	sweepNow   = flag.Bool("sweep", false, "Run the queue reactivation sweep once and exit")
	serveOnly  = flag.Bool("serve", false, "Run the HTTP API only (no scheduler or workers)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("prospector.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting farm_prospector...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Farm area: %v", cfg.Farm.Suburbs)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer store.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	ctx := context.Background()

	var crm *storage.CRMStore
	if cfg.CRM.DBURL != "" {
		crm, err = storage.NewCRMStore(ctx, cfg.CRM.DBURL)
		if err != nil {
			log.Fatalf("Failed to connect to CRM database: %v", err)
		}
		defer crm.Close()
		log.Println("CRM contact pool connected")
	}

	resolver := geocode.NewResolver(store, geocode.NewClient(cfg.Geocode))

	var crmReader services.CRMReader
	if crm != nil {
		crmReader = crm
	}
	scorer := services.NewScoringService(store, crmReader, resolver, cfg.Farm)
	events := services.NewEventService(store, scorer)
	queue := services.NewQueueService(store, cfg.Farm.Queue)

	if *ingestFile != "" {
		raw, err := os.ReadFile(*ingestFile)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *ingestFile, err)
		}
		run, err := events.IngestBatch(ctx, *ingestSrc, string(raw))
		if err != nil {
			log.Fatalf("Ingest failed: %v", err)
		}
		log.Printf("Ingest complete: %d parsed, %d inserted, %d skipped, %d errors",
			run.EventsParsed, run.EventsInserted, run.EventsSkipped, run.ErrorsCount)
		return
	}

	if *sweepNow {
		n, err := queue.Reactivate()
		if err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		log.Printf("Sweep complete: %d entries reactivated", n)
		return
	}

	server := api.NewServer(store, events, queue, cfg.Farm.Suburbs)

	if *serveOnly {
		log.Printf("API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(cfg.HTTPAddr); err != nil {
			log.Fatalf("API server: %v", err)
		}
		return
	}

	// Daemon mode: scheduler + API + geocode backfill
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, store, events, queue)

	geocodeWorker := workers.NewGeocodeWorker(store, resolver)
	sched.SetGeocodeWorker(geocodeWorker)
	go geocodeWorker.Run(ctx, 25, 15*time.Minute)
	log.Println("Geocode worker started")

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	go func() {
		log.Printf("API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(cfg.HTTPAddr); err != nil {
			log.Fatalf("API server: %v", err)
		}
	}()

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down")
}
