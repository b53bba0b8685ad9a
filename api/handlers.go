package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"farm_prospector/models"
)

const (
	defaultListLimit   = 25
	defaultTopUpCount  = 10
	recentEventsWindow = 30 // days
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngestEvent accepts one structured market event (the manual-entry
// path; batch files go through the scheduler's inbox).
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var event models.MarketEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if event.Address == "" {
		respondError(w, http.StatusBadRequest, "address is required")
		return
	}
	if event.Source == "" {
		event.Source = "manual"
	}

	result, err := s.events.Ingest(r.Context(), &event)
	if err != nil {
		log.Printf("ingest event %q: %v", event.Address, err)
		respondError(w, http.StatusInternalServerError, "event could not be processed")
		return
	}

	status := http.StatusCreated
	if !result.Inserted {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", recentEventsWindow)
	limit := queryInt(r, "limit", 100)

	events, err := s.store.ListRecentEvents(time.Now().AddDate(0, 0, -days), limit)
	if err != nil {
		log.Printf("listing recent events: %v", err)
		respondError(w, http.StatusInternalServerError, "events could not be loaded")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleEventContacts(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := s.store.GetEvent(id)
	if err != nil {
		log.Printf("loading event %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "event could not be loaded")
		return
	}
	if event == nil {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}

	var contacts []models.ScoredContact
	if len(event.TopContacts) > 0 {
		if err := json.Unmarshal(event.TopContacts, &contacts); err != nil {
			log.Printf("decoding snapshot for event %d: %v", id, err)
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"event_id": event.ID,
		"address":  event.Address,
		"contacts": contacts,
	})
}

func (s *Server) handleQueueToday(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)

	list, err := s.queue.TodayList(limit)
	if err != nil {
		log.Printf("building call list: %v", err)
		respondError(w, http.StatusInternalServerError, "call list could not be built")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"contacts": list,
		"count":    len(list),
	})
}

func (s *Server) handleQueueTopUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Count <= 0 {
		req.Count = defaultTopUpCount
	}

	added, err := s.queue.TopUp(s.suburbs, req.Count)
	if err != nil {
		log.Printf("queue top-up: %v", err)
		respondError(w, http.StatusInternalServerError, "queue could not be topped up")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"added": added})
}

// handleOutcome records one call outcome. A stale outcome (older than the
// queue row's last recorded call) is logged but does not change queue
// state; the response distinguishes the two.
func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactID string    `json:"contact_id"`
		Outcome   string    `json:"outcome"`
		Notes     string    `json:"notes"`
		CalledAt  time.Time `json:"called_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ContactID == "" {
		respondError(w, http.StatusBadRequest, "contact_id is required")
		return
	}
	outcome := models.Outcome(req.Outcome)
	if !models.KnownOutcome(outcome) {
		respondError(w, http.StatusBadRequest, "unknown outcome")
		return
	}
	if req.CalledAt.IsZero() {
		req.CalledAt = time.Now()
	}

	applied, err := s.queue.RecordOutcomeAt(req.ContactID, outcome, req.Notes, req.CalledAt)
	if err != nil {
		log.Printf("recording outcome for %s: %v", req.ContactID, err)
		respondError(w, http.StatusInternalServerError, "outcome could not be recorded")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// handleUpsertContact adds or refreshes a farm contact. A contact without
// an id gets one minted; the response echoes it.
func (s *Server) handleUpsertContact(w http.ResponseWriter, r *http.Request) {
	var contact models.Contact
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if contact.Address == "" {
		respondError(w, http.StatusBadRequest, "address is required")
		return
	}
	if contact.Source == "" {
		contact.Source = models.ContactSourceFarm
	}

	if err := s.store.UpsertContact(&contact); err != nil {
		log.Printf("upserting contact %q: %v", contact.Address, err)
		respondError(w, http.StatusInternalServerError, "contact could not be saved")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": contact.ID})
}

func (s *Server) handleContactCalls(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	calls, err := s.store.ContactCallLog(id)
	if err != nil {
		log.Printf("loading call log for %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "call log could not be loaded")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"contact_id": id,
		"calls":      calls,
	})
}

func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	runs, err := s.store.ListRecentRuns(limit)
	if err != nil {
		log.Printf("listing ingest runs: %v", err)
		respondError(w, http.StatusInternalServerError, "runs could not be loaded")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}
