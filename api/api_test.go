package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm_prospector/config"
	"farm_prospector/models"
	"farm_prospector/services"
	"farm_prospector/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultFarmConfig()
	cfg.Suburbs = []string{"Willoughby"}

	scorer := services.NewScoringService(store, nil, nil, cfg)
	events := services.NewEventService(store, scorer)
	queue := services.NewQueueService(store, cfg.Queue)
	return NewServer(store, events, queue, cfg.Suburbs), store
}

func seedContact(t *testing.T, store *storage.SQLiteStore, id, addr string, propensity int) models.Contact {
	t.Helper()
	c := models.Contact{
		ID:              id,
		Name:            "Contact " + id,
		Phone:           "0412 345 678",
		Address:         addr,
		Suburb:          "Willoughby",
		PropensityScore: propensity,
		Source:          models.ContactSourceFarm,
	}
	require.NoError(t, store.UpsertContact(&c))
	return c
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestEventEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	router := srv.Router()
	seedContact(t, store, "n1", "14 Wallace Street, Willoughby", 20)

	payload := map[string]interface{}{
		"address":    "23 Wallace Street, Willoughby",
		"type":       "sold",
		"price":      "$2,100,000",
		"event_date": time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/events", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result models.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Inserted)
	assert.Equal(t, 1, result.ContactCount)

	// second submission of the same event is a no-op, not an error
	rec = doJSON(t, router, http.MethodPost, "/api/v1/events", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Inserted)
}

func TestIngestEventValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/events", map[string]string{"type": "sold"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEventContactsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	router := srv.Router()
	seedContact(t, store, "n1", "14 Wallace Street, Willoughby", 20)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/events", map[string]interface{}{
		"address": "23 Wallace Street, Willoughby",
		"type":    "listing",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var result models.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	rec = doJSON(t, router, http.MethodGet,
		"/api/v1/events/"+strconv.FormatInt(result.EventID, 10)+"/contacts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Contacts []models.ScoredContact `json:"contacts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Contacts, 1)
	assert.Equal(t, "n1", resp.Contacts[0].ContactID)
	assert.Greater(t, resp.Contacts[0].Score, 0)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/events/99999/contacts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueTodayAndOutcome(t *testing.T) {
	srv, store := newTestServer(t)
	router := srv.Router()

	c := seedContact(t, store, "c1", "14 Wallace Street, Willoughby", 50)
	_, err := store.Enqueue(&c, "sold nearby", time.Now().AddDate(0, 0, -1))
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/queue/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Contacts []models.QueueContact `json:"contacts"`
		Count    int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "c1", list.Contacts[0].ContactID)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/outcomes", map[string]string{
		"contact_id": "c1",
		"outcome":    "left_message",
		"notes":      "call back Tuesday",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the snoozed contact no longer surfaces
	rec = doJSON(t, router, http.MethodGet, "/api/v1/queue/today", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/contacts/c1/calls", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var calls struct {
		Calls []models.CallLogEntry `json:"calls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calls))
	require.Len(t, calls.Calls, 1)
	assert.Equal(t, "call back Tuesday", calls.Calls[0].Notes)
}

func TestOutcomeValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/outcomes", map[string]string{
		"outcome": "left_message",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/outcomes", map[string]string{
		"contact_id": "c1",
		"outcome":    "yelled_back",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertContactEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/contacts", map[string]string{
		"name":    "Jo Chen",
		"phone":   "0412 111 222",
		"address": "14 Wallace Street, Willoughby",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])

	got, err := store.GetContact(resp["id"])
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "14 WALLACE ST", got.StreetPart)

	// missing address is rejected
	rec = doJSON(t, router, http.MethodPost, "/api/v1/contacts", map[string]string{"name": "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueTopUpEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	router := srv.Router()

	seedContact(t, store, "c1", "14 Wallace Street, Willoughby", 50)
	seedContact(t, store, "c2", "16 Wallace Street, Willoughby", 40)
	seedContact(t, store, "c3", "18 Wallace Street, Willoughby", 30)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/queue/topup", map[string]int{"count": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["added"])

	entry, err := store.GetQueueEntry("c1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.QueueStatusActive, entry.Status)
}
