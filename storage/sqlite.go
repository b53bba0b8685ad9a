package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"farm_prospector/models"
)

// SQLiteStore is the primary persistent store: market events, contacts,
// call queue, call log and the geocode cache. WAL mode gives one writer
// with concurrent readers.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS market_events (
		id INTEGER PRIMARY KEY,
		address TEXT NOT NULL,
		normalized_address TEXT NOT NULL,
		suburb TEXT,
		type TEXT NOT NULL,
		price TEXT,
		price_previous TEXT,
		confirmed_price TEXT,
		beds INTEGER DEFAULT 0,
		baths INTEGER DEFAULT 0,
		cars INTEGER DEFAULT 0,
		property_type TEXT,
		agent_name TEXT,
		agency TEXT,
		source TEXT,
		event_date DATE NOT NULL,
		detected_at DATETIME,
		status TEXT DEFAULT 'active',
		linked_event_id INTEGER,
		top_contacts JSON,
		UNIQUE(normalized_address, type, event_date)
	);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		name TEXT,
		phone TEXT,
		address TEXT,
		street_part TEXT,
		suburb TEXT,
		propensity_score INTEGER DEFAULT 0,
		tenure_years INTEGER DEFAULT 0,
		occupancy TEXT DEFAULT 'unknown',
		property_type TEXT,
		beds INTEGER DEFAULT 0,
		do_not_call BOOLEAN DEFAULT FALSE,
		source TEXT DEFAULT 'farm',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS call_queue (
		contact_id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'active',
		added_at DATETIME,
		snooze_until DATETIME,
		cooldown_until DATETIME,
		last_outcome TEXT,
		last_called_at DATETIME,
		propensity_score INTEGER DEFAULT 0,
		intel TEXT,
		FOREIGN KEY (contact_id) REFERENCES contacts(id)
	);

	CREATE TABLE IF NOT EXISTS call_log (
		id INTEGER PRIMARY KEY,
		contact_id TEXT NOT NULL,
		called_at DATETIME NOT NULL,
		outcome TEXT NOT NULL,
		notes TEXT
	);

	CREATE TABLE IF NOT EXISTS geocode_cache (
		address_key TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		resolved_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS ingest_runs (
		id INTEGER PRIMARY KEY,
		source TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		events_parsed INTEGER,
		events_inserted INTEGER,
		events_skipped INTEGER,
		errors_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_events_address ON market_events(normalized_address);
	CREATE INDEX IF NOT EXISTS idx_events_detected ON market_events(detected_at);
	CREATE INDEX IF NOT EXISTS idx_contacts_suburb ON contacts(suburb);
	CREATE INDEX IF NOT EXISTS idx_contacts_street ON contacts(street_part);
	CREATE INDEX IF NOT EXISTS idx_queue_status ON call_queue(status, cooldown_until, snooze_until);
	CREATE INDEX IF NOT EXISTS idx_call_log_contact ON call_log(contact_id, called_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON ingest_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertEvent inserts a market event, deduplicating on
// (normalized_address, type, event_date). A duplicate is a silent no-op:
// inserted is false and the event's ID is filled from the existing row.
func (s *SQLiteStore) InsertEvent(e *models.MarketEvent) (bool, error) {
	result, err := s.db.Exec(`
		INSERT INTO market_events (address, normalized_address, suburb, type, price, price_previous,
			beds, baths, cars, property_type, agent_name, agency, source, event_date, detected_at,
			status, linked_event_id, top_contacts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(normalized_address, type, event_date) DO NOTHING`,
		e.Address, e.NormalizedAddress, e.Suburb, e.Type, e.Price, e.PricePrevious,
		e.Beds, e.Baths, e.Cars, e.PropertyType, e.AgentName, e.Agency, e.Source,
		e.EventDate.Format("2006-01-02"), e.DetectedAt, e.Status, e.LinkedEventID, nullJSON(e.TopContacts))
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	if affected == 0 {
		existing, err := s.GetEventByKey(e.NormalizedAddress, e.Type, e.EventDate)
		if err != nil {
			return false, err
		}
		if existing != nil {
			e.ID = existing.ID
		}
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return true, err
	}
	e.ID = id
	return true, nil
}

func (s *SQLiteStore) GetEvent(id int64) (*models.MarketEvent, error) {
	row := s.db.QueryRow(eventSelect+` WHERE id = ?`, id)
	return scanEvent(row)
}

func (s *SQLiteStore) GetEventByKey(normalized string, typ models.EventType, eventDate time.Time) (*models.MarketEvent, error) {
	row := s.db.QueryRow(eventSelect+` WHERE normalized_address = ? AND type = ? AND event_date = ?`,
		normalized, typ, eventDate.Format("2006-01-02"))
	return scanEvent(row)
}

// FindLatestListingEvent returns the most recent listing/relisted event at
// an address, used to back-link a sold event to its originating listing.
func (s *SQLiteStore) FindLatestListingEvent(normalized string) (*models.MarketEvent, error) {
	row := s.db.QueryRow(eventSelect+`
		WHERE normalized_address = ? AND type IN ('listing', 'relisted')
		ORDER BY event_date DESC LIMIT 1`, normalized)
	return scanEvent(row)
}

func (s *SQLiteStore) UpdateEventStatus(id int64, status models.EventStatus, confirmedPrice string, linkedEventID *int64) error {
	_, err := s.db.Exec(`
		UPDATE market_events
		SET status = ?,
			confirmed_price = COALESCE(NULLIF(?, ''), confirmed_price),
			linked_event_id = COALESCE(?, linked_event_id)
		WHERE id = ?`,
		status, confirmedPrice, linkedEventID, id)
	return err
}

// SetEventTopContacts stores the immutable scored-contact snapshot.
func (s *SQLiteStore) SetEventTopContacts(id int64, snapshot []models.ScoredContact) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE market_events SET top_contacts = ? WHERE id = ?`, string(data), id)
	return err
}

func (s *SQLiteStore) DeleteEvent(id int64) error {
	_, err := s.db.Exec(`DELETE FROM market_events WHERE id = ?`, id)
	return err
}

// ListRecentEvents returns events detected since the cutoff, newest first.
func (s *SQLiteStore) ListRecentEvents(since time.Time, limit int) ([]models.MarketEvent, error) {
	rows, err := s.db.Query(eventSelect+`
		WHERE detected_at >= ? ORDER BY detected_at DESC LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.MarketEvent
	for rows.Next() {
		e, err := scanEventRows(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// RecentEventContactIDs collects the union of contact IDs appearing in any
// event top-contacts snapshot detected since the cutoff. Used for the
// queue's event-boost ordering.
func (s *SQLiteStore) RecentEventContactIDs(since time.Time) (map[string]bool, error) {
	rows, err := s.db.Query(`
		SELECT top_contacts FROM market_events
		WHERE detected_at >= ? AND top_contacts IS NOT NULL`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if !raw.Valid || raw.String == "" {
			continue
		}
		var snapshot []models.ScoredContact
		if err := json.Unmarshal([]byte(raw.String), &snapshot); err != nil {
			continue // malformed snapshot rows are skipped, not fatal
		}
		for _, sc := range snapshot {
			ids[sc.ContactID] = true
		}
	}
	return ids, rows.Err()
}

const eventSelect = `
	SELECT id, address, normalized_address, COALESCE(suburb, ''), type,
		COALESCE(price, ''), COALESCE(price_previous, ''), COALESCE(confirmed_price, ''),
		beds, baths, cars, COALESCE(property_type, ''), COALESCE(agent_name, ''),
		COALESCE(agency, ''), COALESCE(source, ''), event_date, detected_at,
		status, linked_event_id, top_contacts
	FROM market_events`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row *sql.Row) (*models.MarketEvent, error) {
	e, err := scanEventFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func scanEventRows(rows *sql.Rows) (*models.MarketEvent, error) {
	return scanEventFrom(rows)
}

func scanEventFrom(r rowScanner) (*models.MarketEvent, error) {
	var e models.MarketEvent
	var eventDate string
	var linkedID sql.NullInt64
	var topContacts sql.NullString

	err := r.Scan(&e.ID, &e.Address, &e.NormalizedAddress, &e.Suburb, &e.Type,
		&e.Price, &e.PricePrevious, &e.ConfirmedPrice,
		&e.Beds, &e.Baths, &e.Cars, &e.PropertyType, &e.AgentName,
		&e.Agency, &e.Source, &eventDate, &e.DetectedAt,
		&e.Status, &linkedID, &topContacts)
	if err != nil {
		return nil, err
	}

	if t, perr := parseEventDate(eventDate); perr == nil {
		e.EventDate = t
	}
	if linkedID.Valid {
		e.LinkedEventID = &linkedID.Int64
	}
	if topContacts.Valid {
		e.TopContacts = json.RawMessage(topContacts.String)
	}
	return &e, nil
}

func parseEventDate(s string) (time.Time, error) {
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, s)
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
