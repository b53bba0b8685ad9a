package storage

import (
	"database/sql"

	"farm_prospector/models"
)

func (s *SQLiteStore) GetGeocode(addressKey string) (*models.GeocodeEntry, error) {
	row := s.db.QueryRow(`
		SELECT address_key, lat, lon, resolved_at
		FROM geocode_cache WHERE address_key = ?`, addressKey)

	var e models.GeocodeEntry
	err := row.Scan(&e.AddressKey, &e.Lat, &e.Lon, &e.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PutGeocode persists a resolved coordinate. The cache is append-only; an
// existing key is left untouched so a cached address is never re-fetched.
func (s *SQLiteStore) PutGeocode(e *models.GeocodeEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO geocode_cache (address_key, lat, lon, resolved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address_key) DO NOTHING`,
		e.AddressKey, e.Lat, e.Lon, e.ResolvedAt)
	return err
}

// ContactsMissingGeocode returns up to limit contacts whose street part has
// no cache entry yet, for the background backfill worker.
func (s *SQLiteStore) ContactsMissingGeocode(limit int) ([]models.Contact, error) {
	rows, err := s.db.Query(contactSelect+`
		WHERE street_part != ''
		  AND street_part NOT IN (SELECT address_key FROM geocode_cache)
		  AND street_part || ', ' || suburb NOT IN (SELECT address_key FROM geocode_cache)
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}
