package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"farm_prospector/address"
	"farm_prospector/models"
)

// UpsertContact inserts or refreshes a contact. Records without a stable
// external identifier get a locally minted one. Blank incoming fields
// never wipe known values.
func (s *SQLiteStore) UpsertContact(c *models.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.StreetPart == "" && c.Address != "" {
		c.StreetPart = address.StreetPart(c.Address)
	}
	if c.Suburb == "" && c.Address != "" {
		c.Suburb = address.Suburb(c.Address)
	}
	_, err := s.db.Exec(`
		INSERT INTO contacts (id, name, phone, address, street_part, suburb, propensity_score,
			tenure_years, occupancy, property_type, beds, do_not_call, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = COALESCE(NULLIF(excluded.phone, ''), phone),
			address = COALESCE(NULLIF(excluded.address, ''), address),
			street_part = COALESCE(NULLIF(excluded.street_part, ''), street_part),
			suburb = COALESCE(NULLIF(excluded.suburb, ''), suburb),
			propensity_score = excluded.propensity_score,
			tenure_years = excluded.tenure_years,
			occupancy = excluded.occupancy,
			property_type = COALESCE(NULLIF(excluded.property_type, ''), property_type),
			beds = excluded.beds,
			do_not_call = excluded.do_not_call`,
		c.ID, c.Name, c.Phone, c.Address, c.StreetPart, c.Suburb, c.PropensityScore,
		c.TenureYears, c.Occupancy, c.PropertyType, c.Beds, c.DoNotCall, c.Source, c.CreatedAt)
	return err
}

func (s *SQLiteStore) GetContact(id string) (*models.Contact, error) {
	row := s.db.QueryRow(contactSelect+` WHERE id = ?`, id)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListFarmContacts returns contacts in the configured farm suburbs that are
// not flagged do-not-call. Phone usability is checked by the caller since
// formatting varies too much for SQL.
func (s *SQLiteStore) ListFarmContacts(suburbs []string) ([]models.Contact, error) {
	if len(suburbs) == 0 {
		return nil, nil
	}

	query := contactSelect + ` WHERE do_not_call = FALSE AND suburb COLLATE NOCASE IN (?`
	args := []interface{}{suburbs[0]}
	for _, sub := range suburbs[1:] {
		query += ", ?"
		args = append(args, sub)
	}
	query += `) ORDER BY created_at, id`

	rows, err := s.db.Query(query, args...)
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

// UpdatePropensityScores applies recomputed scores in one transaction.
func (s *SQLiteStore) UpdatePropensityScores(scores map[string]int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE contacts SET propensity_score = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, score := range scores {
		if _, err := stmt.Exec(score, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SetDoNotCall(contactID string) error {
	_, err := s.db.Exec(`UPDATE contacts SET do_not_call = TRUE WHERE id = ?`, contactID)
	return err
}

const contactSelect = `
	SELECT id, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(address, ''),
		COALESCE(street_part, ''), COALESCE(suburb, ''), propensity_score, tenure_years,
		occupancy, COALESCE(property_type, ''), beds, do_not_call, COALESCE(source, 'farm'),
		created_at
	FROM contacts`

func scanContact(r rowScanner) (*models.Contact, error) {
	var c models.Contact
	err := r.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.StreetPart, &c.Suburb,
		&c.PropensityScore, &c.TenureYears, &c.Occupancy, &c.PropertyType, &c.Beds,
		&c.DoNotCall, &c.Source, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
