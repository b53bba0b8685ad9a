package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"farm_prospector/models"
)

// CRMStore is a read-only view over the agency CRM's Postgres database,
// used as the secondary contact pool for scoring. The CRM itself is owned
// by another system; this store never writes to it.
type CRMStore struct {
	pool *pgxpool.Pool
}

func NewCRMStore(ctx context.Context, connString string) (*CRMStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &CRMStore{pool: pool}, nil
}

func (s *CRMStore) Close() {
	s.pool.Close()
}

// ListContacts returns CRM contacts in the given suburbs that are not
// flagged do-not-call. Contacts are tagged with the CRM source so the
// scorer can suppress them when a farm record covers the same address.
func (s *CRMStore) ListContacts(ctx context.Context, suburbs []string) ([]models.Contact, error) {
	if len(suburbs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, COALESCE(full_name, ''), COALESCE(phone, ''), COALESCE(address, ''),
			COALESCE(suburb, ''), COALESCE(propensity_score, 0), COALESCE(tenure_years, 0),
			COALESCE(occupancy, 'unknown'), COALESCE(property_type, ''), COALESCE(beds, 0),
			COALESCE(do_not_call, FALSE), created_at
		FROM crm_contacts
		WHERE do_not_call = FALSE AND suburb ILIKE ANY($1)
		ORDER BY created_at, id`, suburbs)
	if err != nil {
		return nil, fmt.Errorf("query crm contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Suburb,
			&c.PropensityScore, &c.TenureYears, &c.Occupancy, &c.PropertyType,
			&c.Beds, &c.DoNotCall, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan crm contact: %w", err)
		}
		c.Source = models.ContactSourceCRM
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
