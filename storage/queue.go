package storage

import (
	"database/sql"
	"time"

	"farm_prospector/models"
)

// QueueTransition is the computed next state for a queue row after an
// outcome. Timer fields are nil unless the new status requires one.
type QueueTransition struct {
	Status        models.QueueStatus
	SnoozeUntil   *time.Time
	CooldownUntil *time.Time
}

// Enqueue inserts a queue row for a contact not yet queued. Returns false
// when the contact already has a row (one row per contact, ever).
func (s *SQLiteStore) Enqueue(c *models.Contact, intel string, now time.Time) (bool, error) {
	result, err := s.db.Exec(`
		INSERT INTO call_queue (contact_id, status, added_at, propensity_score, intel)
		VALUES (?, 'active', ?, ?, ?)
		ON CONFLICT(contact_id) DO NOTHING`,
		c.ID, now, c.PropensityScore, intel)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

func (s *SQLiteStore) GetQueueEntry(contactID string) (*models.CallQueueEntry, error) {
	row := s.db.QueryRow(`
		SELECT contact_id, status, added_at, snooze_until, cooldown_until,
			COALESCE(last_outcome, ''), last_called_at, propensity_score, COALESCE(intel, '')
		FROM call_queue WHERE contact_id = ?`, contactID)

	e, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// ApplyOutcome appends a call-log row and applies the queue transition in a
// single transaction, so a crash cannot leave queue and log inconsistent.
//
// The queue update is guarded by the stored last_called_at: a transition
// computed from a call older than one already recorded is not applied
// (last-writer-wins by outcome timestamp), though the log row is still
// appended. Returns whether the transition was applied.
func (s *SQLiteStore) ApplyOutcome(entry *models.CallLogEntry, tr QueueTransition, markDoNotCall bool) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO call_log (contact_id, called_at, outcome, notes)
		VALUES (?, ?, ?, ?)`,
		entry.ContactID, entry.CalledAt, entry.Outcome, entry.Notes); err != nil {
		return false, err
	}

	result, err := tx.Exec(`
		UPDATE call_queue
		SET status = ?, snooze_until = ?, cooldown_until = ?,
			last_outcome = ?, last_called_at = ?
		WHERE contact_id = ? AND (last_called_at IS NULL OR last_called_at <= ?)`,
		tr.Status, tr.SnoozeUntil, tr.CooldownUntil,
		entry.Outcome, entry.CalledAt, entry.ContactID, entry.CalledAt)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	applied := affected > 0
	if !applied {
		// No row at all means the contact was never queued; create one in
		// the post-outcome state rather than silently dropping the call.
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM call_queue WHERE contact_id = ?`, entry.ContactID).Scan(&exists)
		if err == sql.ErrNoRows {
			if _, err := tx.Exec(`
				INSERT INTO call_queue (contact_id, status, added_at, snooze_until, cooldown_until,
					last_outcome, last_called_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				entry.ContactID, tr.Status, entry.CalledAt, tr.SnoozeUntil, tr.CooldownUntil,
				entry.Outcome, entry.CalledAt); err != nil {
				return false, err
			}
			applied = true
		} else if err != nil {
			return false, err
		}
	}

	if markDoNotCall {
		if _, err := tx.Exec(`UPDATE contacts SET do_not_call = TRUE WHERE id = ?`, entry.ContactID); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return applied, nil
}

// ReactivateExpired flips done rows with elapsed cooldowns and snoozed rows
// with elapsed snoozes back to active, clearing both timer fields.
func (s *SQLiteStore) ReactivateExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec(`
		UPDATE call_queue
		SET status = 'active', snooze_until = NULL, cooldown_until = NULL
		WHERE (status = 'done' AND cooldown_until IS NOT NULL AND cooldown_until <= ?)
		   OR (status = 'snoozed' AND snooze_until IS NOT NULL AND snooze_until <= ?)`,
		now, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ReactivateContact flips one done row back to active, clearing both
// timer fields. Used by top-ups to re-admit a contact whose row is done
// without a live cooldown. Returns false when no done row exists.
func (s *SQLiteStore) ReactivateContact(contactID string, now time.Time) (bool, error) {
	result, err := s.db.Exec(`
		UPDATE call_queue
		SET status = 'active', snooze_until = NULL, cooldown_until = NULL, added_at = ?
		WHERE contact_id = ? AND status = 'done'
		  AND (cooldown_until IS NULL OR cooldown_until <= ?)`,
		now, contactID, now)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// SelectCallList reads every active row plus snoozed rows whose timer has
// elapsed, joined with contact attributes. Ordering is propensity
// descending, then longest-since-contacted, then insertion order; the
// recent-event boost and the day limit are applied by the caller, so no
// LIMIT here or a boosted low-propensity row could fall off the page.
func (s *SQLiteStore) SelectCallList(now time.Time) ([]models.QueueContact, error) {
	rows, err := s.db.Query(`
		SELECT q.contact_id, q.status, q.added_at, q.snooze_until, q.cooldown_until,
			COALESCE(q.last_outcome, ''), q.last_called_at, q.propensity_score, COALESCE(q.intel, ''),
			COALESCE(c.name, ''), COALESCE(c.phone, ''), COALESCE(c.address, ''), COALESCE(c.suburb, '')
		FROM call_queue q
		JOIN contacts c ON c.id = q.contact_id
		WHERE c.do_not_call = FALSE
		  AND (q.status = 'active' OR (q.status = 'snoozed' AND q.snooze_until <= ?))
		ORDER BY q.propensity_score DESC,
			q.last_called_at ASC NULLS FIRST,
			q.added_at ASC, q.contact_id ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.QueueContact
	for rows.Next() {
		var qc models.QueueContact
		var snooze, cooldown, lastCalled sql.NullTime
		if err := rows.Scan(&qc.ContactID, &qc.Status, &qc.AddedAt, &snooze, &cooldown,
			&qc.LastOutcome, &lastCalled, &qc.PropensityScore, &qc.Intel,
			&qc.Name, &qc.Phone, &qc.Address, &qc.Suburb); err != nil {
			return nil, err
		}
		if snooze.Valid {
			qc.SnoozeUntil = &snooze.Time
		}
		if cooldown.Valid {
			qc.CooldownUntil = &cooldown.Time
		}
		if lastCalled.Valid {
			qc.LastCalledAt = &lastCalled.Time
		}
		list = append(list, qc)
	}
	return list, rows.Err()
}

// BlockedContactIDs returns contacts that must not be admitted by a top-up:
// anything active or snoozed, or done with an unexpired cooldown.
func (s *SQLiteStore) BlockedContactIDs(now time.Time) (map[string]bool, error) {
	rows, err := s.db.Query(`
		SELECT contact_id FROM call_queue
		WHERE status IN ('active', 'snoozed')
		   OR (status = 'done' AND cooldown_until IS NOT NULL AND cooldown_until > ?)`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// ListCallLogSince returns call history per contact since the cutoff,
// newest first within each contact. Feeds the scorer's recency bonuses.
func (s *SQLiteStore) ListCallLogSince(since time.Time) (map[string][]models.CallLogEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, contact_id, called_at, outcome, COALESCE(notes, '')
		FROM call_log WHERE called_at >= ?
		ORDER BY contact_id, called_at DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make(map[string][]models.CallLogEntry)
	for rows.Next() {
		var e models.CallLogEntry
		if err := rows.Scan(&e.ID, &e.ContactID, &e.CalledAt, &e.Outcome, &e.Notes); err != nil {
			return nil, err
		}
		history[e.ContactID] = append(history[e.ContactID], e)
	}
	return history, rows.Err()
}

// ContactCallLog returns the full history for one contact, newest first.
func (s *SQLiteStore) ContactCallLog(contactID string) ([]models.CallLogEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, contact_id, called_at, outcome, COALESCE(notes, '')
		FROM call_log WHERE contact_id = ? ORDER BY called_at DESC`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.CallLogEntry
	for rows.Next() {
		var e models.CallLogEntry
		if err := rows.Scan(&e.ID, &e.ContactID, &e.CalledAt, &e.Outcome, &e.Notes); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanQueueEntry(r rowScanner) (*models.CallQueueEntry, error) {
	var e models.CallQueueEntry
	var snooze, cooldown, lastCalled sql.NullTime
	err := r.Scan(&e.ContactID, &e.Status, &e.AddedAt, &snooze, &cooldown,
		&e.LastOutcome, &lastCalled, &e.PropensityScore, &e.Intel)
	if err != nil {
		return nil, err
	}
	if snooze.Valid {
		e.SnoozeUntil = &snooze.Time
	}
	if cooldown.Valid {
		e.CooldownUntil = &cooldown.Time
	}
	if lastCalled.Valid {
		e.LastCalledAt = &lastCalled.Time
	}
	return &e, nil
}
