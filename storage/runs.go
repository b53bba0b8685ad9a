package storage

import (
	"database/sql"

	"farm_prospector/models"
)

func (s *SQLiteStore) CreateRun(run *models.IngestRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO ingest_runs (source, started_at, status, events_parsed, events_inserted,
			events_skipped, errors_count)
		VALUES (?, ?, ?, 0, 0, 0, 0)`,
		run.Source, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListRecentRuns returns the latest ingest runs, newest first.
func (s *SQLiteStore) ListRecentRuns(limit int) ([]models.IngestRun, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(source, ''), started_at, finished_at, status,
			events_parsed, events_inserted, events_skipped, errors_count
		FROM ingest_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.IngestRun
	for rows.Next() {
		var run models.IngestRun
		var finished sql.NullTime
		if err := rows.Scan(&run.ID, &run.Source, &run.StartedAt, &finished, &run.Status,
			&run.EventsParsed, &run.EventsInserted, &run.EventsSkipped, &run.ErrorsCount); err != nil {
			return nil, err
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) UpdateRun(run *models.IngestRun) error {
	_, err := s.db.Exec(`
		UPDATE ingest_runs SET finished_at = ?, status = ?, events_parsed = ?,
			events_inserted = ?, events_skipped = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.EventsParsed,
		run.EventsInserted, run.EventsSkipped, run.ErrorsCount, run.ID)
	return err
}
