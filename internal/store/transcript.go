package store

import (
	"context"
	"database/sql"
	"time"
)

// GetTranscript returns the cached voice transcript for a row, with
// found=false when none is cached.
func (db *CacheDB) GetTranscript(ctx context.Context, session string, localID int64) (string, bool, error) {
	var text string
	err := db.QueryRowContext(ctx,
		`SELECT text FROM transcripts WHERE session = ? AND local_id = ?`,
		session, localID).Scan(&text)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// PutTranscript caches a transcript, overwriting any previous value
// for the same row.
func (db *CacheDB) PutTranscript(ctx context.Context, t Transcript) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transcripts (session, local_id, text, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session, local_id) DO UPDATE SET
			text = excluded.text,
			created_at = excluded.created_at`,
		t.Session, t.LocalID, t.Text, time.Now().Unix())
	return err
}

// CountTranscripts reports how many of the given rows already have a
// cached transcript, for the pre-run estimate.
func (db *CacheDB) CountTranscripts(ctx context.Context, session string, localIDs []int64) (int, error) {
	count := 0
	for _, id := range localIDs {
		_, found, err := db.GetTranscript(ctx, session, id)
		if err != nil {
			return 0, err
		}
		if found {
			count++
		}
	}
	return count, nil
}

// RecordRun inserts a run-history row when an export starts.
func (db *CacheDB) RecordRun(ctx context.Context, r Run) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO export_runs (id, format, sessions, started_at)
		VALUES (?, ?, ?, ?)`,
		r.ID, r.Format, r.Sessions, r.StartedAt)
	return err
}

// FinishRun stamps a run's completion and outcome counts.
func (db *CacheDB) FinishRun(ctx context.Context, id string, successCount, failCount int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE export_runs
		SET finished_at = ?, success_count = ?, fail_count = ?
		WHERE id = ?`,
		time.Now().Unix(), successCount, failCount, id)
	return err
}

// LastRuns returns the most recent run records, newest first.
func (db *CacheDB) LastRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, format, sessions, started_at, finished_at, success_count, fail_count
		FROM export_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Format, &r.Sessions, &r.StartedAt,
			&r.FinishedAt, &r.SuccessCount, &r.FailCount); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
