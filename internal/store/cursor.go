package store

import (
	"context"
	"database/sql"
)

const defaultBatchSize = 500

// MessageCursor streams a session's rows in batches using keyset
// pagination on (create_time, local_id). Callers must Close it, also
// on early termination.
type MessageCursor struct {
	db        *ChatDB
	session   string
	batchSize int
	asc       bool
	start     int64
	end       int64

	lastTime int64
	lastID   int64
	primed   bool
	done     bool
}

// OpenCursor prepares a cursor over the session's rows, optionally
// bounded by a [start, end] unix-second range (0 means unbounded).
func (db *ChatDB) OpenCursor(session string, batchSize int, asc bool, start, end int64) *MessageCursor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &MessageCursor{
		db:        db,
		session:   session,
		batchSize: batchSize,
		asc:       asc,
		start:     start,
		end:       end,
	}
}

// Fetch returns the next batch, or an empty slice once the stream is
// exhausted.
func (c *MessageCursor) Fetch(ctx context.Context) ([]RawRow, error) {
	if c.done {
		return nil, nil
	}

	query := `
		SELECT local_id, server_id, local_type, create_time,
			message_content, compress_content, sender, is_sender
		FROM messages
		WHERE talker = ?`
	args := []any{c.session}

	if c.start > 0 {
		query += ` AND create_time >= ?`
		args = append(args, c.start)
	}
	if c.end > 0 {
		query += ` AND create_time <= ?`
		args = append(args, c.end)
	}
	if c.primed {
		if c.asc {
			query += ` AND (create_time > ? OR (create_time = ? AND local_id > ?))`
		} else {
			query += ` AND (create_time < ? OR (create_time = ? AND local_id < ?))`
		}
		args = append(args, c.lastTime, c.lastTime, c.lastID)
	}
	if c.asc {
		query += ` ORDER BY create_time ASC, local_id ASC LIMIT ?`
	} else {
		query += ` ORDER BY create_time DESC, local_id DESC LIMIT ?`
	}
	args = append(args, c.batchSize)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var batch []RawRow
	for rows.Next() {
		var r RawRow
		var content, compress sql.NullString
		if err := rows.Scan(&r.LocalID, &r.ServerID, &r.LocalType, &r.CreateTime,
			&content, &compress, &r.Sender, &r.IsSender); err != nil {
			return nil, err
		}
		r.Content = content.String
		r.CompressContent = compress.String
		batch = append(batch, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(batch) > 0 {
		last := batch[len(batch)-1]
		c.lastTime = last.CreateTime
		c.lastID = last.LocalID
		c.primed = true
	}
	if len(batch) < c.batchSize {
		c.done = true
	}
	return batch, nil
}

// Close marks the cursor exhausted. The underlying connection is owned
// by the ChatDB and stays open.
func (c *MessageCursor) Close() {
	c.done = true
}

// CountMessages returns the row count for a session in the optional
// date range, used for pre-run estimates.
func (db *ChatDB) CountMessages(ctx context.Context, session string, start, end int64) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE talker = ?`
	args := []any{session}
	if start > 0 {
		query += ` AND create_time >= ?`
		args = append(args, start)
	}
	if end > 0 {
		query += ` AND create_time <= ?`
		args = append(args, end)
	}
	var n int
	err := db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// CountMessagesByType returns per-type row counts for a session,
// feeding the media and voice portions of the pre-run estimate.
func (db *ChatDB) CountMessagesByType(ctx context.Context, session string, start, end int64) (map[int64]int, error) {
	query := `SELECT local_type, COUNT(*) FROM messages WHERE talker = ?`
	args := []any{session}
	if start > 0 {
		query += ` AND create_time >= ?`
		args = append(args, start)
	}
	if end > 0 {
		query += ` AND create_time <= ?`
		args = append(args, end)
	}
	query += ` GROUP BY local_type`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[int64]int)
	for rows.Next() {
		var typ int64
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
