package storage

import (
	"fmt"
	"time"
)

// ArchiveSession stores a finished conversation session. Archiving the same
// session ID twice replaces the earlier snapshot.
func (s *Store) ArchiveSession(rec SessionRecord) error {
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = s.now()
	}
	if rec.MessagesJSON == "" {
		rec.MessagesJSON = "[]"
	}
	_, err := s.db.Exec(`
		INSERT INTO archived_sessions (id, user_id, started_at, archived_at, messages_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET archived_at = excluded.archived_at, messages_json = excluded.messages_json`,
		rec.ID, rec.UserID, formatTime(rec.StartedAt), formatTime(rec.ArchivedAt), rec.MessagesJSON,
	)
	if err != nil {
		return fmt.Errorf("archiving session %s: %w", rec.ID, err)
	}
	return nil
}

// ListArchivedSessions returns a user's archived sessions, oldest first.
// limit <= 0 returns all of them.
func (s *Store) ListArchivedSessions(userID string, limit int) ([]SessionRecord, error) {
	query := `SELECT id, user_id, started_at, archived_at, messages_json FROM (
		SELECT id, user_id, started_at, archived_at, messages_json, rowid AS rid
		FROM archived_sessions WHERE user_id = ?
		ORDER BY archived_at DESC, rowid DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	query += `) ORDER BY archived_at ASC, rid ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started, archived string
		if err := rows.Scan(&rec.ID, &rec.UserID, &started, &archived, &rec.MessagesJSON); err != nil {
			return nil, err
		}
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if rec.ArchivedAt, err = parseTime(archived); err != nil {
			return nil, fmt.Errorf("parsing archived_at: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteArchivedSessionsBefore removes a user's sessions archived before cutoff
// and returns how many were removed.
func (s *Store) DeleteArchivedSessionsBefore(userID string, cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM archived_sessions WHERE user_id = ? AND archived_at < ?`, userID, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
