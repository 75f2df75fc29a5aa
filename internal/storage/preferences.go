package storage

import "fmt"

// SavePreferences upserts a user's preference items in one transaction.
func (s *Store) SavePreferences(userID string, recs []PreferenceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning preferences transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO preferences (user_id, category, value, score, confidence, occurrences, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, category, value) DO UPDATE SET
			score = excluded.score,
			confidence = excluded.confidence,
			occurrences = excluded.occurrences,
			last_updated = excluded.last_updated`)
	if err != nil {
		return fmt.Errorf("preparing preference upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.Exec(userID, r.Category, r.Value, r.Score, r.Confidence, r.Occurrences, formatTime(r.LastUpdated)); err != nil {
			return fmt.Errorf("saving preference %s/%s: %w", r.Category, r.Value, err)
		}
	}
	return tx.Commit()
}

// ListPreferences returns every stored preference of a user, ordered by
// category then value.
func (s *Store) ListPreferences(userID string) ([]PreferenceRecord, error) {
	rows, err := s.db.Query(`SELECT user_id, category, value, score, confidence, occurrences, last_updated
		FROM preferences WHERE user_id = ? ORDER BY category, value`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PreferenceRecord
	for rows.Next() {
		var r PreferenceRecord
		var updated string
		if err := rows.Scan(&r.UserID, &r.Category, &r.Value, &r.Score, &r.Confidence, &r.Occurrences, &updated); err != nil {
			return nil, err
		}
		if r.LastUpdated, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("parsing last_updated: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
