package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/iptvault/iptvault/internal/catalog"
)

// SetWatchProgress records resume state for one piece of content.
// Idempotent last-write-wins per (contentType, contentID). Episodes also
// get their own position/watched columns updated so the series screen
// can render progress without a join; a position past 95% of a known
// duration marks the episode watched.
func (s *Store) SetWatchProgress(ct catalog.ContentType, contentID string, positionSecs, durationSecs int, at time.Time) error {
	tables := []string{tableHistory}
	if ct == catalog.ContentSeries {
		tables = append(tables, tableEpisodes)
	}
	if ct == catalog.ContentLiveTV {
		tables = append(tables, tableChannels)
	}
	return s.inTx(tables, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO playback_history
			(content_type, content_id, position_secs, duration_secs, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(content_type, content_id) DO UPDATE SET
				position_secs=excluded.position_secs,
				duration_secs=excluded.duration_secs,
				updated_at=excluded.updated_at`,
			string(ct), contentID, positionSecs, durationSecs, unix(at))
		if err != nil {
			return err
		}
		switch ct {
		case catalog.ContentSeries:
			watched := durationSecs > 0 && positionSecs*100 >= durationSecs*95
			_, err = tx.Exec(`UPDATE episodes SET position_secs = ?, is_watched = ? WHERE id = ?`,
				positionSecs, boolInt(watched), contentID)
		case catalog.ContentLiveTV:
			_, err = tx.Exec(`UPDATE channels SET last_watched = ? WHERE id = ?`, unix(at), contentID)
		}
		return err
	})
}

// WatchProgress returns the resume record for one content id, or
// ErrNotFound when it has never been played.
func (s *Store) WatchProgress(ct catalog.ContentType, contentID string) (catalog.PlaybackHistory, error) {
	var h catalog.PlaybackHistory
	var ctStr string
	var updated int64
	err := s.db.QueryRow(`SELECT content_type, content_id, position_secs, duration_secs, updated_at
		FROM playback_history WHERE content_type = ? AND content_id = ?`,
		string(ct), contentID).
		Scan(&ctStr, &h.ContentID, &h.PositionSecs, &h.DurationSecs, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.PlaybackHistory{}, ErrNotFound
	}
	if err != nil {
		return catalog.PlaybackHistory{}, err
	}
	h.ContentType = catalog.ContentType(ctStr)
	h.UpdatedAt = fromUnix(updated)
	return h, nil
}

// RecentHistory lists resume records most-recent-first, capped at limit.
func (s *Store) RecentHistory(limit int) ([]catalog.PlaybackHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT content_type, content_id, position_secs, duration_secs, updated_at
		FROM playback_history ORDER BY updated_at DESC, content_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.PlaybackHistory
	for rows.Next() {
		var h catalog.PlaybackHistory
		var ctStr string
		var updated int64
		if err := rows.Scan(&ctStr, &h.ContentID, &h.PositionSecs, &h.DurationSecs, &updated); err != nil {
			return nil, err
		}
		h.ContentType = catalog.ContentType(ctStr)
		h.UpdatedAt = fromUnix(updated)
		out = append(out, h)
	}
	return out, rows.Err()
}
