package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/iptvault/iptvault/internal/catalog"
)

const programCols = `id, channel_id, epg_channel_id, title, description, start_time, end_time`

func scanProgram(row interface{ Scan(...any) error }) (catalog.EpgProgram, error) {
	var p catalog.EpgProgram
	var start, end int64
	err := row.Scan(&p.ID, &p.ChannelID, &p.EPGChannelID, &p.Title, &p.Description, &start, &end)
	if err != nil {
		return catalog.EpgProgram{}, err
	}
	p.StartTime = fromUnix(start)
	p.EndTime = fromUnix(end)
	return p, nil
}

// UpsertPrograms writes the batch atomically with per-row
// replace-on-conflict. Callers are expected to hand in disjoint
// per-channel intervals (internal/ingest enforces this); reads still
// resolve ties by earliest start so older data stays deterministic.
func (s *Store) UpsertPrograms(programs []catalog.EpgProgram) error {
	if len(programs) == 0 {
		return nil
	}
	return s.inTx([]string{tablePrograms}, func(tx *sql.Tx) error {
		return upsertProgramsTx(tx, programs)
	})
}

func upsertProgramsTx(tx *sql.Tx, programs []catalog.EpgProgram) error {
	stmt, err := tx.Prepare(`INSERT INTO epg_programs (` + programCols + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			channel_id=excluded.channel_id, epg_channel_id=excluded.epg_channel_id,
			title=excluded.title, description=excluded.description,
			start_time=excluded.start_time, end_time=excluded.end_time`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range programs {
		_, err := stmt.Exec(p.ID, p.ChannelID, p.EPGChannelID, p.Title, p.Description,
			unix(p.StartTime), unix(p.EndTime))
		if err != nil {
			return err
		}
	}
	return nil
}

// ReplacePrograms atomically swaps the guide for the given channels:
// old rows are deleted and the new batch inserted in one transaction, so
// a crash mid-refresh leaves the prior guide intact.
func (s *Store) ReplacePrograms(channelIDs []string, programs []catalog.EpgProgram) error {
	return s.inTx([]string{tablePrograms}, func(tx *sql.Tx) error {
		del, err := tx.Prepare(`DELETE FROM epg_programs WHERE channel_id = ?`)
		if err != nil {
			return err
		}
		defer del.Close()
		for _, id := range channelIDs {
			if _, err := del.Exec(id); err != nil {
				return err
			}
		}
		return upsertProgramsTx(tx, programs)
	})
}

// CurrentProgram returns the program whose half-open interval
// [start, end) contains t, or ErrNotFound. With overlapping data the
// earliest-starting containing program wins.
func (s *Store) CurrentProgram(channelID string, t time.Time) (catalog.EpgProgram, error) {
	p, err := scanProgram(s.db.QueryRow(`SELECT `+programCols+` FROM epg_programs
		WHERE channel_id = ? AND start_time <= ? AND end_time > ?
		ORDER BY start_time, id LIMIT 1`, channelID, t.Unix(), t.Unix()))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.EpgProgram{}, ErrNotFound
	}
	return p, err
}

// NextProgram returns the earliest program starting strictly after t.
func (s *Store) NextProgram(channelID string, t time.Time) (catalog.EpgProgram, error) {
	p, err := scanProgram(s.db.QueryRow(`SELECT `+programCols+` FROM epg_programs
		WHERE channel_id = ? AND start_time > ?
		ORDER BY start_time, id LIMIT 1`, channelID, t.Unix()))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.EpgProgram{}, ErrNotFound
	}
	return p, err
}

// ChannelProgram pairs a channel with one of its guide entries.
type ChannelProgram struct {
	Channel catalog.Channel
	Program catalog.EpgProgram
}

// CurrentProgramsByCategory resolves the current program for every
// non-divider channel in the category in one pass, ordered by the
// channels' display order. Channels without a current program are
// omitted. The category scope is an owner join, never an id IN-list, so
// large categories cannot blow the engine's bind-parameter limit.
func (s *Store) CurrentProgramsByCategory(categoryID string, t time.Time) ([]ChannelProgram, error) {
	return s.queryChannelPrograms(`SELECT `+chanColsQualified+`, `+prefixCols(programCols, "e")+`
		FROM channels c
		JOIN epg_programs e ON e.channel_id = c.id
		WHERE c.category_id = ? AND c.is_divider = 0
			AND e.start_time <= ? AND e.end_time > ?
		ORDER BY c.sort_order, c.name, c.id, e.start_time, e.id`,
		firstPerChannel, categoryID, t.Unix(), t.Unix())
}

// CurrentProgramsByGroup is CurrentProgramsByCategory for a playlist's
// M3U group-title grouping.
func (s *Store) CurrentProgramsByGroup(playlistID, groupTitle string, t time.Time) ([]ChannelProgram, error) {
	return s.queryChannelPrograms(`SELECT `+chanColsQualified+`, `+prefixCols(programCols, "e")+`
		FROM channels c
		JOIN epg_programs e ON e.channel_id = c.id
		WHERE c.playlist_id = ? AND c.group_title = ? AND c.is_divider = 0
			AND e.start_time <= ? AND e.end_time > ?
		ORDER BY c.sort_order, c.name, c.id, e.start_time, e.id`,
		firstPerChannel, playlistID, groupTitle, t.Unix(), t.Unix())
}

// UpcomingProgramsByCategory lists programs starting strictly after t for
// every non-divider channel in the category, ordered by channel display
// order then start time. limit caps rows per channel (0 = no cap).
func (s *Store) UpcomingProgramsByCategory(categoryID string, t time.Time, limit int) ([]ChannelProgram, error) {
	keep := allRows
	if limit > 0 {
		keep = firstNPerChannel(limit)
	}
	return s.queryChannelPrograms(`SELECT `+chanColsQualified+`, `+prefixCols(programCols, "e")+`
		FROM channels c
		JOIN epg_programs e ON e.channel_id = c.id
		WHERE c.category_id = ? AND c.is_divider = 0 AND e.start_time > ?
		ORDER BY c.sort_order, c.name, c.id, e.start_time, e.id`,
		keep, categoryID, t.Unix())
}

// keepFunc filters joined rows per channel as they stream in, in query
// order. Doing the per-channel LIMIT in Go keeps the SQL portable and
// makes the tie-break ("earliest start wins") explicit instead of
// depending on storage row order.
type keepFunc func(channelID string, seen int) bool

func allRows(string, int) bool { return true }

func firstPerChannel(_ string, seen int) bool { return seen == 0 }

func firstNPerChannel(n int) keepFunc {
	return func(_ string, seen int) bool { return seen < n }
}

func (s *Store) queryChannelPrograms(q string, keep keepFunc, args ...any) ([]ChannelProgram, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChannelProgram
	var lastChannel string
	seen := 0
	for rows.Next() {
		var c catalog.Channel
		var cat sql.NullString
		var fav, hidden, divider int
		var watched, start, end int64
		var p catalog.EpgProgram
		err := rows.Scan(&c.ID, &c.PlaylistID, &cat, &c.Name, &c.StreamURL, &c.LogoURL,
			&c.EPGChannelID, &c.GroupTitle, &fav, &hidden, &divider, &watched, &c.SortOrder,
			&p.ID, &p.ChannelID, &p.EPGChannelID, &p.Title, &p.Description, &start, &end)
		if err != nil {
			return nil, err
		}
		if c.ID != lastChannel {
			lastChannel = c.ID
			seen = 0
		}
		if !keep(c.ID, seen) {
			seen++
			continue
		}
		seen++
		c.CategoryID = cat.String
		c.IsFavorite = fav != 0
		c.IsHidden = hidden != 0
		c.IsDivider = divider != 0
		c.LastWatched = fromUnix(watched)
		p.StartTime = fromUnix(start)
		p.EndTime = fromUnix(end)
		out = append(out, ChannelProgram{Channel: c, Program: p})
	}
	return out, rows.Err()
}

// PurgeProgramsBefore deletes programs that ended before cutoff. A
// program ending exactly at cutoff is kept (end_time < cutoff, matching
// the half-open interval convention). Returns the number of rows purged.
func (s *Store) PurgeProgramsBefore(cutoff time.Time) (int64, error) {
	var n int64
	err := s.inTx([]string{tablePrograms}, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM epg_programs WHERE end_time < ?`, cutoff.Unix())
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

// Programs lists a channel's guide ordered by start time.
func (s *Store) Programs(channelID string) ([]catalog.EpgProgram, error) {
	rows, err := s.db.Query(`SELECT `+programCols+` FROM epg_programs
		WHERE channel_id = ? ORDER BY start_time, id`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.EpgProgram
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
