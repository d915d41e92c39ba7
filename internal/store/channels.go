package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/iptvault/iptvault/internal/catalog"
)

const channelCols = `id, playlist_id, category_id, name, stream_url, logo_url,
	epg_channel_id, group_title, is_favorite, is_hidden, is_divider, last_watched, sort_order`

// nullable maps the empty string to NULL. Category references are NULL
// when absent, never ''; an empty-string FK would have no parent row.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanChannel(row interface{ Scan(...any) error }) (catalog.Channel, error) {
	var c catalog.Channel
	var cat sql.NullString
	var fav, hidden, divider int
	var watched int64
	err := row.Scan(&c.ID, &c.PlaylistID, &cat, &c.Name, &c.StreamURL, &c.LogoURL,
		&c.EPGChannelID, &c.GroupTitle, &fav, &hidden, &divider, &watched, &c.SortOrder)
	if err != nil {
		return catalog.Channel{}, err
	}
	c.CategoryID = cat.String
	c.IsFavorite = fav != 0
	c.IsHidden = hidden != 0
	c.IsDivider = divider != 0
	c.LastWatched = fromUnix(watched)
	return c, nil
}

// UpsertChannels writes the batch atomically with replace-on-conflict
// per row. Used both for single-row edits and full catalog refreshes.
func (s *Store) UpsertChannels(chs []catalog.Channel) error {
	if len(chs) == 0 {
		return nil
	}
	return s.inTx([]string{tableChannels}, func(tx *sql.Tx) error {
		return upsertChannelsTx(tx, chs)
	})
}

func upsertChannelsTx(tx *sql.Tx, chs []catalog.Channel) error {
	stmt, err := tx.Prepare(`INSERT INTO channels (` + channelCols + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			playlist_id=excluded.playlist_id, category_id=excluded.category_id,
			name=excluded.name, stream_url=excluded.stream_url,
			logo_url=excluded.logo_url, epg_channel_id=excluded.epg_channel_id,
			group_title=excluded.group_title, is_favorite=excluded.is_favorite,
			is_hidden=excluded.is_hidden, is_divider=excluded.is_divider,
			last_watched=excluded.last_watched, sort_order=excluded.sort_order`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range chs {
		_, err := stmt.Exec(c.ID, c.PlaylistID, nullable(c.CategoryID), c.Name,
			c.StreamURL, c.LogoURL, c.EPGChannelID, c.GroupTitle,
			boolInt(c.IsFavorite), boolInt(c.IsHidden), boolInt(c.IsDivider),
			unix(c.LastWatched), c.SortOrder)
		if err != nil {
			return err
		}
	}
	return nil
}

// Channel returns one channel by id.
func (s *Store) Channel(id string) (catalog.Channel, error) {
	c, err := scanChannel(s.db.QueryRow(
		`SELECT `+channelCols+` FROM channels WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Channel{}, ErrNotFound
	}
	return c, err
}

// Channels lists a playlist's channels, dividers included, in display
// order.
func (s *Store) Channels(playlistID string) ([]catalog.Channel, error) {
	return s.queryChannels(`SELECT `+channelCols+` FROM channels
		WHERE playlist_id = ? ORDER BY sort_order, name, id`, playlistID)
}

// ChannelsByCategory lists the channels of one category in display order.
func (s *Store) ChannelsByCategory(categoryID string) ([]catalog.Channel, error) {
	return s.queryChannels(`SELECT `+channelCols+` FROM channels
		WHERE category_id = ? ORDER BY sort_order, name, id`, categoryID)
}

// FavoriteChannels lists favorites across all active playlists.
func (s *Store) FavoriteChannels() ([]catalog.Channel, error) {
	return s.queryChannels(`SELECT ` + chanColsQualified + ` FROM channels c
		JOIN playlists p ON p.id = c.playlist_id AND p.is_active = 1
		WHERE c.is_favorite = 1 AND c.is_divider = 0
		ORDER BY c.sort_order, c.name, c.id`)
}

const chanColsQualified = `c.id, c.playlist_id, c.category_id, c.name, c.stream_url, c.logo_url,
	c.epg_channel_id, c.group_title, c.is_favorite, c.is_hidden, c.is_divider, c.last_watched, c.sort_order`

func (s *Store) queryChannels(q string, args ...any) ([]catalog.Channel, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetChannelFavorite flips the favorite flag on one channel.
func (s *Store) SetChannelFavorite(id string, fav bool) error {
	return s.inTx([]string{tableChannels}, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE channels SET is_favorite = ? WHERE id = ?`, boolInt(fav), id)
		return err
	})
}

// SetChannelHidden flips the hidden flag on one channel.
func (s *Store) SetChannelHidden(id string, hidden bool) error {
	return s.inTx([]string{tableChannels}, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE channels SET is_hidden = ? WHERE id = ?`, boolInt(hidden), id)
		return err
	})
}

// TouchChannelWatched records that the channel was tuned at t.
func (s *Store) TouchChannelWatched(id string, t time.Time) error {
	return s.inTx([]string{tableChannels}, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE channels SET last_watched = ? WHERE id = ?`, unix(t), id)
		return err
	})
}

// DistinctGroupTitles returns the non-empty channel group titles across
// active playlists, for building the group filter menu.
func (s *Store) DistinctGroupTitles() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT c.group_title FROM channels c
		JOIN playlists p ON p.id = c.playlist_id AND p.is_active = 1
		WHERE c.group_title <> ''
		ORDER BY c.group_title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
