package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iptvault/iptvault/internal/catalog"
)

// ErrNotFound is returned by single-row getters when no row matches.
var ErrNotFound = errors.New("store: not found")

const playlistCols = `id, name, type, url, server_url, username, password, epg_url,
	last_updated, is_active, channel_count, movie_count, series_count`

func scanPlaylist(row interface{ Scan(...any) error }) (catalog.Playlist, error) {
	var p catalog.Playlist
	var updated int64
	var active int
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.URL, &p.ServerURL, &p.Username,
		&p.Password, &p.EPGURL, &updated, &active, &p.ChannelCount, &p.MovieCount,
		&p.SeriesCount)
	if err != nil {
		return catalog.Playlist{}, err
	}
	p.LastUpdated = fromUnix(updated)
	p.IsActive = active != 0
	return p, nil
}

// UpsertPlaylist inserts or fully replaces the playlist row with p.ID.
func (s *Store) UpsertPlaylist(p catalog.Playlist) error {
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("upsert playlist: id and name required")
	}
	return s.inTx([]string{tablePlaylists}, func(tx *sql.Tx) error {
		return upsertPlaylistTx(tx, p)
	})
}

func upsertPlaylistTx(tx *sql.Tx, p catalog.Playlist) error {
	_, err := tx.Exec(`INSERT INTO playlists (`+playlistCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, type=excluded.type, url=excluded.url,
			server_url=excluded.server_url, username=excluded.username,
			password=excluded.password, epg_url=excluded.epg_url,
			last_updated=excluded.last_updated, is_active=excluded.is_active,
			channel_count=excluded.channel_count, movie_count=excluded.movie_count,
			series_count=excluded.series_count`,
		p.ID, p.Name, string(p.Type), p.URL, p.ServerURL, p.Username, p.Password,
		p.EPGURL, unix(p.LastUpdated), boolInt(p.IsActive), p.ChannelCount,
		p.MovieCount, p.SeriesCount)
	return err
}

// Playlist returns the playlist with the given id.
func (s *Store) Playlist(id string) (catalog.Playlist, error) {
	p, err := scanPlaylist(s.db.QueryRow(
		`SELECT `+playlistCols+` FROM playlists WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Playlist{}, ErrNotFound
	}
	return p, err
}

// Playlists returns all playlists ordered by name.
func (s *Store) Playlists() ([]catalog.Playlist, error) {
	return s.queryPlaylists(`SELECT ` + playlistCols + ` FROM playlists ORDER BY name, id`)
}

// ActivePlaylists returns playlists eligible for sync and for the
// cross-playlist distinct/search queries.
func (s *Store) ActivePlaylists() ([]catalog.Playlist, error) {
	return s.queryPlaylists(`SELECT ` + playlistCols + ` FROM playlists WHERE is_active = 1 ORDER BY name, id`)
}

func (s *Store) queryPlaylists(q string, args ...any) ([]catalog.Playlist, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePlaylist removes the playlist and, through the schema's cascade
// rules, every category/channel/movie/series/episode/program that
// references it.
func (s *Store) DeletePlaylist(id string) error {
	return s.inTx([]string{tablePlaylists, tableCategories, tableChannels,
		tableMovies, tableSeries, tableEpisodes, tablePrograms}, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM playlists WHERE id = ?`, id)
		return err
	})
}

// SetPlaylistActive toggles a playlist without touching its catalog rows.
func (s *Store) SetPlaylistActive(id string, active bool) error {
	return s.inTx([]string{tablePlaylists}, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE playlists SET is_active = ? WHERE id = ?`, boolInt(active), id)
		return err
	})
}

// UpdatePlaylistCounts stores the denormalized counts and sync timestamp
// after a successful refresh.
func (s *Store) UpdatePlaylistCounts(id string, channels, movies, series int, at time.Time) error {
	return s.inTx([]string{tablePlaylists}, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE playlists
			SET channel_count = ?, movie_count = ?, series_count = ?, last_updated = ?
			WHERE id = ?`, channels, movies, series, unix(at), id)
		return err
	})
}
