package store

import "fmt"

// Table names used for change notification. A write notifies every
// watcher whose query touches one of the written tables.
const (
	tablePlaylists  = "playlists"
	tableCategories = "categories"
	tableChannels   = "channels"
	tableMovies     = "movies"
	tableSeries     = "series"
	tableEpisodes   = "episodes"
	tablePrograms   = "epg_programs"
	tableHistory    = "playback_history"
)

// migrations is the ordered, additive schema history. PRAGMA user_version
// records how many entries have been applied; never edit an existing
// entry, only append.
var migrations = []string{
	`
CREATE TABLE playlists (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	type          TEXT NOT NULL,
	url           TEXT NOT NULL DEFAULT '',
	server_url    TEXT NOT NULL DEFAULT '',
	username      TEXT NOT NULL DEFAULT '',
	password      TEXT NOT NULL DEFAULT '',
	epg_url       TEXT NOT NULL DEFAULT '',
	last_updated  INTEGER NOT NULL DEFAULT 0,
	is_active     INTEGER NOT NULL DEFAULT 1,
	channel_count INTEGER NOT NULL DEFAULT 0,
	movie_count   INTEGER NOT NULL DEFAULT 0,
	series_count  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE categories (
	id          TEXT PRIMARY KEY,
	playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
	external_id TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	content_type TEXT NOT NULL,
	sort_order  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_categories_playlist ON categories(playlist_id, content_type);

CREATE TABLE channels (
	id             TEXT PRIMARY KEY,
	playlist_id    TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
	category_id    TEXT REFERENCES categories(id) ON DELETE SET NULL,
	name           TEXT NOT NULL,
	stream_url     TEXT NOT NULL DEFAULT '',
	logo_url       TEXT NOT NULL DEFAULT '',
	epg_channel_id TEXT NOT NULL DEFAULT '',
	group_title    TEXT NOT NULL DEFAULT '',
	is_favorite    INTEGER NOT NULL DEFAULT 0,
	is_hidden      INTEGER NOT NULL DEFAULT 0,
	is_divider     INTEGER NOT NULL DEFAULT 0,
	last_watched   INTEGER NOT NULL DEFAULT 0,
	sort_order     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_channels_playlist ON channels(playlist_id);
CREATE INDEX idx_channels_category ON channels(category_id);
CREATE INDEX idx_channels_epg ON channels(epg_channel_id);

CREATE TABLE movies (
	id            TEXT PRIMARY KEY,
	playlist_id   TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
	category_id   TEXT REFERENCES categories(id) ON DELETE SET NULL,
	stream_id     INTEGER NOT NULL DEFAULT 0,
	name          TEXT NOT NULL,
	stream_url    TEXT NOT NULL DEFAULT '',
	container_ext TEXT NOT NULL DEFAULT 'mp4',
	poster_url    TEXT NOT NULL DEFAULT '',
	genre         TEXT NOT NULL DEFAULT '',
	year          INTEGER NOT NULL DEFAULT 0,
	rating        REAL NOT NULL DEFAULT 0,
	plot          TEXT NOT NULL DEFAULT '',
	duration_secs INTEGER NOT NULL DEFAULT 0,
	is_favorite   INTEGER NOT NULL DEFAULT 0,
	sort_order    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_movies_playlist ON movies(playlist_id);
CREATE INDEX idx_movies_category ON movies(category_id);

CREATE TABLE series (
	id          TEXT PRIMARY KEY,
	playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
	category_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
	series_id   INTEGER NOT NULL DEFAULT 0,
	name        TEXT NOT NULL,
	poster_url  TEXT NOT NULL DEFAULT '',
	genre       TEXT NOT NULL DEFAULT '',
	year        INTEGER NOT NULL DEFAULT 0,
	rating      REAL NOT NULL DEFAULT 0,
	plot        TEXT NOT NULL DEFAULT '',
	is_favorite INTEGER NOT NULL DEFAULT 0,
	sort_order  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_series_playlist ON series(playlist_id);
CREATE INDEX idx_series_category ON series(category_id);

CREATE TABLE episodes (
	id            TEXT PRIMARY KEY,
	series_id     TEXT NOT NULL REFERENCES series(id) ON DELETE CASCADE,
	season        INTEGER NOT NULL DEFAULT 0,
	episode_num   INTEGER NOT NULL DEFAULT 0,
	name          TEXT NOT NULL DEFAULT '',
	stream_url    TEXT NOT NULL DEFAULT '',
	container_ext TEXT NOT NULL DEFAULT 'mp4',
	duration_secs INTEGER NOT NULL DEFAULT 0,
	position_secs INTEGER NOT NULL DEFAULT 0,
	is_watched    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_episodes_series ON episodes(series_id, season, episode_num);

CREATE TABLE epg_programs (
	id             TEXT PRIMARY KEY,
	channel_id     TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	epg_channel_id TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	start_time     INTEGER NOT NULL,
	end_time       INTEGER NOT NULL
);
CREATE INDEX idx_programs_channel_time ON epg_programs(channel_id, start_time, end_time);
CREATE INDEX idx_programs_end ON epg_programs(end_time);

CREATE TABLE playback_history (
	content_type  TEXT NOT NULL,
	content_id    TEXT NOT NULL,
	position_secs INTEGER NOT NULL DEFAULT 0,
	duration_secs INTEGER NOT NULL DEFAULT 0,
	updated_at    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (content_type, content_id)
);
`,
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("catalog db schema version %d is newer than this build supports (%d)", version, len(migrations))
	}
	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("bump schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
