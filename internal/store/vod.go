package store

import (
	"database/sql"
	"errors"

	"github.com/iptvault/iptvault/internal/catalog"
)

const movieCols = `id, playlist_id, category_id, stream_id, name, stream_url, container_ext,
	poster_url, genre, year, rating, plot, duration_secs, is_favorite, sort_order`

const seriesCols = `id, playlist_id, category_id, series_id, name, poster_url, genre,
	year, rating, plot, is_favorite, sort_order`

const episodeCols = `id, series_id, season, episode_num, name, stream_url, container_ext,
	duration_secs, position_secs, is_watched`

func scanMovie(row interface{ Scan(...any) error }) (catalog.Movie, error) {
	var m catalog.Movie
	var cat sql.NullString
	var fav int
	err := row.Scan(&m.ID, &m.PlaylistID, &cat, &m.StreamID, &m.Name, &m.StreamURL,
		&m.ContainerExt, &m.PosterURL, &m.Genre, &m.Year, &m.Rating, &m.Plot,
		&m.DurationSecs, &fav, &m.SortOrder)
	if err != nil {
		return catalog.Movie{}, err
	}
	m.CategoryID = cat.String
	m.IsFavorite = fav != 0
	return m, nil
}

func scanSeries(row interface{ Scan(...any) error }) (catalog.Series, error) {
	var sr catalog.Series
	var cat sql.NullString
	var fav int
	err := row.Scan(&sr.ID, &sr.PlaylistID, &cat, &sr.SeriesID, &sr.Name, &sr.PosterURL,
		&sr.Genre, &sr.Year, &sr.Rating, &sr.Plot, &fav, &sr.SortOrder)
	if err != nil {
		return catalog.Series{}, err
	}
	sr.CategoryID = cat.String
	sr.IsFavorite = fav != 0
	return sr, nil
}

func scanEpisode(row interface{ Scan(...any) error }) (catalog.Episode, error) {
	var e catalog.Episode
	var watched int
	err := row.Scan(&e.ID, &e.SeriesID, &e.Season, &e.EpisodeNum, &e.Name,
		&e.StreamURL, &e.ContainerExt, &e.DurationSecs, &e.PositionSecs, &watched)
	if err != nil {
		return catalog.Episode{}, err
	}
	e.IsWatched = watched != 0
	return e, nil
}

// UpsertMovies writes the batch atomically with per-row replace-on-conflict.
func (s *Store) UpsertMovies(movies []catalog.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	return s.inTx([]string{tableMovies}, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO movies (` + movieCols + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				playlist_id=excluded.playlist_id, category_id=excluded.category_id,
				stream_id=excluded.stream_id, name=excluded.name,
				stream_url=excluded.stream_url, container_ext=excluded.container_ext,
				poster_url=excluded.poster_url, genre=excluded.genre,
				year=excluded.year, rating=excluded.rating, plot=excluded.plot,
				duration_secs=excluded.duration_secs, is_favorite=excluded.is_favorite,
				sort_order=excluded.sort_order`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, m := range movies {
			_, err := stmt.Exec(m.ID, m.PlaylistID, nullable(m.CategoryID), m.StreamID,
				m.Name, m.StreamURL, m.ContainerExt, m.PosterURL, m.Genre, m.Year,
				m.Rating, m.Plot, m.DurationSecs, boolInt(m.IsFavorite), m.SortOrder)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertSeries writes the batch atomically with per-row replace-on-conflict.
func (s *Store) UpsertSeries(series []catalog.Series) error {
	if len(series) == 0 {
		return nil
	}
	return s.inTx([]string{tableSeries}, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO series (` + seriesCols + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				playlist_id=excluded.playlist_id, category_id=excluded.category_id,
				series_id=excluded.series_id, name=excluded.name,
				poster_url=excluded.poster_url, genre=excluded.genre,
				year=excluded.year, rating=excluded.rating, plot=excluded.plot,
				is_favorite=excluded.is_favorite, sort_order=excluded.sort_order`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, sr := range series {
			_, err := stmt.Exec(sr.ID, sr.PlaylistID, nullable(sr.CategoryID), sr.SeriesID,
				sr.Name, sr.PosterURL, sr.Genre, sr.Year, sr.Rating, sr.Plot,
				boolInt(sr.IsFavorite), sr.SortOrder)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertEpisodes writes the batch atomically with per-row replace-on-conflict.
func (s *Store) UpsertEpisodes(eps []catalog.Episode) error {
	if len(eps) == 0 {
		return nil
	}
	return s.inTx([]string{tableEpisodes}, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO episodes (` + episodeCols + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				series_id=excluded.series_id, season=excluded.season,
				episode_num=excluded.episode_num, name=excluded.name,
				stream_url=excluded.stream_url, container_ext=excluded.container_ext,
				duration_secs=excluded.duration_secs,
				position_secs=excluded.position_secs, is_watched=excluded.is_watched`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range eps {
			_, err := stmt.Exec(e.ID, e.SeriesID, e.Season, e.EpisodeNum, e.Name,
				e.StreamURL, e.ContainerExt, e.DurationSecs, e.PositionSecs,
				boolInt(e.IsWatched))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Movie returns one movie by id.
func (s *Store) Movie(id string) (catalog.Movie, error) {
	m, err := scanMovie(s.db.QueryRow(`SELECT `+movieCols+` FROM movies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Movie{}, ErrNotFound
	}
	return m, err
}

// Movies lists a playlist's movies in display order.
func (s *Store) Movies(playlistID string) ([]catalog.Movie, error) {
	return s.queryMovies(`SELECT `+movieCols+` FROM movies
		WHERE playlist_id = ? ORDER BY sort_order, name, id`, playlistID)
}

// MoviesByCategory lists the movies of one category in display order.
func (s *Store) MoviesByCategory(categoryID string) ([]catalog.Movie, error) {
	return s.queryMovies(`SELECT `+movieCols+` FROM movies
		WHERE category_id = ? ORDER BY sort_order, name, id`, categoryID)
}

// FavoriteMovies lists favorites across active playlists.
func (s *Store) FavoriteMovies() ([]catalog.Movie, error) {
	return s.queryMovies(`SELECT ` + prefixCols(movieCols, "m") + ` FROM movies m
		JOIN playlists p ON p.id = m.playlist_id AND p.is_active = 1
		WHERE m.is_favorite = 1 ORDER BY m.sort_order, m.name, m.id`)
}

func (s *Store) queryMovies(q string, args ...any) ([]catalog.Movie, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SeriesByID returns one series by id.
func (s *Store) SeriesByID(id string) (catalog.Series, error) {
	sr, err := scanSeries(s.db.QueryRow(`SELECT `+seriesCols+` FROM series WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Series{}, ErrNotFound
	}
	return sr, err
}

// Series lists a playlist's series in display order.
func (s *Store) Series(playlistID string) ([]catalog.Series, error) {
	return s.querySeries(`SELECT `+seriesCols+` FROM series
		WHERE playlist_id = ? ORDER BY sort_order, name, id`, playlistID)
}

// SeriesByCategory lists the series of one category in display order.
func (s *Store) SeriesByCategory(categoryID string) ([]catalog.Series, error) {
	return s.querySeries(`SELECT `+seriesCols+` FROM series
		WHERE category_id = ? ORDER BY sort_order, name, id`, categoryID)
}

func (s *Store) querySeries(q string, args ...any) ([]catalog.Series, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Series
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// DeleteSeries removes the series and, by cascade, all of its episodes.
func (s *Store) DeleteSeries(id string) error {
	return s.inTx([]string{tableSeries, tableEpisodes}, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM series WHERE id = ?`, id)
		return err
	})
}

// Episodes lists a series' episodes ordered by season then episode number.
func (s *Store) Episodes(seriesID string) ([]catalog.Episode, error) {
	rows, err := s.db.Query(`SELECT `+episodeCols+` FROM episodes
		WHERE series_id = ? ORDER BY season, episode_num, id`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalog.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Episode returns one episode by id.
func (s *Store) Episode(id string) (catalog.Episode, error) {
	e, err := scanEpisode(s.db.QueryRow(`SELECT `+episodeCols+` FROM episodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Episode{}, ErrNotFound
	}
	return e, err
}

// DistinctGenres returns the non-empty genres across active playlists for
// the given VOD kind (movies or series).
func (s *Store) DistinctGenres(kind catalog.ContentType) ([]string, error) {
	table := "movies"
	if kind == catalog.ContentSeries {
		table = "series"
	}
	rows, err := s.db.Query(`SELECT DISTINCT v.genre FROM ` + table + ` v
		JOIN playlists p ON p.id = v.playlist_id AND p.is_active = 1
		WHERE v.genre <> ''
		ORDER BY v.genre`)
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
