package store

import (
	"strconv"
	"strings"

	"github.com/iptvault/iptvault/internal/catalog"
)

// Search glyph names, consumed by the UI layer to pick a category icon
// per result variant.
const (
	GlyphLiveTV = "tv"
	GlyphMovie  = "film"
	GlyphSeries = "tv-series"
)

// escapeLike escapes LIKE wildcards in user input so a search for "100%"
// matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// SearchChannels finds non-divider, non-hidden channels of active
// playlists whose name contains query (case-insensitive). groupTitle
// narrows the scope when non-empty.
func (s *Store) SearchChannels(query, groupTitle string) ([]catalog.Channel, error) {
	q := `SELECT ` + chanColsQualified + ` FROM channels c
		JOIN playlists p ON p.id = c.playlist_id AND p.is_active = 1
		WHERE c.is_divider = 0 AND c.is_hidden = 0
			AND c.name LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query) + "%"}
	if groupTitle != "" {
		q += ` AND c.group_title = ?`
		args = append(args, groupTitle)
	}
	q += ` ORDER BY c.sort_order, c.name, c.id`
	return s.queryChannels(q, args...)
}

// SearchMovies finds movies of active playlists whose name contains
// query; genre narrows the scope when non-empty.
func (s *Store) SearchMovies(query, genre string) ([]catalog.Movie, error) {
	q := `SELECT ` + prefixCols(movieCols, "m") + ` FROM movies m
		JOIN playlists p ON p.id = m.playlist_id AND p.is_active = 1
		WHERE m.name LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query) + "%"}
	if genre != "" {
		q += ` AND m.genre = ?`
		args = append(args, genre)
	}
	q += ` ORDER BY m.sort_order, m.name, m.id`
	return s.queryMovies(q, args...)
}

// SearchSeries finds series of active playlists whose name contains
// query; genre narrows the scope when non-empty.
func (s *Store) SearchSeries(query, genre string) ([]catalog.Series, error) {
	q := `SELECT ` + prefixCols(seriesCols, "v") + ` FROM series v
		JOIN playlists p ON p.id = v.playlist_id AND p.is_active = 1
		WHERE v.name LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query) + "%"}
	if genre != "" {
		q += ` AND v.genre = ?`
		args = append(args, genre)
	}
	q += ` ORDER BY v.sort_order, v.name, v.id`
	return s.querySeries(q, args...)
}

// Search runs the cross-entity search and folds the hits into the
// SearchResult union: channels first, then movies, then series, each in
// their own display order. Subtitles are the group title for channels
// and genre/year for VOD.
func (s *Store) Search(query string) ([]catalog.SearchResult, error) {
	chs, err := s.SearchChannels(query, "")
	if err != nil {
		return nil, err
	}
	movies, err := s.SearchMovies(query, "")
	if err != nil {
		return nil, err
	}
	series, err := s.SearchSeries(query, "")
	if err != nil {
		return nil, err
	}
	out := make([]catalog.SearchResult, 0, len(chs)+len(movies)+len(series))
	for i := range chs {
		out = append(out, catalog.SearchResult{
			Kind:     catalog.ContentLiveTV,
			Channel:  &chs[i],
			Subtitle: chs[i].GroupTitle,
			Glyph:    GlyphLiveTV,
		})
	}
	for i := range movies {
		out = append(out, catalog.SearchResult{
			Kind:     catalog.ContentMovie,
			Movie:    &movies[i],
			Subtitle: movieSubtitle(movies[i]),
			Glyph:    GlyphMovie,
		})
	}
	for i := range series {
		out = append(out, catalog.SearchResult{
			Kind:     catalog.ContentSeries,
			Series:   &series[i],
			Subtitle: series[i].Genre,
			Glyph:    GlyphSeries,
		})
	}
	return out, nil
}

func movieSubtitle(m catalog.Movie) string {
	switch {
	case m.Genre != "" && m.Year > 0:
		return m.Genre + " (" + strconv.Itoa(m.Year) + ")"
	case m.Year > 0:
		return strconv.Itoa(m.Year)
	default:
		return m.Genre
	}
}
