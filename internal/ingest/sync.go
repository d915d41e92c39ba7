// Package ingest turns provider data into catalog rows: Xtream account
// aggregation, M3U playlist import, and XMLTV guide loading.
package ingest

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/iptvault/iptvault/internal/catalog"
	"github.com/iptvault/iptvault/internal/metrics"
	"github.com/iptvault/iptvault/internal/store"
	"github.com/iptvault/iptvault/internal/xtream"
)

// Syncer refreshes playlists into the store. Concurrent refreshes of
// different playlists run in parallel; refreshes of the same playlist
// are serialized.
type Syncer struct {
	Store   *store.Store
	Metrics *metrics.Metrics

	// HTTP is used for every provider request (player_api, M3U, XMLTV).
	// nil means the shared tuned client; the daemon passes one built
	// from IPTVAULT_HTTP_TIMEOUT.
	HTTP *http.Client

	// NewClient builds the provider client for an Xtream playlist.
	// Tests point it at a local server; nil means xtream.NewClient.
	NewClient func(serverURL, username, password string) (*xtream.Client, error)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSyncer(st *store.Store, m *metrics.Metrics) *Syncer {
	return &Syncer{Store: st, Metrics: m, locks: make(map[string]*sync.Mutex)}
}

func (s *Syncer) lockFor(playlistID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[playlistID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[playlistID] = l
	}
	return l
}

// SectionResult is the outcome of one content section of a refresh.
type SectionResult struct {
	Fetched int // entities fetched from the provider
	Err     error
}

// Report describes a finished refresh. A refresh that authenticated but
// lost one or more sections is partial: the surviving sections were
// written, the failed ones kept their previous rows.
type Report struct {
	PlaylistID string
	Live       SectionResult
	Movies     SectionResult
	Series     SectionResult
}

// Partial reports whether at least one section failed.
func (r Report) Partial() bool {
	return r.Live.Err != nil || r.Movies.Err != nil || r.Series.Err != nil
}

func (r Report) result() string {
	if r.Partial() {
		return metrics.ResultPartial
	}
	return metrics.ResultOK
}

// Summary renders a one-line refresh outcome for logs.
func (r Report) Summary() string {
	sect := func(name string, sr SectionResult) string {
		if sr.Err != nil {
			return name + "=FAILED"
		}
		return fmt.Sprintf("%s=%d", name, sr.Fetched)
	}
	return fmt.Sprintf("%s %s %s",
		sect("live", r.Live), sect("movies", r.Movies), sect("series", r.Series))
}

// RefreshPlaylist syncs one playlist end to end. A returned error means
// nothing was written (bad config, failed auth, failed M3U fetch);
// section-level failures are carried in the Report instead.
func (s *Syncer) RefreshPlaylist(ctx context.Context, pl catalog.Playlist) (Report, error) {
	l := s.lockFor(pl.ID)
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	rep, err := s.refresh(ctx, pl)
	if err != nil {
		s.Metrics.ObserveRefresh(metrics.ResultFailed, time.Since(start).Seconds())
		if xk := xtream.KindOf(err); xk != "" {
			s.Metrics.ProviderError(string(xk))
		}
		return rep, err
	}
	s.Metrics.ObserveRefresh(rep.result(), time.Since(start).Seconds())
	log.Printf("[SYNC] playlist %s refreshed: %s", pl.ID, rep.Summary())
	return rep, nil
}

func (s *Syncer) refresh(ctx context.Context, pl catalog.Playlist) (Report, error) {
	rep := Report{PlaylistID: pl.ID}
	switch pl.Type {
	case catalog.PlaylistXtreamCodes:
		return s.refreshXtream(ctx, pl)
	case catalog.PlaylistM3U:
		return s.refreshM3U(ctx, pl)
	default:
		return rep, fmt.Errorf("playlist %s: unknown type %q", pl.ID, pl.Type)
	}
}

func (s *Syncer) clientFor(pl catalog.Playlist) (*xtream.Client, error) {
	build := xtream.NewClient
	if s.NewClient != nil {
		build = s.NewClient
	}
	client, err := build(pl.ServerURL, pl.Username, pl.Password)
	if err != nil {
		return nil, err
	}
	if s.HTTP != nil {
		client.HTTP = s.HTTP
	}
	return client, nil
}

// refreshXtream aggregates an Xtream account. Authentication failure
// aborts the whole refresh; after that each section (live, movies,
// series) fails independently and the others still land.
func (s *Syncer) refreshXtream(ctx context.Context, pl catalog.Playlist) (Report, error) {
	rep := Report{PlaylistID: pl.ID}

	client, err := s.clientFor(pl)
	if err != nil {
		return rep, fmt.Errorf("playlist %s: %w", pl.ID, err)
	}
	if _, err := client.Authenticate(ctx); err != nil {
		return rep, fmt.Errorf("playlist %s: %w", pl.ID, err)
	}

	var cats []catalog.Category

	channels, liveCats, err := s.fetchLive(ctx, client, pl)
	rep.Live = SectionResult{Fetched: len(channels), Err: err}
	cats = append(cats, liveCats...)

	movies, vodCats, err := s.fetchVOD(ctx, client, pl)
	rep.Movies = SectionResult{Fetched: len(movies), Err: err}
	cats = append(cats, vodCats...)

	shows, seriesCats, err := s.fetchSeries(ctx, client, pl)
	rep.Series = SectionResult{Fetched: len(shows), Err: err}
	cats = append(cats, seriesCats...)

	if err := s.Store.UpsertCategories(cats); err != nil {
		return rep, fmt.Errorf("playlist %s: store categories: %w", pl.ID, err)
	}
	if rep.Live.Err == nil {
		if err := s.Store.UpsertChannels(channels); err != nil {
			return rep, fmt.Errorf("playlist %s: store channels: %w", pl.ID, err)
		}
		s.Metrics.AddRows("channels", len(channels))
	} else {
		s.sectionFailed(pl.ID, "live", rep.Live.Err)
	}
	if rep.Movies.Err == nil {
		if err := s.Store.UpsertMovies(movies); err != nil {
			return rep, fmt.Errorf("playlist %s: store movies: %w", pl.ID, err)
		}
		s.Metrics.AddRows("movies", len(movies))
	} else {
		s.sectionFailed(pl.ID, "movies", rep.Movies.Err)
	}
	if rep.Series.Err == nil {
		if err := s.Store.UpsertSeries(shows); err != nil {
			return rep, fmt.Errorf("playlist %s: store series: %w", pl.ID, err)
		}
		s.Metrics.AddRows("series", len(shows))
	} else {
		s.sectionFailed(pl.ID, "series", rep.Series.Err)
	}

	if err := s.updateCounts(pl, rep); err != nil {
		return rep, err
	}
	return rep, nil
}

func (s *Syncer) sectionFailed(playlistID, section string, err error) {
	log.Printf("[SYNC] playlist %s: %s section failed, keeping previous rows: %v", playlistID, section, err)
	if xk := xtream.KindOf(err); xk != "" {
		s.Metrics.ProviderError(string(xk))
	}
}

// updateCounts refreshes the denormalized per-playlist counters from
// what is actually stored, so a partial refresh still reports the rows
// a failed section kept.
func (s *Syncer) updateCounts(pl catalog.Playlist, rep Report) error {
	chs, err := s.Store.Channels(pl.ID)
	if err != nil {
		return fmt.Errorf("playlist %s: count channels: %w", pl.ID, err)
	}
	nch := 0
	for _, c := range chs {
		if !c.IsDivider {
			nch++
		}
	}
	movies, err := s.Store.Movies(pl.ID)
	if err != nil {
		return fmt.Errorf("playlist %s: count movies: %w", pl.ID, err)
	}
	shows, err := s.Store.Series(pl.ID)
	if err != nil {
		return fmt.Errorf("playlist %s: count series: %w", pl.ID, err)
	}
	if err := s.Store.UpdatePlaylistCounts(pl.ID, nch, len(movies), len(shows), time.Now()); err != nil {
		return fmt.Errorf("playlist %s: update counts: %w", pl.ID, err)
	}
	return nil
}

func (s *Syncer) fetchLive(ctx context.Context, client *xtream.Client, pl catalog.Playlist) ([]catalog.Channel, []catalog.Category, error) {
	cats, err := client.Categories(ctx, catalog.ContentLiveTV)
	if err != nil {
		return nil, nil, err
	}
	streams, err := client.LiveStreams(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	catRows, catIDs := mapCategories(pl, catalog.ContentLiveTV, cats)
	channels := make([]catalog.Channel, 0, len(streams))
	for i, st := range streams {
		sid := st.StreamID.String()
		if sid == "" {
			continue
		}
		channels = append(channels, catalog.Channel{
			ID:           pl.ID + "_ch_" + sid,
			PlaylistID:   pl.ID,
			CategoryID:   catIDs[st.CategoryID.String()],
			Name:         nameOr(st.Name, "Channel "+sid),
			StreamURL:    client.LiveURL(sid),
			LogoURL:      st.StreamIcon,
			EPGChannelID: st.EPGChannelID.String(),
			SortOrder:    sortOr(st.Num.Int(), i),
		})
	}
	return channels, catRows, nil
}

func (s *Syncer) fetchVOD(ctx context.Context, client *xtream.Client, pl catalog.Playlist) ([]catalog.Movie, []catalog.Category, error) {
	cats, err := client.Categories(ctx, catalog.ContentMovie)
	if err != nil {
		return nil, nil, err
	}
	streams, err := client.VODStreams(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	catRows, catIDs := mapCategories(pl, catalog.ContentMovie, cats)
	movies := make([]catalog.Movie, 0, len(streams))
	for i, st := range streams {
		sid := st.StreamID.String()
		if sid == "" {
			continue
		}
		movies = append(movies, catalog.Movie{
			ID:           pl.ID + "_mov_" + sid,
			PlaylistID:   pl.ID,
			CategoryID:   catIDs[st.CategoryID.String()],
			StreamID:     st.StreamID.Int(),
			Name:         nameOr(st.Name, "Movie "+sid),
			StreamURL:    client.MovieURL(sid, st.ContainerExtension),
			ContainerExt: extOr(st.ContainerExtension, xtream.DefaultVODExt),
			PosterURL:    st.StreamIcon,
			Year:         parseYear(st.ReleaseDate),
			Rating:       parseRating(st.Rating.String()),
			SortOrder:    sortOr(st.Num.Int(), i),
		})
	}
	return movies, catRows, nil
}

func (s *Syncer) fetchSeries(ctx context.Context, client *xtream.Client, pl catalog.Playlist) ([]catalog.Series, []catalog.Category, error) {
	cats, err := client.Categories(ctx, catalog.ContentSeries)
	if err != nil {
		return nil, nil, err
	}
	entries, err := client.Series(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	catRows, catIDs := mapCategories(pl, catalog.ContentSeries, cats)
	shows := make([]catalog.Series, 0, len(entries))
	for i, se := range entries {
		sid := se.SeriesID.String()
		if sid == "" {
			continue
		}
		shows = append(shows, catalog.Series{
			ID:         pl.ID + "_ser_" + sid,
			PlaylistID: pl.ID,
			CategoryID: catIDs[se.CategoryID.String()],
			SeriesID:   se.SeriesID.Int(),
			Name:       nameOr(se.Name, "Series "+sid),
			PosterURL:  se.Cover,
			Genre:      se.Genre,
			Year:       parseYear(se.ReleaseDate),
			Rating:     parseRating(se.Rating.String()),
			Plot:       se.Plot,
			SortOrder:  i,
		})
	}
	return shows, catRows, nil
}

// SyncSeriesEpisodes fetches the episode list for one stored show and
// upserts it. Episodes vanish from a show only when the show itself is
// deleted; a provider that temporarily drops a season does not erase
// local watch state.
func (s *Syncer) SyncSeriesEpisodes(ctx context.Context, pl catalog.Playlist, show catalog.Series) ([]catalog.Episode, error) {
	client, err := s.clientFor(pl)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", show.ID, err)
	}
	info, err := client.SeriesInfo(ctx, strconv.Itoa(show.SeriesID))
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", show.ID, err)
	}
	var eps []catalog.Episode
	for seasonKey, list := range info.Episodes {
		season, _ := strconv.Atoi(seasonKey)
		for _, e := range list {
			eid := e.ID.String()
			if eid == "" {
				continue
			}
			if n := e.Season.Int(); n > 0 {
				season = n
			}
			eps = append(eps, catalog.Episode{
				ID:           show.ID + "_ep_" + eid,
				SeriesID:     show.ID,
				Season:       season,
				EpisodeNum:   e.EpisodeNum.Int(),
				Name:         nameOr(e.Title, fmt.Sprintf("Episode %d", e.EpisodeNum.Int())),
				StreamURL:    client.EpisodeURL(eid, e.ContainerExtension),
				ContainerExt: extOr(e.ContainerExtension, xtream.DefaultSeriesExt),
				DurationSecs: e.Info.DurationSecs.Int(),
			})
		}
	}
	if err := s.Store.UpsertEpisodes(eps); err != nil {
		return nil, fmt.Errorf("series %s: store episodes: %w", show.ID, err)
	}
	s.Metrics.AddRows("episodes", len(eps))
	log.Printf("[SYNC] series %s: %d episodes", show.ID, len(eps))
	return eps, nil
}

// mapCategories converts provider categories and returns the rows plus
// the provider-id -> row-id lookup used to link content to them.
func mapCategories(pl catalog.Playlist, kind catalog.ContentType, cats []xtream.Category) ([]catalog.Category, map[string]string) {
	prefix := map[catalog.ContentType]string{
		catalog.ContentLiveTV: "live",
		catalog.ContentMovie:  "vod",
		catalog.ContentSeries: "series",
	}[kind]
	rows := make([]catalog.Category, 0, len(cats))
	ids := make(map[string]string, len(cats))
	for i, c := range cats {
		ext := c.CategoryID.String()
		if ext == "" {
			continue
		}
		id := pl.ID + "_" + prefix + "_cat_" + ext
		rows = append(rows, catalog.Category{
			ID:         id,
			PlaylistID: pl.ID,
			ExternalID: ext,
			Name:       nameOr(c.CategoryName, "Category "+ext),
			Type:       kind,
			SortOrder:  i,
		})
		ids[ext] = id
	}
	return rows, ids
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func extOr(ext, fallback string) string {
	if ext == "" {
		return fallback
	}
	return ext
}

func sortOr(num, index int) int {
	if num > 0 {
		return num
	}
	return index
}

func parseYear(releaseDate string) int {
	if len(releaseDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(releaseDate[:4])
	if err != nil || y < 1800 || y > 3000 {
		return 0
	}
	return y
}

func parseRating(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
