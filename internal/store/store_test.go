package store

import (
	"errors"
	"testing"
	"time"

	"github.com/iptvault/iptvault/internal/catalog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPlaylist(t *testing.T, s *Store, id string, active bool) catalog.Playlist {
	t.Helper()
	p := catalog.Playlist{
		ID:       id,
		Name:     "Playlist " + id,
		Type:     catalog.PlaylistXtreamCodes,
		IsActive: active,
	}
	if err := s.UpsertPlaylist(p); err != nil {
		t.Fatalf("seed playlist %s: %v", id, err)
	}
	return p
}

func seedChannel(t *testing.T, s *Store, id, playlistID, categoryID string) catalog.Channel {
	t.Helper()
	c := catalog.Channel{ID: id, PlaylistID: playlistID, CategoryID: categoryID, Name: "Channel " + id}
	if err := s.UpsertChannels([]catalog.Channel{c}); err != nil {
		t.Fatalf("seed channel %s: %v", id, err)
	}
	return c
}

func TestPlaylistRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := catalog.Playlist{
		ID:          "p1",
		Name:        "Home",
		Type:        catalog.PlaylistXtreamCodes,
		ServerURL:   "http://provider:8080",
		Username:    "user",
		Password:    "pass",
		EPGURL:      "http://provider/xmltv.php",
		LastUpdated: time.Unix(1700000000, 0).UTC(),
		IsActive:    true,
	}
	if err := s.UpsertPlaylist(want); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.Playlist("p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
	if _, err := s.Playlist("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing playlist: got %v, want ErrNotFound", err)
	}
}

func TestUpsertPlaylistReplacesInPlace(t *testing.T) {
	s := newTestStore(t)
	pl := seedPlaylist(t, s, "p1", true)
	seedChannel(t, s, "c1", "p1", "")

	// Re-upserting the playlist must not fire the delete cascade.
	pl.Name = "Renamed"
	if err := s.UpsertPlaylist(pl); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if _, err := s.Channel("c1"); err != nil {
		t.Fatalf("child channel vanished after playlist upsert: %v", err)
	}
	got, _ := s.Playlist("p1")
	if got.Name != "Renamed" {
		t.Errorf("name = %q, want Renamed", got.Name)
	}
}

func TestUpsertBatchMixedNewAndExisting(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "p1", true)
	if err := s.UpsertChannels([]catalog.Channel{{
		ID: "c1", PlaylistID: "p1", Name: "Old Name",
		StreamURL: "http://old/1.ts", IsFavorite: true, SortOrder: 9,
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// One existing key, one new key in the same batch.
	if err := s.UpsertChannels([]catalog.Channel{
		{ID: "c1", PlaylistID: "p1", Name: "New Name", StreamURL: "http://new/1.ts", SortOrder: 1},
		{ID: "c2", PlaylistID: "p1", Name: "Second", StreamURL: "http://new/2.ts", SortOrder: 2},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	channels, err := s.Channels("p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("rows = %d, want exactly 2 (one per key)", len(channels))
	}
	got, _ := s.Channel("c1")
	if got.Name != "New Name" || got.StreamURL != "http://new/1.ts" ||
		got.IsFavorite || got.SortOrder != 1 {
		t.Errorf("existing row not fully replaced: %+v", got)
	}
	if _, err := s.Channel("c2"); err != nil {
		t.Errorf("new row missing: %v", err)
	}
}

func TestDeletePlaylistCascades(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "p1", true)
	if err := s.UpsertCategories([]catalog.Category{
		{ID: "cat1", PlaylistID: "p1", Name: "News", Type: catalog.ContentLiveTV},
	}); err != nil {
		t.Fatalf("categories: %v", err)
	}
	seedChannel(t, s, "c1", "p1", "cat1")
	if err := s.UpsertMovies([]catalog.Movie{{ID: "m1", PlaylistID: "p1", Name: "Heat"}}); err != nil {
		t.Fatalf("movies: %v", err)
	}
	if err := s.UpsertSeries([]catalog.Series{{ID: "sr1", PlaylistID: "p1", Name: "Lost"}}); err != nil {
		t.Fatalf("series: %v", err)
	}
	if err := s.UpsertEpisodes([]catalog.Episode{{ID: "e1", SeriesID: "sr1", Season: 1, EpisodeNum: 1}}); err != nil {
		t.Fatalf("episodes: %v", err)
	}
	if err := s.UpsertPrograms([]catalog.EpgProgram{{
		ID: "pr1", ChannelID: "c1",
		StartTime: time.Unix(1000, 0), EndTime: time.Unix(2000, 0),
	}}); err != nil {
		t.Fatalf("programs: %v", err)
	}

	if err := s.DeletePlaylist("p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for name, check := range map[string]func() error{
		"channel": func() error { _, err := s.Channel("c1"); return err },
		"movie":   func() error { _, err := s.Movie("m1"); return err },
		"series":  func() error { _, err := s.SeriesByID("sr1"); return err },
		"episode": func() error { _, err := s.Episode("e1"); return err },
		"program": func() error { _, err := s.CurrentProgram("c1", time.Unix(1500, 0)); return err },
	} {
		if err := check(); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s survived playlist delete: %v", name, err)
		}
	}
}

func TestDeleteCategoryDetachesContent(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "p1", true)
	if err := s.UpsertCategories([]catalog.Category{
		{ID: "cat1", PlaylistID: "p1", Name: "News", Type: catalog.ContentLiveTV},
	}); err != nil {
		t.Fatalf("categories: %v", err)
	}
	seedChannel(t, s, "c1", "p1", "cat1")

	if err := s.DeleteCategory("cat1"); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	got, err := s.Channel("c1")
	if err != nil {
		t.Fatalf("channel deleted with its category: %v", err)
	}
	if got.CategoryID != "" {
		t.Errorf("CategoryID = %q after category delete, want empty", got.CategoryID)
	}
}

func TestChannelOrdering(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "p1", true)
	chs := []catalog.Channel{
		{ID: "b", PlaylistID: "p1", Name: "Beta", SortOrder: 2},
		{ID: "z", PlaylistID: "p1", Name: "Alpha", SortOrder: 1},
		{ID: "a2", PlaylistID: "p1", Name: "Same", SortOrder: 3},
		{ID: "a1", PlaylistID: "p1", Name: "Same", SortOrder: 3},
	}
	if err := s.UpsertChannels(chs); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.Channels("p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	want := []string{"z", "b", "a1", "a2"} // sort_order, then name, then id
	if len(ids) != len(want) {
		t.Fatalf("got %d channels, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
}

func TestBatchUpsertIsAtomic(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "p1", true)
	seedChannel(t, s, "c1", "p1", "")

	// Second row violates the playlist FK; the whole batch must roll back.
	err := s.UpsertChannels([]catalog.Channel{
		{ID: "c1", PlaylistID: "p1", Name: "Updated"},
		{ID: "c2", PlaylistID: "ghost", Name: "Orphan"},
	})
	if err == nil {
		t.Fatal("expected FK violation")
	}
	got, err := s.Channel("c1")
	if err != nil {
		t.Fatalf("get c1: %v", err)
	}
	if got.Name != "Channel c1" {
		t.Errorf("c1 name = %q; partial batch was committed", got.Name)
	}
}

func TestUpsertChannelPreservesPrograms(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "p1", true)
	seedChannel(t, s, "c1", "p1", "")
	if err := s.UpsertPrograms([]catalog.EpgProgram{{
		ID: "pr1", ChannelID: "c1", Title: "News",
		StartTime: time.Unix(1000, 0), EndTime: time.Unix(2000, 0),
	}}); err != nil {
		t.Fatalf("programs: %v", err)
	}

	// A catalog refresh rewrites every channel row; guide rows must survive.
	if err := s.UpsertChannels([]catalog.Channel{
		{ID: "c1", PlaylistID: "p1", Name: "Channel c1 HD"},
	}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	progs, err := s.Programs("c1")
	if err != nil {
		t.Fatalf("programs: %v", err)
	}
	if len(progs) != 1 {
		t.Fatalf("got %d programs after channel upsert, want 1", len(progs))
	}
}

func TestFavoritesAndDistinctScopeToActivePlaylists(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "on", true)
	seedPlaylist(t, s, "off", false)
	if err := s.UpsertChannels([]catalog.Channel{
		{ID: "a", PlaylistID: "on", Name: "Active Fav", GroupTitle: "Sports", IsFavorite: true},
		{ID: "b", PlaylistID: "off", Name: "Inactive Fav", GroupTitle: "Movies", IsFavorite: true},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	favs, err := s.FavoriteChannels()
	if err != nil {
		t.Fatalf("favorites: %v", err)
	}
	if len(favs) != 1 || favs[0].ID != "a" {
		t.Errorf("favorites = %v, want just channel a", favs)
	}

	groups, err := s.DistinctGroupTitles()
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if len(groups) != 1 || groups[0] != "Sports" {
		t.Errorf("groups = %v, want [Sports]", groups)
	}
}

func TestDeleteSeriesCascadesEpisodes(t *testing.T) {
	s := newTestStore(t)
	seedPlaylist(t, s, "p1", true)
	if err := s.UpsertSeries([]catalog.Series{{ID: "sr1", PlaylistID: "p1", Name: "Lost"}}); err != nil {
		t.Fatalf("series: %v", err)
	}
	if err := s.UpsertEpisodes([]catalog.Episode{
		{ID: "e1", SeriesID: "sr1", Season: 1, EpisodeNum: 1},
		{ID: "e2", SeriesID: "sr1", Season: 1, EpisodeNum: 2},
	}); err != nil {
		t.Fatalf("episodes: %v", err)
	}
	if err := s.DeleteSeries("sr1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Episode("e1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("episode survived series delete: %v", err)
	}
}
