package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iptvault/iptvault/internal/catalog"
)

const sampleM3U = `#EXTM3U
#EXTINF:-1 tvg-id="wn.tv" tvg-logo="http://logo/wn.png" group-title="News",World News
http://stream/news/1.ts
#EXTINF:-1 group-title="News",Local News
http://stream/news/2.ts
#EXTINF:-1 tvg-id="sp.tv" group-title="Sports",Sports One
http://stream/sports/1.ts
#EXTINF:-1,Ungrouped
http://stream/misc/1.ts
garbage line without url
#EXTINF:-1,Orphaned extinf followed by junk
not-a-url
`

func TestParseM3U(t *testing.T) {
	entries, err := parseM3U(strings.NewReader(sampleM3U))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	first := entries[0]
	if first.Name != "World News" || first.TVGID != "wn.tv" || first.Group != "News" ||
		first.Logo != "http://logo/wn.png" || first.URL != "http://stream/news/1.ts" {
		t.Errorf("first entry = %+v", first)
	}
	if entries[3].Name != "Ungrouped" || entries[3].Group != "" {
		t.Errorf("ungrouped entry = %+v", entries[3])
	}
}

func TestM3UTitleWithCommaInAttributes(t *testing.T) {
	extinf := `#EXTINF:-1 tvg-name="A, B" group-title="X, Y",Real Title`
	if got := m3uTitle(extinf); got != "Real Title" {
		t.Errorf("title = %q, want Real Title", got)
	}
}

func TestBuildM3UChannelsGroupsAndDividers(t *testing.T) {
	entries, err := parseM3U(strings.NewReader(sampleM3U))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	pl := catalog.Playlist{ID: "p1", Type: catalog.PlaylistM3U}
	channels, cats := buildM3UChannels(pl, entries)

	if len(cats) != 2 {
		t.Fatalf("categories = %+v, want News and Sports", cats)
	}
	// 4 channels + 2 group dividers, in file order.
	if len(channels) != 6 {
		t.Fatalf("rows = %d, want 6", len(channels))
	}
	wantDivider := []bool{true, false, false, true, false, false}
	for i, ch := range channels {
		if ch.IsDivider != wantDivider[i] {
			t.Fatalf("row %d divider = %v: %+v", i, ch.IsDivider, channels)
		}
		if ch.SortOrder != i {
			t.Errorf("row %d sort order = %d", i, ch.SortOrder)
		}
	}
	if channels[0].Name != "News" || !channels[0].IsDivider {
		t.Errorf("row 0 = %+v, want News divider", channels[0])
	}
	if channels[5].CategoryID != "" {
		t.Errorf("ungrouped channel has category %q", channels[5].CategoryID)
	}

	// Same input parses to identical ids, so re-imports update in place.
	again, _ := buildM3UChannels(pl, entries)
	for i := range channels {
		if channels[i].ID != again[i].ID {
			t.Errorf("row %d id changed across imports: %q vs %q", i, channels[i].ID, again[i].ID)
		}
	}
}

func TestRefreshM3UEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleM3U)
	}))
	defer srv.Close()

	syncer, st := newTestSyncer(t)
	pl := catalog.Playlist{
		ID: "m1", Name: "M3U", Type: catalog.PlaylistM3U, URL: srv.URL, IsActive: true,
	}
	if err := st.UpsertPlaylist(pl); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rep, err := syncer.RefreshPlaylist(context.Background(), pl)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rep.Live.Fetched != 4 {
		t.Errorf("fetched = %d, want 4", rep.Live.Fetched)
	}
	got, _ := st.Playlist("m1")
	if got.ChannelCount != 4 {
		t.Errorf("channel count = %d, want 4 (dividers excluded)", got.ChannelCount)
	}
	groups, _ := st.DistinctGroupTitles()
	if len(groups) != 2 {
		t.Errorf("groups = %v, want News and Sports", groups)
	}
}

// cannedTransport answers every request from memory and counts them.
type cannedTransport struct {
	body  string
	calls int
}

func (rt *cannedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.calls++
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(rt.body)),
		Request:    req,
	}, nil
}

func TestRefreshM3UUsesConfiguredClient(t *testing.T) {
	rt := &cannedTransport{body: sampleM3U}
	syncer, st := newTestSyncer(t)
	syncer.HTTP = &http.Client{Transport: rt}

	pl := catalog.Playlist{
		ID: "m1", Name: "M3U", Type: catalog.PlaylistM3U,
		URL: "http://provider.invalid/list.m3u", IsActive: true,
	}
	if err := st.UpsertPlaylist(pl); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rep, err := syncer.RefreshPlaylist(context.Background(), pl)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rt.calls != 1 {
		t.Errorf("requests through configured client = %d, want 1", rt.calls)
	}
	if rep.Live.Fetched != 4 {
		t.Errorf("fetched = %d, want 4", rep.Live.Fetched)
	}
}

func TestRefreshM3URejectsBadScheme(t *testing.T) {
	syncer, st := newTestSyncer(t)
	pl := catalog.Playlist{ID: "m1", Name: "Bad", Type: catalog.PlaylistM3U, URL: "file:///etc/passwd"}
	if err := st.UpsertPlaylist(pl); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := syncer.RefreshPlaylist(context.Background(), pl); err == nil {
		t.Fatal("expected scheme rejection")
	}
}
