package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iptvault/iptvault/internal/catalog"
)

const sampleXMLTV = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="wn.tv">
    <display-name>World News</display-name>
    <display-name>WN</display-name>
  </channel>
  <channel id="sp.tv">
    <display-name>Sports One HD</display-name>
  </channel>
  <programme start="20260901120000 +0000" stop="20260901130000 +0000" channel="wn.tv">
    <title>Noon Bulletin</title>
    <desc>Headlines at twelve.</desc>
  </programme>
  <programme start="20260901123000 +0000" stop="20260901133000 +0000" channel="wn.tv">
    <title>Overlapping Show</title>
  </programme>
  <programme start="20260901130000 +0000" stop="20260901140000 +0000" channel="wn.tv">
    <title>Afternoon Report</title>
  </programme>
  <programme start="20260901140000" stop="20260901120000" channel="wn.tv">
    <title>Backwards Interval</title>
  </programme>
  <programme start="20260901120000 +0000" stop="20260901140000 +0000" channel="unknown.tv">
    <title>No Such Channel</title>
  </programme>
</tv>
`

func TestParseXMLTV(t *testing.T) {
	guide, programmes, err := parseXMLTV(strings.NewReader(sampleXMLTV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(guide) != 2 {
		t.Fatalf("guide channels = %d, want 2", len(guide))
	}
	if guide[0].ID != "wn.tv" || len(guide[0].DisplayNames) != 2 {
		t.Errorf("guide[0] = %+v", guide[0])
	}
	// The backwards interval parses; it is dropped later at ingestion.
	if len(programmes) != 5 {
		t.Fatalf("programmes = %d, want 5", len(programmes))
	}
	p := programmes[0]
	if p.Title != "Noon Bulletin" || p.Desc != "Headlines at twelve." {
		t.Errorf("programme 0 = %+v", p)
	}
	want := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if !p.Start.Equal(want) {
		t.Errorf("start = %v, want %v", p.Start, want)
	}
}

func TestParseXMLTVTimeWithoutZone(t *testing.T) {
	got, err := parseXMLTVTime("20260901120000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("bare timestamp = %v, want UTC noon", got)
	}
}

func TestDedupeOverlaps(t *testing.T) {
	mk := func(id string, start, end int64) catalog.EpgProgram {
		return catalog.EpgProgram{ID: id, StartTime: time.Unix(start, 0), EndTime: time.Unix(end, 0)}
	}
	got := dedupeOverlaps([]catalog.EpgProgram{
		mk("b-overlap", 1500, 2500),
		mk("a", 1000, 2000),
		mk("c", 2000, 3000), // boundary touch is not an overlap
		mk("d-inside", 2100, 2200),
	})
	var ids []string
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	want := []string{"a", "c"}
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Errorf("kept %v, want %v (earliest start wins, half-open boundaries touch)", ids, want)
	}
}

func TestRefreshEPGEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleXMLTV)
	}))
	defer srv.Close()

	syncer, st := newTestSyncer(t)
	pl := catalog.Playlist{
		ID: "p1", Name: "Test", Type: catalog.PlaylistM3U, URL: "http://x", EPGURL: srv.URL, IsActive: true,
	}
	if err := st.UpsertPlaylist(pl); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.UpsertChannels([]catalog.Channel{
		// Linked by tvg-id.
		{ID: "c1", PlaylistID: "p1", Name: "Anything", EPGChannelID: "wn.tv", SortOrder: 1},
		// Linked by normalized display name ("Sports One" vs "Sports One HD").
		{ID: "c2", PlaylistID: "p1", Name: "Sports One", SortOrder: 2},
		// No link; keeps its old guide.
		{ID: "c3", PlaylistID: "p1", Name: "Unmatched", SortOrder: 3},
	}); err != nil {
		t.Fatalf("channels: %v", err)
	}
	old := catalog.EpgProgram{
		ID: "c3-old", ChannelID: "c3", Title: "Stale",
		StartTime: time.Unix(1000, 0), EndTime: time.Unix(2000, 0),
	}
	if err := st.UpsertPrograms([]catalog.EpgProgram{old}); err != nil {
		t.Fatalf("old program: %v", err)
	}

	if err := syncer.RefreshEPG(context.Background(), pl); err != nil {
		t.Fatalf("refresh epg: %v", err)
	}

	c1, _ := st.Programs("c1")
	var titles []string
	for _, p := range c1 {
		titles = append(titles, p.Title)
	}
	// Overlapping and backwards entries are dropped at ingestion.
	if len(titles) != 2 || titles[0] != "Noon Bulletin" || titles[1] != "Afternoon Report" {
		t.Errorf("c1 guide = %v", titles)
	}

	noon := time.Date(2026, 9, 1, 12, 30, 0, 0, time.UTC)
	cur, err := st.CurrentProgram("c1", noon)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.Title != "Noon Bulletin" {
		t.Errorf("current = %q", cur.Title)
	}

	// c2 links by name to sp.tv, which has no programmes in this guide.
	if c2, _ := st.Programs("c2"); len(c2) != 0 {
		t.Errorf("c2 guide = %d programs, want 0", len(c2))
	}

	c3, _ := st.Programs("c3")
	if len(c3) != 1 || c3[0].ID != "c3-old" {
		t.Errorf("unlinked channel guide = %+v, want untouched", c3)
	}
}

func TestRefreshEPGNoURLIsNoop(t *testing.T) {
	syncer, _ := newTestSyncer(t)
	pl := catalog.Playlist{ID: "p1", Type: catalog.PlaylistM3U}
	if err := syncer.RefreshEPG(context.Background(), pl); err != nil {
		t.Errorf("refresh with no EPG url: %v", err)
	}
}
