package epglink

import (
	"testing"

	"github.com/iptvault/iptvault/internal/catalog"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"World News", "worldnews"},
		{"WORLD  NEWS HD", "worldnews"},
		{"World-News (US)", "worldnews"},
		{"Sports One FHD", "sportsone"},
		{"BBC One Channel", "bbcone"},
		{"", ""},
		{"HD", ""},
	}
	for _, tc := range cases {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func testIndex() *Index {
	return BuildIndex([]GuideChannel{
		{ID: "wn.tv", DisplayNames: []string{"World News", "WN"}},
		{ID: "sp.tv", DisplayNames: []string{"Sports One HD"}},
		{ID: "dup1.tv", DisplayNames: []string{"Duplicate"}},
		{ID: "dup2.tv", DisplayNames: []string{"Duplicate"}},
	})
}

func TestMatchByID(t *testing.T) {
	ix := testIndex()
	id, method, ok := ix.Match(catalog.Channel{Name: "Whatever", EPGChannelID: "WN.TV"})
	if !ok || id != "wn.tv" || method != MatchIDExact {
		t.Errorf("got %q/%q/%v, want wn.tv by id (case-insensitive)", id, method, ok)
	}
}

func TestMatchByNormalizedName(t *testing.T) {
	ix := testIndex()
	id, method, ok := ix.Match(catalog.Channel{Name: "SPORTS ONE"})
	if !ok || id != "sp.tv" || method != MatchNameExact {
		t.Errorf("got %q/%q/%v, want sp.tv by name", id, method, ok)
	}
}

func TestAmbiguousNameNeverMatches(t *testing.T) {
	ix := testIndex()
	if id, _, ok := ix.Match(catalog.Channel{Name: "Duplicate"}); ok {
		t.Errorf("ambiguous name matched %q, want no match", id)
	}
}

func TestDividerNeverMatches(t *testing.T) {
	ix := testIndex()
	if _, _, ok := ix.Match(catalog.Channel{Name: "World News", IsDivider: true}); ok {
		t.Error("divider row matched a guide channel")
	}
}

func TestUnknownIDFallsBackToName(t *testing.T) {
	ix := testIndex()
	id, method, ok := ix.Match(catalog.Channel{Name: "World News", EPGChannelID: "stale.tv"})
	if !ok || id != "wn.tv" || method != MatchNameExact {
		t.Errorf("got %q/%q/%v, want name fallback to wn.tv", id, method, ok)
	}
}

func TestMatchAllReport(t *testing.T) {
	ix := testIndex()
	links, rep := ix.MatchAll([]catalog.Channel{
		{ID: "c1", Name: "World News"},
		{ID: "c2", Name: "Nothing Like It"},
		{ID: "div", Name: "News", IsDivider: true},
	})
	if rep.Total != 2 || rep.Matched != 1 {
		t.Errorf("report = %+v, want 1 of 2 matched (divider not counted)", rep)
	}
	if links["c1"] != "wn.tv" {
		t.Errorf("links = %v", links)
	}
}
