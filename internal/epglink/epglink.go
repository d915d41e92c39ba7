// Package epglink matches catalog channels to guide (XMLTV) channel ids.
// Matching is deterministic only: exact tvg-id, then exact normalized
// name when the name is unambiguous in the guide. No fuzzy scoring: a
// wrong guide link is worse than no link.
package epglink

import (
	"strings"
	"unicode"

	"github.com/iptvault/iptvault/internal/catalog"
)

// GuideChannel is one <channel> element of an XMLTV document.
type GuideChannel struct {
	ID           string
	DisplayNames []string
}

// MatchMethod records how a channel was linked.
type MatchMethod string

const (
	MatchIDExact   MatchMethod = "epg_id_exact"
	MatchNameExact MatchMethod = "name_exact"
)

// NormalizeName performs a conservative normalization for deterministic
// channel matching. It removes punctuation/spacing noise, strips common
// quality and region tokens, and lowercases.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	toks := strings.Fields(b.String())
	if len(toks) == 0 {
		return ""
	}
	noise := map[string]struct{}{
		"hd": {}, "uhd": {}, "fhd": {}, "sd": {}, "4k": {},
		"us": {}, "usa": {}, "uk": {}, "ca": {}, "canada": {},
		"hq": {}, "vip": {}, "backup": {}, "raw": {},
	}
	out := toks[:0]
	for _, t := range toks {
		if _, drop := noise[t]; drop {
			continue
		}
		out = append(out, t)
	}
	joined := strings.Join(out, "")
	return strings.ReplaceAll(joined, "channel", "")
}

// Index is a prebuilt lookup over a guide's channels.
type Index struct {
	byID map[string]string // lowercased guide id -> canonical guide id
	// normalized display name -> guide id; "" marks an ambiguous name
	// shared by more than one guide channel.
	byName map[string]string
}

// BuildIndex indexes guide channels by id and by every display name.
func BuildIndex(guide []GuideChannel) *Index {
	ix := &Index{byID: map[string]string{}, byName: map[string]string{}}
	for _, gc := range guide {
		idKey := strings.ToLower(strings.TrimSpace(gc.ID))
		if idKey == "" {
			continue
		}
		ix.byID[idKey] = gc.ID
		names := append([]string{gc.ID}, gc.DisplayNames...)
		for _, n := range names {
			nk := NormalizeName(n)
			if nk == "" {
				continue
			}
			if existing, ok := ix.byName[nk]; ok && existing != gc.ID {
				ix.byName[nk] = "" // ambiguous
				continue
			}
			ix.byName[nk] = gc.ID
		}
	}
	return ix
}

// Match links one channel to a guide id. Divider rows never match.
func (ix *Index) Match(ch catalog.Channel) (guideID string, method MatchMethod, ok bool) {
	if ch.IsDivider {
		return "", "", false
	}
	if id := strings.ToLower(strings.TrimSpace(ch.EPGChannelID)); id != "" {
		if canonical, found := ix.byID[id]; found {
			return canonical, MatchIDExact, true
		}
	}
	if nk := NormalizeName(ch.Name); nk != "" {
		if id := ix.byName[nk]; id != "" {
			return id, MatchNameExact, true
		}
	}
	return "", "", false
}

// Report summarizes a matching pass over a channel list.
type Report struct {
	Total   int
	Matched int
	Methods map[MatchMethod]int
}

// MatchAll links every channel it can and returns the channel-id ->
// guide-id mapping plus a summary report.
func (ix *Index) MatchAll(channels []catalog.Channel) (map[string]string, Report) {
	links := make(map[string]string)
	rep := Report{Methods: map[MatchMethod]int{}}
	for _, ch := range channels {
		if ch.IsDivider {
			continue
		}
		rep.Total++
		id, method, ok := ix.Match(ch)
		if !ok {
			continue
		}
		links[ch.ID] = id
		rep.Matched++
		rep.Methods[method]++
	}
	return links, rep
}
