package ingest

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/iptvault/iptvault/internal/catalog"
	"github.com/iptvault/iptvault/internal/epglink"
	"github.com/iptvault/iptvault/internal/httpclient"
	"github.com/iptvault/iptvault/internal/safeurl"
)

// XMLTV timestamp layouts. Most guides carry a zone offset; a few omit
// it, which we read as UTC.
const (
	xmltvLayout     = "20060102150405 -0700"
	xmltvLayoutBare = "20060102150405"
)

type xmltvProgramme struct {
	Channel string
	Title   string
	Desc    string
	Start   time.Time
	Stop    time.Time
}

// RefreshEPG downloads the playlist's XMLTV source, links guide
// channels to stored channels, and replaces the guide rows of every
// linked channel in one transaction. Channels that fail to link keep
// whatever programs they already had.
func (s *Syncer) RefreshEPG(ctx context.Context, pl catalog.Playlist) error {
	if pl.EPGURL == "" {
		return nil
	}
	guide, programmes, err := fetchXMLTV(ctx, pl.EPGURL, s.HTTP)
	if err != nil {
		return fmt.Errorf("playlist %s: fetch xmltv %s: %w", pl.ID, safeurl.Redact(pl.EPGURL), err)
	}
	channels, err := s.Store.Channels(pl.ID)
	if err != nil {
		return fmt.Errorf("playlist %s: load channels: %w", pl.ID, err)
	}

	ix := epglink.BuildIndex(guide)
	links, lrep := ix.MatchAll(channels)
	if len(links) == 0 {
		log.Printf("[EPG] playlist %s: no channels linked (%d guide channels, %d catalog channels)",
			pl.ID, len(guide), lrep.Total)
		return nil
	}

	// Invert: one guide channel can feed several catalog channels.
	byGuide := make(map[string][]string)
	channelIDs := make([]string, 0, len(links))
	for chID, guideID := range links {
		byGuide[guideID] = append(byGuide[guideID], chID)
		channelIDs = append(channelIDs, chID)
	}

	perChannel := make(map[string][]catalog.EpgProgram)
	for _, p := range programmes {
		if !p.Stop.After(p.Start) {
			continue
		}
		for _, chID := range byGuide[p.Channel] {
			perChannel[chID] = append(perChannel[chID], catalog.EpgProgram{
				ID:           chID + "_" + strconv.FormatInt(p.Start.Unix(), 10),
				ChannelID:    chID,
				EPGChannelID: p.Channel,
				Title:        p.Title,
				Description:  p.Desc,
				StartTime:    p.Start,
				EndTime:      p.Stop,
			})
		}
	}

	var programs []catalog.EpgProgram
	for _, list := range perChannel {
		programs = append(programs, dedupeOverlaps(list)...)
	}

	if err := s.Store.ReplacePrograms(channelIDs, programs); err != nil {
		return fmt.Errorf("playlist %s: store programs: %w", pl.ID, err)
	}
	s.Metrics.SetLinkedChannels(len(links))
	s.Metrics.AddRows("programs", len(programs))
	log.Printf("[EPG] playlist %s: linked %d/%d channels, %d programs", pl.ID, lrep.Matched, lrep.Total, len(programs))
	return nil
}

// PurgeEPG removes programs that ended before now minus retention.
func (s *Syncer) PurgeEPG(retention time.Duration) (int64, error) {
	n, err := s.Store.PurgeProgramsBefore(time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge epg: %w", err)
	}
	s.Metrics.AddPurged(n)
	if n > 0 {
		log.Printf("[EPG] purged %d expired programs", n)
	}
	return n, nil
}

// dedupeOverlaps sorts one channel's programs by start time and drops
// any program overlapping an earlier-starting one, so the stored guide
// is strictly non-overlapping and lookups stay unambiguous.
func dedupeOverlaps(list []catalog.EpgProgram) []catalog.EpgProgram {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].StartTime.Before(list[j].StartTime)
		}
		return list[i].ID < list[j].ID
	})
	out := list[:0]
	var prevEnd time.Time
	for _, p := range list {
		if p.StartTime.Before(prevEnd) {
			continue
		}
		out = append(out, p)
		prevEnd = p.EndTime
	}
	return out
}

// fetchXMLTV downloads and parses an XMLTV document with a streaming
// decoder; full guides run to hundreds of MB decompressed. Gzipped
// files served without a Content-Encoding header are detected by magic
// bytes.
func fetchXMLTV(ctx context.Context, epgURL string, client *http.Client) ([]epglink.GuideChannel, []xmltvProgramme, error) {
	if !safeurl.IsHTTPOrHTTPS(epgURL) {
		return nil, nil, fmt.Errorf("epg url must be http or https")
	}
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, epgURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	req.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)
	release := httpclient.GlobalHostSem.Acquire(epgURL)
	resp, err := client.Do(req)
	release()
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := sniffGzip(httpclient.DecodeBody(resp))
	if err != nil {
		return nil, nil, err
	}
	return parseXMLTV(body)
}

func sniffGzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}

// parseXMLTV walks <channel> and <programme> elements with the token
// decoder, never holding the whole document in memory.
func parseXMLTV(r io.Reader) ([]epglink.GuideChannel, []xmltvProgramme, error) {
	dec := xml.NewDecoder(r)
	var (
		guide      []epglink.GuideChannel
		programmes []xmltvProgramme
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse xmltv: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "channel":
			var el struct {
				ID           string   `xml:"id,attr"`
				DisplayNames []string `xml:"display-name"`
			}
			if err := dec.DecodeElement(&el, &se); err != nil {
				return nil, nil, fmt.Errorf("parse xmltv channel: %w", err)
			}
			guide = append(guide, epglink.GuideChannel{ID: el.ID, DisplayNames: el.DisplayNames})
		case "programme":
			var el struct {
				Start   string `xml:"start,attr"`
				Stop    string `xml:"stop,attr"`
				Channel string `xml:"channel,attr"`
				Title   string `xml:"title"`
				Desc    string `xml:"desc"`
			}
			if err := dec.DecodeElement(&el, &se); err != nil {
				return nil, nil, fmt.Errorf("parse xmltv programme: %w", err)
			}
			start, err1 := parseXMLTVTime(el.Start)
			stop, err2 := parseXMLTVTime(el.Stop)
			if err1 != nil || err2 != nil {
				continue // unparseable interval, skip the entry
			}
			programmes = append(programmes, xmltvProgramme{
				Channel: el.Channel,
				Title:   el.Title,
				Desc:    el.Desc,
				Start:   start,
				Stop:    stop,
			})
		}
	}
	return guide, programmes, nil
}

func parseXMLTVTime(s string) (time.Time, error) {
	if t, err := time.Parse(xmltvLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(xmltvLayoutBare, s)
}
