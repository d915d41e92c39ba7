package ingest

import (
	"bufio"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/iptvault/iptvault/internal/catalog"
	"github.com/iptvault/iptvault/internal/httpclient"
	"github.com/iptvault/iptvault/internal/safeurl"
)

const maxM3ULineSize = 1 << 20 // 1 MiB per line

// m3uEntry is one #EXTINF/url pair.
type m3uEntry struct {
	Name  string
	URL   string
	TVGID string
	Logo  string
	Group string
}

// refreshM3U imports a plain M3U playlist. Everything in an M3U is
// treated as live content; group-title attributes become categories,
// and a synthetic divider row is inserted at each group boundary so
// list views keep the file's section structure.
func (s *Syncer) refreshM3U(ctx context.Context, pl catalog.Playlist) (Report, error) {
	rep := Report{PlaylistID: pl.ID}
	entries, err := fetchM3U(ctx, pl.URL, s.HTTP)
	if err != nil {
		return rep, fmt.Errorf("playlist %s: fetch m3u: %w", pl.ID, err)
	}
	channels, cats := buildM3UChannels(pl, entries)
	if err := s.Store.UpsertCategories(cats); err != nil {
		return rep, fmt.Errorf("playlist %s: store categories: %w", pl.ID, err)
	}
	if err := s.Store.UpsertChannels(channels); err != nil {
		return rep, fmt.Errorf("playlist %s: store channels: %w", pl.ID, err)
	}
	rep.Live = SectionResult{Fetched: len(entries)}
	s.Metrics.AddRows("channels", len(entries))
	if err := s.updateCounts(pl, rep); err != nil {
		return rep, err
	}
	return rep, nil
}

// fetchM3U downloads and parses an M3U document. A nil client uses the
// shared tuned one.
func fetchM3U(ctx context.Context, m3uURL string, client *http.Client) ([]m3uEntry, error) {
	if !safeurl.IsHTTPOrHTTPS(m3uURL) {
		return nil, fmt.Errorf("m3u url must be http or https")
	}
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m3uURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	req.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)
	release := httpclient.GlobalHostSem.Acquire(m3uURL)
	resp, err := client.Do(req)
	release()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return parseM3U(httpclient.DecodeBody(resp))
}

// parseM3U scans EXTINF/url pairs. Lines that are neither a directive
// nor a stream URL reset the pending EXTINF, so a malformed block never
// attaches to the wrong URL.
func parseM3U(r io.Reader) ([]m3uEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxM3ULineSize)
	var entries []m3uEntry
	var extinf string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#EXTM3U"):
			continue
		case strings.HasPrefix(line, "#EXTINF:"):
			extinf = line
		case extinf != "" && (strings.HasPrefix(line, "http") || strings.HasPrefix(line, "/")):
			entries = append(entries, m3uEntry{
				Name:  m3uTitle(extinf),
				URL:   line,
				TVGID: m3uAttr(extinf, "tvg-id"),
				Logo:  m3uAttr(extinf, "tvg-logo"),
				Group: m3uAttr(extinf, "group-title"),
			})
			extinf = ""
		default:
			extinf = ""
		}
	}
	return entries, sc.Err()
}

// m3uAttr extracts a key="value" attribute from an EXTINF line.
func m3uAttr(extinf, key string) string {
	prefix := key + `="`
	i := strings.Index(extinf, prefix)
	if i < 0 {
		return ""
	}
	i += len(prefix)
	j := strings.Index(extinf[i:], `"`)
	if j < 0 {
		return ""
	}
	return extinf[i : i+j]
}

// m3uTitle returns the display name after the last comma of the EXTINF
// attribute list.
func m3uTitle(extinf string) string {
	if i := strings.LastIndex(extinf, `",`); i >= 0 {
		return strings.TrimSpace(extinf[i+2:])
	}
	if i := strings.Index(extinf, ","); i >= 0 {
		return strings.TrimSpace(extinf[i+1:])
	}
	return strings.TrimSpace(extinf)
}

// buildM3UChannels converts parsed entries to catalog rows in file
// order. SortOrder is the position in the file, dividers included.
func buildM3UChannels(pl catalog.Playlist, entries []m3uEntry) ([]catalog.Channel, []catalog.Category) {
	var (
		channels []catalog.Channel
		cats     []catalog.Category
		catIDs   = map[string]string{}
		curGroup = "\x00" // sentinel distinct from any real group, including ""
		order    int
	)
	for _, e := range entries {
		if e.Group != curGroup {
			curGroup = e.Group
			if e.Group != "" {
				catID, ok := catIDs[e.Group]
				if !ok {
					catID = pl.ID + "_m3u_cat_" + stableID(e.Group)
					cats = append(cats, catalog.Category{
						ID:         catID,
						PlaylistID: pl.ID,
						ExternalID: e.Group,
						Name:       e.Group,
						Type:       catalog.ContentLiveTV,
						SortOrder:  len(cats),
					})
					catIDs[e.Group] = catID
				}
				channels = append(channels, catalog.Channel{
					ID:         pl.ID + "_div_" + stableID(e.Group),
					PlaylistID: pl.ID,
					CategoryID: catID,
					Name:       e.Group,
					GroupTitle: e.Group,
					IsDivider:  true,
					SortOrder:  order,
				})
				order++
			}
		}
		name := e.Name
		if name == "" {
			name = "Channel " + stableID(e.URL)
		}
		channels = append(channels, catalog.Channel{
			ID:           pl.ID + "_ch_" + stableID(e.URL),
			PlaylistID:   pl.ID,
			CategoryID:   catIDs[e.Group],
			Name:         name,
			StreamURL:    e.URL,
			LogoURL:      e.Logo,
			EPGChannelID: e.TVGID,
			GroupTitle:   e.Group,
			SortOrder:    order,
		})
		order++
	}
	return channels, cats
}

// stableID hashes an input to a short id that survives re-imports.
func stableID(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return strconv.FormatUint(h.Sum64(), 36)
}
