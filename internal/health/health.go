// Package health runs liveness checks for the daemon and its playlists.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/iptvault/iptvault/internal/catalog"
	"github.com/iptvault/iptvault/internal/httpclient"
	"github.com/iptvault/iptvault/internal/xtream"
)

// CheckPlaylist verifies a playlist's source is reachable. Xtream
// playlists authenticate; M3U playlists fetch the URL and discard the
// body. A nil client falls back to the shared tuned one.
func CheckPlaylist(ctx context.Context, pl catalog.Playlist, client *http.Client) error {
	switch pl.Type {
	case catalog.PlaylistXtreamCodes:
		xc, err := xtream.NewClient(pl.ServerURL, pl.Username, pl.Password)
		if err != nil {
			return err
		}
		if client != nil {
			xc.HTTP = client
		}
		_, err = xc.Authenticate(ctx)
		return err
	case catalog.PlaylistM3U:
		return checkURL(ctx, pl.URL, client)
	default:
		return fmt.Errorf("unknown playlist type %q", pl.Type)
	}
}

// checkURL GETs the URL and drains the body. Some providers reject
// HEAD, so GET is used throughout.
func checkURL(ctx context.Context, rawURL string, client *http.Client) error {
	if rawURL == "" {
		return fmt.Errorf("no URL configured")
	}
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("source unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source returned HTTP %d", resp.StatusCode)
	}
	return nil
}
