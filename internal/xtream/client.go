// Package xtream is the Xtream Codes provider client: authentication,
// catalog listings, series detail, and playback-URL derivation for
// player_api.php endpoints. Every call is one-shot and stateless; there
// is no retry, caching, or session state. A failed call yields a typed
// Error and the caller decides how to proceed.
package xtream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iptvault/iptvault/internal/catalog"
	"github.com/iptvault/iptvault/internal/httpclient"
	"github.com/iptvault/iptvault/internal/safeurl"
)

// requestInterval paces request trains (category-paged listings, per-show
// series info). Providers rate-limit aggressively; 5 req/s matches the
// batch delay the indexer used historically.
const requestInterval = 200 * time.Millisecond

// Client talks to one Xtream account. Safe for concurrent use.
type Client struct {
	BaseURL  string
	Username string
	Password string

	// HTTP defaults to the shared tuned client.
	HTTP *http.Client

	limiter *rate.Limiter
}

// NewClient validates the connection fields and returns a client.
// Missing server URL or credentials yield an ErrMissingField error, the
// same failure a playlist sync reports before ever touching the network.
func NewClient(serverURL, username, password string) (*Client, error) {
	serverURL = strings.TrimSuffix(strings.TrimSpace(serverURL), "/")
	switch {
	case serverURL == "":
		return nil, &Error{Kind: ErrMissingField, Op: "new_client", Message: "missing server URL"}
	case !safeurl.IsHTTPOrHTTPS(serverURL):
		return nil, &Error{Kind: ErrMissingField, Op: "new_client", Message: "server URL must be http or https"}
	case username == "":
		return nil, &Error{Kind: ErrMissingField, Op: "new_client", Message: "missing username"}
	case password == "":
		return nil, &Error{Kind: ErrMissingField, Op: "new_client", Message: "missing password"}
	}
	return &Client{
		BaseURL:  serverURL,
		Username: username,
		Password: password,
		HTTP:     httpclient.Default(),
		limiter:  rate.NewLimiter(rate.Every(requestInterval), 1),
	}, nil
}

// apiURL builds the authenticated player_api.php endpoint. Credentials
// are query-escaped to prevent injection from special characters.
func (c *Client) apiURL(action string, params url.Values) string {
	u := c.BaseURL + "/player_api.php?username=" + url.QueryEscape(c.Username) +
		"&password=" + url.QueryEscape(c.Password)
	if action != "" {
		u += "&action=" + url.QueryEscape(action)
	}
	if len(params) > 0 {
		u += "&" + params.Encode()
	}
	return u
}

// get performs one API call and returns the raw body. No retries: any
// transport error, non-200 status, or empty body is a typed failure.
func (c *Client) get(ctx context.Context, op, action string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: ErrNetwork, Op: op, Message: "canceled", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL(action, params), nil)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	req.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)
	release := httpclient.GlobalHostSem.Acquire(c.BaseURL)
	resp, err := c.httpClient().Do(req)
	release()
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &Error{Kind: ErrNetwork, Op: op, Message: "HTTP " + resp.Status}
	}
	body, err := io.ReadAll(httpclient.DecodeBody(resp))
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Op: op, Message: "read body", Err: err}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, &Error{Kind: ErrEmptyBody, Op: op, Message: "empty response body"}
	}
	return body, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return httpclient.Default()
}

// Authenticate validates the credentials and returns account/server
// metadata. It fails unless the call succeeds, the body parses, and the
// provider's auth flag is exactly 1.
func (c *Client) Authenticate(ctx context.Context) (*AuthResponse, error) {
	body, err := c.get(ctx, "authenticate", "", nil)
	if err != nil {
		return nil, err
	}
	var auth AuthResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, &Error{Kind: ErrDecode, Op: "authenticate", Message: "decode auth response", Err: err}
	}
	if auth.UserInfo == nil || auth.UserInfo.Auth.Int() != 1 {
		return nil, &Error{Kind: ErrAuthRejected, Op: "authenticate", Message: "Invalid credentials"}
	}
	return &auth, nil
}

// categoryAction maps a content type onto its listing action.
func categoryAction(kind catalog.ContentType) (categories, streams string) {
	switch kind {
	case catalog.ContentMovie:
		return "get_vod_categories", "get_vod_streams"
	case catalog.ContentSeries:
		return "get_series_categories", "get_series"
	default:
		return "get_live_categories", "get_live_streams"
	}
}

// Categories lists the provider's categories for one content type.
func (c *Client) Categories(ctx context.Context, kind catalog.ContentType) ([]Category, error) {
	action, _ := categoryAction(kind)
	body, err := c.get(ctx, action, action, nil)
	if err != nil {
		return nil, err
	}
	var cats []Category
	if err := json.Unmarshal(body, &cats); err != nil {
		return nil, &Error{Kind: ErrDecode, Op: action, Message: "decode categories", Err: err}
	}
	return cats, nil
}

// LiveStreams lists live channels, optionally scoped to one provider
// category id.
func (c *Client) LiveStreams(ctx context.Context, categoryID string) ([]Stream, error) {
	return c.streams(ctx, "get_live_streams", categoryID)
}

// VODStreams lists movies, optionally scoped to one provider category id.
func (c *Client) VODStreams(ctx context.Context, categoryID string) ([]Stream, error) {
	return c.streams(ctx, "get_vod_streams", categoryID)
}

func (c *Client) streams(ctx context.Context, action, categoryID string) ([]Stream, error) {
	var params url.Values
	if categoryID != "" {
		params = url.Values{"category_id": {categoryID}}
	}
	body, err := c.get(ctx, action, action, params)
	if err != nil {
		return nil, err
	}
	var streams []Stream
	if err := json.Unmarshal(body, &streams); err != nil {
		return nil, &Error{Kind: ErrDecode, Op: action, Message: "decode streams", Err: err}
	}
	return streams, nil
}

// Series lists the provider's shows, optionally scoped to one category.
// Some panels answer with an object keyed by index instead of an array;
// both shapes are accepted.
func (c *Client) Series(ctx context.Context, categoryID string) ([]SeriesEntry, error) {
	var params url.Values
	if categoryID != "" {
		params = url.Values{"category_id": {categoryID}}
	}
	body, err := c.get(ctx, "get_series", "get_series", params)
	if err != nil {
		return nil, err
	}
	var list []SeriesEntry
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var m map[string]SeriesEntry
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, &Error{Kind: ErrDecode, Op: "get_series", Message: "decode series list", Err: err}
	}
	for _, s := range m {
		list = append(list, s)
	}
	return list, nil
}

// SeriesInfo fetches detail metadata plus the per-season episode map for
// one show.
func (c *Client) SeriesInfo(ctx context.Context, seriesID string) (*SeriesInfo, error) {
	body, err := c.get(ctx, "get_series_info", "get_series_info", url.Values{"series_id": {seriesID}})
	if err != nil {
		return nil, err
	}
	var info SeriesInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &Error{Kind: ErrDecode, Op: "get_series_info", Message: "decode series info", Err: err}
	}
	return &info, nil
}

// LiveURL derives the playback URL for one of this account's live
// streams.
func (c *Client) LiveURL(streamID string) string {
	return LiveStreamURL(c.BaseURL, c.Username, c.Password, streamID)
}

// MovieURL derives the playback URL for one of this account's movies.
func (c *Client) MovieURL(streamID, ext string) string {
	return MovieStreamURL(c.BaseURL, c.Username, c.Password, streamID, ext)
}

// EpisodeURL derives the playback URL for one of this account's series
// episodes.
func (c *Client) EpisodeURL(episodeID, ext string) string {
	return SeriesStreamURL(c.BaseURL, c.Username, c.Password, episodeID, ext)
}
