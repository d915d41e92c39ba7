package xtream

import (
	"fmt"
	"net/url"
	"strings"
)

// StreamKind is the URL namespace a playback URL lives under.
type StreamKind string

const (
	StreamLive   StreamKind = "live"
	StreamMovie  StreamKind = "movie"
	StreamSeries StreamKind = "series"
)

// Default container extensions. Live is always MPEG-TS; VOD and series
// extensions are provider-reported per item, falling back to these.
const (
	DefaultLiveExt   = "ts"
	DefaultVODExt    = "mp4"
	DefaultSeriesExt = "mp4"
)

// StreamRef is the decomposition of a derived playback URL: credentials
// and the provider stream/episode id are embedded directly in the path.
type StreamRef struct {
	Kind     StreamKind
	BaseURL  string
	Username string
	Password string
	StreamID string
	Ext      string
}

// LiveStreamURL derives the live playback URL:
// {base}/live/{user}/{pass}/{streamID}.ts
func LiveStreamURL(baseURL, user, pass, streamID string) string {
	return buildStreamURL(StreamLive, baseURL, user, pass, streamID, DefaultLiveExt)
}

// MovieStreamURL derives the VOD playback URL:
// {base}/movie/{user}/{pass}/{streamID}.{ext} (ext defaults to mp4).
func MovieStreamURL(baseURL, user, pass, streamID, ext string) string {
	if ext == "" {
		ext = DefaultVODExt
	}
	return buildStreamURL(StreamMovie, baseURL, user, pass, streamID, ext)
}

// SeriesStreamURL derives the episode playback URL:
// {base}/series/{user}/{pass}/{episodeID}.{ext} (ext defaults to mp4).
func SeriesStreamURL(baseURL, user, pass, episodeID, ext string) string {
	if ext == "" {
		ext = DefaultSeriesExt
	}
	return buildStreamURL(StreamSeries, baseURL, user, pass, episodeID, ext)
}

func buildStreamURL(kind StreamKind, baseURL, user, pass, id, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s",
		strings.TrimSuffix(baseURL, "/"), kind,
		url.PathEscape(user), url.PathEscape(pass), url.PathEscape(id),
		url.PathEscape(ext))
}

// ParseStreamURL recovers the components of a derived playback URL. It
// is the exact inverse of the builders above: parsing a built URL yields
// the original username, password, stream id, and extension.
func ParseStreamURL(raw string) (StreamRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return StreamRef{}, fmt.Errorf("parse stream url: %w", err)
	}
	segs := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(segs) != 4 {
		return StreamRef{}, fmt.Errorf("parse stream url: expected /{kind}/{user}/{pass}/{id}.{ext}, got %q", u.Path)
	}
	kind := StreamKind(segs[0])
	switch kind {
	case StreamLive, StreamMovie, StreamSeries:
	default:
		return StreamRef{}, fmt.Errorf("parse stream url: unknown kind %q", segs[0])
	}
	last := segs[3]
	dot := strings.LastIndex(last, ".")
	if dot <= 0 || dot == len(last)-1 {
		return StreamRef{}, fmt.Errorf("parse stream url: missing container extension in %q", last)
	}
	user, err := url.PathUnescape(segs[1])
	if err != nil {
		return StreamRef{}, fmt.Errorf("parse stream url: %w", err)
	}
	pass, err := url.PathUnescape(segs[2])
	if err != nil {
		return StreamRef{}, fmt.Errorf("parse stream url: %w", err)
	}
	id, err := url.PathUnescape(last[:dot])
	if err != nil {
		return StreamRef{}, fmt.Errorf("parse stream url: %w", err)
	}
	ext, err := url.PathUnescape(last[dot+1:])
	if err != nil {
		return StreamRef{}, fmt.Errorf("parse stream url: %w", err)
	}
	return StreamRef{
		Kind:     kind,
		BaseURL:  u.Scheme + "://" + u.Host,
		Username: user,
		Password: pass,
		StreamID: id,
		Ext:      ext,
	}, nil
}
