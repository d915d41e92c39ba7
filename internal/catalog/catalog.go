// Package catalog defines the persisted entity model: playlists and the
// live/VOD/EPG records that belong to them. All types are plain values;
// persistence lives in internal/store.
package catalog

import "time"

// PlaylistType selects how a playlist is synced: a plain M3U URL or an
// Xtream Codes account (server + credentials).
type PlaylistType string

const (
	PlaylistM3U         PlaylistType = "M3U"
	PlaylistXtreamCodes PlaylistType = "XTREAM_CODES"
)

// ContentType partitions the catalog into live TV, movies and series.
type ContentType string

const (
	ContentLiveTV ContentType = "LIVE_TV"
	ContentMovie  ContentType = "MOVIE"
	ContentSeries ContentType = "SERIES"
)

// Playlist is a configured content source. Exactly one of URL (M3U) or
// ServerURL+Username+Password (Xtream) is meaningful depending on Type.
// Counts are denormalized and refreshed after each successful sync.
// Deleting a playlist cascades to every dependent row.
type Playlist struct {
	ID          string
	Name        string
	Type        PlaylistType
	URL         string // M3U playlist URL
	ServerURL   string // Xtream base, e.g. http://provider:8080
	Username    string
	Password    string
	EPGURL      string // optional XMLTV source
	LastUpdated time.Time
	IsActive    bool

	ChannelCount int
	MovieCount   int
	SeriesCount  int
}

// Category groups channels/movies/series inside one playlist.
// ExternalID is the provider-assigned category id when synced from Xtream.
type Category struct {
	ID         string
	PlaylistID string
	ExternalID string
	Name       string
	Type       ContentType
	SortOrder  int
}

// Channel is a live TV channel. IsDivider marks a synthetic section
// separator row: it participates in ordering but carries no stream and is
// excluded from EPG and search queries. CategoryID may be empty (no
// category, or the category was deleted).
type Channel struct {
	ID           string
	PlaylistID   string
	CategoryID   string
	Name         string
	StreamURL    string
	LogoURL      string
	EPGChannelID string // tvg-id / provider epg_channel_id for guide matching
	GroupTitle   string
	IsFavorite   bool
	IsHidden     bool
	IsDivider    bool
	LastWatched  time.Time
	SortOrder    int
}

// Movie is a VOD title with a directly playable stream URL.
type Movie struct {
	ID           string
	PlaylistID   string
	CategoryID   string
	StreamID     int // provider stream id; 0 when unknown
	Name         string
	StreamURL    string
	ContainerExt string
	PosterURL    string
	Genre        string
	Year         int
	Rating       float64
	Plot         string
	DurationSecs int
	IsFavorite   bool
	SortOrder    int
}

// Series is a VOD show; its episodes are owned rows with cascade delete.
type Series struct {
	ID         string
	PlaylistID string
	CategoryID string
	SeriesID   int // provider series id; 0 when unknown
	Name       string
	PosterURL  string
	Genre      string
	Year       int
	Rating     float64
	Plot       string
	IsFavorite bool
	SortOrder  int
}

// Episode belongs to a Series. PositionSecs/IsWatched track resume state.
type Episode struct {
	ID           string
	SeriesID     string
	Season       int
	EpisodeNum   int
	Name         string
	StreamURL    string
	ContainerExt string
	DurationSecs int
	PositionSecs int
	IsWatched    bool
}

// EpgProgram is one guide entry for a channel. The interval is half-open:
// a program is current at t when StartTime <= t < EndTime.
// EPGChannelID carries the source guide id so programs can be re-matched
// without a join.
type EpgProgram struct {
	ID           string
	ChannelID    string
	EPGChannelID string
	Title        string
	Description  string
	StartTime    time.Time
	EndTime      time.Time
}

// PlaybackHistory is the resume record for one piece of content.
// One row per (ContentType, ContentID); updates are last-write-wins.
type PlaybackHistory struct {
	ContentType  ContentType
	ContentID    string
	PositionSecs int
	DurationSecs int
	UpdatedAt    time.Time
}

// SearchResult is the discriminated result of a cross-entity search.
// Exactly one of Channel/Movie/Series is set, selected by Kind.
// Subtitle and Glyph are display hints chosen per variant.
type SearchResult struct {
	Kind     ContentType
	Channel  *Channel
	Movie    *Movie
	Series   *Series
	Subtitle string
	Glyph    string
}

// Name returns the display name of whichever variant is set.
func (r SearchResult) Name() string {
	switch r.Kind {
	case ContentLiveTV:
		if r.Channel != nil {
			return r.Channel.Name
		}
	case ContentMovie:
		if r.Movie != nil {
			return r.Movie.Name
		}
	case ContentSeries:
		if r.Series != nil {
			return r.Series.Name
		}
	}
	return ""
}
