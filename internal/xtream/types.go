package xtream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexID decodes JSON fields that providers serve inconsistently as a
// number or a string ("stream_id": 42 vs "stream_id": "42"). Zero/empty
// decodes to "".
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	// Providers send integral ids as floats; normalize "42.0" to "42".
	if i, err := n.Int64(); err == nil {
		*f = FlexID(strconv.FormatInt(i, 10))
		return nil
	}
	if fl, err := n.Float64(); err == nil {
		*f = FlexID(strconv.FormatInt(int64(fl), 10))
		return nil
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// Int returns the numeric value, or 0 when absent/non-numeric.
func (f FlexID) Int() int {
	n, _ := strconv.Atoi(string(f))
	return n
}

// UserInfo is the account block of the auth response. Auth is 1 for a
// valid account; any other value is an authentication rejection.
type UserInfo struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Auth           FlexID `json:"auth"`
	Status         string `json:"status"`
	ExpDate        FlexID `json:"exp_date"`
	IsTrial        FlexID `json:"is_trial"`
	ActiveCons     FlexID `json:"active_cons"`
	MaxConnections FlexID `json:"max_connections"`
}

// ServerInfo is the server block of the auth response.
type ServerInfo struct {
	URL            string `json:"url"`
	Port           FlexID `json:"port"`
	HTTPSPort      FlexID `json:"https_port"`
	ServerProtocol string `json:"server_protocol"`
	TimezoneName   string `json:"timezone"`
	TimestampNow   FlexID `json:"timestamp_now"`
}

// AuthResponse is the player_api.php response with no action parameter.
type AuthResponse struct {
	UserInfo   *UserInfo   `json:"user_info"`
	ServerInfo *ServerInfo `json:"server_info"`
}

// Category is one entry of get_live_categories / get_vod_categories /
// get_series_categories.
type Category struct {
	CategoryID   FlexID `json:"category_id"`
	CategoryName string `json:"category_name"`
	ParentID     FlexID `json:"parent_id"`
}

// Stream is one entry of get_live_streams or get_vod_streams.
type Stream struct {
	Num                FlexID `json:"num"`
	Name               string `json:"name"`
	StreamType         string `json:"stream_type"`
	StreamID           FlexID `json:"stream_id"`
	StreamIcon         string `json:"stream_icon"`
	EPGChannelID       FlexID `json:"epg_channel_id"`
	CategoryID         FlexID `json:"category_id"`
	ContainerExtension string `json:"container_extension"`
	Rating             FlexID `json:"rating"`
	ReleaseDate        string `json:"releasedate"`
	Added              FlexID `json:"added"`
}

// SeriesEntry is one entry of get_series.
type SeriesEntry struct {
	SeriesID    FlexID `json:"series_id"`
	Name        string `json:"name"`
	Cover       string `json:"cover"`
	Plot        string `json:"plot"`
	Genre       string `json:"genre"`
	ReleaseDate string `json:"releaseDate"`
	Rating      FlexID `json:"rating"`
	CategoryID  FlexID `json:"category_id"`
}

// SeriesInfo is the get_series_info response: detail metadata plus the
// per-season episode lists, keyed by season number as a string.
type SeriesInfo struct {
	Info     SeriesDetail               `json:"info"`
	Episodes map[string][]SeriesEpisode `json:"episodes"`
}

// SeriesDetail is the info block of get_series_info.
type SeriesDetail struct {
	Name        string `json:"name"`
	Cover       string `json:"cover"`
	Plot        string `json:"plot"`
	Genre       string `json:"genre"`
	ReleaseDate string `json:"releaseDate"`
	Rating      FlexID `json:"rating"`
}

// SeriesEpisode is one episode entry inside SeriesInfo.Episodes.
type SeriesEpisode struct {
	ID                 FlexID `json:"id"`
	EpisodeNum         FlexID `json:"episode_num"`
	Title              string `json:"title"`
	Season             FlexID `json:"season"`
	ContainerExtension string `json:"container_extension"`
	Info               struct {
		MovieImage   string `json:"movie_image"`
		Plot         string `json:"plot"`
		DurationSecs FlexID `json:"duration_secs"`
	} `json:"info"`
}
