package xtream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iptvault/iptvault/internal/catalog"
)

// fakePanel serves player_api.php responses keyed by action ("" = auth).
func fakePanel(t *testing.T, responses map[string]string) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player_api.php" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("username") != "user" || r.URL.Query().Get("password") != "pass" {
			fmt.Fprint(w, `{"user_info":{"auth":0}}`)
			return
		}
		body, ok := responses[r.URL.Query().Get("action")]
		if !ok {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, "user", "pass")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return srv, c
}

func TestNewClientValidation(t *testing.T) {
	cases := []struct {
		name            string
		url, user, pass string
	}{
		{"no url", "", "u", "p"},
		{"bad scheme", "ftp://host", "u", "p"},
		{"no user", "http://host", "", "p"},
		{"no pass", "http://host", "u", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(tc.url, tc.user, tc.pass)
			if KindOf(err) != ErrMissingField {
				t.Errorf("got %v, want ErrMissingField", err)
			}
		})
	}
	c, err := NewClient("http://host:8080/", "u", "p")
	if err != nil {
		t.Fatalf("valid fields rejected: %v", err)
	}
	if c.BaseURL != "http://host:8080" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", c.BaseURL)
	}
}

func TestAuthenticateOK(t *testing.T) {
	_, c := fakePanel(t, map[string]string{
		"": `{"user_info":{"username":"user","auth":1,"status":"Active","max_connections":"2"},
		     "server_info":{"url":"example.com","port":"8080"}}`,
	})
	auth, err := c.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if auth.UserInfo.MaxConnections.Int() != 2 {
		t.Errorf("max connections = %v, want 2", auth.UserInfo.MaxConnections)
	}
	if auth.ServerInfo.Port.String() != "8080" {
		t.Errorf("port = %v, want 8080", auth.ServerInfo.Port)
	}
}

func TestAuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"user_info":{"auth":0,"status":"Banned"}}`)
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL, "user", "pass")

	_, err := c.Authenticate(context.Background())
	if KindOf(err) != ErrAuthRejected {
		t.Fatalf("got %v, want ErrAuthRejected", err)
	}
	if !strings.Contains(err.Error(), "Invalid credentials") {
		t.Errorf("message %q must carry the Invalid credentials text", err.Error())
	}
}

func TestEmptyBodyIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "   ")
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL, "user", "pass")
	_, err := c.Authenticate(context.Background())
	if KindOf(err) != ErrEmptyBody {
		t.Errorf("got %v, want ErrEmptyBody", err)
	}
}

func TestDecodeErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>provider maintenance page</html>`)
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL, "user", "pass")
	_, err := c.Authenticate(context.Background())
	if KindOf(err) != ErrDecode {
		t.Errorf("got %v, want ErrDecode", err)
	}
}

func TestServerErrorIsNetworkKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()
	c, _ := NewClient(srv.URL, "user", "pass")
	_, err := c.Authenticate(context.Background())
	if KindOf(err) != ErrNetwork {
		t.Errorf("got %v, want ErrNetwork", err)
	}
	var xerr *Error
	if !errors.As(err, &xerr) {
		t.Fatalf("error is not *Error: %v", err)
	}
}

func TestLiveStreamsFlexibleIDs(t *testing.T) {
	_, c := fakePanel(t, map[string]string{
		"get_live_streams": `[
			{"num":1,"name":"One","stream_id":101,"category_id":"5","epg_channel_id":"one.tv"},
			{"num":"2","name":"Two","stream_id":"102","category_id":5},
			{"name":"NoID"}
		]`,
	})
	streams, err := c.LiveStreams(context.Background(), "")
	if err != nil {
		t.Fatalf("live streams: %v", err)
	}
	if len(streams) != 3 {
		t.Fatalf("got %d streams, want 3", len(streams))
	}
	if streams[0].StreamID.String() != "101" || streams[1].StreamID.String() != "102" {
		t.Errorf("ids = %v/%v; number and string forms must normalize the same way",
			streams[0].StreamID, streams[1].StreamID)
	}
	if streams[0].CategoryID.String() != streams[1].CategoryID.String() {
		t.Errorf("category ids differ: %v vs %v", streams[0].CategoryID, streams[1].CategoryID)
	}
	if streams[2].StreamID.String() != "" {
		t.Errorf("missing stream_id = %q, want empty", streams[2].StreamID)
	}
}

func TestSeriesObjectShape(t *testing.T) {
	_, c := fakePanel(t, map[string]string{
		"get_series": `{"0":{"series_id":7,"name":"Lost"},"1":{"series_id":8,"name":"Fringe"}}`,
	})
	list, err := c.Series(context.Background(), "")
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d entries from object-shaped response, want 2", len(list))
	}
}

func TestSeriesInfoEpisodes(t *testing.T) {
	_, c := fakePanel(t, map[string]string{
		"get_series_info": `{
			"info":{"name":"Lost","genre":"Drama"},
			"episodes":{
				"1":[{"id":"9001","episode_num":1,"title":"Pilot","season":1,"container_extension":"mkv",
					"info":{"duration_secs":2580}}],
				"2":[{"id":"9002","episode_num":"1","title":"Man of Science","season":"2"}]
			}}`,
	})
	info, err := c.SeriesInfo(context.Background(), "7")
	if err != nil {
		t.Fatalf("series info: %v", err)
	}
	s1 := info.Episodes["1"]
	if len(s1) != 1 || s1[0].ID.String() != "9001" || s1[0].Info.DurationSecs.Int() != 2580 {
		t.Errorf("season 1 = %+v", s1)
	}
	s2 := info.Episodes["2"]
	if len(s2) != 1 || s2[0].Season.Int() != 2 || s2[0].EpisodeNum.Int() != 1 {
		t.Errorf("season 2 = %+v", s2)
	}
}

func TestCategoriesPerKind(t *testing.T) {
	_, c := fakePanel(t, map[string]string{
		"get_live_categories":   `[{"category_id":"1","category_name":"News"}]`,
		"get_vod_categories":    `[{"category_id":2,"category_name":"Action"}]`,
		"get_series_categories": `[{"category_id":"3","category_name":"Drama"}]`,
	})
	for _, tc := range []struct {
		kind catalog.ContentType
		want string
	}{
		{catalog.ContentLiveTV, "News"},
		{catalog.ContentMovie, "Action"},
		{catalog.ContentSeries, "Drama"},
	} {
		cats, err := c.Categories(context.Background(), tc.kind)
		if err != nil {
			t.Fatalf("%s categories: %v", tc.kind, err)
		}
		if len(cats) != 1 || cats[0].CategoryName != tc.want {
			t.Errorf("%s categories = %+v, want %s", tc.kind, cats, tc.want)
		}
	}
}
