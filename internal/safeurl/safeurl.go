// Package safeurl validates and redacts URLs. Xtream playback and API
// URLs embed account credentials directly in the path and query, so any
// URL that reaches a log line must go through Redact first.
package safeurl

import (
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes that could lead to SSRF or local file access.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// Redact returns u with credential-bearing parts masked: userinfo,
// username/password query parameters, and the {user}/{pass} path
// segments of live/movie/series playback URLs. Unparseable input is
// fully masked rather than leaked.
func Redact(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return "<redacted>"
	}
	if parsed.User != nil {
		parsed.User = url.User("xxx")
	}
	q := parsed.Query()
	for _, k := range []string{"username", "password"} {
		if q.Has(k) {
			q.Set(k, "xxx")
		}
	}
	parsed.RawQuery = q.Encode()
	segs := strings.Split(parsed.Path, "/")
	for i, seg := range segs {
		switch seg {
		case "live", "movie", "series":
			// The two following segments are {user}/{pass}.
			if i+2 < len(segs) {
				segs[i+1] = "xxx"
				segs[i+2] = "xxx"
			}
		}
	}
	parsed.Path = strings.Join(segs, "/")
	parsed.RawPath = ""
	return parsed.String()
}
