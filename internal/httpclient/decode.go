package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

const (
	// UserAgent identifies us to providers; some panels reject the Go
	// default agent outright.
	UserAgent = "iptvault/1.0"

	// AcceptEncoding advertises the encodings DecodeBody understands.
	// Cloudflare-fronted providers answer brotli when offered.
	AcceptEncoding = "gzip, br"
)

// DecodeBody returns a reader over resp.Body that transparently decodes
// the response's Content-Encoding. Callers that set Accept-Encoding
// themselves (disabling the transport's automatic gzip) must read
// through this. The caller still closes resp.Body.
func DecodeBody(resp *http.Response) io.Reader {
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return brotli.NewReader(resp.Body)
	case "gzip":
		if zr, err := gzip.NewReader(resp.Body); err == nil {
			return zr
		}
	}
	return resp.Body
}
