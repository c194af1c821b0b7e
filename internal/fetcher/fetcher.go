// Package fetcher downloads raw source content over HTTP or FTP, with
// per-scheme dispatch so a source URL alone decides the transport.
package fetcher

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
)

// Result is one fetched document. StatusCode is zero for transports
// without status semantics (FTP).
type Result struct {
	Body       []byte
	StatusCode int
}

// Fetcher downloads the content behind a URL.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*Result, error)
}

// Dispatcher routes fetches to a transport based on the URL scheme.
type Dispatcher struct {
	http Fetcher
	ftp  Fetcher
}

// NewDispatcher creates a Dispatcher over the given transports.
func NewDispatcher(httpFetcher, ftpFetcher Fetcher) *Dispatcher {
	return &Dispatcher{http: httpFetcher, ftp: ftpFetcher}
}

// Get fetches rawURL with the transport matching its scheme.
func (d *Dispatcher) Get(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return d.http.Get(ctx, rawURL)
	case "ftp":
		return d.ftp.Get(ctx, rawURL)
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q in %s", u.Scheme, rawURL)
	}
}
