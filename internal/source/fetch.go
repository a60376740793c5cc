// Package source pulls raw datasets from their remote homes: static CSV or
// XLSX files, range-readable Parquet objects, and an optional Postgres export.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrEmptyPayload     = errors.New("source returned no rows")
	ErrRangeUnsupported = errors.New("server does not support range requests")
)

type Fetcher struct {
	Client *http.Client
	// Timeout bounds a single fetch when Client has none of its own.
	Timeout time.Duration
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Bytes downloads the whole body. Non-2xx responses are errors.
func (f *Fetcher) Bytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: http error: %s", redact(rawURL), resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redact(rawURL), err)
	}
	if len(body) == 0 {
		return nil, ErrEmptyPayload
	}
	return body, nil
}

// CacheBust appends a t=<unix millis> parameter so intermediaries never serve
// a stale copy of a local static file.
func CacheBust(rawURL string, now time.Time) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// redact drops the query string, which may carry tokens, from logged URLs.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
