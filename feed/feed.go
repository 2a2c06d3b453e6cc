// Package feed retrieves the bot tracking documents published by the search
// engine IP tracker and turns them into allow-list ranges.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultIndexURL lists every tracked source and the URL of its prefix document.
	DefaultIndexURL = "https://search-engine-ip-tracker.merj.com/status"

	// DefaultTimeout bounds a single request, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent when the caller does not supply one.
	DefaultUserAgent = "good-bots"

	maxResponseBytes = 10 << 20 // 10 MiB
)

var (
	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrNotJSON is returned when the response body cannot be decoded.
	ErrNotJSON = errors.New("response is not valid JSON")
)

// Fetcher downloads JSON documents. It makes exactly one attempt per URL.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher returns a Fetcher using client, or a client with
// DefaultTimeout and the default (verifying) TLS configuration when nil.
// userAgent identifies good-bots to the tracker operators, e.g.
// "good-bots/v1.2.0"; DefaultUserAgent is used when it is empty.
func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout: DefaultTimeout,
		}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
	}
}

// FetchJSON performs a GET request and decodes the body into generic JSON
// values (map[string]any, []any, string, float64, bool or nil).
func (f *Fetcher) FetchJSON(ctx context.Context, url string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	return doc, nil
}
