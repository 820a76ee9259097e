// Package ingest polls the feed sources of lists and turns unseen entries
// into mails, which then fan out like any other mail.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/mmcdole/gofeed"
)

// Entry is one feed entry as the poller consumes it
type Entry struct {
	Title   string
	Link    string
	Content string
}

// FeedFetcher retrieves the current entries of a feed
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]Entry, error)
}

// HTTPFetcher fetches feeds over an SSRF-guarded HTTP client and parses them
// with gofeed. Private, loopback and link-local destinations are rejected at
// the dialer, after DNS resolution.
type HTTPFetcher struct {
	client *http.Client
	parser *gofeed.Parser
}

// NewHTTPFetcher creates a feed fetcher with the given per-request timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return &HTTPFetcher{
		client: safeurl.Client(config).Client,
		parser: gofeed.NewParser(),
	}
}

// Fetch retrieves and parses one feed
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("User-Agent", "mailfan/1.0 feed poller")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed request returned status %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		content := item.Content
		if content == "" {
			content = item.Description
		}
		entries = append(entries, Entry{
			Title:   item.Title,
			Link:    item.Link,
			Content: content,
		})
	}
	return entries, nil
}
