package factfinder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/eternal/internal/swarm"
)

// DefaultWikipediaEndpoint is the REST page summary endpoint; the title is
// appended to it.
const DefaultWikipediaEndpoint = "https://en.wikipedia.org/api/rest_v1/page/summary/"

const defaultTimeout = 10 * time.Second

// Wikipedia fetches page summaries from the Wikipedia REST API.
type Wikipedia struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

// NewWikipedia creates a Wikipedia client. Empty endpoint and zero timeout
// use the defaults.
func NewWikipedia(endpoint, userAgent string, timeout time.Duration) *Wikipedia {
	if endpoint == "" {
		endpoint = DefaultWikipediaEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if userAgent == "" {
		userAgent = "EternalFactFinder/1.0"
	}
	return &Wikipedia{
		endpoint:  endpoint,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

type summaryResponse struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// SummaryURL returns the request URL for topic.
func (w *Wikipedia) SummaryURL(topic string) string {
	title := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	return w.endpoint + url.PathEscape(title)
}

// Summary returns the page extract for topic.
func (w *Wikipedia) Summary(ctx context.Context, topic string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.SummaryURL(topic), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("wikipedia request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wikipedia returned status %d for %q", resp.StatusCode, topic)
	}

	var sr summaryResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("decode summary: %w", err)
	}
	if strings.TrimSpace(sr.Extract) == "" {
		return "", fmt.Errorf("no summary for %q", topic)
	}
	return sr.Extract, nil
}

// SourceSearcher runs web searches through a swarm source, so the agent
// shares the swarm's robots.txt handling, rate limit and page cache.
type SourceSearcher struct {
	Source swarm.Source
}

// Search returns the source's record for query as a single result.
func (s SourceSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	rec, err := s.Source.Fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.Content) == "" {
		return nil, nil
	}
	return []SearchResult{{Title: rec.Source, Body: rec.Content}}, nil
}
