// Package enrich attaches an image to an answer: a chart placeholder for
// visualization requests, otherwise a stock photo found on Pexels.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/eternal/internal/logging"
)

const (
	DefaultPexelsEndpoint = "https://api.pexels.com/v1/search"

	defaultImageTimeout  = 10 * time.Second
	defaultImageCacheTTL = 24 * time.Hour
	queryWords           = 3
)

// ImageFinder looks up an image URL for answer text.
type ImageFinder interface {
	FindImage(ctx context.Context, text string) (string, bool)
}

// PexelsConfig configures a PexelsFinder.
type PexelsConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
	CacheTTL time.Duration
	Client   *http.Client
	Logger   *logging.Logger
}

// PexelsFinder searches Pexels with the first words of the answer.
type PexelsFinder struct {
	apiKey   string
	endpoint string
	client   *http.Client
	cache    *cache.Cache
	logger   *logging.Logger
}

// NewPexelsFinder creates a PexelsFinder. Without an API key every lookup
// reports no image.
func NewPexelsFinder(cfg PexelsConfig) *PexelsFinder {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultPexelsEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultImageTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultImageCacheTTL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PexelsFinder{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		client:   client,
		cache:    cache.New(cfg.CacheTTL, time.Hour),
		logger:   logger.Named("pexels"),
	}
}

// ImageQuery is the search query used for text: its first three words.
func ImageQuery(text string) string {
	words := strings.Fields(text)
	if len(words) > queryWords {
		words = words[:queryWords]
	}
	return strings.Join(words, " ")
}

// FindImage returns the medium-size URL of the first matching photo.
// Lookup failures are logged and reported as no image.
func (p *PexelsFinder) FindImage(ctx context.Context, text string) (string, bool) {
	if p.apiKey == "" {
		return "", false
	}
	query := ImageQuery(text)
	if query == "" {
		return "", false
	}
	if cached, ok := p.cache.Get(query); ok {
		u := cached.(string)
		return u, u != ""
	}

	u, err := p.search(ctx, query)
	if err != nil {
		p.logger.Warn(ctx, "image lookup failed", zap.String("query", query), zap.Error(err))
		return "", false
	}
	// Misses are cached too.
	p.cache.Set(query, u, cache.DefaultExpiration)
	return u, u != ""
}

type pexelsResponse struct {
	Photos []struct {
		Src struct {
			Medium string `json:"medium"`
		} `json:"src"`
	} `json:"photos"`
}

func (p *PexelsFinder) search(ctx context.Context, query string) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("per_page", "1")
	q.Set("page", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pexels returned HTTP %d", resp.StatusCode)
	}
	var body pexelsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(body.Photos) == 0 {
		return "", nil
	}
	return body.Photos[0].Src.Medium, nil
}
