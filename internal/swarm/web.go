package swarm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
	cache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/eternal/internal/logging"
)

const (
	defaultUserAgent    = "EternalSwarm/1.0"
	defaultFetchTimeout = 10 * time.Second
	defaultCacheTTL     = time.Hour
	maxBodySize         = 5 * 1024 * 1024
	maxRobotsSize       = 512 * 1024
	defaultMaxContent   = 4000
)

// ErrBlocked is returned when robots.txt or the URL policy forbids a fetch.
var ErrBlocked = errors.New("fetch blocked")

// WebConfig configures a WebSource.
type WebConfig struct {
	// SearchEndpoint receives the query as the q parameter.
	SearchEndpoint string
	UserAgent      string
	Timeout        time.Duration
	// RateLimit is requests per second across all fetches. Zero disables it.
	RateLimit float64
	CacheTTL  time.Duration
	// MaxContent caps extracted text, in runes.
	MaxContent int
	// AllowPrivate permits loopback and private-network hosts.
	AllowPrivate bool
	Client       *http.Client
	Logger       *logging.Logger
}

// Page is extracted page content.
type Page struct {
	URL   string
	Title string
	Text  string
}

// WebSource fetches a search page per query and extracts its main text.
type WebSource struct {
	cfg     WebConfig
	client  *http.Client
	limiter *rate.Limiter
	pages   *cache.Cache
	robots  *cache.Cache
	logger  *logging.Logger
	metrics *Metrics
}

// NewWebSource creates a WebSource.
func NewWebSource(cfg WebConfig) (*WebSource, error) {
	u, err := url.Parse(cfg.SearchEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid search endpoint %q", cfg.SearchEndpoint)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.MaxContent <= 0 {
		cfg.MaxContent = defaultMaxContent
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	w := &WebSource{
		cfg:     cfg,
		client:  client,
		pages:   cache.New(cfg.CacheTTL, 10*time.Minute),
		robots:  cache.New(cfg.CacheTTL, 10*time.Minute),
		logger:  logger.Named("web"),
		metrics: NewMetrics(),
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return w, nil
}

func (w *WebSource) Name() string { return "web" }

// Fetch searches for query and returns the extracted result page.
func (w *WebSource) Fetch(ctx context.Context, query string) (Record, error) {
	page, err := w.FetchPage(ctx, w.SearchURL(query))
	if err != nil {
		return Record{}, err
	}
	label := page.Title
	if label == "" {
		label = page.URL
	}
	return Record{Source: label, Query: query, Content: page.Text}, nil
}

// SearchURL builds the search request URL for query.
func (w *WebSource) SearchURL(query string) string {
	u, _ := url.Parse(w.cfg.SearchEndpoint)
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchPage fetches rawURL, honouring robots.txt, the rate limit and the
// page cache, and extracts the main content.
func (w *WebSource) FetchPage(ctx context.Context, rawURL string) (Page, error) {
	u, err := w.validateURL(rawURL)
	if err != nil {
		return Page{}, err
	}
	if cached, ok := w.pages.Get(rawURL); ok {
		w.metrics.RecordCacheHit("page")
		return cached.(Page), nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	if !w.allowedByRobots(ctx, u) {
		return Page{}, fmt.Errorf("%w by robots.txt: %s", ErrBlocked, rawURL)
	}
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return Page{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	body, err := w.get(ctx, rawURL, "text/html,application/xhtml+xml", maxBodySize)
	if err != nil {
		return Page{}, err
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL:    u,
		EnableFallback: true,
	})
	if err != nil {
		return Page{}, fmt.Errorf("extract %s: %w", rawURL, err)
	}
	if result == nil || strings.TrimSpace(result.ContentText) == "" {
		return Page{}, fmt.Errorf("no content extracted from %s", rawURL)
	}

	page := Page{
		URL:   rawURL,
		Title: result.Metadata.Title,
		Text:  truncate(strings.TrimSpace(result.ContentText), w.cfg.MaxContent),
	}
	w.pages.Set(rawURL, page, cache.DefaultExpiration)
	w.logger.Debug(ctx, "page fetched",
		zap.String("url", rawURL),
		zap.Int("length", len(page.Text)))
	return page, nil
}

func (w *WebSource) get(ctx context.Context, rawURL, accept string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// allowedByRobots fails open: an unreachable or unparsable robots.txt
// allows the fetch.
func (w *WebSource) allowedByRobots(ctx context.Context, u *url.URL) bool {
	host := u.Scheme + "://" + u.Host
	var data *robotstxt.RobotsData
	if cached, ok := w.robots.Get(host); ok {
		w.metrics.RecordCacheHit("robots")
		data = cached.(*robotstxt.RobotsData)
	} else {
		data = w.loadRobots(ctx, host)
		w.robots.Set(host, data, cache.DefaultExpiration)
	}
	if data == nil {
		return true
	}
	group := data.FindGroup(w.cfg.UserAgent)
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (w *WebSource) loadRobots(ctx context.Context, host string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", w.cfg.UserAgent)
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Debug(ctx, "robots.txt unavailable", zap.String("host", host), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}

func (w *WebSource) validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https are supported, got %q", ErrBlocked, u.Scheme)
	}
	if w.cfg.AllowPrivate {
		return u, nil
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || host == "metadata.google.internal" {
		return nil, fmt.Errorf("%w: host %q is not allowed", ErrBlocked, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return nil, fmt.Errorf("%w: address %s is not allowed", ErrBlocked, ip)
		}
	}
	return u, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
