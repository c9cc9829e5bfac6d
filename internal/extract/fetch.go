package extract

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/profile-enrich/internal/config"
	"github.com/sells-group/profile-enrich/internal/model"
	"github.com/sells-group/profile-enrich/internal/resilience"
)

// Page is a fetched page body plus the URL the fetch resolved to.
type Page struct {
	Body     []byte
	FinalURL string
}

// Fetcher performs polite HTTP GETs for the content extractors: https/http
// only, declared user agent, robots.txt compliance, per-domain rate
// limiting, block detection, and a short-lived page cache. Client errors
// (4xx) are not retried; 5xx and timeouts get one retry with backoff.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64

	robots        *RobotsChecker
	respectRobots bool

	pageCache *gocache.Cache

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
}

// FetcherOption adjusts a Fetcher beyond its config.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the fetcher's HTTP client, e.g. to route requests
// through a custom transport.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

// NewFetcher creates a Fetcher from config.
func NewFetcher(cfg config.FetchConfig, opts ...FetcherOption) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 512 * 1024
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1.0
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent:     cfg.UserAgent,
		maxBytes:      maxBytes,
		robots:        NewRobotsChecker(cfg.UserAgent, timeout),
		respectRobots: cfg.RespectRobots,
		pageCache:     gocache.New(cacheTTL, 2*cacheTTL),
		limiters:      make(map[string]*rate.Limiter),
		rps:           rate.Limit(rps),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves a URL's body. Failures are typed: FetchError for
// network/status failures, BlockedError for anti-bot or robots denial.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &model.InvalidSourceError{URL: rawURL, Reason: "not an http(s) url"}
	}

	if cached, ok := f.pageCache.Get(rawURL); ok {
		return cached.(*Page), nil
	}

	if f.respectRobots && !f.robots.Allowed(ctx, rawURL) {
		return nil, &model.BlockedError{URL: rawURL, BlockType: string(BlockRobots)}
	}

	if err := f.limiter(parsed.Hostname()).Wait(ctx); err != nil {
		return nil, &model.FetchError{URL: rawURL, Err: err}
	}

	page, err := f.fetchOnce(ctx, rawURL)
	if err != nil && retryable(err) && ctx.Err() == nil {
		zap.L().Debug("fetch: retrying after transient failure",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		timer := time.NewTimer(time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, err
		case <-timer.C:
		}
		page, err = f.fetchOnce(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}

	f.pageCache.SetDefault(rawURL, page)
	return page, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &model.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &model.FetchError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, &model.FetchError{URL: rawURL, Err: err}
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, &model.BlockedError{URL: rawURL, BlockType: string(blockType)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &model.FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Page{Body: body, FinalURL: finalURL}, nil
}

// retryable reports whether a fetch failure warrants the single retry:
// transient statuses (429, 5xx) and network timeouts. Other 4xx never
// retries.
func retryable(err error) bool {
	if fe, ok := err.(*model.FetchError); ok {
		if fe.StatusCode != 0 {
			return resilience.IsTransientHTTPStatus(fe.StatusCode)
		}
		if ne, ok := fe.Err.(net.Error); ok && ne.Timeout() {
			return true
		}
		return resilience.IsTransient(fe.Err)
	}
	return false
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(f.rps, 3)
	f.limiters[host] = lim
	return lim
}
