package lms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// DefaultRequestTimeout bounds every individual HTTP request.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultMaxPages limits how many Link-header pages a list call follows.
	DefaultMaxPages = 10

	defaultUserAgent = "go-lms/1.0 (+https://github.com/flitsinc/go-lms)"
)

// FallbackPolicy decides whether a failed API call should fall back to
// scraping. It is only consulted for KindUpstreamUnavailable errors.
type FallbackPolicy func(err error) bool

// FallbackAlways falls back on every API failure.
func FallbackAlways(error) bool { return true }

// FallbackOnStatus falls back only when the API answered with one of the given
// status codes. Failures without an HTTP status (connection errors, non-JSON
// answers such as a login redirect) always fall back.
func FallbackOnStatus(codes ...int) FallbackPolicy {
	return func(err error) bool {
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			return true
		}
		return slices.Contains(codes, httpErr.StatusCode)
	}
}

// Fetcher resolves courses, modules, module items and assignments for an
// authenticated session. A Fetcher is safe for concurrent use.
type Fetcher struct {
	baseURL   *url.URL
	client    *http.Client
	timeout   time.Duration
	maxPages  int
	userAgent string
	logger    *slog.Logger
	fallback  FallbackPolicy
	limiter   *rate.Limiter
	cache     *ttlcache.Cache[string, any]
}

// NewFetcher returns a Fetcher for the LMS at baseURL, e.g.
// "https://learn.example.edu".
func NewFetcher(baseURL string) (*Fetcher, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	return &Fetcher{
		baseURL:   u,
		client:    &http.Client{},
		timeout:   DefaultRequestTimeout,
		maxPages:  DefaultMaxPages,
		userAgent: defaultUserAgent,
		logger:    slog.Default(),
		fallback:  FallbackAlways,
	}, nil
}

// WithHTTPClient sets the client used for API requests. Its transport is
// also used by the page fallback.
func (f *Fetcher) WithHTTPClient(client *http.Client) *Fetcher {
	f.client = client
	return f
}

func (f *Fetcher) WithTimeout(timeout time.Duration) *Fetcher {
	f.timeout = timeout
	return f
}

func (f *Fetcher) WithLogger(logger *slog.Logger) *Fetcher {
	f.logger = logger
	return f
}

func (f *Fetcher) WithFallbackPolicy(policy FallbackPolicy) *Fetcher {
	f.fallback = policy
	return f
}

func (f *Fetcher) WithMaxPages(n int) *Fetcher {
	f.maxPages = n
	return f
}

// WithRateLimit caps outgoing requests (API and page) to perMinute, allowing
// bursts of the same size. Zero or less disables limiting.
func (f *Fetcher) WithRateLimit(perMinute int) *Fetcher {
	if perMinute <= 0 {
		f.limiter = nil
		return f
	}
	f.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)
	return f
}

// WithCache caches successful results for ttl, keyed by operation, resource
// and session credentials. Call Close to stop the expiry loop.
func (f *Fetcher) WithCache(ttl time.Duration) *Fetcher {
	if f.cache != nil {
		f.cache.Stop()
		f.cache = nil
	}
	if ttl <= 0 {
		return f
	}
	f.cache = ttlcache.New[string, any](
		ttlcache.WithTTL[string, any](ttl),
		ttlcache.WithDisableTouchOnHit[string, any](),
	)
	go f.cache.Start()
	return f
}

// Close releases background resources. The Fetcher must not be used after
// Close.
func (f *Fetcher) Close() error {
	if f.cache != nil {
		f.cache.Stop()
		f.cache = nil
	}
	return nil
}

// BaseURL returns the LMS base URL.
func (f *Fetcher) BaseURL() string {
	return f.baseURL.String()
}

func (f *Fetcher) resolve(path string, query url.Values) *url.URL {
	u := *f.baseURL
	u.Path = strings.TrimRight(f.baseURL.Path, "/") + path
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return &u
}

func (f *Fetcher) transport() http.RoundTripper {
	if f.client.Transport != nil {
		return f.client.Transport
	}
	return http.DefaultTransport
}

// clientFor returns the API client for a session. Token sessions get an
// oauth2 transport that adds the bearer header.
func (f *Fetcher) clientFor(sess Session) *http.Client {
	if sess.AccessToken == "" {
		return f.client
	}
	c := *f.client
	c.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: sess.AccessToken}),
		Base:   f.transport(),
	}
	return &c
}

var errRateLimited = errors.New("rate limit wait aborted")

func (f *Fetcher) wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", errRateLimited, err)
	}
	return nil
}

// call describes one resource fetch: a structured API path and the page
// fallback that produces the same record shape.
type call[T any] struct {
	op       string
	resource string
	primary  func(ctx context.Context, sess Session) ([]T, error)
	fallback func(ctx context.Context, sess Session) ([]T, error)
}

// run executes c: NotStarted -> PrimaryAttempted -> {Success | FallbackAttempted}.
// The fallback runs at most once and only when the API failed with
// KindUpstreamUnavailable and the policy allows it. An empty API result is a
// success.
func run[T any](ctx context.Context, f *Fetcher, sess Session, c call[T]) ([]T, error) {
	if !sess.Authenticated {
		return nil, unauthenticated(c.op)
	}

	cacheKey := c.op + "|" + c.resource + "|" + sess.fingerprint()
	if f.cache != nil {
		if item := f.cache.Get(cacheKey); item != nil {
			if cached, ok := item.Value().([]T); ok {
				return slices.Clone(cached), nil
			}
		}
	}

	logger := f.logger.With("op", c.op, "resource", c.resource, "request_id", uuid.NewString())
	start := time.Now()

	items, err := c.primary(ctx, sess)
	if err == nil {
		logger.Debug("fetched from structured endpoint", "count", len(items), "duration", time.Since(start))
		return store(f, cacheKey, items), nil
	}
	if KindOf(err) != KindUpstreamUnavailable || ctx.Err() != nil || errors.Is(err, errRateLimited) || !f.fallback(err) {
		logger.Error("structured endpoint failed", "error", err)
		return nil, err
	}

	logger.Warn("structured endpoint unavailable, falling back to page", "error", err)
	items, ferr := c.fallback(ctx, sess)
	if ferr != nil {
		logger.Error("page fallback failed", "error", ferr)
		return nil, &Error{
			Kind:    KindFallbackExhausted,
			Op:      c.op,
			Message: "structured endpoint and page fallback both failed",
			Err:     errors.Join(err, ferr),
		}
	}
	logger.Info("fetched from page fallback", "count", len(items), "duration", time.Since(start))
	return store(f, cacheKey, items), nil
}

func store[T any](f *Fetcher, key string, items []T) []T {
	if items == nil {
		items = []T{}
	}
	if f.cache != nil {
		f.cache.Set(key, slices.Clone(items), ttlcache.DefaultTTL)
	}
	return items
}
