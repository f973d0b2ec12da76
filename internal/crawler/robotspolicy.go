package crawler

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/fetchcache"
)

// RobotsPolicy decides whether a page may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// RobotsEnforcer reads robots.txt through the fetch cache, once per host.
type RobotsEnforcer struct {
	fetcher   Fetcher
	userAgent string
	logger    *zap.Logger

	mu    sync.Mutex
	hosts map[string]*robotstxt.RobotsData
}

// NewRobotsEnforcer returns an allow-all policy unless respect is set.
func NewRobotsEnforcer(respect bool, fetcher Fetcher, userAgent string, logger *zap.Logger) RobotsPolicy {
	if !respect || fetcher == nil {
		return allowAllPolicy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsEnforcer{
		fetcher:   fetcher,
		userAgent: userAgent,
		logger:    logger,
		hosts:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed implements RobotsPolicy. A robots.txt that cannot be fetched or
// parsed allows everything.
func (r *RobotsEnforcer) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	data := r.load(ctx, parsed)
	if data == nil {
		return true
	}
	group := data.FindGroup(r.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.EscapedPath())
}

func (r *RobotsEnforcer) load(ctx context.Context, parsed *url.URL) *robotstxt.RobotsData {
	host := strings.ToLower(parsed.Host)
	r.mu.Lock()
	data, ok := r.hosts[host]
	r.mu.Unlock()
	if ok {
		return data
	}

	robotsURL := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	res := r.fetcher.Fetch(ctx, robotsURL.String(), fetchcache.PolicyValidate)
	if res.Status == fetchcache.StatusFailed {
		r.logger.Warn("robots fetch failed; allowing access", zap.String("host", host))
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
	if err != nil {
		r.logger.Warn("robots parse failed; allowing access", zap.String("host", host), zap.Error(err))
		data = nil
	}
	r.mu.Lock()
	r.hosts[host] = data
	r.mu.Unlock()
	return data
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allowed(context.Context, string) bool { return true }
