package fetchcache

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// Request is one GET issued by the cache.
type Request struct {
	URL    string
	Header http.Header
}

// Response is what a Transport returns for any HTTP status. Network-level
// failures are returned as errors instead.
type Response struct {
	FinalURL   string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs a single GET.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// CollyConfig controls the collector behind CollyTransport.
type CollyConfig struct {
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxBodySize int           `mapstructure:"max_body_size"`
}

// CollyTransport implements Transport with a gocolly collector. Each request
// runs on a clone with an empty cookie jar so no session state leaks between
// pages.
type CollyTransport struct {
	cfg  CollyConfig
	base *colly.Collector
	// clones share the base collector's http.Client
	mu sync.Mutex
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// NewCollyTransport builds the production transport.
func NewCollyTransport(cfg CollyConfig) *CollyTransport {
	opts := []colly.CollectorOption{
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
	}
	if cfg.MaxBodySize > 0 {
		opts = append(opts, colly.MaxBodySize(cfg.MaxBodySize))
	}
	c := colly.NewCollector(opts...)
	c.WithTransport(newHTTPTransport())
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c.SetRequestTimeout(cfg.Timeout)
	return &CollyTransport{cfg: cfg, base: c}
}

// Do performs one GET.
func (t *CollyTransport) Do(ctx context.Context, req Request) (Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		result   Response
		fetchErr error
	)
	collector, err := t.buildCollector(ctx)
	if err != nil {
		return Response{}, err
	}
	configureCollectorHooks(collector, req, &result, &fetchErr)
	if err := runCollector(ctx, collector, req.URL); err != nil {
		return Response{}, err
	}
	if fetchErr != nil && result.StatusCode == 0 {
		return Response{}, fmt.Errorf("colly response failed: %w", fetchErr)
	}
	return result, nil
}

func (t *CollyTransport) buildCollector(ctx context.Context) (*colly.Collector, error) {
	collector := t.base.Clone()
	collector.Context = ctx
	if t.cfg.UserAgent != "" {
		collector.UserAgent = t.cfg.UserAgent
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	collector.SetCookieJar(jar)
	return collector, nil
}

func configureCollectorHooks(hooks collectorHooks, req Request, result *Response, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range req.Header {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = Response{
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
		if r.Headers != nil {
			result.Header = r.Headers.Clone()
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	if err := collector.Visit(url); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
		}
		return fmt.Errorf("colly visit failed: %w", err)
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
