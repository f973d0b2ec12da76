// Package fetchcache performs page GETs with bounded retry and a persistent
// cache keyed by normalized URL. Expected outcomes (not found, gave up) are
// reported through Result.Status, never as errors.
package fetchcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/catalog-crawler/internal/hash/sha256"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

const (
	defaultMaxAttempts = 5
	defaultBackoffUnit = time.Second
)

// Config tunes retry behaviour.
type Config struct {
	// MaxAttempts bounds the total number of tries for transient errors.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BackoffUnit is multiplied by the attempt number to get the delay.
	BackoffUnit time.Duration `mapstructure:"backoff_unit"`
	// Refresh revalidates pages that PolicyForever would serve from the
	// store.
	Refresh bool `mapstructure:"refresh"`
}

// Store persists successful responses. storage.KV implementations satisfy it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// entry is the persisted form of a 200 response.
type entry struct {
	URL          string    `json:"url"`
	FinalURL     string    `json:"final_url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Body         []byte    `json:"body"`
	StoredAt     time.Time `json:"stored_at"`
}

// Cache is safe for concurrent use. A normalized URL reaches the transport at
// most once per Cache lifetime unless PolicyBypass asks for it again.
type Cache struct {
	transport Transport
	store     Store
	logger    *zap.Logger
	cfg       Config
	hasher    *sha256.Hasher
	now       func() time.Time

	mu    sync.Mutex
	memo  map[string]Result
	group singleflight.Group
}

// New builds a Cache. store may be nil, in which case nothing persists
// across runs.
func New(transport Transport, store Store, logger *zap.Logger, cfg Config) *Cache {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BackoffUnit < 0 {
		cfg.BackoffUnit = 0
	}
	if cfg.BackoffUnit == 0 {
		cfg.BackoffUnit = defaultBackoffUnit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		transport: transport,
		store:     store,
		logger:    logger,
		cfg:       cfg,
		hasher:    sha256.New(),
		now:       time.Now,
		memo:      make(map[string]Result),
	}
}

// Fetch retrieves rawURL under policy and parses the body as HTML.
func (c *Cache) Fetch(ctx context.Context, rawURL string, policy Policy) Result {
	res := c.get(ctx, rawURL, policy)
	if !res.OK() || res.Doc != nil {
		return res
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		c.logger.Warn("parse html failed", zap.String("url", res.URL), zap.Error(err))
		res.Status = StatusFailed
		return res
	}
	if final, err := url.Parse(res.FinalURL); err == nil {
		doc.Url = final
	}
	res.Doc = doc
	c.mu.Lock()
	c.memo[res.URL] = res
	c.mu.Unlock()
	return res
}

// Download fetches rawURL (forever policy) and writes the body to dest.
func (c *Cache) Download(ctx context.Context, rawURL, dest string) error {
	res := c.get(ctx, rawURL, PolicyForever)
	if !res.OK() {
		return fmt.Errorf("download %s: %s (status code %d)", rawURL, res.Status, res.StatusCode)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	if err := os.WriteFile(dest, res.Body, 0o600); err != nil {
		return fmt.Errorf("write download: %w", err)
	}
	return nil
}

// Has reports whether rawURL is in the persistent store.
func (c *Cache) Has(ctx context.Context, rawURL string) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	norm, err := NormalizeURL(rawURL)
	if err != nil {
		return false, err
	}
	_, found, err := c.store.Get(ctx, c.key(norm))
	if err != nil {
		return false, fmt.Errorf("cache lookup %s: %w", norm, err)
	}
	return found, nil
}

func (c *Cache) key(norm string) string {
	return c.hasher.HashString(norm)
}

func (c *Cache) memoized(norm string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.memo[norm]
	return res, ok
}

func (c *Cache) get(ctx context.Context, rawURL string, policy Policy) Result {
	if c.cfg.Refresh && policy == PolicyForever {
		policy = PolicyValidate
	}
	norm, err := NormalizeURL(rawURL)
	if err != nil {
		c.logger.Warn("invalid url", zap.String("url", rawURL), zap.Error(err))
		return Result{URL: rawURL, FinalURL: rawURL, Status: StatusFailed}
	}
	bypass := policy == PolicyBypass
	if !bypass {
		if res, ok := c.memoized(norm); ok {
			metrics.ObserveCacheHit("memo")
			res.FromCache = true
			res.Revalidated = false
			return res
		}
	}
	v, _, _ := c.group.Do(norm+"|"+policy.String(), func() (any, error) {
		if !bypass {
			if res, ok := c.memoized(norm); ok {
				res.FromCache = true
				res.Revalidated = false
				return res, nil
			}
		}
		res := c.load(ctx, norm, policy)
		c.mu.Lock()
		c.memo[norm] = res
		c.mu.Unlock()
		return res, nil
	})
	res, _ := v.(Result)
	return res
}

func (c *Cache) load(ctx context.Context, norm string, policy Policy) Result {
	var stored *entry
	if policy != PolicyBypass {
		stored = c.read(ctx, norm)
	}
	if stored != nil && policy == PolicyForever {
		metrics.ObserveCacheHit("store")
		return stored.result(norm)
	}

	header := http.Header{}
	if stored != nil {
		if stored.ETag != "" {
			header.Set("If-None-Match", stored.ETag)
		}
		if stored.LastModified != "" {
			header.Set("If-Modified-Since", stored.LastModified)
		}
	}

	resp, err := c.roundTrip(ctx, norm, header)
	if err != nil {
		c.logger.Warn("fetch failed", zap.String("url", norm), zap.Error(err))
		metrics.ObserveFetch(norm, StatusFailed.String(), 0)
		return Result{URL: norm, FinalURL: norm, Status: StatusFailed}
	}
	if resp.FinalURL == "" {
		resp.FinalURL = norm
	}

	switch {
	case resp.StatusCode == http.StatusNotModified && stored != nil:
		metrics.ObserveCacheHit("revalidated")
		res := stored.result(norm)
		res.FromCache = false
		res.Revalidated = true
		return res
	case resp.StatusCode == http.StatusOK:
		metrics.ObserveFetch(norm, StatusOK.String(), len(resp.Body))
		c.write(ctx, norm, resp)
		return Result{
			URL:        norm,
			FinalURL:   resp.FinalURL,
			Status:     StatusOK,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		}
	default:
		c.logger.Info("non-200 response",
			zap.String("url", norm),
			zap.Int("status_code", resp.StatusCode),
		)
		metrics.ObserveFetch(norm, StatusNotFound.String(), len(resp.Body))
		return Result{
			URL:        norm,
			FinalURL:   resp.FinalURL,
			Status:     StatusNotFound,
			StatusCode: resp.StatusCode,
		}
	}
}

// roundTrip retries transient errors with a linear delay of
// attempt * BackoffUnit.
func (c *Cache) roundTrip(ctx context.Context, norm string, header http.Header) (Response, error) {
	unit := c.cfg.BackoffUnit
	policy := retrypolicy.NewBuilder[Response]().
		HandleIf(func(_ Response, err error) bool {
			return isTransient(err)
		}).
		WithMaxAttempts(c.cfg.MaxAttempts).
		WithDelayFunc(func(exec failsafe.ExecutionAttempt[Response]) time.Duration {
			return time.Duration(exec.Attempts()) * unit
		}).
		OnRetry(func(e failsafe.ExecutionEvent[Response]) {
			c.logger.Debug("retrying fetch",
				zap.String("url", norm),
				zap.Int("attempt", e.Attempts()),
				zap.Error(e.LastError()),
			)
			metrics.ObserveRetry(norm)
		}).
		ReturnLastFailure().
		Build()

	resp, err := failsafe.With[Response](policy).WithContext(ctx).Get(func() (Response, error) {
		return c.transport.Do(ctx, Request{URL: norm, Header: header})
	})
	if err != nil {
		return Response{}, fmt.Errorf("get %s: %w", norm, err)
	}
	return resp, nil
}

// isTransient reports connection-level failures worth another attempt.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Cache) read(ctx context.Context, norm string) *entry {
	if c.store == nil {
		return nil
	}
	data, found, err := c.store.Get(ctx, c.key(norm))
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("url", norm), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("url", norm), zap.Error(err))
		return nil
	}
	return &e
}

func (c *Cache) write(ctx context.Context, norm string, resp Response) {
	if c.store == nil {
		return
	}
	e := entry{
		URL:      norm,
		FinalURL: resp.FinalURL,
		Body:     resp.Body,
		StoredAt: c.now().UTC(),
	}
	if resp.Header != nil {
		e.ETag = resp.Header.Get("ETag")
		e.LastModified = resp.Header.Get("Last-Modified")
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("encode cache entry failed", zap.String("url", norm), zap.Error(err))
		return
	}
	if err := c.store.Put(ctx, c.key(norm), data); err != nil {
		c.logger.Warn("cache write failed", zap.String("url", norm), zap.Error(err))
	}
}

func (e *entry) result(norm string) Result {
	final := e.FinalURL
	if final == "" {
		final = norm
	}
	return Result{
		URL:        norm,
		FinalURL:   final,
		Status:     StatusOK,
		StatusCode: http.StatusOK,
		Body:       e.Body,
		FromCache:  true,
	}
}
