// Package postprocess runs file-producing steps (watermarking) once per
// distinct (operation, input, settings) triple.
package postprocess

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/hash/sha256"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/storage"
)

// Operation is an opaque step that turns an input file into a new file.
type Operation interface {
	// Name identifies the operation in cache keys.
	Name() string
	// Fingerprint is a stable encoding of every setting that affects the
	// output.
	Fingerprint() string
	Run(ctx context.Context, input string) (string, error)
}

// Cached wraps an Operation with a content-addressed result cache. It
// satisfies catalog.PostProcessor.
type Cached struct {
	op     Operation
	store  storage.KV
	force  bool
	hasher *sha256.Hasher
	logger *zap.Logger
}

// NewCached builds a cached processor. With force set the cache is written
// but never read.
func NewCached(op Operation, store storage.KV, logger *zap.Logger, force bool) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{op: op, store: store, force: force, hasher: sha256.New(), logger: logger}
}

// Key returns the cache key for input.
func (c *Cached) Key(input string) string {
	return c.hasher.Key(c.op.Name(), input, c.op.Fingerprint())
}

// Process returns the cached output for input or runs the operation.
func (c *Cached) Process(ctx context.Context, input string) (string, error) {
	key := c.Key(input)
	if !c.force {
		if out, ok := c.lookup(ctx, key); ok {
			metrics.ObservePostprocess("hit")
			return out, nil
		}
	}
	out, err := c.op.Run(ctx, input)
	if err != nil {
		metrics.ObservePostprocess("error")
		return "", fmt.Errorf("%s %s: %w", c.op.Name(), input, err)
	}
	metrics.ObservePostprocess("miss")
	if err := c.store.Put(ctx, key, []byte(out)); err != nil {
		c.logger.Warn("postprocess cache write failed", zap.String("op", c.op.Name()), zap.Error(err))
	}
	return out, nil
}

func (c *Cached) lookup(ctx context.Context, key string) (string, bool) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("postprocess cache read failed", zap.String("op", c.op.Name()), zap.Error(err))
		return "", false
	}
	if !found {
		return "", false
	}
	out := string(data)
	if _, err := os.Stat(out); err != nil {
		c.logger.Info("cached output missing, recomputing", zap.String("path", out))
		return "", false
	}
	return out, true
}
