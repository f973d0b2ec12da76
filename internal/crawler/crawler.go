package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/fetchcache"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/site"
)

// ErrRootUnavailable means the root listing could not be fetched.
var ErrRootUnavailable = errors.New("root listing unavailable")

// Node levels used in logs and metrics.
const (
	levelSection  = "section"
	levelCategory = "category"
	levelContent  = "content"
)

// Config holds the crawl settings. It is decoupled from viper so the
// crawler can be tested on its own.
type Config struct {
	RootURL       string        `mapstructure:"root_url"`
	UserAgent     string        `mapstructure:"user_agent"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	Delay         time.Duration `mapstructure:"delay"`
	// KeepEmptyTopics keeps sections and categories that ended up with no
	// children, matching manifest mode. Config loading turns it on; the
	// zero value prunes.
	KeepEmptyTopics bool `mapstructure:"keep_empty_topics"`
}

// Fetcher is the subset of the fetch cache the crawler uses.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, policy fetchcache.Policy) fetchcache.Result
}

// Classifier turns a content page into zero or one leaf.
type Classifier interface {
	Classify(ctx context.Context, page fetchcache.Result, title string) (*catalog.ContentItem, bool)
}

// Builder crawls one site into one channel.
type Builder struct {
	cfg        Config
	info       catalog.ChannelInfo
	fetcher    Fetcher
	classifier Classifier
	extractor  *site.Extractor
	robots     RobotsPolicy
	pacer      *pacer
	logger     *zap.Logger
}

// NewBuilder wires a Builder. info.Language is appended to section and
// content URLs.
func NewBuilder(cfg Config, info catalog.ChannelInfo, fetcher Fetcher, classifier Classifier, extractor *site.Extractor, logger *zap.Logger) (*Builder, error) {
	if strings.TrimSpace(cfg.RootURL) == "" {
		return nil, fmt.Errorf("crawler root url is required")
	}
	if fetcher == nil || classifier == nil {
		return nil, fmt.Errorf("crawler requires a fetcher and a classifier")
	}
	if extractor == nil {
		extractor = site.NewExtractor(site.Default())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		cfg:        cfg,
		info:       info,
		fetcher:    fetcher,
		classifier: classifier,
		extractor:  extractor,
		robots:     NewRobotsEnforcer(cfg.RespectRobots, fetcher, cfg.UserAgent, logger),
		pacer:      newPacer(cfg.Delay),
		logger:     logger,
	}, nil
}

// Build crawls the site depth first in document order. Only a failed root
// fetch or a cancelled context returns an error.
func (b *Builder) Build(ctx context.Context) (*catalog.Channel, error) {
	start := time.Now()
	channel := catalog.NewChannel(b.info)

	root := b.fetch(ctx, b.cfg.RootURL, fetchcache.PolicyValidate)
	if !root.OK() {
		return nil, fmt.Errorf("%w: %s (%s)", ErrRootUnavailable, b.cfg.RootURL, root.Status)
	}

	links := b.extractor.SectionLinks(root.Doc)
	b.logger.Info("crawling sections", zap.Int("count", len(links)), zap.String("language", b.info.Language))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crawl cancelled: %w", err)
		}
		topic, ok := b.section(ctx, link)
		if !ok {
			continue
		}
		b.attach(channel.Root, topic, levelSection)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("crawl cancelled: %w", err)
	}

	metrics.ObserveCrawl(time.Since(start))
	stats := catalog.Count(channel)
	b.logger.Info("crawl finished",
		zap.Int("topics", stats.Topics),
		zap.Int("items", stats.Items),
		zap.Int("subtitles", stats.Subtitles),
		zap.Duration("elapsed", time.Since(start)),
	)
	return channel, nil
}

func (b *Builder) section(ctx context.Context, link site.Link) (*catalog.Topic, bool) {
	target := b.extractor.SectionURL(link.URL, b.info.Language)
	page := b.fetch(ctx, target, fetchcache.PolicyValidate)
	if !page.OK() {
		b.skip(levelSection, target, "fetch "+page.Status.String())
		return nil, false
	}

	id, title := page.FinalURL, link.Title
	if crumb, ok := b.extractor.Breadcrumb(page.Doc); ok {
		id, title = crumb.URL, crumb.Title
	}
	topic := catalog.NewTopic(id, title)

	for _, opt := range b.extractor.CategoryOptions(page.Doc) {
		if ctx.Err() != nil {
			break
		}
		category, ok := b.category(ctx, opt)
		if !ok {
			continue
		}
		b.attach(topic, category, levelCategory)
	}
	return topic, true
}

func (b *Builder) category(ctx context.Context, opt site.Link) (*catalog.Topic, bool) {
	page := b.fetch(ctx, opt.URL, fetchcache.PolicyValidate)
	if !page.OK() {
		b.skip(levelCategory, opt.URL, "fetch "+page.Status.String())
		return nil, false
	}
	topic := catalog.NewTopic(opt.URL, opt.Title)

	slugs := newDedupSet()
	for _, entry := range b.extractor.ContentEntries(page.Doc) {
		if ctx.Err() != nil {
			break
		}
		if !slugs.MarkIfNew(entry.Slug) {
			b.logger.Debug("skipping duplicate entry", zap.String("url", opt.URL), zap.String("slug", entry.Slug))
			metrics.ObserveNode(levelContent, "duplicate")
			continue
		}
		target := b.extractor.ContentURL(page.Doc, entry, b.info.Language)
		content := b.fetch(ctx, target, fetchcache.PolicyForever)
		item, ok := b.classifier.Classify(ctx, content, entry.Title)
		if !ok {
			metrics.ObserveNode(levelContent, "skipped")
			continue
		}
		b.attach(topic, item, levelContent)
	}
	return topic, true
}

// fetch applies robots and politeness around the fetch cache. Disallowed
// pages come back as not found.
func (b *Builder) fetch(ctx context.Context, rawURL string, policy fetchcache.Policy) fetchcache.Result {
	if !b.robots.Allowed(ctx, rawURL) {
		b.logger.Info("disallowed by robots.txt", zap.String("url", rawURL))
		return fetchcache.Result{URL: rawURL, FinalURL: rawURL, Status: fetchcache.StatusNotFound}
	}
	started := b.pacer.now()
	res := b.fetcher.Fetch(ctx, rawURL, policy)
	if !res.FromCache {
		b.pacer.settle(ctx, started)
	}
	return res
}

func (b *Builder) attach(parent *catalog.Topic, child catalog.Node, level string) {
	if topic, ok := child.(*catalog.Topic); ok && topic.Len() == 0 && !b.cfg.KeepEmptyTopics {
		b.skip(level, topic.SourceID, "empty")
		return
	}
	if err := parent.AddChild(child); err != nil {
		b.skip(level, child.NodeID(), "duplicate source id")
		return
	}
	metrics.ObserveNode(level, "added")
}

func (b *Builder) skip(level, id, reason string) {
	b.logger.Warn("skipping node", zap.String("level", level), zap.String("source_id", id), zap.String("reason", reason))
	metrics.ObserveNode(level, "skipped")
}
