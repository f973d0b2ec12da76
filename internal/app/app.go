// Package app wires the services of one crawl run from a validated config.
// Nothing here is global; components receive what they use.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/classify"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/fetchcache"
	"github.com/JakeFAU/catalog-crawler/internal/language"
	"github.com/JakeFAU/catalog-crawler/internal/manifest"
	"github.com/JakeFAU/catalog-crawler/internal/materialize"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/packager"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-crawler/internal/postprocess"
	"github.com/JakeFAU/catalog-crawler/internal/publish"
	"github.com/JakeFAU/catalog-crawler/internal/publisher"
	"github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-crawler/internal/runid"
	"github.com/JakeFAU/catalog-crawler/internal/site"
	"github.com/JakeFAU/catalog-crawler/internal/storage"
	"github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/catalog-crawler/internal/storage/memory"
	"github.com/JakeFAU/catalog-crawler/internal/storage/redis"
	"github.com/JakeFAU/catalog-crawler/internal/telemetry"
	"github.com/JakeFAU/catalog-crawler/internal/video"
)

// CrawlContext holds every service shared by one run.
type CrawlContext struct {
	Config      config.Config
	Logger      *zap.Logger
	Store       storage.KV
	Cache       *fetchcache.Cache
	Registry    *language.Registry
	Resolver    *language.Resolver
	License     catalog.License
	Videos      video.MetadataClient
	PostProcess catalog.PostProcessor
	Materialize *materialize.Stage
	Packager    *packager.Zip
	Extractor   *site.Extractor
	Sink        *publish.Sink
	Runs        *runid.Source

	closers []func() error
}

// Overrides replaces production collaborators, mostly in tests. Nil
// fields keep the configured implementation.
type Overrides struct {
	Transport fetchcache.Transport
	Videos    video.MetadataClient
	Downloads video.Downloader
	Blobs     storage.BlobStore
	Events    publisher.Publisher
}

// New builds a CrawlContext and fails fast on the first service that
// cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, ov Overrides) (*CrawlContext, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cc := &CrawlContext{Config: cfg, Logger: logger}
	if err := cc.init(ctx, ov); err != nil {
		cc.Close()
		return nil, err
	}
	return cc, nil
}

func (cc *CrawlContext) init(ctx context.Context, ov Overrides) error {
	cfg := cc.Config
	var err error

	if cc.Store, err = cc.openCacheStore(ctx); err != nil {
		return err
	}

	transport := ov.Transport
	if transport == nil {
		transport = fetchcache.NewCollyTransport(cfg.CollyConfig())
	}
	if cfg.Fetch.RateLimit.Enabled() {
		transport = ratelimit.Wrap(transport, ratelimit.New(cfg.Fetch.RateLimit))
	}
	cc.Cache = fetchcache.New(transport, cc.Store, cc.Logger.Named("fetch"), cfg.FetchCacheConfig())

	if cfg.Languages.RegistryPath != "" {
		cc.Registry, err = language.LoadRegistry(cfg.Languages.RegistryPath)
	} else {
		cc.Registry, err = language.DefaultRegistry()
	}
	if err != nil {
		return fmt.Errorf("load language registry: %w", err)
	}
	cc.Resolver = language.NewResolver(cc.Registry)

	if cc.License, err = cfg.CatalogLicense(); err != nil {
		return fmt.Errorf("license: %w", err)
	}

	cc.Videos = ov.Videos
	if cc.Videos == nil {
		cc.Videos = video.NewYTDLPClient(cfg.Video, cc.Logger.Named("video"))
	}

	if cfg.PostProcess.Enabled {
		wm, err := postprocess.NewWatermark(cfg.PostProcess.Watermark, cfg.PostProcess.FFmpegPath, cfg.PostProcess.OutDir)
		if err != nil {
			return fmt.Errorf("watermark: %w", err)
		}
		force := cfg.PostProcess.Force || cfg.Fetch.ForceRefresh
		cc.PostProcess = postprocess.NewCached(wm, cc.Store, cc.Logger.Named("postprocess"), force)
	}
	if cfg.PostProcess.Enabled && cfg.PostProcess.Materialize {
		if cc.Materialize, err = materialize.New(cfg.PostProcess.Media, cc.downloader(ov), cc.Logger.Named("materialize")); err != nil {
			return err
		}
	}

	if cc.Packager, err = packager.New(cfg.Packager.OutDir); err != nil {
		return err
	}
	cc.Extractor = site.NewExtractor(cfg.Site)

	blobs := ov.Blobs
	if blobs == nil {
		if blobs, err = cc.openOutput(ctx); err != nil {
			return err
		}
	}
	events := ov.Events
	if events == nil {
		if events, err = cc.openEvents(ctx); err != nil {
			return err
		}
	}
	cc.Runs = runid.New()
	cc.Sink, err = publish.NewSink(publish.Options{
		Blobs:  blobs,
		Events: events,
		Prefix: cfg.Output.Prefix,
		Logger: cc.Logger.Named("publish"),
	})
	return err
}

// downloader prefers an explicit override, then the metadata client when it
// can also download.
func (cc *CrawlContext) downloader(ov Overrides) video.Downloader {
	if ov.Downloads != nil {
		return ov.Downloads
	}
	if d, ok := cc.Videos.(video.Downloader); ok {
		return d
	}
	return video.NewYTDLPClient(cc.Config.Video, cc.Logger.Named("video"))
}

func (cc *CrawlContext) openCacheStore(ctx context.Context) (storage.KV, error) {
	cfg := cc.Config.Cache
	switch cfg.Backend {
	case storage.BackendLocal:
		cc.Logger.Info("Using local cache", zap.String("dir", cfg.Dir))
		store, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, fmt.Errorf("open local cache: %w", err)
		}
		return store, nil
	case storage.BackendMemory:
		cc.Logger.Info("Using in-memory cache; nothing persists across runs")
		return memory.NewBlobStore(), nil
	case storage.BackendRedis:
		cc.Logger.Info("Connecting to Redis cache", zap.String("addr", cfg.Redis.Addr))
		store, err := redis.Dial(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		cc.closers = append(cc.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

func (cc *CrawlContext) openOutput(ctx context.Context) (storage.BlobStore, error) {
	cfg := cc.Config.Output
	switch cfg.Backend {
	case storage.BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, fmt.Errorf("open local output: %w", err)
		}
		return store, nil
	case storage.BackendMemory:
		return memory.NewBlobStore(), nil
	case storage.BackendGCS:
		cc.Logger.Info("Using GCS output", zap.String("bucket", cfg.GCS.Bucket))
		store, err := gcs.Open(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("open gcs output: %w", err)
		}
		cc.closers = append(cc.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown output backend: %s", cfg.Backend)
	}
}

func (cc *CrawlContext) openEvents(ctx context.Context) (publisher.Publisher, error) {
	if cc.Config.PubSub.TopicID == "" {
		cc.Logger.Info("No Pub/Sub topic configured; catalogs will not be announced")
		return publisher.NoOp{}, nil
	}
	pub, err := pubsub.Dial(ctx, cc.Config.PubSub)
	if err != nil {
		return nil, fmt.Errorf("open pubsub: %w", err)
	}
	cc.closers = append(cc.closers, pub.Close)
	return pub, nil
}

// Build produces the channel from the configured source.
func (cc *CrawlContext) Build(ctx context.Context) (*catalog.Channel, error) {
	switch cc.Config.Source {
	case config.SourceManifest:
		return cc.buildManifest(ctx)
	default:
		return cc.buildSite(ctx)
	}
}

func (cc *CrawlContext) buildSite(ctx context.Context) (*catalog.Channel, error) {
	info, err := cc.Config.ChannelInfo()
	if err != nil {
		return nil, err
	}
	scratch, err := os.MkdirTemp("", "catalog-crawl-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	cls, err := classify.New(classify.Deps{
		Extractor:   cc.Extractor,
		Videos:      cc.Videos,
		Languages:   cc.Resolver,
		Downloader:  cc.Cache,
		Packager:    cc.Packager,
		PostProcess: cc.PostProcess,
		License:     cc.License,
		ScratchDir:  scratch,
		Logger:      cc.Logger.Named("classify"),
	})
	if err != nil {
		return nil, err
	}
	b, err := crawler.NewBuilder(cc.Config.Crawler.Config, info, cc.Cache, cls, cc.Extractor, cc.Logger.Named("crawler"))
	if err != nil {
		return nil, err
	}
	return b.Build(ctx)
}

func (cc *CrawlContext) buildManifest(ctx context.Context) (*catalog.Channel, error) {
	m, err := manifest.Load(cc.Config.Manifest.Path)
	if err != nil {
		return nil, err
	}
	opts := []manifest.Option{manifest.WithPostProcess(cc.PostProcess)}
	if cc.Config.Manifest.ProbeAvailability {
		opts = append(opts, manifest.WithAvailabilityProbe(cc.Videos))
	}
	start := time.Now()
	ch, err := manifest.NewBuilder(cc.Resolver, cc.License, cc.Logger.Named("manifest"), opts...).Build(ctx, m)
	if err != nil {
		return nil, err
	}
	metrics.ObserveCrawl(time.Since(start))
	return ch, nil
}

// Run builds the channel, materializes its videos when asked, publishes it
// and, when configured, writes the metrics textfile. The textfile is written even when the run fails.
func (cc *CrawlContext) Run(ctx context.Context) (publish.CatalogPublished, error) {
	event, err := cc.run(ctx)
	if path := cc.Config.Metrics.Textfile; path != "" {
		if merr := metrics.WriteTextfile(path); merr != nil {
			cc.Logger.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(merr))
		}
	}
	return event, err
}

func (cc *CrawlContext) run(ctx context.Context) (event publish.CatalogPublished, err error) {
	run, err := cc.Runs.Next()
	if err != nil {
		return publish.CatalogPublished{}, err
	}
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "catalog.run",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("source", cc.Config.Source),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	cc.Logger.Info("Crawl started", zap.String("run_id", run.ID), zap.String("source", cc.Config.Source))
	ch, err := cc.Build(ctx)
	if err != nil {
		return publish.CatalogPublished{}, err
	}
	span.SetAttributes(
		attribute.String("channel.id", ch.Info.SourceID),
		attribute.String("channel.language", ch.Info.Language),
	)
	if cc.Materialize != nil {
		stats, err := cc.Materialize.Run(ctx, ch)
		if err != nil {
			return publish.CatalogPublished{}, err
		}
		span.SetAttributes(
			attribute.Int("materialize.processed", stats.Processed),
			attribute.Int("materialize.failed", stats.Failed),
		)
	}
	return cc.Sink.Publish(ctx, run, ch)
}

// Close releases network clients in reverse order of creation.
func (cc *CrawlContext) Close() {
	var errs []error
	for i := len(cc.closers) - 1; i >= 0; i-- {
		if err := cc.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	cc.closers = nil
	if err := errors.Join(errs...); err != nil {
		cc.Logger.Warn("Error closing services", zap.Error(err))
	}
}
