// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/fetchcache"
	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/materialize"
	"github.com/JakeFAU/catalog-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/catalog-crawler/internal/postprocess"
	"github.com/JakeFAU/catalog-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-crawler/internal/site"
	"github.com/JakeFAU/catalog-crawler/internal/storage"
	"github.com/JakeFAU/catalog-crawler/internal/storage/gcs"
	"github.com/JakeFAU/catalog-crawler/internal/storage/redis"
	"github.com/JakeFAU/catalog-crawler/internal/video"
)

// Sources a channel can be built from.
const (
	SourceSite     = "site"
	SourceManifest = "manifest"
)

// Config captures every knob of a crawl run.
type Config struct {
	Logging     logging.Options   `mapstructure:"logging"`
	Source      string            `mapstructure:"source"`
	Channel     ChannelConfig     `mapstructure:"channel"`
	Crawler     CrawlerConfig     `mapstructure:"crawler"`
	Manifest    ManifestConfig    `mapstructure:"manifest"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Languages   LanguagesConfig   `mapstructure:"languages"`
	License     LicenseConfig     `mapstructure:"license"`
	Video       video.Config      `mapstructure:"video"`
	PostProcess PostProcessConfig `mapstructure:"postprocess"`
	Packager    PackagerConfig    `mapstructure:"packager"`
	Output      OutputConfig      `mapstructure:"output"`
	PubSub      pubsub.Config     `mapstructure:"pubsub"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Site        site.Selectors    `mapstructure:"site"`
}

// ChannelConfig selects one of the per-language channel profiles.
type ChannelConfig struct {
	Language string                         `mapstructure:"language"`
	Profiles map[string]catalog.ChannelInfo `mapstructure:"profiles"`
}

// CrawlerConfig extends the crawler settings with the supported languages.
type CrawlerConfig struct {
	crawler.Config `mapstructure:",squash"`
	Languages      []string `mapstructure:"languages"`
}

// ManifestConfig locates a static manifest.
type ManifestConfig struct {
	Path              string `mapstructure:"path"`
	ProbeAvailability bool   `mapstructure:"probe_availability"`
}

// FetchConfig configures the colly transport and the retry policy.
type FetchConfig struct {
	UserAgent    string           `mapstructure:"user_agent"`
	Timeout      time.Duration    `mapstructure:"timeout"`
	MaxBodySize  int              `mapstructure:"max_body_size"`
	MaxAttempts  int              `mapstructure:"max_attempts"`
	BackoffUnit  time.Duration    `mapstructure:"backoff_unit"`
	ForceRefresh bool             `mapstructure:"force_refresh"`
	RateLimit    ratelimit.Config `mapstructure:"rate_limit"`
}

// CacheConfig selects the persistent store shared by the fetch cache and
// the post-process cache.
type CacheConfig struct {
	Backend string       `mapstructure:"backend"`
	Dir     string       `mapstructure:"dir"`
	Redis   redis.Config `mapstructure:"redis"`
}

// LanguagesConfig overrides the embedded language registry.
type LanguagesConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

// LicenseConfig is applied to every crawled item.
type LicenseConfig struct {
	ID              string `mapstructure:"id"`
	Description     string `mapstructure:"description"`
	CopyrightHolder string `mapstructure:"copyright_holder"`
}

// PostProcessConfig enables the ffmpeg watermark step. With Materialize
// set the crawl also downloads each video and watermarks it before the
// catalog is published.
type PostProcessConfig struct {
	Enabled     bool                          `mapstructure:"enabled"`
	FFmpegPath  string                        `mapstructure:"ffmpeg_path"`
	OutDir      string                        `mapstructure:"out_dir"`
	Force       bool                          `mapstructure:"force"`
	Watermark   postprocess.WatermarkSettings `mapstructure:"watermark"`
	Materialize bool                          `mapstructure:"materialize"`
	Media       materialize.Config            `mapstructure:",squash"`
}

// PackagerConfig sets where HTML5 archives are written.
type PackagerConfig struct {
	OutDir string `mapstructure:"out_dir"`
}

// OutputConfig selects where published catalogs go.
type OutputConfig struct {
	Backend string     `mapstructure:"backend"`
	Dir     string     `mapstructure:"dir"`
	Prefix  string     `mapstructure:"prefix"`
	GCS     gcs.Config `mapstructure:"gcs"`
}

// MetricsConfig points at an optional node-exporter textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Load builds a Config from defaults, an optional file and CATALOG_*
// environment variables. Overrides (typically CLI flags) are applied last.
func Load(path string, overrides map[string]any) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Site = cfg.Site.WithDefaults()
	if cfg.Channel.Language == "" && len(cfg.Crawler.Languages) == 1 {
		cfg.Channel.Language = cfg.Crawler.Languages[0]
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("source", SourceSite)

	v.SetDefault("channel.language", "")
	v.SetDefault("channel.profiles", defaultProfiles())

	v.SetDefault("crawler.root_url", "http://www.touchableearth.org/places/")
	v.SetDefault("crawler.languages", []string{"en", "fr"})
	v.SetDefault("crawler.user_agent", defaultUserAgent)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.delay", "0s")
	v.SetDefault("crawler.keep_empty_topics", true)

	v.SetDefault("manifest.path", "")
	v.SetDefault("manifest.probe_availability", false)

	v.SetDefault("fetch.user_agent", defaultUserAgent)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_body_size", 0)
	v.SetDefault("fetch.max_attempts", 5)
	v.SetDefault("fetch.backoff_unit", "1s")
	v.SetDefault("fetch.force_refresh", false)
	v.SetDefault("fetch.rate_limit.rps", 0)
	v.SetDefault("fetch.rate_limit.burst", 1)

	v.SetDefault("cache.backend", storage.BackendLocal)
	v.SetDefault("cache.dir", ".cache/catalog")
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.key_prefix", "catalog:")
	v.SetDefault("cache.redis.ttl", "0s")

	v.SetDefault("languages.registry_path", "")

	v.SetDefault("license.id", catalog.LicenseSpecialPermissions)
	v.SetDefault("license.description", "Permission has been granted by Touchable Earth to distribute this content through Kolibri.")
	v.SetDefault("license.copyright_holder", "Touchable Earth Foundation (New Zealand)")

	v.SetDefault("video.ytdlp_path", "")
	v.SetDefault("video.lookup_timeout", "2m")
	v.SetDefault("video.download_timeout", "30m")

	wm := postprocess.DefaultWatermarkSettings()
	v.SetDefault("postprocess.enabled", false)
	v.SetDefault("postprocess.ffmpeg_path", "ffmpeg")
	v.SetDefault("postprocess.out_dir", ".cache/postprocess")
	v.SetDefault("postprocess.force", false)
	v.SetDefault("postprocess.materialize", false)
	v.SetDefault("postprocess.media_dir", ".cache/media")
	v.SetDefault("postprocess.workers", 2)
	v.SetDefault("postprocess.watermark.image", wm.Image)
	v.SetDefault("postprocess.watermark.height", wm.Height)
	v.SetDefault("postprocess.watermark.right", wm.Right)
	v.SetDefault("postprocess.watermark.bottom", wm.Bottom)

	v.SetDefault("packager.out_dir", ".cache/html5")

	v.SetDefault("output.backend", storage.BackendLocal)
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.prefix", "catalogs")
	v.SetDefault("output.gcs.bucket", "")
	v.SetDefault("output.gcs.prefix", "")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_id", "")
	v.SetDefault("pubsub.endpoint", "")

	v.SetDefault("metrics.textfile", "")

	setSelectorDefaults(v, "site", site.Default())
}

// setSelectorDefaults registers every selector key so CATALOG_SITE_* env
// variables are picked up by Unmarshal.
func setSelectorDefaults(v *viper.Viper, prefix string, sel site.Selectors) {
	rv := reflect.ValueOf(sel)
	rt := rv.Type()
	for i := range rt.NumField() {
		if tag := rt.Field(i).Tag.Get("mapstructure"); tag != "" {
			v.SetDefault(prefix+"."+tag, rv.Field(i).Interface())
		}
	}
}

const defaultUserAgent = "catalog-crawler/1.0 (+https://github.com/JakeFAU/catalog-crawler)"

const channelThumbnail = "https://d1iiooxwdowqwr.cloudfront.net/pub/appsubmissions/20140218003206_PROFILEPHOTO.jpg"

const channelDescription = "Where kids teach kids about the world. Taught entirely by school age children in short videos, Touchable Earth promotes tolerance for gender, culture, and identity."

func defaultProfiles() map[string]any {
	profile := func(id, title, lang string) map[string]any {
		return map[string]any{
			"source_domain": "www.touchableearth.org",
			"source_id":     id,
			"title":         title,
			"thumbnail":     channelThumbnail,
			"language":      lang,
			"description":   channelDescription,
		}
	}
	return map[string]any{
		"en": profile("touchable-earth", "Touchable Earth", "en"),
		"fr": profile("touchable-earth-french", "Touchable Earth (fr)", "fr"),
	}
}

// ChannelInfo returns the profile selected by channel.language.
func (c Config) ChannelInfo() (catalog.ChannelInfo, error) {
	info, ok := c.Channel.Profiles[c.Channel.Language]
	if !ok {
		return catalog.ChannelInfo{}, fmt.Errorf("no channel profile for language %q", c.Channel.Language)
	}
	if info.Language == "" {
		info.Language = c.Channel.Language
	}
	return info, nil
}

// Validate reports the first configuration problem.
func (c Config) Validate() error {
	switch c.Source {
	case SourceSite:
		if strings.TrimSpace(c.Crawler.RootURL) == "" {
			return fmt.Errorf("crawler.root_url is required for source %q", SourceSite)
		}
		if len(c.Crawler.Languages) > 1 && c.Channel.Language == "" {
			return fmt.Errorf("channel.language is required; choose one of %v", c.Crawler.Languages)
		}
		if !slices.Contains(c.Crawler.Languages, c.Channel.Language) {
			return fmt.Errorf("channel.language %q is not one of crawler.languages %v", c.Channel.Language, c.Crawler.Languages)
		}
		if _, err := c.ChannelInfo(); err != nil {
			return err
		}
		if err := c.Site.Validate(); err != nil {
			return err
		}
	case SourceManifest:
		if strings.TrimSpace(c.Manifest.Path) == "" {
			return fmt.Errorf("manifest.path is required for source %q", SourceManifest)
		}
	default:
		return fmt.Errorf("source must be %q or %q, got %q", SourceSite, SourceManifest, c.Source)
	}

	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.RateLimit.RPS < 0 {
		return fmt.Errorf("fetch.rate_limit.rps must be >= 0")
	}

	switch c.Cache.Backend {
	case storage.BackendLocal:
		if strings.TrimSpace(c.Cache.Dir) == "" {
			return fmt.Errorf("cache.dir is required for the local cache backend")
		}
	case storage.BackendMemory:
	case storage.BackendRedis:
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}

	switch c.Output.Backend {
	case storage.BackendLocal:
		if strings.TrimSpace(c.Output.Dir) == "" {
			return fmt.Errorf("output.dir is required for the local output backend")
		}
	case storage.BackendMemory:
	case storage.BackendGCS:
		if strings.TrimSpace(c.Output.GCS.Bucket) == "" {
			return fmt.Errorf("output.gcs.bucket is required for the gcs output backend")
		}
	default:
		return fmt.Errorf("unknown output.backend %q", c.Output.Backend)
	}

	if _, err := c.CatalogLicense(); err != nil {
		return fmt.Errorf("license: %w", err)
	}
	if c.PostProcess.Enabled && strings.TrimSpace(c.PostProcess.OutDir) == "" {
		return fmt.Errorf("postprocess.out_dir is required when post-processing is enabled")
	}
	if c.PostProcess.Materialize {
		if !c.PostProcess.Enabled {
			return fmt.Errorf("postprocess.materialize requires postprocess.enabled")
		}
		if strings.TrimSpace(c.PostProcess.Media.MediaDir) == "" {
			return fmt.Errorf("postprocess.media_dir is required when materializing")
		}
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set together")
	}
	return nil
}

// CatalogLicense builds the license applied to crawled items.
func (c Config) CatalogLicense() (catalog.License, error) {
	return catalog.NewLicense(c.License.ID, c.License.Description, c.License.CopyrightHolder)
}

// FetchCacheConfig returns the retry settings for the fetch cache.
func (c Config) FetchCacheConfig() fetchcache.Config {
	return fetchcache.Config{MaxAttempts: c.Fetch.MaxAttempts, BackoffUnit: c.Fetch.BackoffUnit, Refresh: c.Fetch.ForceRefresh}
}

// CollyConfig returns the transport settings.
func (c Config) CollyConfig() fetchcache.CollyConfig {
	return fetchcache.CollyConfig{UserAgent: c.Fetch.UserAgent, Timeout: c.Fetch.Timeout, MaxBodySize: c.Fetch.MaxBodySize}
}
