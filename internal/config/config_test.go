package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/site"
	"github.com/JakeFAU/catalog-crawler/internal/storage"
)

func TestLoadDefaultsWithLanguage(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", map[string]any{"channel.language": "fr"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	info, err := cfg.ChannelInfo()
	if err != nil {
		t.Fatalf("ChannelInfo() error = %v", err)
	}
	if info.SourceID != "touchable-earth-french" || info.Title != "Touchable Earth (fr)" || info.Language != "fr" {
		t.Fatalf("unexpected french channel: %+v", info)
	}
	if cfg.Fetch.Timeout != 30*time.Second || cfg.Fetch.BackoffUnit != time.Second || cfg.Fetch.MaxAttempts != 5 {
		t.Fatalf("unexpected fetch defaults: %+v", cfg.Fetch)
	}
	lic, err := cfg.CatalogLicense()
	if err != nil || lic.ID != catalog.LicenseSpecialPermissions || lic.Description == "" {
		t.Fatalf("unexpected license %+v (err %v)", lic, err)
	}
	if cfg.Site != site.Default() {
		t.Fatalf("expected default selectors, got %+v", cfg.Site)
	}
	if cfg.PostProcess.Watermark.Height != 68 {
		t.Fatalf("expected watermark defaults, got %+v", cfg.PostProcess.Watermark)
	}
	if got := cfg.FetchCacheConfig(); got.MaxAttempts != 5 {
		t.Fatalf("unexpected fetch cache config %+v", got)
	}
	if !cfg.Crawler.KeepEmptyTopics {
		t.Fatal("expected empty topics to be kept by default")
	}
	if cfg.PostProcess.Materialize || cfg.PostProcess.Media.MediaDir != ".cache/media" || cfg.PostProcess.Media.Workers != 2 {
		t.Fatalf("unexpected materialize defaults: %+v", cfg.PostProcess)
	}
	if cfg.Video.DownloadTimeout != 30*time.Minute {
		t.Fatalf("unexpected video download timeout %v", cfg.Video.DownloadTimeout)
	}
}

func TestLoadRequiresLanguageWhenSeveralSupported(t *testing.T) {
	t.Parallel()

	_, err := Load("", nil)
	if err == nil || !strings.Contains(err.Error(), "channel.language") {
		t.Fatalf("expected channel.language error, got %v", err)
	}

	_, err = Load("", map[string]any{"channel.language": "de"})
	if err == nil {
		t.Fatal("expected unsupported language to fail")
	}
}

func TestLoadSingleLanguageIsImplicit(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", map[string]any{"crawler.languages": []string{"en"}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Channel.Language != "en" {
		t.Fatalf("expected implicit en, got %q", cfg.Channel.Language)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
  level: warn
source: manifest
manifest:
  path: demo.yaml
  probe_availability: true
fetch:
  max_attempts: 3
  backoff_unit: 250ms
cache:
  backend: redis
  redis:
    addr: localhost:6379
    ttl: 24h
output:
  backend: gcs
  gcs:
    bucket: catalogs
site:
  image: img.hero
channel:
  profiles:
    en:
      title: Renamed
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != SourceManifest || cfg.Manifest.Path != "demo.yaml" || !cfg.Manifest.ProbeAvailability {
		t.Fatalf("expected manifest source, got %+v", cfg.Manifest)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides, got %+v", cfg.Logging)
	}
	if cfg.Fetch.MaxAttempts != 3 || cfg.Fetch.BackoffUnit != 250*time.Millisecond {
		t.Fatalf("expected fetch overrides, got %+v", cfg.Fetch)
	}
	if cfg.Cache.Backend != storage.BackendRedis || cfg.Cache.Redis.TTL != 24*time.Hour {
		t.Fatalf("expected redis cache, got %+v", cfg.Cache)
	}
	if cfg.Site.Image != "img.hero" || cfg.Site.Breadcrumb != site.Default().Breadcrumb {
		t.Fatalf("expected merged selectors, got %+v", cfg.Site)
	}
	en := cfg.Channel.Profiles["en"]
	if en.Title != "Renamed" || en.SourceID != "touchable-earth" {
		t.Fatalf("expected profile merge, got %+v", en)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CATALOG_FETCH_MAX_ATTEMPTS", "7")
	t.Setenv("CATALOG_CHANNEL_LANGUAGE", "en")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Fetch.MaxAttempts != 7 {
		t.Fatalf("expected env override, got %d", cfg.Fetch.MaxAttempts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	base, err := Load("", map[string]any{"channel.language": "en"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown source", func(c *Config) { c.Source = "ftp" }, "source"},
		{"missing root", func(c *Config) { c.Crawler.RootURL = "" }, "crawler.root_url"},
		{"manifest path", func(c *Config) { c.Source = SourceManifest }, "manifest.path"},
		{"attempts", func(c *Config) { c.Fetch.MaxAttempts = 0 }, "fetch.max_attempts"},
		{"cache backend", func(c *Config) { c.Cache.Backend = "s3" }, "cache.backend"},
		{"redis addr", func(c *Config) { c.Cache.Backend = storage.BackendRedis }, "cache.redis.addr"},
		{"output backend", func(c *Config) { c.Output.Backend = "ftp" }, "output.backend"},
		{"gcs bucket", func(c *Config) { c.Output.Backend = storage.BackendGCS }, "output.gcs.bucket"},
		{"license id", func(c *Config) { c.License.ID = "WTFPL" }, "license"},
		{"special permissions", func(c *Config) { c.License.Description = "" }, "description"},
		{"empty selector", func(c *Config) { c.Site.VideoFrame = "" }, "video_frame"},
		{"pubsub pair", func(c *Config) { c.PubSub.TopicID = "t" }, "pubsub"},
		{"missing profile", func(c *Config) { c.Channel.Profiles = nil }, "profile"},
		{"materialize without postprocess", func(c *Config) { c.PostProcess.Materialize = true }, "postprocess.enabled"},
		{"media dir", func(c *Config) {
			c.PostProcess.Enabled = true
			c.PostProcess.Materialize = true
			c.PostProcess.Media.MediaDir = ""
		}, "postprocess.media_dir"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Channel.Profiles = map[string]catalog.ChannelInfo{}
			for k, v := range base.Channel.Profiles {
				cfg.Channel.Profiles[k] = v
			}
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}
