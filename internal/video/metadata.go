package video

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

// ErrUnavailable means the platform could not describe the video, usually
// because it was removed or made private.
var ErrUnavailable = errors.New("video unavailable")

// Metadata is the subset of platform metadata the crawler needs.
type Metadata struct {
	ID string
	// SubtitleLanguages holds the platform's tags for uploaded (not
	// auto-generated) subtitles, sorted.
	SubtitleLanguages []string
}

// MetadataClient looks up a video by id.
type MetadataClient interface {
	Lookup(ctx context.Context, videoID string) (Metadata, error)
}

// Config configures the yt-dlp backed client.
type Config struct {
	// Executable overrides the yt-dlp binary path; empty uses $PATH.
	Executable      string        `mapstructure:"ytdlp_path"`
	Timeout         time.Duration `mapstructure:"lookup_timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// YTDLPClient implements MetadataClient and Downloader on top of yt-dlp.
type YTDLPClient struct {
	cfg     Config
	logger  *zap.Logger
	extract func(ctx context.Context, url string) ([]*ytdlp.ExtractedInfo, error)
	fetch   func(ctx context.Context, url, dir string) (string, error)
}

// NewYTDLPClient builds the production metadata client.
func NewYTDLPClient(cfg Config, logger *zap.Logger) *YTDLPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &YTDLPClient{cfg: cfg, logger: logger}
	c.extract = c.runYTDLP
	c.fetch = c.runDownload
	return c
}

// Lookup returns the video's subtitle languages. Any extraction failure is
// reported as ErrUnavailable.
func (c *YTDLPClient) Lookup(ctx context.Context, videoID string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	infos, err := c.extract(ctx, WatchURL(videoID))
	if err != nil {
		c.logger.Debug("yt-dlp lookup failed", zap.String("video_id", videoID), zap.Error(err))
		return Metadata{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, videoID, err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return Metadata{}, fmt.Errorf("%w: %s: no metadata returned", ErrUnavailable, videoID)
	}
	info := infos[0]

	langs := make([]string, 0, len(info.Subtitles))
	for lang := range info.Subtitles {
		if strings.TrimSpace(lang) == "" || lang == "live_chat" {
			continue
		}
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return Metadata{ID: videoID, SubtitleLanguages: langs}, nil
}

func (c *YTDLPClient) runYTDLP(ctx context.Context, url string) ([]*ytdlp.ExtractedInfo, error) {
	cmd := ytdlp.New().
		SkipDownload().
		NoPlaylist().
		PrintJSON()
	if c.cfg.Executable != "" {
		cmd = cmd.SetExecutable(c.cfg.Executable)
	}
	result, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("run yt-dlp: %w", err)
	}
	infos, err := result.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}
	return infos, nil
}
