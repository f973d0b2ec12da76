// Package materialize downloads the videos of a built channel and runs
// their post-process step, recording the processed file on each asset.
package materialize

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/video"
)

const defaultWorkers = 2

// Config controls where raw downloads live and how many run at once.
type Config struct {
	MediaDir string `mapstructure:"media_dir"`
	Workers  int    `mapstructure:"workers"`
}

// Stats counts what one pass did.
type Stats struct {
	Downloaded int
	Reused     int
	Processed  int
	Failed     int
}

// Stage materializes post-processed videos.
type Stage struct {
	cfg    Config
	videos video.Downloader
	logger *zap.Logger
}

// New builds a Stage.
func New(cfg Config, videos video.Downloader, logger *zap.Logger) (*Stage, error) {
	if cfg.MediaDir == "" {
		return nil, fmt.Errorf("materialize media dir is required")
	}
	if videos == nil {
		return nil, fmt.Errorf("materialize requires a downloader")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{cfg: cfg, videos: videos, logger: logger}, nil
}

// Run processes every video asset that carries a post-processor. A video
// that cannot be downloaded or processed keeps its remote reference and is
// counted as failed; only a cancelled context aborts the pass.
func (s *Stage) Run(ctx context.Context, ch *catalog.Channel) (Stats, error) {
	byVideo, order := collect(ch)
	var downloaded, reused, processed, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, id := range order {
		assets := byVideo[id]
		g.Go(func() error {
			raw, fresh, err := s.fetch(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("Video download failed; keeping remote reference", zap.String("video_id", id), zap.Error(err))
				metrics.ObserveMaterialize("download_error")
				failed.Add(int64(len(assets)))
				return nil
			}
			if fresh {
				downloaded.Add(1)
				metrics.ObserveMaterialize("downloaded")
			} else {
				reused.Add(1)
				metrics.ObserveMaterialize("reused")
			}
			for _, a := range assets {
				out, err := a.Materialize(gctx, raw)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					s.logger.Warn("Post-process failed; keeping remote reference", zap.String("video_id", id), zap.Error(err))
					metrics.ObserveMaterialize("process_error")
					failed.Add(1)
					continue
				}
				a.Path = out
				processed.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	stats := Stats{
		Downloaded: int(downloaded.Load()),
		Reused:     int(reused.Load()),
		Processed:  int(processed.Load()),
		Failed:     int(failed.Load()),
	}
	if err != nil {
		return stats, fmt.Errorf("materialize: %w", err)
	}
	s.logger.Info("Materialized videos",
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("reused", stats.Reused),
		zap.Int("processed", stats.Processed),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// fetch returns a raw file for id, reusing an earlier download when one is
// on disk.
func (s *Stage) fetch(ctx context.Context, id string) (string, bool, error) {
	if path := video.ExistingDownload(s.cfg.MediaDir, id); path != "" {
		return path, false, nil
	}
	path, err := s.videos.Download(ctx, id, s.cfg.MediaDir)
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// collect groups post-processed video assets by id, in tree order, so a
// video linked from several items is downloaded once.
func collect(ch *catalog.Channel) (map[string][]*catalog.MediaAsset, []string) {
	byVideo := make(map[string][]*catalog.MediaAsset)
	var order []string
	if ch == nil || ch.Root == nil {
		return byVideo, order
	}
	catalog.Walk(ch.Root, func(n catalog.Node, _ int) bool {
		item, ok := n.(*catalog.ContentItem)
		if !ok {
			return true
		}
		for _, m := range item.Media() {
			if m.Kind != catalog.MediaYouTube || m.PostProcess == nil || m.VideoID == "" {
				continue
			}
			if _, seen := byVideo[m.VideoID]; !seen {
				order = append(order, m.VideoID)
			}
			byVideo[m.VideoID] = append(byVideo[m.VideoID], m)
		}
		return true
	})
	return byVideo, order
}
