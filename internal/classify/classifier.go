// Package classify turns a fetched content page into a catalog leaf: a
// video item, an image packaged as an HTML5 app, or nothing.
package classify

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/description"
	"github.com/JakeFAU/catalog-crawler/internal/fetchcache"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/packager"
	"github.com/JakeFAU/catalog-crawler/internal/site"
	"github.com/JakeFAU/catalog-crawler/internal/video"
)

// Downloader saves a remote file to disk.
type Downloader interface {
	Download(ctx context.Context, rawURL, dest string) error
}

// Packager archives a directory holding an index.html.
type Packager interface {
	Package(dir string) (string, error)
}

// LanguageResolver maps a platform subtitle tag to a canonical code.
type LanguageResolver interface {
	Resolve(tag string) (string, bool)
}

// Deps are the collaborators of a Classifier. PostProcess and ScratchDir
// are optional.
type Deps struct {
	Extractor   *site.Extractor
	Videos      video.MetadataClient
	Languages   LanguageResolver
	Downloader  Downloader
	Packager    Packager
	PostProcess catalog.PostProcessor
	License     catalog.License
	ScratchDir  string
	Logger      *zap.Logger
}

// Classifier decides what, if anything, a content page becomes.
type Classifier struct {
	deps   Deps
	logger *zap.Logger
}

// New validates deps.
func New(deps Deps) (*Classifier, error) {
	switch {
	case deps.Extractor == nil:
		return nil, fmt.Errorf("classifier requires a site extractor")
	case deps.Videos == nil:
		return nil, fmt.Errorf("classifier requires a video metadata client")
	case deps.Languages == nil:
		return nil, fmt.Errorf("classifier requires a language resolver")
	case deps.Downloader == nil || deps.Packager == nil:
		return nil, fmt.Errorf("classifier requires a downloader and a packager")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{deps: deps, logger: logger}, nil
}

// Classify returns the leaf for page, or false when the page is not
// publishable. It never returns an error: every failure is logged and
// reported as absent.
func (c *Classifier) Classify(ctx context.Context, page fetchcache.Result, title string) (*catalog.ContentItem, bool) {
	log := c.logger.With(zap.String("url", page.URL), zap.String("title", title))
	if !page.OK() || page.Doc == nil {
		log.Info("skipping content page", zap.String("reason", "fetch "+page.Status.String()))
		return nil, false
	}
	doc := page.Doc
	ex := c.deps.Extractor

	sourceID, ok := ex.SourceID(doc)
	if !ok {
		log.Warn("skipping content page", zap.String("reason", "no source id"))
		return nil, false
	}
	log = log.With(zap.String("source_id", sourceID))
	desc := description.Compose(ex.DescriptionSections(doc))

	if src, ok := ex.VideoSource(doc); ok {
		return c.videoItem(ctx, log, sourceID, title, desc, src)
	}
	if img, ok := ex.ImageSource(doc); ok {
		return c.imageItem(ctx, log, sourceID, title, desc, img)
	}
	log.Info("skipping content page", zap.String("reason", "no video or image"))
	return nil, false
}

func (c *Classifier) videoItem(ctx context.Context, log *zap.Logger, sourceID, title, desc, src string) (*catalog.ContentItem, bool) {
	id, ok := video.ExtractYouTubeID(src)
	if !ok {
		log.Warn("skipping content page", zap.String("reason", "unrecognized video url"), zap.String("src", src))
		return nil, false
	}
	meta, err := c.deps.Videos.Lookup(ctx, id)
	if err != nil {
		log.Warn("skipping content page", zap.String("reason", "video unavailable"), zap.String("video_id", id), zap.Error(err))
		return nil, false
	}

	item := catalog.NewContentItem(catalog.KindVideo, sourceID, title, c.deps.License, desc)
	item.AddFile(catalog.NewYouTubeVideo(id, c.deps.PostProcess))
	for _, track := range Subtitles(id, meta.SubtitleLanguages, c.deps.Languages, log) {
		item.AddFile(track)
	}
	return item, true
}

func (c *Classifier) imageItem(ctx context.Context, log *zap.Logger, sourceID, title, desc, src string) (*catalog.ContentItem, bool) {
	dir, err := os.MkdirTemp(c.deps.ScratchDir, "html5-")
	if err != nil {
		log.Error("skipping content page", zap.String("reason", "scratch dir"), zap.Error(err))
		return nil, false
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove scratch dir", zap.String("dir", dir), zap.Error(err))
		}
	}()

	name := imageFileName(src)
	if err := c.deps.Downloader.Download(ctx, src, filepath.Join(dir, name)); err != nil {
		log.Warn("skipping content page", zap.String("reason", "image download"), zap.String("src", src), zap.Error(err))
		return nil, false
	}
	if err := packager.WriteImageIndex(dir, name, title); err != nil {
		log.Error("skipping content page", zap.String("reason", "index.html"), zap.Error(err))
		return nil, false
	}
	archive, err := c.deps.Packager.Package(dir)
	if err != nil {
		log.Error("skipping content page", zap.String("reason", "package"), zap.Error(err))
		return nil, false
	}

	item := catalog.NewContentItem(catalog.KindHTML5, sourceID, title, c.deps.License, desc)
	item.AddFile(catalog.NewHTML5Zip(archive))
	return item, true
}

// Subtitles resolves platform tags into tracks, dropping (and logging)
// tags with no canonical language. Input order is kept.
func Subtitles(videoID string, tags []string, resolver LanguageResolver, log *zap.Logger) []*catalog.SubtitleTrack {
	var out []*catalog.SubtitleTrack
	for _, tag := range tags {
		code, ok := resolver.Resolve(tag)
		metrics.ObserveSubtitle(ok)
		if !ok {
			log.Warn("dropping subtitle track", zap.String("video_id", videoID), zap.String("tag", tag), zap.String("reason", "unknown language"))
			continue
		}
		out = append(out, catalog.NewSubtitleTrack(videoID, tag, code))
	}
	return out
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

func imageFileName(src string) string {
	ext := ".jpg"
	if u, err := url.Parse(src); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); imageExts[e] {
			ext = e
		}
	}
	return "image" + ext
}
