package manifest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/classify"
	"github.com/JakeFAU/catalog-crawler/internal/description"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
	"github.com/JakeFAU/catalog-crawler/internal/video"
)

// Builder turns a Manifest into a channel.
type Builder struct {
	languages   classify.LanguageResolver
	license     catalog.License
	probe       video.MetadataClient
	postProcess catalog.PostProcessor
	logger      *zap.Logger
}

// Option customises a Builder.
type Option func(*Builder)

// WithAvailabilityProbe drops leaves whose video lookup fails.
func WithAvailabilityProbe(client video.MetadataClient) Option {
	return func(b *Builder) { b.probe = client }
}

// WithPostProcess attaches a post-processor to every video asset.
func WithPostProcess(p catalog.PostProcessor) Option {
	return func(b *Builder) { b.postProcess = p }
}

// NewBuilder uses license for leaves that do not name their own.
func NewBuilder(languages classify.LanguageResolver, license catalog.License, logger *zap.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Builder{languages: languages, license: license, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build keeps input order at every level. An error means the manifest is
// inconsistent; a missing video only drops its leaf.
func (b *Builder) Build(ctx context.Context, m *Manifest) (*catalog.Channel, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	channel := catalog.NewChannel(m.Channel)
	if err := b.addChildren(ctx, channel.Root, m.Nodes); err != nil {
		return nil, err
	}
	return channel, nil
}

func (b *Builder) addChildren(ctx context.Context, parent *catalog.Topic, nodes []Node) error {
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("manifest build cancelled: %w", err)
		}
		var child catalog.Node
		if n.IsLeaf() {
			item, ok, err := b.leaf(ctx, n)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			child = item
		} else {
			topic := catalog.NewTopic(n.ID, n.Title)
			if err := b.addChildren(ctx, topic, n.Children); err != nil {
				return err
			}
			child = topic
		}
		if err := parent.AddChild(child); err != nil {
			return fmt.Errorf("add %q to %q: %w", n.ID, parent.SourceID, err)
		}
	}
	return nil
}

func (b *Builder) leaf(ctx context.Context, n Node) (*catalog.ContentItem, bool, error) {
	log := b.logger.With(zap.String("source_id", n.ID), zap.String("video_id", n.YouTubeID))
	if b.probe != nil {
		if _, err := b.probe.Lookup(ctx, n.YouTubeID); err != nil {
			log.Warn("dropping manifest leaf", zap.String("reason", "video unavailable"), zap.Error(err))
			metrics.ObserveNode("content", "skipped")
			return nil, false, nil
		}
	}

	license := b.license
	if n.License != "" {
		var err error
		license, err = catalog.NewLicense(n.License, n.LicenseDescription, n.CopyrightHolder)
		if err != nil {
			return nil, false, fmt.Errorf("leaf %q: %w", n.ID, err)
		}
	}
	desc := description.Compose([]description.Section{
		{Label: "About", Text: n.About},
		{Label: "Transcript", Text: n.Transcript},
		{Label: "More Info", Text: n.Info},
	})

	item := catalog.NewContentItem(catalog.KindVideo, n.ID, n.Title, license, desc)
	item.AddFile(catalog.NewYouTubeVideo(n.YouTubeID, b.postProcess))
	for _, track := range classify.Subtitles(n.YouTubeID, n.SubtitleLangs, b.languages, log) {
		item.AddFile(track)
	}
	metrics.ObserveNode("content", "added")
	return item, true, nil
}
