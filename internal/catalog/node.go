package catalog

import (
	"context"
	"errors"
	"fmt"
)

// ErrDuplicateChild is returned when a topic already holds a child with the
// same source id.
var ErrDuplicateChild = errors.New("duplicate child source id")

// ContentKind identifies how a content item is rendered downstream.
type ContentKind string

// Content kinds emitted by the crawler.
const (
	KindVideo ContentKind = "video"
	KindHTML5 ContentKind = "html5"
)

// Node is either a *Topic or a *ContentItem. The set is closed.
type Node interface {
	NodeID() string
	NodeTitle() string
	isNode()
}

// Topic is a non-leaf node with ordered children.
type Topic struct {
	SourceID string
	Title    string

	children []Node
	ids      map[string]struct{}
}

// NewTopic builds an empty topic.
func NewTopic(sourceID, title string) *Topic {
	return &Topic{SourceID: sourceID, Title: title}
}

// NodeID returns the topic source id.
func (t *Topic) NodeID() string { return t.SourceID }

// NodeTitle returns the topic title.
func (t *Topic) NodeTitle() string { return t.Title }

func (*Topic) isNode() {}

// AddChild appends n. Source ids are unique among siblings.
func (t *Topic) AddChild(n Node) error {
	if n == nil {
		return errors.New("nil child")
	}
	if t.ids == nil {
		t.ids = make(map[string]struct{})
	}
	id := n.NodeID()
	if _, ok := t.ids[id]; ok {
		return fmt.Errorf("%w: %q under %q", ErrDuplicateChild, id, t.SourceID)
	}
	t.ids[id] = struct{}{}
	t.children = append(t.children, n)
	return nil
}

// Children returns the child nodes in insertion order.
func (t *Topic) Children() []Node {
	out := make([]Node, len(t.children))
	copy(out, t.children)
	return out
}

// Len reports the number of direct children.
func (t *Topic) Len() int { return len(t.children) }

// ContentItem is a leaf node.
type ContentItem struct {
	SourceID    string
	Title       string
	Kind        ContentKind
	License     License
	Description string

	files []File
}

// NewContentItem builds a leaf without files.
func NewContentItem(kind ContentKind, sourceID, title string, license License, description string) *ContentItem {
	return &ContentItem{
		SourceID:    sourceID,
		Title:       title,
		Kind:        kind,
		License:     license,
		Description: description,
	}
}

// NodeID returns the item source id.
func (c *ContentItem) NodeID() string { return c.SourceID }

// NodeTitle returns the item title.
func (c *ContentItem) NodeTitle() string { return c.Title }

func (*ContentItem) isNode() {}

// AddFile attaches a media asset or subtitle track. Nil files, including
// typed nils from NewSubtitleTrack, are ignored.
func (c *ContentItem) AddFile(f File) {
	switch v := f.(type) {
	case nil:
		return
	case *SubtitleTrack:
		if v == nil {
			return
		}
	case *MediaAsset:
		if v == nil {
			return
		}
	}
	c.files = append(c.files, f)
}

// Files returns every attached file in attachment order.
func (c *ContentItem) Files() []File {
	out := make([]File, len(c.files))
	copy(out, c.files)
	return out
}

// Media returns the attached media assets.
func (c *ContentItem) Media() []*MediaAsset {
	var out []*MediaAsset
	for _, f := range c.files {
		if m, ok := f.(*MediaAsset); ok {
			out = append(out, m)
		}
	}
	return out
}

// Subtitles returns the attached subtitle tracks.
func (c *ContentItem) Subtitles() []*SubtitleTrack {
	var out []*SubtitleTrack
	for _, f := range c.files {
		if s, ok := f.(*SubtitleTrack); ok {
			out = append(out, s)
		}
	}
	return out
}

// File is either a *MediaAsset or a *SubtitleTrack.
type File interface {
	isFile()
}

// MediaKind distinguishes remote videos from locally produced files.
type MediaKind string

// Media kinds.
const (
	MediaYouTube  MediaKind = "youtube"
	MediaHTML5Zip MediaKind = "html5_zip"
)

// PostProcessor turns a materialized raw file into a processed file.
type PostProcessor interface {
	Process(ctx context.Context, input string) (string, error)
}

// MediaAsset references a remote video or a local file.
type MediaAsset struct {
	Kind            MediaKind
	VideoID         string
	Path            string
	DeriveThumbnail bool
	PostProcess     PostProcessor
}

func (*MediaAsset) isFile() {}

// NewYouTubeVideo references a platform video.
func NewYouTubeVideo(videoID string, post PostProcessor) *MediaAsset {
	return &MediaAsset{
		Kind:            MediaYouTube,
		VideoID:         videoID,
		DeriveThumbnail: true,
		PostProcess:     post,
	}
}

// NewHTML5Zip references a packaged archive on disk.
func NewHTML5Zip(path string) *MediaAsset {
	return &MediaAsset{Kind: MediaHTML5Zip, Path: path}
}

// Materialize applies the optional post-process step to a downloaded file.
// Without a post-processor the raw path is returned unchanged.
func (m *MediaAsset) Materialize(ctx context.Context, raw string) (string, error) {
	if m.PostProcess == nil {
		return raw, nil
	}
	out, err := m.PostProcess.Process(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("post-process %s: %w", raw, err)
	}
	return out, nil
}

// SubtitleTrack is a subtitle whose source tag resolved to a canonical
// language. Use NewSubtitleTrack; unresolved tags never produce a track.
type SubtitleTrack struct {
	VideoID   string
	SourceTag string
	Language  string
}

func (*SubtitleTrack) isFile() {}

// NewSubtitleTrack returns nil when the language is empty.
func NewSubtitleTrack(videoID, sourceTag, language string) *SubtitleTrack {
	if language == "" {
		return nil
	}
	return &SubtitleTrack{VideoID: videoID, SourceTag: sourceTag, Language: language}
}

// ChannelInfo describes the channel being produced.
type ChannelInfo struct {
	SourceDomain string `mapstructure:"source_domain" json:"source_domain" yaml:"source_domain"`
	SourceID     string `mapstructure:"source_id" json:"source_id" yaml:"source_id"`
	Title        string `mapstructure:"title" json:"title" yaml:"title"`
	Thumbnail    string `mapstructure:"thumbnail" json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Language     string `mapstructure:"language" json:"language" yaml:"language"`
	Description  string `mapstructure:"description" json:"description,omitempty" yaml:"description,omitempty"`
}

// Channel owns the root topic of a tree.
type Channel struct {
	Info ChannelInfo
	Root *Topic
}

// NewChannel creates a channel whose root topic mirrors the channel id.
func NewChannel(info ChannelInfo) *Channel {
	return &Channel{Info: info, Root: NewTopic(info.SourceID, info.Title)}
}

// AddChild appends a top-level node.
func (c *Channel) AddChild(n Node) error {
	return c.Root.AddChild(n)
}
