// Package publish hands a finished channel to downstream systems: the
// encoded tree goes to a blob store, then a CatalogPublished event is sent.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/publisher"
	"github.com/JakeFAU/catalog-crawler/internal/runid"
	"github.com/JakeFAU/catalog-crawler/internal/storage"
)

// EventCatalogPublished is the event name attached to every notification.
const EventCatalogPublished = "catalog.published"

// CatalogPublished announces one stored catalog.
type CatalogPublished struct {
	RunID       string        `json:"run_id"`
	ChannelID   string        `json:"channel_id"`
	Language    string        `json:"language"`
	Title       string        `json:"title"`
	URI         string        `json:"uri"`
	Stats       catalog.Stats `json:"stats"`
	StartedAt   time.Time     `json:"started_at"`
	PublishedAt time.Time     `json:"published_at"`
}

// Options configure a Sink. Only Blobs is required; Now defaults to UTC
// wall time.
type Options struct {
	Blobs  storage.BlobStore
	Events publisher.Publisher
	Now    func() time.Time
	Prefix string
	Logger *zap.Logger
}

// Sink stores and announces channels.
type Sink struct {
	opts Options
}

// NewSink validates opts.
func NewSink(opts Options) (*Sink, error) {
	if opts.Blobs == nil {
		return nil, fmt.Errorf("publish sink requires a blob store")
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Events == nil {
		opts.Events = publisher.NoOp{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Sink{opts: opts}, nil
}

// ObjectPath is where a run's catalog is written.
func (s *Sink) ObjectPath(info catalog.ChannelInfo, runID string) string {
	lang := info.Language
	if lang == "" {
		lang = "und"
	}
	return path.Join(s.opts.Prefix, info.SourceID, lang, runID+".json")
}

// Publish writes ch under the run's id and sends the event. A failed
// notification is an error, but the stored object is kept and reported in
// the event.
func (s *Sink) Publish(ctx context.Context, run runid.Run, ch *catalog.Channel) (CatalogPublished, error) {
	if run.ID == "" {
		return CatalogPublished{}, fmt.Errorf("publish requires a run id")
	}
	data, err := catalog.MarshalChannel(ch)
	if err != nil {
		return CatalogPublished{}, fmt.Errorf("encode channel: %w", err)
	}

	objectPath := s.ObjectPath(ch.Info, run.ID)
	uri, err := s.opts.Blobs.PutObject(ctx, objectPath, "application/json", bytes.NewReader(data))
	if err != nil {
		return CatalogPublished{}, fmt.Errorf("store catalog %s: %w", objectPath, err)
	}

	event := CatalogPublished{
		RunID:       run.ID,
		ChannelID:   ch.Info.SourceID,
		Language:    ch.Info.Language,
		Title:       ch.Info.Title,
		URI:         uri,
		Stats:       catalog.Count(ch),
		StartedAt:   run.StartedAt,
		PublishedAt: s.opts.Now(),
	}
	msgID, err := s.opts.Events.Publish(ctx, EventCatalogPublished, event)
	if err != nil {
		return event, fmt.Errorf("announce catalog %s: %w", uri, err)
	}
	s.opts.Logger.Info("catalog published",
		zap.String("run_id", run.ID),
		zap.String("uri", uri),
		zap.String("message_id", msgID),
		zap.Int("items", event.Stats.Items),
	)
	return event, nil
}
