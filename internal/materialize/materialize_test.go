package materialize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// fakeDownloader writes <id>.mp4 and records every call.
type fakeDownloader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeDownloader) Download(_ context.Context, videoID, dir string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, videoID)
	f.mu.Unlock()
	if f.fail[videoID] {
		return "", errors.New("video unavailable")
	}
	path := filepath.Join(dir, videoID+".mp4")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte("raw "+videoID), 0o600)
}

// suffixProcessor maps raw.mp4 to raw.wm.mp4 without touching disk.
type suffixProcessor struct {
	mu     sync.Mutex
	inputs []string
	fail   bool
}

func (p *suffixProcessor) Process(_ context.Context, input string) (string, error) {
	p.mu.Lock()
	p.inputs = append(p.inputs, input)
	p.mu.Unlock()
	if p.fail {
		return "", errors.New("ffmpeg exited 1")
	}
	return strings.TrimSuffix(input, ".mp4") + ".wm.mp4", nil
}

func newChannel(t *testing.T, post catalog.PostProcessor, videoIDs ...string) (*catalog.Channel, []*catalog.MediaAsset) {
	t.Helper()
	ch := catalog.NewChannel(catalog.ChannelInfo{SourceID: "test", Title: "Test", Language: "en"})
	topic := catalog.NewTopic("syria", "Syria")
	var assets []*catalog.MediaAsset
	for i, id := range videoIDs {
		item := catalog.NewContentItem(catalog.KindVideo, id+"-"+string(rune('a'+i)), id, catalog.License{ID: catalog.LicenseCCBY}, "")
		asset := catalog.NewYouTubeVideo(id, post)
		item.AddFile(asset)
		require.NoError(t, topic.AddChild(item))
		assets = append(assets, asset)
	}
	require.NoError(t, ch.AddChild(topic))
	return ch, assets
}

func TestRunDownloadsAndProcessesEachVideoOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dl := &fakeDownloader{}
	post := &suffixProcessor{}
	ch, assets := newChannel(t, post, "v1", "v2", "v1")

	stage, err := New(Config{MediaDir: dir, Workers: 3}, dl, zap.NewNop())
	require.NoError(t, err)
	stats, err := stage.Run(context.Background(), ch)
	require.NoError(t, err)

	assert.Equal(t, Stats{Downloaded: 2, Processed: 3}, stats)
	assert.ElementsMatch(t, []string{"v1", "v2"}, dl.calls)
	assert.Equal(t, filepath.Join(dir, "v1.wm.mp4"), assets[0].Path)
	assert.Equal(t, filepath.Join(dir, "v2.wm.mp4"), assets[1].Path)
	assert.Equal(t, assets[0].Path, assets[2].Path)
	assert.Len(t, post.inputs, 3)
}

func TestRunReusesDownloadsOnDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "v1.mkv"), []byte("earlier run"), 0o600))
	dl := &fakeDownloader{}
	post := &suffixProcessor{}
	ch, assets := newChannel(t, post, "v1")

	stage, err := New(Config{MediaDir: dir}, dl, nil)
	require.NoError(t, err)
	stats, err := stage.Run(context.Background(), ch)
	require.NoError(t, err)

	assert.Equal(t, Stats{Reused: 1, Processed: 1}, stats)
	assert.Empty(t, dl.calls)
	assert.Equal(t, []string{filepath.Join(dir, "v1.mkv")}, post.inputs)
	assert.NotEmpty(t, assets[0].Path)
}

func TestRunKeepsRemoteReferenceOnFailure(t *testing.T) {
	t.Parallel()

	dl := &fakeDownloader{fail: map[string]bool{"gone": true}}
	ch, assets := newChannel(t, &suffixProcessor{}, "gone", "v2")
	stage, err := New(Config{MediaDir: t.TempDir()}, dl, nil)
	require.NoError(t, err)

	stats, err := stage.Run(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Processed)
	assert.Empty(t, assets[0].Path)
	assert.Equal(t, "gone", assets[0].VideoID)

	ch, assets = newChannel(t, &suffixProcessor{fail: true}, "v3")
	stats, err = stage.Run(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Empty(t, assets[0].Path)
}

func TestRunSkipsAssetsWithoutPostProcessor(t *testing.T) {
	t.Parallel()

	dl := &fakeDownloader{}
	ch, assets := newChannel(t, nil, "v1")
	stage, err := New(Config{MediaDir: t.TempDir()}, dl, nil)
	require.NoError(t, err)

	stats, err := stage.Run(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Empty(t, dl.calls)
	assert.Empty(t, assets[0].Path)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dl := &cancellingDownloader{}
	ch, _ := newChannel(t, &suffixProcessor{}, "v1")
	stage, err := New(Config{MediaDir: t.TempDir(), Workers: 1}, dl, nil)
	require.NoError(t, err)

	_, err = stage.Run(ctx, ch)
	require.ErrorIs(t, err, context.Canceled)
}

type cancellingDownloader struct{}

func (cancellingDownloader) Download(ctx context.Context, _, _ string) (string, error) {
	return "", ctx.Err()
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, &fakeDownloader{}, nil)
	require.Error(t, err)
	_, err = New(Config{MediaDir: "media"}, nil, nil)
	require.Error(t, err)
}
