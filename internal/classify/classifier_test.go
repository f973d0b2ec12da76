package classify

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
	"github.com/JakeFAU/catalog-crawler/internal/fetchcache"
	"github.com/JakeFAU/catalog-crawler/internal/language"
	"github.com/JakeFAU/catalog-crawler/internal/packager"
	"github.com/JakeFAU/catalog-crawler/internal/site"
	"github.com/JakeFAU/catalog-crawler/internal/video"
)

type mockVideos struct {
	mock.Mock
}

func (m *mockVideos) Lookup(ctx context.Context, id string) (video.Metadata, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(video.Metadata), args.Error(1)
}

type fakeDownloader struct {
	urls []string
	err  error
}

func (f *fakeDownloader) Download(_ context.Context, rawURL, dest string) error {
	f.urls = append(f.urls, rawURL)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte("jpeg bytes"), 0o600)
}

type fixture struct {
	classifier *Classifier
	videos     *mockVideos
	downloads  *fakeDownloader
	outDir     string
	scratch    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := language.DefaultRegistry()
	require.NoError(t, err)
	outDir := t.TempDir()
	zipper, err := packager.New(outDir)
	require.NoError(t, err)
	license, err := catalog.NewLicense(catalog.LicenseCCBY, "", "Example Org")
	require.NoError(t, err)

	f := &fixture{videos: &mockVideos{}, downloads: &fakeDownloader{}, outDir: outDir, scratch: t.TempDir()}
	f.classifier, err = New(Deps{
		Extractor:  site.NewExtractor(site.Default()),
		Videos:     f.videos,
		Languages:  language.NewResolver(reg),
		Downloader: f.downloads,
		Packager:   zipper,
		License:    license,
		ScratchDir: f.scratch,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return f
}

func page(t *testing.T, body string) fetchcache.Result {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + body + "</body></html>"))
	require.NoError(t, err)
	doc.Url, err = url.Parse("http://site.test/greetings?lang=en")
	require.NoError(t, err)
	return fetchcache.Result{URL: doc.Url.String(), FinalURL: doc.Url.String(), Status: fetchcache.StatusOK, StatusCode: 200, Doc: doc}
}

const postID = `<div class="current_post active"><input class="post_id" value="77"></div>`

const tabs = `<div id="tab-about">Hello</div><div id="tab-transcript">Hi there</div>`

func TestClassifyVideo(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.videos.On("Lookup", mock.Anything, "abc123").
		Return(video.Metadata{ID: "abc123", SubtitleLanguages: []string{"en", "xx-YY", "zu"}}, nil).Once()

	item, ok := f.classifier.Classify(context.Background(),
		page(t, postID+`<div class="video-container"><iframe src="https://www.youtube.com/embed/abc123"></iframe></div>`+tabs),
		"Greetings")
	require.True(t, ok)
	f.videos.AssertExpectations(t)

	assert.Equal(t, catalog.KindVideo, item.Kind)
	assert.Equal(t, "77", item.SourceID)
	assert.Equal(t, "Greetings", item.Title)
	assert.Equal(t, "Hello\n\nTRANSCRIPT: Hi there", item.Description)
	assert.Equal(t, "Example Org", item.License.CopyrightHolder)

	media := item.Media()
	require.Len(t, media, 1)
	assert.Equal(t, "abc123", media[0].VideoID)
	assert.True(t, media[0].DeriveThumbnail)

	subs := item.Subtitles()
	require.Len(t, subs, 2)
	assert.Equal(t, "en", subs[0].Language)
	assert.Equal(t, "zu", subs[1].SourceTag)
	assert.Equal(t, "zul", subs[1].Language)
}

func TestClassifyNonVideoIframeIsAbsent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item, ok := f.classifier.Classify(context.Background(),
		page(t, postID+`<div class="video-container"><iframe src="https://player.vimeo.com/video/1"></iframe></div>`),
		"Map")
	assert.False(t, ok)
	assert.Nil(t, item)
	f.videos.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestClassifyRemovedVideoIsAbsent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.videos.On("Lookup", mock.Anything, "gone1").Return(video.Metadata{}, video.ErrUnavailable).Once()

	_, ok := f.classifier.Classify(context.Background(),
		page(t, postID+`<div class="video-container"><iframe src="https://youtu.be/gone1"></iframe></div>`),
		"Gone")
	assert.False(t, ok)
	f.videos.AssertExpectations(t)
}

func TestClassifyImage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item, ok := f.classifier.Classify(context.Background(),
		page(t, postID+`<div class="uncode-single-media-wrapper"><img src="/thumb.png" data-guid="/full.png"></div>`+tabs),
		"Flag")
	require.True(t, ok)

	assert.Equal(t, catalog.KindHTML5, item.Kind)
	assert.Equal(t, []string{"http://site.test/full.png"}, f.downloads.urls)
	media := item.Media()
	require.Len(t, media, 1)
	assert.Equal(t, catalog.MediaHTML5Zip, media[0].Kind)
	assert.Equal(t, f.outDir, filepath.Dir(media[0].Path))
	assert.FileExists(t, media[0].Path)

	left, err := os.ReadDir(f.scratch)
	require.NoError(t, err)
	assert.Empty(t, left, "scratch directory should be cleaned up")
}

func TestClassifyImageDownloadFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.downloads.err = errors.New("boom")
	_, ok := f.classifier.Classify(context.Background(),
		page(t, postID+`<div class="uncode-single-media-wrapper"><img src="/a.jpg"></div>`),
		"Flag")
	assert.False(t, ok)
}

func TestClassifyAbsentCases(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, ok := f.classifier.Classify(ctx, fetchcache.Result{URL: "http://site.test/x", Status: fetchcache.StatusNotFound}, "x")
	assert.False(t, ok, "not found page")

	_, ok = f.classifier.Classify(ctx, page(t, `<div class="video-container"><iframe src="https://youtu.be/abc"></iframe></div>`), "x")
	assert.False(t, ok, "missing source id")

	_, ok = f.classifier.Classify(ctx, page(t, postID+`<p>text only</p>`), "x")
	assert.False(t, ok, "no media")
}

func TestImageFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image.png", imageFileName("http://a.test/x/Flag.PNG?w=1"))
	assert.Equal(t, "image.jpg", imageFileName("http://a.test/x/photo"))
	assert.Equal(t, "image.jpg", imageFileName("http://a.test/x/run.php"))
}

func TestNewRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{})
	require.Error(t, err)
}
