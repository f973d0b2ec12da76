package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicAddChildRejectsDuplicateSourceID(t *testing.T) {
	t.Parallel()

	topic := NewTopic("syria", "Syria")
	require.NoError(t, topic.AddChild(NewTopic("culture", "Culture")))

	err := topic.AddChild(NewTopic("culture", "Culture again"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateChild))
	assert.Equal(t, 1, topic.Len())
	assert.Equal(t, "Culture", topic.Children()[0].NodeTitle())
}

func TestTopicChildrenPreservesOrder(t *testing.T) {
	t.Parallel()

	topic := NewTopic("root", "Root")
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, topic.AddChild(NewTopic(id, id)))
	}
	var got []string
	for _, c := range topic.Children() {
		got = append(got, c.NodeID())
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestNewSubtitleTrackRequiresLanguage(t *testing.T) {
	t.Parallel()

	if track := NewSubtitleTrack("vid", "xx-YY", ""); track != nil {
		t.Fatalf("expected nil track for unresolved language, got %+v", track)
	}
	track := NewSubtitleTrack("vid", "zh-Hans", "zh")
	if track == nil || track.Language != "zh" || track.SourceTag != "zh-Hans" {
		t.Fatalf("unexpected track %+v", track)
	}
}

type suffixProcessor struct{ calls int }

func (p *suffixProcessor) Process(_ context.Context, input string) (string, error) {
	p.calls++
	return input + ".wm.mp4", nil
}

func TestMediaAssetMaterialize(t *testing.T) {
	t.Parallel()

	plain := NewYouTubeVideo("abc", nil)
	out, err := plain.Materialize(context.Background(), "raw.mp4")
	require.NoError(t, err)
	assert.Equal(t, "raw.mp4", out)

	proc := &suffixProcessor{}
	marked := NewYouTubeVideo("abc", proc)
	out, err = marked.Materialize(context.Background(), "raw.mp4")
	require.NoError(t, err)
	assert.Equal(t, "raw.mp4.wm.mp4", out)
	assert.Equal(t, 1, proc.calls)
	assert.True(t, marked.DeriveThumbnail)
}

func TestContentItemFileAccessors(t *testing.T) {
	t.Parallel()

	item := NewContentItem(KindVideo, "3", "Song", License{ID: LicenseAllRightsReserved}, "desc")
	item.AddFile(NewYouTubeVideo("0maud01QKJQ", nil))
	item.AddFile(NewSubtitleTrack("0maud01QKJQ", "en", "en"))
	item.AddFile(NewSubtitleTrack("0maud01QKJQ", "ar", "ar"))
	item.AddFile(nil)

	assert.Len(t, item.Files(), 3)
	assert.Len(t, item.Media(), 1)
	assert.Len(t, item.Subtitles(), 2)
}

func TestNewLicense(t *testing.T) {
	t.Parallel()

	lic, err := NewLicense("ALL_RIGHTS_RESERVED", "", "")
	require.NoError(t, err)
	assert.Equal(t, LicenseAllRightsReserved, lic.ID)

	lic, err = NewLicense("cc_by_nc_sa", "", "Someone")
	require.NoError(t, err)
	assert.Equal(t, LicenseCCBYNCSA, lic.ID)

	_, err = NewLicense(LicenseSpecialPermissions, " ", "holder")
	assert.Error(t, err)

	_, err = NewLicense("WTFPL", "", "")
	assert.Error(t, err)
}

func TestCountAndMarshalChannel(t *testing.T) {
	t.Parallel()

	ch := NewChannel(ChannelInfo{SourceID: "te", Title: "Touchable Earth", Language: "en"})
	country := NewTopic("syria", "Syria")
	category := NewTopic("culture", "Culture")
	video := NewContentItem(KindVideo, "3", "Song", License{ID: LicenseAllRightsReserved}, "about")
	video.AddFile(NewYouTubeVideo("0maud01QKJQ", nil))
	video.AddFile(NewSubtitleTrack("0maud01QKJQ", "en", "en"))
	image := NewContentItem(KindHTML5, "4", "Map", License{ID: LicenseAllRightsReserved}, "")
	image.AddFile(NewHTML5Zip("/tmp/x.zip"))
	require.NoError(t, category.AddChild(video))
	require.NoError(t, category.AddChild(image))
	require.NoError(t, country.AddChild(category))
	require.NoError(t, ch.AddChild(country))

	stats := Count(ch)
	assert.Equal(t, Stats{Topics: 2, Items: 2, Videos: 1, HTML5: 1, Subtitles: 1}, stats)

	data, err := MarshalChannel(ch)
	require.NoError(t, err)

	var decoded struct {
		Root struct {
			Kind     string `json:"kind"`
			Children []struct {
				Kind     string `json:"kind"`
				Children []struct {
					Children []struct {
						Kind  string `json:"kind"`
						Files []struct {
							Kind string `json:"kind"`
						} `json:"files"`
					} `json:"children"`
				} `json:"children"`
			} `json:"children"`
		} `json:"root"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "topic", decoded.Root.Kind)
	leaves := decoded.Root.Children[0].Children[0].Children
	require.Len(t, leaves, 2)
	assert.Equal(t, "video", leaves[0].Kind)
	assert.Equal(t, "youtube", leaves[0].Files[0].Kind)
	assert.Equal(t, "subtitle", leaves[0].Files[1].Kind)
	assert.Equal(t, "html5", leaves[1].Kind)
}

func TestMarshalChannelRequiresRoot(t *testing.T) {
	t.Parallel()

	if _, err := MarshalChannel(&Channel{}); err == nil {
		t.Fatal("expected error for channel without root")
	}
}

func TestAddFileIgnoresUnresolvedSubtitle(t *testing.T) {
	t.Parallel()

	item := NewContentItem(KindVideo, "1", "t", License{}, "")
	item.AddFile(NewSubtitleTrack("vid", "xx", ""))
	assert.Empty(t, item.Files())
}
