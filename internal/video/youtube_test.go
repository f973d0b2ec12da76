package video

import "testing"

func TestExtractYouTubeID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"http://youtu.be/SA2iWivDJiE", "SA2iWivDJiE", true},
		{"http://www.youtube.com/watch?v=_oPAwA_Udwc&feature=feedu", "_oPAwA_Udwc", true},
		{"http://www.youtube.com/embed/SA2iWivDJiE", "SA2iWivDJiE", true},
		{"https://www.youtube.com/embed/0maud01QKJQ?rel=0&showinfo=0", "0maud01QKJQ", true},
		{"http://www.youtube.com/v/SA2iWivDJiE?version=3&amp;hl=en_US", "SA2iWivDJiE", true},
		{"//www.youtube.com/embed/3x1GA3Z6Alw", "3x1GA3Z6Alw", true},
		{"https://player.vimeo.com/video/12345", "", false},
		{"https://www.google.com/maps/embed?pb=abc", "", false},
		{"https://www.youtube.com/channel/UC123", "", false},
		{"https://www.youtube.com/watch", "", false},
		{"not a url at all", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractYouTubeID(tc.in)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("ExtractYouTubeID(%q) = (%q, %v); want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}
