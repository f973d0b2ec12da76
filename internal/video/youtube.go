// Package video identifies embedded platform videos and looks up their
// metadata.
package video

import (
	"net/url"
	"strings"
)

// WatchURL returns the canonical watch page for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}

// ExtractYouTubeID returns the video id from the four URL shapes the source
// embeds use:
//
//	https://youtu.be/ID
//	https://www.youtube.com/watch?v=ID
//	https://www.youtube.com/embed/ID
//	https://www.youtube.com/v/ID?version=3
//
// Anything else (including non-video embeds) yields ok=false.
func ExtractYouTubeID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	var id string
	switch strings.ToLower(u.Hostname()) {
	case "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
	case "www.youtube.com", "youtube.com", "m.youtube.com", "www.youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = pathSegment(u.Path, 2)
		case strings.HasPrefix(u.Path, "/v/"):
			id = pathSegment(u.Path, 2)
		}
	}
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", false
	}
	return id, true
}

func pathSegment(p string, i int) string {
	parts := strings.Split(p, "/")
	if i >= len(parts) {
		return ""
	}
	return parts[i]
}
