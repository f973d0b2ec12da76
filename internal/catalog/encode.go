package catalog

import (
	"encoding/json"
	"fmt"
)

type channelJSON struct {
	Channel ChannelInfo `json:"channel"`
	Stats   Stats       `json:"stats"`
	Root    nodeJSON    `json:"root"`
}

type nodeJSON struct {
	Kind        string     `json:"kind"`
	SourceID    string     `json:"source_id"`
	Title       string     `json:"title"`
	License     *License   `json:"license,omitempty"`
	Description string     `json:"description,omitempty"`
	Files       []fileJSON `json:"files,omitempty"`
	Children    []nodeJSON `json:"children,omitempty"`
}

type fileJSON struct {
	Kind            string `json:"kind"`
	VideoID         string `json:"video_id,omitempty"`
	Path            string `json:"path,omitempty"`
	DeriveThumbnail bool   `json:"derive_thumbnail,omitempty"`
	PostProcessed   bool   `json:"post_processed,omitempty"`
	SourceTag       string `json:"source_tag,omitempty"`
	Language        string `json:"language,omitempty"`
}

// MarshalChannel encodes the tree with an explicit kind on every node and
// file so consumers never infer shape from field presence.
func MarshalChannel(ch *Channel) ([]byte, error) {
	if ch == nil || ch.Root == nil {
		return nil, fmt.Errorf("channel has no root topic")
	}
	payload := channelJSON{
		Channel: ch.Info,
		Stats:   Count(ch),
		Root:    encodeNode(ch.Root),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal channel: %w", err)
	}
	return data, nil
}

func encodeNode(n Node) nodeJSON {
	switch v := n.(type) {
	case *Topic:
		out := nodeJSON{Kind: "topic", SourceID: v.SourceID, Title: v.Title}
		for _, c := range v.children {
			out.Children = append(out.Children, encodeNode(c))
		}
		return out
	case *ContentItem:
		lic := v.License
		out := nodeJSON{
			Kind:        string(v.Kind),
			SourceID:    v.SourceID,
			Title:       v.Title,
			License:     &lic,
			Description: v.Description,
		}
		for _, f := range v.files {
			out.Files = append(out.Files, encodeFile(f))
		}
		return out
	default:
		return nodeJSON{}
	}
}

func encodeFile(f File) fileJSON {
	switch v := f.(type) {
	case *MediaAsset:
		return fileJSON{
			Kind:            string(v.Kind),
			VideoID:         v.VideoID,
			Path:            v.Path,
			DeriveThumbnail: v.DeriveThumbnail,
			PostProcessed:   v.PostProcess != nil,
		}
	case *SubtitleTrack:
		return fileJSON{
			Kind:      "subtitle",
			VideoID:   v.VideoID,
			SourceTag: v.SourceTag,
			Language:  v.Language,
		}
	default:
		return fileJSON{}
	}
}
