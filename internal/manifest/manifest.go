// Package manifest builds a channel from a static, hand-authored tree
// instead of crawling a site. Manifests are YAML; JSON is accepted because
// it is a subset.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// Manifest is the decoded file.
type Manifest struct {
	Channel catalog.ChannelInfo `yaml:"channel"`
	Nodes   []Node              `yaml:"nodes"`
}

// Node is a topic when YouTubeID is empty, a video leaf otherwise.
type Node struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Children []Node `yaml:"children,omitempty"`

	YouTubeID          string   `yaml:"youtube_id,omitempty"`
	About              string   `yaml:"about,omitempty"`
	Transcript         string   `yaml:"transcript,omitempty"`
	Info               string   `yaml:"info,omitempty"`
	License            string   `yaml:"license,omitempty"`
	LicenseDescription string   `yaml:"license_description,omitempty"`
	CopyrightHolder    string   `yaml:"copyright_holder,omitempty"`
	SubtitleLangs      []string `yaml:"subtitle_langs,omitempty"`
}

// IsLeaf reports whether the node is a video leaf.
func (n Node) IsLeaf() bool { return strings.TrimSpace(n.YouTubeID) != "" }

// ErrInvalid wraps every structural problem found by Validate.
var ErrInvalid = errors.New("invalid manifest")

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	// #nosec G304 -- the manifest path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks ids, titles, sibling uniqueness and licenses.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Channel.SourceID) == "" {
		return fmt.Errorf("%w: channel.source_id is required", ErrInvalid)
	}
	if strings.TrimSpace(m.Channel.Title) == "" {
		return fmt.Errorf("%w: channel.title is required", ErrInvalid)
	}
	return validateSiblings(m.Nodes, "nodes")
}

func validateSiblings(nodes []Node, path string) error {
	seen := make(map[string]struct{}, len(nodes))
	for i, n := range nodes {
		at := fmt.Sprintf("%s[%d]", path, i)
		if strings.TrimSpace(n.ID) == "" {
			return fmt.Errorf("%w: %s: id is required", ErrInvalid, at)
		}
		if strings.TrimSpace(n.Title) == "" {
			return fmt.Errorf("%w: %s: title is required", ErrInvalid, at)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: %s: duplicate id %q", ErrInvalid, at, n.ID)
		}
		seen[n.ID] = struct{}{}

		if !n.IsLeaf() {
			if err := validateSiblings(n.Children, at+".children"); err != nil {
				return err
			}
			continue
		}
		if len(n.Children) > 0 {
			return fmt.Errorf("%w: %s: a video leaf cannot have children", ErrInvalid, at)
		}
		if n.License != "" {
			if _, err := catalog.NewLicense(n.License, n.LicenseDescription, n.CopyrightHolder); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, at, err)
			}
		}
	}
	return nil
}
