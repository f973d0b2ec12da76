// Package language reconciles subtitle language tags reported by the video
// platform with the canonical language vocabulary of the distribution
// platform.
package language

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

//go:embed languages.json
var defaultRegistry []byte

// Language is one entry of the canonical vocabulary.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name,omitempty"`
}

// Registry is the canonical vocabulary, indexed by code and by English name.
type Registry struct {
	byCode map[string]Language
	byName map[string]string
}

// DefaultRegistry returns the embedded vocabulary.
func DefaultRegistry() (*Registry, error) {
	return parseRegistry(defaultRegistry)
}

// LoadRegistry reads a JSON vocabulary from path, or the embedded one when
// path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegistry()
	}
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read language registry: %w", err)
	}
	return parseRegistry(data)
}

// NewRegistry builds a registry from explicit entries.
func NewRegistry(langs []Language) (*Registry, error) {
	r := &Registry{
		byCode: make(map[string]Language, len(langs)),
		byName: make(map[string]string, len(langs)),
	}
	sorted := append([]Language(nil), langs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	for _, l := range sorted {
		if l.Code == "" {
			return nil, fmt.Errorf("language %q has no code", l.Name)
		}
		if _, dup := r.byCode[l.Code]; dup {
			return nil, fmt.Errorf("duplicate language code %q", l.Code)
		}
		r.byCode[l.Code] = l
		if _, taken := r.byName[l.Name]; l.Name != "" && !taken {
			r.byName[l.Name] = l.Code
		}
	}
	return r, nil
}

func parseRegistry(data []byte) (*Registry, error) {
	var langs []Language
	if err := json.Unmarshal(data, &langs); err != nil {
		return nil, fmt.Errorf("decode language registry: %w", err)
	}
	return NewRegistry(langs)
}

// Lookup returns the entry for an exact code.
func (r *Registry) Lookup(code string) (Language, bool) {
	l, ok := r.byCode[code]
	return l, ok
}

// CodeForName returns the code whose English name equals name.
func (r *Registry) CodeForName(name string) (string, bool) {
	code, ok := r.byName[name]
	return code, ok
}

// Len reports the vocabulary size.
func (r *Registry) Len() int { return len(r.byCode) }
