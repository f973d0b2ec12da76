package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Resolver maps platform tags onto registry codes. It is pure and safe for
// concurrent use.
type Resolver struct {
	reg   *Registry
	namer display.Namer
}

// NewResolver builds a Resolver over reg using CLDR English display names
// for the name fallback.
func NewResolver(reg *Registry) *Resolver {
	return &Resolver{reg: reg, namer: display.English.Languages()}
}

// Resolve returns the canonical code for tag, trying in order: an exact
// code match, the part before the first hyphen, and the English display
// name of the tag (then of its base language) matched against registry
// names. ok is false when nothing matches.
func (r *Resolver) Resolve(tag string) (string, bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", false
	}
	if _, ok := r.reg.Lookup(tag); ok {
		return tag, true
	}
	if prefix, _, found := strings.Cut(strings.ReplaceAll(tag, "_", "-"), "-"); found {
		if _, ok := r.reg.Lookup(prefix); ok {
			return prefix, true
		}
	}
	return r.byDisplayName(tag)
}

func (r *Resolver) byDisplayName(tag string) (string, bool) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", false
	}
	if name := r.namer.Name(parsed); name != "" {
		if code, ok := r.reg.CodeForName(name); ok {
			return code, true
		}
	}
	base, _ := parsed.Base()
	if name := r.namer.Name(base); name != "" {
		if code, ok := r.reg.CodeForName(name); ok {
			return code, true
		}
	}
	return "", false
}
