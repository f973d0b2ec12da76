package site

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-crawler/internal/description"
)

// Link is an anchor or option reduced to its target and text.
type Link struct {
	URL   string
	Title string
}

// Entry is one row of a category listing.
type Entry struct {
	Slug    string
	Title   string
	SiteURL string
}

// Extractor reads pages using a Selectors value.
type Extractor struct {
	sel Selectors
}

// NewExtractor fills missing selectors with the defaults.
func NewExtractor(sel Selectors) *Extractor {
	return &Extractor{sel: sel.WithDefaults()}
}

// Selectors returns the effective selectors.
func (e *Extractor) Selectors() Selectors { return e.sel }

// SectionLinks returns root listing links in document order, resolved
// against the page URL.
func (e *Extractor) SectionLinks(doc *goquery.Document) []Link {
	var links []Link
	doc.Find(e.sel.SectionLinks).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		links = append(links, Link{URL: resolve(doc, href), Title: strings.TrimSpace(s.Text())})
	})
	return links
}

// Breadcrumb returns the canonical section identity, if present.
func (e *Extractor) Breadcrumb(doc *goquery.Document) (Link, bool) {
	s := doc.Find(e.sel.Breadcrumb).First()
	href, ok := s.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return Link{}, false
	}
	return Link{URL: resolve(doc, href), Title: strings.TrimSpace(s.Text())}, true
}

// CategoryOptions returns category options in document order, skipping the
// selected placeholder and repeated URLs.
func (e *Extractor) CategoryOptions(doc *goquery.Document) []Link {
	var links []Link
	seen := make(map[string]struct{})
	doc.Find(e.sel.CategoryOptions).Each(func(_ int, s *goquery.Selection) {
		if _, selected := s.Attr("selected"); selected {
			return
		}
		value, ok := s.Attr("value")
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			return
		}
		target := resolve(doc, value)
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}
		links = append(links, Link{URL: target, Title: strings.TrimSpace(s.Text())})
	})
	return links
}

// ContentEntries returns listing rows in document order. Rows without a
// slug are skipped; duplicates are kept for the caller to handle.
func (e *Extractor) ContentEntries(doc *goquery.Document) []Entry {
	var entries []Entry
	doc.Find(e.sel.ContentEntries).Each(func(_ int, s *goquery.Selection) {
		slug := e.value(s, e.sel.EntrySlug)
		if slug == "" {
			return
		}
		entries = append(entries, Entry{
			Slug:    slug,
			Title:   e.value(s, e.sel.EntryTitle),
			SiteURL: e.value(s, e.sel.EntrySiteURL),
		})
	})
	return entries
}

// ContentURL builds "<site_url>/<slug>?<param>=<lang>". An empty site URL
// falls back to the page's scheme and host.
func (e *Extractor) ContentURL(doc *goquery.Document, entry Entry, lang string) string {
	base := strings.TrimRight(entry.SiteURL, "/")
	if base == "" && doc != nil && doc.Url != nil {
		base = doc.Url.Scheme + "://" + doc.Url.Host
	}
	return WithLanguage(base+"/"+strings.TrimLeft(entry.Slug, "/"), e.sel.LanguageParam, lang)
}

// SectionURL adds the language parameter to a section link.
func (e *Extractor) SectionURL(raw, lang string) string {
	return WithLanguage(raw, e.sel.LanguageParam, lang)
}

// SourceID returns the post id of a content page.
func (e *Extractor) SourceID(doc *goquery.Document) (string, bool) {
	v, ok := doc.Find(e.sel.SourceID).First().Attr("value")
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// VideoSource returns the src of the embedded player, if any.
func (e *Extractor) VideoSource(doc *goquery.Document) (string, bool) {
	frame := doc.Find(e.sel.VideoFrame).First()
	if frame.Length() == 0 {
		return "", false
	}
	src, _ := frame.Attr("src")
	return strings.TrimSpace(src), true
}

// ImageSource returns the absolute URL of the page's single image, preferring
// the configured attribute over src.
func (e *Extractor) ImageSource(doc *goquery.Document) (string, bool) {
	img := doc.Find(e.sel.Image).First()
	if img.Length() == 0 {
		return "", false
	}
	src, _ := img.Attr(e.sel.ImagePreferredAttr)
	if strings.TrimSpace(src) == "" {
		src, _ = img.Attr("src")
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return "", false
	}
	return resolve(doc, src), true
}

// DescriptionSections returns the about, transcript and more-info tabs
// labelled with the page's tab titles, falling back to English labels.
func (e *Extractor) DescriptionSections(doc *goquery.Document) []description.Section {
	labels := []string{"About", "Transcript", "More Info"}
	doc.Find(e.sel.TabTitles).First().Children().Each(func(i int, s *goquery.Selection) {
		if i < len(labels) {
			if t := strings.TrimSpace(s.Text()); t != "" {
				labels[i] = t
			}
		}
	})
	tabs := []string{e.sel.AboutTab, e.sel.TranscriptTab, e.sel.MoreInfoTab}
	sections := make([]description.Section, len(tabs))
	for i, sel := range tabs {
		sections[i] = description.Section{Label: labels[i], Text: doc.Find(sel).First().Text()}
	}
	return sections
}

func (e *Extractor) value(s *goquery.Selection, sel string) string {
	v, _ := s.Find(sel).First().Attr(e.sel.EntryValueAttr)
	return strings.TrimSpace(v)
}

// WithLanguage sets param=lang on raw, replacing any existing value. An
// empty lang returns raw unchanged.
func WithLanguage(raw, param, lang string) string {
	if lang == "" || param == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(param, lang)
	u.RawQuery = q.Encode()
	return u.String()
}

func resolve(doc *goquery.Document, ref string) string {
	if doc == nil || doc.Url == nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return doc.Url.ResolveReference(r).String()
}
