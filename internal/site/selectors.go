// Package site holds the HTML selectors that describe one source website.
// Selectors are configuration: another site with the same four-level shape
// only needs a different Selectors value.
package site

import (
	"fmt"
	"reflect"
	"strings"
)

// Selectors locate every element the crawler reads. Fields named *Attr are
// attribute names, everything else is a CSS selector.
type Selectors struct {
	// SectionLinks are the top-level links on the root listing page.
	SectionLinks string `mapstructure:"section_links"`
	// Breadcrumb is the canonical section link on a section page.
	Breadcrumb string `mapstructure:"breadcrumb"`
	// CategoryOptions are <option> elements whose value is a category URL.
	CategoryOptions string `mapstructure:"category_options"`
	// ContentEntries are the listing rows on a category page.
	ContentEntries string `mapstructure:"content_entries"`
	// EntrySlug, EntryTitle and EntrySiteURL are read, relative to an entry,
	// from the EntryValueAttr attribute.
	EntrySlug      string `mapstructure:"entry_slug"`
	EntryTitle     string `mapstructure:"entry_title"`
	EntrySiteURL   string `mapstructure:"entry_site_url"`
	EntryValueAttr string `mapstructure:"entry_value_attr"`
	// SourceID is the element whose value attribute holds the post id.
	SourceID string `mapstructure:"source_id"`
	// VideoFrame is the embedded player iframe.
	VideoFrame string `mapstructure:"video_frame"`
	// Image is the single static image of a non-video page.
	Image string `mapstructure:"image"`
	// ImagePreferredAttr is tried before src.
	ImagePreferredAttr string `mapstructure:"image_preferred_attr"`
	// AboutTab, TranscriptTab and MoreInfoTab hold description text.
	AboutTab      string `mapstructure:"about_tab"`
	TranscriptTab string `mapstructure:"transcript_tab"`
	MoreInfoTab   string `mapstructure:"more_info_tab"`
	// TabTitles is the element whose children label the three tabs.
	TabTitles string `mapstructure:"tab_titles"`
	// LanguageParam is the query parameter carrying the crawl language.
	LanguageParam string `mapstructure:"language_param"`
}

// Default returns the selectors for www.touchableearth.org.
func Default() Selectors {
	return Selectors{
		SectionLinks:       "div.places-row a.custom-link",
		Breadcrumb:         ".breadcrumbs .taxonomy.category",
		CategoryOptions:    ".sub_cat_dropdown .select_option_subcat option",
		ContentEntries:     ".post_title_sub .current_post",
		EntrySlug:          ".get_post_title",
		EntryTitle:         ".get_post_title2",
		EntrySiteURL:       ".site_url",
		EntryValueAttr:     "value",
		SourceID:           ".current_post.active .post_id",
		VideoFrame:         ".video-container iframe",
		Image:              ".uncode-single-media-wrapper img",
		ImagePreferredAttr: "data-guid",
		AboutTab:           "#tab-about",
		TranscriptTab:      "#tab-transcript",
		MoreInfoTab:        "#tab-more-info",
		TabTitles:          ".tab-container .nav-tabs",
		LanguageParam:      "lang",
	}
}

// WithDefaults fills empty fields from Default.
func (s Selectors) WithDefaults() Selectors {
	def := reflect.ValueOf(Default())
	out := reflect.ValueOf(&s).Elem()
	for i := range out.NumField() {
		f := out.Field(i)
		if f.Kind() == reflect.String && strings.TrimSpace(f.String()) == "" {
			f.SetString(def.Field(i).String())
		}
	}
	return s
}

// Validate reports the first empty selector.
func (s Selectors) Validate() error {
	v := reflect.ValueOf(s)
	t := v.Type()
	for i := range v.NumField() {
		if strings.TrimSpace(v.Field(i).String()) == "" {
			return fmt.Errorf("site selector %s is empty", t.Field(i).Tag.Get("mapstructure"))
		}
	}
	return nil
}
