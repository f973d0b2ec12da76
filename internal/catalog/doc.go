// Package catalog defines the normalized tree produced by a crawl: a channel
// rooted at one topic, nested topics, and leaf content items carrying media
// and subtitle files.
package catalog
