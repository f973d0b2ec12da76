// Package crawler walks a source site from its root listing down to content
// pages (root, section, category, content) and builds a catalog channel.
// Single pages that cannot be fetched or classified are skipped; only an
// unreachable root fails the crawl.
package crawler
