// The main package for the catalog-crawler executable.
//
// A run loads configuration (defaults, an optional file, CATALOG_* env vars
// and flags), builds the channel tree either by crawling the source site or
// by reading a manifest, and publishes the JSON catalog to local disk or GCS.
// Fetched pages live in a persistent cache (local, memory or Redis) so that
// repeated runs only revalidate listing pages. A Pub/Sub event announces
// each published catalog when a topic is configured.
package main

import (
	"github.com/JakeFAU/catalog-crawler/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
