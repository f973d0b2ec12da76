package fetchcache

import "github.com/PuerkitoBio/goquery"

// Policy controls how the persistent store participates in a fetch.
type Policy int

const (
	// PolicyForever serves a stored page without touching the network.
	PolicyForever Policy = iota
	// PolicyValidate revalidates a stored page with conditional headers;
	// a 304 serves the stored body.
	PolicyValidate
	// PolicyBypass always goes to the network, skipping both the store and
	// the in-run memo. The result replaces whatever either held.
	PolicyBypass
)

func (p Policy) String() string {
	switch p {
	case PolicyForever:
		return "forever"
	case PolicyValidate:
		return "validate"
	case PolicyBypass:
		return "bypass"
	default:
		return "unknown"
	}
}

// Status is the outcome of a fetch. Callers branch on it instead of errors.
type Status int

const (
	// StatusOK means a 200 response (live or cached) with a body.
	StatusOK Status = iota
	// StatusNotFound means the server answered with a non-200 status.
	StatusNotFound
	// StatusFailed means no usable answer after retries.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is what Fetch hands back for one URL.
type Result struct {
	// URL is the normalized request URL.
	URL string
	// FinalURL is the URL after redirects.
	FinalURL   string
	Status     Status
	StatusCode int
	Body       []byte
	// Doc is the parsed page; nil unless Status is StatusOK.
	Doc *goquery.Document
	// FromCache means no request reached the network.
	FromCache bool
	// Revalidated means a 304 confirmed the stored body.
	Revalidated bool
}

// OK reports whether the page is usable.
func (r Result) OK() bool { return r.Status == StatusOK }
