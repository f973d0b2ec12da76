package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveFetch(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(fetchTotal.WithLabelValues("metrics.test", "ok"))
	ObserveFetch("https://metrics.test/a", "ok", 10)
	ObserveFetch("https://METRICS.test/b", "ok", 0)
	if got := testutil.ToFloat64(fetchTotal.WithLabelValues("metrics.test", "ok")); got != before+2 {
		t.Fatalf("expected %v fetches, got %v", before+2, got)
	}
	if got := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("metrics.test")); got < 10 {
		t.Fatalf("expected bytes to be recorded, got %v", got)
	}
}

func TestObserveSubtitle(t *testing.T) {
	Init()

	before := testutil.ToFloat64(subtitleTotal.WithLabelValues("unresolved"))
	ObserveSubtitle(false)
	if got := testutil.ToFloat64(subtitleTotal.WithLabelValues("unresolved")); got != before+1 {
		t.Fatalf("expected unresolved counter to increase, got %v", got)
	}
}

func TestObserveMaterialize(t *testing.T) {
	Init()

	before := testutil.ToFloat64(materializeTotal.WithLabelValues("reused"))
	ObserveMaterialize("reused")
	if got := testutil.ToFloat64(materializeTotal.WithLabelValues("reused")); got != before+1 {
		t.Fatalf("expected reused counter to increase, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	ObserveNode("category", "added")

	path := filepath.Join(t.TempDir(), "catalog.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "catalog_crawl_nodes_total") {
		t.Fatalf("textfile missing crawl node counter:\n%s", data)
	}
}

func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://google.com", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
