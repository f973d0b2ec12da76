package fetchcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollyTransportFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte("<p>new</p>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	tr := NewCollyTransport(CollyConfig{UserAgent: "catalog-test", Timeout: 5 * time.Second})
	resp, err := tr.Do(context.Background(), Request{URL: server.URL + "/old"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, server.URL+"/new", resp.FinalURL)
	assert.Equal(t, "<p>new</p>", string(resp.Body))
	assert.Equal(t, `"abc"`, resp.Header.Get("ETag"))
}

func TestCollyTransportPassesErrorStatuses(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	resp, err := NewCollyTransport(CollyConfig{}).Do(context.Background(), Request{URL: server.URL + "/nope"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCollyTransportClearsCookiesBetweenRequests(t *testing.T) {
	t.Parallel()

	var sawCookie []bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := r.Cookie("session")
		sawCookie = append(sawCookie, err == nil)
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "1", Path: "/"})
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	tr := NewCollyTransport(CollyConfig{})
	for range 2 {
		_, err := tr.Do(context.Background(), Request{URL: server.URL + "/"})
		require.NoError(t, err)
	}
	assert.Equal(t, []bool{false, false}, sawCookie)
}

func TestCollyTransportSendsConditionalHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte("fresh"))
	}))
	t.Cleanup(server.Close)

	resp, err := NewCollyTransport(CollyConfig{}).Do(context.Background(), Request{
		URL:    server.URL + "/",
		Header: http.Header{"If-None-Match": {`"v1"`}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestCollyTransportConnectionErrorIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := NewCollyTransport(CollyConfig{Timeout: time.Second}).Do(context.Background(), Request{URL: addr + "/"})
	require.Error(t, err)
	assert.True(t, isTransient(err))
}
