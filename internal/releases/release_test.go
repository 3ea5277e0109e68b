package releases

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
)

const releasesJSON = `[
  {"name": "v2.1.0", "tag_name": "v2.1.0", "assets": [
    {"name": "radian.hex", "browser_download_url": "https://example.com/v2.1.0/radian.hex"},
    {"name": "README.md", "browser_download_url": "https://example.com/v2.1.0/README.md"},
    {"name": "timber.hex", "browser_download_url": "https://example.com/v2.1.0/timber.hex"}
  ]},
  {"name": "v2.0.0", "tag_name": "v2.0.0", "assets": [
    {"name": "radian.hex", "browser_download_url": "https://example.com/v2.0.0/radian.hex"}
  ]},
  {"name": "v1.0.0", "tag_name": "v1.0.0", "assets": []}
]`

func serveJSON(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchCatalog(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, releasesJSON)

	cat, err := NewClient(srv.URL).FetchCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"v2.1.0", "v2.0.0", "v1.0.0"}, cat.Names())
	assert.Equal(t, []string{"radian.hex", "timber.hex"}, cat.LayoutNames("v2.1.0"))
	assert.Equal(t, []string{"-- No files found --"}, cat.LayoutNames("v1.0.0"))

	l, ok := cat.Lookup("v2.0.0", "radian.hex")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/v2.0.0/radian.hex", l.URL)
}

func TestFetchCatalog_Extension(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, releasesJSON)

	cat, err := NewClient(srv.URL, WithExtension(".md")).FetchCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md"}, cat.LayoutNames("v2.1.0"))
}

func TestFetchCatalog_SendsHeaders(t *testing.T) {
	var ua, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithUserAgent("ledupdater-test")).FetchCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ledupdater-test", ua)
	assert.Equal(t, "application/vnd.github.v3+json", accept)
}

func TestNewClient_OptionOrder(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		if r.URL.Query().Get("slow") != "" {
			time.Sleep(500 * time.Millisecond)
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	opts := []Option{
		WithTimeout(50 * time.Millisecond),
		WithUserAgent("ledupdater-test"),
		WithHTTPClient(&http.Client{}),
	}

	_, err := NewClient(srv.URL, opts...).FetchCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ledupdater-test", ua)

	_, err = NewClient(srv.URL+"?slow=1", opts...).FetchCatalog(context.Background())
	require.Error(t, err)
	assert.True(t, lerrors.IsNetwork(err), "kind = %q", lerrors.Kind(err))
}

func TestFetchCatalog_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		is     func(error) bool
	}{
		{"rate limited", http.StatusForbidden, `{"message":"API rate limit exceeded"}`, lerrors.IsHTTPStatus},
		{"server error", http.StatusInternalServerError, ``, lerrors.IsHTTPStatus},
		{"bad json", http.StatusOK, `{"not": "a list"`, lerrors.IsInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveJSON(t, tt.status, tt.body)
			cat, err := NewClient(srv.URL).FetchCatalog(context.Background())
			require.Error(t, err)
			assert.True(t, tt.is(err), "unexpected kind %q for %v", lerrors.Kind(err), err)
			assert.Zero(t, cat.Len())
		})
	}
}

func TestFetchCatalog_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).FetchCatalog(context.Background())
	require.Error(t, err)
	assert.True(t, lerrors.IsNetwork(err), "kind = %q", lerrors.Kind(err))
}

func TestFetchCatalog_Canceled(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, releasesJSON)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL).FetchCatalog(ctx)
	require.Error(t, err)
	assert.True(t, lerrors.IsCanceled(err))
}
