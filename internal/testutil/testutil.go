// Package testutil provides helper functions for testing.
package testutil

import (
	"archive/zip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

// WriteZip creates dir/name as a zip holding files (entry name to content)
// and returns its path.
func WriteZip(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create zip %s: %v", path, err)
	}
	defer f.Close()

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	zw := zip.NewWriter(f)
	for _, n := range names {
		hdr := &zip.FileHeader{Name: n, Method: zip.Deflate}
		hdr.SetMode(0o755)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("failed to add %s to zip: %v", n, err)
		}
		if _, err := w.Write([]byte(files[n])); err != nil {
			t.Fatalf("failed to write %s to zip: %v", n, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish zip: %v", err)
	}
	return path
}

// ZipBytes returns the bytes of a zip holding files.
func ZipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	path := WriteZip(t, t.TempDir(), "payload.zip", files)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read zip: %v", err)
	}
	return data
}

// AssetServer serves fixed bodies by URL path and records every request
// path. Unknown paths answer 404.
type AssetServer struct {
	*httptest.Server

	mu       sync.Mutex
	assets   map[string][]byte
	requests []string
}

// NewAssetServer starts an AssetServer closed at test cleanup.
func NewAssetServer(t *testing.T, assets map[string][]byte) *AssetServer {
	t.Helper()

	s := &AssetServer{assets: assets}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.Path)
		body, ok := s.assets[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

// Requests returns the paths requested so far.
func (s *AssetServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}
