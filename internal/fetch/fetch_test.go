package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/a.png", true},
		{"http://localhost:8080/x", true},
		{"photo.png", false},
		{"/tmp/photo.png", false},
		{"ftp://example.com/a.png", false},
		{"https:///nohost", false},
	}
	for _, tt := range tests {
		if got := IsURL(tt.in); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDownload(t *testing.T) {
	body := []byte("\x89PNG fake image bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	var progress bytes.Buffer
	path, err := Download(context.Background(), srv.URL+"/img/cat.png", dir, &progress)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if path != filepath.Join(dir, "cat.png") {
		t.Errorf("Download() path = %q, want cat.png in %s", path, dir)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("downloaded %q, want %q", got, body)
	}
	if !strings.Contains(progress.String(), "cat.png") {
		t.Errorf("progress output %q should name the file", progress.String())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}
}

func TestDownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := Download(context.Background(), srv.URL+"/missing.png", t.TempDir(), nil); err == nil {
		t.Error("Download() should fail on HTTP 404")
	}
}

func TestDownloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "999999999")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if _, err := Download(context.Background(), srv.URL+"/huge.png", t.TempDir(), nil); err == nil {
		t.Error("Download() should refuse images over the size limit")
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"https://example.com/a/b/photo.jpg": "photo.jpg",
		"https://example.com/":              "image",
		"https://example.com":               "image",
	}
	for raw, want := range tests {
		u, _ := url.Parse(raw)
		if got := fileName(u); got != want {
			t.Errorf("fileName(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestProgressWriter(t *testing.T) {
	var sink, out bytes.Buffer
	pw := &progressWriter{
		writer: &sink,
		out:    &out,
		total:  100,
		label:  "test",
	}

	data := make([]byte, 50)
	n, err := pw.Write(data)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 50 {
		t.Errorf("Write() n = %d, want 50", n)
	}
	if pw.written != 50 {
		t.Errorf("written = %d, want 50", pw.written)
	}
	if !strings.Contains(out.String(), "50%") {
		t.Errorf("progress = %q, want 50%%", out.String())
	}
}
