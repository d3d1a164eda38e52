// Package fetch downloads remote images so they can be printed like local
// files.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MaxImageBytes bounds a download; receipt-sized images are far smaller.
const MaxImageBytes = 32 << 20

// IsURL reports whether s names an http or https resource.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Download fetches rawURL into destDir and returns the file path. Progress
// is written to progress when it is non-nil.
func Download(ctx context.Context, rawURL, destDir string, progress io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: downloading %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: download failed: HTTP %d", resp.StatusCode)
	}
	if resp.ContentLength > MaxImageBytes {
		return "", fmt.Errorf("fetch: image is %d bytes, limit is %d", resp.ContentLength, MaxImageBytes)
	}

	destPath := filepath.Join(destDir, fileName(req.URL))

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("fetch: creating temp file: %w", err)
	}

	var w io.Writer = f
	if progress != nil {
		w = &progressWriter{
			writer: f,
			out:    progress,
			total:  resp.ContentLength,
			label:  filepath.Base(destPath),
		}
	}

	written, err := io.Copy(w, io.LimitReader(resp.Body, MaxImageBytes+1))
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("fetch: writing image: %w", err)
	}
	if written > MaxImageBytes {
		os.Remove(tmpPath)
		return "", fmt.Errorf("fetch: image exceeds %d bytes", MaxImageBytes)
	}
	if progress != nil {
		fmt.Fprintln(progress)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("fetch: moving image: %w", err)
	}
	return destPath, nil
}

// fileName picks a local name for u, keeping its extension for logs.
func fileName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || strings.ContainsAny(name, `\:`) {
		return "image"
	}
	return name
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.0f KB / %.0f KB (%.0f%%)",
			pw.label,
			float64(pw.written)/1024,
			float64(pw.total)/1024,
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.0f KB downloaded",
			pw.label,
			float64(pw.written)/1024)
	}
	return n, err
}
