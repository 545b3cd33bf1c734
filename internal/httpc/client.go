// Package httpc provides the shared HTTP client used to fetch model files.
package httpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout        = 2 * time.Minute
	DefaultConnectTimeout = 10 * time.Second
	DefaultKeepAlive      = 30 * time.Second
)

// Client is a shared HTTP client with production-ready defaults.
// Use this instead of http.DefaultClient.
var Client = NewClient(DefaultTimeout)

// NewClient creates a new HTTP client with the specified overall timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// IsURL reports whether ref names a remote http(s) resource.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Download fetches url into dir and returns the local path. The file is
// written under a temporary name and renamed once complete, so a partial
// download never shadows a good one.
//
// A file already cached in dir is revalidated with If-Modified-Since and
// kept on 304. It is also used as is when the server cannot be reached.
func Download(ctx context.Context, client *http.Client, url, dir string) (string, error) {
	if client == nil {
		client = Client
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("httpc: build request: %w", err)
	}

	name := path.Base(req.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "model.onnx"
	}
	dst := filepath.Join(dir, name)

	cached, err := os.Stat(dst)
	hasCache := err == nil && cached.Mode().IsRegular()
	if hasCache {
		req.Header.Set("If-Modified-Since", cached.ModTime().UTC().Format(http.TimeFormat))
	}

	resp, err := client.Do(req)
	if err != nil {
		if hasCache && ctx.Err() == nil {
			return dst, nil
		}
		return "", fmt.Errorf("httpc: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && hasCache:
		return dst, nil
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("httpc: get %s: status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("httpc: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, name+".part-*")
	if err != nil {
		return "", fmt.Errorf("httpc: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("httpc: read %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("httpc: write %s: %w", dst, err)
	}

	// Stamp the file with the server's time so revalidation compares like
	// with like.
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		os.Chtimes(tmp.Name(), lm, lm)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("httpc: rename: %w", err)
	}
	return dst, nil
}
