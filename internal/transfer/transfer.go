// Package transfer downloads user-supplied files from the chat platform.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 60 * time.Second
	// DefaultMaxBytes bounds a single download; the Bot API serves at most
	// 20 MB per file.
	DefaultMaxBytes = 20 << 20
)

// ErrEmptyBody reports a successful response without content.
var ErrEmptyBody = errors.New("download returned no data")

// Downloader fetches files over HTTP.
type Downloader struct {
	client   *http.Client
	maxBytes int64
}

// Option customizes a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithMaxBytes bounds the accepted response size.
func WithMaxBytes(n int64) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.maxBytes = n
		}
	}
}

// NewDownloader constructs a Downloader.
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		client:   &http.Client{Timeout: defaultTimeout},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads url and returns its body.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("download url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read download: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("download exceeds %d bytes", d.maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyBody
	}

	return data, nil
}
