package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/vizbase/internal/verify"
)

// URLOption tunes URL captures.
type URLOption func(*urlOptions)

type urlOptions struct {
	allowPrivate bool
	client       *http.Client
}

// AllowPrivateHosts disables the loopback and metadata host checks.
func AllowPrivateHosts() URLOption {
	return func(o *urlOptions) {
		o.allowPrivate = true
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) URLOption {
	return func(o *urlOptions) {
		o.client = c
	}
}

// URL returns a capture that resolves a data: URI or downloads an http(s) URL.
// Only PNG payloads are accepted.
func URL(rawURL string, opts ...URLOption) verify.CaptureFunc {
	o := urlOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return func(ctx context.Context) ([]byte, error) {
		var data []byte
		var err error
		if strings.HasPrefix(rawURL, "data:") {
			data, err = decodeDataURI(rawURL)
		} else {
			data, err = fetchHTTP(ctx, rawURL, o)
		}
		if err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		if ct := http.DetectContentType(data); ct != "image/png" {
			return nil, fmt.Errorf("capture: content is %s, want image/png", ct)
		}
		return data, nil
	}
}

// decodeDataURI parses a data:image/png;base64,<data> URI.
func decodeDataURI(uri string) ([]byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}
	if mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]; mime != "image/png" {
		return nil, fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("image too large: %d bytes (max %d)", len(data), MaxImageSize)
	}
	return data, nil
}

// fetchHTTP downloads an image from an HTTP/HTTPS URL with host checks.
func fetchHTTP(ctx context.Context, rawURL string, o urlOptions) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if !o.allowPrivate {
		if err := checkBlockedHost(parsed.Hostname()); err != nil {
			return nil, err
		}
	}

	client := o.client
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				if o.allowPrivate {
					return nil
				}
				return checkBlockedHost(req.URL.Hostname())
			},
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("image too large: exceeds %d bytes", MaxImageSize)
	}
	return data, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}
