package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"harvest/internal/faults"
)

// Fetcher retrieves the payload behind target. Targets are slash separated;
// the first segment names the resource ("grades", "meeting/m1").
type Fetcher interface {
	Fetch(ctx context.Context, target string) (Envelope, error)
}

// ResourceOf returns the resource tag of target.
func ResourceOf(target string) string {
	target = strings.Trim(strings.TrimSpace(target), "/")
	if idx := strings.Index(target, "/"); idx >= 0 {
		return target[:idx]
	}
	return target
}

// DefaultMaxBodyBytes caps response bodies unless WithMaxBodyBytes says
// otherwise.
const DefaultMaxBodyBytes = 16 << 20

// HTTPFetcher fetches targets relative to a base URL.
type HTTPFetcher struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	maxBody    int64
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithMaxBodyBytes sets the largest response body accepted. Larger bodies
// fail rather than being parsed truncated.
func WithMaxBodyBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(agent string) Option {
	return func(f *HTTPFetcher) {
		f.userAgent = strings.TrimSpace(agent)
	}
}

// NewHTTPFetcher creates a fetcher for baseURL.
func NewHTTPFetcher(baseURL string, timeout time.Duration, opts ...Option) (*HTTPFetcher, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, faults.Wrap(faults.ErrConfiguration, "fetch", "http", "base url required", nil)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &HTTPFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxBody:    DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch performs a GET for target. 404 and 410 responses mean the source no
// longer has the entity and are reported as faults.ErrUpstreamFailure.
func (f *HTTPFetcher) Fetch(ctx context.Context, target string) (Envelope, error) {
	target = strings.Trim(strings.TrimSpace(target), "/")
	url := f.baseURL + "/" + target
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Envelope{}, faults.Wrap(faults.ErrUsage, "fetch", "build request", target, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Envelope{}, faults.Wrap(faults.ErrConnectivity, "fetch", "get", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return Envelope{}, faults.Wrap(faults.ErrUpstreamFailure, "fetch", "get",
			fmt.Sprintf("%s: status %d", target, resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Envelope{}, faults.Wrap(faults.ErrConnectivity, "fetch", "get",
			fmt.Sprintf("%s: status %d", target, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return Envelope{}, faults.Wrap(faults.ErrConnectivity, "fetch", "read body", target, err)
	}
	if int64(len(body)) > f.maxBody {
		return Envelope{}, faults.Wrap(faults.ErrConnectivity, "fetch", "read body",
			fmt.Sprintf("%s: body exceeds %d bytes", target, f.maxBody), nil)
	}
	return NewEnvelope(ResourceOf(target), body)
}

// DirFetcher serves targets from files under a directory: target "meeting/m1"
// is read from <dir>/meeting/m1.json or <dir>/meeting/m1.html.
type DirFetcher struct {
	Dir string
}

// Fetch reads the fixture for target. A missing fixture is reported as
// faults.ErrUpstreamFailure, the same way a live source reports a missing
// entity.
func (f DirFetcher) Fetch(ctx context.Context, target string) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	target = strings.Trim(strings.TrimSpace(target), "/")
	if target == "" || strings.Contains(target, "..") {
		return Envelope{}, faults.Wrap(faults.ErrUsage, "fetch", "dir", fmt.Sprintf("invalid target %q", target), nil)
	}
	base := filepath.Join(f.Dir, filepath.FromSlash(target))
	for _, ext := range []string{".json", ".html"} {
		data, err := os.ReadFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Envelope{}, faults.Wrap(faults.ErrConnectivity, "fetch", "read fixture", base+ext, err)
		}
		return NewEnvelope(ResourceOf(target), data)
	}
	return Envelope{}, faults.Wrap(faults.ErrUpstreamFailure, "fetch", "dir", fmt.Sprintf("no fixture for %s", target), nil)
}
