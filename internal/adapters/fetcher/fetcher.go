// Package fetcher retrieves external cache source references over HTTP.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 30 * time.Second

const maxBodySize = 16 << 20

// HTTPFetcher implements ports.ExternalFetcher by mapping
// scheme://org/project/path to {base}/{scheme}/{org}/{project}/{path}.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// New creates an HTTPFetcher. An empty baseURL produces an unavailable fetcher.
func New(baseURL string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Available reports whether a base URL is configured.
func (f *HTTPFetcher) Available() bool {
	return f.baseURL != ""
}

// Fetch downloads the content behind ref.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref domain.ExternalReference) (string, error) {
	if !f.Available() {
		return "", domain.Annotate(domain.ErrIntegrationUnavailable, "uri", ref.String())
	}

	endpoint := f.URL(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrSourceReadFailed, err.Error()), "url", endpoint)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrSourceReadFailed, err.Error()), "uri", ref.String())
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := zerr.Wrap(domain.ErrSourceReadFailed, "fetch returned status "+strconv.Itoa(resp.StatusCode))
		return "", zerr.With(err, "uri", ref.String())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrSourceReadFailed, err.Error()), "uri", ref.String())
	}
	return string(body), nil
}

// URL returns the address ref is fetched from.
func (f *HTTPFetcher) URL(ref domain.ExternalReference) string {
	parts := []string{f.baseURL, url.PathEscape(ref.Scheme), url.PathEscape(ref.Org), url.PathEscape(ref.Project)}
	for seg := range strings.SplitSeq(ref.Path, "/") {
		parts = append(parts, url.PathEscape(seg))
	}
	return strings.Join(parts, "/")
}
