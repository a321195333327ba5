// Package catalog implements a source provider backed by the stockyard catalog service.
package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/engine/version"
	"go.trai.ch/zerr"
)

// DefaultTimeout bounds every catalog request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

const (
	versionsPath = "/api/v1/versions"
	resolvePath  = "/api/v1/resolve"
	listPath     = "/api/v1/list"
)

type versionsResponse struct {
	Versions []struct {
		Version  string `json:"version"`
		Location string `json:"location"`
	} `json:"versions"`
}

type listResponse struct {
	Items []struct {
		Name     string   `json:"name"`
		Versions []string `json:"versions"`
	} `json:"items"`
}

// Client implements ports.SourceProvider over the stockyard HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// New creates a Client for the catalog at baseURL.
// A non-positive timeout selects DefaultTimeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind reports the stockyard source.
func (c *Client) Kind() domain.SourceKind {
	return domain.SourceStockyard
}

// BaseURL returns the catalog address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListVersions asks the catalog for every published version of name.
// An unknown name (404) yields an empty list.
func (c *Client) ListVersions(ctx context.Context, typ domain.DefinitionType, name string) ([]domain.VersionLocation, error) {
	body, found, err := c.get(ctx, versionsPath, url.Values{"type": {typ.String()}, "name": {name}})
	if err != nil || !found {
		return nil, err
	}

	var resp versionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrCatalogParseFailed, err.Error()), "endpoint", versionsPath)
	}

	out := make([]domain.VersionLocation, 0, len(resp.Versions))
	for _, v := range resp.Versions {
		if v.Version == "" {
			continue
		}
		loc := v.Location
		if loc == "" {
			loc = c.resolveURL(typ, name, v.Version)
		}
		out = append(out, domain.VersionLocation{Version: v.Version, Location: loc})
	}
	return out, nil
}

// Open downloads the definition body of an exact version.
func (c *Client) Open(ctx context.Context, typ domain.DefinitionType, name, ver string) ([]byte, string, error) {
	query := url.Values{"type": {typ.String()}, "name": {name}, "version": {ver}}
	body, found, err := c.get(ctx, resolvePath, query)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", zerr.With(zerr.Wrap(domain.ErrNotFound, name+"@"+ver), "source", domain.SourceStockyard.String())
	}
	return body, c.resolveURL(typ, name, ver), nil
}

// List returns every definition of typ the catalog publishes.
func (c *Client) List(ctx context.Context, typ domain.DefinitionType) ([]domain.AvailableDefinition, error) {
	body, found, err := c.get(ctx, listPath, url.Values{"type": {typ.String()}})
	if err != nil || !found {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrCatalogParseFailed, err.Error()), "endpoint", listPath)
	}

	out := make([]domain.AvailableDefinition, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Name == "" {
			continue
		}
		out = append(out, domain.AvailableDefinition{
			Name:     item.Name,
			Type:     typ,
			Versions: version.Sort(item.Versions),
			Sources:  []domain.SourceKind{domain.SourceStockyard},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// get performs a GET request. found is false on 404.
func (c *Client) get(ctx context.Context, path string, query url.Values) (body []byte, found bool, err error) {
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(domain.ErrCatalogRequestFailed, err.Error()), "url", endpoint)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(domain.ErrCatalogRequestFailed, err.Error()), "url", c.baseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		err := zerr.Wrap(domain.ErrCatalogRequestFailed, "catalog returned status "+strconv.Itoa(resp.StatusCode))
		return nil, false, zerr.With(err, "url", endpoint)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(domain.ErrCatalogRequestFailed, err.Error()), "url", endpoint)
	}
	return body, true, nil
}

func (c *Client) resolveURL(typ domain.DefinitionType, name, ver string) string {
	query := url.Values{"type": {typ.String()}, "name": {name}, "version": {ver}}
	return c.baseURL + resolvePath + "?" + query.Encode()
}
