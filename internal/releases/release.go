// Package releases fetches firmware releases from GitHub and turns them into
// a Catalog of versions and flashable layouts.
package releases

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/logging"
)

// Release represents a GitHub release.
type Release struct {
	TagName     string  `json:"tag_name"`
	Name        string  `json:"name"`
	Draft       bool    `json:"draft"`
	Prerelease  bool    `json:"prerelease"`
	PublishedAt string  `json:"published_at"`
	Assets      []Asset `json:"assets"`
}

// Asset represents a release asset.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Client fetches release information from the GitHub releases API.
type Client struct {
	apiURL    string
	extension string
	http      *resty.Client

	hc        *http.Client
	timeout   time.Duration
	userAgent string
}

// Option configures a Client. Options may be given in any order.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithTimeout bounds each request. Zero keeps the HTTP client's own
// timeout, which is none by default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithExtension sets the asset suffix that marks a layout (default ".hex").
func WithExtension(ext string) Option {
	return func(c *Client) {
		c.extension = ext
	}
}

// NewClient creates a client for the releases endpoint at apiURL.
func NewClient(apiURL string, opts ...Option) *Client {
	c := &Client{
		apiURL:    apiURL,
		extension: ".hex",
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = resty.New()
	if c.hc != nil {
		c.http = resty.NewWithClient(c.hc)
	}
	if c.timeout > 0 {
		c.http.SetTimeout(c.timeout)
	}
	if c.userAgent != "" {
		c.http.SetHeader("User-Agent", c.userAgent)
	}
	c.http.SetHeader("Accept", "application/vnd.github.v3+json")
	return c
}

// FetchReleases performs one GET on the releases endpoint.
func (c *Client) FetchReleases(ctx context.Context) ([]Release, error) {
	const op = "fetch releases"
	log := logging.For("releases")
	log.WithField("url", c.apiURL).Debug("fetching releases")

	resp, err := c.http.R().SetContext(ctx).Get(c.apiURL)
	if err != nil {
		return nil, lerrors.E(op, lerrors.ErrNetwork, c.apiURL, err)
	}
	if !resp.IsSuccess() {
		return nil, lerrors.StatusError(op, c.apiURL, resp.StatusCode())
	}

	var releases []Release
	if err := json.Unmarshal(resp.Body(), &releases); err != nil {
		return nil, lerrors.E(op, lerrors.ErrInvalid, c.apiURL, err)
	}
	log.WithField("count", len(releases)).Debug("releases fetched")
	return releases, nil
}

// FetchCatalog fetches releases and builds a Catalog from them. On error
// the zero Catalog is returned and callers keep whatever they had.
func (c *Client) FetchCatalog(ctx context.Context) (Catalog, error) {
	releases, err := c.FetchReleases(ctx)
	if err != nil {
		return Catalog{}, err
	}
	return BuildCatalog(releases, c.extension), nil
}
