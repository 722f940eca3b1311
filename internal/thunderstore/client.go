// Package thunderstore is the client for the upstream mod repository's
// community and package listing endpoints.
package thunderstore

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/phuslu/log"

	"github.com/huyhandes/tsnuget/internal/config"
)

const userAgent = "tsnuget/1.0.0"

// ErrUpstream is matched by every error returned from the client.
var ErrUpstream = errors.New("upstream fetch failed")

// FetchError describes a failed upstream request.
type FetchError struct {
	URL    string
	Status int // zero when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d from %s", e.Status, e.URL)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

type Pagination struct {
	NextLink *string `json:"next_link"`
}

type Community struct {
	Identifier string `json:"identifier"`
}

type CommunityList struct {
	Pagination Pagination  `json:"pagination"`
	Results    []Community `json:"results"`
}

type Package struct {
	FullName     string    `json:"full_name"`
	PackageURL   string    `json:"package_url"`
	IsDeprecated bool      `json:"is_deprecated"`
	Versions     []Version `json:"versions"`
}

type Version struct {
	Description   string   `json:"description"`
	Icon          string   `json:"icon"`
	VersionNumber string   `json:"version_number"`
	DownloadURL   string   `json:"download_url"`
	Downloads     uint32   `json:"downloads"`
	DateCreated   string   `json:"date_created"`
	WebsiteURL    string   `json:"website_url"`
	Dependencies  []string `json:"dependencies"`
}

// Buffer pool for reducing allocations; package lists run to tens of megabytes
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	dialTimeout := 10 * time.Second
	if cfg.ConnectTimeout > 0 {
		dialTimeout = cfg.ConnectTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.DisableSSLVerification,
		},
		// The read timeout bounds the wait for headers only; package lists
		// take far longer than that to stream.
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   120 * time.Second, // community package lists are large
	}

	return &Client{
		baseURL:    cfg.UpstreamURL,
		httpClient: httpClient,
	}
}

// ListCommunities walks the paginated community listing until the upstream
// reports no next page. Pages are fetched one after another since each page
// carries the link to the next.
func (c *Client) ListCommunities(ctx context.Context) ([]string, error) {
	next := c.baseURL + "/api/experimental/community/"
	seen := make(map[string]struct{})
	var communities []string

	for next != "" {
		if _, dup := seen[next]; dup {
			return nil, &FetchError{URL: next, Err: errors.New("pagination loop")}
		}
		seen[next] = struct{}{}

		var page CommunityList
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, community := range page.Results {
			communities = append(communities, community.Identifier)
		}

		log.Debug().
			Str("page", next).
			Int("results", len(page.Results)).
			Msg("Fetched community page")

		if page.Pagination.NextLink == nil || *page.Pagination.NextLink == "" {
			break
		}
		resolved, err := c.resolve(next, *page.Pagination.NextLink)
		if err != nil {
			return nil, &FetchError{URL: *page.Pagination.NextLink, Err: err}
		}
		next = resolved
	}

	return communities, nil
}

// ListPackages fetches every package listed in one community.
func (c *Client) ListPackages(ctx context.Context, community string) ([]Package, error) {
	target := c.baseURL + "/c/" + url.PathEscape(community) + "/api/v1/package/"

	var packages []Package
	if err := c.getJSON(ctx, target, &packages); err != nil {
		return nil, err
	}
	return packages, nil
}

// resolve makes next_link absolute; the upstream normally sends absolute URLs.
func (c *Client) resolve(current, link string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) getJSON(ctx context.Context, target string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &FetchError{URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &FetchError{URL: target, Status: resp.StatusCode}
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()

	if _, err := buf.ReadFrom(bufio.NewReaderSize(resp.Body, 64*1024)); err != nil {
		return &FetchError{URL: target, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if err := sonic.ConfigStd.Unmarshal(buf.Bytes(), out); err != nil {
		return &FetchError{URL: target, Err: fmt.Errorf("failed to parse JSON response: %w", err)}
	}
	return nil
}
