// Package source implements the remote gallery provider over HTTP.
//
// The provider exposes three endpoints relative to a base URL:
//
//	GET  {base}/api/galleries/{id}         gallery metadata with "pages[].url"
//	GET  <page url>                        page bytes
//	POST {base}/api/galleries/{id}/cancel  advisory cancel of server-side work
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ytget/manga-reader/internal/download"
	"github.com/ytget/manga-reader/internal/logger"
)

// Defaults
const (
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "manga-reader"
	DefaultMaxPageBytes = 64 << 20
	maxMetadataBytes    = 8 << 20
)

// ErrBadMetadata is returned when the gallery metadata cannot be parsed.
var ErrBadMetadata = errors.New("malformed gallery metadata")

// Gallery is the parsed gallery metadata
type Gallery struct {
	ID    string
	Title string
	URLs  []string
}

// Options configures an HTTPSource
type Options struct {
	Client       *http.Client
	UserAgent    string
	MaxPageBytes int64
}

// HTTPSource talks to a gallery server.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
	ua     string
	limit  int64
}

var _ download.Source = (*HTTPSource)(nil)

// NewHTTPSource creates a source rooted at baseURL.
func NewHTTPSource(baseURL string, opts Options) (*HTTPSource, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid source url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid source url %q: scheme must be http or https", baseURL)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	limit := opts.MaxPageBytes
	if limit <= 0 {
		limit = DefaultMaxPageBytes
	}
	return &HTTPSource{base: base, client: client, ua: ua, limit: limit}, nil
}

// Gallery fetches and parses the metadata of a gallery.
func (s *HTTPSource) Gallery(ctx context.Context, galleryID string) (*Gallery, error) {
	endpoint := s.endpoint(galleryID, "")
	body, err := s.get(ctx, endpoint, maxMetadataBytes)
	if err != nil {
		return nil, err
	}
	return parseGallery(s.base, galleryID, body)
}

// ResolvePageURLs lists the absolute page URLs of a gallery in reading order.
func (s *HTTPSource) ResolvePageURLs(ctx context.Context, galleryID string) ([]string, error) {
	g, err := s.Gallery(ctx, galleryID)
	if err != nil {
		return nil, err
	}
	logger.Debug("gallery resolved",
		logger.KeyGalleryID, galleryID,
		logger.KeyPages, len(g.URLs),
		"title", g.Title)
	return g.URLs, nil
}

// FetchPage downloads one page. Missing pages wrap download.ErrPageUnavailable.
func (s *HTTPSource) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	return s.get(ctx, pageURL, s.limit)
}

// CancelRemote asks the server to drop any work queued for the gallery.
func (s *HTTPSource) CancelRemote(ctx context.Context, galleryID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(galleryID, "cancel"), nil)
	if err != nil {
		return fmt.Errorf("build cancel request: %w", err)
	}
	req.Header.Set("User-Agent", s.ua)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("cancel request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("cancel returned %s", resp.Status)
	}
	return nil
}

func (s *HTTPSource) endpoint(galleryID, action string) string {
	ref := "api/galleries/" + url.PathEscape(galleryID)
	if action != "" {
		ref += "/" + action
	}
	return s.base.String() + ref
}

func (s *HTTPSource) get(ctx context.Context, target string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.ua)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%s returned %s: %w", target, resp.Status, download.ErrPageUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s returned %s", target, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", target, limit, download.ErrPageUnavailable)
	}
	return body, nil
}

// parseGallery reads {"title": ..., "pages": [{"url": ...} | "url", ...]}.
// Relative page URLs are resolved against base.
func parseGallery(base *url.URL, galleryID string, body []byte) (*Gallery, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrBadMetadata)
	}

	pages := gjson.GetBytes(body, "pages")
	if !pages.IsArray() {
		return nil, fmt.Errorf("%w: missing pages array", ErrBadMetadata)
	}

	g := &Gallery{
		ID:    galleryID,
		Title: gjson.GetBytes(body, "title").String(),
	}
	var parseErr error
	pages.ForEach(func(_, value gjson.Result) bool {
		raw := value.String()
		if value.IsObject() {
			raw = value.Get("url").String()
		}
		if raw == "" {
			parseErr = fmt.Errorf("%w: page %d has no url", ErrBadMetadata, len(g.URLs))
			return false
		}
		ref, err := url.Parse(raw)
		if err != nil {
			parseErr = fmt.Errorf("%w: page %d: %v", ErrBadMetadata, len(g.URLs), err)
			return false
		}
		g.URLs = append(g.URLs, base.ResolveReference(ref).String())
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return g, nil
}
