package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "rssreader/1.0"
	maxBodySize      = 10 << 20
)

var utf8BOM = []byte("\xef\xbb\xbf")

var xmlEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*\bencoding=["']([A-Za-z0-9._:-]+)["']`)

// HTTPFetcher downloads feeds over HTTP and returns them as UTF-8 text
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

type Option func(*HTTPFetcher)

// WithClient replaces the default client, its Timeout included
func WithClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url, decodes the body to UTF-8 and checks that it is RSS
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}

	text, err := decode(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", url, err)
	}

	if t := gofeed.DetectFeedType(strings.NewReader(text)); t != gofeed.FeedTypeRSS {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFeed, url)
	}
	return text, nil
}

// decode converts raw to UTF-8. The charset comes from the Content-Type
// header, then the XML declaration. Undeclared documents are UTF-8 when
// they are valid UTF-8.
func decode(raw []byte, contentType string) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !hasCharset(contentType) {
		if m := xmlEncoding.FindSubmatch(raw); m != nil {
			contentType = "text/xml; charset=" + string(m[1])
		} else if utf8.Valid(raw) {
			return string(raw), nil
		}
	}

	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func hasCharset(contentType string) bool {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := params["charset"]
	return ok
}
