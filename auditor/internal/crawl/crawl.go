// Package crawl discovers the pages of one site breadth-first, following
// same-host anchors.
package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/a11yaudit/auditor/internal/guard"
)

// DefaultMaxPages bounds a crawl when the caller gives no limit.
const DefaultMaxPages = 50

// IgnoredExtensions are never queued.
var IgnoredExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".css",
	".js", ".ico", ".xml", ".json", ".mp4", ".mp3", ".wav",
	".zip", ".tar", ".gz", ".woff", ".woff2", ".ttf", ".eot",
}

const maxBody = 5 << 20

// Crawler walks a site.
type Crawler struct {
	client    *http.Client
	guard     *guard.Input
	userAgent string
	logger    *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cr *Crawler) { cr.client = c }
}

// WithGuard sets the admission check applied to the start URL.
func WithGuard(g *guard.Input) Option {
	return func(cr *Crawler) { cr.guard = g }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cr *Crawler) { cr.userAgent = ua }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cr *Crawler) { cr.logger = l }
}

// New returns a Crawler.
func New(opts ...Option) *Crawler {
	c := &Crawler{
		client:    &http.Client{Timeout: 15 * time.Second},
		guard:     guard.NewInput(),
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Crawl returns up to maxPages same-site URLs in discovery order, the
// start URL first. Pages that fail to load are skipped. The only error is
// a rejected start URL.
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	start, err := c.guard.Validate(startURL)
	if err != nil {
		return nil, err
	}
	start = strings.TrimRight(start, "/")
	su, err := url.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("crawl: parse start url: %w", err)
	}
	base := normalizeHost(su.Host)

	found := []string{start}
	seen := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 && len(found) < maxPages {
		if ctx.Err() != nil {
			break
		}
		current := queue[0]
		queue = queue[1:]

		hrefs, err := c.links(ctx, current)
		if err != nil {
			c.logger.WarnContext(ctx, "crawl: page skipped", "url", current, "error", err)
			continue
		}

		for _, next := range hrefs {
			if seen[next] || !c.admit(next, base) {
				continue
			}
			seen[next] = true
			found = append(found, next)
			queue = append(queue, next)
			if len(found) >= maxPages {
				break
			}
		}
	}

	c.logger.InfoContext(ctx, "crawl: done", "url", start, "pages", len(found))
	return found, nil
}

func (c *Crawler) admit(raw, base string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if normalizeHost(u.Host) != base {
		return false
	}
	lower := strings.ToLower(raw)
	for _, ext := range IgnoredExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	return true
}

// links fetches page and returns its anchors resolved against it, without
// fragments or trailing slashes.
func (c *Crawler) links(ctx context.Context, page string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}

	pageURL := resp.Request.URL
	var out []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := pageURL.ResolveReference(ref)
		abs.Fragment = ""
		abs.RawFragment = ""
		out = append(out, strings.TrimRight(abs.String(), "/"))
	})
	return out, nil
}

func normalizeHost(h string) string {
	return strings.ReplaceAll(strings.ToLower(h), "www.", "")
}
