package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/a11yaudit/evidence"
)

// DefaultMaxBody caps the bytes Static reads from a page.
const DefaultMaxBody = 10 << 20

// Static scans a page over HTTP without rendering it. It yields markup
// and DOM content only: no screenshot, focus trace or violations.
type Static struct {
	client    *http.Client
	maxBody   int64
	linkLimit int
	userAgent string
	logger    *slog.Logger
}

// StaticOption configures a Static scanner.
type StaticOption func(*Static)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) StaticOption {
	return func(s *Static) { s.client = c }
}

// WithMaxBody caps the response body size.
func WithMaxBody(n int64) StaticOption {
	return func(s *Static) { s.maxBody = n }
}

// WithLinkLimit caps extracted links.
func WithLinkLimit(n int) StaticOption {
	return func(s *Static) { s.linkLimit = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) StaticOption {
	return func(s *Static) { s.logger = l }
}

// NewStatic returns a Static scanner.
func NewStatic(opts ...StaticOption) *Static {
	s := &Static{
		client:    &http.Client{Timeout: 30 * time.Second},
		maxBody:   DefaultMaxBody,
		linkLimit: 50,
		userAgent: "a11yaudit/1.0 (+static)",
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scan fetches pageURL. Transport failures and HTTP errors are returned
// as *NavigationError.
func (s *Static) Scan(ctx context.Context, pageURL string) (*evidence.Evidence, error) {
	body, final, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, &NavigationError{URL: pageURL, Attempts: []error{err}}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &NavigationError{URL: pageURL, Attempts: []error{fmt.Errorf("parse: %w", err)}}
	}

	ev := &evidence.Evidence{
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		HTML:       string(body),
		DOMContent: extractContent(doc, final, s.linkLimit),
	}
	s.logger.InfoContext(ctx, "scanner: page fetched",
		"url", pageURL, "bytes", len(body), "links", len(ev.DOMContent.Links))
	return ev, nil
}

func (s *Static) fetch(ctx context.Context, pageURL string) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	return body, resp.Request.URL, nil
}

// extractContent mirrors the in-browser extraction on a parsed document.
func extractContent(doc *goquery.Document, base *url.URL, linkLimit int) evidence.DOMContent {
	dc := evidence.DOMContent{
		Links:       []evidence.Link{},
		Headings:    []evidence.Heading{},
		Interactive: []evidence.Interactive{},
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(dc.Links) >= linkLimit {
			return false
		}
		href := a.AttrOr("href", "")
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil && base != nil {
			href = base.ResolveReference(ref).String()
		}
		text := collapse(a.Text())
		if text == "" {
			text = "No Text"
		}
		dc.Links = append(dc.Links, evidence.Link{
			Text:     text,
			Href:     href,
			HTML:     truncate(outerHTML(a), 200),
			Selector: selectorOf(a),
		})
		return true
	})

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, h *goquery.Selection) {
		dc.Headings = append(dc.Headings, evidence.Heading{
			Level: strings.ToUpper(goquery.NodeName(h)),
			Text:  collapse(h.Text()),
		})
	})

	doc.Find(`button, input, select, textarea, [role="button"], a`).Each(func(_ int, el *goquery.Selection) {
		text := collapse(el.Text())
		if text == "" {
			text = strings.TrimSpace(el.AttrOr("value", el.AttrOr("aria-label", "")))
		}
		dc.Interactive = append(dc.Interactive, evidence.Interactive{
			Tag:  goquery.NodeName(el),
			Text: text,
			HTML: truncate(outerHTML(el), 300),
		})
	})
	return dc
}

func selectorOf(s *goquery.Selection) string {
	if id := s.AttrOr("id", ""); id != "" {
		return "#" + id
	}
	if cls := strings.Fields(s.AttrOr("class", "")); len(cls) > 0 {
		return "." + cls[0]
	}
	return goquery.NodeName(s)
}

func outerHTML(s *goquery.Selection) string {
	h, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return h
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
