// Package guard holds the two trust boundaries of an audit: admission of
// the target URL before any work begins, and sanitization of generated fix
// markup before it reaches a report consumer.
package guard

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBlocklist is matched as a substring of the URL host.
var DefaultBlocklist = []string{
	"malicious-site.com",
	"phishing.org",
	"example-blocked.net",
}

// AdmissionError rejects a target URL. It is fatal to the audit run.
type AdmissionError struct {
	URL    string
	Reason string
}

func (e *AdmissionError) Error() string {
	return e.Reason
}

// Input validates audit targets.
type Input struct {
	blocklist []string
}

// NewInput returns an Input guard over DefaultBlocklist plus extra entries.
func NewInput(extra ...string) *Input {
	bl := make([]string, 0, len(DefaultBlocklist)+len(extra))
	bl = append(bl, DefaultBlocklist...)
	for _, e := range extra {
		if e = strings.TrimSpace(strings.ToLower(e)); e != "" {
			bl = append(bl, e)
		}
	}
	return &Input{blocklist: bl}
}

// Validate admits rawURL or returns an *AdmissionError. The returned URL is
// the trimmed input; nothing else about it is rewritten.
func (g *Input) Validate(rawURL string) (string, error) {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return "", &AdmissionError{URL: rawURL, Reason: "URL is missing"}
	}

	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "", &AdmissionError{URL: rawURL, Reason: "Invalid URL format. Must start with http:// or https://"}
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return "", &AdmissionError{URL: rawURL, Reason: fmt.Sprintf("URL parsing failed: %v", err)}
	}

	host := strings.ToLower(parsed.Host)
	for _, blocked := range g.blocklist {
		if strings.Contains(host, blocked) {
			return "", &AdmissionError{URL: rawURL, Reason: fmt.Sprintf("Domain %s is in the blocklist.", parsed.Host)}
		}
	}

	return u, nil
}
