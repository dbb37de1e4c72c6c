// Package fix fills every report issue with an explanation and corrected
// markup, and sanitizes every fix payload before it leaves the pipeline.
package fix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hazyhaar/a11yaudit/auditor/internal/guard"
	"github.com/hazyhaar/a11yaudit/auditor/internal/oracle"
	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/report"
)

// Fallbacks used when the oracle cannot produce a fix.
const (
	ManualExplanation = "Manual review recommended."
	ManualFix         = "<!-- Manual Review -->"
)

const (
	visualSnippet  = "Visual Detection"
	missingSnippet = "Code not available"
)

var quoted = regexp.MustCompile(`'(.*?)'`)

// Fixer generates fixes through the oracle.
type Fixer struct {
	oracle oracle.Oracle
	logger *slog.Logger
}

// Option configures a Fixer.
type Option func(*Fixer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fixer) { f.logger = l }
}

// New returns a Fixer. A nil oracle behaves like a failing one.
func New(o oracle.Oracle, opts ...Option) *Fixer {
	if o == nil {
		o = oracle.Disabled{}
	}
	f := &Fixer{oracle: o, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type fixReply struct {
	Explanation string `json:"explanation"`
	FixedCode   string `json:"fixed_code"`
}

func (r *fixReply) Validate() error {
	if r.Explanation == "" {
		return errors.New("explanation missing")
	}
	if r.FixedCode == "" {
		return errors.New("fixed_code missing")
	}
	return nil
}

// Fix returns a copy of issues in which every entry has a final
// explanation and a sanitized fix. Issues that already carry a fix keep
// it (sanitization still applies). interactive is the captured control
// markup used to locate the element a visual issue describes.
func (f *Fixer) Fix(ctx context.Context, issues []report.Issue, interactive []evidence.Interactive) []report.Issue {
	out := make([]report.Issue, 0, len(issues))
	for _, is := range issues {
		if !is.HasFix() {
			if is.Category == report.CategoryVisual {
				locate(&is, interactive)
			}
			f.generate(ctx, &is)
		}
		f.sanitize(ctx, &is)
		out = append(out, is)
	}
	return out
}

// locate maps a visual issue to markup by the first single-quoted phrase
// in its description.
func locate(is *report.Issue, interactive []evidence.Interactive) {
	if is.HTMLSnippet != "" && !strings.Contains(is.HTMLSnippet, visualSnippet) {
		return
	}
	m := quoted.FindStringSubmatch(is.Description)
	if m == nil || m[1] == "" {
		return
	}
	needle := strings.ToLower(m[1])
	for _, el := range interactive {
		if strings.Contains(strings.ToLower(el.Text), needle) {
			is.HTMLSnippet = el.HTML
			is.Selector = fmt.Sprintf("<%s> containing '%s'", el.Tag, m[1])
			return
		}
	}
}

func hasCode(snippet string) bool {
	return snippet != "" && snippet != missingSnippet && snippet != visualSnippet
}

func (f *Fixer) generate(ctx context.Context, is *report.Issue) {
	var text string
	if hasCode(is.HTMLSnippet) {
		text = fmt.Sprintf(targetedPrompt, is.Rule, is.Description, is.HTMLSnippet)
	} else {
		text = fmt.Sprintf(generalPrompt, is.Rule, is.Description)
	}

	var reply fixReply
	if err := oracle.Ask(ctx, f.oracle, oracle.Prompt{Text: text}, &reply); err != nil {
		f.logger.WarnContext(ctx, "fix: oracle failed, manual review",
			"rule", is.Rule, "category", string(is.Category), "error", err)
		is.AIExplanation = ManualExplanation
		is.AIFixedCode = ManualFix
		return
	}
	is.AIExplanation = reply.Explanation
	is.AIFixedCode = reply.FixedCode
}

func (f *Fixer) sanitize(ctx context.Context, is *report.Issue) {
	clean, changed := guard.Sanitize(is.AIFixedCode)
	if changed {
		f.logger.WarnContext(ctx, "fix: unsafe content removed", "rule", is.Rule)
		is.AIFixedCode = clean
	}
}

const generalPrompt = `You are an Accessibility Expert.
Violation: "%s" - "%s".
I cannot provide the exact code. Provide a general explanation and example fix.
Return JSON: { "explanation": "...", "fixed_code": "..." }
`

const targetedPrompt = `Fix this WCAG Violation.
Rule: %s
Description: %s

BAD CODE SNIPPET:
%s

Task:
1. Explain why this is an issue.
2. Provide the FIXED HTML code (Add CSS styles inline if needed for contrast).

Return JSON: { "explanation": "...", "fixed_code": "..." }
`
