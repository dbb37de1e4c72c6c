// Package report defines the accessibility report an audit produces: the
// Issue record, its category and priority tiers, and the cacheable
// {summary, report} pair.
package report

// Category names the evidence channel that produced an issue. It is set by
// the producing stage and never changed afterwards.
type Category string

const (
	CategorySyntax      Category = "syntax"
	CategorySemantic    Category = "semantic"
	CategoryInteraction Category = "interaction"
	CategoryVisual      Category = "visual"
)

// Priority is the fix-priority tier of an issue.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// PlaceholderFix marks a fix slot that has not been generated yet. An issue
// carrying it is treated as unfixed.
const PlaceholderFix = "<!-- Fix -->"

// Evidence is one representative (markup, selector) pair of a grouped issue.
type Evidence struct {
	HTML   string `json:"html"`
	Target string `json:"target"`
}

// Issue is a classified, enriched, report-ready accessibility problem.
type Issue struct {
	Rule             string     `json:"rule"`
	Category         Category   `json:"category"`
	Description      string     `json:"description"`
	WCAGSC           string     `json:"wcag_sc"`
	WCAGTitle        string     `json:"wcag_title,omitempty"`
	GIGWCheckpoint   string     `json:"gigw_checkpoint,omitempty"`
	NationalPriority string     `json:"national_priority,omitempty"`
	FixPriority      Priority   `json:"fix_priority"`
	HTMLSnippet      string     `json:"html_snippet"`
	Selector         string     `json:"selector,omitempty"`
	AIExplanation    string     `json:"ai_explanation,omitempty"`
	AIFixedCode      string     `json:"ai_fixed_code,omitempty"`
	Occurrences      int        `json:"total_occurrences,omitempty"` // syntax only
	Evidence         []Evidence `json:"code_snippets,omitempty"`
}

// HasFix reports whether the issue already carries a generated fix.
// A fix, once set, is never regenerated.
func (i *Issue) HasFix() bool {
	return i.AIFixedCode != "" && i.AIFixedCode != PlaceholderFix
}

// Summary aggregates a report.
type Summary struct {
	Total int `json:"total"`
}

// Result is the {summary, report} pair stored in the caches and returned
// to callers.
type Result struct {
	Summary Summary `json:"summary"`
	Report  []Issue `json:"report"`
}

// NewResult builds a Result whose summary matches the issue list.
func NewResult(issues []Issue) Result {
	if issues == nil {
		issues = []Issue{}
	}
	return Result{Summary: Summary{Total: len(issues)}, Report: issues}
}
