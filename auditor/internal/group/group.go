// Package group aggregates classified findings into one syntax issue per
// rule, enriched from the rule table.
package group

import (
	"cmp"
	"slices"

	"github.com/hazyhaar/a11yaudit/auditor/internal/rules"
	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/report"
)

// DefaultEvidenceCap bounds the evidence kept per rule. Nodes are ordered
// by target, then markup, and those past the cap are discarded.
const DefaultEvidenceCap = 5

// Grouper groups findings by rule.
type Grouper struct {
	EvidenceCap int
}

// Group uses DefaultEvidenceCap.
func Group(findings []evidence.Violation) []report.Issue {
	return Grouper{EvidenceCap: DefaultEvidenceCap}.Group(findings)
}

// Group returns one issue per rule, in first-seen order. Occurrences sum
// each finding's affected-node count (one when unknown). The first
// description wins. Evidence is the first EvidenceCap nodes in (target,
// markup) order, so the kept set does not depend on finding order. The
// first evidence item becomes the issue's snippet and selector.
func (g Grouper) Group(findings []evidence.Violation) []report.Issue {
	limit := g.EvidenceCap
	if limit <= 0 {
		limit = DefaultEvidenceCap
	}

	var order []string
	byRule := make(map[string]*report.Issue)

	for _, f := range findings {
		rule := f.ID
		if rule == "" {
			rule = "unknown"
		}

		is, ok := byRule[rule]
		if !ok {
			def := rules.Resolve(rule, f.Description)
			is = &report.Issue{
				Rule:             rule,
				Category:         report.CategorySyntax,
				Description:      f.Description,
				WCAGSC:           def.SC,
				WCAGTitle:        def.Title,
				GIGWCheckpoint:   rules.Checkpoint(def.SC),
				NationalPriority: def.NationalPriority,
				FixPriority:      rules.FixPriority(def.NationalPriority),
			}
			byRule[rule] = is
			order = append(order, rule)
		}

		n := f.NodesAffected
		if n <= 0 {
			n = 1
		}
		is.Occurrences += n

		for _, nd := range f.Nodes {
			is.Evidence = append(is.Evidence, report.Evidence{HTML: nd.HTML, Target: nd.Target})
		}
	}

	out := make([]report.Issue, 0, len(order))
	for _, rule := range order {
		is := byRule[rule]
		slices.SortFunc(is.Evidence, func(a, b report.Evidence) int {
			return cmp.Or(cmp.Compare(a.Target, b.Target), cmp.Compare(a.HTML, b.HTML))
		})
		if len(is.Evidence) > limit {
			is.Evidence = slices.Clip(is.Evidence[:limit])
		}
		if len(is.Evidence) > 0 {
			is.HTMLSnippet = is.Evidence[0].HTML
			is.Selector = is.Evidence[0].Target
		}
		out = append(out, *is)
	}
	return out
}
