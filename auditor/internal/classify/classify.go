// Package classify prunes raw scanner findings before grouping.
//
// Tier 1 is a set of local heuristics that always run. Tier 2 asks the
// reasoning oracle which findings are real problems; it is off unless
// enabled, can only remove findings, and any failure leaves the Tier 1
// output untouched.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/a11yaudit/auditor/internal/oracle"
	"github.com/hazyhaar/a11yaudit/auditor/internal/rules"
	"github.com/hazyhaar/a11yaudit/evidence"
)

// descriptionLimit truncates descriptions sent to the oracle.
const descriptionLimit = 100

// Classifier runs both tiers.
type Classifier struct {
	oracle   oracle.Oracle
	useModel bool
	logger   *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithModel enables Tier 2.
func WithModel(enabled bool) Option {
	return func(c *Classifier) { c.useModel = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New returns a Classifier consulting o for Tier 2.
func New(o oracle.Oracle, opts ...Option) *Classifier {
	c := &Classifier{oracle: o, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify applies Tier 1, then Tier 2 when enabled and there is
// something left to classify.
func (c *Classifier) Classify(ctx context.Context, findings []evidence.Violation) []evidence.Violation {
	kept := Heuristic(findings)
	c.logger.DebugContext(ctx, "classify: tier 1",
		"in", len(findings), "out", len(kept))

	if !c.useModel || len(kept) == 0 || c.oracle == nil {
		return kept
	}

	filtered, err := c.semantic(ctx, kept)
	if err != nil {
		c.logger.WarnContext(ctx, "classify: tier 2 failed, keeping tier 1 output", "error", err)
		return kept
	}
	c.logger.DebugContext(ctx, "classify: tier 2",
		"in", len(kept), "out", len(filtered))
	return filtered
}

// Heuristic is Tier 1. It drops minor contrast findings, landmark region
// findings, repeated selectors (first wins) and findings without nodes.
// The result never grows and depends only on the input.
//
// Selector dedup keys on Violation.Selector only. The axe scanner leaves it
// empty because several rules routinely fire on one element, so dedup
// applies to producers that report one finding per element. Node targets
// are never compared.
func Heuristic(findings []evidence.Violation) []evidence.Violation {
	out := make([]evidence.Violation, 0, len(findings))
	seen := make(map[string]bool)

	for _, f := range findings {
		if f.ID == "color-contrast" && f.Impact == "minor" {
			continue
		}
		if f.ID == "region" {
			continue
		}
		if f.Selector != "" && seen[f.Selector] {
			continue
		}
		if len(f.Nodes) == 0 {
			continue
		}
		out = append(out, f)
		if f.Selector != "" {
			seen[f.Selector] = true
		}
	}
	return out
}

type findingSummary struct {
	Index       int    `json:"index"`
	Rule        string `json:"rule"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
	WCAGSC      string `json:"wcag_sc"`
}

type keepReply struct {
	KeepIndices []int `json:"keep_indices"`
	n           int
}

func (r *keepReply) Validate() error {
	if r.KeepIndices == nil {
		return fmt.Errorf("keep_indices missing")
	}
	for _, i := range r.KeepIndices {
		if i < 0 || i >= r.n {
			return fmt.Errorf("keep index %d out of range [0,%d)", i, r.n)
		}
	}
	return nil
}

func (c *Classifier) semantic(ctx context.Context, findings []evidence.Violation) ([]evidence.Violation, error) {
	summaries := make([]findingSummary, len(findings))
	for i, f := range findings {
		desc := f.Description
		if r := []rune(desc); len(r) > descriptionLimit {
			desc = string(r[:descriptionLimit])
		}
		summaries[i] = findingSummary{
			Index:       i,
			Rule:        f.ID,
			Impact:      f.Impact,
			Description: desc,
			WCAGSC:      rules.Resolve(f.ID, "").SC,
		}
	}
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, err
	}

	reply := keepReply{n: len(findings)}
	if err := oracle.Ask(ctx, c.oracle, oracle.Prompt{Text: fmt.Sprintf(tier2Prompt, data), Temperature: 0.1}, &reply); err != nil {
		return nil, err
	}

	keep := make(map[int]bool, len(reply.KeepIndices))
	for _, i := range reply.KeepIndices {
		keep[i] = true
	}
	out := make([]evidence.Violation, 0, len(keep))
	for i, f := range findings {
		if keep[i] {
			out = append(out, f)
		}
	}
	return out, nil
}

const tier2Prompt = `You are a fast accessibility issue classifier.

Your job: decide which issues are REAL accessibility problems and which are NOISE or FALSE POSITIVES.

Rules:
- KEEP: critical issues (missing alt text, form labels, keyboard access)
- KEEP: high-impact contrast issues
- REMOVE: decorative elements flagged as violations
- REMOVE: duplicate issues (same root cause, different selectors)
- REMOVE: best practice warnings (non-WCAG violations)

Issues to classify:
%s

Return ONLY a JSON object, no markdown:
{"keep_indices": [0, 2, 5]}
`
