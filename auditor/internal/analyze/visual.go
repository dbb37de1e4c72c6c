package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/a11yaudit/auditor/internal/oracle"
	"github.com/hazyhaar/a11yaudit/auditor/internal/rules"
	"github.com/hazyhaar/a11yaudit/report"
)

// VisualSnippet marks a visual issue not yet mapped back to markup.
const VisualSnippet = "Visual Detection"

const visualSC = "1.4.3"

// Visual asks the oracle to inspect a screenshot for contrast and layout
// problems.
type Visual struct {
	Oracle oracle.Oracle
	Logger *slog.Logger
}

type visualItem struct {
	Description string `json:"description"`
	Explanation string `json:"explanation"`
}

type visualReply struct {
	VisionIssues []visualItem `json:"vision_issues"`
}

func (r *visualReply) Validate() error {
	if r.VisionIssues == nil {
		return errors.New("vision_issues missing")
	}
	for i, it := range r.VisionIssues {
		if it.Description == "" {
			return fmt.Errorf("vision_issues[%d]: description missing", i)
		}
	}
	return nil
}

// Analyze returns visual issues for a base64 PNG. An empty screenshot
// means no oracle call. The issues carry report.PlaceholderFix so the
// fixer generates their fix.
func (v *Visual) Analyze(ctx context.Context, screenshot string) []report.Issue {
	if screenshot == "" || v.Oracle == nil {
		return nil
	}
	logger := v.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var reply visualReply
	p := oracle.Prompt{Text: visualPrompt, ImagePNG: screenshot}
	if err := oracle.Ask(ctx, v.Oracle, p, &reply); err != nil {
		logger.WarnContext(ctx, "analyze: visual oracle failed", "error", err)
		return nil
	}

	issues := make([]report.Issue, 0, len(reply.VisionIssues))
	for _, it := range reply.VisionIssues {
		issues = append(issues, report.Issue{
			Rule:           "visual-ai-scan",
			Category:       report.CategoryVisual,
			Description:    it.Description,
			WCAGSC:         visualSC,
			GIGWCheckpoint: rules.Checkpoint(visualSC),
			FixPriority:    report.PriorityHigh,
			HTMLSnippet:    VisualSnippet,
			AIExplanation:  it.Explanation,
			AIFixedCode:    report.PlaceholderFix,
		})
	}
	logger.DebugContext(ctx, "analyze: visual", "issues", len(issues))
	return issues
}

const visualPrompt = `Analyze screenshot for WCAG violations (Contrast, Layout).
Quote the visible text of each affected element in single quotes.
Return JSON: {"vision_issues": [{"description": "...", "explanation": "..."}]}
`
