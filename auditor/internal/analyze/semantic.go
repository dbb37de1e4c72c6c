package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/a11yaudit/auditor/internal/oracle"
	"github.com/hazyhaar/a11yaudit/auditor/internal/rules"
	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/report"
)

// DefaultSemanticLimit caps the links and the headings sent to the oracle.
const DefaultSemanticLimit = 20

const semanticSC = "2.4.4"

// Semantic asks the oracle about vague link text and broken heading
// structure.
type Semantic struct {
	Oracle oracle.Oracle
	Limit  int
	Logger *slog.Logger
}

type semanticItem struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
	Fix         string `json:"fix"`
	Selector    string `json:"selector"`
	HTMLSnippet string `json:"html_snippet"`
}

type semanticReply struct {
	Issues []semanticItem `json:"issues"`
}

func (r *semanticReply) Validate() error {
	if r.Issues == nil {
		return errors.New("issues missing")
	}
	return nil
}

// Analyze returns semantic issues for content. No links and no headings
// means no oracle call.
func (s *Semantic) Analyze(ctx context.Context, content evidence.DOMContent) []report.Issue {
	if len(content.Links) == 0 && len(content.Headings) == 0 {
		return nil
	}
	if s.Oracle == nil {
		return nil
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := s.Limit
	if limit <= 0 {
		limit = DefaultSemanticLimit
	}
	links := content.Links
	if len(links) > limit {
		links = links[:limit]
	}
	headings := content.Headings
	if len(headings) > limit {
		headings = headings[:limit]
	}
	linkJSON, err := json.MarshalIndent(links, "", "  ")
	if err != nil {
		return nil
	}
	headingJSON, err := json.MarshalIndent(headings, "", "  ")
	if err != nil {
		return nil
	}

	var reply semanticReply
	p := oracle.Prompt{Text: fmt.Sprintf(semanticPrompt, linkJSON, headingJSON)}
	if err := oracle.Ask(ctx, s.Oracle, p, &reply); err != nil {
		logger.WarnContext(ctx, "analyze: semantic oracle failed", "error", err)
		return nil
	}

	issues := make([]report.Issue, 0, len(reply.Issues))
	for _, it := range reply.Issues {
		is := report.Issue{
			Rule:           orDefault(it.Rule, "semantic-issue"),
			Category:       report.CategorySemantic,
			Description:    orDefault(it.Description, "Semantic issue found."),
			WCAGSC:         semanticSC,
			GIGWCheckpoint: rules.Checkpoint(semanticSC),
			FixPriority:    report.PriorityMedium,
			HTMLSnippet:    orDefault(it.HTMLSnippet, "Semantic Analysis"),
			Selector:       orDefault(it.Selector, "N/A"),
			AIExplanation:  it.Description,
			AIFixedCode:    orDefault(it.Fix, "Update the text or structure."),
		}
		issues = append(issues, is)
	}
	logger.DebugContext(ctx, "analyze: semantic", "issues", len(issues))
	return issues
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

const semanticPrompt = `You are an expert in WCAG 2.4.4 (Link Purpose) and 2.4.6 (Headings & Labels).

Analyze the following extracted page content:

LINKS:
%s

HEADINGS:
%s

Identify semantic accessibility issues such as:
- Vague or contextless link text ("Click here", "Learn more", "No Text")
- Duplicate link text pointing to different destinations
- Missing or skipped heading levels (H1 -> H3 skip)
- Headings used visually but not semantically
- Headings that are empty or unclear

Return ONLY valid JSON in this exact structure:

{
    "issues": [
        {
            "rule": "semantic-link" | "heading-structure" | "heading-empty",
            "description": "Human-readable explanation",
            "fix": "Specific recommended HTML/text fix",
            "selector": "The selector from the input data",
            "html_snippet": "The HTML snippet from the input data"
        }
    ]
}
`
