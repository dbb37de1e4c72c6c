package fix

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/a11yaudit/auditor/internal/guard"
	"github.com/hazyhaar/a11yaudit/auditor/internal/oracle"
	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/report"
)

type recorder struct {
	prompts []string
	reply   string
	err     error
}

func (r *recorder) Complete(_ context.Context, p oracle.Prompt) (string, error) {
	r.prompts = append(r.prompts, p.Text)
	return r.reply, r.err
}

func TestFix_SanitizesGeneratedCode(t *testing.T) {
	// WHAT: The oracle echoes an event handler back in its fix.
	// WHY: Generated markup is untrusted; the handler must never reach the report.
	o := &recorder{reply: `{"explanation":"Use a button","fixed_code":"<div onclick=\"evil()\">Buy</div>"}`}
	f := New(o)
	in := []report.Issue{{
		Rule: "button-name", Category: report.CategorySyntax,
		Description: "Buttons must have discernible text", HTMLSnippet: `<div onclick="evil()">Buy</div>`,
		AIFixedCode: report.PlaceholderFix,
	}}
	got := f.Fix(context.Background(), in, nil)

	fixed := got[0].AIFixedCode
	if strings.Contains(fixed, "onclick") {
		t.Fatalf("handler survived: %q", fixed)
	}
	if fixed != "<div>Buy</div>"+guard.SanitizedMarker {
		t.Fatalf("fixed = %q", fixed)
	}
	if !strings.Contains(o.prompts[0], "BAD CODE SNIPPET") {
		t.Fatalf("concrete markup must use the targeted prompt: %q", o.prompts[0])
	}
	if in[0].AIFixedCode != report.PlaceholderFix {
		t.Fatal("input slice mutated")
	}
}

func TestFix_KeepsExistingFix(t *testing.T) {
	o := &recorder{reply: `{"explanation":"x","fixed_code":"y"}`}
	in := []report.Issue{
		{Rule: "limited-keyboard-access", Category: report.CategoryInteraction, AIExplanation: "keep", AIFixedCode: "Ensure all interactive elements are keyboard accessible."},
		{Rule: "semantic-link", Category: report.CategorySemantic, AIFixedCode: `<a href="javascript:void(0)">Report</a>`},
	}
	got := New(o).Fix(context.Background(), in, nil)
	if len(o.prompts) != 0 {
		t.Fatalf("oracle called %d times for already fixed issues", len(o.prompts))
	}
	if got[0].AIFixedCode != in[0].AIFixedCode || got[0].AIExplanation != "keep" {
		t.Fatalf("clean fix changed: %+v", got[0])
	}
	if strings.Contains(got[1].AIFixedCode, "javascript:") || !strings.HasSuffix(got[1].AIFixedCode, guard.SanitizedMarker) {
		t.Fatalf("existing fix not sanitized: %q", got[1].AIFixedCode)
	}
}

func TestFix_ManualReviewFallback(t *testing.T) {
	tests := []struct {
		name string
		o    oracle.Oracle
	}{
		{"call failure", &recorder{err: errors.New("unavailable")}},
		{"missing fixed_code", &recorder{reply: `{"explanation":"only half"}`}},
		{"not json", &recorder{reply: "Sure! Here is the fix: <img alt>"}},
		{"nil oracle", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.o).Fix(context.Background(), []report.Issue{{Rule: "image-alt", Category: report.CategorySyntax}}, nil)
			if got[0].AIExplanation != ManualExplanation || got[0].AIFixedCode != ManualFix {
				t.Fatalf("got %q / %q", got[0].AIExplanation, got[0].AIFixedCode)
			}
		})
	}
}

func TestFix_VisualReverseLookup(t *testing.T) {
	o := &recorder{reply: `{"explanation":"Raise contrast","fixed_code":"<button style=\"color:#000\">Subscribe now</button>"}`}
	interactive := []evidence.Interactive{
		{Tag: "a", Text: "Home", HTML: `<a href="/">Home</a>`},
		{Tag: "button", Text: "SUBSCRIBE now", HTML: `<button class="cta">SUBSCRIBE now</button>`},
	}
	in := []report.Issue{{
		Rule: "visual-ai-scan", Category: report.CategoryVisual,
		Description: "Low contrast on the 'Subscribe' button", HTMLSnippet: "Visual Detection",
		AIFixedCode: report.PlaceholderFix,
	}}
	got := New(o).Fix(context.Background(), in, interactive)

	if got[0].HTMLSnippet != `<button class="cta">SUBSCRIBE now</button>` {
		t.Fatalf("snippet = %q", got[0].HTMLSnippet)
	}
	if got[0].Selector != "<button> containing 'Subscribe'" {
		t.Fatalf("selector = %q", got[0].Selector)
	}
	if !strings.Contains(o.prompts[0], "BAD CODE SNIPPET") {
		t.Fatal("located markup must switch to the targeted prompt")
	}
	if got[0].Category != report.CategoryVisual {
		t.Fatal("category changed")
	}
}

func TestFix_VisualWithoutMatchUsesGeneralPrompt(t *testing.T) {
	o := &recorder{reply: `{"explanation":"Increase spacing","fixed_code":"p { line-height: 1.5; }"}`}
	in := []report.Issue{{
		Rule: "visual-ai-scan", Category: report.CategoryVisual,
		Description: "Text in 'Footer' overlaps", HTMLSnippet: "Visual Detection",
		AIFixedCode: report.PlaceholderFix,
	}}
	got := New(o).Fix(context.Background(), in, []evidence.Interactive{{Tag: "a", Text: "Home"}})
	if got[0].HTMLSnippet != "Visual Detection" {
		t.Fatalf("snippet changed without a match: %q", got[0].HTMLSnippet)
	}
	if !strings.Contains(o.prompts[0], "I cannot provide the exact code") {
		t.Fatalf("expected general prompt, got %q", o.prompts[0])
	}
	if got[0].AIFixedCode != "p { line-height: 1.5; }" {
		t.Fatalf("clean fix altered: %q", got[0].AIFixedCode)
	}
}
