package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hazyhaar/a11yaudit/auditor/internal/oracle"
	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/report"
)

func reply(s string) oracle.Func {
	return func(context.Context, oracle.Prompt) (string, error) { return s, nil }
}

func rulesOf(issues []report.Issue) string {
	var r []string
	for _, is := range issues {
		r = append(r, is.Rule)
	}
	return strings.Join(r, ",")
}

func TestInteraction_Empty(t *testing.T) {
	if got := Interaction(nil); len(got) != 0 {
		t.Fatalf("empty trace produced %d issues", len(got))
	}
}

func TestInteraction_ShortTrace(t *testing.T) {
	// WHAT: Three distinct focusable entries, no body refocus.
	// WHY: Only the reachability rule may fire.
	log := []evidence.FocusEntry{
		{Tag: "A", Text: "Home", ID: "home"},
		{Tag: "BUTTON", Text: "Search", ID: "search"},
		{Tag: "INPUT", ID: "q"},
	}
	got := Interaction(log)
	if len(got) != 1 || got[0].Rule != "limited-keyboard-access" {
		t.Fatalf("got %q, want only limited-keyboard-access", rulesOf(got))
	}
	is := got[0]
	if is.Category != report.CategoryInteraction || is.FixPriority != report.PriorityHigh || is.WCAGSC != "2.1.1" {
		t.Fatalf("unexpected issue: %+v", is)
	}
	if !strings.HasPrefix(is.Description, "Only 3 elements") {
		t.Fatalf("description = %q", is.Description)
	}
}

func TestInteraction_AllRules(t *testing.T) {
	log := []evidence.FocusEntry{
		{Tag: "BODY"},
		{Tag: "DIV", ID: "card"},
		{Tag: "A", ID: "dup"},
		{Tag: "SPAN"},
		{Tag: "BUTTON", ID: "dup"},
		{Tag: "BODY"},
		{Tag: "A", ID: "card"},
	}
	got := Interaction(log)
	want := "keyboard-focus-lost,non-interactive-tabindex,duplicate-id-focusable"
	if rulesOf(got) != want {
		t.Fatalf("got %q, want %q", rulesOf(got), want)
	}
	if !strings.Contains(got[0].Description, "2 times") {
		t.Errorf("focus-lost description = %q", got[0].Description)
	}
	if got[1].HTMLSnippet != "<DIV tabindex='...'>" || !strings.HasPrefix(got[1].Description, "Found 2 ") {
		t.Errorf("non-interactive issue = %+v", got[1])
	}
	// "dup" repeats before "card" does; only the first repeat is reported.
	if got[2].HTMLSnippet != "<... id='dup'>" || got[2].AIFixedCode != "Change one of the elements to use a unique ID, e.g., id='dup-2'" {
		t.Errorf("duplicate-id issue = %+v", got[2])
	}
	for _, is := range got {
		if !is.HasFix() {
			t.Errorf("%s: interaction issues carry their own fix", is.Rule)
		}
	}
}

func TestInteraction_SingleBodyFocusIsFine(t *testing.T) {
	log := []evidence.FocusEntry{{Tag: "BODY"}, {Tag: "A"}, {Tag: "A"}, {Tag: "A"}, {Tag: "A"}}
	if got := Interaction(log); len(got) != 0 {
		t.Fatalf("got %q, want none", rulesOf(got))
	}
}

func TestSemantic(t *testing.T) {
	var prompt string
	o := oracle.Func(func(_ context.Context, p oracle.Prompt) (string, error) {
		prompt = p.Text
		return "```json\n" + `{"issues":[
			{"rule":"semantic-link","description":"Vague link text","fix":"<a href=\"/r\">Annual report</a>","selector":"a.more","html_snippet":"<a class=\"more\">Click here</a>"},
			{"description":"Heading levels skip from H1 to H3"}
		]}` + "\n```", nil
	})

	var links []evidence.Link
	for i := 0; i < 30; i++ {
		links = append(links, evidence.Link{Text: fmt.Sprintf("link-%02d", i), Href: "/x"})
	}
	s := &Semantic{Oracle: o}
	got := s.Analyze(context.Background(), evidence.DOMContent{
		Links:    links,
		Headings: []evidence.Heading{{Level: "H1", Text: "Title"}, {Level: "H3", Text: "Sub"}},
	})

	if !strings.Contains(prompt, "link-19") || strings.Contains(prompt, "link-20") {
		t.Fatalf("links not capped at %d", DefaultSemanticLimit)
	}
	if len(got) != 2 {
		t.Fatalf("got %d issues, want 2", len(got))
	}
	if got[0].Selector != "a.more" || got[0].AIFixedCode != `<a href="/r">Annual report</a>` || got[0].AIExplanation != "Vague link text" {
		t.Errorf("first issue = %+v", got[0])
	}
	second := got[1]
	if second.Rule != "semantic-issue" || second.HTMLSnippet != "Semantic Analysis" || second.Selector != "N/A" ||
		second.AIFixedCode != "Update the text or structure." {
		t.Errorf("defaults not applied: %+v", second)
	}
	for _, is := range got {
		if is.Category != report.CategorySemantic || is.WCAGSC != "2.4.4" || is.FixPriority != report.PriorityMedium {
			t.Errorf("unexpected classification: %+v", is)
		}
	}
}

func TestSemantic_Degrades(t *testing.T) {
	content := evidence.DOMContent{Links: []evidence.Link{{Text: "Click here"}}}
	tests := []struct {
		name string
		o    oracle.Oracle
	}{
		{"call failure", oracle.Func(func(context.Context, oracle.Prompt) (string, error) { return "", errors.New("boom") })},
		{"prose", reply("There are two issues on this page.")},
		{"unknown field", reply(`{"issues":[],"notes":"x"}`)},
		{"missing issues", reply(`{}`)},
		{"wrong type", reply(`{"issues":"none"}`)},
		{"disabled", oracle.Disabled{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Semantic{Oracle: tt.o}
			if got := s.Analyze(context.Background(), content); len(got) != 0 {
				t.Fatalf("got %d issues, want 0", len(got))
			}
		})
	}
}

func TestSemantic_NoContentNoCall(t *testing.T) {
	called := false
	s := &Semantic{Oracle: oracle.Func(func(context.Context, oracle.Prompt) (string, error) {
		called = true
		return `{"issues":[]}`, nil
	})}
	s.Analyze(context.Background(), evidence.DOMContent{})
	if called {
		t.Fatal("oracle called without links or headings")
	}
}

func TestVisual(t *testing.T) {
	var img string
	v := &Visual{Oracle: oracle.Func(func(_ context.Context, p oracle.Prompt) (string, error) {
		img = p.ImagePNG
		return `{"vision_issues":[{"description":"Low contrast on 'Subscribe' button","explanation":"Grey on white"}]}`, nil
	})}
	got := v.Analyze(context.Background(), "iVBORw0KGgo=")
	if img != "iVBORw0KGgo=" {
		t.Fatalf("screenshot not forwarded, got %q", img)
	}
	if len(got) != 1 {
		t.Fatalf("got %d issues, want 1", len(got))
	}
	is := got[0]
	if is.Rule != "visual-ai-scan" || is.Category != report.CategoryVisual || is.FixPriority != report.PriorityHigh || is.WCAGSC != "1.4.3" {
		t.Fatalf("unexpected issue: %+v", is)
	}
	if is.HTMLSnippet != VisualSnippet || is.HasFix() {
		t.Fatalf("visual issue must await the fixer: %+v", is)
	}
}

func TestVisual_Degrades(t *testing.T) {
	called := false
	v := &Visual{Oracle: oracle.Func(func(context.Context, oracle.Prompt) (string, error) {
		called = true
		return `{"vision_issues":[{"explanation":"no description"}]}`, nil
	})}
	if got := v.Analyze(context.Background(), ""); got != nil || called {
		t.Fatal("no screenshot must mean no call and no issues")
	}
	if got := v.Analyze(context.Background(), "aW1n"); len(got) != 0 {
		t.Fatalf("schema violation produced %d issues", len(got))
	}
}
