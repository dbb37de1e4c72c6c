package group

import (
	"fmt"
	"sort"
	"testing"

	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/report"
)

func nodes(prefix string, n int) []evidence.Node {
	out := make([]evidence.Node, n)
	for i := range out {
		out[i] = evidence.Node{HTML: fmt.Sprintf("<%s%d>", prefix, i), Target: fmt.Sprintf("%s%d", prefix, i)}
	}
	return out
}

func TestGroup(t *testing.T) {
	in := []evidence.Violation{
		{ID: "image-alt", Description: "Images must have alt text", Nodes: nodes("img", 2), NodesAffected: 2},
		{ID: "label", Description: "Form elements must have labels", Nodes: nodes("input", 1)},
		{ID: "image-alt", Description: "second description loses", Nodes: nodes("pic", 1)},
	}
	got := Group(in)
	if len(got) != 2 {
		t.Fatalf("got %d issues, want 2", len(got))
	}

	img := got[0]
	if img.Rule != "image-alt" || img.Category != report.CategorySyntax {
		t.Fatalf("unexpected first issue: %+v", img)
	}
	if img.Description != "Images must have alt text" {
		t.Errorf("description = %q, want first seen", img.Description)
	}
	if img.Occurrences != 3 {
		t.Errorf("occurrences = %d, want 3", img.Occurrences)
	}
	if img.WCAGSC != "1.1.1" || img.GIGWCheckpoint != "9.1.1 (Non-text Content)" {
		t.Errorf("rule table not applied: %+v", img)
	}
	if img.FixPriority != report.PriorityHigh {
		t.Errorf("CRITICAL national priority must give HIGH, got %s", img.FixPriority)
	}
	if img.HTMLSnippet != "<img0>" || img.Selector != "img0" {
		t.Errorf("snippet/selector = %q/%q", img.HTMLSnippet, img.Selector)
	}
	if len(img.Evidence) != 3 {
		t.Errorf("evidence = %d, want 3", len(img.Evidence))
	}
}

func TestGroup_EvidenceCap(t *testing.T) {
	in := []evidence.Violation{
		{ID: "link-name", Nodes: nodes("a", 4)},
		{ID: "link-name", Nodes: nodes("b", 4)},
		{ID: "link-name", Nodes: nodes("c", 4)},
	}
	got := Group(in)
	if n := len(got[0].Evidence); n != DefaultEvidenceCap {
		t.Fatalf("evidence = %d, want %d", n, DefaultEvidenceCap)
	}
	if got[0].Occurrences != 3 {
		t.Fatalf("occurrences = %d, want 3 (one per finding without node count)", got[0].Occurrences)
	}

	got = Grouper{EvidenceCap: 2}.Group(in)
	if n := len(got[0].Evidence); n != 2 {
		t.Fatalf("custom cap: evidence = %d, want 2", n)
	}
}

func TestGroup_UnknownRule(t *testing.T) {
	got := Group([]evidence.Violation{{ID: "vendor-rule", Description: "Vendor check", Nodes: nodes("x", 1)}})
	is := got[0]
	if is.WCAGSC != "Unknown" || is.NationalPriority != "LOW" || is.FixPriority != report.PriorityMedium {
		t.Fatalf("unexpected synthetic enrichment: %+v", is)
	}
	if is.WCAGTitle != "Vendor check" {
		t.Fatalf("title = %q", is.WCAGTitle)
	}
}

func TestGroup_OrderIndependent(t *testing.T) {
	// WHAT: Same findings in two permutations.
	// WHY: Grouping is keyed by rule, not position.
	a := []evidence.Violation{
		{ID: "image-alt", Nodes: nodes("i", 1), NodesAffected: 1},
		{ID: "label", Nodes: nodes("l", 2), NodesAffected: 2},
		{ID: "image-alt", Nodes: nodes("j", 2), NodesAffected: 2},
	}
	b := []evidence.Violation{a[2], a[1], a[0]}

	summarize := func(issues []report.Issue) map[string]string {
		out := map[string]string{}
		for _, is := range issues {
			var ev []string
			for _, e := range is.Evidence {
				ev = append(ev, e.Target)
			}
			sort.Strings(ev)
			out[is.Rule] = fmt.Sprintf("%d %v", is.Occurrences, ev)
		}
		return out
	}

	sa, sb := summarize(Group(a)), summarize(Group(b))
	for rule, v := range sa {
		if sb[rule] != v {
			t.Errorf("%s: %s vs %s", rule, v, sb[rule])
		}
	}
	if len(sa) != len(sb) {
		t.Fatalf("rule sets differ: %v vs %v", sa, sb)
	}
}

func TestGroup_OrderIndependentPastCap(t *testing.T) {
	// WHAT: A rule with more nodes than the cap keeps the same evidence in
	// every permutation of its findings.
	// WHY: The kept snippets must not depend on scanner output order.
	a := evidence.Violation{ID: "image-alt", Nodes: nodes("a", 5), NodesAffected: 5}
	b := evidence.Violation{ID: "image-alt", Nodes: nodes("b", 1), NodesAffected: 1}
	c := evidence.Violation{ID: "image-alt", Nodes: nodes("c", 3), NodesAffected: 3}

	perms := [][]evidence.Violation{
		{a, b, c}, {b, a, c}, {c, b, a}, {b, c, a},
	}
	var want []report.Evidence
	for i, in := range perms {
		got := Group(in)
		if len(got) != 1 {
			t.Fatalf("perm %d: %d issues", i, len(got))
		}
		is := got[0]
		if is.Occurrences != 9 {
			t.Errorf("perm %d: occurrences = %d, want 9", i, is.Occurrences)
		}
		if len(is.Evidence) != DefaultEvidenceCap {
			t.Fatalf("perm %d: evidence = %d, want %d", i, len(is.Evidence), DefaultEvidenceCap)
		}
		if is.Selector != is.Evidence[0].Target || is.HTMLSnippet != is.Evidence[0].HTML {
			t.Errorf("perm %d: snippet/selector not taken from first evidence", i)
		}
		if i == 0 {
			want = is.Evidence
			continue
		}
		if fmt.Sprint(is.Evidence) != fmt.Sprint(want) {
			t.Errorf("perm %d: evidence %v, want %v", i, is.Evidence, want)
		}
	}
	if want[0].Target != "a0" || want[4].Target != "a4" {
		t.Errorf("evidence = %v, want a0..a4", want)
	}
}
