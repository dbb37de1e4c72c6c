package analyze

import (
	"fmt"

	"github.com/hazyhaar/a11yaudit/auditor/internal/rules"
	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/report"
)

// MinReachable is the shortest focus trace not flagged as limited keyboard
// access.
const MinReachable = 5

// nonInteractive tags should never receive keyboard focus.
var nonInteractive = map[string]bool{
	"DIV": true, "SPAN": true, "P": true,
	"H1": true, "H2": true, "H3": true, "H4": true, "H5": true, "H6": true,
}

// Interaction applies the keyboard rules to a focus trace. Each rule yields
// at most one issue; duplicate-id detection stops at the first repeat.
// An empty trace yields nothing.
func Interaction(log []evidence.FocusEntry) []report.Issue {
	if len(log) == 0 {
		return nil
	}
	var issues []report.Issue

	bodyFocus := 0
	var firstNonInteractive *evidence.FocusEntry
	nonInteractiveCount := 0
	for i, e := range log {
		if e.Tag == "BODY" {
			bodyFocus++
		}
		if nonInteractive[e.Tag] {
			if firstNonInteractive == nil {
				firstNonInteractive = &log[i]
			}
			nonInteractiveCount++
		}
	}

	if bodyFocus > 1 {
		issues = append(issues, interactionIssue("keyboard-focus-lost", "2.4.7", report.PriorityCritical,
			fmt.Sprintf("Focus lost to <body> tag %d times during keyboard navigation. This indicates a focus trap or missing focus management.", bodyFocus),
			"Focus management issue detected",
			"When users press Tab, focus should move to the next interactive element. If focus jumps to <body>, users lose track of where they are on the page.",
			"Ensure all interactive elements are keyboard accessible. Add tabindex='0' to custom interactive elements or use semantic HTML like <button> instead of <div>."))
	}

	if firstNonInteractive != nil {
		issues = append(issues, interactionIssue("non-interactive-tabindex", "2.4.3", report.PriorityMedium,
			fmt.Sprintf("Found %d non-interactive elements with keyboard focus, which can confuse keyboard users.", nonInteractiveCount),
			fmt.Sprintf("<%s tabindex='...'>", firstNonInteractive.Tag),
			"Non-interactive elements (div, span, p) should not receive keyboard focus unless they have an interactive role.",
			"Remove tabindex from non-interactive elements or add appropriate ARIA roles like role='button' if they are meant to be interactive."))
	}

	if len(log) < MinReachable {
		issues = append(issues, interactionIssue("limited-keyboard-access", "2.1.1", report.PriorityHigh,
			fmt.Sprintf("Only %d elements are keyboard accessible. This page may have insufficient keyboard navigation.", len(log)),
			"Page-wide keyboard accessibility issue",
			"A typical page should have many focusable elements (links, buttons, form inputs). Very few focusable elements suggests missing keyboard access.",
			"Ensure all interactive elements (buttons, links, form controls) are keyboard accessible. Avoid using <div> or <span> for interactive elements without proper tabindex and ARIA roles."))
	}

	if id := firstDuplicateID(log); id != "" {
		issues = append(issues, interactionIssue("duplicate-id-focusable", "4.1.1", report.PriorityCritical,
			fmt.Sprintf("Duplicate ID '%s' found on focusable elements. This breaks assistive technology.", id),
			fmt.Sprintf("<... id='%s'>", id),
			"IDs must be unique on a page. Duplicate IDs on focusable elements confuse screen readers and keyboard navigation.",
			fmt.Sprintf("Change one of the elements to use a unique ID, e.g., id='%s-2'", id)))
	}

	return issues
}

func firstDuplicateID(log []evidence.FocusEntry) string {
	seen := make(map[string]bool)
	for _, e := range log {
		if e.ID == "" {
			continue
		}
		if seen[e.ID] {
			return e.ID
		}
		seen[e.ID] = true
	}
	return ""
}

func interactionIssue(rule, sc string, prio report.Priority, desc, snippet, explanation, fix string) report.Issue {
	return report.Issue{
		Rule:           rule,
		Category:       report.CategoryInteraction,
		Description:    desc,
		WCAGSC:         sc,
		GIGWCheckpoint: rules.Checkpoint(sc),
		FixPriority:    prio,
		HTMLSnippet:    snippet,
		AIExplanation:  explanation,
		AIFixedCode:    fix,
	}
}
