// Package rules is the static compliance table: scanner rule identifiers
// mapped to WCAG 2.1/2.2 success criteria, conformance level and national
// (GIGW / IS 17802) priority, plus the GIGW 3.0 checkpoint for each criterion.
//
// The table is read-only after init and safe for concurrent use.
package rules

import "github.com/hazyhaar/a11yaudit/report"

// Reference is the normative document the success criteria refer to.
const Reference = "https://www.w3.org/TR/WCAG22/"

// NoCheckpoint is reported for criteria GIGW 3.0 does not map.
const NoCheckpoint = "N/A - Best Practice"

// Definition is the metadata attached to a rule.
type Definition struct {
	SC               string // WCAG success criterion, "Best" or a technique id
	Level            string // A, AA, Best
	Since            string // WCAG version that introduced it
	Title            string
	NationalPriority string // CRITICAL, HIGH, MEDIUM, LOW
}

var table = map[string]Definition{
	// WCAG 2.1 and 2.2
	"accesskeys":             {"2.1.4", "A", "2.1", "Character Key Shortcuts", "LOW"},
	"aria-allowed-attr":      {"4.1.2", "A", "2.1", "Name, Role, Value", "HIGH"},
	"aria-hidden-body":       {"4.1.2", "A", "2.1", "Name, Role, Value", "HIGH"},
	"aria-hidden-focus":      {"4.1.2", "A", "2.1", "Name, Role, Value", "HIGH"},
	"aria-input-field-name":  {"4.1.2", "A", "2.1", "Name, Role, Value", "HIGH"},
	"aria-required-attr":     {"4.1.2", "A", "2.1", "Name, Role, Value", "HIGH"},
	"aria-required-children": {"1.3.1", "A", "2.1", "Info and Relationships", "MEDIUM"},
	"aria-roles":             {"4.1.2", "A", "2.1", "Name, Role, Value", "HIGH"},
	"aria-valid-attr-value":  {"4.1.2", "A", "2.1", "Name, Role, Value", "HIGH"},
	"aria-valid-attr":        {"4.1.2", "A", "2.1", "Name, Role, Value", "HIGH"},
	"button-name":            {"4.1.2", "A", "2.1", "Name, Role, Value", "CRITICAL"},
	"bypass":                 {"2.4.1", "A", "2.1", "Bypass Blocks", "HIGH"},
	"color-contrast":         {"1.4.3", "AA", "2.1", "Contrast (Minimum)", "CRITICAL"},
	"document-title":         {"2.4.2", "A", "2.1", "Page Titled", "HIGH"},
	"frame-title":            {"4.1.2", "A", "2.1", "Name, Role, Value", "MEDIUM"},
	"html-has-lang":          {"3.1.1", "A", "2.1", "Language of Page", "HIGH"},
	"html-lang-valid":        {"3.1.1", "A", "2.1", "Language of Page", "HIGH"},
	"image-alt":              {"1.1.1", "A", "2.1", "Non-text Content", "CRITICAL"},
	"input-image-alt":        {"1.1.1", "A", "2.1", "Non-text Content", "CRITICAL"},
	"label":                  {"3.3.2", "A", "2.1", "Labels or Instructions", "CRITICAL"},
	"link-name":              {"2.4.4", "A", "2.1", "Link Purpose (In Context)", "HIGH"},
	"meta-viewport":          {"1.4.4", "AA", "2.1", "Resize Text", "MEDIUM"},
	"tabindex":               {"2.1.1", "A", "2.1", "Keyboard", "MEDIUM"},
	"select-name":            {"4.1.2", "A", "2.1", "Name, Role, Value", "CRITICAL"},

	// New in WCAG 2.2
	"focus-not-obscured":                {"2.4.11", "AA", "2.2", "Focus Not Obscured", "MEDIUM"},
	"focus-appearance":                  {"2.4.11", "AA", "2.2", "Focus Appearance", "MEDIUM"},
	"target-size":                       {"2.5.8", "AA", "2.2", "Target Size (Minimum)", "MEDIUM"},
	"dragging-movements":                {"2.5.7", "A", "2.2", "Dragging Movements", "LOW"},
	"consistent-help":                   {"3.2.6", "A", "2.2", "Consistent Help", "LOW"},
	"redundant-entry":                   {"3.3.7", "A", "2.2", "Redundant Entry", "LOW"},
	"accessible-authentication-minimum": {"3.3.8", "A", "2.2", "Accessible Authentication", "MEDIUM"},

	// Best practices, not normative.
	"heading-order":        {"G130", "Best", "2.1", "Heading Order", "MEDIUM"},
	"landmark-one-main":    {"Best", "Best", "2.1", "One Main Landmark", "MEDIUM"},
	"page-has-heading-one": {"Best", "Best", "2.1", "Page should have <h1>", "HIGH"},
	"region":               {"Best", "Best", "2.1", "Landmark Regions", "MEDIUM"},
}

// gigw maps WCAG success criteria to Guidelines for Indian Government
// Websites 3.0 checkpoints.
var gigw = map[string]string{
	"1.1.1": "9.1.1 (Non-text Content)",
	"1.3.1": "9.1.3 (Info and Relationships)",
	"1.4.3": "9.1.4 (Contrast Minimum)",
	"2.1.1": "9.2.1 (Keyboard)",
	"2.4.1": "9.2.4 (Bypass Blocks)",
	"2.4.2": "9.2.4 (Page Titled)",
	"2.4.4": "9.2.4 (Link Purpose)",
	"3.1.1": "9.3.1 (Language of Page)",
	"3.3.2": "9.3.3 (Labels or Instructions)",
	"4.1.2": "9.4.1 (Name, Role, Value)",
}

// Lookup returns the definition of a known rule.
func Lookup(rule string) (Definition, bool) {
	d, ok := table[rule]
	return d, ok
}

// Resolve returns the definition of rule, or a synthetic low-priority
// definition titled with fallbackTitle (the rule id when empty) so callers
// never fail on a rule the table does not know.
func Resolve(rule, fallbackTitle string) Definition {
	if d, ok := table[rule]; ok {
		return d
	}
	if fallbackTitle == "" {
		fallbackTitle = rule
	}
	return Definition{
		SC:               "Unknown",
		Level:            "?",
		Since:            "2.1",
		Title:            fallbackTitle,
		NationalPriority: "LOW",
	}
}

// Checkpoint returns the GIGW 3.0 checkpoint for a success criterion.
func Checkpoint(sc string) string {
	if c, ok := gigw[sc]; ok {
		return c
	}
	return NoCheckpoint
}

// FixPriority derives the generic fix priority from a national priority:
// CRITICAL escalates to HIGH, everything else is MEDIUM.
func FixPriority(national string) report.Priority {
	if national == string(report.PriorityCritical) {
		return report.PriorityHigh
	}
	return report.PriorityMedium
}

