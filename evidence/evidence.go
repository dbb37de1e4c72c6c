// Package evidence defines what the scanning collaborator hands to the audit
// pipeline: structural violations, a screenshot, the page markup, extracted
// semantic content and a keyboard focus trace.
//
// Producers fill what they can. Every field except HTML may be empty; the
// pipeline stages that consume an empty channel simply produce no issues.
package evidence

// Node is one element a structural violation was reported on.
type Node struct {
	HTML   string `json:"html"`
	Target string `json:"target"`
}

// Violation is a raw finding from the structural scanner (axe-core shape,
// normalised).
type Violation struct {
	ID          string `json:"id"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
	Selector    string `json:"selector,omitempty"`
	Nodes       []Node `json:"nodes"`
	// NodesAffected counts the elements the rule fired on. Zero means
	// unknown and counts as one occurrence.
	NodesAffected int `json:"nodes_affected,omitempty"`
}

// Link is an anchor extracted for semantic analysis.
type Link struct {
	Text     string `json:"text"`
	Href     string `json:"href"`
	HTML     string `json:"html"`
	Selector string `json:"selector"`
}

// Heading is a heading element; Level is the tag name ("H1".."H6").
type Heading struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Interactive is a button, input or similar control, captured so visual
// findings can be mapped back to markup.
type Interactive struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	HTML string `json:"html"`
}

// DOMContent is the semantic slice of the page.
type DOMContent struct {
	Links       []Link        `json:"links"`
	Headings    []Heading     `json:"headings"`
	Interactive []Interactive `json:"interactive"`
}

// FocusEntry records document.activeElement after one Tab press.
type FocusEntry struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	ID   string `json:"id"`
}

// Evidence is the full ingestion payload for one page.
type Evidence struct {
	Title      string       `json:"title,omitempty"`
	HTML       string       `json:"html"`
	Screenshot string       `json:"screenshot,omitempty"` // base64 PNG
	Violations []Violation  `json:"violations"`
	DOMContent DOMContent   `json:"dom_content"`
	TabLog     []FocusEntry `json:"tab_log"`
}
