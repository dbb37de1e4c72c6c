package scanner

import (
	"encoding/json"
	"strings"

	"github.com/hazyhaar/a11yaudit/evidence"
)

type axeNode struct {
	HTML   string            `json:"html"`
	Target []json.RawMessage `json:"target"`
}

type axeViolation struct {
	ID     string    `json:"id"`
	Impact string    `json:"impact"`
	Help   string    `json:"help"`
	Nodes  []axeNode `json:"nodes"`
}

// parseAxe converts the JSON of axe-core's results.violations.
func parseAxe(raw string) ([]evidence.Violation, error) {
	var vs []axeViolation
	if err := json.Unmarshal([]byte(raw), &vs); err != nil {
		return nil, err
	}

	out := make([]evidence.Violation, 0, len(vs))
	for _, v := range vs {
		ev := evidence.Violation{
			ID:            orDefault(v.ID, "unknown"),
			Impact:        orDefault(v.Impact, "minor"),
			Description:   orDefault(v.Help, "No description"),
			NodesAffected: len(v.Nodes),
		}
		for _, n := range v.Nodes {
			sel := "Unknown Selector"
			if len(n.Target) > 0 {
				sel = targetString(n.Target[0])
			}
			ev.Nodes = append(ev.Nodes, evidence.Node{HTML: fillHTML(n.HTML, sel), Target: sel})
		}
		out = append(out, ev)
	}
	return out, nil
}

// targetString flattens an axe target, which is a selector or, across
// shadow roots, a list of selectors.
func targetString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.Join(parts, " >>> ")
	}
	return string(raw)
}

// fillHTML gives nodes axe reports without markup a readable placeholder.
func fillHTML(html, selector string) string {
	if strings.TrimSpace(html) != "" {
		return html
	}
	switch {
	case strings.Contains(selector, "html"):
		return "<!-- Root Element -->\n<html>"
	case strings.Contains(selector, "body"):
		return "<!-- Body Element -->\n<body>"
	default:
		return "<!-- Element at selector: " + selector + " -->"
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
