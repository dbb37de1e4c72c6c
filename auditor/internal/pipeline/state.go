package pipeline

import (
	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/report"
)

// AuditState is the record threaded through one pipeline run. It is owned
// by that run and never shared.
//
// Once Err is set no stage adds anything to it.
type AuditState struct {
	URL string
	Err error

	Screenshot  string // base64 PNG, empty when not captured
	Fingerprint string // empty when no markup was captured
	Title       string
	Violations  []evidence.Violation
	DOMContent  evidence.DOMContent
	TabLog      []evidence.FocusEntry

	Syntax      []report.Issue
	Semantic    []report.Issue
	Interaction []report.Issue
	Visual      []report.Issue

	// Report is the final, fixed issue list.
	Report []report.Issue
	// Cached is set when Report was served by the content lookup.
	Cached bool

	fresh bool
}

// Issues returns the accumulated per-category issues in report order.
func (s *AuditState) Issues() []report.Issue {
	out := make([]report.Issue, 0, len(s.Syntax)+len(s.Semantic)+len(s.Interaction)+len(s.Visual))
	out = append(out, s.Syntax...)
	out = append(out, s.Semantic...)
	out = append(out, s.Interaction...)
	out = append(out, s.Visual...)
	return out
}

// Result is what a stage returns: exactly one of Update or Failure.
type Result interface {
	isResult()
}

// Update applies a stage's output to the state.
type Update func(*AuditState)

// Failure aborts the run. Every later stage is skipped.
type Failure struct {
	Err error
}

func (Update) isResult()  {}
func (Failure) isResult() {}

// IngestionError wraps a scanner failure. It is fatal to the run.
type IngestionError struct {
	URL string
	Err error
}

func (e *IngestionError) Error() string {
	return "ingestion failed for " + e.URL + ": " + e.Err.Error()
}

func (e *IngestionError) Unwrap() error { return e.Err }
