// Package pipeline runs one accessibility audit as a fixed chain of
// stages: guard, scan, content lookup, classify and group, semantic,
// interaction, visual, fix.
//
// The lookup stage ends a run early when the scanned markup was audited
// before: the stored report becomes the run's Report and no analysis
// stage runs.
//
// Each stage reads a snapshot of the AuditState and returns a Result. The
// orchestrator applies Updates in order and stops applying anything once a
// Failure has been recorded. Only admission and ingestion fail a run;
// enrichment stages degrade to empty output on their own.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/a11yaudit/auditor/internal/analyze"
	"github.com/hazyhaar/a11yaudit/auditor/internal/classify"
	"github.com/hazyhaar/a11yaudit/auditor/internal/fingerprint"
	"github.com/hazyhaar/a11yaudit/auditor/internal/fix"
	"github.com/hazyhaar/a11yaudit/auditor/internal/group"
	"github.com/hazyhaar/a11yaudit/auditor/internal/guard"
	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/report"
)

// Scanner supplies the evidence for a URL.
type Scanner interface {
	Scan(ctx context.Context, url string) (*evidence.Evidence, error)
}

// Stage is one named step.
type Stage struct {
	Name string
	Run  func(ctx context.Context, s AuditState) Result
}

// ContentLookup returns the stored report for url when a page with the
// same fingerprint was audited before.
type ContentLookup func(ctx context.Context, url, fingerprint string) ([]report.Issue, bool)

// Config holds the stage collaborators. Guard, Scanner, Classifier and
// Fixer are required. A nil Lookup disables the content lookup.
type Config struct {
	Guard      *guard.Input
	Scanner    Scanner
	Lookup     ContentLookup
	Classifier *classify.Classifier
	Grouper    group.Grouper
	Semantic   *analyze.Semantic
	Visual     *analyze.Visual
	Fixer      *fix.Fixer
	Logger     *slog.Logger
}

// Pipeline is safe for concurrent runs; each run owns its state.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New builds the stage chain.
func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Semantic == nil {
		cfg.Semantic = &analyze.Semantic{}
	}
	if cfg.Visual == nil {
		cfg.Visual = &analyze.Visual{}
	}
	p := &Pipeline{logger: cfg.Logger}
	p.stages = []Stage{
		{"guard", guardStage(cfg.Guard)},
		{"scan", scanStage(cfg.Scanner)},
		{"lookup", lookupStage(cfg.Lookup)},
		{"classify", classifyStage(cfg.Classifier, cfg.Grouper)},
		{"semantic", func(ctx context.Context, s AuditState) Result {
			issues := cfg.Semantic.Analyze(ctx, s.DOMContent)
			return Update(func(st *AuditState) { st.Semantic = issues })
		}},
		{"interaction", func(_ context.Context, s AuditState) Result {
			issues := analyze.Interaction(s.TabLog)
			return Update(func(st *AuditState) { st.Interaction = issues })
		}},
		{"visual", func(ctx context.Context, s AuditState) Result {
			issues := cfg.Visual.Analyze(ctx, s.Screenshot)
			return Update(func(st *AuditState) { st.Visual = issues })
		}},
		{"fix", func(ctx context.Context, s AuditState) Result {
			final := cfg.Fixer.Fix(ctx, s.Issues(), s.DOMContent.Interactive)
			return Update(func(st *AuditState) { st.Report = final })
		}},
	}
	return p
}

// Stages returns the chain in execution order.
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// RunOption adjusts a single run.
type RunOption func(*AuditState)

// Fresh skips the content lookup so every analysis stage runs.
func Fresh() RunOption {
	return func(s *AuditState) { s.fresh = true }
}

// Run audits url. The returned state either carries Err and no issues, or
// a complete (possibly empty) Report. Cached is set when the Report came
// from the content lookup.
func (p *Pipeline) Run(ctx context.Context, url string, opts ...RunOption) AuditState {
	state := AuditState{URL: url}
	for _, opt := range opts {
		opt(&state)
	}
	for _, st := range p.stages {
		if state.Err != nil || state.Cached {
			continue
		}
		start := time.Now()
		switch r := st.Run(ctx, state).(type) {
		case Failure:
			state.Err = r.Err
			p.logger.WarnContext(ctx, "pipeline: stage failed",
				"stage", st.Name, "url", url, "error", r.Err)
		case Update:
			r(&state)
			p.logger.DebugContext(ctx, "pipeline: stage done",
				"stage", st.Name, "duration_ms", time.Since(start).Milliseconds())
		}
	}
	if state.Err == nil && state.Report == nil {
		state.Report = []report.Issue{}
	}
	return state
}

func guardStage(g *guard.Input) func(context.Context, AuditState) Result {
	return func(_ context.Context, s AuditState) Result {
		u, err := g.Validate(s.URL)
		if err != nil {
			return Failure{Err: err}
		}
		return Update(func(st *AuditState) { st.URL = u })
	}
}

func scanStage(sc Scanner) func(context.Context, AuditState) Result {
	return func(ctx context.Context, s AuditState) Result {
		ev, err := sc.Scan(ctx, s.URL)
		if err != nil {
			return Failure{Err: &IngestionError{URL: s.URL, Err: err}}
		}
		if ev == nil {
			ev = &evidence.Evidence{}
		}
		var fp string
		if ev.HTML != "" {
			fp = fingerprint.Compute(ev.HTML)
		}
		return Update(func(st *AuditState) {
			st.Title = ev.Title
			st.Screenshot = ev.Screenshot
			st.Fingerprint = fp
			st.Violations = ev.Violations
			st.DOMContent = ev.DOMContent
			st.TabLog = ev.TabLog
		})
	}
}

func lookupStage(lookup ContentLookup) func(context.Context, AuditState) Result {
	return func(ctx context.Context, s AuditState) Result {
		if lookup == nil || s.fresh || s.Fingerprint == "" {
			return Update(func(*AuditState) {})
		}
		issues, ok := lookup(ctx, s.URL, s.Fingerprint)
		if !ok {
			return Update(func(*AuditState) {})
		}
		if issues == nil {
			issues = []report.Issue{}
		}
		return Update(func(st *AuditState) {
			st.Report = issues
			st.Cached = true
		})
	}
}

func classifyStage(c *classify.Classifier, g group.Grouper) func(context.Context, AuditState) Result {
	return func(ctx context.Context, s AuditState) Result {
		kept := c.Classify(ctx, s.Violations)
		issues := g.Group(kept)
		for i := range issues {
			issues[i].AIFixedCode = report.PlaceholderFix
		}
		return Update(func(st *AuditState) { st.Syntax = issues })
	}
}
