// Package auditor is the accessibility audit service. It wires the scanner,
// the audit pipeline, the result caches and the history store, and exposes
// them over HTTP and MCP.
package auditor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/a11yaudit/auditor/internal/analyze"
	"github.com/hazyhaar/a11yaudit/auditor/internal/cache"
	"github.com/hazyhaar/a11yaudit/auditor/internal/classify"
	"github.com/hazyhaar/a11yaudit/auditor/internal/crawl"
	"github.com/hazyhaar/a11yaudit/auditor/internal/fix"
	"github.com/hazyhaar/a11yaudit/auditor/internal/group"
	"github.com/hazyhaar/a11yaudit/auditor/internal/guard"
	"github.com/hazyhaar/a11yaudit/auditor/internal/oracle"
	"github.com/hazyhaar/a11yaudit/auditor/internal/pipeline"
	"github.com/hazyhaar/a11yaudit/auditor/internal/store"
	"github.com/hazyhaar/a11yaudit/evidence"
	"github.com/hazyhaar/a11yaudit/report"
	"github.com/hazyhaar/a11yaudit/scanner"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// timeCachedHash marks a history row served from the recency cache, where
// no fingerprint was computed.
const timeCachedHash = "time_cached"

// ErrForbidden is returned when an audit belongs to another user.
var ErrForbidden = errors.New("auditor: audit belongs to another user")

// ErrNotFound is returned for an unknown audit id.
var ErrNotFound = store.ErrNotFound

// Scanner supplies the evidence for a URL.
type Scanner interface {
	Scan(ctx context.Context, url string) (*evidence.Evidence, error)
}

// Auditor runs audits and serves their history.
type Auditor struct {
	cfg      *Config
	pipeline *pipeline.Pipeline
	guard    *guard.Input
	cache    *cache.Store
	store    *store.Store
	crawler  *crawl.Crawler
	logger   *slog.Logger
	closers  []func() error
}

// Option configures New.
type Option func(*options)

type options struct {
	scanner Scanner
	logger  *slog.Logger
	oracle  oracle.Oracle
	store   *store.Store
	remote  cache.Backend
}

// WithScanner replaces the scanner selected by Config.Scanner.Mode.
func WithScanner(s Scanner) Option {
	return func(o *options) { o.scanner = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func withOracle(orc oracle.Oracle) Option {
	return func(o *options) { o.oracle = orc }
}

func withStore(s *store.Store) Option {
	return func(o *options) { o.store = s }
}

func withRemoteCache(b cache.Backend) Option {
	return func(o *options) { o.remote = b }
}

// New builds an Auditor from cfg. ctx bounds background work started for
// the browser scanner.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Auditor, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	a := &Auditor{cfg: cfg, logger: o.logger}

	if err := a.wire(ctx, o); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Auditor) wire(ctx context.Context, o options) error {
	cfg := a.cfg

	// Caches.
	remote := o.remote
	if remote == nil && cfg.Cache.RedisURL != "" {
		r, err := cache.NewRedis(cfg.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("auditor: %w", err)
		}
		if err := r.Ping(ctx); err != nil {
			a.logger.Warn("auditor: redis unreachable, caching in memory until it recovers", "error", err)
		}
		a.closers = append(a.closers, r.Close)
		remote = r
	}
	cacheOpts := []cache.Option{cache.WithRecencyTTL(cfg.Cache.RecencyTTL), cache.WithLogger(a.logger)}
	if remote != nil {
		cacheOpts = append(cacheOpts, cache.WithRemote(remote))
	}
	a.cache = cache.New(cacheOpts...)

	// History.
	a.store = o.store
	if a.store == nil {
		st, err := store.Open(cfg.Store.DBPath)
		if err != nil {
			return fmt.Errorf("auditor: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		a.store = st
	}

	// Oracle.
	orc := o.oracle
	if orc == nil {
		orc = oracle.New(cfg.Oracle.internal(), a.logger)
	}

	// Scanner.
	sc := o.scanner
	if sc == nil {
		var err error
		if sc, err = a.newScanner(ctx); err != nil {
			return err
		}
	}

	in := guard.NewInput(cfg.Guard.Blocklist...)
	a.guard = in
	a.pipeline = pipeline.New(pipeline.Config{
		Guard:      in,
		Scanner:    sc,
		Lookup: func(ctx context.Context, url, fp string) ([]report.Issue, bool) {
			res, ok := a.cache.GetContent(ctx, url, fp)
			return res.Report, ok
		},
		Classifier: classify.New(orc, classify.WithModel(cfg.Classifier.UseModel), classify.WithLogger(a.logger)),
		Grouper:    group.Grouper{EvidenceCap: cfg.Report.EvidenceCap},
		Semantic:   &analyze.Semantic{Oracle: orc, Limit: cfg.Report.SemanticLimit, Logger: a.logger},
		Visual:     &analyze.Visual{Oracle: orc, Logger: a.logger},
		Fixer:      fix.New(orc, fix.WithLogger(a.logger)),
		Logger:     a.logger,
	})

	a.crawler = crawl.New(crawl.WithGuard(in), crawl.WithLogger(a.logger))
	return nil
}

func (a *Auditor) newScanner(ctx context.Context) (Scanner, error) {
	sc := a.cfg.Scanner
	switch sc.Mode {
	case ScannerStatic:
		opts := []scanner.StaticOption{scanner.WithLogger(a.logger)}
		if sc.LinkLimit > 0 {
			opts = append(opts, scanner.WithLinkLimit(sc.LinkLimit))
		}
		return scanner.NewStatic(opts...), nil
	case ScannerBrowser:
		bc := sc.Config
		bc.Logger = a.logger
		b, err := scanner.NewBrowser(ctx, bc)
		if err != nil {
			return nil, fmt.Errorf("auditor: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	default:
		return nil, fmt.Errorf("auditor: unknown scanner mode %q", sc.Mode)
	}
}

// Close releases the scanner, the store and the cache connection.
func (a *Auditor) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// AuditRequest asks for one page audit.
type AuditRequest struct {
	URL         string `json:"url"`
	ForceRescan bool   `json:"force_rescan"`
	UserID      string `json:"-"`
}

// AuditResponse is the outcome of Audit. Status is StatusError exactly
// when Error is set, and then Report is empty.
type AuditResponse struct {
	Status  string         `json:"status"`
	URL     string         `json:"url"`
	Cached  bool           `json:"cached"`
	Summary report.Summary `json:"summary"`
	Report  []report.Issue `json:"report"`
	AuditID string         `json:"audit_id,omitempty"`
	Error   string         `json:"error,omitempty"`

	err error
}

// Err returns the failure behind a StatusError response.
func (r *AuditResponse) Err() error { return r.err }

// Audit runs one audit. The URL is admitted first; a rejected URL is
// never answered from cache. Recent results for the same URL, and results
// for an unchanged page, are served from cache unless ForceRescan is set.
// Every answered request is recorded in the history of req.UserID.
func (a *Auditor) Audit(ctx context.Context, req AuditRequest) *AuditResponse {
	start := time.Now()

	u, err := a.guard.Validate(req.URL)
	if err != nil {
		return a.failed(ctx, req.URL, err)
	}
	req.URL = u

	var runOpts []pipeline.RunOption
	if req.ForceRescan {
		runOpts = append(runOpts, pipeline.Fresh())
	} else if res, ok := a.cache.GetRecent(ctx, req.URL); ok {
		a.logger.InfoContext(ctx, "auditor: served from recency cache", "url", req.URL)
		return a.cached(ctx, req, timeCachedHash, res)
	}

	state := a.pipeline.Run(ctx, req.URL, runOpts...)
	if state.Err != nil {
		return a.failed(ctx, req.URL, state.Err)
	}

	res := report.NewResult(state.Report)
	if state.Cached {
		a.logger.InfoContext(ctx, "auditor: served from content cache", "url", req.URL)
		return a.cached(ctx, req, state.Fingerprint, res)
	}

	audit := &store.Audit{
		UserID:      req.UserID,
		URL:         req.URL,
		DOMHash:     state.Fingerprint,
		TotalIssues: res.Summary.Total,
	}
	if err := a.persist(ctx, audit, res.Report); err != nil {
		a.logger.WarnContext(ctx, "auditor: history write failed", "url", req.URL, "error", err)
	}

	if state.Fingerprint != "" {
		a.cache.SetContent(ctx, req.URL, state.Fingerprint, res)
		a.cache.SetRecent(ctx, req.URL, res)
	}

	a.logger.InfoContext(ctx, "auditor: audit complete",
		"url", req.URL, "issues", res.Summary.Total,
		"duration_ms", time.Since(start).Milliseconds())

	return &AuditResponse{
		Status:  StatusSuccess,
		URL:     req.URL,
		Summary: res.Summary,
		Report:  res.Report,
		AuditID: audit.ID,
	}
}

func (a *Auditor) failed(ctx context.Context, url string, err error) *AuditResponse {
	a.logger.WarnContext(ctx, "auditor: audit failed", "url", url, "error", err)
	return &AuditResponse{
		Status: StatusError,
		URL:    url,
		Report: []report.Issue{},
		Error:  err.Error(),
		err:    err,
	}
}

func (a *Auditor) cached(ctx context.Context, req AuditRequest, hash string, res report.Result) *AuditResponse {
	audit := &store.Audit{
		UserID:      req.UserID,
		URL:         req.URL,
		DOMHash:     hash,
		TotalIssues: res.Summary.Total,
		Cached:      true,
	}
	if err := a.store.CreateAudit(ctx, audit); err != nil {
		a.logger.WarnContext(ctx, "auditor: history write failed", "url", req.URL, "error", err)
	}
	if res.Report == nil {
		res.Report = []report.Issue{}
	}
	return &AuditResponse{
		Status:  StatusSuccess,
		URL:     req.URL,
		Cached:  true,
		Summary: res.Summary,
		Report:  res.Report,
		AuditID: audit.ID,
	}
}

func (a *Auditor) persist(ctx context.Context, audit *store.Audit, issues []report.Issue) error {
	if err := a.store.CreateAudit(ctx, audit); err != nil {
		return err
	}
	return a.store.BulkCreateIssues(ctx, audit.ID, issues)
}

// AuditSummary is one history entry.
type AuditSummary struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	TotalIssues int    `json:"total_issues"`
	Cached      bool   `json:"cached"`
	CreatedAt   int64  `json:"created_at"`
}

// HistoryQuery filters History.
type HistoryQuery struct {
	Limit         int    `json:"limit,omitempty"`
	Query         string `json:"query,omitempty"`
	IncludeCached bool   `json:"include_cached,omitempty"`
}

// History lists userID's audits, newest first.
func (a *Auditor) History(ctx context.Context, userID string, q HistoryQuery) ([]AuditSummary, error) {
	audits, err := a.store.ListAudits(ctx, userID, q.Limit, q.Query, q.IncludeCached)
	if err != nil {
		return nil, err
	}
	out := make([]AuditSummary, 0, len(audits))
	for _, au := range audits {
		out = append(out, AuditSummary{
			ID:          au.ID,
			URL:         au.URL,
			TotalIssues: au.TotalIssues,
			Cached:      au.Cached,
			CreatedAt:   au.CreatedAt,
		})
	}
	return out, nil
}

// AuditDetail is a stored audit with its issues.
type AuditDetail struct {
	*store.Audit
	Issues []report.Issue `json:"issues"`
}

// Detail returns audit id with its issues. It fails with ErrNotFound for
// an unknown id and ErrForbidden when the audit belongs to another user.
func (a *Auditor) Detail(ctx context.Context, userID, id string) (*AuditDetail, error) {
	au, err := a.store.GetAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	if au.UserID != userID {
		return nil, ErrForbidden
	}
	issues, err := a.store.ListIssues(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AuditDetail{Audit: au, Issues: issues}, nil
}

// Crawl discovers up to maxPages same-site URLs from startURL. maxPages
// <= 0 uses the configured limit.
func (a *Auditor) Crawl(ctx context.Context, startURL string, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = a.cfg.Crawl.MaxPages
	}
	return a.crawler.Crawl(ctx, startURL, maxPages)
}

// Health reports whether the history database answers.
type Health struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
	Error    string `json:"error,omitempty"`
}

// Health pings the history store.
func (a *Auditor) Health(ctx context.Context) Health {
	if err := a.store.Ping(ctx); err != nil {
		return Health{Status: "degraded", Database: false, Error: err.Error()}
	}
	return Health{Status: "healthy", Database: true}
}
