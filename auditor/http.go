package auditor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/a11yaudit/auditor/internal/guard"
	"github.com/hazyhaar/a11yaudit/auditor/internal/pipeline"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

// Handler returns the HTTP API.
func (a *Auditor) Handler() http.Handler {
	limiter := newRateLimiter(a.cfg.HTTP.RateLimit)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(identity([]byte(a.cfg.Auth.JWTSecret)))

	r.Get("/health", a.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Get("/audits", a.handleHistory)
		r.Get("/audits/{id}", a.handleDetail)

		r.Group(func(r chi.Router) {
			r.Use(limiter.middleware)
			r.Post("/audit", a.handleAudit)
			r.Post("/crawl", a.handleCrawl)
		})
	})
	return r
}

func (a *Auditor) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := a.Health(r.Context())
	code := http.StatusOK
	if !h.Database {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (a *Auditor) handleAudit(w http.ResponseWriter, r *http.Request) {
	var req AuditRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.UserID = UserID(r.Context())

	resp := a.Audit(r.Context(), req)
	if resp.Status == StatusError {
		writeJSON(w, statusFor(resp.Err()), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps an audit failure to an HTTP status: a rejected URL is
// the caller's fault, an unreachable page is upstream's.
func statusFor(err error) int {
	var adm *guard.AdmissionError
	var ing *pipeline.IngestionError
	switch {
	case errors.As(err, &adm):
		return http.StatusBadRequest
	case errors.As(err, &ing):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *Auditor) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := HistoryQuery{
		Limit: queryInt(r, "limit", 0),
		Query: r.URL.Query().Get("query"),
	}
	q.IncludeCached, _ = strconv.ParseBool(r.URL.Query().Get("cached"))

	audits, err := a.History(r.Context(), UserID(r.Context()), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": audits})
}

func (a *Auditor) handleDetail(w http.ResponseWriter, r *http.Request) {
	d, err := a.Detail(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, errors.New("audit not found"))
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, errors.New("not authorized to view this audit"))
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, d)
	}
}

type crawlRequest struct {
	URL      string `json:"url"`
	MaxPages int    `json:"max_pages,omitempty"`
}

func (a *Auditor) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	urls, err := a.Crawl(r.Context(), req.URL, req.MaxPages)
	if err != nil {
		var adm *guard.AdmissionError
		if errors.As(err, &adm) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"urls": urls})
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody)).Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
