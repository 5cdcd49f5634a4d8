// Package api serves the pipeline over HTTP.
//
// Every endpoint speaks JSON. Questions are posted as {"question": "..."};
// errors come back as {"error": "...", "code": "..."} with a status that
// distinguishes bad input (400), refused queries or plans (422) and
// failures (500).
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
	"github.com/Abuzaid-01/Float-Chat/internal/metrics"
	"github.com/Abuzaid-01/Float-Chat/internal/qcache"
	"github.com/Abuzaid-01/Float-Chat/internal/service"
	"github.com/Abuzaid-01/Float-Chat/internal/store"
)

// MaxQuestionBytes bounds request bodies.
const MaxQuestionBytes = 16 << 10

// Server holds the handlers' collaborators.
type Server struct {
	svc      *service.Service
	compiler *compiler.Compiler
	tools    *engine.Registry
	store    *store.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New returns a server over a runtime.
func New(rt *service.Runtime, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:      rt.Service,
		compiler: rt.Compiler,
		tools:    rt.Tools,
		store:    rt.Store,
		metrics:  rt.Metrics,
		gatherer: rt.Registry,
		logger:   logger,
	}
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.analyze)
		r.Post("/compile", s.compile)
		r.Post("/plan", s.plan)
		r.Post("/ask", s.ask)
		r.Get("/tools", s.listTools)
		r.Get("/stats", s.stats)
		r.Get("/requests", s.listRequests)
		r.Get("/requests/{id}", s.getRequest)
	})
	return r
}

// QuestionRequest is the body of every question endpoint.
type QuestionRequest struct {
	Question string `json:"question"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CompileResponse is returned by /api/compile.
type CompileResponse struct {
	Query    compiler.CompiledQuery `json:"query"`
	Analysis any                    `json:"analysis"`
}

// PlanResponse is returned by /api/plan.
type PlanResponse struct {
	Plan     any `json:"plan"`
	Analysis any `json:"analysis"`
}

// StatsResponse is returned by /api/stats. Log is nil without a query log.
type StatsResponse struct {
	Compiler compiler.Stats `json:"compiler"`
	Cache    qcache.Stats   `json:"cache"`
	Log      *store.Counts  `json:"log,omitempty"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	q, ok := readQuestion(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Analyze(q))
}

func (s *Server) compile(w http.ResponseWriter, r *http.Request) {
	q, ok := readQuestion(w, r)
	if !ok {
		return
	}
	cq, a, err := s.svc.Compile(r.Context(), q)
	if err != nil {
		code := compiler.CodeOf(err)
		status := http.StatusUnprocessableEntity
		if code == "" {
			status = statusFor(r.Context(), err)
		}
		writeError(w, status, err.Error(), string(code))
		return
	}
	writeJSON(w, http.StatusOK, CompileResponse{Query: cq, Analysis: a})
}

func (s *Server) plan(w http.ResponseWriter, r *http.Request) {
	q, ok := readQuestion(w, r)
	if !ok {
		return
	}
	p, a := s.svc.Plan(q)
	writeJSON(w, http.StatusOK, PlanResponse{Plan: p, Analysis: a})
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	q, ok := readQuestion(w, r)
	if !ok {
		return
	}
	ans, err := s.svc.Ask(r.Context(), q)
	if err != nil {
		if service.IsRefused(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "PLAN_REFUSED")
			return
		}
		s.logger.Error("ask failed", "error", err)
		writeError(w, statusFor(r.Context(), err), err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) listTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tools.Describe())
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Compiler: s.compiler.Stats(),
		Cache:    s.compiler.Cache().Stats(),
	}
	if s.store != nil {
		c, err := s.store.Counts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), "")
			return
		}
		resp.Log = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	recs, err := s.store.Requests(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	req, execs, err := s.store.ReadRequest(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "request not found", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": req, "executions": execs})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "query log is disabled", "")
		return false
	}
	return true
}

func readQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req QuestionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxQuestionBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "")
		return "", false
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		writeError(w, http.StatusBadRequest, "question is required", "")
		return "", false
	}
	return q, true
}

// statusFor maps a client disconnect or deadline to 504.
func statusFor(ctx context.Context, err error) int {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
