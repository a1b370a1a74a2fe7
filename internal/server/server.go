package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmhodges/clock"

	"github.com/hazz-dev/healthwatch/internal/state"
	"github.com/hazz-dev/healthwatch/internal/storage"
)

// Banner is the body served at the root path.
const Banner = "✅ Health check service is running. Go to /health for details."

// isoMillis matches the millisecond-precision ISO-8601 form used in responses.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// StateReader is the read side of the state store.
type StateReader interface {
	Snapshot(at time.Time) state.Snapshot
}

// HistoryStore defines the journal queries the server needs.
type HistoryStore interface {
	History(ctx context.Context, target string, limit, offset int) ([]storage.Check, int, error)
	LatestCheck(ctx context.Context, target string) (*storage.Check, error)
	UptimePercent(ctx context.Context, target string, last int) (float64, error)
}

// Options holds the optional parts of the API.
type Options struct {
	// History enables /history/{name} when non-nil.
	History HistoryStore
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	// CORSOrigins lists allowed origins; empty disables CORS headers.
	CORSOrigins []string
	// Clock defaults to the real clock.
	Clock clock.Clock
}

// Server holds the chi router and its dependencies.
type Server struct {
	states StateReader
	opts   Options
	clk    clock.Clock
	router chi.Router
	logger *slog.Logger
}

// New creates a new Server and registers all routes.
func New(states StateReader, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	s := &Server{
		states: states,
		opts:   opts,
		clk:    clk,
		router: chi.NewRouter(),
		logger: logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	if len(s.opts.CORSOrigins) > 0 {
		// Preflights fall through to the router so OPTIONS answers 404 like
		// any other method; GET needs no preflight.
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:     s.opts.CORSOrigins,
			AllowedMethods:     []string{http.MethodGet},
			OptionsPassthrough: true,
		}))
	}

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/health/{name}", s.handleTarget)
	if s.opts.History != nil {
		r.Get("/history/{name}", s.handleHistory)
	}
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}
}

// --- Response helpers ---

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// --- Handlers ---

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(Banner))
}

type serviceStatus struct {
	Name           string  `json:"name"`
	URL            string  `json:"url"`
	Up             *bool   `json:"up"`
	LastChecked    *string `json:"lastChecked"`
	ResponseTimeMs *int64  `json:"responseTimeMs"`
	StatusCode     *int    `json:"statusCode"`
	Failures       int     `json:"failures"`
	Successes      int     `json:"successes"`
	Error          string  `json:"error,omitempty"`
}

type healthResponse struct {
	Overall   state.Overall   `json:"overall"`
	Timestamp string          `json:"timestamp"`
	Services  []serviceStatus `json:"services"`
}

func toServiceStatus(r state.Record) serviceStatus {
	st := serviceStatus{
		Name:           r.Target.Name,
		URL:            r.Target.URL,
		Up:             r.Up,
		ResponseTimeMs: r.ResponseTimeMs,
		StatusCode:     r.StatusCode,
		Failures:       r.ConsecutiveFailures,
		Successes:      r.ConsecutiveSuccesses,
	}
	if r.LastCheckedAt != nil {
		ts := r.LastCheckedAt.UTC().Format(isoMillis)
		st.LastChecked = &ts
	}
	if r.Up != nil && !*r.Up {
		st.Error = r.LastError
	}
	return st
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.states.Snapshot(s.clk.Now())

	services := make([]serviceStatus, 0, len(snap.Records))
	for _, rec := range snap.Records {
		services = append(services, toServiceStatus(rec))
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Overall:   snap.Overall(),
		Timestamp: snap.TakenAt.UTC().Format(isoMillis),
		Services:  services,
	})
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rec, ok := s.states.Snapshot(s.clk.Now()).Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	writeJSON(w, http.StatusOK, toServiceStatus(rec))
}

type historyResponse struct {
	Target        string          `json:"target"`
	UptimePercent float64         `json:"uptimePercent"`
	Total         int             `json:"total"`
	Latest        *storage.Check  `json:"latest"`
	Checks        []storage.Check `json:"checks"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, ok := s.states.Snapshot(s.clk.Now()).Get(name); !ok {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}

	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	checks, total, err := s.opts.History.History(r.Context(), name, limit, offset)
	if err != nil {
		s.logger.Error("History", "target", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	latest, err := s.opts.History.LatestCheck(r.Context(), name)
	if err != nil {
		s.logger.Error("LatestCheck", "target", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	pct, err := s.opts.History.UptimePercent(r.Context(), name, 100)
	if err != nil {
		s.logger.Warn("UptimePercent", "target", name, "error", err)
	}
	if checks == nil {
		checks = []storage.Check{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Target:        name,
		UptimePercent: pct,
		Total:         total,
		Latest:        latest,
		Checks:        checks,
	})
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
