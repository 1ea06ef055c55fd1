package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/boardwalk-dev/boardwalk/pkg/authz"
	"github.com/boardwalk-dev/boardwalk/pkg/observability"
)

// Server exposes the authorization engine over HTTP for sidecar-style
// callers: a decision endpoint plus administrative reload/invalidate
// operations. The engine itself stays transport-agnostic.
type Server struct {
	engine  *authz.Engine
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates a new decision API server
func NewServer(engine *authz.Engine, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		engine:  engine,
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.instrument)

	s.router.HandleFunc("/v1/authorize", s.authorize).Methods("POST")
	s.router.HandleFunc("/v1/admin/reload", s.reloadRoleTable).Methods("POST")
	s.router.HandleFunc("/v1/admin/invalidate/{userID}", s.invalidateUser).Methods("POST")
	s.router.HandleFunc("/healthz", s.healthz).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// instrument records request counts and latency per route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
