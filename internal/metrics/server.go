package metrics

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
)

// Server exposes /metrics (expvar), /health, and /ready over HTTP, the
// same three endpoints the teacher's metrics server registered.
type Server struct {
	metrics *Metrics
	srv     *http.Server
	ready   func() bool
}

// NewServer creates a metrics HTTP server bound to port. ready reports
// whether the scheduler has finished booting (e.g. loaded its job
// store); a nil ready always reports true.
func NewServer(m *Metrics, port int, ready func() bool) *Server {
	mux := http.NewServeMux()

	s := &Server{metrics: m, ready: ready}
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	return s
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "scheduler not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ready")
}
