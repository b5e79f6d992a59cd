package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apflow/invoice-reconciler/internal/async"
	"github.com/apflow/invoice-reconciler/internal/export"
	"github.com/apflow/invoice-reconciler/internal/metrics"
	"github.com/apflow/invoice-reconciler/internal/recon"
	"github.com/apflow/invoice-reconciler/internal/repository"
	"github.com/apflow/invoice-reconciler/internal/source"
	"github.com/apflow/invoice-reconciler/internal/workflow"
)

// Server is the thin HTTP layer. It delegates to the domain packages and
// keeps transport concerns out of them.
type Server struct {
	logger  *slog.Logger
	repos   repository.Repositories
	source  source.DocumentSource
	queue   async.Queue
	builder *recon.Builder
	runner  *workflow.Runner
	export  *export.Service
	metrics *metrics.Metrics
}

func New(
	repos repository.Repositories,
	src source.DocumentSource,
	queue async.Queue,
	builder *recon.Builder,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:  logger,
		repos:   repos,
		source:  src,
		queue:   queue,
		builder: builder,
		runner:  workflow.NewRunner(repos, builder, logger),
		export:  export.NewService(logger),
		metrics: m,
	}
}

// Router wires all endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", s.handleIngestDocuments)
		r.Post("/reconcile", s.handleReconcile)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/export", s.handleExportRun)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", chimw.GetReqID(r.Context()),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
