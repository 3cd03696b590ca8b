// Package server hosts the narrator service: the websocket event stream,
// the health check, Prometheus metrics and the leaderboard API.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mittens-dev/pipeline-panic/internal/history"
	"github.com/mittens-dev/pipeline-panic/internal/infra"
	"github.com/mittens-dev/pipeline-panic/internal/leaderboard"
	"github.com/mittens-dev/pipeline-panic/internal/narrator"
)

// Server wires the HTTP surface together.
type Server struct {
	router    *chi.Mux
	log       *zap.Logger
	cfg       infra.NarratorConfig
	narrator  *narrator.Narrator
	recorder  *history.Recorder
	lb        *leaderboard.Leaderboard
	lbHandler *LeaderboardHandler
	metrics   *serverMetrics
}

type serverMetrics struct {
	connections prometheus.Gauge
	runs        *prometheus.CounterVec
	rejected    *prometheus.CounterVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &serverMetrics{
		connections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "narrator_ws_connections",
			Help: "Currently connected websocket clients.",
		}),
		runs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "narrator_runs_total",
			Help: "Scripted deployment runs played, by outcome.",
		}, []string{"outcome"}),
		rejected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "narrator_rejected_total",
			Help: "Rejected start-deployment requests, by reason.",
		}, []string{"reason"}),
	}
}

// New assembles the server. reg doubles as the /metrics exposition
// registry, so it must be a *prometheus.Registry.
func New(
	logger *zap.Logger,
	cfg infra.NarratorConfig,
	n *narrator.Narrator,
	rec *history.Recorder,
	lb *leaderboard.Leaderboard,
	lbTopN int,
	reg *prometheus.Registry,
) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       logger.Named("server"),
		cfg:       cfg,
		narrator:  n,
		recorder:  rec,
		lb:        lb,
		lbHandler: NewLeaderboardHandler(lb, lbTopN, logger),
		metrics:   newServerMetrics(reg),
	}
	s.routes(reg)
	return s
}

func (s *Server) routes(reg *prometheus.Registry) {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Get("/ws", s.handleWS)
	r.Get("/v1/leaderboard", s.lbHandler.Get)
}

// ServeHTTP lets Server act as a standard http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
