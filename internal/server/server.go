// Package server exposes the admin HTTP API: roster and order-book CRUD,
// settings, shop-floor feedback, run triggers, and the schedule itself in
// JSON and CSV. The API is meant for the shop LAN; it binds loopback by
// default and carries no auth.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"arksched/internal/metrics"
	"arksched/internal/planner"
	"arksched/internal/store"
	"arksched/pkg/logx"
)

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RebuildsPerMinute caps POST /api/v1/runs. Zero means 6.
	RebuildsPerMinute int

	// Pprof mounts the profiler under /debug. Loopback binds only.
	Pprof bool
}

type Server struct {
	cfg Config
	st  *store.Store
	pl  *planner.Planner
	log logx.Logger
	met *metrics.Metrics
	reg prometheus.Gatherer

	rebuilds *rate.Limiter
	srv      *http.Server
}

// New wires the API. met and reg may be nil; the /metrics route then serves
// an empty registry.
func New(cfg Config, st *store.Store, pl *planner.Planner, log logx.Logger, met *metrics.Metrics, reg prometheus.Gatherer) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	rpm := cfg.RebuildsPerMinute
	if rpm <= 0 {
		rpm = 6
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{
		cfg:      cfg,
		st:       st,
		pl:       pl,
		log:      log,
		met:      met,
		reg:      reg,
		rebuilds: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
	}
}

// Router builds the full route tree. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Use(s.requestLogger)
	r.Use(limitBody(1 << 20))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.reg))
	if s.cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/employees", s.handleListEmployees)
		r.Post("/employees", s.handlePutEmployee)
		r.Delete("/employees/{name}", s.handleDeleteEmployee)

		r.Get("/shifts", s.handleListShifts)
		r.Post("/shifts", s.handleAddShift)
		r.Delete("/shifts/{id}", s.handleDeleteShift)

		r.Get("/daysoff", s.handleListDaysOff)
		r.Post("/daysoff", s.handleAddDayOff)
		r.Delete("/daysoff/{id}", s.handleDeleteDayOff)

		r.Get("/projects", s.handleListProjects)
		r.Post("/projects", s.handleAddProject)
		r.Delete("/projects/{id}", s.handleDeleteProject)

		r.Get("/orders", s.handleListOrders)
		r.Post("/orders", s.handlePutOrder)
		r.Delete("/orders/{id}", s.handleDeleteOrder)
		r.Post("/orders/import", s.handleImportOrders)

		r.Get("/weights", s.handleListWeights)
		r.Post("/weights", s.handlePutWeight)
		r.Delete("/weights/{customer}", s.handleDeleteWeight)

		r.Get("/targets", s.handleListTargets)
		r.Post("/targets", s.handleAddTarget)
		r.Delete("/targets/{id}", s.handleDeleteTarget)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)

		r.Post("/feedback", s.handleFeedback)
		r.Get("/carryover", s.handleListCarryover)

		r.Post("/runs", s.handleRebuild)
		r.Get("/runs/latest", s.handleLatestRun)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/schedule.csv", s.handleScheduleCSV)
	})
	return r
}

// Start begins serving and blocks until the listener stops. ErrServerClosed
// after a Shutdown is reported as nil.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.log.Info("http api listening", logx.String("addr", s.cfg.Addr))
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
