package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/signalcycle/internal/config"
	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/scenario"
	"github.com/aristath/signalcycle/internal/scheduler"
)

// CycleQueryStore answers the read-side cycle questions the HTTP surface
// needs beyond what cycle.Manager itself exposes (it creates, checks, and
// settles — it does not list).
type CycleQueryStore interface {
	ActiveCycle(ctx context.Context, scenarioID string) (domain.Cycle, bool, error)
	CycleState(ctx context.Context, cycleID string) (domain.CycleState, error)
	History(ctx context.Context, scenarioID string) ([]domain.Cycle, error)
	Metrics(ctx context.Context, cycleID string) (domain.Cycle, error)
}

// PositionQueryStore answers the read-side position questions §6's
// scenario routes need.
type PositionQueryStore interface {
	OpenPositions(ctx context.Context, scenarioID string) ([]domain.Position, error)
	AllPositions(ctx context.Context, scenarioID string) ([]domain.Position, error)
}

// AuditReader serves the supplemental /audit/{entity_type}/{entity_id}
// route over the hash-chained audit log.
type AuditReader interface {
	EntriesForEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditLog, error)
}

// Config holds everything the server needs to construct its routes. The
// concrete store implementations are wired in cmd/server/main.go against
// the SQLite-backed repository layer; the server itself only depends on
// these narrow interfaces, the same capability-interface discipline used
// throughout internal/cycle, internal/escalation, and internal/scheduler.
type Config struct {
	Port    int
	DevMode bool
	Log     zerolog.Logger
	Config  *config.Config

	Runtimes     map[string]*scenario.Runtime
	Orchestrator *scenario.Orchestrator
	Inputs       scheduler.AllocationInputBuilder
	Cycles       CycleQueryStore
	Positions    PositionQueryStore
	Audit        AuditReader
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config

	runtimes     map[string]*scenario.Runtime
	orchestrator *scenario.Orchestrator
	inputs       scheduler.AllocationInputBuilder
	cycles       CycleQueryStore
	positions    PositionQueryStore
	audit        AuditReader
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		cfg:          cfg.Config,
		runtimes:     cfg.Runtimes,
		orchestrator: cfg.Orchestrator,
		inputs:       cfg.Inputs,
		cycles:       cfg.Cycles,
		positions:    cfg.Positions,
		audit:        cfg.Audit,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes — §6's HTTP surface.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/philosophy", func(r chi.Router) {
		r.Get("/current", s.handlePhilosophyCurrent)
		r.Post("/update", s.handlePhilosophyUpdate)
		r.Post("/reset", s.handlePhilosophyReset)
		r.Get("/state", s.handlePhilosophyState)
	})

	s.router.Post("/allocation/trigger", s.handleAllocationTrigger)

	s.router.Route("/cycle", func(r chi.Router) {
		r.Get("/current", s.handleCycleCurrent)
		r.Post("/start", s.handleCycleStart)
		r.Post("/settle", s.handleCycleSettle)
		r.Get("/history", s.handleCycleHistory)
		r.Get("/metrics/{cycle_id}", s.handleCycleMetrics)
	})

	s.router.Route("/scenarios", func(r chi.Router) {
		r.Get("/positions", s.handleScenarioPositions)
		r.Post("/execute", s.handleScenarioExecute)
		r.Post("/reset", s.handleScenarioReset)
		r.Post("/update_unrealized", s.handleScenarioUpdateUnrealized)
		r.Get("/{scenario_id}/history", s.handleScenarioHistory)
	})

	s.router.Get("/audit/{entity_type}/{entity_id}", s.handleAuditEntries)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// runtimeFor resolves the scenario runtime named by the scenario_id query
// parameter, defaulting to the sole runtime when exactly one is
// registered (the common single-scenario deployment).
func (s *Server) runtimeFor(r *http.Request) (*scenario.Runtime, string, bool) {
	id := r.URL.Query().Get("scenario_id")
	if id == "" {
		if len(s.runtimes) == 1 {
			for k, rt := range s.runtimes {
				return rt, k, true
			}
		}
		return nil, "", false
	}
	rt, ok := s.runtimes[id]
	return rt, id, ok
}
