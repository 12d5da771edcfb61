package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aristath/signalcycle/internal/allocation"
	"github.com/aristath/signalcycle/internal/app"
	"github.com/aristath/signalcycle/internal/audit"
	"github.com/aristath/signalcycle/internal/broker"
	"github.com/aristath/signalcycle/internal/clients/tradernet"
	"github.com/aristath/signalcycle/internal/config"
	"github.com/aristath/signalcycle/internal/cycle"
	"github.com/aristath/signalcycle/internal/database"
	"github.com/aristath/signalcycle/internal/domain"
	"github.com/aristath/signalcycle/internal/escalation"
	"github.com/aristath/signalcycle/internal/events"
	"github.com/aristath/signalcycle/internal/marketdata"
	"github.com/aristath/signalcycle/internal/orders"
	"github.com/aristath/signalcycle/internal/philosophy"
	"github.com/aristath/signalcycle/internal/scenario"
	"github.com/aristath/signalcycle/internal/scheduler"
	"github.com/aristath/signalcycle/internal/server"
	"github.com/aristath/signalcycle/internal/signals"
	"github.com/aristath/signalcycle/internal/signals/fetchers"
	"github.com/aristath/signalcycle/pkg/logger"
	"github.com/aristath/signalcycle/pkg/money"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.Environment == "development",
	})

	log.Info().Str("environment", cfg.Environment).Msg("starting signalcycle")

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	auditLog := audit.New(db.Conn(), log)

	signalRepo := database.NewSignalRepository(db.Conn(), log)
	cycleRepo := database.NewCycleRepository(db.Conn(), log)
	positionRepo := database.NewPositionRepository(db.Conn(), log)
	cyclePositions := database.NewCyclePositions(positionRepo)
	scenarioPositions := database.NewScenarioPositions(positionRepo)

	runtimes := buildScenarioRuntimes(cfg, cycleRepo, cyclePositions, auditLog, log)

	orchestrator := scenario.New(runtimes, scenarioPositions, log)

	escalators := make(map[string]*escalation.Escalator, len(runtimes))
	orderManagers := make(map[string]*orders.Manager, len(runtimes))
	accountValuers := make(map[string]scheduler.AccountValuer, len(runtimes))
	for scenarioID, rt := range runtimes {
		escalators[scenarioID] = escalation.New(signalRepo, scenarioPositions, rt.Orders, auditLog, log)
		orderManagers[scenarioID] = rt.Orders
		accountValuers[scenarioID] = rt.Broker
	}

	eventMgr := events.NewManager(log)
	coordinator := app.NewCoordinator(signalRepo, cycleRepo, scenarioPositions, runtimes, eventMgr, log)

	ingestFetchers := []domain.Fetcher{
		fetchers.NewCongressional(),
		fetchers.NewForm4(),
		fetchers.NewInsiderOther(),
		fetchers.NewInstitutional13F(),
	}
	pipeline := signals.New(ingestFetchers, signalRepo, log)

	var marketStream *tradernet.MarketStatusStream
	if cfg.BrokerType == "live" && cfg.TradernetWSURL != "" {
		marketStream = tradernet.NewMarketStatusStream(cfg.TradernetWSURL, "", log)
		if err := marketStream.Start(); err != nil {
			log.Warn().Err(err).Msg("market status stream failed to connect, allocation will fail open until it recovers")
		}
		defer marketStream.Stop()
	}

	sched := scheduler.New(log)
	if err := registerJobs(sched, pipeline, signalRepo, coordinator, orchestrator, escalators, scenarioPositions, orderManagers, accountValuers, marketStream, cfg.PrimaryMarketCode); err != nil {
		log.Fatal().Err(err).Msg("failed to register scheduled jobs")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		Log:          log,
		Config:       cfg,
		Runtimes:     runtimes,
		Orchestrator: orchestrator,
		Inputs:       coordinator,
		Cycles:       cycleRepo,
		Positions:    scenarioPositions,
		Audit:        auditLog,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// buildScenarioRuntimes constructs one independent scenario.Runtime per
// entry in cfg.ScenarioRoster — its own paper broker, order manager,
// cycle manager, allocator, and philosophy engine, per §4.11's
// no-shared-state-across-scenarios rule.
func buildScenarioRuntimes(cfg *config.Config, cycleRepo *database.CycleRepository, cyclePositions *database.CyclePositions, auditLog *audit.Log, log zerolog.Logger) map[string]*scenario.Runtime {
	simulated := marketdata.NewSimulatedQuoteSource(time.Now().UnixNano())

	var live marketdata.QuoteSource
	if cfg.BrokerType == "live" && cfg.TradernetURL != "" {
		live = tradernet.NewQuoteSource(tradernet.NewClient(cfg.TradernetURL, log))
	}
	quotes := marketdata.NewCachedQuoteSource(live, simulated, 5*time.Second)

	runtimes := make(map[string]*scenario.Runtime, len(cfg.ScenarioRoster))
	for i, name := range cfg.ScenarioRoster {
		scenarioID := slugify(name)
		startingCapital := money.FromFloat(cfg.ScenarioStartingCapital)

		scn := domain.Scenario{
			ScenarioID:         scenarioID,
			Name:               name,
			Type:               domain.ScenarioType(name),
			PhilosophySettings: domain.DefaultPhilosophySettings(),
			InitialCapital:     startingCapital,
			CurrentCapital:     startingCapital,
			IsActive:           true,
		}

		b := broker.NewPaperBroker(time.Now().UnixNano()+int64(i), startingCapital, quotes, log)
		om := orders.New(b, log)
		cm := cycle.New(cycleRepo, cyclePositions, om, auditLog, log)

		runtimes[scenarioID] = &scenario.Runtime{
			Scenario:   scn,
			Broker:     b,
			Cycle:      cm,
			Allocator:  allocation.NewCycleAllocator(),
			Philosophy: philosophy.NewEngine(scenarioID, scn.PhilosophySettings),
			Orders:     om,
		}
	}
	return runtimes
}

// slugify turns a human scenario name ("High-Risk") into a stable
// scenario_id ("high_risk") used as the foreign key across cycles,
// positions, and audit entries.
func slugify(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// registerJobs wires every §4.10 scheduled trigger to its job
// implementation and store/capability dependencies.
func registerJobs(
	sched *scheduler.Scheduler,
	pipeline *signals.Pipeline,
	signalRepo *database.SignalRepository,
	coordinator *app.Coordinator,
	orchestrator *scenario.Orchestrator,
	escalators map[string]*escalation.Escalator,
	scenarioPositions *database.ScenarioPositions,
	orderManagers map[string]*orders.Manager,
	accountValuers map[string]scheduler.AccountValuer,
	marketStream *tradernet.MarketStatusStream,
	marketCode string,
) error {
	allocateJob := &scheduler.AllocateJob{Inputs: coordinator, Orchestrator: orchestrator, MarketCode: marketCode}
	if marketStream != nil {
		allocateJob.Markets = marketStream
	}

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{"0 0 6 * * *", &scheduler.IngestJob{Pipeline: pipeline}},
		{"0 0 7 * * *", &scheduler.ScoreJob{Store: signalRepo}},
		{"0 0 8 * * *", allocateJob},
		{"0 0 9 * * *", &scheduler.ReviewCycleJob{Escalators: escalators}},
		{"0 0 * * * *", &scheduler.ExpiryCheckJob{Store: scenarioPositions, OrdersByScenario: orderManagers}},
		{"0 0 22 * * *", &scheduler.ReconciliationJob{Checker: coordinator}},
		{"0 */5 * * * *", &scheduler.MarkToMarketJob{Brokers: accountValuers, Marker: coordinator}},
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return err
		}
	}
	return nil
}
