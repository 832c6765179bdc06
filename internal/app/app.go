package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	servernet "footfall/server/internal/net"
	"footfall/server/internal/net/ws"
	"footfall/server/internal/population"
	"footfall/server/internal/scenario"
	"footfall/server/internal/sim"
	"footfall/server/internal/telemetry"
	"footfall/server/internal/world"
	"footfall/server/logging"
	loggingSinks "footfall/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger       telemetry.Logger
	Addr         string
	ScenarioPath string
	World        world.Config

	// Busyness, when set, takes precedence over the scenario's value.
	Busyness *float64
	LogJSON  bool
}

func DefaultConfig() Config {
	return Config{
		Addr:  ":8080",
		World: world.DefaultConfig(),
	}
}

// App is a fully wired simulation: scenario, population, tick loop, telemetry
// hub and HTTP surface.
type App struct {
	Config   Config
	RunID    string
	World    *scenario.World
	Manager  *population.Manager
	Loop     *sim.Loop
	Hub      *ws.Hub
	Counters *telemetry.Counters
	Handler  http.Handler

	router  *logging.Router
	logger  telemetry.Logger
	density atomic.Pointer[population.DensitySnapshot]
}

// New loads the scenario and wires every subsystem without starting the loop.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	file := scenario.Default()
	if cfg.ScenarioPath != "" {
		loaded, err := scenario.Load(cfg.ScenarioPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario: %w", err)
		}
		file = loaded
	}
	worldCfg := file.Apply(cfg.World)
	if cfg.Busyness != nil {
		worldCfg.Busyness = *cfg.Busyness
	}
	worldCfg = worldCfg.Normalized()

	built, err := scenario.Build(file, worldCfg.LatticeSpacing, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build scenario %q: %w", file.Name, err)
	}

	runID := uuid.NewString()
	logConfig := logging.DefaultConfig()
	logConfig.Fields = map[string]any{"run": runID}
	var named []logging.NamedSink
	if cfg.LogJSON {
		logConfig.EnabledSinks = []string{"json"}
		named = append(named, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(os.Stdout, logConfig.JSON.FlushInterval)})
	} else {
		named = append(named, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout)})
	}
	loggingMetrics := &logging.Metrics{}
	router := logging.NewRouter(logging.SystemClock{}, logConfig, loggingMetrics, named)

	counters := telemetry.NewCounters()
	manager := population.NewManager(population.Deps{
		Config:    worldCfg,
		Env:       built.Env,
		Graph:     built.Graph,
		Publisher: router,
		Metrics:   counters,
		Logger:    logger,
	})
	if n := file.InitialAgents; n > 0 {
		logger.Printf("[app] seeded %d of %d initial agents", manager.Seed(n), n)
	}

	hub := ws.NewHub(ws.HubConfig{Logger: logger, Counters: counters})
	a := &App{
		Config:   cfg,
		RunID:    runID,
		World:    built,
		Manager:  manager,
		Hub:      hub,
		Counters: counters,
		router:   router,
		logger:   logger,
	}
	a.storeDensity()

	a.Loop = sim.NewLoop(manager, sim.LoopConfig{
		TickRate:        worldCfg.TickRate,
		CommandCapacity: 64,
		WarningStep:     16,
	}, sim.Deps{
		Logger:    logger,
		Metrics:   telemetry.WrapMetrics(loggingMetrics),
		Publisher: router,
	}, sim.LoopHooks{
		AfterStep: a.afterStep,
		OnQueueWarning: func(length int) {
			logger.Printf("[backpressure] command queue length=%d", length)
		},
	})

	a.Handler = servernet.NewHTTPHandler(a.Loop, hub, servernet.HTTPHandlerConfig{
		Logger:   logger,
		Counters: counters,
		TickRate: worldCfg.TickRate,
		Density:  a.Density,
	})
	return a, nil
}

// afterStep runs on the loop goroutine after every tick.
func (a *App) afterStep(result sim.LoopStepResult) {
	a.Hub.PublishFrame(result.Frame)
	a.Counters.RecordTickDuration(result.Duration)
	if rate := uint64(a.Manager.Config().TickRate); rate > 0 && result.Tick%rate == 0 {
		a.storeDensity()
	}
}

func (a *App) storeDensity() {
	snapshot := a.Manager.Density().Snapshot(true)
	a.density.Store(&snapshot)
}

// Density returns the snapshot taken at the last whole second of simulated time.
func (a *App) Density() population.DensitySnapshot {
	if snapshot := a.density.Load(); snapshot != nil {
		return *snapshot
	}
	return population.DensitySnapshot{}
}

func (a *App) Close(ctx context.Context) error {
	if a == nil || a.router == nil {
		return nil
	}
	return a.router.Close(ctx)
}

// Run serves the simulation until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
		cfg.Logger = logger
	}
	cfg = applyEnv(cfg, os.Getenv, logger)

	a, err := New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := a.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	stop := make(chan struct{})
	go a.Loop.Run(stop)
	defer close(stop)

	srv := &http.Server{Addr: cfg.Addr, Handler: a.Handler}
	errs := make(chan error, 1)
	go func() {
		logger.Printf("server listening on %s (run %s, scenario %s)", srv.Addr, a.RunID, a.World.Name)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// applyEnv overlays FOOTFALL_* variables. Unparseable values are logged and
// ignored.
func applyEnv(cfg Config, getenv func(string) string, logger telemetry.Logger) Config {
	if raw := getenv("FOOTFALL_SCENARIO"); raw != "" {
		cfg.ScenarioPath = raw
	}
	if raw := getenv("FOOTFALL_ADDR"); raw != "" {
		cfg.Addr = raw
	}
	if raw := getenv("FOOTFALL_SEED"); raw != "" {
		cfg.World.Seed = raw
	}
	if raw := getenv("FOOTFALL_TICK_RATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.World.TickRate = value
		} else {
			logger.Printf("invalid FOOTFALL_TICK_RATE=%q: %v", raw, err)
		}
	}
	if raw := getenv("FOOTFALL_BUSYNESS"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value >= 0 {
			cfg.Busyness = &value
		} else {
			logger.Printf("invalid FOOTFALL_BUSYNESS=%q: %v", raw, err)
		}
	}
	if raw := getenv("FOOTFALL_LOG_JSON"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.LogJSON = value
		} else {
			logger.Printf("invalid FOOTFALL_LOG_JSON=%q: %v", raw, err)
		}
	}
	return cfg
}
