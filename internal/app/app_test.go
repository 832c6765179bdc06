package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"footfall/server/internal/telemetry"
)

type logLines struct {
	mu    sync.Mutex
	lines []string
}

func (l *logLines) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, format)
}

func (l *logLines) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.Close(ctx)
	})
	return a
}

func TestNewWiresDefaultScenario(t *testing.T) {
	a := newTestApp(t, DefaultConfig())
	if a.World.Name == "" || a.World.Graph.Len() == 0 {
		t.Fatalf("expected default scenario graph, got %+v", a.World)
	}
	if a.RunID == "" {
		t.Fatalf("expected run id")
	}

	for i := 0; i < 40; i++ {
		result := a.Loop.Advance(time.Now())
		a.afterStep(result)
	}
	if a.Loop.Tick() != 40 {
		t.Fatalf("expected tick 40, got %d", a.Loop.Tick())
	}
	if snap := a.Counters.Snapshot(); snap.Ticks != 40 {
		t.Fatalf("expected 40 counted ticks, got %d", snap.Ticks)
	}
	if density := a.Density(); density.Cols == 0 || density.Rows == 0 {
		t.Fatalf("expected density snapshot, got %+v", density)
	}
}

func TestBundledScenarioSeedsInitialAgents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScenarioPath = "../../scenarios/mall.yaml"
	a := newTestApp(t, cfg)
	if a.World.Name != "mall" {
		t.Fatalf("expected mall scenario, got %q", a.World.Name)
	}
	if a.Manager.Len() == 0 {
		t.Fatalf("expected seeded agents")
	}
}

func TestNewRejectsMissingScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	cfg.ScenarioPath = "does-not-exist.yaml"
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for missing scenario")
	}
}

func TestBusynessOverrideWins(t *testing.T) {
	cfg := DefaultConfig()
	busy := 0.0
	cfg.Busyness = &busy
	a := newTestApp(t, cfg)
	if a.Manager.Busyness() != 0 {
		t.Fatalf("expected busyness 0, got %f", a.Manager.Busyness())
	}
}

func TestHTTPCommandsReachLoop(t *testing.T) {
	a := newTestApp(t, DefaultConfig())
	srv := httptest.NewServer(a.Handler)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/busyness", "application/json", bytes.NewReader([]byte(`{"value":3}`)))
	if err != nil {
		t.Fatalf("busyness request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	resp, err = http.Post(srv.URL+"/pause", "application/json", nil)
	if err != nil {
		t.Fatalf("pause request failed: %v", err)
	}
	resp.Body.Close()

	a.Loop.Advance(time.Now())
	if !a.Loop.Paused() {
		t.Fatalf("expected loop to be paused")
	}
	if a.Manager.Busyness() != 3 {
		t.Fatalf("expected busyness 3, got %f", a.Manager.Busyness())
	}

	resp, err = http.Get(srv.URL + "/diagnostics")
	if err != nil {
		t.Fatalf("diagnostics request failed: %v", err)
	}
	defer resp.Body.Close()
	var payload struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if !payload.Paused {
		t.Fatalf("expected diagnostics to report paused")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FOOTFALL_SCENARIO":  "scenarios/mall.yaml",
		"FOOTFALL_ADDR":      ":9090",
		"FOOTFALL_SEED":      "99",
		"FOOTFALL_TICK_RATE": "30",
		"FOOTFALL_BUSYNESS":  "2.5",
		"FOOTFALL_LOG_JSON":  "true",
	}
	logger := &logLines{}
	cfg := applyEnv(DefaultConfig(), func(key string) string { return env[key] }, logger)

	if cfg.ScenarioPath != "scenarios/mall.yaml" || cfg.Addr != ":9090" || cfg.World.Seed != "99" {
		t.Fatalf("unexpected string overrides: %+v", cfg)
	}
	if cfg.World.TickRate != 30 || cfg.Busyness == nil || *cfg.Busyness != 2.5 || !cfg.LogJSON {
		t.Fatalf("unexpected parsed overrides: %+v", cfg)
	}
	if logger.count() != 0 {
		t.Fatalf("expected no warnings, got %v", logger.lines)
	}
}

func TestApplyEnvIgnoresInvalidValues(t *testing.T) {
	env := map[string]string{
		"FOOTFALL_TICK_RATE": "fast",
		"FOOTFALL_BUSYNESS":  "-1",
		"FOOTFALL_LOG_JSON":  "maybe",
	}
	logger := &logLines{}
	base := DefaultConfig()
	cfg := applyEnv(base, func(key string) string { return env[key] }, logger)

	if cfg.World.TickRate != base.World.TickRate || cfg.Busyness != nil || cfg.LogJSON {
		t.Fatalf("expected invalid values to be ignored: %+v", cfg)
	}
	if logger.count() != 3 {
		t.Fatalf("expected 3 warnings, got %d", logger.count())
	}
}
