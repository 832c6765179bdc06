package net

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"footfall/server/internal/net/ws"
	"footfall/server/internal/population"
	"footfall/server/internal/sim"
	"footfall/server/internal/telemetry"
)

type fakeSimulation struct {
	mu       sync.Mutex
	commands []sim.Command
	full     bool
	tick     uint64
}

func (f *fakeSimulation) Enqueue(cmd sim.Command) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false, sim.CommandRejectQueueFull
	}
	f.commands = append(f.commands, cmd)
	return true, ""
}

func (f *fakeSimulation) Tick() uint64 { return f.tick }
func (f *fakeSimulation) Paused() bool { return false }

func (f *fakeSimulation) Stats() population.Stats {
	return population.Stats{Active: 3, Busyness: 1, States: map[string]int{"MOVING": 3}}
}

func (f *fakeSimulation) last(t *testing.T) sim.Command {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) == 0 {
		t.Fatalf("expected a queued command")
	}
	return f.commands[len(f.commands)-1]
}

func newTestHandler(simulation *fakeSimulation) http.Handler {
	counters := telemetry.NewCounters()
	counters.Add("spawned", 5)
	return NewHTTPHandler(simulation, ws.NewHub(ws.HubConfig{}), HTTPHandlerConfig{
		Logger:   telemetry.LoggerFunc(func(string, ...any) {}),
		Counters: counters,
		TickRate: 20,
		Density: func() population.DensitySnapshot {
			return population.DensitySnapshot{CellSize: 20, Cols: 2, Rows: 2, Total: 7}
		},
	})
}

func post(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestHealth(t *testing.T) {
	handler := newTestHandler(&fakeSimulation{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.Code, resp.Body.String())
	}
}

func TestDiagnosticsReportsCountersAndPopulation(t *testing.T) {
	handler := newTestHandler(&fakeSimulation{tick: 12})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}

	var payload struct {
		Tick       uint64                     `json:"tick"`
		TickRate   int                        `json:"tickRate"`
		Population population.Stats           `json:"population"`
		Telemetry  telemetry.CountersSnapshot `json:"telemetry"`
		Density    population.DensitySnapshot `json:"density"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if payload.Tick != 12 || payload.TickRate != 20 {
		t.Fatalf("unexpected tick fields: %+v", payload)
	}
	if payload.Population.Active != 3 || payload.Population.States["MOVING"] != 3 {
		t.Fatalf("unexpected population: %+v", payload.Population)
	}
	if payload.Telemetry.Spawned != 5 {
		t.Fatalf("expected 5 spawned, got %d", payload.Telemetry.Spawned)
	}
	if payload.Density.Total != 7 || payload.Density.Cols != 2 {
		t.Fatalf("unexpected density: %+v", payload.Density)
	}
}

func TestCommandEndpointsEnqueue(t *testing.T) {
	cases := []struct {
		name string
		path string
		body string
		want sim.CommandType
	}{
		{name: "busyness", path: "/busyness", body: `{"value":2.5}`, want: sim.CommandSetBusyness},
		{name: "wave", path: "/wave", body: `{"entry":"door","count":10,"seconds":5}`, want: sim.CommandTriggerWave},
		{name: "pause", path: "/pause", want: sim.CommandPause},
		{name: "resume", path: "/resume", want: sim.CommandResume},
		{name: "recalculate", path: "/recalculate", want: sim.CommandRecalculatePaths},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			simulation := &fakeSimulation{}
			resp := post(newTestHandler(simulation), tc.path, tc.body)
			if resp.Code != http.StatusAccepted {
				t.Fatalf("expected status 202, got %d: %s", resp.Code, resp.Body.String())
			}
			cmd := simulation.last(t)
			if cmd.Type != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, cmd.Type)
			}
			if cmd.Source == "" {
				t.Fatalf("expected command source to be recorded")
			}
		})
	}
}

func TestCommandPayloadsDecoded(t *testing.T) {
	simulation := &fakeSimulation{}
	handler := newTestHandler(simulation)

	post(handler, "/busyness", `{"value":2.5}`)
	if cmd := simulation.last(t); cmd.Busyness == nil || cmd.Busyness.Value != 2.5 {
		t.Fatalf("unexpected busyness command: %+v", cmd)
	}

	post(handler, "/wave", `{"entry":"door","count":10,"seconds":5}`)
	cmd := simulation.last(t)
	if cmd.Wave == nil || cmd.Wave.Entry != "door" || cmd.Wave.Count != 10 || cmd.Wave.Seconds != 5 {
		t.Fatalf("unexpected wave command: %+v", cmd.Wave)
	}
}

func TestCommandEndpointsRejectBadRequests(t *testing.T) {
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{name: "get pause", method: http.MethodGet, path: "/pause", code: http.StatusMethodNotAllowed},
		{name: "get busyness", method: http.MethodGet, path: "/busyness", code: http.StatusMethodNotAllowed},
		{name: "malformed busyness", method: http.MethodPost, path: "/busyness", body: `{`, code: http.StatusBadRequest},
		{name: "negative busyness", method: http.MethodPost, path: "/busyness", body: `{"value":-1}`, code: http.StatusBadRequest},
		{name: "empty wave", method: http.MethodPost, path: "/wave", body: `{"entry":"door"}`, code: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			simulation := &fakeSimulation{}
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader([]byte(tc.body)))
			resp := httptest.NewRecorder()
			newTestHandler(simulation).ServeHTTP(resp, req)
			if resp.Code != tc.code {
				t.Fatalf("expected status %d, got %d", tc.code, resp.Code)
			}
			if len(simulation.commands) != 0 {
				t.Fatalf("expected no commands, got %d", len(simulation.commands))
			}
		})
	}
}

func TestQueueFullReturnsServiceUnavailable(t *testing.T) {
	resp := post(newTestHandler(&fakeSimulation{full: true}), "/pause", "")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", resp.Code)
	}
}
