package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"time"

	"footfall/server/internal/net/ws"
	"footfall/server/internal/population"
	"footfall/server/internal/sim"
	"footfall/server/internal/telemetry"
)

// Simulation is the loop surface the HTTP layer talks to. Handlers never touch
// simulation state directly; they enqueue commands.
type Simulation interface {
	Enqueue(cmd sim.Command) (bool, string)
	Tick() uint64
	Paused() bool
	Stats() population.Stats
}

type HTTPHandlerConfig struct {
	Logger   telemetry.Logger
	Counters *telemetry.Counters
	TickRate int
	// Density returns the latest published density snapshot. Optional.
	Density func() population.DensitySnapshot
}

type commandResponse struct {
	Status  string `json:"status"`
	Command string `json:"command"`
	Tick    uint64 `json:"tick"`
}

func NewHTTPHandler(simulation Simulation, hub *ws.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string                      `json:"status"`
			ServerTime int64                       `json:"serverTime"`
			Tick       uint64                      `json:"tick"`
			Paused     bool                        `json:"paused"`
			TickRate   int                         `json:"tickRate"`
			Viewers    int                         `json:"viewers"`
			Population population.Stats            `json:"population"`
			Telemetry  telemetry.CountersSnapshot  `json:"telemetry"`
			Density    *population.DensitySnapshot `json:"density,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Tick:       simulation.Tick(),
			Paused:     simulation.Paused(),
			TickRate:   cfg.TickRate,
			Population: simulation.Stats(),
			Telemetry:  cfg.Counters.Snapshot(),
		}
		if hub != nil {
			payload.Viewers = hub.Len()
		}
		if cfg.Density != nil {
			snapshot := cfg.Density()
			payload.Density = &snapshot
		}

		writeJSON(w, nethttp.StatusOK, payload)
	})

	if hub != nil {
		handler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})
		mux.HandleFunc("/ws", handler.Handle)
	}

	mux.HandleFunc("/busyness", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req sim.BusynessCommand
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		if req.Value < 0 {
			httpError(w, "busyness must be non-negative", nethttp.StatusBadRequest)
			return
		}
		enqueue(w, r, simulation, logger, sim.Command{Type: sim.CommandSetBusyness, Busyness: &req})
	})

	mux.HandleFunc("/wave", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req sim.WaveCommand
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		if req.Count <= 0 || req.Seconds <= 0 {
			httpError(w, "count and seconds must be positive", nethttp.StatusBadRequest)
			return
		}
		enqueue(w, r, simulation, logger, sim.Command{Type: sim.CommandTriggerWave, Wave: &req})
	})

	simple := map[string]sim.CommandType{
		"/pause":       sim.CommandPause,
		"/resume":      sim.CommandResume,
		"/recalculate": sim.CommandRecalculatePaths,
	}
	for path, commandType := range simple {
		commandType := commandType
		mux.HandleFunc(path, func(w nethttp.ResponseWriter, r *nethttp.Request) {
			if r.Method != nethttp.MethodPost {
				httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
				return
			}
			enqueue(w, r, simulation, logger, sim.Command{Type: commandType})
		})
	}

	return mux
}

func enqueue(w nethttp.ResponseWriter, r *nethttp.Request, simulation Simulation, logger telemetry.Logger, cmd sim.Command) {
	cmd.Source = r.RemoteAddr
	if ok, reason := simulation.Enqueue(cmd); !ok {
		logger.Printf("rejected %s from %s: %s", cmd.Type, cmd.Source, reason)
		httpError(w, "command queue full", nethttp.StatusServiceUnavailable)
		return
	}
	writeJSON(w, nethttp.StatusAccepted, commandResponse{
		Status:  "queued",
		Command: string(cmd.Type),
		Tick:    simulation.Tick(),
	})
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
