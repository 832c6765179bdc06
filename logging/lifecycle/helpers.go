package lifecycle

import (
	"context"

	"footfall/server/logging"
)

const (
	// EventAgentSpawned is emitted when a pedestrian enters the space.
	EventAgentSpawned logging.EventType = "population.agent_spawned"
	// EventAgentCompleted is emitted when a pedestrian finishes its itinerary and is reaped.
	EventAgentCompleted logging.EventType = "population.agent_completed"
	// EventWaveStarted is emitted when an arrival wave is scheduled.
	EventWaveStarted logging.EventType = "population.wave_started"
	// EventWaveFinished is emitted when an arrival wave has spawned everyone or run out of time.
	EventWaveFinished logging.EventType = "population.wave_finished"
)

// AgentSpawnedPayload captures where and with what plan an agent entered.
type AgentSpawnedPayload struct {
	Entry    string  `json:"entry"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Stops    int     `json:"stops"`
	MaxSpeed float64 `json:"maxSpeed"`
	Wave     bool    `json:"wave,omitempty"`
}

// AgentCompletedPayload captures how long an agent was in the space.
type AgentCompletedPayload struct {
	Ticks uint64 `json:"ticks"`
}

// WavePayload describes an arrival wave.
type WavePayload struct {
	Entry   string  `json:"entry"`
	Count   int     `json:"count"`
	Seconds float64 `json:"seconds"`
	Spawned int     `json:"spawned,omitempty"`
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryPopulation
	pub.Publish(ctx, event)
}

// AgentSpawned publishes a spawn event.
func AgentSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AgentSpawnedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventAgentSpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Payload:  payload,
		Extra:    extra,
	})
}

// AgentCompleted publishes a completion event.
func AgentCompleted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AgentCompletedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventAgentCompleted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Payload:  payload,
		Extra:    extra,
	})
}

// WaveStarted publishes the start of an arrival wave.
func WaveStarted(ctx context.Context, pub logging.Publisher, tick uint64, payload WavePayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventWaveStarted,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: payload.Entry, Kind: logging.EntityKindWave},
		Severity: logging.SeverityInfo,
		Payload:  payload,
		Extra:    extra,
	})
}

// WaveFinished publishes the end of an arrival wave.
func WaveFinished(ctx context.Context, pub logging.Publisher, tick uint64, payload WavePayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventWaveFinished,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: payload.Entry, Kind: logging.EntityKindWave},
		Severity: logging.SeverityInfo,
		Payload:  payload,
		Extra:    extra,
	})
}
