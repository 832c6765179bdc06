package navigation

import (
	"context"

	"footfall/server/logging"
)

const (
	// EventPathFallback is emitted when no route exists and an agent heads straight for its target.
	EventPathFallback logging.EventType = "navigation.path_fallback"
	// EventAgentUnstuck is emitted when stuck detection applies a jitter impulse.
	EventAgentUnstuck logging.EventType = "navigation.agent_unstuck"
	// EventMeetFormed is emitted when agents stop to meet each other.
	EventMeetFormed logging.EventType = "navigation.meet_formed"
)

type PathFallbackPayload struct {
	FromX float64 `json:"fromX"`
	FromY float64 `json:"fromY"`
	ToX   float64 `json:"toX"`
	ToY   float64 `json:"toY"`
}

type AgentUnstuckPayload struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	AverageSpeed float64 `json:"averageSpeed"`
}

type MeetFormedPayload struct {
	Kind     string `json:"kind"`
	Duration int    `json:"durationTicks"`
}

// PathFallback publishes a warning for an unreachable target.
func PathFallback(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PathFallbackPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPathFallback,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}

// AgentUnstuck publishes a stuck recovery.
func AgentUnstuck(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AgentUnstuckPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAgentUnstuck,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}

// MeetFormed publishes a new meeting between participants.
func MeetFormed(ctx context.Context, pub logging.Publisher, tick uint64, participants []logging.EntityRef, payload MeetFormedPayload, extra map[string]any) {
	if pub == nil || len(participants) == 0 {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMeetFormed,
		Tick:     tick,
		Actor:    participants[0],
		Targets:  participants[1:],
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNavigation,
		Payload:  payload,
		Extra:    extra,
	})
}
