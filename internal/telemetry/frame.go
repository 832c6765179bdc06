package telemetry

import "footfall/server/internal/geom"

// AgentFrame is the per-agent state published each tick.
type AgentFrame struct {
	ID      int64       `json:"id" msgpack:"id"`
	X       float64     `json:"x" msgpack:"x"`
	Y       float64     `json:"y" msgpack:"y"`
	Heading float64     `json:"heading" msgpack:"heading"`
	Major   float64     `json:"major" msgpack:"major"`
	Minor   float64     `json:"minor" msgpack:"minor"`
	State   string      `json:"state" msgpack:"state"`
	Target  *geom.Vec2  `json:"target,omitempty" msgpack:"target,omitempty"`
	Path    []geom.Vec2 `json:"path,omitempty" msgpack:"path,omitempty"`
}

// Frame is an immutable snapshot of one tick.
type Frame struct {
	Tick     uint64       `json:"tick" msgpack:"tick"`
	Width    float64      `json:"width" msgpack:"width"`
	Height   float64      `json:"height" msgpack:"height"`
	Busyness float64      `json:"busyness" msgpack:"busyness"`
	Paused   bool         `json:"paused" msgpack:"paused"`
	Agents   []AgentFrame `json:"agents" msgpack:"agents"`
}

// FrameSink receives frames after every tick. Implementations must not retain
// the frame beyond the call unless they copy it.
type FrameSink interface {
	PublishFrame(Frame)
}

// FrameSinkFunc adapts a function into a FrameSink.
type FrameSinkFunc func(Frame)

func (f FrameSinkFunc) PublishFrame(frame Frame) {
	if f == nil {
		return
	}
	f(frame)
}
