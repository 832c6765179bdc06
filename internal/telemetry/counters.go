package telemetry

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Counters aggregates process-wide simulation statistics.
type Counters struct {
	ticks              atomic.Uint64
	spawned            atomic.Uint64
	completed          atomic.Uint64
	fallbacks          atomic.Uint64
	unstuck            atomic.Uint64
	meets              atomic.Uint64
	active             atomic.Uint64
	bytesSent          atomic.Uint64
	framesSent         atomic.Uint64
	tickDurationMicros atomic.Int64
	debug              bool
}

// CountersSnapshot is the JSON view of Counters.
type CountersSnapshot struct {
	Ticks        uint64 `json:"ticks"`
	Spawned      uint64 `json:"spawned"`
	Completed    uint64 `json:"completed"`
	Active       uint64 `json:"active"`
	Fallbacks    uint64 `json:"fallbacks"`
	Unstuck      uint64 `json:"unstuck"`
	Meets        uint64 `json:"meets"`
	BytesSent    uint64 `json:"bytesSent"`
	FramesSent   uint64 `json:"framesSent"`
	TickDuration int64  `json:"tickDurationMicros"`
}

// NewCounters enables per-tick debug output when FOOTFALL_DEBUG_TELEMETRY=1.
func NewCounters() *Counters {
	c := &Counters{}
	if os.Getenv("FOOTFALL_DEBUG_TELEMETRY") == "1" {
		c.debug = true
	}
	return c
}

func (c *Counters) Add(key string, delta uint64) {
	if c == nil {
		return
	}
	switch key {
	case "ticks":
		c.ticks.Add(delta)
	case "spawned":
		c.spawned.Add(delta)
	case "completed":
		c.completed.Add(delta)
	case "fallbacks":
		c.fallbacks.Add(delta)
	case "unstuck":
		c.unstuck.Add(delta)
	case "meets":
		c.meets.Add(delta)
	}
}

func (c *Counters) Store(key string, value uint64) {
	if c == nil {
		return
	}
	if key == "active" {
		c.active.Store(value)
	}
}

// RecordBroadcast accounts for one frame written to subscribers.
func (c *Counters) RecordBroadcast(bytes int) {
	if c == nil {
		return
	}
	if bytes < 0 {
		bytes = 0
	}
	c.bytesSent.Add(uint64(bytes))
	c.framesSent.Add(1)
}

func (c *Counters) RecordTickDuration(duration time.Duration) {
	if c == nil {
		return
	}
	micros := duration.Microseconds()
	if micros < 0 {
		micros = 0
	}
	c.tickDurationMicros.Store(micros)
	if c.debug {
		fmt.Printf("[telemetry] tick=%dus active=%d spawned=%d completed=%d\n",
			micros, c.active.Load(), c.spawned.Load(), c.completed.Load())
	}
}

func (c *Counters) Snapshot() CountersSnapshot {
	if c == nil {
		return CountersSnapshot{}
	}
	return CountersSnapshot{
		Ticks:        c.ticks.Load(),
		Spawned:      c.spawned.Load(),
		Completed:    c.completed.Load(),
		Active:       c.active.Load(),
		Fallbacks:    c.fallbacks.Load(),
		Unstuck:      c.unstuck.Load(),
		Meets:        c.meets.Load(),
		BytesSent:    c.bytesSent.Load(),
		FramesSent:   c.framesSent.Load(),
		TickDuration: c.tickDurationMicros.Load(),
	}
}

var _ Metrics = (*Counters)(nil)
