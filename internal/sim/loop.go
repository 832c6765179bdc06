package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"footfall/server/internal/population"
	"footfall/server/internal/telemetry"
	"footfall/server/logging"
	"footfall/server/logging/simulation"
)

// CommandRejectQueueFull indicates the command buffer is saturated.
const CommandRejectQueueFull = "queue_full"

// Core is the simulation driven by the loop. *population.Manager satisfies it.
type Core interface {
	Step(tick uint64)
	SetBusyness(v float64)
	TriggerWave(entry string, count int, seconds float64) error
	RecalculateAllPaths(tick uint64)
	Frame(tick uint64, paused bool) telemetry.Frame
	Stats() population.Stats
}

// Deps carries shared infrastructure for the loop.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
}

// LoopConfig tunes the command buffer and tick loop.
type LoopConfig struct {
	TickRate        int
	CommandCapacity int
	WarningStep     int
}

// LoopHooks lets callers observe the loop without touching simulation state.
type LoopHooks struct {
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// LoopStepResult summarises one pass of the loop.
type LoopStepResult struct {
	Tick     uint64
	Now      time.Time
	Duration time.Duration
	Budget   time.Duration
	Paused   bool
	Commands []Command
	Frame    telemetry.Frame
}

// Loop drains queued commands and steps the core at a fixed rate. Only the
// loop goroutine touches the core; other goroutines talk to it through
// Enqueue and the read-only accessors.
type Loop struct {
	core   Core
	buffer *CommandBuffer
	hooks  LoopHooks
	config LoopConfig
	logger telemetry.Logger
	pub    logging.Publisher
	clock  logging.Clock

	tick    atomic.Uint64
	paused  atomic.Bool
	streak  uint64
	statsMu sync.RWMutex
	stats   population.Stats
}

func NewLoop(core Core, cfg LoopConfig, deps Deps, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 20
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = 64
	}
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	pub := deps.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	l := &Loop{
		core:   core,
		buffer: NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:  hooks,
		config: cfg,
		logger: deps.Logger,
		pub:    pub,
		clock:  clock,
	}
	l.stats = core.Stats()
	return l
}

// Tick reports the last completed tick.
func (l *Loop) Tick() uint64 {
	if l == nil {
		return 0
	}
	return l.tick.Load()
}

func (l *Loop) Paused() bool {
	if l == nil {
		return false
	}
	return l.paused.Load()
}

// Stats returns the population summary captured after the last step.
func (l *Loop) Stats() population.Stats {
	if l == nil {
		return population.Stats{}
	}
	l.statsMu.RLock()
	defer l.statsMu.RUnlock()
	return l.stats
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command for the next tick.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = l.clock.Now()
	}
	if !l.buffer.Push(cmd) {
		if l.hooks.OnCommandDrop != nil {
			l.hooks.OnCommandDrop(CommandRejectQueueFull, cmd)
		}
		if l.logger != nil {
			l.logger.Printf("[backpressure] dropping command type=%s source=%s", cmd.Type, cmd.Source)
		}
		return false, CommandRejectQueueFull
	}
	if step := l.config.WarningStep; step > 0 && l.hooks.OnQueueWarning != nil {
		if length := l.buffer.Len(); length >= step && length%step == 0 {
			l.hooks.OnQueueWarning(length)
		}
	}
	return true, ""
}

// Advance applies staged commands and steps the core once unless paused.
func (l *Loop) Advance(now time.Time) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.buffer.Drain()
	tick := l.tick.Load()
	l.apply(tick, commands)

	paused := l.paused.Load()
	if !paused {
		tick++
		l.core.Step(tick)
		l.tick.Store(tick)
	}
	stats := l.core.Stats()
	l.statsMu.Lock()
	l.stats = stats
	l.statsMu.Unlock()

	return LoopStepResult{
		Tick:     tick,
		Now:      now,
		Paused:   paused,
		Commands: commands,
		Frame:    l.core.Frame(tick, paused),
	}
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	budget := time.Second / time.Duration(l.config.TickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			start := l.clock.Now()
			result := l.Advance(start)
			result.Duration = l.clock.Now().Sub(start)
			result.Budget = budget
			l.checkBudget(result)
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) checkBudget(result LoopStepResult) {
	if result.Budget <= 0 || result.Duration <= result.Budget {
		l.streak = 0
		return
	}
	l.streak++
	simulation.TickBudgetOverrun(context.Background(), l.pub, result.Tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         l.streak,
	}, nil)
}

func (l *Loop) apply(tick uint64, commands []Command) {
	for _, cmd := range commands {
		switch cmd.Type {
		case CommandSetBusyness:
			if cmd.Busyness != nil {
				l.core.SetBusyness(cmd.Busyness.Value)
			}
		case CommandTriggerWave:
			if cmd.Wave == nil {
				continue
			}
			if err := l.core.TriggerWave(cmd.Wave.Entry, cmd.Wave.Count, cmd.Wave.Seconds); err != nil && l.logger != nil {
				l.logger.Printf("[sim] wave rejected: %v", err)
			}
		case CommandPause:
			l.setPaused(tick, true)
		case CommandResume:
			l.setPaused(tick, false)
		case CommandRecalculatePaths:
			l.core.RecalculateAllPaths(tick)
		default:
			if l.logger != nil {
				l.logger.Printf("[sim] ignoring unknown command %q", cmd.Type)
			}
		}
	}
}

func (l *Loop) setPaused(tick uint64, paused bool) {
	if l.paused.Swap(paused) == paused {
		return
	}
	simulation.Paused(context.Background(), l.pub, tick, simulation.PausedPayload{Paused: paused}, nil)
}

var _ Core = (*population.Manager)(nil)
