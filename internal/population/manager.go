package population

import (
	"context"
	"math"
	"math/rand"
	"strconv"

	"footfall/server/internal/activity"
	"footfall/server/internal/agent"
	"footfall/server/internal/geom"
	"footfall/server/internal/nav"
	"footfall/server/internal/perception"
	"footfall/server/internal/steering"
	"footfall/server/internal/telemetry"
	"footfall/server/internal/world"
	"footfall/server/logging"
	"footfall/server/logging/lifecycle"
	"footfall/server/logging/navigation"
)

const spawnAttempts = 200

// Deps carries the static world and the shared infrastructure for a Manager.
type Deps struct {
	Config    world.Config
	Env       world.Environment
	Graph     *nav.Graph
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger
}

// Manager owns every live agent and its activity. It is not safe for
// concurrent use; the tick loop is its only caller.
type Manager struct {
	cfg       world.Config
	env       world.Environment
	graph     *nav.Graph
	entries   []*nav.Location
	subGoals  []*nav.Location
	locations []*nav.Location

	perception *perception.System
	deps       *activity.Deps
	pub        logging.Publisher
	metrics    telemetry.Metrics
	logger     telemetry.Logger

	rng     *rand.Rand
	meetRNG *rand.Rand

	activities []*activity.Activity
	agents     []*agent.Agent
	open       map[*agent.Agent]*activity.Activity
	waves      []*wave
	density    *DensityGrid

	busyness float64
	lambda   float64
	nextID   int64
	tick     uint64
}

func NewManager(d Deps) *Manager {
	cfg := d.Config.Normalized()
	pub := d.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	graph := d.Graph
	if graph == nil {
		graph = nav.NewGraph(d.Logger)
	}
	width, height := cfg.Width, cfg.Height
	if d.Env != nil {
		width, height = d.Env.Width(), d.Env.Height()
	}

	m := &Manager{
		cfg:        cfg,
		env:        d.Env,
		graph:      graph,
		entries:    graph.Locations(nav.KindEntry),
		subGoals:   graph.Locations(nav.KindSubGoal),
		locations:  graph.Nodes(),
		perception: perception.NewSystem(perception.SettingsFromConfig(cfg), width, height),
		pub:        pub,
		metrics:    d.Metrics,
		logger:     d.Logger,
		rng:        world.NewDeterministicRNG(cfg.Seed, "population"),
		meetRNG:    world.NewDeterministicRNG(cfg.Seed, "meet"),
		open:       make(map[*agent.Agent]*activity.Activity),
		density:    NewDensityGrid(width, height, cfg.DensityCellSize),
		busyness:   cfg.Busyness,
	}
	m.lambda = DeriveSpawnRate(m.subGoals)

	steeringRNG := world.NewDeterministicRNG(cfg.Seed, "steering")
	var planner activity.Planner
	if d.Env != nil {
		planner = activity.GraphPlanner{
			Graph:   graph,
			LOS:     d.Env,
			Options: nav.PlanOptions{PruneLineOfSight: cfg.PruneLineOfSight},
		}
	}
	var ctrl *steering.Controller
	if d.Env != nil {
		ctrl = steering.NewController(d.Env, steeringRNG, cfg)
	}
	m.deps = &activity.Deps{
		Config:     cfg,
		Controller: ctrl,
		Planner:    planner,
		Publisher:  pub,
		Metrics:    d.Metrics,
		RNG:        steeringRNG,
	}
	if len(m.entries) == 0 && m.logger != nil {
		m.logger.Printf("[population] no entries configured; spawning disabled")
	}
	return m
}

func (m *Manager) Config() world.Config { return m.cfg }
func (m *Manager) Tick() uint64         { return m.tick }
func (m *Manager) SpawnRate() float64   { return m.lambda }
func (m *Manager) Busyness() float64    { return m.busyness }
func (m *Manager) Len() int             { return len(m.activities) }

// SetBusyness scales the arrival rate. Negative values stop arrivals.
func (m *Manager) SetBusyness(v float64) {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	m.busyness = v
}

// Activities returns the live activities in spawn order.
func (m *Manager) Activities() []*activity.Activity {
	return m.activities
}

// Agents returns the live agents in spawn order.
func (m *Manager) Agents() []*agent.Agent {
	return m.agents
}

func (m *Manager) Density() *DensityGrid {
	return m.density
}

// Seed spawns n agents immediately, bypassing the arrival process.
func (m *Manager) Seed(n int) int {
	spawned := 0
	for i := 0; i < n; i++ {
		if _, ok := m.Spawn(m.tick); ok {
			spawned++
		}
	}
	return spawned
}

// Step advances the population by one tick: arrivals, spatial index,
// perception, meet matching, activities, then reaping.
func (m *Manager) Step(tick uint64) {
	m.tick = tick
	if m.rng.Float64() < SpawnProbability(m.lambda, m.busyness, m.cfg.DT()) {
		m.Spawn(tick)
	}
	m.runWaves(tick)

	m.perception.Rebuild(m.agents, m.locations)
	m.perception.RefreshAll(m.agents)
	m.matchMeets(tick)
	for _, act := range m.activities {
		act.Run(tick)
	}
	m.density.Update(m.agents)
	m.reap(tick)

	if m.metrics != nil {
		m.metrics.Add("ticks", 1)
		m.metrics.Store("active", uint64(len(m.activities)))
	}
}

// Spawn creates one agent at a traffic-weighted entry.
func (m *Manager) Spawn(tick uint64) (*activity.Activity, bool) {
	return m.spawnFrom(tick, nil, false)
}

func (m *Manager) spawnFrom(tick uint64, entry *nav.Location, fromWave bool) (*activity.Activity, bool) {
	if entry == nil {
		picked, ok := PickWeighted(m.rng, m.entries, entryWeight)
		if !ok {
			return nil, false
		}
		entry = picked
	}
	if m.deps.Controller == nil {
		return nil, false
	}
	pos := entry.RandomPixel(m.rng)
	if (len(entry.Pixels) == 0 && !entry.HasWaypoint()) || world.Blocked(m.env, pos) {
		p, ok := world.RandomWalkable(m.env, m.rng, spawnAttempts)
		if !ok {
			if m.logger != nil {
				m.logger.Printf("[population] entry %q has no walkable position; spawn skipped", entry.Name)
			}
			return nil, false
		}
		pos = p
	}

	m.nextID++
	a := agent.New(m.nextID, pos, m.cfg, m.rng)
	a.SpawnTick = tick
	a.Entry = entry.Name
	m.perception.UpdateGeometry(a)

	it := m.BuildItinerary(a)
	act := activity.New(a, it.Steps, m.deps)
	m.activities = append(m.activities, act)
	m.agents = append(m.agents, a)

	m.count("spawned")
	lifecycle.AgentSpawned(context.Background(), m.pub, tick, agentRef(a), lifecycle.AgentSpawnedPayload{
		Entry:    entry.Name,
		X:        pos.X,
		Y:        pos.Y,
		Stops:    it.Visits,
		MaxSpeed: a.MaxSpeed,
		Wave:     fromWave,
	}, nil)
	return act, true
}

// RecalculateAllPaths replans every moving agent from where it stands.
func (m *Manager) RecalculateAllPaths(tick uint64) {
	for _, act := range m.activities {
		act.RecalculatePath(tick)
	}
}

func (m *Manager) matchMeets(tick uint64) {
	clear(m.open)
	for _, act := range m.activities {
		if act.SeekingPartner() || act.OpenForUnplanned() {
			m.open[act.Agent()] = act
		}
	}
	if len(m.open) < 2 {
		return
	}
	for _, act := range m.activities {
		a := act.Agent()
		if m.open[a] == nil {
			continue
		}
		planned := act.SeekingPartner()
		for _, other := range a.Perceived.WithinCircle {
			partner := m.open[other]
			if partner == nil || partner == act {
				continue
			}
			if planned {
				if !partner.SeekingPartner() {
					continue
				}
				m.formMeet(tick, activity.MeetPlanned, max(act.PlannedMeetTicks(), partner.PlannedMeetTicks()), act, partner)
				break
			}
			if !partner.OpenForUnplanned() {
				continue
			}
			if world.RandomFloat(m.meetRNG) >= a.MeetingPropensity {
				continue
			}
			m.formMeet(tick, activity.MeetUnplanned, activity.SampleMeetTicks(m.cfg, m.meetRNG), act, partner)
			break
		}
	}
}

func (m *Manager) formMeet(tick uint64, kind activity.MeetKind, duration int, members ...*activity.Activity) {
	participants := make([]activity.Participant, len(members))
	refs := make([]logging.EntityRef, len(members))
	for i, act := range members {
		participants[i] = act
		refs[i] = agentRef(act.Agent())
		delete(m.open, act.Agent())
	}
	meet := activity.NewMeet(kind, duration, participants...)
	meet.Activate()
	for _, act := range members {
		act.JoinMeet(meet)
	}
	m.count("meets")
	navigation.MeetFormed(context.Background(), m.pub, tick, refs,
		navigation.MeetFormedPayload{Kind: string(kind), Duration: meet.Duration()}, nil)
}

// reap drops completed activities, compacting in place and keeping order.
func (m *Manager) reap(tick uint64) {
	kept := 0
	for i, act := range m.activities {
		if !act.Completed() {
			m.activities[kept] = act
			m.agents[kept] = m.agents[i]
			kept++
			continue
		}
		a := act.Agent()
		m.count("completed")
		lifecycle.AgentCompleted(context.Background(), m.pub, tick, agentRef(a),
			lifecycle.AgentCompletedPayload{Ticks: tick - a.SpawnTick}, nil)
	}
	for i := kept; i < len(m.activities); i++ {
		m.activities[i] = nil
		m.agents[i] = nil
	}
	m.activities = m.activities[:kept]
	m.agents = m.agents[:kept]
}

// Frame snapshots the population for telemetry.
func (m *Manager) Frame(tick uint64, paused bool) telemetry.Frame {
	frame := telemetry.Frame{
		Tick:     tick,
		Width:    m.cfg.Width,
		Height:   m.cfg.Height,
		Busyness: m.busyness,
		Paused:   paused,
		Agents:   make([]telemetry.AgentFrame, 0, len(m.activities)),
	}
	if m.env != nil {
		frame.Width, frame.Height = m.env.Width(), m.env.Height()
	}
	for _, act := range m.activities {
		a := act.Agent()
		af := telemetry.AgentFrame{
			ID:      a.ID,
			X:       a.Pos.X,
			Y:       a.Pos.Y,
			Heading: a.Heading,
			Major:   a.Major,
			Minor:   a.Minor,
			State:   a.State.String(),
		}
		if mv := act.Move(); mv != nil {
			target := mv.Target()
			af.Target = &target
			af.Path = append([]geom.Vec2(nil), mv.Path()...)
		}
		frame.Agents = append(frame.Agents, af)
	}
	return frame
}

// Stats summarises the population for diagnostics.
type Stats struct {
	Active      int            `json:"active"`
	Busyness    float64        `json:"busyness"`
	SpawnRate   float64        `json:"spawnRate"`
	ActiveWaves int            `json:"activeWaves"`
	States      map[string]int `json:"states"`
}

func (m *Manager) Stats() Stats {
	states := make(map[string]int)
	for _, act := range m.activities {
		states[act.State().String()]++
	}
	return Stats{
		Active:      len(m.activities),
		Busyness:    m.busyness,
		SpawnRate:   m.lambda,
		ActiveWaves: len(m.waves),
		States:      states,
	}
}

func (m *Manager) publishWaveStarted(w *wave) {
	lifecycle.WaveStarted(context.Background(), m.pub, m.tick, lifecycle.WavePayload{
		Entry:   w.entryName(),
		Count:   w.count,
		Seconds: w.seconds,
	}, nil)
}

func (m *Manager) publishWaveFinished(tick uint64, w *wave) {
	lifecycle.WaveFinished(context.Background(), m.pub, tick, lifecycle.WavePayload{
		Entry:   w.entryName(),
		Count:   w.count,
		Seconds: w.seconds,
		Spawned: w.spawned,
	}, nil)
}

func (m *Manager) count(key string) {
	if m.metrics != nil {
		m.metrics.Add(key, 1)
	}
}

func agentRef(a *agent.Agent) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatInt(a.ID, 10), Kind: logging.EntityKindAgent}
}
