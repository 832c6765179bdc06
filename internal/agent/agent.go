package agent

import (
	"math/rand"

	"footfall/server/internal/geom"
	"footfall/server/internal/nav"
	"footfall/server/internal/spatial"
	"footfall/server/internal/world"
)

// State mirrors the activity state so perception and steering can read it
// without depending on the activity package.
type State uint8

const (
	StateIdle State = iota
	StateMoving
	StateWaiting
	StateMeeting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateMoving:
		return "MOVING"
	case StateWaiting:
		return "WAITING"
	case StateMeeting:
		return "MEETING"
	case StateCompleted:
		return "COMPLETED"
	default:
		return "IDLE"
	}
}

// Buckets hold what an agent perceived this tick. They are rebuilt from the
// spatial index every tick and never outlive it.
type Buckets struct {
	Dynamic      []*Agent
	Targets      []*nav.Location
	OnPath       []*nav.Location
	WithinCircle []*Agent
}

func (b *Buckets) reset() {
	b.Dynamic = b.Dynamic[:0]
	b.Targets = b.Targets[:0]
	b.OnPath = b.OnPath[:0]
	b.WithinCircle = b.WithinCircle[:0]
}

// Agent is one simulated pedestrian. Lengths are pixels, time is seconds.
type Agent struct {
	ID  int64
	Pos geom.Vec2
	Vel geom.Vec2
	Acc geom.Vec2

	Major float64
	Minor float64

	MaxSpeed float64
	MinSpeed float64
	MaxAccel float64

	// Heading is the facing angle. It follows velocity while moving and is
	// frozen otherwise.
	Heading           float64
	WanderTheta       float64
	MeetingPropensity float64

	State State
	// Path is the current move's vertex list, or nil outside a move.
	Path []geom.Vec2

	Cone      spatial.Cone
	Circle    spatial.Circle
	Perceived Buckets

	SpawnTick uint64
	Entry     string
}

// New samples a body and gait from cfg and places the agent at pos with a
// small random initial velocity.
func New(id int64, pos geom.Vec2, cfg world.Config, rng *rand.Rand) *Agent {
	major := cfg.CmToPixels(world.RandomInRange(rng, cfg.ShoulderWidthCm))
	maxSpeed := cfg.CmToPixels(world.RandomInRange(rng, cfg.WalkSpeedCm))
	a := &Agent{
		ID:                id,
		Pos:               pos,
		Vel:               geom.V(world.RandomBetween(rng, -1, 1), world.RandomBetween(rng, -1, 1)),
		Major:             major,
		Minor:             major * 2 / 3,
		MaxSpeed:          maxSpeed,
		MinSpeed:          maxSpeed * cfg.MinSpeedFactor,
		MaxAccel:          maxSpeed * cfg.AccelFactor,
		MeetingPropensity: world.RandomBetween(rng, 0, cfg.MaxPropensity),
	}
	a.Heading = a.Vel.Heading()
	return a
}

// SeeingDistance is the personal-space scale used for wall margins.
func (a *Agent) SeeingDistance() float64 {
	return a.Major * 3
}

func (a *Agent) Speed() float64 {
	return a.Vel.Len()
}

// ApplyForce accumulates an acceleration for the next integration.
func (a *Agent) ApplyForce(f geom.Vec2) {
	a.Acc = a.Acc.Add(f)
}

// Face turns the agent towards p without moving it.
func (a *Agent) Face(p geom.Vec2) {
	d := p.Sub(a.Pos)
	if d.IsZero() {
		return
	}
	a.Heading = d.Heading()
}

// Stop zeroes velocity and pending acceleration.
func (a *Agent) Stop() {
	a.Vel = geom.Vec2{}
	a.Acc = geom.Vec2{}
}

// ResetPerception clears the buckets, keeping their capacity.
func (a *Agent) ResetPerception() {
	a.Perceived.reset()
}

// Moving reports whether the agent is following a path.
func (a *Agent) Moving() bool {
	return a.State == StateMoving
}
