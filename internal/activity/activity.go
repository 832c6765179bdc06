package activity

import (
	"context"
	"math/rand"
	"strconv"

	"footfall/server/internal/agent"
	"footfall/server/internal/geom"
	"footfall/server/internal/steering"
	"footfall/server/internal/telemetry"
	"footfall/server/internal/world"
	"footfall/server/logging"
	"footfall/server/logging/navigation"
)

type StepKind uint8

const (
	StepMove StepKind = iota
	StepWait
	StepMeet
)

func (k StepKind) String() string {
	switch k {
	case StepWait:
		return "wait"
	case StepMeet:
		return "meet"
	default:
		return "move"
	}
}

// Step is one itinerary entry.
type Step struct {
	Kind StepKind
	// Target and Location describe a move step.
	Target   geom.Vec2
	Location string
	// Ticks is the wait length or the meet length.
	Ticks int
	// Patience bounds how long a meet step waits for a partner.
	Patience int
}

// MoveTo builds a move step.
func MoveTo(location string, target geom.Vec2) Step {
	return Step{Kind: StepMove, Location: location, Target: target}
}

// WaitFor builds a wait step.
func WaitFor(ticks int) Step {
	return Step{Kind: StepWait, Ticks: ticks}
}

// MeetFor builds a planned meet step.
func MeetFor(ticks, patience int) Step {
	return Step{Kind: StepMeet, Ticks: ticks, Patience: patience}
}

// Deps are the collaborators shared by every activity.
type Deps struct {
	Config     world.Config
	Controller *steering.Controller
	Planner    Planner
	Publisher  logging.Publisher
	Metrics    telemetry.Metrics
	RNG        *rand.Rand
}

// Activity drives one agent through its itinerary. It owns the current move
// and holds the meet it takes part in.
type Activity struct {
	agent *agent.Agent
	deps  *Deps
	steps []Step
	index int
	state agent.State

	move      *Move
	stuck     *StuckDetector
	waitTimer int
	anchor    geom.Vec2

	meet         *Meet
	meetDone     bool
	meetPatience int
	resumeWait   int
	interrupted  bool
}

// New creates the activity and starts its first step.
func New(a *agent.Agent, steps []Step, deps *Deps) *Activity {
	cfg := deps.Config
	act := &Activity{
		agent: a,
		deps:  deps,
		steps: steps,
		stuck: NewStuckDetector(cfg.StuckWindow, cfg.StuckSpeed, cfg.DT()),
	}
	act.startNext(0)
	return act
}

func (act *Activity) Agent() *agent.Agent { return act.agent }
func (act *Activity) State() agent.State  { return act.state }
func (act *Activity) Move() *Move         { return act.move }
func (act *Activity) Meet() *Meet         { return act.meet }
func (act *Activity) Steps() []Step       { return act.steps }
func (act *Activity) StepIndex() int      { return act.index }
func (act *Activity) WaitRemaining() int  { return act.waitTimer }

// Completed reports whether the itinerary is exhausted.
func (act *Activity) Completed() bool {
	return act.state == agent.StateCompleted
}

func (act *Activity) setState(s agent.State) {
	act.state = s
	act.agent.State = s
}

func (act *Activity) actor() logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatInt(act.agent.ID, 10), Kind: logging.EntityKindAgent}
}

func (act *Activity) startNext(tick uint64) {
	a := act.agent
	act.move = nil
	a.Path = nil
	if act.index >= len(act.steps) {
		act.setState(agent.StateCompleted)
		a.Stop()
		return
	}
	step := act.steps[act.index]
	switch step.Kind {
	case StepMove:
		act.move = NewMove(a, step.Target, act.deps.Planner)
		act.stuck.Reset()
		act.setState(agent.StateMoving)
		if act.move.Fallback() {
			act.reportFallback(tick)
		}
	case StepWait:
		act.waitTimer = step.Ticks
		act.anchor = a.Pos
		act.setState(agent.StateWaiting)
		a.Stop()
	case StepMeet:
		act.meet = nil
		act.meetDone = false
		act.meetPatience = step.Patience
		act.anchor = a.Pos
		act.setState(agent.StateMeeting)
		a.Stop()
	}
}

func (act *Activity) advance(tick uint64) {
	act.index++
	act.startNext(tick)
}

// Run advances the activity by one tick.
func (act *Activity) Run(tick uint64) {
	switch act.state {
	case agent.StateMoving:
		act.runMove(tick)
	case agent.StateWaiting:
		act.settle()
		act.waitTimer--
		if act.waitTimer <= 0 {
			act.advance(tick)
		}
	case agent.StateMeeting:
		act.runMeet(tick)
	}
}

func (act *Activity) runMove(tick uint64) {
	a := act.agent
	cfg := act.deps.Config
	ctrl := act.deps.Controller

	act.move.Advance(a, cfg.WaypointTolerance)
	a.ApplyForce(ctrl.Steer(a, act.move.SteeringTarget()))
	from := a.Pos
	steering.Integrate(a, ctrl.DT(), a.MinSpeed, a.MaxSpeed)
	ctrl.Confine(a, from)

	act.stuck.Record(a.Pos)
	if act.stuck.Stuck() {
		speed := act.stuck.AverageSpeed()
		ctrl.Jitter(a, cfg.JitterStrength)
		act.stuck.Reset()
		act.count("unstuck")
		navigation.AgentUnstuck(context.Background(), act.deps.Publisher, tick, act.actor(),
			navigation.AgentUnstuckPayload{X: a.Pos.X, Y: a.Pos.Y, AverageSpeed: speed}, nil)
	}

	if act.move.Finished(a) {
		act.advance(tick)
	}
}

func (act *Activity) runMeet(tick uint64) {
	if act.meet != nil {
		if act.meet.Update(tick, act) {
			act.settle()
			return
		}
	}
	if act.meetDone {
		act.finishMeet(tick)
		return
	}
	act.settle()
	act.meetPatience--
	if act.meetPatience <= 0 {
		act.finishMeet(tick)
	}
}

func (act *Activity) finishMeet(tick uint64) {
	act.meet = nil
	act.meetDone = false
	if act.interrupted {
		act.interrupted = false
		act.waitTimer = act.resumeWait
		act.setState(agent.StateWaiting)
		if act.waitTimer <= 0 {
			act.advance(tick)
		}
		return
	}
	act.advance(tick)
}

// settle runs give-way and return-to-anchor under the lowered wait speed cap.
func (act *Activity) settle() {
	a := act.agent
	ctrl := act.deps.Controller
	a.ApplyForce(ctrl.Settle(a, act.anchor))
	from := a.Pos
	steering.Integrate(a, ctrl.DT(), 0, act.SpeedCap())
	ctrl.Confine(a, from)
}

// SpeedCap is the maximum speed allowed in the current state.
func (act *Activity) SpeedCap() float64 {
	switch act.state {
	case agent.StateWaiting, agent.StateMeeting:
		return act.agent.MaxSpeed * act.deps.Config.WaitSpeedFactor
	case agent.StateMoving:
		return act.agent.MaxSpeed
	default:
		return 0
	}
}

// SeekingPartner reports a planned meet step still looking for company.
func (act *Activity) SeekingPartner() bool {
	return act.state == agent.StateMeeting && act.meet == nil && !act.meetDone
}

// OpenForUnplanned reports an agent idling at a stop who could be drawn into
// a spontaneous meet.
func (act *Activity) OpenForUnplanned() bool {
	return act.state == agent.StateWaiting && act.meet == nil && act.waitTimer > 1
}

// PlannedMeetTicks is the length of the current meet step, or zero.
func (act *Activity) PlannedMeetTicks() int {
	if act.state != agent.StateMeeting || act.index >= len(act.steps) {
		return 0
	}
	return act.steps[act.index].Ticks
}

// JoinMeet attaches m to the activity. A waiting agent is interrupted and
// resumes its remaining wait once the meet ends.
func (act *Activity) JoinMeet(m *Meet) {
	if act.state == agent.StateWaiting {
		act.interrupted = true
		act.resumeWait = act.waitTimer
		act.anchor = act.agent.Pos
		act.setState(agent.StateMeeting)
	}
	act.meet = m
	act.meetDone = false
}

// ClearMeet is called by a meet that has ended.
func (act *Activity) ClearMeet(m *Meet) {
	if act.meet != m {
		return
	}
	act.meet = nil
	act.meetDone = true
}

// RecalculatePath replans the current move from the agent's position.
func (act *Activity) RecalculatePath(tick uint64) {
	if act.state != agent.StateMoving || act.move == nil {
		return
	}
	act.move.Recalculate(act.agent)
	act.stuck.Reset()
	if act.move.Fallback() {
		act.reportFallback(tick)
	}
}

func (act *Activity) reportFallback(tick uint64) {
	act.count("fallbacks")
	from, to := act.agent.Pos, act.move.Final()
	navigation.PathFallback(context.Background(), act.deps.Publisher, tick, act.actor(),
		navigation.PathFallbackPayload{FromX: from.X, FromY: from.Y, ToX: to.X, ToY: to.Y}, nil)
}

func (act *Activity) count(key string) {
	if act.deps.Metrics != nil {
		act.deps.Metrics.Add(key, 1)
	}
}

var _ Participant = (*Activity)(nil)
