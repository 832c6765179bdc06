package activity

import (
	"footfall/server/internal/agent"
	"footfall/server/internal/geom"
	"footfall/server/internal/nav"
	"footfall/server/internal/steering"
)

// Planner resolves a route between two points.
type Planner interface {
	Plan(start, goal geom.Vec2) nav.Route
}

// GraphPlanner plans over a static navigation graph.
type GraphPlanner struct {
	Graph   *nav.Graph
	LOS     nav.LineOfSight
	Options nav.PlanOptions
}

func (p GraphPlanner) Plan(start, goal geom.Vec2) nav.Route {
	return nav.Plan(p.Graph, start, goal, p.LOS, p.Options)
}

// Move follows a planned route to a final target. The cursor only moves
// forward and freezes once the final approach begins.
type Move struct {
	planner       Planner
	path          []geom.Vec2
	index         int
	target        geom.Vec2
	final         geom.Vec2
	finalApproach bool
	fallback      bool
}

// NewMove plans a route from the agent's position to final.
func NewMove(a *agent.Agent, final geom.Vec2, planner Planner) *Move {
	m := &Move{planner: planner, final: final}
	m.Recalculate(a)
	return m
}

// Recalculate replans from the agent's current position.
func (m *Move) Recalculate(a *agent.Agent) {
	route := nav.Route{Points: []geom.Vec2{a.Pos, m.final}, Fallback: true}
	if m.planner != nil {
		route = m.planner.Plan(a.Pos, m.final)
	}
	m.path = route.Points
	m.fallback = route.Fallback
	if len(m.path) > 1 {
		m.index = 1
		m.target = m.path[1]
		m.finalApproach = false
	} else {
		m.index = 0
		m.target = m.final
		m.finalApproach = true
	}
	a.Path = m.path
}

// Advance moves the cursor to the next vertex once the current one is within
// tolerance. After the last vertex the move switches to the final target.
func (m *Move) Advance(a *agent.Agent, tolerance float64) {
	if m.finalApproach {
		return
	}
	if a.Pos.Dist(m.target) >= tolerance {
		return
	}
	if m.index < len(m.path)-1 {
		m.index++
		m.target = m.path[m.index]
		return
	}
	m.finalApproach = true
	m.target = m.final
}

// Finished reports arrival: within two body lengths of the final target, or
// within four while no longer closing in on it.
func (m *Move) Finished(a *agent.Agent) bool {
	if !m.finalApproach {
		return false
	}
	tolerance := a.Major * 2
	dist := a.Pos.Dist(m.final)
	if dist < tolerance {
		return true
	}
	return dist < tolerance*2 && a.Vel.Dot(m.final.Sub(a.Pos)) <= 0
}

// SteeringTarget is what the controller should aim at this tick.
func (m *Move) SteeringTarget() steering.Target {
	return steering.Target{Point: m.target, Arrive: m.finalApproach, Goal: m.final}
}

func (m *Move) Path() []geom.Vec2   { return m.path }
func (m *Move) Index() int          { return m.index }
func (m *Move) Target() geom.Vec2   { return m.target }
func (m *Move) Final() geom.Vec2    { return m.final }
func (m *Move) FinalApproach() bool { return m.finalApproach }
func (m *Move) Fallback() bool      { return m.fallback }
