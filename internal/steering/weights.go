package steering

import (
	"footfall/server/internal/agent"
	"footfall/server/internal/geom"
)

// CrowdSaturation is the neighbour count at which the crowd factor reaches one.
const CrowdSaturation = 5

// Weights scale each behaviour before the forces are summed.
type Weights struct {
	Queueing     float64
	Cohesion     float64
	Alignment    float64
	Seek         float64
	AvoidStatic  float64
	AvoidDynamic float64
	Bounds       float64
	Wander       float64
}

// BaseWeights are the weights before goal and crowd adaptation.
func BaseWeights() Weights {
	return Weights{
		Queueing:     1.2,
		Cohesion:     0.25,
		Alignment:    0.25,
		Seek:         3.0,
		AvoidStatic:  7.0,
		AvoidDynamic: 5.0,
		Bounds:       2.0,
		Wander:       0.4,
	}
}

// GoalFactor is 0 far from the goal and 1 at it, relative to the cone radius.
func GoalFactor(goalDist, coneRadius float64) float64 {
	if coneRadius <= 0 {
		return 0
	}
	return geom.Clamp(1-goalDist/coneRadius, 0, 1)
}

// CrowdFactor is 0 with nobody in view and 1 at CrowdSaturation neighbours.
func CrowdFactor(neighbours int) float64 {
	return geom.Clamp(float64(neighbours)/CrowdSaturation, 0, 1)
}

// Adapt boosts seeking near the goal and social behaviours in crowds.
func (w Weights) Adapt(goal, crowd float64) Weights {
	w.Seek *= 1 + 3*goal
	w.AvoidStatic *= 1 - 0.6*goal
	w.Wander *= 1 - goal

	w.Queueing *= 1 + 1.5*crowd
	w.Cohesion *= 1 + 0.8*crowd
	w.Alignment *= 1 + 0.8*crowd
	w.Wander *= 1 - 0.8*crowd
	w.AvoidDynamic *= 1 + 1.2*crowd

	if goal < 0.3 && crowd > 0.6 {
		w.Seek *= 0.7
		w.Queueing *= 1.3
	}
	return w
}

// AdaptiveWeights adapts base to the agent's crowd and its distance to the final goal.
func AdaptiveWeights(base Weights, a *agent.Agent, goalDist float64) Weights {
	return base.Adapt(GoalFactor(goalDist, a.Cone.Radius), CrowdFactor(len(a.Perceived.Dynamic)))
}
