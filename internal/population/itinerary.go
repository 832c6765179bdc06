package population

import (
	"math"

	"footfall/server/internal/activity"
	"footfall/server/internal/agent"
	"footfall/server/internal/nav"
	"footfall/server/internal/world"
)

// Itinerary is the plan handed to a freshly spawned agent.
type Itinerary struct {
	Steps  []activity.Step
	Visits int
	Exit   *nav.Location
}

// BuildItinerary draws numStops in [MinStops, MaxStops) and plans
// numStops-2 sub-goal visits, an optional planned meet and a final exit.
func (m *Manager) BuildItinerary(a *agent.Agent) Itinerary {
	cfg := m.cfg
	numStops := int(math.Floor(world.RandomBetween(m.rng, float64(cfg.MinStops), float64(cfg.MaxStops))))
	it := Itinerary{Steps: make([]activity.Step, 0, numStops*2)}

	for c := 1; c < numStops-1; c++ {
		loc, ok := PickWeighted(m.rng, m.subGoals, subGoalWeight)
		if !ok {
			continue
		}
		it.Steps = append(it.Steps, activity.MoveTo(loc.Name, loc.SelectWeightedWaypoint(m.rng)))
		it.Visits++
		if ticks := m.waitTicks(loc.Wait); ticks > 0 {
			it.Steps = append(it.Steps, activity.WaitFor(ticks))
		}
	}

	if it.Visits > 0 && world.RandomFloat(m.meetRNG) < a.MeetingPropensity {
		patience := cfg.SecondsToTicks(cfg.MeetPatienceSeconds)
		it.Steps = append(it.Steps, activity.MeetFor(activity.SampleMeetTicks(cfg, m.meetRNG), patience))
	}

	if exit, ok := PickWeighted(m.rng, m.entries, exitWeight); ok {
		it.Exit = exit
		it.Steps = append(it.Steps, activity.MoveTo(exit.Name, exit.Position()))
	}
	return it
}

func (m *Manager) waitTicks(wait nav.WaitSpec) int {
	if wait.IsZero() {
		return 0
	}
	lo := math.Max(0, wait.Min)
	hi := math.Max(lo, wait.Max)
	return int(math.Floor(world.RandomBetween(m.rng, lo, hi) * float64(m.cfg.TickRate)))
}
