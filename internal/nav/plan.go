package nav

import "footfall/server/internal/geom"

// Route is the result of planning one move.
type Route struct {
	Points []geom.Vec2
	Nodes  []string
	// Direct is set when start and goal see each other.
	Direct bool
	// Fallback is set when no path exists and the route heads straight for
	// the goal.
	Fallback bool
	// Via names the node an escape route first heads for when the start
	// could see no node at all.
	Via string
}

// PlanOptions tunes Plan.
type PlanOptions struct {
	PruneLineOfSight bool
}

// Augment returns a clone of static with transient start and goal nodes,
// each linked to every node it can see. static is never modified.
func Augment(static *Graph, start, goal geom.Vec2, los LineOfSight) *Graph {
	g := static.Clone()
	startLoc := NewLocation(StartName, KindWaypoint, start)
	goalLoc := NewLocation(GoalName, KindWaypoint, goal)
	g.insert(StartID, startLoc)
	g.insert(GoalID, goalLoc)
	for _, loc := range static.Nodes() {
		if !loc.HasWaypoint() {
			continue
		}
		wp := *loc.Waypoint
		if los.Visible(start, wp) {
			g.AddEdge(StartID, loc.ID, start.Dist(wp))
		}
		if los.Visible(goal, wp) {
			g.AddEdge(GoalID, loc.ID, goal.Dist(wp))
		}
	}
	return g
}

// Plan computes a route from start to goal over a per-request clone of the
// static graph.
func Plan(static *Graph, start, goal geom.Vec2, los LineOfSight, opts PlanOptions) Route {
	return plan(static, start, goal, los, opts, true)
}

func plan(static *Graph, start, goal geom.Vec2, los LineOfSight, opts PlanOptions, canEscape bool) Route {
	if los.Visible(start, goal) {
		return Route{
			Points: []geom.Vec2{start, goal},
			Nodes:  []string{StartName, GoalName},
			Direct: true,
		}
	}
	if static == nil {
		return Route{Points: []geom.Vec2{start, goal}, Nodes: []string{StartName, GoalName}, Fallback: true}
	}
	g := Augment(static, start, goal, los)
	ids := FindPathIDs(g, StartID, GoalID)
	if len(ids) == 0 {
		if !canEscape {
			return Route{Points: []geom.Vec2{start, goal}, Nodes: []string{StartName, GoalName}, Fallback: true}
		}
		return escape(static, start, goal, los, opts)
	}
	points := make([]geom.Vec2, len(ids))
	names := make([]string, len(ids))
	for i, id := range ids {
		loc := g.nodes[id]
		points[i] = loc.Position()
		names[i] = loc.Name
	}
	if opts.PruneLineOfSight {
		points = PruneLineOfSight(points, los)
		names = nil
	}
	return Route{Points: points, Nodes: names}
}

// escape handles a start that sees no node, which happens when an agent has
// been pushed into an obstacle. The route first heads for the nearest node
// regardless of line of sight and continues from there. Any other failure
// falls back to the straight line.
func escape(static *Graph, start, goal geom.Vec2, los LineOfSight, opts PlanOptions) Route {
	fallback := Route{Points: []geom.Vec2{start, goal}, Nodes: []string{StartName, GoalName}, Fallback: true}
	if _, sees := FindNearestNode(static, start, los); sees {
		return fallback
	}
	near, ok := FindNearestNode(static, start, nil)
	if !ok {
		return fallback
	}
	rest := plan(static, *near.Waypoint, goal, los, opts, false)
	if rest.Fallback {
		return fallback
	}
	route := Route{
		Points: append([]geom.Vec2{start}, rest.Points...),
		Via:    near.Name,
	}
	if rest.Nodes != nil {
		route.Nodes = append([]string{StartName, near.Name}, rest.Nodes[1:]...)
	}
	return route
}

// PruneLineOfSight removes intermediate vertices by jumping from each kept
// vertex to the farthest later vertex it can see.
func PruneLineOfSight(points []geom.Vec2, los LineOfSight) []geom.Vec2 {
	if len(points) <= 2 {
		return append([]geom.Vec2(nil), points...)
	}
	out := []geom.Vec2{points[0]}
	last := len(points) - 1
	for i := 0; i < last; {
		j := last
		for j > i+1 && !los.Visible(points[i], points[j]) {
			j--
		}
		out = append(out, points[j])
		i = j
	}
	return out
}
