package nav

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"footfall/server/internal/geom"
	"footfall/server/internal/telemetry"
	"footfall/server/internal/world"
)

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

var _ telemetry.Logger = (*recordingLogger)(nil)

// wallGrid is a 200x200 room split by a vertical wall with a gap at the bottom.
func wallGrid() *world.Grid {
	return world.NewGridWithObstacles(200, 200, []world.Obstacle{{X: 95, Y: 0, Width: 10, Height: 150}})
}

func wallGraph(t *testing.T, env world.Environment) *Graph {
	t.Helper()
	g := NewGraph(nil)
	g.AddNode(NewLocation("left", KindWaypoint, geom.V(50, 175)))
	g.AddNode(NewLocation("gap", KindWaypoint, geom.V(100, 175)))
	g.AddNode(NewLocation("right", KindWaypoint, geom.V(150, 175)))
	g.AddNode(NewLocation("island", KindWaypoint, geom.V(150, 20)))
	if added := ConnectVisible(g, env); added == 0 {
		t.Fatalf("expected visibility edges")
	}
	return g
}

func TestPlanDirectWhenVisible(t *testing.T) {
	env := world.NewGrid(200, 200)
	route := Plan(NewGraph(nil), geom.V(0, 0), geom.V(100, 0), env, PlanOptions{})
	if !route.Direct || route.Fallback {
		t.Fatalf("expected direct route, got %+v", route)
	}
	if len(route.Points) != 2 || route.Points[0] != geom.V(0, 0) || route.Points[1] != geom.V(100, 0) {
		t.Fatalf("expected [start, goal], got %+v", route.Points)
	}
	if route.Nodes[0] != StartName || route.Nodes[1] != GoalName {
		t.Fatalf("unexpected node names %v", route.Nodes)
	}
}

func TestPlanAroundWall(t *testing.T) {
	env := wallGrid()
	g := wallGraph(t, env)
	start, goal := geom.V(40, 60), geom.V(160, 60)
	route := Plan(g, start, goal, env, PlanOptions{})
	if route.Direct || route.Fallback {
		t.Fatalf("expected a searched route, got %+v", route)
	}
	if route.Points[0] != start || route.Points[len(route.Points)-1] != goal {
		t.Fatalf("route must start and end at the requested points: %+v", route.Points)
	}
	for i := 1; i < len(route.Points); i++ {
		if !env.Visible(route.Points[i-1], route.Points[i]) {
			t.Fatalf("segment %d is not visible: %+v -> %+v", i, route.Points[i-1], route.Points[i])
		}
	}
	if got := polylineLength(route.Points); got < start.Dist(goal) {
		t.Fatalf("path length %.2f shorter than straight line %.2f", got, start.Dist(goal))
	}
}

func TestPlanFallsBackWhenUnreachable(t *testing.T) {
	env := world.NewGridWithObstacles(200, 200, []world.Obstacle{{X: 95, Y: 0, Width: 10, Height: 200}})
	g := NewGraph(nil)
	g.AddNode(NewLocation("left", KindWaypoint, geom.V(50, 100)))
	ConnectVisible(g, env)
	route := Plan(g, geom.V(40, 60), geom.V(160, 60), env, PlanOptions{})
	if !route.Fallback {
		t.Fatalf("expected fallback route, got %+v", route)
	}
	if len(route.Points) != 2 || route.Points[1] != geom.V(160, 60) {
		t.Fatalf("fallback must head straight for the goal: %+v", route.Points)
	}
}

func TestAugmentDoesNotMutateStaticGraph(t *testing.T) {
	env := wallGrid()
	g := wallGraph(t, env)
	nodes, edges := g.Len(), g.EdgeCount()
	leftEdges := len(g.Neighbors(0))

	aug := Augment(g, geom.V(40, 60), geom.V(160, 60), env)
	if aug.Len() != nodes+2 {
		t.Fatalf("expected augmented graph to gain two nodes, got %d", aug.Len())
	}
	if g.Len() != nodes || g.EdgeCount() != edges || len(g.Neighbors(0)) != leftEdges {
		t.Fatalf("static graph mutated: nodes=%d edges=%d", g.Len(), g.EdgeCount())
	}
	if _, ok := g.Lookup(StartName); ok {
		t.Fatalf("transient start leaked into static graph")
	}
	if _, ok := g.Node(GoalID); ok {
		t.Fatalf("transient goal leaked into static graph")
	}
}

func TestAddEdgeMissingNodeIsLoggedNoop(t *testing.T) {
	logger := &recordingLogger{}
	g := NewGraph(logger)
	a := g.AddNode(NewLocation("a", KindWaypoint, geom.V(0, 0)))
	if g.AddEdge(a, 42, 1) {
		t.Fatalf("expected edge to missing node to be rejected")
	}
	if g.AddEdgeByName("a", "nope", 1) {
		t.Fatalf("expected named edge to missing node to be rejected")
	}
	if g.EdgeCount() != 0 {
		t.Fatalf("expected no edges, got %d", g.EdgeCount())
	}
	if len(logger.lines) != 2 || !strings.Contains(logger.lines[0], "missing node") {
		t.Fatalf("expected rejection to be logged, got %v", logger.lines)
	}
}

func TestFindPathByName(t *testing.T) {
	g := NewGraph(nil)
	for i, p := range []geom.Vec2{geom.V(0, 0), geom.V(10, 0), geom.V(10, 10), geom.V(0, 10), geom.V(50, 50)} {
		g.AddNode(NewLocation(fmt.Sprintf("n%d", i), KindWaypoint, p))
	}
	g.AddEdgeByName("n0", "n1", 10)
	g.AddEdgeByName("n1", "n2", 10)
	g.AddEdgeByName("n0", "n3", 10)
	g.AddEdgeByName("n3", "n2", 10)
	g.AddEdgeByName("n0", "n2", 25)

	path := FindPath(g, "n0", "n2")
	if len(path) != 3 || path[0] != "n0" || path[2] != "n2" {
		t.Fatalf("expected a two-hop path, got %v", path)
	}
	if got := FindPath(g, "n0", "n4"); got != nil {
		t.Fatalf("expected unreachable node to yield nil, got %v", got)
	}
	if got := FindPath(g, "n0", "missing"); got != nil {
		t.Fatalf("expected unknown node to yield nil, got %v", got)
	}
	if got := FindPath(g, "n2", "n2"); len(got) != 1 {
		t.Fatalf("expected single node path, got %v", got)
	}
}

func polylineLength(points []geom.Vec2) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += points[i-1].Dist(points[i])
	}
	return total
}

func TestPathLengthNeverBeatsStraightLine(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	env := world.NewGridWithObstacles(300, 300, []world.Obstacle{
		{X: 60, Y: 40, Width: 20, Height: 160},
		{X: 160, Y: 120, Width: 20, Height: 180},
		{X: 220, Y: 20, Width: 60, Height: 20},
	})
	g := NewGraph(nil)
	for i := 0; i < 40; i++ {
		p, ok := world.RandomWalkable(env, rng, 100)
		if !ok {
			t.Fatalf("no walkable position")
		}
		g.AddNode(NewLocation(fmt.Sprintf("w%d", i), KindWaypoint, p))
	}
	ConnectVisible(g, env)

	for trial := 0; trial < 50; trial++ {
		a, _ := world.RandomWalkable(env, rng, 100)
		b, _ := world.RandomWalkable(env, rng, 100)
		route := Plan(g, a, b, env, PlanOptions{})
		if route.Fallback {
			continue
		}
		if length := polylineLength(route.Points); length+1e-9 < a.Dist(b) {
			t.Fatalf("trial %d: length %.3f below straight line %.3f", trial, length, a.Dist(b))
		}
	}
}

func TestPlanEscapesFromInsideObstacle(t *testing.T) {
	env := wallGrid()
	g := wallGraph(t, env)
	start, goal := geom.V(100, 60), geom.V(160, 60)
	if !env.IsObstacle(start.X, start.Y) {
		t.Fatalf("test start must lie inside the wall")
	}

	route := Plan(g, start, goal, env, PlanOptions{})
	if route.Fallback {
		t.Fatalf("expected an escape route, got fallback %+v", route)
	}
	if route.Via == "" {
		t.Fatalf("expected the escape to name its first node")
	}
	if route.Points[0] != start || route.Points[len(route.Points)-1] != goal {
		t.Fatalf("route must start and end at the requested points: %+v", route.Points)
	}
	for i := 2; i < len(route.Points); i++ {
		if !env.Visible(route.Points[i-1], route.Points[i]) {
			t.Fatalf("segment %d after the escape is not visible: %+v", i, route.Points)
		}
	}
}

func TestPlanDoesNotEscapeWhenStartSeesNodes(t *testing.T) {
	env := world.NewGridWithObstacles(200, 200, []world.Obstacle{{X: 95, Y: 0, Width: 10, Height: 200}})
	g := NewGraph(nil)
	g.AddNode(NewLocation("left", KindWaypoint, geom.V(50, 100)))
	g.AddNode(NewLocation("right", KindWaypoint, geom.V(150, 100)))
	ConnectVisible(g, env)
	route := Plan(g, geom.V(40, 60), geom.V(160, 60), env, PlanOptions{})
	if !route.Fallback || route.Via != "" {
		t.Fatalf("expected a plain fallback, got %+v", route)
	}
}

func TestPlanEscapeGivesUpWhenNearestNodeIsBuried(t *testing.T) {
	env := wallGrid()
	g := NewGraph(nil)
	g.AddNode(NewLocation("buried", KindWaypoint, geom.V(100, 20)))
	route := Plan(g, geom.V(100, 60), geom.V(160, 60), env, PlanOptions{})
	if !route.Fallback || route.Via != "" {
		t.Fatalf("expected a straight-line fallback, got %+v", route)
	}
}

func TestPruneLineOfSight(t *testing.T) {
	env := wallGrid()
	points := []geom.Vec2{geom.V(40, 60), geom.V(45, 120), geom.V(50, 175), geom.V(100, 175), geom.V(150, 175), geom.V(160, 60)}
	pruned := PruneLineOfSight(points, env)
	if len(pruned) >= len(points) {
		t.Fatalf("expected pruning to drop vertices, got %v", pruned)
	}
	if pruned[0] != points[0] || pruned[len(pruned)-1] != points[len(points)-1] {
		t.Fatalf("pruning must keep endpoints: %v", pruned)
	}
	for i := 1; i < len(pruned); i++ {
		if !env.Visible(pruned[i-1], pruned[i]) {
			t.Fatalf("pruned segment %d not visible", i)
		}
	}
}

func TestSelectWeightedWaypointStaysInArea(t *testing.T) {
	env := world.NewGrid(50, 50)
	area := NewArea("shop", KindSubGoal, env.WalkableIn(10, 10, 10, 10))
	if !area.HasWaypoint() || area.Centroid == nil {
		t.Fatalf("expected area to derive centroid and waypoint")
	}
	rng := rand.New(rand.NewSource(5))
	closer := 0
	for i := 0; i < 1000; i++ {
		p := area.SelectWeightedWaypoint(rng)
		if p.X < 10 || p.X > 20 || p.Y < 10 || p.Y > 20 {
			t.Fatalf("sample outside area: %+v", p)
		}
		if p.Dist(*area.Centroid) < 3.5 {
			closer++
		}
	}
	if closer < 400 {
		t.Fatalf("expected samples biased to the centroid, got %d/1000 near it", closer)
	}
}

func TestFindNearestNode(t *testing.T) {
	env := wallGrid()
	g := wallGraph(t, env)
	loc, ok := FindNearestNode(g, geom.V(160, 30), env)
	if !ok || loc.Name != "island" {
		t.Fatalf("expected island, got %+v ok=%v", loc, ok)
	}
}
