package scenario

import (
	"fmt"
	"math"

	"footfall/server/internal/geom"
	"footfall/server/internal/nav"
	"footfall/server/internal/telemetry"
	"footfall/server/internal/world"
)

// World is the static environment and navigation graph built from a File.
type World struct {
	Name  string
	Env   *world.Grid
	Graph *nav.Graph
	Edges int
}

// Build rasterises the obstacles, turns areas into locations and connects
// every pair of mutually visible waypoints. A positive latticeSpacing adds a
// grid of walkable waypoints.
func Build(f *File, latticeSpacing float64, logger telemetry.Logger) (*World, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	env := world.NewGridWithObstacles(f.Width, f.Height, f.Obstacles)
	graph := nav.NewGraph(logger)

	for _, area := range f.Entries {
		loc, err := areaLocation(env, area, nav.KindEntry)
		if err != nil {
			return nil, err
		}
		graph.AddNode(loc)
	}
	for _, area := range f.SubGoals {
		loc, err := areaLocation(env, area, nav.KindSubGoal)
		if err != nil {
			return nil, err
		}
		graph.AddNode(loc)
	}
	for _, wp := range f.Waypoints {
		if env.IsObstacle(wp.X, wp.Y) {
			if logger != nil {
				logger.Printf("[scenario] skipping waypoint %q inside an obstacle", wp.Name)
			}
			continue
		}
		graph.AddNode(nav.NewLocation(wp.Name, nav.KindWaypoint, geom.V(wp.X, wp.Y)))
	}
	if latticeSpacing > 0 {
		for _, p := range Lattice(env, latticeSpacing) {
			name := fmt.Sprintf("lattice_%d_%d", int(p.X), int(p.Y))
			graph.AddNode(nav.NewLocation(name, nav.KindWaypoint, p))
		}
	}

	edges := nav.ConnectVisible(graph, env)
	if logger != nil {
		logger.Printf("[scenario] %s: %d locations, %d edges", f.Name, graph.Len(), edges)
	}
	return &World{Name: f.Name, Env: env, Graph: graph, Edges: edges}, nil
}

func areaLocation(env *world.Grid, area Area, kind nav.LocationKind) (*nav.Location, error) {
	r := area.Rect
	pixels := env.WalkableIn(r.X, r.Y, r.Width, r.Height)
	if len(pixels) == 0 {
		return nil, fmt.Errorf("%s %q has no walkable pixels", kind, area.Name)
	}
	loc := nav.NewArea(area.Name, kind, pixels)
	loc.Traffic = math.Max(0, area.Traffic)
	if area.Wait != nil {
		loc.Wait = nav.WaitSpec{Min: area.Wait.Min, Max: area.Wait.Max}
	}
	return loc, nil
}

// Lattice returns the walkable centres of a square grid with the given
// spacing.
func Lattice(env world.Environment, spacing float64) []geom.Vec2 {
	if spacing <= 0 {
		return nil
	}
	var points []geom.Vec2
	for y := spacing / 2; y < env.Height(); y += spacing {
		for x := spacing / 2; x < env.Width(); x += spacing {
			if !env.IsObstacle(x, y) {
				points = append(points, geom.V(x, y))
			}
		}
	}
	return points
}
