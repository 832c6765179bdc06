package perception

import (
	"math"

	"footfall/server/internal/agent"
	"footfall/server/internal/geom"
	"footfall/server/internal/nav"
	"footfall/server/internal/spatial"
	"footfall/server/internal/world"
)

// Settings fixes the perception geometry shared by every agent.
type Settings struct {
	HalfAngle    float64
	ConeRadius   float64
	CircleRadius float64
	// CellSize quantises positions when matching locations to path vertices.
	CellSize float64
	Capacity int
}

// SettingsFromConfig derives perception geometry from the simulation config.
func SettingsFromConfig(cfg world.Config) Settings {
	return Settings{
		HalfAngle:    cfg.ConeHalfAngle(),
		ConeRadius:   cfg.ConeRadius(),
		CircleRadius: cfg.ConeRadius() * cfg.CircleFraction,
		CellSize:     cfg.PathCellSize,
		Capacity:     cfg.QuadtreeCapacity,
	}
}

// System owns the per-tick spatial index and fills agents' perceived buckets.
type System struct {
	settings  Settings
	index     *spatial.Quadtree
	agents    map[int64]*agent.Agent
	locations map[int64]*nav.Location
	hits      []spatial.Point
}

// NewSystem covers a width x height space.
func NewSystem(settings Settings, width, height float64) *System {
	if settings.CellSize <= 0 {
		settings.CellSize = 1
	}
	return &System{
		settings:  settings,
		index:     spatial.NewQuadtree(spatial.RectFromBounds(0, 0, width, height), settings.Capacity),
		agents:    make(map[int64]*agent.Agent),
		locations: make(map[int64]*nav.Location),
	}
}

func (s *System) Settings() Settings {
	return s.settings
}

// Index exposes the spatial index for diagnostics.
func (s *System) Index() *spatial.Quadtree {
	return s.index
}

// Rebuild clears the index and inserts every agent and every location that
// has a waypoint.
func (s *System) Rebuild(agents []*agent.Agent, locations []*nav.Location) {
	s.index.Clear()
	clear(s.agents)
	clear(s.locations)
	for _, a := range agents {
		s.agents[a.ID] = a
		s.index.Insert(spatial.Point{Pos: a.Pos, Payload: spatial.Payload{Kind: spatial.KindAgent, ID: a.ID}})
	}
	for _, loc := range locations {
		if !loc.HasWaypoint() {
			continue
		}
		s.locations[int64(loc.ID)] = loc
		s.index.Insert(spatial.Point{Pos: *loc.Waypoint, Payload: spatial.Payload{Kind: spatial.KindLocation, ID: int64(loc.ID)}})
	}
}

// UpdateGeometry recomputes the cone and circle from the agent's position.
// The heading only follows velocity while the agent is moving.
func (s *System) UpdateGeometry(a *agent.Agent) {
	if a.Moving() && !a.Vel.IsZero() {
		a.Heading = a.Vel.Heading()
	}
	a.Cone = spatial.Cone{
		Apex:      a.Pos,
		Heading:   a.Heading,
		HalfAngle: s.settings.HalfAngle,
		Radius:    s.settings.ConeRadius,
	}
	a.Circle = spatial.Circle{Center: a.Pos, Radius: s.settings.CircleRadius}
}

// Refresh rebuilds a's buckets from one cone query.
func (s *System) Refresh(a *agent.Agent) {
	s.UpdateGeometry(a)
	a.ResetPerception()

	s.hits = s.index.Query(a.Cone, s.hits[:0])
	var onPath map[cell]struct{}
	if len(a.Path) > 0 {
		onPath = make(map[cell]struct{}, len(a.Path))
		for _, p := range a.Path {
			onPath[s.quantise(p)] = struct{}{}
		}
	}

	for _, hit := range s.hits {
		switch hit.Payload.Kind {
		case spatial.KindAgent:
			other, ok := s.agents[hit.Payload.ID]
			if !ok || other == a {
				continue
			}
			a.Perceived.Dynamic = append(a.Perceived.Dynamic, other)
			if a.Circle.Contains(other.Pos) {
				a.Perceived.WithinCircle = append(a.Perceived.WithinCircle, other)
			}
		case spatial.KindLocation:
			loc, ok := s.locations[hit.Payload.ID]
			if !ok {
				continue
			}
			a.Perceived.Targets = append(a.Perceived.Targets, loc)
			if onPath != nil {
				if _, hitPath := onPath[s.quantise(*loc.Waypoint)]; hitPath {
					a.Perceived.OnPath = append(a.Perceived.OnPath, loc)
				}
			}
		}
	}
}

// RefreshAll refreshes every agent in order.
func (s *System) RefreshAll(agents []*agent.Agent) {
	for _, a := range agents {
		s.Refresh(a)
	}
}

type cell struct {
	x, y int64
}

func (s *System) quantise(p geom.Vec2) cell {
	return cell{x: int64(math.Floor(p.X / s.settings.CellSize)), y: int64(math.Floor(p.Y / s.settings.CellSize))}
}
