package nav

import (
	"sort"

	"footfall/server/internal/geom"
	"footfall/server/internal/telemetry"
)

// NodeID identifies a node. Static nodes are numbered from zero; transient
// planning nodes use the reserved negative IDs.
type NodeID int64

const (
	StartID NodeID = -1
	GoalID  NodeID = -2

	StartName = "__start"
	GoalName  = "__goal"
)

// Edge is a weighted adjacency entry.
type Edge struct {
	To     NodeID
	Weight float64
}

// Graph is a weighted undirected graph of locations.
type Graph struct {
	nodes  map[NodeID]*Location
	byName map[string]NodeID
	adj    map[NodeID][]Edge
	order  []NodeID
	nextID NodeID
	logger telemetry.Logger
}

// NewGraph returns an empty graph. Rejected edge insertions are reported to logger.
func NewGraph(logger telemetry.Logger) *Graph {
	return &Graph{
		nodes:  make(map[NodeID]*Location),
		byName: make(map[string]NodeID),
		adj:    make(map[NodeID][]Edge),
		logger: logger,
	}
}

// AddNode registers loc and assigns it the next static ID. A location whose
// name is already present keeps its original ID.
func (g *Graph) AddNode(loc *Location) NodeID {
	if id, ok := g.byName[loc.Name]; ok {
		return id
	}
	id := g.nextID
	g.nextID++
	g.insert(id, loc)
	return id
}

func (g *Graph) insert(id NodeID, loc *Location) {
	loc.ID = id
	g.nodes[id] = loc
	g.byName[loc.Name] = id
	g.order = append(g.order, id)
}

// AddEdge links a and b both ways. It is a no-op when either endpoint is
// missing.
func (g *Graph) AddEdge(a, b NodeID, weight float64) bool {
	_, okA := g.nodes[a]
	_, okB := g.nodes[b]
	if !okA || !okB {
		if g.logger != nil {
			g.logger.Printf("[nav] rejecting edge %d-%d: missing node", a, b)
		}
		return false
	}
	g.adj[a] = append(g.adj[a], Edge{To: b, Weight: weight})
	g.adj[b] = append(g.adj[b], Edge{To: a, Weight: weight})
	return true
}

// AddEdgeByName links two nodes looked up by name.
func (g *Graph) AddEdgeByName(a, b string, weight float64) bool {
	idA, okA := g.byName[a]
	idB, okB := g.byName[b]
	if !okA || !okB {
		if g.logger != nil {
			g.logger.Printf("[nav] rejecting edge %q-%q: missing node", a, b)
		}
		return false
	}
	return g.AddEdge(idA, idB, weight)
}

func (g *Graph) Node(id NodeID) (*Location, bool) {
	loc, ok := g.nodes[id]
	return loc, ok
}

func (g *Graph) Lookup(name string) (*Location, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.nodes[id], true
}

func (g *Graph) Neighbors(id NodeID) []Edge {
	return g.adj[id]
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, edges := range g.adj {
		n += len(edges)
	}
	return n / 2
}

// Nodes returns locations in insertion order.
func (g *Graph) Nodes() []*Location {
	out := make([]*Location, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Locations returns the locations of one kind, sorted by name.
func (g *Graph) Locations(kind LocationKind) []*Location {
	var out []*Location
	for _, id := range g.order {
		if loc := g.nodes[id]; loc.Kind == kind {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clone returns a deep copy of the topology. Locations are shared since
// graphs never mutate them.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:  make(map[NodeID]*Location, len(g.nodes)+2),
		byName: make(map[string]NodeID, len(g.byName)+2),
		adj:    make(map[NodeID][]Edge, len(g.adj)+2),
		order:  append(make([]NodeID, 0, len(g.order)+2), g.order...),
		nextID: g.nextID,
		logger: g.logger,
	}
	for id, loc := range g.nodes {
		c.nodes[id] = loc
	}
	for name, id := range g.byName {
		c.byName[name] = id
	}
	for id, edges := range g.adj {
		c.adj[id] = append([]Edge(nil), edges...)
	}
	return c
}

// LineOfSight answers visibility queries between two points.
type LineOfSight interface {
	Visible(a, b geom.Vec2) bool
}

// ConnectVisible adds an edge between every pair of nodes whose waypoints see
// each other. It returns the number of edges added.
func ConnectVisible(g *Graph, los LineOfSight) int {
	added := 0
	nodes := g.Nodes()
	for i := 0; i < len(nodes); i++ {
		a := nodes[i]
		if !a.HasWaypoint() {
			continue
		}
		for j := i + 1; j < len(nodes); j++ {
			b := nodes[j]
			if !b.HasWaypoint() {
				continue
			}
			if los.Visible(*a.Waypoint, *b.Waypoint) {
				if g.AddEdge(a.ID, b.ID, a.Waypoint.Dist(*b.Waypoint)) {
					added++
				}
			}
		}
	}
	return added
}

// FindNearestNode returns the closest node with a waypoint visible from pos.
func FindNearestNode(g *Graph, pos geom.Vec2, los LineOfSight) (*Location, bool) {
	var best *Location
	bestDist := 0.0
	for _, loc := range g.Nodes() {
		if !loc.HasWaypoint() || loc.ID < 0 {
			continue
		}
		d := pos.Dist(*loc.Waypoint)
		if best != nil && d >= bestDist {
			continue
		}
		if los != nil && !los.Visible(pos, *loc.Waypoint) {
			continue
		}
		best, bestDist = loc, d
	}
	return best, best != nil
}
