package nav

import (
	"math"
	"math/rand"
	"sort"

	"footfall/server/internal/geom"
)

// LocationKind classifies graph nodes.
type LocationKind uint8

const (
	KindWaypoint LocationKind = iota
	KindEntry
	KindSubGoal
)

func (k LocationKind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindSubGoal:
		return "subgoal"
	default:
		return "waypoint"
	}
}

// WaitSpec is the dwell time distribution at a sub-goal, in seconds.
type WaitSpec struct {
	Min float64
	Max float64
}

// IsZero reports whether visitors leave without waiting.
func (w WaitSpec) IsZero() bool {
	return w.Min <= 0 && w.Max <= 0
}

// Location is a named node of the navigation graph. Locations are treated as
// read-only once added to a graph.
type Location struct {
	ID       NodeID
	Name     string
	Kind     LocationKind
	Waypoint *geom.Vec2
	Centroid *geom.Vec2
	// Pixels is the walkable area of an entry or sub-goal.
	Pixels  []geom.Vec2
	Traffic float64
	Wait    WaitSpec

	sorted []geom.Vec2
}

// NewLocation returns a location whose waypoint sits at p.
func NewLocation(name string, kind LocationKind, p geom.Vec2) *Location {
	wp := p
	return &Location{Name: name, Kind: kind, Waypoint: &wp}
}

// NewArea builds an entry or sub-goal over a pixel set. The centroid is the
// mean pixel and the waypoint is the pixel closest to it.
func NewArea(name string, kind LocationKind, pixels []geom.Vec2) *Location {
	loc := &Location{Name: name, Kind: kind, Pixels: pixels}
	if len(pixels) == 0 {
		return loc
	}
	var sum geom.Vec2
	for _, p := range pixels {
		sum = sum.Add(p)
	}
	centroid := sum.Scale(1 / float64(len(pixels)))
	loc.Centroid = &centroid
	loc.sortPixels()
	wp := loc.sorted[0]
	loc.Waypoint = &wp
	return loc
}

// HasWaypoint reports whether the location can take part in connectivity.
func (l *Location) HasWaypoint() bool {
	return l != nil && l.Waypoint != nil
}

// Position returns the waypoint, or the zero vector when there is none.
func (l *Location) Position() geom.Vec2 {
	if l == nil || l.Waypoint == nil {
		return geom.Vec2{}
	}
	return *l.Waypoint
}

func (l *Location) sortPixels() {
	if l.Centroid == nil || len(l.Pixels) == 0 {
		return
	}
	c := *l.Centroid
	l.sorted = append([]geom.Vec2(nil), l.Pixels...)
	sort.SliceStable(l.sorted, func(i, j int) bool {
		return l.sorted[i].Sub(c).LenSq() < l.sorted[j].Sub(c).LenSq()
	})
}

// SelectWeightedWaypoint samples a pixel biased towards the centroid: pixels
// are ranked by distance and index floor(r1*r2*n) is taken. Locations without
// an area return their waypoint.
func (l *Location) SelectWeightedWaypoint(rng *rand.Rand) geom.Vec2 {
	if l == nil {
		return geom.Vec2{}
	}
	if len(l.sorted) == 0 {
		return l.Position()
	}
	r1, r2 := rng.Float64(), rng.Float64()
	idx := int(math.Floor(r1 * r2 * float64(len(l.sorted))))
	if idx >= len(l.sorted) {
		idx = len(l.sorted) - 1
	}
	return l.sorted[idx]
}

// RandomPixel picks any pixel of the area uniformly, falling back to the waypoint.
func (l *Location) RandomPixel(rng *rand.Rand) geom.Vec2 {
	if l == nil {
		return geom.Vec2{}
	}
	if len(l.Pixels) == 0 {
		return l.Position()
	}
	return l.Pixels[rng.Intn(len(l.Pixels))]
}

// VisitRate is the configured visitor rate in people per second.
func (l *Location) VisitRate() float64 {
	if l == nil || l.Traffic <= 0 {
		return 0
	}
	return 1 / l.Traffic
}
