package spatial

import "footfall/server/internal/geom"

const (
	// DefaultCapacity is the number of points a node holds before subdividing.
	DefaultCapacity = 4
	// maxDepth bounds subdivision when many points share one coordinate.
	maxDepth = 16
)

// Kind tags what a Point refers to.
type Kind uint8

const (
	KindAgent Kind = iota + 1
	KindLocation
)

// Payload is a weak reference to an entity by identifier. The index never
// owns what it points at and is rebuilt every tick.
type Payload struct {
	Kind Kind
	ID   int64
}

// Point is an indexed position.
type Point struct {
	Pos     geom.Vec2
	Payload Payload
}

// Quadtree partitions points for range queries.
type Quadtree struct {
	boundary Rect
	capacity int
	depth    int
	points   []Point
	children *[4]*Quadtree
}

// NewQuadtree builds an empty tree covering boundary.
func NewQuadtree(boundary Rect, capacity int) *Quadtree {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Quadtree{boundary: boundary, capacity: capacity}
}

// Boundary returns the area covered by the tree.
func (q *Quadtree) Boundary() Rect {
	if q == nil {
		return Rect{}
	}
	return q.boundary
}

// Insert adds p. It returns false when p lies outside the boundary.
func (q *Quadtree) Insert(p Point) bool {
	if q == nil || !q.boundary.Contains(p.Pos) {
		return false
	}
	if q.children == nil && (len(q.points) < q.capacity || q.depth >= maxDepth) {
		q.points = append(q.points, p)
		return true
	}
	if q.children == nil {
		q.subdivide()
	}
	for _, child := range q.children {
		if child.Insert(p) {
			return true
		}
	}
	return false
}

func (q *Quadtree) subdivide() {
	hw, hh := q.boundary.HalfW/2, q.boundary.HalfH/2
	x, y := q.boundary.X, q.boundary.Y
	q.children = &[4]*Quadtree{
		{boundary: Rect{X: x + hw, Y: y - hh, HalfW: hw, HalfH: hh}, capacity: q.capacity, depth: q.depth + 1},
		{boundary: Rect{X: x - hw, Y: y - hh, HalfW: hw, HalfH: hh}, capacity: q.capacity, depth: q.depth + 1},
		{boundary: Rect{X: x + hw, Y: y + hh, HalfW: hw, HalfH: hh}, capacity: q.capacity, depth: q.depth + 1},
		{boundary: Rect{X: x - hw, Y: y + hh, HalfW: hw, HalfH: hh}, capacity: q.capacity, depth: q.depth + 1},
	}
}

// Query appends every point contained by shape to found and returns it.
func (q *Quadtree) Query(shape Shape, found []Point) []Point {
	if q == nil || shape == nil || !shape.Intersects(q.boundary) {
		return found
	}
	for _, p := range q.points {
		if shape.Contains(p.Pos) {
			found = append(found, p)
		}
	}
	if q.children != nil {
		for _, child := range q.children {
			found = child.Query(shape, found)
		}
	}
	return found
}

// Clear drops every point and child node, keeping the boundary.
func (q *Quadtree) Clear() {
	if q == nil {
		return
	}
	q.points = q.points[:0]
	q.children = nil
}

// Len returns the number of stored points.
func (q *Quadtree) Len() int {
	if q == nil {
		return 0
	}
	n := len(q.points)
	if q.children != nil {
		for _, child := range q.children {
			n += child.Len()
		}
	}
	return n
}
