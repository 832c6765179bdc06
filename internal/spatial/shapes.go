package spatial

import (
	"math"

	"footfall/server/internal/geom"
)

// Shape is a query range. Intersects prunes quadrants, Contains selects points.
type Shape interface {
	Contains(p geom.Vec2) bool
	Intersects(r Rect) bool
}

// Rect is an axis-aligned rectangle given by its centre and half extents.
type Rect struct {
	X     float64
	Y     float64
	HalfW float64
	HalfH float64
}

// RectFromBounds builds a Rect from a top-left corner and full size.
func RectFromBounds(x, y, w, h float64) Rect {
	return Rect{X: x + w/2, Y: y + h/2, HalfW: w / 2, HalfH: h / 2}
}

func (r Rect) Left() float64   { return r.X - r.HalfW }
func (r Rect) Right() float64  { return r.X + r.HalfW }
func (r Rect) Top() float64    { return r.Y - r.HalfH }
func (r Rect) Bottom() float64 { return r.Y + r.HalfH }

func (r Rect) Contains(p geom.Vec2) bool {
	return p.X >= r.Left() && p.X <= r.Right() && p.Y >= r.Top() && p.Y <= r.Bottom()
}

func (r Rect) Intersects(o Rect) bool {
	return !(o.Left() > r.Right() || o.Right() < r.Left() || o.Top() > r.Bottom() || o.Bottom() < r.Top())
}

// closestPoint clamps p onto the rectangle.
func (r Rect) closestPoint(p geom.Vec2) geom.Vec2 {
	return geom.V(geom.Clamp(p.X, r.Left(), r.Right()), geom.Clamp(p.Y, r.Top(), r.Bottom()))
}

// Circle is a disc range.
type Circle struct {
	Center geom.Vec2
	Radius float64
}

func (c Circle) Contains(p geom.Vec2) bool {
	return p.Sub(c.Center).LenSq() <= c.Radius*c.Radius
}

func (c Circle) Intersects(r Rect) bool {
	return r.closestPoint(c.Center).Sub(c.Center).LenSq() <= c.Radius*c.Radius
}

// Cone is a circular sector. Heading and HalfAngle are radians.
type Cone struct {
	Apex      geom.Vec2
	Heading   float64
	HalfAngle float64
	Radius    float64
}

// Contains reports whether p lies within the radius and within HalfAngle of the
// heading. The apex itself is always inside.
func (c Cone) Contains(p geom.Vec2) bool {
	d := p.Sub(c.Apex)
	distSq := d.LenSq()
	if distSq > c.Radius*c.Radius {
		return false
	}
	if distSq == 0 {
		return true
	}
	diff := math.Abs(normalizeAngle(math.Atan2(d.Y, d.X) - c.Heading))
	return diff <= c.HalfAngle
}

// Intersects tests the bounding disc of the cone, which never prunes a
// quadrant the sector reaches.
func (c Cone) Intersects(r Rect) bool {
	return Circle{Center: c.Apex, Radius: c.Radius}.Intersects(r)
}

// Direction returns the unit heading vector.
func (c Cone) Direction() geom.Vec2 {
	return geom.FromAngle(c.Heading)
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
