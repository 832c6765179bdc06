package world

import (
	"math"
	"math/rand"

	"footfall/server/internal/geom"
)

// Environment answers walkability and line-of-sight questions about the space.
type Environment interface {
	Width() float64
	Height() float64
	IsObstacle(x, y float64) bool
	Visible(a, b geom.Vec2) bool
}

// Obstacle is an axis-aligned blocked rectangle in pixels.
type Obstacle struct {
	ID     string  `json:"id,omitempty" yaml:"id,omitempty" jsonschema:"description=Optional identifier"`
	X      float64 `json:"x" yaml:"x" jsonschema:"description=Left edge in pixels"`
	Y      float64 `json:"y" yaml:"y" jsonschema:"description=Top edge in pixels"`
	Width  float64 `json:"width" yaml:"width" jsonschema:"minimum=0"`
	Height float64 `json:"height" yaml:"height" jsonschema:"minimum=0"`
}

// Grid is a per-pixel walkability raster.
type Grid struct {
	width    int
	height   int
	walkable []bool
}

// NewGrid returns a fully walkable grid.
func NewGrid(width, height int) *Grid {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	walkable := make([]bool, width*height)
	for i := range walkable {
		walkable[i] = true
	}
	return &Grid{width: width, height: height, walkable: walkable}
}

// NewGridWithObstacles builds a grid and blocks every obstacle rectangle.
func NewGridWithObstacles(width, height int, obstacles []Obstacle) *Grid {
	g := NewGrid(width, height)
	for _, obs := range obstacles {
		g.Block(obs)
	}
	return g
}

func (g *Grid) Width() float64  { return float64(g.width) }
func (g *Grid) Height() float64 { return float64(g.height) }

// Block marks every cell overlapping obs as not walkable.
func (g *Grid) Block(obs Obstacle) {
	x0 := int(math.Floor(obs.X))
	y0 := int(math.Floor(obs.Y))
	x1 := int(math.Ceil(obs.X + obs.Width))
	y1 := int(math.Ceil(obs.Y + obs.Height))
	for y := max(y0, 0); y < min(y1, g.height); y++ {
		for x := max(x0, 0); x < min(x1, g.width); x++ {
			g.walkable[y*g.width+x] = false
		}
	}
}

// Walkable reports the raw state of one cell. Out of bounds is not walkable.
func (g *Grid) Walkable(x, y int) bool {
	if g == nil || x < 0 || y < 0 || x >= g.width || y >= g.height {
		return false
	}
	return g.walkable[y*g.width+x]
}

// IsObstacle reports true unless some cell of the 3x3 neighbourhood around
// (x, y) is walkable.
func (g *Grid) IsObstacle(x, y float64) bool {
	cx := int(math.Floor(x))
	cy := int(math.Floor(y))
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if g.Walkable(cx+dx, cy+dy) {
				return false
			}
		}
	}
	return true
}

// Blocked reports whether an agent centred on p would stand in a blocked
// cell. Environments exposing raw cells are checked cell by cell; others
// fall back to IsObstacle.
func Blocked(env Environment, p geom.Vec2) bool {
	if env == nil {
		return false
	}
	if cells, ok := env.(interface{ Walkable(x, y int) bool }); ok {
		return !cells.Walkable(int(math.Floor(p.X)), int(math.Floor(p.Y)))
	}
	return env.IsObstacle(p.X, p.Y)
}

// Visible samples the segment a-b at unit intervals. Endpoints are put in a
// canonical order first so the answer does not depend on direction.
func (g *Grid) Visible(a, b geom.Vec2) bool {
	if b.X < a.X || (b.X == a.X && b.Y < a.Y) {
		a, b = b, a
	}
	steps := int(a.Dist(b))
	if steps == 0 {
		return true
	}
	for i := 0; i <= steps; i++ {
		p := a.Lerp(b, float64(i)/float64(steps))
		if g.IsObstacle(p.X, p.Y) {
			return false
		}
	}
	return true
}

// WalkableIn lists the centres of walkable cells inside the rectangle.
func (g *Grid) WalkableIn(x, y, w, h float64) []geom.Vec2 {
	var cells []geom.Vec2
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := int(math.Ceil(x+w)), int(math.Ceil(y+h))
	for cy := max(y0, 0); cy < min(y1, g.height); cy++ {
		for cx := max(x0, 0); cx < min(x1, g.width); cx++ {
			if g.walkable[cy*g.width+cx] {
				cells = append(cells, geom.V(float64(cx)+0.5, float64(cy)+0.5))
			}
		}
	}
	return cells
}

// RandomWalkable draws up to attempts random positions and returns the first
// that is not an obstacle.
func RandomWalkable(env Environment, rng *rand.Rand, attempts int) (geom.Vec2, bool) {
	if env == nil {
		return geom.Vec2{}, false
	}
	for i := 0; i < attempts; i++ {
		p := geom.V(RandomFloat(rng)*env.Width(), RandomFloat(rng)*env.Height())
		if !Blocked(env, p) {
			return p, true
		}
	}
	return geom.Vec2{}, false
}
