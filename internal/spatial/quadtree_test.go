package spatial

import (
	"math"
	"math/rand"
	"testing"

	"footfall/server/internal/geom"
)

func TestQueryEmptyIndex(t *testing.T) {
	q := NewQuadtree(RectFromBounds(0, 0, 100, 100), 4)
	if got := q.Query(Circle{Center: geom.V(50, 50), Radius: 500}, nil); len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}
}

func TestInsertRejectsOutOfBounds(t *testing.T) {
	q := NewQuadtree(RectFromBounds(0, 0, 100, 100), 4)
	if q.Insert(Point{Pos: geom.V(150, 10)}) {
		t.Fatalf("expected out of bounds insert to fail")
	}
	if !q.Insert(Point{Pos: geom.V(100, 100)}) {
		t.Fatalf("expected boundary corner to be accepted")
	}
}

func TestQueryMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := NewQuadtree(RectFromBounds(0, 0, 400, 300), 4)
	points := make([]Point, 0, 500)
	for i := 0; i < 500; i++ {
		p := Point{Pos: geom.V(rng.Float64()*400, rng.Float64()*300), Payload: Payload{Kind: KindAgent, ID: int64(i)}}
		points = append(points, p)
		if !q.Insert(p) {
			t.Fatalf("insert %d failed", i)
		}
	}
	if q.Len() != len(points) {
		t.Fatalf("expected %d points, got %d", len(points), q.Len())
	}

	shapes := []Shape{
		RectFromBounds(50, 40, 120, 90),
		Circle{Center: geom.V(200, 150), Radius: 60},
		Cone{Apex: geom.V(100, 100), Heading: math.Pi / 4, HalfAngle: math.Pi / 3, Radius: 120},
		Cone{Apex: geom.V(390, 10), Heading: math.Pi, HalfAngle: math.Pi / 6, Radius: 200},
	}
	for i, shape := range shapes {
		want := 0
		for _, p := range points {
			if shape.Contains(p.Pos) {
				want++
			}
		}
		got := q.Query(shape, nil)
		if len(got) != want {
			t.Fatalf("shape %d: expected %d hits, got %d", i, want, len(got))
		}
	}
}

func TestCoincidentPointsDoNotRecurseForever(t *testing.T) {
	q := NewQuadtree(RectFromBounds(0, 0, 10, 10), 1)
	for i := 0; i < 100; i++ {
		if !q.Insert(Point{Pos: geom.V(3, 3), Payload: Payload{Kind: KindLocation, ID: int64(i)}}) {
			t.Fatalf("insert %d failed", i)
		}
	}
	if got := q.Query(Circle{Center: geom.V(3, 3), Radius: 0.1}, nil); len(got) != 100 {
		t.Fatalf("expected 100 hits, got %d", len(got))
	}
}

func TestClearResetsTree(t *testing.T) {
	q := NewQuadtree(RectFromBounds(0, 0, 10, 10), 1)
	for i := 0; i < 10; i++ {
		q.Insert(Point{Pos: geom.V(float64(i), float64(i))})
	}
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("expected empty tree after clear, got %d", q.Len())
	}
}

func TestConeContains(t *testing.T) {
	cone := Cone{Apex: geom.V(0, 0), Heading: 0, HalfAngle: math.Pi / 4, Radius: 10}
	tests := []struct {
		name string
		p    geom.Vec2
		want bool
	}{
		{name: "apex", p: geom.V(0, 0), want: true},
		{name: "ahead", p: geom.V(5, 0), want: true},
		{name: "edge", p: geom.V(5, 4.9), want: true},
		{name: "outside angle", p: geom.V(1, 5), want: false},
		{name: "behind", p: geom.V(-5, 0), want: false},
		{name: "too far", p: geom.V(11, 0), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cone.Contains(tc.p); got != tc.want {
				t.Fatalf("Contains(%+v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}

	wrap := Cone{Apex: geom.V(0, 0), Heading: math.Pi - 0.1, HalfAngle: 0.3, Radius: 10}
	if !wrap.Contains(geom.V(-5, -0.5)) {
		t.Fatalf("expected heading wrap-around to be handled")
	}
}
