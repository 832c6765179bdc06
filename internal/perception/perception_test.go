package perception

import (
	"math"
	"testing"

	"footfall/server/internal/agent"
	"footfall/server/internal/geom"
	"footfall/server/internal/nav"
)

func testSettings() Settings {
	return Settings{HalfAngle: math.Pi / 3, ConeRadius: 60, CircleRadius: 24, CellSize: 1, Capacity: 4}
}

func TestRefreshClassifiesHits(t *testing.T) {
	sys := NewSystem(testSettings(), 200, 200)
	self := &agent.Agent{ID: 1, Pos: geom.V(100, 100), Vel: geom.V(10, 0), State: agent.StateMoving}
	near := &agent.Agent{ID: 2, Pos: geom.V(115, 100)}
	far := &agent.Agent{ID: 3, Pos: geom.V(150, 100)}
	behind := &agent.Agent{ID: 4, Pos: geom.V(80, 100)}

	g := nav.NewGraph(nil)
	shop := nav.NewLocation("shop", nav.KindSubGoal, geom.V(140, 110))
	corner := nav.NewLocation("corner", nav.KindWaypoint, geom.V(130, 90))
	hidden := &nav.Location{Name: "hidden", Kind: nav.KindWaypoint}
	g.AddNode(shop)
	g.AddNode(corner)
	g.AddNode(hidden)
	self.Path = []geom.Vec2{geom.V(100, 100), geom.V(130.4, 90.6), geom.V(180, 100)}

	sys.Rebuild([]*agent.Agent{self, near, far, behind}, g.Nodes())
	sys.Refresh(self)

	if len(self.Perceived.Dynamic) != 2 {
		t.Fatalf("expected 2 agents in cone, got %d", len(self.Perceived.Dynamic))
	}
	for _, other := range self.Perceived.Dynamic {
		if other == self || other == behind {
			t.Fatalf("unexpected agent %d in dynamic bucket", other.ID)
		}
	}
	if len(self.Perceived.WithinCircle) != 1 || self.Perceived.WithinCircle[0] != near {
		t.Fatalf("expected only the near agent within circle, got %d", len(self.Perceived.WithinCircle))
	}
	if len(self.Perceived.Targets) != 2 {
		t.Fatalf("expected 2 locations in cone, got %d", len(self.Perceived.Targets))
	}
	if len(self.Perceived.OnPath) != 1 || self.Perceived.OnPath[0] != corner {
		t.Fatalf("expected corner to be on path, got %+v", self.Perceived.OnPath)
	}
}

func TestHeadingFrozenWhenNotMoving(t *testing.T) {
	sys := NewSystem(testSettings(), 200, 200)
	a := &agent.Agent{ID: 1, Pos: geom.V(50, 50), Vel: geom.V(0, 5), Heading: 0, State: agent.StateWaiting}
	ahead := &agent.Agent{ID: 2, Pos: geom.V(70, 50)}
	sys.Rebuild([]*agent.Agent{a, ahead}, nil)
	sys.Refresh(a)
	if a.Heading != 0 {
		t.Fatalf("expected frozen heading, got %f", a.Heading)
	}
	if len(a.Perceived.Dynamic) != 1 {
		t.Fatalf("expected agent ahead of frozen heading to be seen")
	}

	a.State = agent.StateMoving
	sys.Refresh(a)
	if math.Abs(a.Heading-math.Pi/2) > 1e-9 {
		t.Fatalf("expected heading to follow velocity, got %f", a.Heading)
	}
	if len(a.Perceived.Dynamic) != 0 {
		t.Fatalf("expected agent to leave the cone after turning")
	}
}

func TestRefreshClearsPreviousBuckets(t *testing.T) {
	sys := NewSystem(testSettings(), 200, 200)
	a := &agent.Agent{ID: 1, Pos: geom.V(50, 50), Vel: geom.V(5, 0), State: agent.StateMoving}
	b := &agent.Agent{ID: 2, Pos: geom.V(60, 50)}
	sys.Rebuild([]*agent.Agent{a, b}, nil)
	sys.Refresh(a)
	if len(a.Perceived.Dynamic) != 1 {
		t.Fatalf("expected one neighbour")
	}
	sys.Rebuild([]*agent.Agent{a}, nil)
	sys.Refresh(a)
	if len(a.Perceived.Dynamic) != 0 || len(a.Perceived.WithinCircle) != 0 {
		t.Fatalf("expected buckets to be cleared")
	}
}
