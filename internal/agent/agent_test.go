package agent

import (
	"math"
	"math/rand"
	"testing"

	"footfall/server/internal/geom"
	"footfall/server/internal/world"
)

func TestNewSamplesWithinConfiguredRanges(t *testing.T) {
	cfg := world.DefaultConfig()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		a := New(int64(i), geom.V(10, 10), cfg, rng)
		if a.Major < cfg.CmToPixels(40) || a.Major > cfg.CmToPixels(50) {
			t.Fatalf("major %.2f outside shoulder range", a.Major)
		}
		if math.Abs(a.Minor-a.Major*2/3) > 1e-9 {
			t.Fatalf("minor %.2f is not two thirds of major", a.Minor)
		}
		if a.MaxSpeed < cfg.CmToPixels(65) || a.MaxSpeed > cfg.CmToPixels(85) {
			t.Fatalf("max speed %.2f outside walking range", a.MaxSpeed)
		}
		if a.MinSpeed != a.MaxSpeed*0.5 || a.MaxAccel != a.MaxSpeed*2 {
			t.Fatalf("unexpected derived speeds: min=%.2f accel=%.2f", a.MinSpeed, a.MaxAccel)
		}
		if a.MeetingPropensity < 0 || a.MeetingPropensity >= 0.1 {
			t.Fatalf("propensity %.3f outside [0, 0.1)", a.MeetingPropensity)
		}
	}
}

func TestFaceIgnoresOwnPosition(t *testing.T) {
	a := &Agent{Pos: geom.V(5, 5), Heading: 1}
	a.Face(geom.V(5, 5))
	if a.Heading != 1 {
		t.Fatalf("expected heading to stay unchanged, got %f", a.Heading)
	}
	a.Face(geom.V(5, 10))
	if math.Abs(a.Heading-math.Pi/2) > 1e-9 {
		t.Fatalf("expected heading pi/2, got %f", a.Heading)
	}
}

func TestStateString(t *testing.T) {
	if StateWaiting.String() != "WAITING" || State(99).String() != "IDLE" {
		t.Fatalf("unexpected state names")
	}
}
