package activity

import "footfall/server/internal/geom"

// StuckDetector watches a window of recent positions. An agent is stuck when
// the mean per-tick displacement over a full window, expressed in pixels per
// second, falls below the threshold.
type StuckDetector struct {
	window    int
	threshold float64
	dt        float64
	history   []geom.Vec2
}

func NewStuckDetector(window int, threshold, dt float64) *StuckDetector {
	if window < 1 {
		window = 1
	}
	return &StuckDetector{
		window:    window,
		threshold: threshold,
		dt:        dt,
		history:   make([]geom.Vec2, 0, window+1),
	}
}

// Record appends pos, keeping window+1 positions.
func (s *StuckDetector) Record(pos geom.Vec2) {
	if len(s.history) == s.window+1 {
		copy(s.history, s.history[1:])
		s.history = s.history[:s.window]
	}
	s.history = append(s.history, pos)
}

// AverageSpeed is the mean displacement vector length per second over the
// recorded history.
func (s *StuckDetector) AverageSpeed() float64 {
	n := len(s.history) - 1
	if n < 1 || s.dt <= 0 {
		return 0
	}
	net := s.history[n].Sub(s.history[0])
	return net.Len() / float64(n) / s.dt
}

// Stuck only answers true once the window is full.
func (s *StuckDetector) Stuck() bool {
	if len(s.history) <= s.window {
		return false
	}
	return s.AverageSpeed() < s.threshold
}

// Reset empties the window so detection re-arms only after it refills.
func (s *StuckDetector) Reset() {
	s.history = s.history[:0]
}

func (s *StuckDetector) Len() int {
	return len(s.history)
}
