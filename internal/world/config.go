package world

import (
	"math"
	"strings"
)

const (
	DefaultSeed           = "13"
	DefaultWidth          = 640.0
	DefaultHeight         = 480.0
	DefaultTickRate       = 20
	DefaultPixelsPerMeter = 20.0
)

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r Range) normalized(fallback Range) Range {
	if r.Min <= 0 && r.Max <= 0 {
		return fallback
	}
	if r.Min < 0 {
		r.Min = 0
	}
	if r.Max < r.Min {
		r.Max = r.Min
	}
	return r
}

// Config is the immutable simulation configuration shared by every subsystem.
type Config struct {
	Seed           string  `json:"seed"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	TickRate       int     `json:"tickRate"`
	PixelsPerMeter float64 `json:"pixelsPerMeter"`

	ShoulderWidthCm Range   `json:"shoulderWidthCm"`
	WalkSpeedCm     Range   `json:"walkSpeedCm"`
	MinSpeedFactor  float64 `json:"minSpeedFactor"`
	AccelFactor     float64 `json:"accelFactor"`
	MaxPropensity   float64 `json:"maxPropensity"`

	Busyness          float64 `json:"busyness"`
	QuadtreeCapacity  int     `json:"quadtreeCapacity"`
	ConeHalfAngleDeg  float64 `json:"coneHalfAngleDeg"`
	ConeRadiusMeters  float64 `json:"coneRadiusMeters"`
	CircleFraction    float64 `json:"circleFraction"`
	PathCellSize      float64 `json:"pathCellSize"`
	WaypointTolerance float64 `json:"waypointTolerance"`

	StuckWindow     int     `json:"stuckWindow"`
	StuckSpeed      float64 `json:"stuckSpeed"`
	JitterStrength  float64 `json:"jitterStrength"`
	WaitSpeedFactor float64 `json:"waitSpeedFactor"`

	MeetPatienceSeconds float64 `json:"meetPatienceSeconds"`
	MeetSeconds         Range   `json:"meetSeconds"`

	MinStops         int     `json:"minStops"`
	MaxStops         int     `json:"maxStops"`
	LatticeSpacing   float64 `json:"latticeSpacing"`
	PruneLineOfSight bool    `json:"pruneLineOfSight"`
	DensityCellSize  float64 `json:"densityCellSize"`
}

func (cfg Config) normalized() Config {
	def := DefaultConfig()
	n := cfg
	n.Seed = strings.TrimSpace(n.Seed)
	if n.Seed == "" {
		n.Seed = DefaultSeed
	}
	if n.Width <= 0 {
		n.Width = DefaultWidth
	}
	if n.Height <= 0 {
		n.Height = DefaultHeight
	}
	if n.TickRate <= 0 {
		n.TickRate = DefaultTickRate
	}
	if n.PixelsPerMeter <= 0 {
		n.PixelsPerMeter = DefaultPixelsPerMeter
	}
	n.ShoulderWidthCm = n.ShoulderWidthCm.normalized(def.ShoulderWidthCm)
	n.WalkSpeedCm = n.WalkSpeedCm.normalized(def.WalkSpeedCm)
	if n.MinSpeedFactor <= 0 || n.MinSpeedFactor > 1 {
		n.MinSpeedFactor = def.MinSpeedFactor
	}
	if n.AccelFactor <= 0 {
		n.AccelFactor = def.AccelFactor
	}
	if n.MaxPropensity < 0 || n.MaxPropensity > 1 {
		n.MaxPropensity = def.MaxPropensity
	}
	if n.Busyness < 0 || math.IsNaN(n.Busyness) {
		n.Busyness = def.Busyness
	}
	if n.QuadtreeCapacity <= 0 {
		n.QuadtreeCapacity = def.QuadtreeCapacity
	}
	if n.ConeHalfAngleDeg <= 0 || n.ConeHalfAngleDeg > 180 {
		n.ConeHalfAngleDeg = def.ConeHalfAngleDeg
	}
	if n.ConeRadiusMeters <= 0 {
		n.ConeRadiusMeters = def.ConeRadiusMeters
	}
	if n.CircleFraction <= 0 || n.CircleFraction >= 1 {
		n.CircleFraction = def.CircleFraction
	}
	if n.PathCellSize <= 0 {
		n.PathCellSize = def.PathCellSize
	}
	if n.WaypointTolerance <= 0 {
		n.WaypointTolerance = def.WaypointTolerance
	}
	if n.StuckWindow <= 1 {
		n.StuckWindow = def.StuckWindow
	}
	if n.StuckSpeed <= 0 {
		n.StuckSpeed = def.StuckSpeed
	}
	if n.JitterStrength <= 0 {
		n.JitterStrength = def.JitterStrength
	}
	if n.WaitSpeedFactor <= 0 || n.WaitSpeedFactor >= 1 {
		n.WaitSpeedFactor = def.WaitSpeedFactor
	}
	if n.MeetPatienceSeconds <= 0 {
		n.MeetPatienceSeconds = def.MeetPatienceSeconds
	}
	n.MeetSeconds = n.MeetSeconds.normalized(def.MeetSeconds)
	if n.MinStops < 2 {
		n.MinStops = def.MinStops
	}
	if n.MaxStops <= n.MinStops {
		n.MaxStops = n.MinStops + 1
	}
	if n.LatticeSpacing < 0 {
		n.LatticeSpacing = 0
	}
	if n.DensityCellSize <= 0 {
		n.DensityCellSize = def.DensityCellSize
	}
	return n
}

// Normalized returns a copy with every missing or invalid value replaced by its default.
func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

func DefaultConfig() Config {
	return Config{
		Seed:                DefaultSeed,
		Width:               DefaultWidth,
		Height:              DefaultHeight,
		TickRate:            DefaultTickRate,
		PixelsPerMeter:      DefaultPixelsPerMeter,
		ShoulderWidthCm:     Range{Min: 40, Max: 50},
		WalkSpeedCm:         Range{Min: 65, Max: 85},
		MinSpeedFactor:      0.5,
		AccelFactor:         2,
		MaxPropensity:       0.1,
		Busyness:            1,
		QuadtreeCapacity:    4,
		ConeHalfAngleDeg:    60,
		ConeRadiusMeters:    3,
		CircleFraction:      0.4,
		PathCellSize:        1,
		WaypointTolerance:   10,
		StuckWindow:         12,
		StuckSpeed:          4,
		JitterStrength:      1,
		WaitSpeedFactor:     0.5,
		MeetPatienceSeconds: 10,
		MeetSeconds:         Range{Min: 6, Max: 15},
		MinStops:            3,
		MaxStops:            7,
		DensityCellSize:     10,
	}
}

// DT is the fixed simulation step in seconds.
func (cfg Config) DT() float64 {
	if cfg.TickRate <= 0 {
		return 1.0 / DefaultTickRate
	}
	return 1.0 / float64(cfg.TickRate)
}

// CmToPixels converts a physical length to pixels.
func (cfg Config) CmToPixels(cm float64) float64 {
	return cm * cfg.PixelsPerMeter / 100
}

// SecondsToTicks converts a duration to a whole number of ticks.
func (cfg Config) SecondsToTicks(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(cfg.TickRate)))
}

// ConeRadius returns the perception cone radius in pixels.
func (cfg Config) ConeRadius() float64 {
	return cfg.ConeRadiusMeters * cfg.PixelsPerMeter
}

// ConeHalfAngle returns the perception cone half-angle in radians.
func (cfg Config) ConeHalfAngle() float64 {
	return cfg.ConeHalfAngleDeg * math.Pi / 180
}
