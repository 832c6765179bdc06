package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"footfall/server/internal/world"
)

var (
	// ErrUnknownFormat is returned for scenario files that are neither JSON nor YAML.
	ErrUnknownFormat = errors.New("unknown scenario format")
	// ErrNoEntries is returned when a scenario has nowhere for people to come in.
	ErrNoEntries = errors.New("scenario has no entries")
	// ErrDuplicateName is returned when two locations share a name.
	ErrDuplicateName = errors.New("duplicate location name")
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the decoder from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// File is a scenario document as authored on disk. The struct is exported so
// the schema generator can reflect over it.
type File struct {
	Name          string           `json:"name" yaml:"name" jsonschema:"title=Scenario name,minLength=1,required"`
	Width         int              `json:"width" yaml:"width" jsonschema:"title=Width,description=Width of the space in pixels.,minimum=1,required"`
	Height        int              `json:"height" yaml:"height" jsonschema:"title=Height,description=Height of the space in pixels.,minimum=1,required"`
	Busyness      *float64         `json:"busyness,omitempty" yaml:"busyness,omitempty" jsonschema:"description=Initial arrival rate multiplier.,minimum=0"`
	InitialAgents int              `json:"initialAgents,omitempty" yaml:"initialAgents,omitempty" jsonschema:"description=Agents spawned before the first tick.,minimum=0"`
	Lattice       float64          `json:"latticeSpacing,omitempty" yaml:"latticeSpacing,omitempty" jsonschema:"description=Spacing of generated grid waypoints in pixels. Zero disables the lattice.,minimum=0"`
	PruneLOS      bool             `json:"pruneLineOfSight,omitempty" yaml:"pruneLineOfSight,omitempty" jsonschema:"description=Drop intermediate path vertices that can be skipped by line of sight."`
	Obstacles     []world.Obstacle `json:"obstacles,omitempty" yaml:"obstacles,omitempty" jsonschema:"description=Blocked rectangles."`
	Entries       []Area           `json:"entries" yaml:"entries" jsonschema:"description=Doors where people arrive and leave.,minItems=1,required"`
	SubGoals      []Area           `json:"subGoals,omitempty" yaml:"subGoals,omitempty" jsonschema:"description=Places people visit."`
	Waypoints     []Point          `json:"waypoints,omitempty" yaml:"waypoints,omitempty" jsonschema:"description=Free-standing navigation points."`
}

// Rect is an axis-aligned rectangle in pixels.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width" jsonschema:"minimum=0"`
	Height float64 `json:"height" yaml:"height" jsonschema:"minimum=0"`
}

// Area is an entry or sub-goal covering the walkable pixels of Rect.
type Area struct {
	Name    string       `json:"name" yaml:"name" jsonschema:"minLength=1,required"`
	Rect    Rect         `json:"rect" yaml:"rect" jsonschema:"required"`
	Traffic float64      `json:"traffic,omitempty" yaml:"traffic,omitempty" jsonschema:"description=Seconds between visitors. Entries use it as a relative weight.,minimum=0"`
	Wait    *WaitSeconds `json:"wait,omitempty" yaml:"wait,omitempty" jsonschema:"description=Dwell time once the visitor arrives."`
}

// WaitSeconds is a uniform dwell distribution.
type WaitSeconds struct {
	Min float64 `json:"min" yaml:"min" jsonschema:"minimum=0"`
	Max float64 `json:"max" yaml:"max" jsonschema:"minimum=0"`
}

// Point is a named free-standing waypoint.
type Point struct {
	Name string  `json:"name" yaml:"name" jsonschema:"minLength=1,required"`
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
}

// Load reads and validates a scenario file.
func Load(path string) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	file, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Decode parses and validates a scenario document.
func Decode(data []byte, format Format) (*File, error) {
	var file File
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("decode json scenario: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("decode yaml scenario: %w", err)
		}
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks the structural rules the builder relies on.
func (f *File) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("scenario %q: invalid size %dx%d", f.Name, f.Width, f.Height)
	}
	if len(f.Entries) == 0 {
		return fmt.Errorf("scenario %q: %w", f.Name, ErrNoEntries)
	}
	seen := make(map[string]struct{})
	check := func(name string) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("scenario %q: location without a name", f.Name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("scenario %q: %q: %w", f.Name, name, ErrDuplicateName)
		}
		seen[name] = struct{}{}
		return nil
	}
	for _, area := range f.Entries {
		if err := check(area.Name); err != nil {
			return err
		}
	}
	for _, area := range f.SubGoals {
		if err := check(area.Name); err != nil {
			return err
		}
		if area.Wait != nil && area.Wait.Max < area.Wait.Min {
			return fmt.Errorf("scenario %q: sub-goal %q wait max below min", f.Name, area.Name)
		}
	}
	for _, wp := range f.Waypoints {
		if err := check(wp.Name); err != nil {
			return err
		}
	}
	return nil
}

// Apply copies the scenario's tunables onto cfg.
func (f *File) Apply(cfg world.Config) world.Config {
	cfg.Width = float64(f.Width)
	cfg.Height = float64(f.Height)
	if f.Busyness != nil {
		cfg.Busyness = *f.Busyness
	}
	if f.Lattice > 0 {
		cfg.LatticeSpacing = f.Lattice
	}
	if f.PruneLOS {
		cfg.PruneLineOfSight = true
	}
	return cfg
}

// Default is a small built-in layout: a hall with two doors, three shops
// and a central kiosk.
func Default() *File {
	busy := 1.0
	return &File{
		Name:     "hall",
		Width:    640,
		Height:   480,
		Busyness: &busy,
		Obstacles: []world.Obstacle{
			{ID: "kiosk", X: 280, Y: 200, Width: 80, Height: 80},
			{ID: "wall-north", X: 0, Y: 120, Width: 200, Height: 10},
			{ID: "wall-south", X: 440, Y: 350, Width: 200, Height: 10},
		},
		Entries: []Area{
			{Name: "west-door", Rect: Rect{X: 30, Y: 220, Width: 20, Height: 40}, Traffic: 2},
			{Name: "east-door", Rect: Rect{X: 590, Y: 220, Width: 20, Height: 40}, Traffic: 1},
		},
		SubGoals: []Area{
			{Name: "bakery", Rect: Rect{X: 60, Y: 50, Width: 60, Height: 40}, Traffic: 4, Wait: &WaitSeconds{Min: 3, Max: 8}},
			{Name: "florist", Rect: Rect{X: 500, Y: 50, Width: 60, Height: 40}, Traffic: 8, Wait: &WaitSeconds{Min: 2, Max: 5}},
			{Name: "pharmacy", Rect: Rect{X: 480, Y: 390, Width: 80, Height: 40}, Traffic: 6},
		},
		Waypoints: []Point{
			{Name: "north-gap", X: 240, Y: 125},
			{Name: "kiosk-nw", X: 250, Y: 170},
			{Name: "kiosk-ne", X: 390, Y: 170},
			{Name: "kiosk-sw", X: 250, Y: 310},
			{Name: "kiosk-se", X: 390, Y: 310},
			{Name: "south-gap", X: 400, Y: 355},
		},
	}
}
