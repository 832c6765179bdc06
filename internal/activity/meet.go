package activity

import (
	"math/rand"

	"footfall/server/internal/agent"
	"footfall/server/internal/geom"
	"footfall/server/internal/world"
)

type MeetKind string

const (
	MeetPlanned   MeetKind = "planned"
	MeetUnplanned MeetKind = "unplanned"
)

// Participant is a non-owning handle on an agent taking part in a meet.
type Participant interface {
	Agent() *agent.Agent
	ClearMeet(m *Meet)
}

// Meet is a rendezvous between two or more agents.
type Meet struct {
	kind         MeetKind
	duration     int
	elapsed      int
	active       bool
	lastTick     uint64
	ticked       bool
	participants []Participant
}

// NewMeet creates an inactive meet.
func NewMeet(kind MeetKind, duration int, participants ...Participant) *Meet {
	if duration < 1 {
		duration = 1
	}
	return &Meet{kind: kind, duration: duration, participants: participants}
}

// SampleMeetTicks draws a meet length from the configured range.
func SampleMeetTicks(cfg world.Config, rng *rand.Rand) int {
	return cfg.SecondsToTicks(world.RandomInRange(rng, cfg.MeetSeconds))
}

func (m *Meet) Kind() MeetKind { return m.kind }
func (m *Meet) Duration() int  { return m.duration }
func (m *Meet) Elapsed() int   { return m.elapsed }
func (m *Meet) Active() bool   { return m.active }

func (m *Meet) Participants() []Participant {
	return m.participants
}

func (m *Meet) Activate() {
	m.active = true
}

// Centroid is the mean participant position.
func (m *Meet) Centroid() geom.Vec2 {
	var sum geom.Vec2
	for _, p := range m.participants {
		sum = sum.Add(p.Agent().Pos)
	}
	if len(m.participants) == 0 {
		return sum
	}
	return sum.Scale(1 / float64(len(m.participants)))
}

// Update turns p towards the group and advances the meet clock once per tick
// however many participants call it. It returns false once the meet is over.
func (m *Meet) Update(tick uint64, p Participant) bool {
	if !m.active {
		return false
	}
	p.Agent().Face(m.Centroid())
	if !m.ticked || tick != m.lastTick {
		m.ticked = true
		m.lastTick = tick
		m.elapsed++
	}
	if m.elapsed >= m.duration {
		m.BreakUp()
		return false
	}
	return true
}

// BreakUp deactivates the meet and clears it from every participant.
func (m *Meet) BreakUp() {
	m.active = false
	for _, p := range m.participants {
		p.ClearMeet(m)
	}
}
