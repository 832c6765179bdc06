package population

import (
	"errors"
	"fmt"

	"footfall/server/internal/nav"
)

// ErrUnknownEntry is returned when a wave names an entry that does not exist.
var ErrUnknownEntry = errors.New("unknown entry")

// wave spawns count agents over a fixed window with its own arrival rate.
type wave struct {
	entry     *nav.Location
	count     int
	seconds   float64
	lambda    float64
	spawned   int
	ticksLeft int
}

func (w *wave) done() bool {
	return w.spawned >= w.count || w.ticksLeft <= 0
}

// TriggerWave schedules count arrivals over seconds at the named entry. An
// empty name spreads the wave over the entries by their traffic weight.
func (m *Manager) TriggerWave(entryName string, count int, seconds float64) error {
	if count <= 0 || seconds <= 0 {
		return fmt.Errorf("wave needs a positive count and duration, got %d over %.2fs", count, seconds)
	}
	var entry *nav.Location
	if entryName != "" {
		for _, loc := range m.entries {
			if loc.Name == entryName {
				entry = loc
				break
			}
		}
		if entry == nil {
			return fmt.Errorf("trigger wave at %q: %w", entryName, ErrUnknownEntry)
		}
	} else if len(m.entries) == 0 {
		return fmt.Errorf("trigger wave: %w", ErrUnknownEntry)
	}
	w := &wave{
		entry:     entry,
		count:     count,
		seconds:   seconds,
		lambda:    float64(count) / seconds,
		ticksLeft: m.cfg.SecondsToTicks(seconds),
	}
	if w.ticksLeft < 1 {
		w.ticksLeft = 1
	}
	m.waves = append(m.waves, w)
	m.publishWaveStarted(w)
	return nil
}

// ActiveWaves reports how many waves are still running.
func (m *Manager) ActiveWaves() int {
	return len(m.waves)
}

func (m *Manager) runWaves(tick uint64) {
	if len(m.waves) == 0 {
		return
	}
	dt := m.cfg.DT()
	kept := m.waves[:0]
	for _, w := range m.waves {
		if m.rng.Float64() < SpawnProbability(w.lambda, 1, dt) {
			if _, ok := m.spawnFrom(tick, w.entry, true); ok {
				w.spawned++
			}
		}
		w.ticksLeft--
		if w.done() {
			m.publishWaveFinished(tick, w)
			continue
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(m.waves); i++ {
		m.waves[i] = nil
	}
	m.waves = kept
}

func (w *wave) entryName() string {
	if w.entry == nil {
		return ""
	}
	return w.entry.Name
}
