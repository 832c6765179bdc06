package sim

import "testing"

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	cmds := []Command{
		{Type: CommandPause, Source: "a"},
		{Type: CommandResume, Source: "b"},
		{Type: CommandRecalculatePaths, Source: "c"},
	}
	for _, cmd := range cmds {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed for %+v", cmd)
		}
	}
	if buffer.Push(Command{Source: "overflow"}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.Source != cmds[i].Source {
			t.Fatalf("expected drain order %v, got %v", cmds[i].Source, cmd.Source)
		}
	}
	for _, cmd := range []Command{{Source: "d"}, {Source: "e"}} {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed after drain for %+v", cmd)
		}
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 || wrapped[0].Source != "d" || wrapped[1].Source != "e" {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
	if buffer.Drain() != nil {
		t.Fatalf("expected empty drain to return nil")
	}
}

type recordingMetrics struct {
	added  map[string]uint64
	stored map[string]uint64
}

func (m *recordingMetrics) Add(key string, delta uint64) {
	if m.added == nil {
		m.added = make(map[string]uint64)
	}
	m.added[key] += delta
}

func (m *recordingMetrics) Store(key string, value uint64) {
	if m.stored == nil {
		m.stored = make(map[string]uint64)
	}
	m.stored[key] = value
}

func TestCommandBufferMetrics(t *testing.T) {
	metrics := &recordingMetrics{}
	buffer := NewCommandBuffer(1, metrics)
	buffer.Push(Command{Source: "one"})
	if metrics.stored[commandBufferOccupancyMetricKey] != 1 {
		t.Fatalf("expected occupancy 1, got %d", metrics.stored[commandBufferOccupancyMetricKey])
	}
	if buffer.Push(Command{Source: "two"}) {
		t.Fatalf("expected push to fail when capacity exceeded")
	}
	if metrics.added[commandBufferOverflowMetricKey] != 1 {
		t.Fatalf("expected overflow to be counted")
	}
	buffer.Drain()
	if metrics.stored[commandBufferOccupancyMetricKey] != 0 {
		t.Fatalf("expected occupancy reset after drain")
	}
}
