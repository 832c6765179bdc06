package telemetry

import (
	"bytes"
	"log"
	"testing"

	"footfall/server/logging"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WrapLogger(log.New(&buf, "", 0))
		logger.Printf("agent %d spawned", 7)
		if got := buf.String(); got != "agent 7 spawned\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestWrapMetrics(t *testing.T) {
	metrics := &logging.Metrics{}
	adapter := WrapMetrics(metrics)

	adapter.Add("agents_spawned", 2)
	adapter.Store("agents_active", 5)
	adapter.Add("agents_spawned", 3)

	snapshot := metrics.Snapshot()
	if got := snapshot["agents_spawned"]; got != 5 {
		t.Fatalf("unexpected counter value: %d", got)
	}
	if got := snapshot["agents_active"]; got != 5 {
		t.Fatalf("unexpected gauge value: %d", got)
	}

	var nilAdapter Metrics = WrapMetrics(nil)
	nilAdapter.Add("ignored", 1)
	nilAdapter.Store("ignored", 1)
}
