package telemetry

import (
	"context"
	"testing"
)

func TestRecordQueryNilSafe(t *testing.T) {
	var m *Metrics

	// None of these may panic on an uninitialized metrics handle.
	m.RecordQuery(context.Background(), false, false)
	m.RecordQuery(context.Background(), true, false)
	m.RecordQuery(context.Background(), false, true)
	m.RecordIngestion(context.Background(), 3, 1.5, true)
}

func TestRecordQueryOutcomes(t *testing.T) {
	m, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}

	// Exercises every instrument, including the fallback counter for
	// rewrite-path answers.
	m.RecordQuery(context.Background(), false, false)
	m.RecordQuery(context.Background(), false, true)
	m.RecordQuery(context.Background(), true, false)
}
