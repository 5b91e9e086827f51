package metrics

import (
	"sync"
	"testing"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Inc(PredictRequests)
			}
		}()
	}
	wg.Wait()

	if got := m.Get(PredictRequests); got != 800 {
		t.Fatalf("%s=%d, want 800", PredictRequests, got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := New()
	m.Add(PredictDetections, 3)

	snap := m.Snapshot()
	snap[PredictDetections] = 100

	if got := m.Get(PredictDetections); got != 3 {
		t.Fatalf("%s=%d, want 3", PredictDetections, got)
	}
}

func TestNilRegistryIsNoop(t *testing.T) {
	var m *Metrics
	m.Inc(PredictRequests)
	if got := m.Get(PredictRequests); got != 0 {
		t.Fatalf("nil Get=%d, want 0", got)
	}
	if snap := m.Snapshot(); snap != nil {
		t.Fatalf("nil Snapshot=%v, want nil", snap)
	}
}
