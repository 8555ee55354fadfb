package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/wegman-software/osmview-go/internal/cache"
)

func TestFrameStatsObserve(t *testing.T) {
	f := NewFrameStats()
	f.Observe(cache.WayArea, 2*time.Millisecond, 10)
	f.Observe(cache.WayArea, 4*time.Millisecond, 12)
	f.Observe(cache.NodeProjection, time.Millisecond, 50)

	s, ok := f.Kind(cache.WayArea)
	if !ok {
		t.Fatal("WayArea stats missing")
	}
	if s.Runs != 2 || s.Total != 6*time.Millisecond || s.Max != 4*time.Millisecond {
		t.Errorf("WayArea stats = %+v", s)
	}
	if s.Mean() != 3*time.Millisecond {
		t.Errorf("Mean() = %v, want 3ms", s.Mean())
	}
	if s.LastCount != 12 || s.Last != 4*time.Millisecond {
		t.Errorf("last = %v/%d, want 4ms/12", s.Last, s.LastCount)
	}

	if _, ok := f.Kind(cache.NodeUsage); ok {
		t.Error("NodeUsage was never observed")
	}

	kinds := f.Kinds()
	if len(kinds) != 2 {
		t.Fatalf("Kinds() = %d entries, want 2", len(kinds))
	}
	// recompute order puts WayArea before NodeProjection
	if kinds[0].Kind != cache.WayArea || kinds[1].Kind != cache.NodeProjection {
		t.Errorf("Kinds() order = %v, %v", kinds[0].Kind, kinds[1].Kind)
	}

	slowest, ok := f.Slowest()
	if !ok || slowest.Kind != cache.WayArea {
		t.Errorf("Slowest() = %v, %v", slowest.Kind, ok)
	}
}

func TestFrameStatsFields(t *testing.T) {
	f := NewFrameStats()
	if _, ok := f.Slowest(); ok {
		t.Error("Slowest() of empty stats should report false")
	}
	if got := len(f.Fields()); got != 1 {
		t.Errorf("Fields() of empty stats = %d, want 1", got)
	}

	f.RecordFrame(10 * time.Millisecond)
	f.RecordFrame(20 * time.Millisecond)
	f.Observe(cache.NodeUsage, time.Millisecond, 3)

	if f.Frames() != 2 {
		t.Errorf("Frames() = %d, want 2", f.Frames())
	}
	// frames, frame_mean, frame_max and one group per cache
	if got := len(f.Fields()); got != 4 {
		t.Errorf("Fields() = %d, want 4", got)
	}
}

func TestFrameStatsAsObserver(t *testing.T) {
	var _ cache.Observer = NewFrameStats()
}

func TestCollectorStart(t *testing.T) {
	frames := NewFrameStats()
	frames.RecordFrame(time.Millisecond)
	c := NewCollector(time.Hour, frames, nil)

	if c.GetMetrics() != nil {
		t.Error("GetMetrics() before the first sample should be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for c.GetMetrics() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Start() error = %v", err)
	}
	m := c.GetMetrics()
	if m == nil {
		t.Fatal("no sample collected")
	}
	if m.Timestamp.IsZero() || m.Goroutines == 0 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestFormat(t *testing.T) {
	if got := formatGB(1.5); got != "1.5 GB" {
		t.Errorf("formatGB(1.5) = %q", got)
	}
	if got := formatMB(512); got != "512.0 MB" {
		t.Errorf("formatMB(512) = %q", got)
	}
}
