package metrics

import (
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/osmview-go/internal/cache"
)

// KindStats aggregates the recomputes of one cache
type KindStats struct {
	Kind      cache.Kind
	Runs      int
	Total     time.Duration
	Max       time.Duration
	Last      time.Duration
	LastCount int // output size of the last recompute
}

// Mean returns the average recompute duration
func (s KindStats) Mean() time.Duration {
	if s.Runs == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Runs)
}

// FrameStats records per-cache recompute timings and frame durations. It
// implements cache.Observer and is safe to read from another goroutine.
type FrameStats struct {
	mu         sync.Mutex
	kinds      map[cache.Kind]*KindStats
	frames     int
	frameTotal time.Duration
	frameMax   time.Duration
}

// NewFrameStats creates an empty recorder
func NewFrameStats() *FrameStats {
	return &FrameStats{kinds: make(map[cache.Kind]*KindStats)}
}

// Observe records one cache recompute
func (f *FrameStats) Observe(k cache.Kind, took time.Duration, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.kinds[k]
	if !ok {
		s = &KindStats{Kind: k}
		f.kinds[k] = s
	}
	s.Runs++
	s.Total += took
	s.Last = took
	s.LastCount = count
	if took > s.Max {
		s.Max = took
	}
}

// RecordFrame records the duration of one whole frame
func (f *FrameStats) RecordFrame(took time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.frames++
	f.frameTotal += took
	if took > f.frameMax {
		f.frameMax = took
	}
}

// Frames returns the number of recorded frames
func (f *FrameStats) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// Kinds returns a copy of the per-cache stats in recompute order
func (f *FrameStats) Kinds() []KindStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]KindStats, 0, len(f.kinds))
	for _, k := range cache.RecomputeOrder {
		if s, ok := f.kinds[k]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// Kind returns the stats of one cache
func (f *FrameStats) Kind(k cache.Kind) (KindStats, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.kinds[k]
	if !ok {
		return KindStats{}, false
	}
	return *s, true
}

// Fields returns the stats as log fields, one group per cache
func (f *FrameStats) Fields() []zap.Field {
	kinds := f.Kinds()

	f.mu.Lock()
	fields := []zap.Field{zap.Int("frames", f.frames)}
	if f.frames > 0 {
		fields = append(fields,
			zap.Duration("frame_mean", f.frameTotal/time.Duration(f.frames)),
			zap.Duration("frame_max", f.frameMax))
	}
	f.mu.Unlock()

	for _, s := range kinds {
		fields = append(fields, zap.Dict(s.Kind.String(),
			zap.Int("runs", s.Runs),
			zap.Duration("mean", s.Mean()),
			zap.Duration("max", s.Max),
			zap.Int("count", s.LastCount)))
	}
	return fields
}

// Slowest returns the cache with the largest total recompute time
func (f *FrameStats) Slowest() (KindStats, bool) {
	kinds := f.Kinds()
	if len(kinds) == 0 {
		return KindStats{}, false
	}
	return slices.MaxFunc(kinds, func(a, b KindStats) int {
		switch {
		case a.Total < b.Total:
			return -1
		case a.Total > b.Total:
			return 1
		}
		return 0
	}), true
}
