package metrics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// SystemMetrics holds one snapshot of system and process metrics
type SystemMetrics struct {
	CPUPercent        float64 // system-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // this process, per core, can exceed 100%
	MemoryUsedGB      float64
	MemoryTotalGB     float64
	MemoryPercent     float64
	ProcessRSSMB      float64
	HeapAllocMB       float64
	Goroutines        int
	Timestamp         time.Time
}

// Collector periodically samples system metrics and logs them together
// with the frame stats
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process
	frames   *FrameStats

	mu          sync.RWMutex
	lastMetrics *SystemMetrics
}

// NewCollector creates a collector. frames may be nil.
func NewCollector(interval time.Duration, frames *FrameStats, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
		frames:   frames,
	}
}

// Start samples immediately and then on every tick until ctx is done
func (c *Collector) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return nil
		case <-ticker.C:
			c.collect()
		}
	}
}

// GetMetrics returns the last snapshot, or nil before the first sample
func (c *Collector) GetMetrics() *SystemMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

func (c *Collector) collect() {
	m := &SystemMetrics{
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPUPercent = pct[0]
	}

	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			m.ProcessCPUPercent = pct
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			m.ProcessRSSMB = float64(info.RSS) / (1024 * 1024)
		}
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		m.MemoryPercent = vmem.UsedPercent
		m.MemoryUsedGB = float64(vmem.Used) / (1024 * 1024 * 1024)
		m.MemoryTotalGB = float64(vmem.Total) / (1024 * 1024 * 1024)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.HeapAllocMB = float64(ms.HeapAlloc) / (1024 * 1024)

	c.mu.Lock()
	c.lastMetrics = m
	c.mu.Unlock()

	c.logger.Info("System metrics",
		zap.Float64("sys_cpu", m.CPUPercent),
		zap.Float64("proc_cpu", m.ProcessCPUPercent),
		zap.Float64("mem_pct", m.MemoryPercent),
		zap.String("mem_used", formatGB(m.MemoryUsedGB)),
		zap.String("rss", formatMB(m.ProcessRSSMB)),
		zap.String("heap", formatMB(m.HeapAllocMB)),
		zap.Int("goroutines", m.Goroutines),
	)

	if c.frames != nil && c.frames.Frames() > 0 {
		c.logger.Info("Frame stats", c.frames.Fields()...)
	}
}

func formatGB(gb float64) string {
	return fmt.Sprintf("%.1f GB", gb)
}

func formatMB(mb float64) string {
	return fmt.Sprintf("%.1f MB", mb)
}
