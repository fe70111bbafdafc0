package platform

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceSample is a point-in-time host resource reading surfaced in the
// health document.
type ResourceSample struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryUsedMB  float64 `json:"memoryUsedMB"`
	MemoryPercent float64 `json:"memoryPercent"`
	SampledAt     int64   `json:"sampledAt"`
}

// SystemMonitor samples host CPU and memory on a fixed cadence and serves
// the last reading without blocking the caller. Health and stats handlers
// read the cached sample; they never trigger a gopsutil call inline.
type SystemMonitor struct {
	mu     sync.RWMutex
	last   ResourceSample
	stopCh chan struct{}
	once   sync.Once
}

// NewSystemMonitor creates a monitor and takes an initial sample.
func NewSystemMonitor() *SystemMonitor {
	m := &SystemMonitor{stopCh: make(chan struct{})}
	m.sample()
	return m
}

// Start begins periodic sampling. interval below one second is clamped.
func (m *SystemMonitor) Start(interval time.Duration) {
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop halts periodic sampling.
func (m *SystemMonitor) Stop() {
	m.once.Do(func() { close(m.stopCh) })
}

// Last returns the most recent sample.
func (m *SystemMonitor) Last() ResourceSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *SystemMonitor) sample() {
	s := ResourceSample{SampledAt: time.Now().UnixMilli()}

	// Non-blocking CPU read: compares against the previous call's counters.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)
		s.MemoryPercent = vm.UsedPercent
	}

	m.mu.Lock()
	m.last = s
	m.mu.Unlock()
}
