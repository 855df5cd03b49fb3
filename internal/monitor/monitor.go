// Package monitor keeps timing statistics of the capture loop: how long each
// capture and classification takes and how many frames per second get through.
package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Monitor collects per-operation timings. The zero value is not usable; call New.
type Monitor struct {
	start  time.Time
	now    func() time.Time
	frames Counter

	mu     sync.Mutex
	timers map[Operation]*Timer
}

// New creates a monitor whose uptime starts now
func New() *Monitor {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Monitor {
	return &Monitor{
		start:  now(),
		now:    now,
		timers: make(map[Operation]*Timer),
	}
}

func (m *Monitor) timer(op Operation) *Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[op]
	if !ok {
		t = NewTimer()
		m.timers[op] = t
	}
	return t
}

// Track runs fn and records its duration under op
func (m *Monitor) Track(op Operation, fn func() error) error {
	start := m.now()
	err := fn()
	m.Record(op, m.now().Sub(start), err != nil)
	return err
}

// Record adds one measurement for op
func (m *Monitor) Record(op Operation, d time.Duration, failed bool) {
	m.timer(op).Record(d, failed)
}

// FrameDone counts a frame that made it through classification
func (m *Monitor) FrameDone() {
	m.frames.Inc()
}

// Snapshot is a point-in-time view of the monitor
type Snapshot struct {
	Timestamp  time.Time          `json:"timestamp"`
	Uptime     time.Duration      `json:"uptime_ns"`
	Frames     int64              `json:"frames"`
	FPS        float64            `json:"fps"`
	Operations []OperationMetrics `json:"operations"`
	Memory     MemoryMetrics      `json:"memory"`
}

// Snapshot returns the current statistics. Operations without measurements
// are left out.
func (m *Monitor) Snapshot() Snapshot {
	now := m.now()
	s := Snapshot{
		Timestamp: now,
		Uptime:    now.Sub(m.start),
		Frames:    m.frames.Get(),
		Memory:    collectMemory(),
	}
	if secs := s.Uptime.Seconds(); secs > 0 {
		s.FPS = float64(s.Frames) / secs
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range Operations {
		if t, ok := m.timers[op]; ok {
			s.Operations = append(s.Operations, t.Metrics(op))
		}
	}
	return s
}

// Operation returns the metrics of op, if any were recorded
func (s Snapshot) Operation(op Operation) (OperationMetrics, bool) {
	for _, m := range s.Operations {
		if m.Operation == op {
			return m, true
		}
	}
	return OperationMetrics{}, false
}

// Summary renders the snapshot in one line, e.g.
// "12.0 fps · capture 2ms · classify 31ms".
func (s Snapshot) Summary() string {
	parts := []string{fmt.Sprintf("%.1f fps", s.FPS)}
	for _, op := range s.Operations {
		if op.Operation == OperationPublish {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s", op.Operation, op.Avg.Round(time.Millisecond)))
	}
	return strings.Join(parts, " · ")
}
