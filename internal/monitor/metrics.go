package monitor

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Operation names a stage of the capture loop
type Operation string

const (
	OperationCapture  Operation = "capture"
	OperationClassify Operation = "classify"
	OperationPublish  Operation = "publish"
)

// Operations lists the stages in display order
var Operations = []Operation{OperationCapture, OperationClassify, OperationPublish}

const unsetMin = int64(^uint64(0) >> 1)

// Counter is a thread-safe counter
type Counter struct {
	value int64
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Get returns the current counter value
func (c *Counter) Get() int64 {
	return atomic.LoadInt64(&c.value)
}

// Timer measures durations of one operation. All methods are safe for
// concurrent use.
type Timer struct {
	count     int64
	errors    int64
	totalTime int64
	minTime   int64
	maxTime   int64
	lastTime  int64
}

// NewTimer creates a timer with no measurements
func NewTimer() *Timer {
	return &Timer{minTime: unsetMin}
}

// Record records one measurement. Failed operations are timed too.
func (t *Timer) Record(d time.Duration, failed bool) {
	nanos := d.Nanoseconds()

	atomic.AddInt64(&t.count, 1)
	atomic.AddInt64(&t.totalTime, nanos)
	atomic.StoreInt64(&t.lastTime, nanos)
	if failed {
		atomic.AddInt64(&t.errors, 1)
	}

	for {
		current := atomic.LoadInt64(&t.minTime)
		if nanos >= current || atomic.CompareAndSwapInt64(&t.minTime, current, nanos) {
			break
		}
	}
	for {
		current := atomic.LoadInt64(&t.maxTime)
		if nanos <= current || atomic.CompareAndSwapInt64(&t.maxTime, current, nanos) {
			break
		}
	}
}

// Metrics returns the current values of the timer
func (t *Timer) Metrics(op Operation) OperationMetrics {
	m := OperationMetrics{
		Operation: op,
		Count:     atomic.LoadInt64(&t.count),
		Errors:    atomic.LoadInt64(&t.errors),
		Max:       time.Duration(atomic.LoadInt64(&t.maxTime)),
		Last:      time.Duration(atomic.LoadInt64(&t.lastTime)),
	}
	if lo := atomic.LoadInt64(&t.minTime); lo != unsetMin {
		m.Min = time.Duration(lo)
	}
	if m.Count > 0 {
		m.Avg = time.Duration(atomic.LoadInt64(&t.totalTime) / m.Count)
	}
	return m
}

// OperationMetrics holds the timings of one operation
type OperationMetrics struct {
	Operation Operation     `json:"operation"`
	Count     int64         `json:"count"`
	Errors    int64         `json:"errors"`
	Min       time.Duration `json:"min_ns"`
	Max       time.Duration `json:"max_ns"`
	Avg       time.Duration `json:"avg_ns"`
	Last      time.Duration `json:"last_ns"`
}

// MemoryMetrics holds memory figures from the Go runtime
type MemoryMetrics struct {
	HeapAlloc  uint64 `json:"heap_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

func collectMemory() MemoryMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryMetrics{
		HeapAlloc:  m.HeapAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}
