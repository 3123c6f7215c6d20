package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	rejectionCount map[string]int64
	latencyTotal   time.Duration
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests      map[string]int64 `json:"requests"`
	Rejections    map[string]int64 `json:"rejections"`
	MeanLatencyMS float64          `json:"mean_latency_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		rejectionCount: make(map[string]int64),
	}
}

// RecordRequest counts a finished request by method and status.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal += duration
}

// RecordRejection counts a pipeline rejection by stage and code.
func (m *Metrics) RecordRejection(stage, code string) {
	if m == nil {
		return
	}
	key := stage + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectionCount[key]++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Requests: map[string]int64{}, Rejections: map[string]int64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Requests:   make(map[string]int64, len(m.requestCount)),
		Rejections: make(map[string]int64, len(m.rejectionCount)),
	}
	var total int64
	for k, v := range m.requestCount {
		s.Requests[k] = v
		total += v
	}
	for k, v := range m.rejectionCount {
		s.Rejections[k] = v
	}
	if total > 0 {
		s.MeanLatencyMS = float64(m.latencyTotal.Milliseconds()) / float64(total)
	}
	return s
}
