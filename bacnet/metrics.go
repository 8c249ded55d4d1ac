package bacnet

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a thread-safe counter
type Counter struct {
	value atomic.Int64
}

// Add adds a delta to the counter
func (c *Counter) Add(delta int64) {
	c.value.Add(delta)
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	c.Add(1)
}

// Value returns the current counter value
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// Reset resets the counter to 0
func (c *Counter) Reset() {
	c.value.Store(0)
}

// Gauge is a thread-safe gauge that can go up and down
type Gauge struct {
	value atomic.Int64
}

// Set sets the gauge value
func (g *Gauge) Set(value int64) {
	g.value.Store(value)
}

// Inc increments the gauge by 1
func (g *Gauge) Inc() {
	g.value.Add(1)
}

// Dec decrements the gauge by 1
func (g *Gauge) Dec() {
	g.value.Add(-1)
}

// Value returns the current gauge value
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

// latencyBounds are the upper bounds of the histogram buckets; the last
// bucket collects everything above the final bound.
var latencyBounds = []time.Duration{
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// LatencyHistogram tracks latency measurements
type LatencyHistogram struct {
	mu      sync.Mutex
	count   int64
	sum     time.Duration
	min     time.Duration
	max     time.Duration
	buckets []int64
}

// NewLatencyHistogram creates a new latency histogram
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		min:     -1,
		buckets: make([]int64, len(latencyBounds)+1),
	}
}

// Record records a latency measurement
func (h *LatencyHistogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += d
	if h.min < 0 || d < h.min {
		h.min = d
	}
	if d > h.max {
		h.max = d
	}

	i := 0
	for i < len(latencyBounds) && d >= latencyBounds[i] {
		i++
	}
	h.buckets[i]++
}

// Stats returns histogram statistics
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := LatencyStats{
		Count:   h.count,
		Buckets: append([]int64(nil), h.buckets...),
	}
	if h.count > 0 {
		stats.Min = h.min
		stats.Max = h.max
		stats.Avg = h.sum / time.Duration(h.count)
	}
	return stats
}

// Reset resets the histogram
func (h *LatencyHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count = 0
	h.sum = 0
	h.min = -1
	h.max = 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// LatencyStats contains latency statistics
type LatencyStats struct {
	Count   int64
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Buckets []int64
}

// Metrics holds client metrics
type Metrics struct {
	ConnectAttempts  Counter
	ConnectSuccesses Counter
	ConnectFailures  Counter
	Disconnects      Counter

	RequestsSent      Counter
	RequestsSucceeded Counter
	RequestsFailed    Counter
	RequestsTimedOut  Counter

	ResponsesReceived Counter
	ErrorsReceived    Counter
	RejectsReceived   Counter
	AbortsReceived    Counter

	WhoIsSent         Counter
	IAmReceived       Counter
	DevicesDiscovered Counter

	RequestLatency *LatencyHistogram

	BytesSent     Counter
	BytesReceived Counter

	ActiveRequests Gauge

	startTime    time.Time
	lastActivity atomic.Int64
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		RequestLatency: NewLatencyHistogram(),
		startTime:      time.Now(),
	}
}

// RecordActivity records the last activity time
func (m *Metrics) RecordActivity() {
	m.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the last activity time
func (m *Metrics) LastActivity() time.Time {
	ns := m.lastActivity.Load()
	if ns == 0 {
		return m.startTime
	}
	return time.Unix(0, ns)
}

// Uptime returns the time since metrics started
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Uptime:            m.Uptime(),
		ConnectAttempts:   m.ConnectAttempts.Value(),
		ConnectSuccesses:  m.ConnectSuccesses.Value(),
		ConnectFailures:   m.ConnectFailures.Value(),
		Disconnects:       m.Disconnects.Value(),
		RequestsSent:      m.RequestsSent.Value(),
		RequestsSucceeded: m.RequestsSucceeded.Value(),
		RequestsFailed:    m.RequestsFailed.Value(),
		RequestsTimedOut:  m.RequestsTimedOut.Value(),
		ResponsesReceived: m.ResponsesReceived.Value(),
		ErrorsReceived:    m.ErrorsReceived.Value(),
		RejectsReceived:   m.RejectsReceived.Value(),
		AbortsReceived:    m.AbortsReceived.Value(),
		WhoIsSent:         m.WhoIsSent.Value(),
		IAmReceived:       m.IAmReceived.Value(),
		DevicesDiscovered: m.DevicesDiscovered.Value(),
		LatencyStats:      m.RequestLatency.Stats(),
		BytesSent:         m.BytesSent.Value(),
		BytesReceived:     m.BytesReceived.Value(),
		ActiveRequests:    m.ActiveRequests.Value(),
		LastActivity:      m.LastActivity(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of client metrics
type MetricsSnapshot struct {
	Uptime time.Duration

	ConnectAttempts  int64
	ConnectSuccesses int64
	ConnectFailures  int64
	Disconnects      int64

	RequestsSent      int64
	RequestsSucceeded int64
	RequestsFailed    int64
	RequestsTimedOut  int64

	ResponsesReceived int64
	ErrorsReceived    int64
	RejectsReceived   int64
	AbortsReceived    int64

	WhoIsSent         int64
	IAmReceived       int64
	DevicesDiscovered int64

	LatencyStats LatencyStats

	BytesSent     int64
	BytesReceived int64

	ActiveRequests int64

	LastActivity time.Time
}

// StackMetrics holds device stack metrics
type StackMetrics struct {
	PacketsReceived  Counter
	PacketsSent      Counter
	PacketsMalformed Counter
	BytesReceived    Counter
	BytesSent        Counter

	ReadRequests     Counter
	WriteRequests    Counter
	WhoIsReceived    Counter
	IAmSent          Counter
	AlarmAcks        Counter
	ErrorsSent       Counter
	RejectsSent      Counter
	AbortsSent       Counter
	ValueUpdates     Counter
	CallbackFailures Counter

	HandleLatency *LatencyHistogram

	startTime time.Time
}

// NewStackMetrics creates a new StackMetrics instance
func NewStackMetrics() *StackMetrics {
	return &StackMetrics{
		HandleLatency: NewLatencyHistogram(),
		startTime:     time.Now(),
	}
}

// Snapshot returns a snapshot of current stack metrics
func (m *StackMetrics) Snapshot() StackMetricsSnapshot {
	return StackMetricsSnapshot{
		Uptime:           time.Since(m.startTime),
		PacketsReceived:  m.PacketsReceived.Value(),
		PacketsSent:      m.PacketsSent.Value(),
		PacketsMalformed: m.PacketsMalformed.Value(),
		BytesReceived:    m.BytesReceived.Value(),
		BytesSent:        m.BytesSent.Value(),
		ReadRequests:     m.ReadRequests.Value(),
		WriteRequests:    m.WriteRequests.Value(),
		WhoIsReceived:    m.WhoIsReceived.Value(),
		IAmSent:          m.IAmSent.Value(),
		AlarmAcks:        m.AlarmAcks.Value(),
		ErrorsSent:       m.ErrorsSent.Value(),
		RejectsSent:      m.RejectsSent.Value(),
		AbortsSent:       m.AbortsSent.Value(),
		ValueUpdates:     m.ValueUpdates.Value(),
		CallbackFailures: m.CallbackFailures.Value(),
		HandleLatency:    m.HandleLatency.Stats(),
	}
}

// StackMetricsSnapshot is a point-in-time snapshot of stack metrics
type StackMetricsSnapshot struct {
	Uptime time.Duration

	PacketsReceived  int64
	PacketsSent      int64
	PacketsMalformed int64
	BytesReceived    int64
	BytesSent        int64

	ReadRequests     int64
	WriteRequests    int64
	WhoIsReceived    int64
	IAmSent          int64
	AlarmAcks        int64
	ErrorsSent       int64
	RejectsSent      int64
	AbortsSent       int64
	ValueUpdates     int64
	CallbackFailures int64

	HandleLatency LatencyStats
}
