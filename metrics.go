package signpanel

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a panel counter.
type MetricID uint16

const (
	MetricCodeSendSuccess MetricID = iota
	MetricCodeSendFailure
	// MetricCodeSendCooldown counts sends refused locally because the window is open.
	MetricCodeSendCooldown
	MetricCooldownStarted
	MetricCooldownResumed
	MetricCooldownExpired
	MetricCooldownPersistFailure
	MetricValidationFailure
	MetricRegisterSuccess
	MetricRegisterFailure
	MetricLoginSuccess
	MetricLoginFailure
	MetricResetSuccess
	MetricResetFailure
	MetricCalculateSuccess
	MetricCalculateFailure
	// MetricBackendLatency is the only histogram; its counter is the request count.
	MetricBackendLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricCodeSendSuccess:        "code_send_success",
	MetricCodeSendFailure:        "code_send_failure",
	MetricCodeSendCooldown:       "code_send_cooldown",
	MetricCooldownStarted:        "cooldown_started",
	MetricCooldownResumed:        "cooldown_resumed",
	MetricCooldownExpired:        "cooldown_expired",
	MetricCooldownPersistFailure: "cooldown_persist_failure",
	MetricValidationFailure:      "validation_failure",
	MetricRegisterSuccess:        "register_success",
	MetricRegisterFailure:        "register_failure",
	MetricLoginSuccess:           "login_success",
	MetricLoginFailure:           "login_failure",
	MetricResetSuccess:           "reset_success",
	MetricResetFailure:           "reset_failure",
	MetricCalculateSuccess:       "calculate_success",
	MetricCalculateFailure:       "calculate_failure",
	MetricBackendLatency:         "backend_latency",
}

func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the inclusive upper bounds of the latency buckets; the last
// bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a set of lock-free counters and one latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id. Safe on a nil or disabled Metrics.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricBackendLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricBackendLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricBackendLatency].buckets[i])
		}
		s.Histograms[MetricBackendLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
