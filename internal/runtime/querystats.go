package runtime

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/drblury/geobridge/internal/runtime/gateway"
)

const (
	latencySampleSize = 256
	throughputHorizon = time.Minute
)

// LatencyMetrics summarises recent pipeline durations of dispatched queries.
type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

// ThroughputMetrics counts answered queries over the trailing window.
type ThroughputMetrics struct {
	CurrentRPS       float64 `json:"current_rps"`
	WindowSeconds    float64 `json:"window_seconds"`
	MessagesInWindow int     `json:"messages_in_window"`
}

// FailureBreakdown counts failed queries by cause.
type FailureBreakdown struct {
	Status      uint64 `json:"status"`
	Timeout     uint64 `json:"timeout"`
	CircuitOpen uint64 `json:"circuit_open"`
	Malformed   uint64 `json:"malformed"`
	Publish     uint64 `json:"publish"`
	Panic       uint64 `json:"panic"`
	Other       uint64 `json:"other"`
	LastError   string `json:"last_error,omitempty"`
}

// DependencyHealth is the last known state of the lookup service.
type DependencyHealth struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	Details     string    `json:"details,omitempty"`
}

const (
	DependencyStatusUnknown  = "unknown"
	DependencyStatusHealthy  = "healthy"
	DependencyStatusDegraded = "degraded"
)

// QueryStatsSnapshot is the /status view of QueryStats.
type QueryStatsSnapshot struct {
	Received   uint64            `json:"received"`
	Dropped    map[string]uint64 `json:"dropped"`
	Answered   uint64            `json:"answered"`
	Failed     uint64            `json:"failed"`
	LastAnswer time.Time         `json:"last_answer_at"`
	Latency    LatencyMetrics    `json:"latency"`
	Throughput ThroughputMetrics `json:"throughput"`
	Failures   FailureBreakdown  `json:"failures"`
	Lookup     DependencyHealth  `json:"lookup"`
}

// QueryStats aggregates pipeline events in memory. It is fed by Hooks.
type QueryStats struct {
	mu sync.Mutex

	received   uint64
	dropped    map[string]uint64
	answered   uint64
	failed     uint64
	lastAnswer time.Time
	failures   FailureBreakdown
	lookup     DependencyHealth

	latency    *latencyWindow
	throughput *throughputWindow
	now        func() time.Time
}

func NewQueryStats() *QueryStats {
	return &QueryStats{
		dropped:    make(map[string]uint64),
		lookup:     DependencyHealth{Name: "lookup", Status: DependencyStatusUnknown},
		latency:    newLatencyWindow(latencySampleSize),
		throughput: newThroughputWindow(throughputHorizon),
		now:        time.Now,
	}
}

// Hooks returns pipeline hooks that feed the stats.
func (q *QueryStats) Hooks() PipelineHooks {
	return PipelineHooks{
		OnReceived: func(PipelineEvent) {
			q.mu.Lock()
			q.received++
			q.mu.Unlock()
		},
		OnDropped: func(ev PipelineEvent, _ error) {
			q.mu.Lock()
			q.dropped[ev.Outcome.String()]++
			q.mu.Unlock()
		},
		OnAnswered: func(ev PipelineEvent) {
			now := q.now()
			q.mu.Lock()
			defer q.mu.Unlock()
			q.answered++
			q.lastAnswer = now
			q.latency.Add(ev.Duration)
			q.throughput.Add(now)
			q.lookup = DependencyHealth{Name: "lookup", Status: DependencyStatusHealthy, LastChecked: now}
		},
		OnFailed: func(ev PipelineEvent, stage Stage, err error) {
			now := q.now()
			q.mu.Lock()
			defer q.mu.Unlock()
			q.failed++
			q.latency.Add(ev.Duration)
			q.failures.record(stage, err)
			if stage == StageLookup {
				q.lookup = DependencyHealth{Name: "lookup", Status: DependencyStatusDegraded, LastChecked: now, Details: errString(err)}
			}
		},
	}
}

// Snapshot copies the current stats.
func (q *QueryStats) Snapshot() QueryStatsSnapshot {
	now := q.now()
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := make(map[string]uint64, len(q.dropped))
	for k, v := range q.dropped {
		dropped[k] = v
	}
	return QueryStatsSnapshot{
		Received:   q.received,
		Dropped:    dropped,
		Answered:   q.answered,
		Failed:     q.failed,
		LastAnswer: q.lastAnswer,
		Latency:    q.latency.Snapshot(),
		Throughput: q.throughput.Snapshot(now),
		Failures:   q.failures,
		Lookup:     q.lookup,
	}
}

func (f *FailureBreakdown) record(stage Stage, err error) {
	switch {
	case stage == StagePanic:
		f.Panic++
	case stage == StagePublish:
		f.Publish++
	case errors.Is(err, gateway.ErrCircuitOpen):
		f.CircuitOpen++
	case errors.Is(err, context.DeadlineExceeded):
		f.Timeout++
	case errors.Is(err, gateway.ErrStatus):
		f.Status++
	case errors.Is(err, gateway.ErrMalformedPayload):
		f.Malformed++
	default:
		f.Other++
	}
	f.LastError = errString(err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	m := LatencyMetrics{LastNs: lw.last}
	if lw.filled == 0 {
		return m
	}
	samples := make([]int64, lw.filled)
	for i := 0; i < lw.filled; i++ {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var sum int64
	for _, v := range samples {
		sum += v
	}
	m.SampleSize = lw.filled
	m.AverageNs = sum / int64(len(samples))
	m.P50Ns = percentile(samples, 0.50)
	m.P95Ns = percentile(samples, 0.95)
	m.P99Ns = percentile(samples, 0.99)
	return m
}

// percentile interpolates linearly between the closest ranks of sorted samples.
func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}

type throughputWindow struct {
	horizon time.Duration
	samples []time.Time
}

func newThroughputWindow(horizon time.Duration) *throughputWindow {
	return &throughputWindow{horizon: horizon, samples: make([]time.Time, 0, 64)}
}

func (tw *throughputWindow) Add(now time.Time) {
	tw.samples = append(tw.samples, now)
	tw.cleanup(now)
}

func (tw *throughputWindow) cleanup(now time.Time) {
	cutoff := now.Add(-tw.horizon)
	idx := 0
	for idx < len(tw.samples) && tw.samples[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		n := copy(tw.samples, tw.samples[idx:])
		tw.samples = tw.samples[:n]
	}
}

// Snapshot reports the rate over the fixed horizon, so a single old sample
// does not read as a burst.
func (tw *throughputWindow) Snapshot(now time.Time) ThroughputMetrics {
	tw.cleanup(now)
	count := len(tw.samples)
	return ThroughputMetrics{
		CurrentRPS:       float64(count) / tw.horizon.Seconds(),
		WindowSeconds:    tw.horizon.Seconds(),
		MessagesInWindow: count,
	}
}
