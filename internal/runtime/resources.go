package runtime

import (
	"runtime"
	"runtime/metrics"
	"sync"
	"time"
)

// ResourceUsage is a coarse view of the process for /status.
type ResourceUsage struct {
	CPUPercent  float64 `json:"cpu_percent"`
	HeapBytes   uint64  `json:"heap_bytes"`
	Goroutines  uint64  `json:"goroutines"`
	GCCycles    uint64  `json:"gc_cycles"`
	SampledOver string  `json:"sampled_over,omitempty"`
}

const (
	metricCPU        = "/cpu/classes/total:cpu-seconds"
	metricHeap       = "/memory/classes/heap/objects:bytes"
	metricGoroutines = "/sched/goroutines:goroutines"
	metricGCCycles   = "/gc/cycles/total:gc-cycles"
)

// resourceTracker reads runtime/metrics, which unlike ReadMemStats does not
// stop the world. CPU percent covers the interval since the previous
// snapshot and is zero on the first one.
type resourceTracker struct {
	mu       sync.Mutex
	samples  []metrics.Sample
	lastCPU  float64
	lastRead time.Time
	numCPU   float64
	now      func() time.Time
}

func newResourceTracker() *resourceTracker {
	return &resourceTracker{
		samples: []metrics.Sample{
			{Name: metricCPU},
			{Name: metricHeap},
			{Name: metricGoroutines},
			{Name: metricGCCycles},
		},
		numCPU: float64(runtime.GOMAXPROCS(0)),
		now:    time.Now,
	}
}

func (r *resourceTracker) Snapshot() ResourceUsage {
	if r == nil {
		return ResourceUsage{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	metrics.Read(r.samples)
	now := r.now()

	var usage ResourceUsage
	cpu, haveCPU := float64Value(r.samples[0])
	usage.HeapBytes = uint64Value(r.samples[1])
	usage.Goroutines = uint64Value(r.samples[2])
	usage.GCCycles = uint64Value(r.samples[3])

	if haveCPU && !r.lastRead.IsZero() {
		wall := now.Sub(r.lastRead)
		if wall > 0 && r.numCPU > 0 {
			usage.CPUPercent = (cpu - r.lastCPU) / wall.Seconds() / r.numCPU * 100
			usage.SampledOver = wall.Round(time.Millisecond).String()
		}
	}
	if haveCPU {
		r.lastCPU = cpu
	}
	r.lastRead = now
	return usage
}

func float64Value(s metrics.Sample) (float64, bool) {
	if s.Value.Kind() != metrics.KindFloat64 {
		return 0, false
	}
	return s.Value.Float64(), true
}

func uint64Value(s metrics.Sample) uint64 {
	if s.Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return s.Value.Uint64()
}
