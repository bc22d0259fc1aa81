package metrics

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// DefaultRelativeAccuracy gives 1% accurate quantiles
const DefaultRelativeAccuracy = 0.01

// LatencyTracker tracks latency quantiles per operation using DDSketch.
type LatencyTracker struct {
	mu               sync.Mutex
	sketches         map[string]*ddsketch.DDSketch
	relativeAccuracy float64
}

// NewLatencyTracker creates a new latency tracker.
// relativeAccuracy determines the accuracy of quantile estimates (e.g., 0.01 = 1% accuracy)
func NewLatencyTracker(relativeAccuracy float64) *LatencyTracker {
	return &LatencyTracker{
		sketches:         make(map[string]*ddsketch.DDSketch),
		relativeAccuracy: relativeAccuracy,
	}
}

// Record records a duration for the given operation
func (lt *LatencyTracker) Record(operation string, duration time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, exists := lt.sketches[operation]
	if !exists {
		var err error
		sketch, err = ddsketch.LogUnboundedDenseDDSketch(lt.relativeAccuracy)
		if err != nil {
			sketch, _ = ddsketch.NewDefaultDDSketch(lt.relativeAccuracy)
		}
		lt.sketches[operation] = sketch
	}

	// milliseconds
	sketch.Add(float64(duration.Microseconds()) / 1000.0)
}

// Stats holds latency statistics for one operation, in milliseconds
type Stats struct {
	Operation string  `json:"operation"`
	Count     int64   `json:"count"`
	Min       float64 `json:"min"`
	P50       float64 `json:"p50"`
	P90       float64 `json:"p90"`
	P99       float64 `json:"p99"`
	Max       float64 `json:"max"`
}

// GetStats returns statistics for the given operation
func (lt *LatencyTracker) GetStats(operation string) (Stats, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, exists := lt.sketches[operation]
	if !exists {
		return Stats{}, fmt.Errorf("no data for operation: %s", operation)
	}
	return statsOf(operation, sketch), nil
}

// All returns statistics for every recorded operation, sorted by name
func (lt *LatencyTracker) All() []Stats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	out := make([]Stats, 0, len(lt.sketches))
	for op, sketch := range lt.sketches {
		out = append(out, statsOf(op, sketch))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

func statsOf(operation string, sketch *ddsketch.DDSketch) Stats {
	count := sketch.GetCount()
	if count == 0 {
		return Stats{Operation: operation}
	}

	min, _ := sketch.GetMinValue()
	p50, _ := sketch.GetValueAtQuantile(0.50)
	p90, _ := sketch.GetValueAtQuantile(0.90)
	p99, _ := sketch.GetValueAtQuantile(0.99)
	max, _ := sketch.GetMaxValue()

	return Stats{
		Operation: operation,
		Count:     int64(count),
		Min:       min,
		P50:       p50,
		P90:       p90,
		P99:       p99,
		Max:       max,
	}
}

// Registry collects Data Client metrics: request latency and cache outcomes.
type Registry struct {
	latency *LatencyTracker

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	deduped     atomic.Int64
	retries     atomic.Int64
	failures    atomic.Int64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{latency: NewLatencyTracker(DefaultRelativeAccuracy)}
}

// ObserveRequest records the latency of one network round trip
func (r *Registry) ObserveRequest(operation string, d time.Duration, err error) {
	r.latency.Record(operation, d)
	if err != nil {
		r.failures.Add(1)
	}
}

func (r *Registry) CacheHit()  { r.cacheHits.Add(1) }
func (r *Registry) CacheMiss() { r.cacheMisses.Add(1) }
func (r *Registry) Deduped()   { r.deduped.Add(1) }
func (r *Registry) Retried()   { r.retries.Add(1) }

// Snapshot is the JSON view served on /metrics
type Snapshot struct {
	CacheHits   int64   `json:"cacheHits"`
	CacheMisses int64   `json:"cacheMisses"`
	Deduped     int64   `json:"deduped"`
	Retries     int64   `json:"retries"`
	Failures    int64   `json:"failures"`
	Latency     []Stats `json:"latency"`
}

// Snapshot returns current counter values and latency statistics
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		CacheHits:   r.cacheHits.Load(),
		CacheMisses: r.cacheMisses.Load(),
		Deduped:     r.deduped.Load(),
		Retries:     r.retries.Load(),
		Failures:    r.failures.Load(),
		Latency:     r.latency.All(),
	}
}
