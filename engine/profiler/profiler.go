package profiler

import (
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/common"
)

// Phase names recorded by the loader and the engine.
const (
	PhaseFetch    = "fetch"
	PhaseParse    = "parse"
	PhaseMarkRefs = "markRefs"
	PhaseResolve  = "resolve"
	PhaseExport   = "export"
)

// Profiler accumulates wall-clock durations per named phase and reports them with memory statistics.
// It is safe for concurrent use.
type Profiler struct {
	mu *sync.Mutex

	phases   map[string]time.Duration
	counts   map[string]int
	memStats runtime.MemStats

	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with no recorded phases.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		mu:     &sync.Mutex{},
		phases: make(map[string]time.Duration),
		counts: make(map[string]int),
	}
}

// Start begins timing a phase. Calling the returned function records the elapsed time.
// A nil profiler returns a no-op, so callers need not check whether profiling is enabled.
//
// Parameters:
//   - phase: the phase name
//
// Returns:
//   - func(): stops the timer
func (p *Profiler) Start(phase string) func() {
	if p == nil {
		return func() {}
	}
	begin := time.Now()
	return func() {
		p.Record(phase, time.Since(begin))
	}
}

// Record adds d to the total of phase.
//
// Parameters:
//   - phase: the phase name
//   - d: the elapsed time
func (p *Profiler) Record(phase string, d time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases[phase] += d
	p.counts[phase]++
}

// Phases returns a copy of the accumulated phase totals.
func (p *Profiler) Phases() map[string]time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]time.Duration, len(p.phases))
	for k, v := range p.phases {
		out[k] = v
	}
	return out
}

// Reset clears every recorded phase.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = make(map[string]time.Duration)
	p.counts = make(map[string]int)
}

// Summary logs the phase totals, heap usage and the bytes allocated since the previous summary at debug level.
//
// Returns:
//   - string: the logged line
func (p *Profiler) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.phases))
	for name := range p.phases {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(p.phases[name].String())
		if n := p.counts[name]; n > 1 {
			sb.WriteString(" x")
			sb.WriteString(strconv.Itoa(n))
		}
	}

	// Alloc: live heap. TotalAlloc grows forever and tracks churn.
	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	churnMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024
	p.lastTotalAlloc = p.memStats.TotalAlloc

	line := sb.String()
	common.LogDebug("[Profiler] %s | Heap: %.2f MB | Allocated: %.2f MB | GC: %d", line, allocMB, churnMB, p.memStats.NumGC)
	return line
}
