package profiler

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StageStats accumulates the cost of one named import stage across calls.
type StageStats struct {
	// Stage is the stage name, e.g. "parse" or "skeletons".
	Stage string

	// Calls is the number of completed measurements.
	Calls int

	// Total is the summed wall-clock time.
	Total time.Duration

	// Max is the longest single measurement.
	Max time.Duration

	// AllocBytes is the summed heap allocation observed while the stage ran.
	// Concurrent stages inflate each other's numbers.
	AllocBytes uint64
}

// Profiler tracks wall-clock time and heap allocation per import stage.
// It is safe for concurrent use.
type Profiler struct {
	mu     sync.Mutex
	stages map[string]*StageStats
	logger *zap.SugaredLogger
	start  time.Time
}

// NewProfiler creates a Profiler that reports through the given logger.
//
// Parameters:
//   - logger: the sugared logger used by Report and slow-stage warnings (nil discards)
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(logger *zap.SugaredLogger) *Profiler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Profiler{
		stages: make(map[string]*StageStats),
		logger: logger,
		start:  time.Now(),
	}
}

// Track starts measuring a stage and returns the function that stops it.
// A nil Profiler returns a no-op so callers can defer unconditionally.
//
// Parameters:
//   - stage: the stage name
//
// Returns:
//   - func(): stops the measurement and records it
func (p *Profiler) Track(stage string) func() {
	if p == nil {
		return func() {}
	}

	var before runtime.MemStats
	runtime.ReadMemStats(&before)
	begin := time.Now()

	return func() {
		elapsed := time.Since(begin)
		var after runtime.MemStats
		runtime.ReadMemStats(&after)

		p.mu.Lock()
		defer p.mu.Unlock()
		s, ok := p.stages[stage]
		if !ok {
			s = &StageStats{Stage: stage}
			p.stages[stage] = s
		}
		s.Calls++
		s.Total += elapsed
		s.Max = max(s.Max, elapsed)
		s.AllocBytes += after.TotalAlloc - before.TotalAlloc
	}
}

// Stats returns a snapshot of every stage, sorted by total time descending.
//
// Returns:
//   - []StageStats: the stage statistics
func (p *Profiler) Stats() []StageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]StageStats, 0, len(p.stages))
	for _, s := range p.stages {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// Report logs one line per stage plus the process heap footprint.
func (p *Profiler) Report() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	for _, s := range p.Stats() {
		p.logger.Infow("[Profiler] stage",
			"stage", s.Stage,
			"calls", s.Calls,
			"total", s.Total,
			"max", s.Max,
			"allocMB", float64(s.AllocBytes)/1024/1024,
		)
	}
	p.logger.Infow("[Profiler] summary",
		"elapsed", time.Since(p.start),
		"heapMB", float64(mem.Alloc)/1024/1024,
		"sysMB", float64(mem.Sys)/1024/1024,
		"gc", mem.NumGC,
	)
}
