// Package benchmark measures pipeline throughput, per-stage latency and
// allocation on a set of images.
package benchmark

import (
	"context"
	"fmt"
	"image"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
)

// Timer provides simple timing utilities for benchmarking.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer with the given name.
func NewTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  // Currently allocated bytes
	TotalAllocBytes uint64  // Total allocated bytes (cumulative)
	SysBytes        uint64  // Total bytes from system
	NumGC           uint32  // Number of GC runs
	GCCPUFraction   float64 // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the outcome of one benchmark run.
type Result struct {
	Name         string
	Duration     time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Iterations   int
	Error        error
}

// Average returns the mean duration of one iteration.
func (r Result) Average() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// AllocatedKB is the cumulative allocation during the run.
func (r Result) AllocatedKB() uint64 {
	return (r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes) / 1024
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %d KB",
		r.Name, r.Iterations, r.Average(), r.Duration, r.AllocatedKB())
}

// Benchmark is a named workload.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return runBenchmark(b, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs all benchmarks in the suite in the order they were added.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.results
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func runBenchmark(b Benchmark, iterations int) Result {
	// Force garbage collection before measuring
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := NewTimer(b.Name)
	var err error
	done := 0
	for range iterations {
		if err = b.Func(); err != nil {
			break
		}
		done++
	}
	duration := timer.Stop()

	return Result{
		Name:         b.Name,
		Duration:     duration,
		MemoryBefore: memBefore,
		MemoryAfter:  GetMemoryStats(),
		Iterations:   done,
		Error:        err,
	}
}

// Image is one input of a pipeline benchmark.
type Image struct {
	Name  string
	Image image.Image
}

// StageStats aggregates the recorded duration of one stage.
type StageStats struct {
	Stage   string
	Runs    int
	Total   time.Duration
	Fastest time.Duration
	Slowest time.Duration
}

// Average returns the mean stage duration.
func (s StageStats) Average() time.Duration {
	if s.Runs == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Runs)
}

// PipelineReport is the outcome of a pipeline benchmark.
type PipelineReport struct {
	Results []Result
	Stages  []StageStats
}

// PipelineBenchmark times pipeline.Process on a fixed set of images.
type PipelineBenchmark struct {
	pipeline *pipeline.Pipeline
	images   []Image
	warmup   bool
}

// NewPipelineBenchmark creates a benchmark for pl. A warmup run of every
// image precedes the measured iterations.
func NewPipelineBenchmark(pl *pipeline.Pipeline) *PipelineBenchmark {
	return &PipelineBenchmark{pipeline: pl, warmup: true}
}

// AddImage adds an input image.
func (b *PipelineBenchmark) AddImage(name string, img image.Image) {
	b.images = append(b.images, Image{Name: name, Image: img})
}

// WithoutWarmup disables the warmup run.
func (b *PipelineBenchmark) WithoutWarmup() *PipelineBenchmark {
	b.warmup = false
	return b
}

// Run processes every image iterations times. Geometric failures count as
// completed runs: a missing barcode is a valid benchmark outcome.
func (b *PipelineBenchmark) Run(ctx context.Context, iterations int) PipelineReport {
	stages := newStageCollector()
	suite := NewSuite()
	for _, in := range b.images {
		if b.warmup {
			_, _ = b.pipeline.Process(ctx, in.Image)
		}
		suite.Add(in.Name, func() error {
			res, err := b.pipeline.Process(ctx, in.Image)
			stages.add(res)
			if err != nil && !pipeline.IsGeometryError(err) {
				return err
			}
			return nil
		})
	}
	return PipelineReport{Results: suite.RunAll(iterations), Stages: stages.stats()}
}

type stageCollector struct {
	order []string
	byKey map[string]*StageStats
}

func newStageCollector() *stageCollector {
	return &stageCollector{byKey: make(map[string]*StageStats)}
}

func (c *stageCollector) add(res *pipeline.Result) {
	if res == nil {
		return
	}
	for _, t := range res.Timings {
		d := time.Duration(t.DurationNs)
		st, ok := c.byKey[t.Stage]
		if !ok {
			st = &StageStats{Stage: t.Stage, Fastest: d, Slowest: d}
			c.byKey[t.Stage] = st
			c.order = append(c.order, t.Stage)
		}
		st.Runs++
		st.Total += d
		st.Fastest = min(st.Fastest, d)
		st.Slowest = max(st.Slowest, d)
	}
}

func (c *stageCollector) stats() []StageStats {
	out := make([]StageStats, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, *c.byKey[name])
	}
	return out
}

// WriteReport prints the results, the stage breakdown and system information.
func WriteReport(w io.Writer, report PipelineReport) error {
	var sb strings.Builder
	sb.WriteString("Benchmark Results:\n")
	sb.WriteString("==================\n")
	for _, r := range report.Results {
		fmt.Fprintf(&sb, "%s\n", r.String())
	}

	if len(report.Stages) > 0 {
		sb.WriteString("\nStages:\n")
		sb.WriteString(strings.Repeat("-", 50) + "\n")
		for _, s := range report.Stages {
			fmt.Fprintf(&sb, "  %-12s runs: %4d  avg: %-12v min: %-12v max: %v\n",
				s.Stage, s.Runs, s.Average(), s.Fastest, s.Slowest)
		}
	}

	fmt.Fprintf(&sb, "\nSystem: %s/%s, %d CPUs, %s\n",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())
	_, err := io.WriteString(w, sb.String())
	return err
}
