package pipeline

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for batch processing.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel workers (0 = runtime.NumCPU())
	FailFast         bool             // Stop scheduling new work after the first failure
	ProgressCallback ProgressCallback // Optional progress reporting
}

// DefaultParallelConfig returns defaults for batch processing: one worker per
// CPU, continue on error.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

// job is one unit of batch work.
type job struct {
	index  int
	source string
	run    func(ctx context.Context) (*Result, error)
}

type jobResult struct {
	index  int
	result *Result
	err    error
}

// BatchStats summarizes a batch run.
type BatchStats struct {
	Total            int           `json:"total" yaml:"total"`
	Succeeded        int           `json:"succeeded" yaml:"succeeded"`
	Failed           int           `json:"failed" yaml:"failed"`
	Symbols          int           `json:"symbols" yaml:"symbols"`
	Workers          int           `json:"workers" yaml:"workers"`
	Duration         time.Duration `json:"duration_ns" yaml:"duration_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec" yaml:"throughput_per_sec"`
}

// ProcessFiles runs the pipeline over paths with a bounded worker pool.
// Results keep the input order and are never nil; per-file failures are
// recorded in Result.Error. The returned error is non-nil only when ctx is
// canceled or FailFast stopped the batch.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string) ([]*Result, BatchStats, error) {
	jobs := make([]job, len(paths))
	for i, path := range paths {
		jobs[i] = job{index: i, source: path, run: func(ctx context.Context) (*Result, error) {
			return p.ProcessFile(ctx, path)
		}}
	}
	return p.runBatch(ctx, jobs)
}

// ProcessImages runs the pipeline over in-memory images with the same
// semantics as ProcessFiles.
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image) ([]*Result, BatchStats, error) {
	jobs := make([]job, len(images))
	for i, img := range images {
		jobs[i] = job{index: i, source: fmt.Sprintf("image[%d]", i), run: func(ctx context.Context) (*Result, error) {
			return p.Process(ctx, img)
		}}
	}
	return p.runBatch(ctx, jobs)
}

func (p *Pipeline) runBatch(ctx context.Context, jobs []job) ([]*Result, BatchStats, error) {
	cfg := p.cfg.Parallel
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = max(min(workers, len(jobs)), 1)
	stats := BatchStats{Total: len(jobs), Workers: workers}
	start := time.Now()

	progress := cfg.ProgressCallback
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(jobs))
	defer progress.OnComplete()

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan job)
	out := make(chan jobResult, len(jobs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				res, err := j.run(ctx)
				if res == nil {
					res = &Result{}
				}
				if res.Source == "" {
					res.Source = j.source
				}
				out <- jobResult{index: j.index, result: res, err: err}
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, j := range jobs {
			select {
			case queue <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]*Result, len(jobs))
	var stopErr error
	done := 0
	for r := range out {
		results[r.index] = r.result
		done++
		if r.err != nil {
			stats.Failed++
			progress.OnError(r.index, r.result.Source, r.err)
			if cfg.FailFast && stopErr == nil {
				stopErr = fmt.Errorf("%s: %w", r.result.Source, r.err)
				cancel()
			}
		} else {
			stats.Succeeded++
			stats.Symbols += len(r.result.Symbols)
		}
		progress.OnProgress(done, len(jobs))
	}

	for i, r := range results {
		if r == nil {
			results[i] = &Result{Source: jobs[i].source, Error: context.Canceled.Error()}
		}
	}

	stats.Duration = time.Since(start)
	if stats.Duration > 0 {
		stats.ThroughputPerSec = float64(done) / stats.Duration.Seconds()
	}

	if stopErr != nil {
		return results, stats, stopErr
	}
	return results, stats, parent.Err()
}
