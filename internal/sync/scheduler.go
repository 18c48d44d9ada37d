package sync

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the fan-out ceiling for per-feed fetch tasks.
// It is the one explicit backpressure control in the pipeline.
const DefaultConcurrency = 8

// Counts reports how a fan-out went. A sync always completes with
// counts rather than aborting on the first failed feed.
type Counts struct {
	Succeeded int
	Failed    int
}

// Scheduler runs per-feed tasks with bounded concurrency: a completing
// task immediately admits the next queued one.
type Scheduler struct {
	limit int
}

func NewScheduler(limit int) *Scheduler {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Scheduler{limit: limit}
}

// Run executes task for every index in [0, n) and waits for all of
// them, successes and failures alike. Task errors are counted, never
// propagated, so one feed cannot abort its siblings.
func (s *Scheduler) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) Counts {
	var failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := task(ctx, i); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	f := int(failed.Load())
	return Counts{Succeeded: n - f, Failed: f}
}
