package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerBoundsConcurrency(t *testing.T) {
	const limit = 3
	var running, peak atomic.Int64

	sched := NewScheduler(limit)
	counts := sched.Run(context.Background(), 20, func(ctx context.Context, i int) error {
		now := running.Add(1)
		defer running.Add(-1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	require.Equal(t, 20, counts.Succeeded)
	require.Equal(t, 0, counts.Failed)
	require.LessOrEqual(t, peak.Load(), int64(limit))
}

func TestSchedulerCountsFailuresWithoutAborting(t *testing.T) {
	var ran atomic.Int64
	sched := NewScheduler(2)
	counts := sched.Run(context.Background(), 10, func(ctx context.Context, i int) error {
		ran.Add(1)
		if i%2 == 0 {
			return errors.New("boom")
		}
		return nil
	})

	require.Equal(t, int64(10), ran.Load(), "one failed task must not cancel the rest")
	require.Equal(t, 5, counts.Succeeded)
	require.Equal(t, 5, counts.Failed)
}

func TestSchedulerDefaultLimit(t *testing.T) {
	require.Equal(t, DefaultConcurrency, NewScheduler(0).limit)
	require.Equal(t, DefaultConcurrency, NewScheduler(-1).limit)
	require.Equal(t, 1, NewScheduler(1).limit)
}
