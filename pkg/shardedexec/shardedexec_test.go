package shardedexec

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardPreservesOrderAndCoversAllItems(t *testing.T) {
	items := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		items = append(items, i)
	}

	shards := Shard(items, 7)
	require.Len(t, shards, 7)

	var rebuilt []int
	for _, s := range shards {
		rebuilt = append(rebuilt, s...)
	}
	require.Equal(t, items, rebuilt)

	// near-equal sizes
	min, max := len(shards[0]), len(shards[0])
	for _, s := range shards {
		if len(s) < min {
			min = len(s)
		}
		if len(s) > max {
			max = len(s)
		}
	}
	require.LessOrEqual(t, max-min, 1)
}

func TestShardClampsDegreeToItemCount(t *testing.T) {
	shards := Shard([]int{1, 2}, 16)
	require.Len(t, shards, 2)
}

func TestRunProcessesEveryItemExactlyOnce(t *testing.T) {
	items := make([]int, 0, 500)
	for i := 0; i < 500; i++ {
		items = append(items, i)
	}

	var mu sync.Mutex
	seen := map[int]int{}

	err := Run(context.Background(), items, 8, 4, func(shardIdx int) (Task[int], error) {
		return func(ctx context.Context, item int) error {
			mu.Lock()
			seen[item]++
			mu.Unlock()
			return nil
		}, nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 500)
	for _, n := range seen {
		require.Equal(t, 1, n)
	}
}

func TestRunSurfacesFirstFatalAndStopsEnqueuing(t *testing.T) {
	items := make([]int, 0, 1000)
	for i := 0; i < 1000; i++ {
		items = append(items, i)
	}

	boom := errors.New("boom")
	var processed atomic64
	err := Run(context.Background(), items, 10, 10, func(shardIdx int) (Task[int], error) {
		return func(ctx context.Context, item int) error {
			processed.add(1)
			if item == 5 {
				return boom
			}
			return nil
		}, nil
	})
	require.ErrorIs(t, err, boom)
	// drains in-flight but shouldn't process every item given a fatal early on
	require.Less(t, int(processed.load()), 1000)
}

func TestCounterIncrementsAcrossGoroutines(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	require.Equal(t, uint64(1000), c.Load())
}

type atomic64 struct {
	mu sync.Mutex
	n  int64
}

func (a *atomic64) add(d int64) {
	a.mu.Lock()
	a.n += d
	a.mu.Unlock()
}

func (a *atomic64) load() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}
