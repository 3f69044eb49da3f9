// Package shardedexec implements two-level concurrency over a block list:
// N outer shards, each running up to N concurrent per-block tasks, plus a
// shared atomic counter used as changed_blocks_count at completion. The
// pattern generalizes a semaphore-bounded worker pool to two nested pools
// instead of one.
package shardedexec

import (
	"context"
	"sync"
	"sync/atomic"
)

// Counter is an atomic counter, one per destination snapshot, incremented
// exactly once per successful non-elided put and read only after all shards
// complete.
type Counter struct {
	v atomic.Uint64
}

// Inc records one successful non-elided write.
func (c *Counter) Inc() { c.v.Add(1) }

// Load returns the final count (used as changed_blocks_count).
func (c *Counter) Load() uint64 { return c.v.Load() }

// Shard splits items into up to n contiguous, near-equal, order-preserving
// shards. If n <= 0 or n > len(items), it
// is clamped so every shard is non-empty.
func Shard[T any](items []T, n int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if n <= 0 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}

	base := len(items) / n
	rem := len(items) % n

	shards := make([][]T, 0, n)
	offset := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		shards = append(shards, items[offset:offset+size])
		offset += size
	}
	return shards
}

// Task processes a single item within a shard.
type Task[T any] func(ctx context.Context, item T) error

// WorkerFactory builds the per-shard Task, constructing any per-shard
// resources (Block API client, destination-region client) exactly once.
type WorkerFactory[T any] func(shardIdx int) (Task[T], error)

// Run drives the two-level pool: outerDegree shards, each running up to
// innerDegree concurrent tasks. There are no ordering guarantees across
// blocks; a fatal error from any task stops new work from
// being enqueued, drains in-flight tasks, and Run returns the first fatal
// error observed.
func Run[T any](ctx context.Context, items []T, outerDegree, innerDegree int, factory WorkerFactory[T]) error {
	shards := Shard(items, outerDegree)
	if len(shards) == 0 {
		return nil
	}
	if innerDegree <= 0 {
		innerDegree = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		firstErrOnce sync.Once
		firstErr     error
		outerWG      sync.WaitGroup
	)

	recordErr := func(err error) {
		firstErrOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for shardIdx, shard := range shards {
		shardIdx, shard := shardIdx, shard
		outerWG.Add(1)
		go func() {
			defer outerWG.Done()

			if ctx.Err() != nil {
				return
			}
			task, err := factory(shardIdx)
			if err != nil {
				recordErr(err)
				return
			}

			sem := make(chan struct{}, innerDegree)
			var innerWG sync.WaitGroup
			for _, item := range shard {
				if ctx.Err() != nil {
					break
				}
				item := item
				sem <- struct{}{}
				innerWG.Add(1)
				go func() {
					defer innerWG.Done()
					defer func() { <-sem }()

					if ctx.Err() != nil {
						return
					}
					if err := task(ctx, item); err != nil {
						recordErr(err)
					}
				}()
			}
			innerWG.Wait()
		}()
	}

	outerWG.Wait()
	return firstErr
}
