package common

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// ParallelFor splits [0, n) into consecutive chunks of the given size and runs fn once per
// chunk on the pool, returning when every chunk has completed. Workers are reused across
// calls; a WaitGroup is the per-call barrier since pool.Wait() blocks until workers idle.
// A nil pool runs every chunk inline, in order.
//
// Parameters:
//   - pool: the worker pool, or nil to run inline
//   - n: the number of items
//   - chunk: the number of items per chunk; values below 1 are treated as 1
//   - fn: the chunk body, receiving the chunk index and the half-open item range [lo, hi)
func ParallelFor(pool worker.DynamicWorkerPool, n, chunk int, fn func(index, lo, hi int)) {
	if n <= 0 {
		return
	}
	chunk = max(chunk, 1)
	chunks := (n + chunk - 1) / chunk
	if pool == nil || chunks == 1 {
		for c := range chunks {
			fn(c, c*chunk, min((c+1)*chunk, n))
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(chunks)
	for c := range chunks {
		lo, hi := c*chunk, min((c+1)*chunk, n)
		pool.SubmitTask(worker.Task{
			ID: c,
			Do: func() (any, error) {
				defer wg.Done()
				fn(c, lo, hi)
				return nil, nil
			},
		})
	}
	wg.Wait()
}
