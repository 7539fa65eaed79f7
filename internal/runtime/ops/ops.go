// Package ops provides small concurrency primitives used by the parameter
// generation stage, where independent slices of work (one cepstral/F0
// dimension) can run on separate goroutines without synchronization beyond
// a final join.
package ops

import (
	"sync"
	"sync/atomic"
)

// dimWorkers holds the worker count stored by SetWorkers and reported by
// Workers (0 or 1 means sequential). ParallelFor does not read it; its
// callers pass the worker count explicitly.
var dimWorkers atomic.Int32

// SetWorkers stores the worker count reported by Workers; n < 0 is stored
// as 0.
func SetWorkers(n int) {
	if n < 0 {
		n = 0
	}

	dimWorkers.Store(int32(n))
}

// Workers returns the current worker count (0 or 1 means sequential).
func Workers() int { return int(dimWorkers.Load()) }

// ParallelFor splits the range [0, n) into chunks and runs fn(lo, hi)
// concurrently. When workers <= 1 or n <= 1 the call runs inline.
func ParallelFor(n, workers int, fn func(lo, hi int)) {
	if workers <= 1 || n <= 1 {
		fn(0, n)
		return
	}

	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup

	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}

		wg.Add(1)

		go func(lo, hi int) {
			defer wg.Done()

			fn(lo, hi)
		}(lo, hi)
	}

	wg.Wait()
}
