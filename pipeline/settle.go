package pipeline

import (
	"context"
	"sync"
)

// settled is the outcome of one fan-out task, kept in its original slot.
type settled[T any] struct {
	Value T
	Err   error
}

// settleAll runs fn concurrently for each index in [0, n) and waits for
// every task to finish, success or failure. Results come back indexed by
// slot so successes can be recombined in fan-out order after unordered
// completion. Tasks share only the passed context; one task's failure
// neither cancels nor degrades the others.
func settleAll[T any](ctx context.Context, n int, fn func(ctx context.Context, index int) (T, error)) []settled[T] {
	results := make([]settled[T], n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := fn(ctx, i)
			results[i] = settled[T]{Value: value, Err: err}
		}(i)
	}
	wg.Wait()

	return results
}

// firstError returns the first non-nil error by slot order, or nil.
func firstError[T any](results []settled[T]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// countSuccesses returns how many slots settled without error.
func countSuccesses[T any](results []settled[T]) int {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n++
		}
	}
	return n
}
