package kernels

import "github.com/exascience/parfor/parallel"

// Tuning carries the loop parameters of a kernel. Zero fields select
// the engine defaults.
type Tuning struct {
	// RangeThreshold is the size up to which a loop runs on the
	// calling goroutine.
	RangeThreshold int
	// MinIterationsPerThread is the smallest chunk handed to a thread.
	MinIterationsPerThread int
}

func (t Tuning) forRange(n int, f func(low, high int) error) error {
	return parallel.ForRangeMin(n, t.RangeThreshold, t.MinIterationsPerThread, f)
}

func rangeReduce[T any](t Tuning, n int, reduce func(low, high int) (T, error), pair func(x, y T) (T, error)) (T, error) {
	return parallel.RangeReduceMin(n, t.MinIterationsPerThread, reduce, pair)
}
