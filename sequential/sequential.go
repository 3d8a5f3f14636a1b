// Package sequential provides sequential implementations of the
// functions provided by the parallel package. This is useful for
// testing and debugging.
//
// The implementations visit the same subranges as their parallel
// counterparts, in increasing order, and report errors the same way.
package sequential

import (
	"fmt"

	"github.com/exascience/parfor"
	"github.com/exascience/parfor/parallel"
)

func checkIterations(n int) {
	if n < 0 {
		panic(fmt.Sprintf("invalid number of iterations: %v", n))
	}
}

// For invokes f for every index from 0 to n in increasing order,
// stopping at the first error.
func For(n int, f func(i int) error) error {
	checkIterations(n)
	for i := 0; i < n; i++ {
		if err := f(i); err != nil {
			return &parallel.IndexError{Index: i, Err: err}
		}
	}
	return nil
}

// ForRange invokes f for the same subranges as parallel.ForRange, in
// increasing order, stopping at the first error.
func ForRange(n, threshold int, f func(low, high int) error) error {
	return ForRangeMin(n, threshold, 0, f)
}

// ForRangeMin invokes f for the same subranges as
// parallel.ForRangeMin, in increasing order, stopping at the first
// error.
func ForRangeMin(n, threshold, minIterationsPerThread int, f func(low, high int) error) error {
	checkIterations(n)
	if threshold <= 0 {
		threshold = parallel.DefaultRangeThreshold
	}
	if n <= threshold {
		if err := f(0, n); err != nil {
			return &parallel.RangeError{Low: 0, High: n, Err: err}
		}
		return nil
	}
	data := parfor.CalculateThreadDataMin(n, minIterationsPerThread)
	for t := 0; t < data.NumThreads; t++ {
		low, high := data.Chunk(t)
		if err := f(low, high); err != nil {
			return &parallel.RangeError{Low: low, High: high, Err: err}
		}
	}
	return nil
}

// Do receives zero or more thunks and executes them sequentially,
// returning the left-most error value that is different from nil.
func Do(thunks ...func() error) (err error) {
	for _, thunk := range thunks {
		nerr := thunk()
		if err == nil {
			err = nerr
		}
	}
	return
}

// RangeReduce invokes reduce for the same subranges as
// parallel.RangeReduce, in increasing order, and then combines the
// partial results from left to right with pair. As in
// parallel.RangeReduce, pair is only invoked once every reduce has
// succeeded.
func RangeReduce[T any](
	n int,
	reduce func(low, high int) (T, error),
	pair func(x, y T) (T, error),
) (T, error) {
	return RangeReduceMin(n, 0, reduce, pair)
}

// RangeReduceMin is the sequential counterpart of
// parallel.RangeReduceMin.
func RangeReduceMin[T any](
	n, minIterationsPerThread int,
	reduce func(low, high int) (T, error),
	pair func(x, y T) (T, error),
) (result T, err error) {
	checkIterations(n)
	data := parfor.CalculateThreadDataMin(n, minIterationsPerThread)
	partials := make([]T, data.NumThreads)
	for t := range partials {
		low, high := data.Chunk(t)
		if partials[t], err = reduce(low, high); err != nil {
			return result, &parallel.RangeError{Low: low, High: high, Err: err}
		}
	}
	result = partials[0]
	for _, partial := range partials[1:] {
		if result, err = pair(result, partial); err != nil {
			return
		}
	}
	return
}
