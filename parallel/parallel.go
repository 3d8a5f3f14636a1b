// Package parallel provides data-parallel loops over index ranges.
//
// The loops partition their range with parfor.CalculateThreadData and
// dispatch one task per chunk to a pool. They block until every chunk
// has been processed. Loops may be nested: a body may itself call any
// function of this package, which then shares the same bounded pool
// without risk of deadlock.
//
// Bodies of different chunks run concurrently. They may freely write
// to memory addressed by their own indices, but must synchronize any
// other shared state themselves.
package parallel

import (
	"fmt"

	"github.com/exascience/parfor"
	"github.com/exascience/parfor/pool"
)

// DefaultRangeThreshold is the iteration count up to which ForRange
// calls its range function once on the calling goroutine.
const DefaultRangeThreshold = 16

// An Executor runs numTasks tasks and returns when all of them have
// terminated, with the error of the lowest failing task index.
// *pool.Pool is an Executor.
type Executor interface {
	Submit(numTasks int, task func(i int) error) error
}

// IndexError reports the failure of a For body at a specific index.
type IndexError struct {
	Index int
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d: %v", e.Index, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// RangeError reports the failure of a ForRange function for a
// specific subrange.
type RangeError struct {
	Low, High int
	Err       error
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range %d:%d: %v", e.Low, e.High, e.Err)
}

func (e *RangeError) Unwrap() error { return e.Err }

// defaultExecutor returns the default pool. Unless its size is fixed
// with pool.SetDefaultSize, it grows to match a raised concurrency.
func defaultExecutor() Executor {
	return pool.Default()
}

func checkIterations(n int) {
	if n < 0 {
		panic(fmt.Sprintf("invalid number of iterations: %v", n))
	}
}

/*
For invokes f exactly once for every index in the half-open interval
from 0 to n, using the default pool.

If n is 0, f is never invoked. If n is 1, f(0) is invoked on the
calling goroutine. Otherwise the range is partitioned by
parfor.CalculateThreadData, and each chunk is processed by a single
task that invokes f for its indices in increasing order.

A chunk stops at the first index for which f returns an error. All
other chunks still run to completion, and For then returns an
*IndexError for the lowest failing index.

For panics if n < 0. If one or more invocations of f panic, For
eventually panics with the recovered value of the lowest panicking
chunk. A panic takes precedence over any error: when one chunk returns
an error and another panics, For panics, even if the failing index is
lower than the panicking one.
*/
func For(n int, f func(i int) error) error {
	return ForOn(defaultExecutor(), n, f)
}

// ForOn is like For, but dispatches to e instead of the default pool.
func ForOn(e Executor, n int, f func(i int) error) error {
	checkIterations(n)
	switch n {
	case 0:
		return nil
	case 1:
		if err := f(0); err != nil {
			return &IndexError{0, err}
		}
		return nil
	}
	data := parfor.CalculateThreadData(n)
	return e.Submit(data.NumThreads, func(t int) error {
		low, high := data.Chunk(t)
		for i := low; i < high; i++ {
			if err := f(i); err != nil {
				return &IndexError{i, err}
			}
		}
		return nil
	})
}

/*
ForRange invokes f for subranges that together cover the half-open
interval from 0 to n without gaps or overlaps, using the default pool.
This lets f batch or vectorize the work for its subrange.

If n <= threshold, f(0, n) is invoked exactly once on the calling
goroutine. Otherwise f is invoked once for each chunk of
parfor.CalculateThreadData(n). If threshold is <= 0,
DefaultRangeThreshold is used instead.

ForRange returns a *RangeError for the lowest failing subrange, once
all subranges have been processed.

ForRange panics if n < 0. If one or more invocations of f panic,
ForRange eventually panics with the recovered value of the lowest
panicking subrange. As with For, a panic takes precedence over any
error, whatever the subranges involved.
*/
func ForRange(n, threshold int, f func(low, high int) error) error {
	return forRange(defaultExecutor(), n, threshold, 0, f)
}

// ForRangeOn is like ForRange, but dispatches to e instead of the
// default pool.
func ForRangeOn(e Executor, n, threshold int, f func(low, high int) error) error {
	return forRange(e, n, threshold, 0, f)
}

// ForRangeMin is like ForRange, but partitions the range with
// parfor.CalculateThreadDataMin(n, minIterationsPerThread), so that
// each subrange holds at least minIterationsPerThread iterations
// where possible. If minIterationsPerThread is <= 0,
// parfor.DefaultMinIterationsPerThread is used instead.
func ForRangeMin(n, threshold, minIterationsPerThread int, f func(low, high int) error) error {
	return forRange(defaultExecutor(), n, threshold, minIterationsPerThread, f)
}

func forRange(e Executor, n, threshold, minIterationsPerThread int, f func(low, high int) error) error {
	checkIterations(n)
	if threshold <= 0 {
		threshold = DefaultRangeThreshold
	}
	if n <= threshold {
		if err := f(0, n); err != nil {
			return &RangeError{0, n, err}
		}
		return nil
	}
	data := parfor.CalculateThreadDataMin(n, minIterationsPerThread)
	return e.Submit(data.NumThreads, func(t int) error {
		low, high := data.Chunk(t)
		if err := f(low, high); err != nil {
			return &RangeError{low, high, err}
		}
		return nil
	})
}

/*
Do receives zero or more thunks and executes them in parallel on the
default pool.

Do returns only when all thunks have terminated, returning the
left-most error value that is different from nil.

If one or more thunks panic, Do eventually panics with the left-most
recovered panic value.
*/
func Do(thunks ...func() error) error {
	return defaultExecutor().Submit(len(thunks), func(i int) error {
		return thunks[i]()
	})
}

/*
RangeReduce partitions the half-open interval from 0 to n like For,
invokes reduce for each chunk in parallel, and then combines the
partial results from left to right with pair on the calling
goroutine. For n == 0, reduce is invoked once with the empty range.

RangeReduce returns the left-most error of reduce, or else the first
error of pair.

RangeReduce panics if n < 0. If one or more invocations of reduce
panic, RangeReduce eventually panics with the left-most recovered
panic value, and pair is never invoked.
*/
func RangeReduce[T any](
	n int,
	reduce func(low, high int) (T, error),
	pair func(x, y T) (T, error),
) (T, error) {
	return RangeReduceMin(n, 0, reduce, pair)
}

// RangeReduceMin is like RangeReduce, but partitions the range with
// parfor.CalculateThreadDataMin(n, minIterationsPerThread).
func RangeReduceMin[T any](
	n, minIterationsPerThread int,
	reduce func(low, high int) (T, error),
	pair func(x, y T) (T, error),
) (result T, err error) {
	checkIterations(n)
	data := parfor.CalculateThreadDataMin(n, minIterationsPerThread)
	partials := make([]T, data.NumThreads)
	err = defaultExecutor().Submit(data.NumThreads, func(t int) (err error) {
		low, high := data.Chunk(t)
		if partials[t], err = reduce(low, high); err != nil {
			return &RangeError{low, high, err}
		}
		return nil
	})
	if err != nil {
		return
	}
	result = partials[0]
	for _, partial := range partials[1:] {
		if result, err = pair(result, partial); err != nil {
			return
		}
	}
	return
}
