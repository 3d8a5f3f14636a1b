package parfor

import (
	"fmt"

	"github.com/exascience/parfor/concurrency"
	"github.com/exascience/parfor/internal"
)

// DefaultMinIterationsPerThread is the smallest number of iterations
// the budget calculator assigns to a single thread by default.
const DefaultMinIterationsPerThread = 16

// ThreadData is a partition of the range [0, n) into NumThreads
// contiguous, non-empty chunks. Chunk i covers Start[i] up to, but
// excluding, End[i], and chunk sizes differ by at most one.
type ThreadData struct {
	NumThreads int
	Start      []int
	End        []int
}

// Chunk returns the bounds of chunk i.
func (d ThreadData) Chunk(i int) (low, high int) {
	return d.Start[i], d.End[i]
}

func checkIterations(n int) {
	if n < 0 {
		panic(fmt.Sprintf("invalid number of iterations: %v", n))
	}
}

func desiredThreads(n, minIterationsPerThread int) int {
	checkIterations(n)
	if minIterationsPerThread <= 0 {
		minIterationsPerThread = DefaultMinIterationsPerThread
	}
	return internal.CeilDiv(n, minIterationsPerThread)
}

/*
CalculateNumThreads determines how many threads should share n
iterations so that each thread receives at least
minIterationsPerThread of them, without exceeding the configured
concurrency.

If minIterationsPerThread is <= 0, DefaultMinIterationsPerThread is
used instead.

More specifically, the return value is max(1,
min(ceiling(n / minIterationsPerThread), concurrency.NumCPUs())).

CalculateNumThreads panics if n < 0.
*/
func CalculateNumThreads(n, minIterationsPerThread int) int {
	return max(1, min(desiredThreads(n, minIterationsPerThread), concurrency.NumCPUs()))
}

/*
CalculateNumThreadsPow2 is like CalculateNumThreads, but always returns
a power of two. Both the desired number of threads and the configured
concurrency are rounded down to a power of two before taking the
minimum.

CalculateNumThreadsPow2 panics if n < 0.
*/
func CalculateNumThreadsPow2(n, minIterationsPerThread int) int {
	desired := internal.FloorPow2(max(1, desiredThreads(n, minIterationsPerThread)))
	return max(1, min(desired, concurrency.NumCPUsPow2()))
}

/*
CalculateThreadData partitions [0, n) into CalculateNumThreads(n, 0)
chunks. The first n mod NumThreads chunks hold one iteration more than
the others.

The partition is deterministic for a given n and configured
concurrency. For n == 0, the result is a single empty chunk, which the
parallel package never dispatches.

CalculateThreadData panics if n < 0.
*/
func CalculateThreadData(n int) ThreadData {
	return CalculateThreadDataMin(n, DefaultMinIterationsPerThread)
}

// CalculateThreadDataMin is like CalculateThreadData, but partitions
// [0, n) into CalculateNumThreads(n, minIterationsPerThread) chunks.
func CalculateThreadDataMin(n, minIterationsPerThread int) ThreadData {
	t := CalculateNumThreads(n, minIterationsPerThread)
	data := ThreadData{
		NumThreads: t,
		Start:      make([]int, t),
		End:        make([]int, t),
	}
	size, extra := n/t, n%t
	low := 0
	for i := 0; i < t; i++ {
		high := low + size
		if i < extra {
			high++
		}
		data.Start[i], data.End[i] = low, high
		low = high
	}
	return data
}
