// Package parfor provides a bounded, nesting-safe fork-join engine for
// data-parallel loops over index ranges, as used by numerically heavy
// kernels such as field-element batches, commitment computation, and
// constraint evaluation.
//
// This package itself contains the thread budget calculator, which
// turns an iteration count and the configured concurrency into a
// number of threads and a partition of the index range.
//
// Parfor provides the following subpackages:
//
// parfor/concurrency holds the process-wide configured concurrency.
//
// parfor/pool provides a bounded, reusable pool of worker goroutines
// with fork-join dispatch that is safe to use from within its own
// tasks.
//
// parfor/parallel provides the For and ForRange loops, as well as Do
// and RangeReduce, on top of the pool and the budget calculator.
//
// parfor/sequential provides sequential implementations of all
// functions from parfor/parallel, for testing and debugging purposes.
//
// parfor/config loads engine settings from TOML files and the
// environment.
package parfor
