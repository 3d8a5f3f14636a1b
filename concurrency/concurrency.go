// Package concurrency holds the process-wide parallelism degree used
// by the parfor budget calculator and the parallel package.
//
// The configured concurrency defaults to the HARDWARE_CONCURRENCY
// environment variable if it is set to a positive integer, and to the
// detected hardware parallelism (see Hardware) otherwise. It can be
// changed at any time with Set; the change affects all subsequent
// budget computations, but does not interrupt dispatches that are
// already running.
package concurrency

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/exascience/parfor/internal"
	"github.com/exascience/parfor/internal/logging"
)

// EnvVar names the environment variable consulted for the default
// concurrency.
const EnvVar = "HARDWARE_CONCURRENCY"

var (
	configured atomic.Int64
	once       sync.Once
)

func initialize() {
	once.Do(func() {
		n := Hardware()
		if v, ok := fromEnv(); ok {
			n = v
		}
		configured.Store(int64(n))
	})
}

func fromEnv() (int, bool) {
	s, ok := os.LookupEnv(EnvVar)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		logging.Logger().Warn("ignoring invalid concurrency from environment", "var", EnvVar, "value", s)
		return 0, false
	}
	return n, true
}

// Hardware returns the detected hardware parallelism, at least 1.
func Hardware() int {
	if n := platformCPUs(); n > 0 {
		return n
	}
	return 1
}

// Set replaces the configured concurrency. Values below 1 are clamped
// to 1. Calling Set before the first read skips default detection.
func Set(count int) {
	once.Do(func() {})
	if count < 1 {
		logging.Logger().Warn("clamping parallel-for concurrency", "requested", count, "using", 1)
		count = 1
	}
	configured.Store(int64(count))
}

// NumCPUs returns the configured concurrency, at least 1.
func NumCPUs() int {
	if n := configured.Load(); n > 0 {
		return int(n)
	}
	initialize()
	return int(configured.Load())
}

// NumCPUsPow2 returns the largest power of two <= NumCPUs().
func NumCPUsPow2() int {
	return internal.FloorPow2(NumCPUs())
}
