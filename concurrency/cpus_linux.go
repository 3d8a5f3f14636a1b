//go:build linux

package concurrency

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// platformCPUs counts the CPUs in the affinity mask of the process,
// which respects taskset and cgroup cpusets.
func platformCPUs() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}
