//go:build !linux

package concurrency

import "runtime"

func platformCPUs() int {
	return runtime.NumCPU()
}
