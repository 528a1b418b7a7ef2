// Package tuner detects CPU and memory resources and sizes the worker
// pools used to walk trees and hash files.
package tuner

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
)

var logger = logging.Get("tuner")

// SystemResources describes the machine the pools are sized for.
type SystemResources struct {
	CPUCores int

	// TotalRAM and AvailableRAM are in bytes. AvailableRAM is the kernel's
	// estimate of memory usable without swapping.
	TotalRAM     int64
	AvailableRAM int64
}

// Detect reports the CPU count and memory of this machine. On error the
// CPU count is still filled in.
func Detect() (SystemResources, error) {
	res := SystemResources{CPUCores: runtime.NumCPU()}

	vm, err := virtualMemory()
	if err != nil {
		return res, fmt.Errorf("probing memory: %w", err)
	}
	res.TotalRAM, res.AvailableRAM = clampMemory(int64(vm.Total), int64(vm.Available))
	return res, nil
}

// virtualMemory is replaced in tests.
var virtualMemory = mem.VirtualMemory

// clampMemory treats a missing or impossible available figure as half of
// total.
func clampMemory(total, avail int64) (int64, int64) {
	if avail <= 0 || avail > total {
		avail = total / 2
	}
	return total, avail
}
