//go:build linux

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// OSBinder binds threads through the Linux sched_setaffinity syscall.
type OSBinder struct{}

// NewOSBinder returns the platform binder.
func NewOSBinder() OSBinder {
	return OSBinder{}
}

// Cores counts the CPUs in this process's current affinity mask.
func (OSBinder) Cores() (int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, fmt.Errorf("sched_getaffinity: %w", err)
	}
	return set.Count(), nil
}

// Bind restricts the calling thread to the given core. Passing pid 0
// targets the calling thread, which is why callers must hold
// runtime.LockOSThread.
func (OSBinder) Bind(core int) error {
	var set unix.CPUSet
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity(core=%d): %w", core, err)
	}
	return nil
}
