// Package affinity pins worker goroutines to physical CPU cores so that
// throughput measurements are not polluted by cross-core migration. The
// Binder interface keeps the platform syscalls injectable: the driver is
// tested with a fake, and real runs use the Linux implementation.
package affinity

import "fmt"

// Binder enumerates host cores and pins the calling OS thread to one of
// them. Implementations must be safe for concurrent use by multiple
// worker goroutines.
type Binder interface {
	// Cores reports the number of CPUs available to this process.
	Cores() (int, error)

	// Bind constrains the calling OS thread's scheduling to the given
	// core. Callers must have locked the goroutine to its OS thread
	// (runtime.LockOSThread) before calling Bind.
	Bind(core int) error
}

// BindWorker pins the calling thread to core `worker mod cores`. A
// benchmark with unbound threads produces invalid comparisons, so any
// failure here is returned to the caller and aborts the run; there is no
// fallback to unbound scheduling.
func BindWorker(b Binder, worker int) error {
	cores, err := b.Cores()
	if err != nil {
		return fmt.Errorf("enumerate cores: %w", err)
	}
	if cores <= 0 {
		return fmt.Errorf("topology reported %d cores", cores)
	}

	core := worker % cores
	if err := b.Bind(core); err != nil {
		return fmt.Errorf("bind worker %d to core %d: %w", worker, core, err)
	}
	return nil
}
