//go:build !linux

package affinity

import "errors"

// ErrUnsupported is returned on platforms without thread-affinity
// control. Runs on such platforms are invalid rather than silently
// unbound.
var ErrUnsupported = errors.New("affinity: thread binding not supported on this platform")

// OSBinder is a stub on non-Linux platforms; every call fails.
type OSBinder struct{}

// NewOSBinder returns the platform binder.
func NewOSBinder() OSBinder {
	return OSBinder{}
}

// Cores always fails on unsupported platforms.
func (OSBinder) Cores() (int, error) {
	return 0, ErrUnsupported
}

// Bind always fails on unsupported platforms.
func (OSBinder) Bind(int) error {
	return ErrUnsupported
}
