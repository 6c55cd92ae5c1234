// Package store defines the capability surface the benchmark driver
// consumes from a key-value store engine. The engine itself (hash index,
// log, recovery) lives behind this boundary; the driver only needs
// per-thread sessions, the three benchmark operations, and the
// cooperative-epoch calls.
package store

// Status is the outcome of a single store operation.
type Status uint8

const (
	// OK means the operation completed synchronously.
	OK Status = iota
	// NotFound means a read targeted a key that does not exist.
	NotFound
	// Pending means the operation was accepted but will complete
	// asynchronously; its result is delivered during a later
	// CompletePending call on the issuing session.
	Pending
	// Error means the operation failed. The driver treats this as fatal
	// to the whole run.
	Error
)

// String returns the status name for logs and error messages.
func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case NotFound:
		return "not_found"
	case Pending:
		return "pending"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Store is a concurrent key-value engine. Implementations must allow
// StartSession and Size to be called from any goroutine.
type Store interface {
	// StartSession opens a per-thread session. The returned Session must
	// only be used by the goroutine that opened it.
	StartSession() Session

	// Size reports the approximate number of elements currently stored.
	Size() uint64
}

// Session scopes store operations to a single worker thread. All methods
// must be called from the owning goroutine only. Close releases the
// session; callers drain pending operations first via
// CompletePending(true).
type Session interface {
	// Upsert inserts or overwrites the value for key.
	Upsert(key, value uint64) Status

	// Read looks up key. When the status is Pending the value arrives on
	// the returned channel once a CompletePending call resolves it; for
	// OK the channel already holds the value.
	Read(key uint64) (Status, <-chan uint64)

	// RMW atomically adds delta to the value stored under key, installing
	// delta itself if the key is absent.
	RMW(key, delta uint64) Status

	// Refresh announces this session's progress to the store's epoch
	// mechanism. It is cheap and never blocks.
	Refresh()

	// CompletePending resolves previously issued asynchronous operations.
	// With wait=false it only drains what has already completed; with
	// wait=true it blocks until nothing issued by this session remains
	// outstanding.
	CompletePending(wait bool)

	// Close releases the session.
	Close()
}
