// Package memstore is an in-memory implementation of the store capability
// surface. It exists so the driver can run and be tested without an
// external engine: keys live in sharded maps, sessions carry their own
// pending-read queues, and Refresh feeds a global epoch counter.
package memstore

import (
	"sync"
	"sync/atomic"

	"github.com/weiihann/kvbench/store"
)

const shardCount = 64

type shard struct {
	mu    sync.RWMutex
	items map[uint64]uint64
}

// Store is a sharded in-memory key-value store.
type Store struct {
	shards     [shardCount]shard
	size       atomic.Uint64
	epoch      atomic.Uint64
	asyncEvery int
}

// Option configures a Store.
type Option func(*Store)

// WithAsyncReads makes every n-th read per session return Pending instead
// of completing synchronously, so callers exercise the CompletePending
// path. n <= 0 disables asynchronous completion.
func WithAsyncReads(n int) Option {
	return func(s *Store) {
		s.asyncEvery = n
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].items = make(map[uint64]uint64)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession opens a session bound to the calling goroutine.
func (s *Store) StartSession() store.Session {
	return &Session{store: s}
}

// Size reports the number of distinct keys stored.
func (s *Store) Size() uint64 {
	return s.size.Load()
}

// Epoch reports how many Refresh calls the store has observed across all
// sessions.
func (s *Store) Epoch() uint64 {
	return s.epoch.Load()
}

// Fibonacci hashing spreads sequential keys across shards.
func (s *Store) shardFor(key uint64) *shard {
	return &s.shards[(key*0x9E3779B97F4A7C15)>>(64-6)]
}

func (s *Store) upsert(key, value uint64) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	if _, ok := sh.items[key]; !ok {
		s.size.Add(1)
	}
	sh.items[key] = value
	sh.mu.Unlock()
}

func (s *Store) get(key uint64) (uint64, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	v, ok := sh.items[key]
	sh.mu.RUnlock()
	return v, ok
}

func (s *Store) rmw(key, delta uint64) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	if _, ok := sh.items[key]; !ok {
		s.size.Add(1)
	}
	sh.items[key] += delta
	sh.mu.Unlock()
}

type pendingRead struct {
	key uint64
	ch  chan uint64
}

// Session implements store.Session. Not safe for concurrent use; the
// driver guarantees one session per worker goroutine. It additionally
// exposes PendingCount so tests can verify drain completeness.
type Session struct {
	store   *Store
	reads   int
	pending []pendingRead
}

func (s *Session) Upsert(key, value uint64) store.Status {
	s.store.upsert(key, value)
	return store.OK
}

func (s *Session) Read(key uint64) (store.Status, <-chan uint64) {
	s.reads++
	if s.store.asyncEvery > 0 && s.reads%s.store.asyncEvery == 0 {
		ch := make(chan uint64, 1)
		s.pending = append(s.pending, pendingRead{key: key, ch: ch})
		return store.Pending, ch
	}

	v, ok := s.store.get(key)
	if !ok {
		return store.NotFound, nil
	}

	ch := make(chan uint64, 1)
	ch <- v
	close(ch)
	return store.OK, ch
}

func (s *Session) RMW(key, delta uint64) store.Status {
	s.store.rmw(key, delta)
	return store.OK
}

func (s *Session) Refresh() {
	s.store.epoch.Add(1)
}

// CompletePending resolves queued reads. Memory operations complete
// immediately, so the non-blocking variant also drains everything.
func (s *Session) CompletePending(_ bool) {
	for _, p := range s.pending {
		v, _ := s.store.get(p.key)
		p.ch <- v
		close(p.ch)
	}
	s.pending = s.pending[:0]
}

// PendingCount reports how many asynchronous reads are still unresolved.
func (s *Session) PendingCount() int {
	return len(s.pending)
}

func (s *Session) Close() {
	s.pending = nil
}
