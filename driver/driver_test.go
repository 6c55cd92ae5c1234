package driver

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/weiihann/kvbench/store"
	"github.com/weiihann/kvbench/store/memstore"
)

// fakeBinder satisfies affinity.Binder without touching the scheduler, so
// driver tests run anywhere.
type fakeBinder struct {
	cores int
	err   error

	mu    sync.Mutex
	binds []int
}

func (b *fakeBinder) Cores() (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	return b.cores, nil
}

func (b *fakeBinder) Bind(core int) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	b.binds = append(b.binds, core)
	b.mu.Unlock()
	return nil
}

func (b *fakeBinder) bindCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.binds)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequentialKeys(count, modulus int) []uint64 {
	keys := make([]uint64, count)
	for i := range keys {
		keys[i] = uint64(i % modulus)
	}
	return keys
}

func newTestDriver(t *testing.T, st store.Store, workers int, chunk uint64) (*Driver, *fakeBinder) {
	t.Helper()

	binder := &fakeBinder{cores: 4}
	d, err := New(st, binder, testLogger(), Config{
		Workers:   workers,
		ChunkSize: chunk,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d, binder
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero workers", Config{Workers: 0}},
		{"negative workers", Config{Workers: -1}},
		{"pending not multiple of refresh", Config{
			Workers:                 2,
			RefreshInterval:         64,
			CompletePendingInterval: 100,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(memstore.New(), &fakeBinder{cores: 1}, testLogger(), tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEndToEndUpsertOnly(t *testing.T) {
	const (
		initCount = 1000
		txnCount  = 5000
		chunk     = 100
		workers   = 4
	)

	st := memstore.New()
	d, binder := newTestDriver(t, st, workers, chunk)

	if err := d.Populate(sequentialKeys(initCount, initCount)); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	if got := st.Size(); got != initCount {
		t.Fatalf("store size after population = %d, want %d", got, initCount)
	}
	if got := binder.bindCount(); got != workers {
		t.Fatalf("population bound %d threads, want %d", got, workers)
	}

	summary, err := d.Run(sequentialKeys(txnCount, initCount), Upsert100)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Upserts != txnCount {
		t.Errorf("upserts = %d, want %d", summary.Upserts, txnCount)
	}
	if summary.Reads != 0 || summary.RMWs != 0 {
		t.Errorf("reads = %d, rmws = %d, want 0 each",
			summary.Reads, summary.RMWs)
	}
	if summary.Elapsed <= 0 {
		t.Error("summed elapsed time must be positive")
	}

	// Per-thread normalization: total ops over total thread-seconds.
	want := float64(txnCount) / summary.Elapsed.Seconds()
	if got := summary.Throughput(); got != want {
		t.Errorf("Throughput() = %v, want %v", got, want)
	}

	// Transaction workers bind again after population.
	if got := binder.bindCount(); got != 2*workers {
		t.Errorf("total binds = %d, want %d", got, 2*workers)
	}
}

func TestRunCounterConservation(t *testing.T) {
	const (
		initCount = 512
		txnCount  = 10000
	)

	st := memstore.New()
	d, _ := newTestDriver(t, st, 4, 128)

	if err := d.Populate(sequentialKeys(initCount, initCount)); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	summary, err := d.Run(sequentialKeys(txnCount, initCount), ReadUpsert5050)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Every index yields exactly one classified, executed operation.
	if got := summary.TotalOps(); got != txnCount {
		t.Errorf("reads+upserts+rmws = %d, want %d", got, txnCount)
	}
	if summary.Reads == 0 || summary.Upserts == 0 {
		t.Errorf("50/50 mix produced reads=%d upserts=%d, want both nonzero",
			summary.Reads, summary.Upserts)
	}
	if summary.RMWs != 0 {
		t.Errorf("50/50 mix produced %d rmws, want 0", summary.RMWs)
	}
}

func TestRunWithAsyncReads(t *testing.T) {
	const (
		initCount = 256
		txnCount  = 4096
	)

	// Every third read completes asynchronously, forcing workers through
	// the pending-drain path.
	st := memstore.New(memstore.WithAsyncReads(3))
	d, _ := newTestDriver(t, st, 4, 64)

	if err := d.Populate(sequentialKeys(initCount, initCount)); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	summary, err := d.Run(sequentialKeys(txnCount, initCount), Read100)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Reads != txnCount {
		t.Errorf("reads = %d, want %d", summary.Reads, txnCount)
	}
}

func TestRunRMWOnly(t *testing.T) {
	const (
		initCount = 128
		txnCount  = 2000
	)

	st := memstore.New()
	d, _ := newTestDriver(t, st, 2, 100)

	if err := d.Populate(sequentialKeys(initCount, initCount)); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	summary, err := d.Run(sequentialKeys(txnCount, initCount), RMW100)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.RMWs != txnCount {
		t.Errorf("rmws = %d, want %d", summary.RMWs, txnCount)
	}
	if got := st.Size(); got != initCount {
		t.Errorf("store size after rmw run = %d, want %d", got, initCount)
	}
}

func TestAffinityFailureAbortsRun(t *testing.T) {
	binder := &fakeBinder{err: errors.New("no topology")}

	d, err := New(memstore.New(), binder, testLogger(), Config{
		Workers:   2,
		ChunkSize: 16,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := d.Populate(sequentialKeys(64, 64)); err == nil {
		t.Fatal("Populate succeeded with a failing binder")
	}

	if _, err := d.Run(sequentialKeys(64, 64), Upsert100); err == nil {
		t.Fatal("Run succeeded with a failing binder")
	}
}

// failingSession reports Error on every upsert past a threshold.
type failingStore struct {
	inner store.Store
}

func (f *failingStore) StartSession() store.Session {
	return &failingSession{Session: f.inner.StartSession()}
}

func (f *failingStore) Size() uint64 { return f.inner.Size() }

type failingSession struct {
	store.Session
	ops int
}

func (s *failingSession) Upsert(key, value uint64) store.Status {
	s.ops++
	if s.ops > 10 {
		return store.Error
	}
	return s.Session.Upsert(key, value)
}

func TestStoreErrorIsFatal(t *testing.T) {
	st := &failingStore{inner: memstore.New()}
	d, _ := newTestDriver(t, st, 2, 32)

	err := d.Populate(sequentialKeys(1000, 1000))
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if !strings.Contains(err.Error(), "status error") {
		t.Errorf("error %q does not mention the store status", err)
	}
}

func TestEpochCadence(t *testing.T) {
	const initCount = 1000

	st := memstore.New()
	binder := &fakeBinder{cores: 2}

	d, err := New(st, binder, testLogger(), Config{
		Workers:                 1,
		ChunkSize:               100,
		RefreshInterval:         10,
		CompletePendingInterval: 100,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := d.Populate(sequentialKeys(initCount, initCount)); err != nil {
		t.Fatalf("Populate failed: %v", err)
	}

	// One refresh per RefreshInterval indices across the whole sequence.
	if got, want := st.Epoch(), uint64(initCount/10); got != want {
		t.Errorf("refresh count = %d, want %d", got, want)
	}
}

func TestRunLivenessPollDoesNotAffectResults(t *testing.T) {
	const txnCount = 2000

	st := memstore.New()
	binder := &fakeBinder{cores: 4}

	d, err := New(st, binder, testLogger(), Config{
		Workers:          4,
		ChunkSize:        50,
		LivenessInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	summary, err := d.Run(sequentialKeys(txnCount, txnCount), Upsert100)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.TotalOps() != txnCount {
		t.Errorf("total ops = %d, want %d", summary.TotalOps(), txnCount)
	}
}
