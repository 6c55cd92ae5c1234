package memstore

import (
	"sync"
	"testing"

	"github.com/weiihann/kvbench/store"
)

func TestUpsertAndRead(t *testing.T) {
	s := New()
	sess := s.StartSession()
	defer sess.Close()

	if st := sess.Upsert(7, 42); st != store.OK {
		t.Fatalf("Upsert status = %s, want ok", st)
	}

	st, ch := sess.Read(7)
	if st != store.OK {
		t.Fatalf("Read status = %s, want ok", st)
	}
	if got := <-ch; got != 42 {
		t.Errorf("Read value = %d, want 42", got)
	}
}

func TestReadMissingKey(t *testing.T) {
	s := New()
	sess := s.StartSession()
	defer sess.Close()

	st, ch := sess.Read(99)
	if st != store.NotFound {
		t.Fatalf("Read status = %s, want not_found", st)
	}
	if ch != nil {
		t.Error("expected nil channel for missing key")
	}
}

func TestRMW(t *testing.T) {
	s := New()
	sess := s.StartSession()
	defer sess.Close()

	// RMW on a missing key installs the delta.
	if st := sess.RMW(1, 5); st != store.OK {
		t.Fatalf("RMW status = %s, want ok", st)
	}
	if st := sess.RMW(1, 3); st != store.OK {
		t.Fatalf("RMW status = %s, want ok", st)
	}

	_, ch := sess.Read(1)
	if got := <-ch; got != 8 {
		t.Errorf("value after two RMWs = %d, want 8", got)
	}
}

func TestSizeCountsDistinctKeys(t *testing.T) {
	s := New()
	sess := s.StartSession()
	defer sess.Close()

	for i := uint64(0); i < 100; i++ {
		sess.Upsert(i%10, i)
	}

	if got := s.Size(); got != 10 {
		t.Errorf("Size() = %d, want 10", got)
	}
}

func TestSizeConcurrentSessions(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker uint64) {
			defer wg.Done()
			sess := s.StartSession()
			defer sess.Close()
			for i := uint64(0); i < 1000; i++ {
				sess.Upsert(worker*1000+i, i)
			}
		}(uint64(w))
	}
	wg.Wait()

	if got := s.Size(); got != 8000 {
		t.Errorf("Size() = %d, want 8000", got)
	}
}

func TestAsyncReadsDrain(t *testing.T) {
	s := New(WithAsyncReads(2))
	s.StartSession().Upsert(5, 50)

	sess := s.StartSession().(*Session)
	defer sess.Close()

	// Second read per session goes pending.
	st, _ := sess.Read(5)
	if st != store.OK {
		t.Fatalf("first Read status = %s, want ok", st)
	}

	st, ch := sess.Read(5)
	if st != store.Pending {
		t.Fatalf("second Read status = %s, want pending", st)
	}
	if got := sess.PendingCount(); got != 1 {
		t.Fatalf("PendingCount() = %d, want 1", got)
	}

	sess.CompletePending(true)

	if got := sess.PendingCount(); got != 0 {
		t.Errorf("PendingCount() after drain = %d, want 0", got)
	}
	if got := <-ch; got != 50 {
		t.Errorf("pending read delivered %d, want 50", got)
	}
}

func TestRefreshFeedsEpoch(t *testing.T) {
	s := New()
	sess := s.StartSession()
	defer sess.Close()

	for i := 0; i < 5; i++ {
		sess.Refresh()
	}

	if got := s.Epoch(); got != 5 {
		t.Errorf("Epoch() = %d, want 5", got)
	}
}
