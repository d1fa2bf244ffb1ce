// Package snapshot holds the current telemetry tree behind an atomically
// swapped handle. One producer publishes a freshly built tree on a fixed
// cadence; any number of request goroutines borrow the current snapshot and
// resolve paths against it without locks.
package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theonuverse/pasmonux/statree"
)

// Snapshot is one immutable, versioned instance of the value tree. It stays
// internally consistent for the lifetime of every borrow, even if newer
// snapshots are published meanwhile.
type Snapshot struct {
	Tree    statree.Value
	Version uint64
	Taken   time.Time
}

// Store is the single shared slot between the producer and readers.
// Publish never blocks readers; readers never wait beyond the pointer load.
type Store struct {
	cur     atomic.Pointer[Snapshot]
	version atomic.Uint64

	// versionMu + versionCond broadcast when the version advances,
	// enabling WaitForVersion.
	versionMu   sync.Mutex
	versionCond *sync.Cond

	publishes atomic.Int64
	borrows   atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Version   uint64 `json:"version"`
	Publishes int64  `json:"publishes"`
	Borrows   int64  `json:"borrows"`
}

// NewStore creates a Store seeded with an empty placeholder snapshot, so
// Current always succeeds — there is no observable "empty" state.
func NewStore() *Store {
	s := &Store{}
	s.versionCond = sync.NewCond(&s.versionMu)
	s.cur.Store(&Snapshot{Tree: statree.Object(), Version: 0, Taken: time.Now()})
	return s
}

// Publish atomically installs tree as the current snapshot and bumps the
// version counter. It completes in bounded time regardless of reader count.
// The store expects a single publishing goroutine.
//
// The snapshot pointer is installed before the counter advances, so any
// reader that observes version N also sees a current snapshot of at least
// version N.
func (s *Store) Publish(tree statree.Value) {
	ver := s.version.Load() + 1
	s.cur.Store(&Snapshot{Tree: tree, Version: ver, Taken: time.Now()})
	s.version.Store(ver)
	s.publishes.Add(1)

	s.versionMu.Lock()
	s.versionCond.Broadcast()
	s.versionMu.Unlock()
}

// Current borrows whatever snapshot is current at the instant of the call.
func (s *Store) Current() *Snapshot {
	s.borrows.Add(1)
	return s.cur.Load()
}

// Version returns the version of the most recently published snapshot.
// Zero means only the placeholder has been seen.
func (s *Store) Version() uint64 { return s.version.Load() }

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	return Stats{
		Version:   s.version.Load(),
		Publishes: s.publishes.Load(),
		Borrows:   s.borrows.Load(),
	}
}

// WaitForVersion blocks until a snapshot with Version >= target has been
// published, or ctx expires. Readiness checks use it to wait out the
// placeholder before the first real publish.
func (s *Store) WaitForVersion(ctx context.Context, target uint64) error {
	if s.version.Load() >= target {
		return nil
	}

	done := ctx.Done()
	s.versionMu.Lock()
	defer s.versionMu.Unlock()

	for s.version.Load() < target {
		// Interruptible wait: a helper goroutine broadcasts on context
		// cancellation so the cond wait can observe it.
		ch := make(chan struct{})
		go func() {
			select {
			case <-done:
				s.versionMu.Lock()
				s.versionCond.Broadcast()
				s.versionMu.Unlock()
			case <-ch:
			}
		}()

		s.versionCond.Wait()
		close(ch)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}
