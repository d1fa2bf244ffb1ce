package snapshot_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theonuverse/pasmonux/snapshot"
	"github.com/theonuverse/pasmonux/statree"
)

func TestStoreSeededWithPlaceholder(t *testing.T) {
	s := snapshot.NewStore()

	snap := s.Current()
	require.NotNil(t, snap)
	require.Equal(t, uint64(0), snap.Version)
	require.Equal(t, statree.KindObject, snap.Tree.Kind())
	require.Empty(t, snap.Tree.Fields())
}

func TestPublishBumpsVersion(t *testing.T) {
	s := snapshot.NewStore()

	s.Publish(statree.Object(statree.F("n", statree.Int(1))))
	s.Publish(statree.Object(statree.F("n", statree.Int(2))))

	snap := s.Current()
	require.Equal(t, uint64(2), snap.Version)
	require.Equal(t, uint64(2), s.Version())

	n, ok := snap.Tree.Get("n")
	require.True(t, ok)
	require.True(t, n.Equal(statree.Int(2)))
}

func TestBorrowedSnapshotStaysCoherent(t *testing.T) {
	s := snapshot.NewStore()
	s.Publish(statree.Object(
		statree.F("a", statree.Int(1)),
		statree.F("b", statree.Int(1)),
	))

	old := s.Current()
	s.Publish(statree.Object(
		statree.F("a", statree.Int(2)),
		statree.F("b", statree.Int(2)),
	))

	// The borrowed handle still sees the version it was taken at.
	a, _ := old.Tree.Get("a")
	b, _ := old.Tree.Get("b")
	require.True(t, a.Equal(statree.Int(1)))
	require.True(t, b.Equal(statree.Int(1)))
	require.Equal(t, uint64(1), old.Version)
}

func TestConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	s := snapshot.NewStore()

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Publisher: both fields always carry the same value, so a torn read
	// would be observable as a != b.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			v := statree.Int(int64(i))
			s.Publish(statree.Object(statree.F("a", v), statree.F("b", v)))
		}
		close(done)
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := s.Current()
				a, okA := snap.Tree.Get("a")
				b, okB := snap.Tree.Get("b")
				if snap.Version == 0 {
					continue
				}
				if !okA || !okB || !a.Equal(b) {
					panic(fmt.Sprintf("torn snapshot at version %d", snap.Version))
				}
			}
		}()
	}

	wg.Wait()
	require.Equal(t, uint64(500), s.Version())
}

func TestWaitForVersion(t *testing.T) {
	s := snapshot.NewStore()

	// Already satisfied: returns immediately.
	require.NoError(t, s.WaitForVersion(context.Background(), 0))

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Publish(statree.Object())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitForVersion(ctx, 1))
	require.GreaterOrEqual(t, s.Version(), uint64(1))
}

func TestWaitForVersionSeesInstalledSnapshot(t *testing.T) {
	s := snapshot.NewStore()
	const publishes = 50000

	go func() {
		for i := 1; i <= publishes; i++ {
			s.Publish(statree.Object(statree.F("n", statree.Int(int64(i)))))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// A successful wait must never be followed by a borrow of an older
	// snapshot: the pointer has to be visible before the version is.
	for target := uint64(1); target <= publishes; target += 97 {
		require.NoError(t, s.WaitForVersion(ctx, target))
		got := s.Current().Version
		require.GreaterOrEqual(t, got, target,
			"waited for version %d but borrowed version %d", target, got)
	}
}

func TestWaitForVersionTimesOut(t *testing.T) {
	s := snapshot.NewStore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := s.WaitForVersion(ctx, 5)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatsCounters(t *testing.T) {
	s := snapshot.NewStore()
	s.Publish(statree.Object())
	s.Publish(statree.Object())
	s.Current()
	s.Current()
	s.Current()

	st := s.Stats()
	require.Equal(t, uint64(2), st.Version)
	require.Equal(t, int64(2), st.Publishes)
	require.Equal(t, int64(3), st.Borrows)
}
