package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c-daly/logos/internal/types"
)

// nilFactory satisfies the pool without a live driver; Session.Release
// tolerates a nil raw session.
func nilFactory(ctx context.Context) neo4j.SessionWithContext {
	return nil
}

func TestSessionPool_AcquireRelease(t *testing.T) {
	pool := newSessionPool(nilFactory, 2, time.Second)
	ctx := context.Background()

	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, pool.Utilization(), 0.001)

	s2, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pool.Utilization(), 0.001)

	pool.Release(ctx, s1)
	pool.Release(ctx, s2)
	assert.InDelta(t, 0.0, pool.Utilization(), 0.001)
}

func TestSessionPool_BlocksWhenExhausted(t *testing.T) {
	pool := newSessionPool(nilFactory, 1, time.Second)
	ctx := context.Background()

	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)

	acquired := make(chan *Session, 1)
	go func() {
		s, err := pool.Acquire(ctx)
		require.NoError(t, err)
		acquired <- s
	}()

	// Second acquire must block while the only session is held.
	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while pool was exhausted")
	case <-time.After(50 * time.Millisecond):
	}

	pool.Release(ctx, s1)

	select {
	case s2 := <-acquired:
		pool.Release(ctx, s2)
	case <-time.After(time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestSessionPool_AcquireTimeout(t *testing.T) {
	pool := newSessionPool(nilFactory, 1, 50*time.Millisecond)
	ctx := context.Background()

	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer pool.Release(ctx, s1)

	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.Equal(t, types.ACQUIRE_TIMEOUT, types.CodeOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSessionPool_CallerDeadlineWins(t *testing.T) {
	pool := newSessionPool(nilFactory, 1, time.Minute)

	s1, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(context.Background(), s1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.Equal(t, types.ACQUIRE_TIMEOUT, types.CodeOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSessionPool_NeverExceedsBound(t *testing.T) {
	const size = 4
	const callers = 100

	pool := newSessionPool(nilFactory, size, 5*time.Second)
	ctx := context.Background()

	var inUse atomic.Int64
	var peak atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := pool.Acquire(ctx)
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			n := inUse.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inUse.Add(-1)
			pool.Release(ctx, s)
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int64(size))
	assert.InDelta(t, 0.0, pool.Utilization(), 0.001)
}

func TestSessionPool_CloseAllIsTerminal(t *testing.T) {
	pool := newSessionPool(nilFactory, 1, time.Second)
	ctx := context.Background()

	s1, err := pool.Acquire(ctx)
	require.NoError(t, err)

	// A waiter blocked on an exhausted pool is interrupted by CloseAll.
	waiterErr := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(ctx)
		waiterErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	pool.CloseAll(ctx)

	select {
	case err := <-waiterErr:
		require.Error(t, err)
		assert.Equal(t, types.POOL_CLOSED, types.CodeOf(err))
	case <-time.After(time.Second):
		t.Fatal("waiter was not interrupted by CloseAll")
	}

	// Further acquires are refused.
	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.Equal(t, types.POOL_CLOSED, types.CodeOf(err))

	// Releasing an outstanding session after close is safe.
	pool.Release(ctx, s1)
	pool.Release(ctx, s1) // double release is a no-op
}
