package chain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLocksFIFO(t *testing.T) {
	l := newSessionLocks()
	ctx := context.Background()

	release, err := l.acquire(ctx, "s1")
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := l.acquire(ctx, "s1")
			require.NoError(t, err)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			r()
		}(i)
		// let each waiter enqueue before the next
		time.Sleep(10 * time.Millisecond)
	}

	release()
	wg.Wait()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, l.active())
}

func TestSessionLocksIndependentKeys(t *testing.T) {
	l := newSessionLocks()
	ctx := context.Background()

	r1, err := l.acquire(ctx, "a")
	require.NoError(t, err)
	r2, err := l.acquire(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, l.active())
	r1()
	r2()
	assert.Equal(t, 0, l.active())
}

func TestSessionLocksCancelWhileWaiting(t *testing.T) {
	l := newSessionLocks()
	release, err := l.acquire(context.Background(), "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.acquire(ctx, "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Equal(t, 0, l.active())

	r, err := l.acquire(context.Background(), "s1")
	require.NoError(t, err)
	r()
}
