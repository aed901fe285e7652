package chain

import (
	"context"
	"sync"
)

// sessionLocks hands out one turn at a time per session id, in arrival order.
// Keys with no holder and no waiters are dropped, so the map only holds active sessions.
type sessionLocks struct {
	mu     sync.Mutex
	queues map[string][]chan struct{}
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{queues: make(map[string][]chan struct{})}
}

// acquire blocks until the caller is at the head of key's queue or ctx is done.
func (l *sessionLocks) acquire(ctx context.Context, key string) (func(), error) {
	ch := make(chan struct{})

	l.mu.Lock()
	q := l.queues[key]
	l.queues[key] = append(q, ch)
	if len(q) == 0 {
		close(ch)
	}
	l.mu.Unlock()

	release := func() { l.release(key) }

	select {
	case <-ch:
		return release, nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	select {
	case <-ch:
		// granted while we were giving up; pass it on
		l.mu.Unlock()
		release()
		return nil, ctx.Err()
	default:
	}
	q = l.queues[key]
	for i, c := range q {
		if c == ch {
			l.queues[key] = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(l.queues[key]) == 0 {
		delete(l.queues, key)
	}
	l.mu.Unlock()
	return nil, ctx.Err()
}

func (l *sessionLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := l.queues[key]
	if len(q) == 0 {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(l.queues, key)
		return
	}
	l.queues[key] = q
	close(q[0])
}

func (l *sessionLocks) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues)
}
