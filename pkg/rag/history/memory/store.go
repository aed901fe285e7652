package memory

import (
	"context"
	"sync"
	"time"

	"review-rag-be/pkg/rag/history"

	"github.com/patrickmn/go-cache"
)

type entry struct {
	mu    sync.Mutex
	turns []history.Turn
}

// Store keeps transcripts in process memory. With a zero TTL nothing is ever
// evicted and transcripts grow without bound.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

var _ history.HistoryStore = (*Store)(nil)

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		return &Store{cache: cache.New(cache.NoExpiration, 0), ttl: cache.NoExpiration}
	}
	return &Store{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (s *Store) entry(sessionID string) *entry {
	if x, found := s.cache.Get(sessionID); found {
		return x.(*entry)
	}
	e := &entry{}
	// Add fails when another goroutine registered the key first; use theirs.
	if err := s.cache.Add(sessionID, e, s.ttl); err != nil {
		if x, found := s.cache.Get(sessionID); found {
			return x.(*entry)
		}
		s.cache.Set(sessionID, e, s.ttl)
	}
	return e
}

func (s *Store) GetOrCreate(ctx context.Context, sessionID string) (*history.Transcript, error) {
	if sessionID == "" {
		return nil, history.ErrEmptySessionID
	}
	e := s.entry(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	turns := make([]history.Turn, len(e.turns))
	copy(turns, e.turns)
	return &history.Transcript{SessionID: sessionID, Turns: turns}, nil
}

func (s *Store) Append(ctx context.Context, sessionID string, turns ...history.Turn) error {
	if sessionID == "" {
		return history.ErrEmptySessionID
	}
	e := s.entry(sessionID)

	e.mu.Lock()
	e.turns = append(e.turns, turns...)
	e.mu.Unlock()

	if s.ttl != cache.NoExpiration {
		// refresh expiry on activity
		s.cache.Set(sessionID, e, s.ttl)
	}
	return nil
}

func (s *Store) Delete(sessionID string) {
	s.cache.Delete(sessionID)
}

func (s *Store) Count() int {
	return s.cache.ItemCount()
}
