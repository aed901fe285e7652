package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"review-rag-be/pkg/rag/history"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "reviewrag:history:"

// Store keeps each transcript as a Redis list of JSON encoded turns.
// A session exists implicitly: an absent key reads as an empty transcript.
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ history.HistoryStore = (*Store)(nil)

// NewStore wraps an existing client. ttl <= 0 keeps keys forever.
func NewStore(rdb *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *Store) GetOrCreate(ctx context.Context, sessionID string) (*history.Transcript, error) {
	if sessionID == "" {
		return nil, history.ErrEmptySessionID
	}

	raw, err := s.rdb.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", sessionID, err)
	}

	turns := make([]history.Turn, 0, len(raw))
	for i, item := range raw {
		var turn history.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn %d of %s: %w", i, sessionID, err)
		}
		turns = append(turns, turn)
	}
	return &history.Transcript{SessionID: sessionID, Turns: turns}, nil
}

func (s *Store) Append(ctx context.Context, sessionID string, turns ...history.Turn) error {
	if sessionID == "" {
		return history.ErrEmptySessionID
	}
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values = append(values, data)
	}

	key := s.key(sessionID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis rpush %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, s.key(sessionID)).Err()
}
