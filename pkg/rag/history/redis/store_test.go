package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"review-rag-be/pkg/rag/history"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping redis history test: REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)

	rdb := redis.NewClient(opt)
	t.Cleanup(func() { rdb.Close() })
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Skipping redis history test: %v", err)
	}
	return NewStore(rdb, "reviewrag:test:"+uuid.NewString()+":", time.Minute)
}

func TestRedisStoreAppendAndRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	empty, err := s.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	require.NoError(t, s.Append(ctx, "s1", history.UserTurn("Is this blender good?"), history.AssistantTurn("Yes.")))

	tr, err := s.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, tr.Turns, 2)
	assert.Equal(t, history.RoleUser, tr.Turns[0].Role)
	assert.Equal(t, "Yes.", tr.Turns[1].Text)

	require.NoError(t, s.Delete(ctx, "s1"))
}

func TestRedisStoreRejectsEmptyID(t *testing.T) {
	s := NewStore(nil, "", 0)
	_, err := s.GetOrCreate(context.Background(), "")
	assert.ErrorIs(t, err, history.ErrEmptySessionID)
	assert.Equal(t, defaultKeyPrefix+"abc", s.key("abc"))
}
