package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"document-portal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore(time.Hour)

	msgs, err := store.Get(ctx, "session_a")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	require.NoError(t, store.Append(ctx, "session_a", models.UserMessage("hi")))
	require.NoError(t, store.Append(ctx, "session_a", models.AssistantMessage("hello"), models.UserMessage("again")))

	msgs, err = store.Get(ctx, "session_a")
	require.NoError(t, err)
	assert.Equal(t, []models.ChatMessage{
		models.UserMessage("hi"),
		models.AssistantMessage("hello"),
		models.UserMessage("again"),
	}, msgs)

	other, err := store.Get(ctx, "session_b")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryHistoryStore_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore(time.Hour)
	require.NoError(t, store.Append(ctx, "s", models.UserMessage("original")))

	msgs, _ := store.Get(ctx, "s")
	msgs[0].Content = "mutated"

	again, _ := store.Get(ctx, "s")
	assert.Equal(t, "original", again[0].Content)
}

func TestMemoryHistoryStore_SlidingExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore(300 * time.Millisecond)
	require.NoError(t, store.Append(ctx, "s", models.UserMessage("kept")))

	time.Sleep(200 * time.Millisecond)
	msgs, _ := store.Get(ctx, "s")
	require.Len(t, msgs, 1)

	time.Sleep(200 * time.Millisecond)
	msgs, _ = store.Get(ctx, "s")
	require.Len(t, msgs, 1, "reads extend the entry's lifetime")

	time.Sleep(450 * time.Millisecond)
	msgs, _ = store.Get(ctx, "s")
	assert.Empty(t, msgs)
}

func TestRedisHistoryStore(t *testing.T) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(addr)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ctx := context.Background()
	store := NewRedisHistoryStore(rdb, time.Minute)
	id := fmt.Sprintf("test_%d", time.Now().UnixNano())
	defer rdb.Del(ctx, store.key(id))

	msgs, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, store.Append(ctx, id, models.UserMessage("q"), models.AssistantMessage("a")))
	msgs, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []models.ChatMessage{models.UserMessage("q"), models.AssistantMessage("a")}, msgs)

	ttl, err := rdb.TTL(ctx, store.key(id)).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
