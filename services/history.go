package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"document-portal/models"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const DefaultHistoryTTL = time.Hour

// HistoryStore keeps the ordered chat turns of each session.
type HistoryStore interface {
	Get(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	Append(ctx context.Context, sessionID string, msgs ...models.ChatMessage) error
}

var (
	_ HistoryStore = (*MemoryHistoryStore)(nil)
	_ HistoryStore = (*RedisHistoryStore)(nil)
)

// MemoryHistoryStore holds histories in process. An entry expires after ttl
// without reads or writes.
type MemoryHistoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

func NewMemoryHistoryStore(ttl time.Duration) *MemoryHistoryStore {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &MemoryHistoryStore{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (s *MemoryHistoryStore) Get(_ context.Context, sessionID string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.load(sessionID)
	s.cache.Set(sessionID, msgs, s.ttl)
	return append([]models.ChatMessage(nil), msgs...), nil
}

func (s *MemoryHistoryStore) Append(_ context.Context, sessionID string, msgs ...models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load(sessionID)
	next := make([]models.ChatMessage, 0, len(current)+len(msgs))
	next = append(next, current...)
	next = append(next, msgs...)
	s.cache.Set(sessionID, next, s.ttl)
	return nil
}

func (s *MemoryHistoryStore) load(sessionID string) []models.ChatMessage {
	if x, found := s.cache.Get(sessionID); found {
		return x.([]models.ChatMessage)
	}
	return []models.ChatMessage{}
}

// RedisHistoryStore keeps each history as a Redis list of JSON messages so it
// survives restarts and is shared between instances.
type RedisHistoryStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisHistoryStore(rdb *redis.Client, ttl time.Duration) *RedisHistoryStore {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &RedisHistoryStore{rdb: rdb, ttl: ttl, prefix: "history:"}
}

func (s *RedisHistoryStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisHistoryStore) Get(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	key := s.key(sessionID)
	raw, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history for session %s: %w", sessionID, err)
	}
	if len(raw) > 0 {
		s.rdb.Expire(ctx, key, s.ttl)
	}

	msgs := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode history for session %s: %w", sessionID, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisHistoryStore) Append(ctx context.Context, sessionID string, msgs ...models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, len(msgs))
	for i, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		values[i] = data
	}

	key := s.key(sessionID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history for session %s: %w", sessionID, err)
	}
	return nil
}
