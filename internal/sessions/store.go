package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/codekids/quiz-backend/internal/quiz"
)

// DefaultSnapshotTTL bounds how long an abandoned session can be restored.
const DefaultSnapshotTTL = 2 * time.Hour

// RedisStore keeps session snapshots under quiz:session:{id} with a TTL refreshed on every save.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a snapshot store. ttl <= 0 means DefaultSnapshotTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Save writes the snapshot.
func (s *RedisStore) Save(ctx context.Context, id uuid.UUID, snap quiz.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load reads a snapshot; ok is false when none is stored.
func (s *RedisStore) Load(ctx context.Context, id uuid.UUID) (snap quiz.Snapshot, ok bool, err error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return quiz.Snapshot{}, false, nil
	}
	if err != nil {
		return quiz.Snapshot{}, false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return quiz.Snapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// Delete removes the snapshot.
func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) key(id uuid.UUID) string {
	return "quiz:session:" + id.String()
}
