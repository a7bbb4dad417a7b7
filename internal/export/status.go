package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Export delivery states.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const statusTTL = 24 * time.Hour

// Status is the delivery outcome for one session's result.
type Status struct {
	State     string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusStore keeps export status per session in Redis under quiz:export:{id}.
type StatusStore struct {
	client *redis.Client
}

// NewStatusStore creates a Redis-backed status store.
func NewStatusStore(client *redis.Client) *StatusStore {
	return &StatusStore{client: client}
}

// Set records the status for a session.
func (s *StatusStore) Set(ctx context.Context, sessionID uuid.UUID, st Status) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := s.client.Set(ctx, statusKey(sessionID), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the status, or nil when nothing was recorded.
func (s *StatusStore) Get(ctx context.Context, sessionID uuid.UUID) (*Status, error) {
	data, err := s.client.Get(ctx, statusKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return &st, nil
}

func statusKey(id uuid.UUID) string {
	return "quiz:export:" + id.String()
}
