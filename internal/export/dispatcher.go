package export

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codekids/quiz-backend/internal/quiz"
	"github.com/codekids/quiz-backend/pkg/queue"
)

// Enqueuer is the part of the job queue the dispatcher needs.
type Enqueuer interface {
	EnqueueExport(ctx context.Context, payload queue.ExportPayload) error
}

// QueueDispatcher marks the export pending and enqueues one job for the worker.
type QueueDispatcher struct {
	queue    Enqueuer
	statuses *StatusStore
	logger   *zap.Logger
}

// NewQueueDispatcher creates a dispatcher. statuses may be nil.
func NewQueueDispatcher(q Enqueuer, statuses *StatusStore, logger *zap.Logger) *QueueDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueDispatcher{queue: q, statuses: statuses, logger: logger}
}

// Dispatch enqueues the export job for a completed session.
func (d *QueueDispatcher) Dispatch(ctx context.Context, sessionID uuid.UUID, result quiz.Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if d.statuses != nil {
		if err := d.statuses.Set(ctx, sessionID, Status{State: StatusPending}); err != nil {
			d.logger.Warn("set export status failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		}
	}
	if err := d.queue.EnqueueExport(ctx, queue.ExportPayload{SessionID: sessionID, Result: body}); err != nil {
		if d.statuses != nil {
			_ = d.statuses.Set(ctx, sessionID, Status{State: StatusFailed, Error: "enqueue failed"})
		}
		return fmt.Errorf("enqueue export: %w", err)
	}
	return nil
}
