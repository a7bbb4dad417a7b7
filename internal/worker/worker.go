package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codekids/quiz-backend/internal/export"
	"github.com/codekids/quiz-backend/internal/models"
	"github.com/codekids/quiz-backend/internal/quiz"
	"github.com/codekids/quiz-backend/internal/realtime"
	"github.com/codekids/quiz-backend/pkg/monitoring"
	"github.com/codekids/quiz-backend/pkg/queue"
)

// JobQueue is the part of the Redis queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (deadLettered bool, err error)
}

// StatusWriter records per-session export status.
type StatusWriter interface {
	Set(ctx context.Context, sessionID uuid.UUID, st export.Status) error
}

// LogRecorder appends to the export delivery log.
type LogRecorder interface {
	Record(ctx context.Context, l *models.ExportLog) error
}

// EventPublisher notifies session watchers.
type EventPublisher interface {
	Publish(sessionID uuid.UUID, event string, payload interface{})
}

// ExportProcessor processes export jobs: decode the result, run the exporters, record the outcome.
// A retried job only visits the destinations that have not accepted the result yet.
type ExportProcessor struct {
	exporters *export.Multi
	queue     JobQueue
	statuses  StatusWriter
	logs      LogRecorder
	events    EventPublisher
	backoff   time.Duration
	logger    *zap.Logger
}

// NewExportProcessor creates an export processor. statuses, logs and events may be nil.
func NewExportProcessor(exporter export.Exporter, q JobQueue, statuses StatusWriter, logs LogRecorder, events EventPublisher, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	multi, ok := exporter.(*export.Multi)
	if !ok {
		multi = export.NewMulti(exporter)
	}
	return &ExportProcessor{
		exporters: multi,
		queue:     q,
		statuses:  statuses,
		logs:      logs,
		events:    events,
		backoff:   queue.RetryBackoff,
		logger:    logger,
	}
}

// Process executes one export job and reports the outcome of every destination it visited.
// On partial failure the job payload is rewritten to remember the destinations that succeeded.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) (uuid.UUID, quiz.Result, []export.Delivery, error) {
	if job.Type != queue.JobTypeExport {
		return uuid.Nil, quiz.Result{}, nil, fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return uuid.Nil, quiz.Result{}, nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	var result quiz.Result
	if err := json.Unmarshal(payload.Result, &result); err != nil {
		return payload.SessionID, quiz.Result{}, nil, fmt.Errorf("unmarshal result: %w", err)
	}
	if p.exporters.Len() == 0 {
		return payload.SessionID, result, nil, export.ErrNotConfigured
	}

	deliveries := p.exporters.Deliver(ctx, payload.SessionID, result, payload.Done)
	for _, d := range deliveries {
		if d.Err != nil {
			continue
		}
		payload.Done = append(payload.Done, d.Destination)
		p.logger.Info("result exported",
			zap.String("session_id", payload.SessionID.String()),
			zap.String("destination", d.Destination),
		)
	}
	err := export.JoinFailures(deliveries)
	if err != nil {
		body, mErr := json.Marshal(payload)
		if mErr != nil {
			p.logger.Warn("rewrite job payload failed", zap.Error(mErr), zap.String("job_id", job.ID))
		} else {
			job.Payload = body
		}
	}
	return payload.SessionID, result, deliveries, err
}

// ProcessNext dequeues and handles at most one job. It reports whether a job was handled.
func (p *ExportProcessor) ProcessNext(ctx context.Context) (bool, error) {
	job, err := p.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))

	attempt := job.Attempt + 1
	sessionID, result, deliveries, procErr := p.Process(ctx, job)
	if procErr == nil {
		monitoring.Exports.WithLabelValues(export.StatusSucceeded).Inc()
		p.outcome(ctx, sessionID, result, deliveries, attempt, export.Status{State: export.StatusSucceeded, Attempts: attempt})
		return true, nil
	}

	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", attempt), zap.Error(procErr))
	monitoring.Exports.WithLabelValues(export.StatusFailed).Inc()
	deadLettered, reErr := p.queue.Retry(ctx, job)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
		deadLettered = true
	}
	state := export.StatusPending
	if deadLettered {
		state = export.StatusFailed
	}
	p.outcome(ctx, sessionID, result, deliveries, attempt, export.Status{State: state, Error: procErr.Error(), Attempts: attempt})
	if !deadLettered {
		p.sleep(ctx)
	}
	return true, nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ExportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}
		if _, err := p.ProcessNext(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
		}
	}
}

// noDestination labels log entries for jobs that failed before reaching any destination.
const noDestination = "none"

func (p *ExportProcessor) outcome(ctx context.Context, sessionID uuid.UUID, result quiz.Result, deliveries []export.Delivery, attempt int, st export.Status) {
	if sessionID == uuid.Nil {
		return
	}
	if p.statuses != nil {
		if err := p.statuses.Set(ctx, sessionID, st); err != nil {
			p.logger.Warn("set export status failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		}
	}
	if p.logs != nil {
		if len(deliveries) == 0 && st.Error != "" {
			deliveries = []export.Delivery{{Destination: noDestination, Err: errors.New(st.Error)}}
		}
		for _, d := range deliveries {
			entry := &models.ExportLog{
				SessionID:       sessionID,
				ParticipantName: result.Participant.Name,
				Score:           result.Score,
				TotalQuestions:  result.TotalQuestions,
				Destination:     d.Destination,
				Status:          models.ExportLogStatusSucceeded,
				Attempt:         attempt,
				CompletedAt:     result.Timestamp,
			}
			if d.Err != nil {
				entry.Status = models.ExportLogStatusFailed
				entry.ErrorMessage = d.Err.Error()
			}
			if err := p.logs.Record(ctx, entry); err != nil {
				p.logger.Warn("record export log failed", zap.Error(err), zap.String("session_id", sessionID.String()))
			}
		}
	}
	if p.events != nil {
		p.events.Publish(sessionID, realtime.EventExportStatus, st)
	}
}

func (p *ExportProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
