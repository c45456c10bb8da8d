package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echoroom/backend/internal/models"
	"github.com/echoroom/backend/internal/recordings"
	"github.com/echoroom/backend/internal/session"
	"github.com/echoroom/backend/pkg/queue"
	"github.com/echoroom/backend/pkg/storage"
)

// RecordingProcessor drives stopped recordings through the post-capture
// pipeline: measure the stored folder, then uploading -> processing ->
// completed. Jobs that exhaust their retries mark the recording failed.
type RecordingProcessor struct {
	recRepo *recordings.Repository
	s3      *storage.S3
	queue   *queue.Queue
	events  session.EventPublisher
	logger  *zap.Logger
}

func NewRecordingProcessor(recRepo *recordings.Repository, s3 *storage.S3, q *queue.Queue, events session.EventPublisher, logger *zap.Logger) *RecordingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingProcessor{recRepo: recRepo, s3: s3, queue: q, events: events, logger: logger}
}

// Process executes one recording processing job.
func (p *RecordingProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecordingProcess {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecordingProcessPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	rec, err := p.recRepo.GetByID(ctx, payload.RecordingID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			p.logger.Warn("recording gone, dropping job", zap.String("recording_id", payload.RecordingID.String()))
			return nil
		}
		return fmt.Errorf("load recording: %w", err)
	}
	if rec.IsTerminal() {
		p.logger.Info("recording already terminal, skipping",
			zap.String("recording_id", rec.ID.String()), zap.String("status", string(rec.Status)))
		return nil
	}

	if rec.Status != models.RecordingStatusProcessing {
		err := p.recRepo.UpdateStatusIf(ctx, rec.ID, []models.RecordingStatus{models.RecordingStatusUploading}, models.RecordingStatusProcessing)
		if err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}
	}

	size, err := p.s3.FolderSize(ctx, payload.FolderName)
	if err != nil {
		return fmt.Errorf("folder size: %w", err)
	}

	now := time.Now()
	duration := rec.Duration(now)
	if err := p.recRepo.Complete(ctx, rec.ID, now, duration, size, rec.ParticipantCount); err != nil {
		return fmt.Errorf("complete recording: %w", err)
	}

	p.publish(ctx, session.Event{
		ID:         uuid.New(),
		Name:       session.EventRecordingCompleted,
		Priority:   session.PriorityNormal,
		RoomID:     payload.RoomID,
		OccurredAt: now,
		Payload: map[string]interface{}{
			"recording_id":     rec.ID.String(),
			"total_size_bytes": size,
			"duration_seconds": duration,
		},
	})

	p.logger.Info("recording processing completed",
		zap.String("recording_id", rec.ID.String()),
		zap.Int64("total_size_bytes", size),
		zap.Int("duration_seconds", duration))
	return nil
}

// fail marks the recording failed after its job exhausted all retries.
func (p *RecordingProcessor) fail(ctx context.Context, job *queue.Job) {
	var payload queue.RecordingProcessPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return
	}
	rec, err := p.recRepo.GetByID(ctx, payload.RecordingID)
	if err != nil || rec.IsTerminal() {
		return
	}
	now := time.Now()
	if err := p.recRepo.Fail(ctx, rec.ID, now, rec.Duration(now)); err != nil {
		p.logger.Error("mark recording failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
		return
	}
	p.publish(ctx, session.Event{
		ID:         uuid.New(),
		Name:       session.EventRecordingFailed,
		Priority:   session.PriorityHigh,
		RoomID:     payload.RoomID,
		OccurredAt: now,
		Payload: map[string]interface{}{
			"recording_id": rec.ID.String(),
			"reason":       string(models.FailureProcessingError),
		},
	})
	p.logger.Warn("recording marked failed after retries", zap.String("recording_id", rec.ID.String()))
}

func (p *RecordingProcessor) publish(ctx context.Context, ev session.Event) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, ev); err != nil {
		p.logger.Warn("event publish failed", zap.Error(err), zap.String("event", ev.Name))
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *RecordingProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("recording worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if queue.Exhausted(job) {
				p.fail(ctx, job)
			}
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
