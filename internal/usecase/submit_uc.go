package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-demo-builder/internal/domain"
	"ai-demo-builder/internal/domain/model"
	"ai-demo-builder/internal/domain/ports/repository"
	"ai-demo-builder/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SubmitResult is the immediate acknowledgement returned to the caller.
// The pipeline itself runs out-of-band; callers poll for progress.
type SubmitResult struct {
	JobID     string              `json:"jobId"`
	SubjectID string              `json:"subjectId"`
	Status    model.SessionStatus `json:"status"`
	QueuedAt  time.Time           `json:"queuedAt"`
}

// SubmitUseCase is the job queue gateway: it validates a render request,
// enqueues it, and returns without waiting for pipeline execution.
type SubmitUseCase interface {
	Submit(ctx context.Context, subjectID string, items []model.MediaItem, opts model.RenderOptions) (*SubmitResult, error)
}

var _ SubmitUseCase = (*submitUseCase)(nil)

type submitUseCase struct {
	statusRepo repository.StatusRepository
	queue      repository.JobQueue
	log        *zerolog.Logger
}

func NewSubmitUseCase(statusRepo repository.StatusRepository, queue repository.JobQueue, logger *zerolog.Logger) SubmitUseCase {
	uclog := logger.With().Str("component", "SubmitUC").Logger()
	return &submitUseCase{statusRepo: statusRepo, queue: queue, log: &uclog}
}

func (uc *submitUseCase) Submit(ctx context.Context, subjectID string, items []model.MediaItem, opts model.RenderOptions) (*SubmitResult, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subjectId is required", domain.ErrInvalidRequest)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: mediaItems are required", domain.ErrInvalidRequest)
	}

	// A subject with a run in flight cannot be resubmitted; a terminal
	// record may be retried by overwrite.
	existing, err := uc.statusRepo.Find(ctx, subjectID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		// Degraded: cannot check in-flight state; admit the job anyway.
		uc.log.Warn().Err(err).Str("subject_id", subjectID).Msg("in-flight check failed")
	}
	if existing != nil && !model.IsTerminal(existing.Status) {
		return nil, domain.ErrJobInFlight
	}

	opts.Normalize()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = fmt.Sprintf("item_%d", i)
		}
	}

	job := &model.RenderJob{
		JobID:      uuid.NewString(),
		SubjectID:  subjectID,
		Kind:       model.JobKindFullRender,
		MediaItems: items,
		Options:    opts,
		CreatedAt:  time.Now(),
	}

	if err := uc.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue render job: %w", err)
	}
	metrics.IncJobSubmitted()

	rec := &model.StatusRecord{
		SubjectID: subjectID,
		JobID:     job.JobID,
		Status:    model.SessionStatusQueued,
		Step:      model.StatusMessage(model.SessionStatusQueued),
		Progress:  model.ProgressFor(model.SessionStatusQueued),
		CreatedAt: time.Now(),
	}
	if err := uc.statusRepo.Save(ctx, rec); err != nil {
		// The job is already queued; the caller just loses progress
		// visibility until the dispatcher's first write lands.
		uc.log.Error().Err(err).Str("subject_id", subjectID).Str("job_id", job.JobID).Msg("queued status write failed")
	}

	uc.log.Info().Str("subject_id", subjectID).Str("job_id", job.JobID).Int("items", len(items)).Msg("render job queued")
	return &SubmitResult{
		JobID:     job.JobID,
		SubjectID: subjectID,
		Status:    model.SessionStatusQueued,
		QueuedAt:  job.CreatedAt,
	}, nil
}
