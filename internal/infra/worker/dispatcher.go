package worker

import (
	"context"
	"errors"
	"time"

	"ai-demo-builder/internal/domain"
	"ai-demo-builder/internal/domain/model"
	"ai-demo-builder/internal/domain/ports/repository"
	"ai-demo-builder/internal/infra/logging"
	"ai-demo-builder/internal/usecase"

	"github.com/rs/zerolog"
)

// SubjectLocker is the per-subject mutual exclusion the dispatcher takes
// before running a pipeline, so a duplicate delivery for the same subject
// cannot interleave status writes with an in-flight run.
type SubjectLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Dispatcher bridges queue delivery semantics to the pipeline executor.
//
// A delivery whose pipeline ran to any recorded outcome, success or failure,
// is acknowledged; a failed job is terminal, not retried by the queue.
// An undecodable body is requeued immediately so its receive count exhausts
// fast. A held subject lock or a saturated pool leaves the delivery on the
// processing list for the visibility sweep, which never loses a valid job.
type Dispatcher struct {
	queue      repository.JobQueue
	statusRepo repository.StatusRepository
	executor   usecase.PipelineExecutor
	locker     SubjectLocker
	lockTTL    time.Duration
	log        *zerolog.Logger
}

func NewDispatcher(
	queue repository.JobQueue,
	statusRepo repository.StatusRepository,
	executor usecase.PipelineExecutor,
	locker SubjectLocker,
	lockTTL time.Duration,
	logger *zerolog.Logger,
) *Dispatcher {
	dlog := logger.With().Str("component", "Dispatcher").Logger()
	return &Dispatcher{
		queue:      queue,
		statusRepo: statusRepo,
		executor:   executor,
		locker:     locker,
		lockTTL:    lockTTL,
		log:        &dlog,
	}
}

// Start consumes the queue until ctx is cancelled. Deliveries for distinct
// subjects run in parallel on the pool; stages within one job stay strictly
// sequential inside the executor.
func (d *Dispatcher) Start(ctx context.Context, pool *Pool) {
	d.log.Info().Msg("dispatcher started")
	for {
		if ctx.Err() != nil {
			d.log.Info().Msg("dispatcher stopping")
			return
		}

		delivery, err := d.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrQueueEmpty) || errors.Is(err, context.Canceled) {
				continue
			}
			d.log.Error().Err(err).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}

		del := delivery
		if err := pool.Submit(func(ctx context.Context) error {
			d.processDelivery(ctx, del)
			return nil
		}); err != nil {
			// No worker free. The delivery stays on the processing list;
			// the visibility sweep returns it to the queue once the
			// window lapses, so a busy pool never loses a job.
			d.log.Warn().Str("delivery_id", del.ID).Msg("worker pool saturated, leaving delivery for the visibility sweep")
		}
	}
}

func (d *Dispatcher) processDelivery(ctx context.Context, del *repository.Delivery) {
	job, err := del.Job()
	if err != nil {
		// Transport-level failure: the body never reached the executor.
		d.log.Error().Err(err).Str("delivery_id", del.ID).Msg("undecodable job body")
		if rerr := d.queue.Requeue(ctx, del); rerr != nil {
			d.log.Error().Err(rerr).Str("delivery_id", del.ID).Msg("requeue failed")
		}
		return
	}

	ctx = logging.WithJobID(ctx, job.JobID)
	ctx = logging.WithSubjectID(ctx, job.SubjectID)
	log := d.log.With().Str("job_id", job.JobID).Str("subject_id", job.SubjectID).Logger()

	// A redelivered job that already ran to a terminal state (for example
	// when its ack was lost and the sweep returned it) must not rerun.
	if rec, ferr := d.statusRepo.Find(ctx, job.SubjectID); ferr == nil && rec != nil &&
		rec.JobID == job.JobID && model.IsTerminal(rec.Status) {
		log.Info().Str("status", string(rec.Status)).Msg("job already terminal, acknowledging redelivery")
		if aerr := d.queue.Ack(ctx, del); aerr != nil {
			log.Error().Err(aerr).Msg("ack failed")
		}
		return
	}

	token, err := d.locker.TryLock(ctx, lockKey(job.SubjectID), d.lockTTL)
	if err != nil {
		// Another run for this subject is in flight. The delivery stays on
		// the processing list; the visibility sweep redelivers it after the
		// window lapses, by which time the active run has finished.
		log.Warn().Err(err).Msg("subject locked, leaving delivery for the visibility sweep")
		return
	}
	defer func() {
		if uerr := d.locker.Unlock(context.Background(), lockKey(job.SubjectID), token); uerr != nil {
			log.Warn().Err(uerr).Msg("unlock failed")
		}
	}()

	d.markProcessing(ctx, &log, job)

	rec := d.executor.Run(ctx, job)
	log.Info().Str("status", string(rec.Status)).Msg("pipeline run recorded")

	// Acknowledge regardless of the recorded outcome: redelivering a
	// permanently failing job would loop forever.
	if err := d.queue.Ack(ctx, del); err != nil {
		log.Error().Err(err).Msg("ack failed; delivery may be redelivered")
	}
}

func (d *Dispatcher) markProcessing(ctx context.Context, log *zerolog.Logger, job *model.RenderJob) {
	rec, err := d.statusRepo.Find(ctx, job.SubjectID)
	if err != nil || rec == nil {
		rec = &model.StatusRecord{SubjectID: job.SubjectID, CreatedAt: time.Now()}
	}
	rec.JobID = job.JobID
	rec.Advance(model.SessionStatusProcessing, model.StatusMessage(model.SessionStatusProcessing))
	if err := d.statusRepo.Save(ctx, rec); err != nil {
		log.Error().Err(err).Msg("processing status write failed")
	}
}

func lockKey(subjectID string) string { return "render:lock:" + subjectID }
