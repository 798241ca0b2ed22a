package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"ai-demo-builder/internal/config"
	"ai-demo-builder/internal/domain"
	"ai-demo-builder/internal/domain/model"
	"ai-demo-builder/internal/domain/ports/repository"
	"ai-demo-builder/internal/infra/metrics"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var _ repository.JobQueue = (*JobQueue)(nil)

// JobQueue is a Redis-list-backed durable queue with at-least-once delivery.
//
// Dequeue moves an entry from the main list onto a processing list
// (BRPOPLPUSH) and records its pickup time; Ack removes it from the
// processing list. Entries that sit on the processing list longer than the
// visibility timeout are swept back onto the main list for redelivery.
// Entries whose receive count is exhausted go to a dead-letter list instead.
type JobQueue struct {
	client       *Client
	key          string
	pollInterval time.Duration
	visibility   time.Duration
	maxReceive   int
	log          *zerolog.Logger
}

func NewJobQueue(client *Client, cfg config.QueueConfig, logger *zerolog.Logger) *JobQueue {
	qlog := logger.With().Str("component", "JobQueue").Logger()
	return &JobQueue{
		client:       client,
		key:          cfg.Name,
		pollInterval: cfg.PollInterval,
		visibility:   cfg.VisibilityTimeout,
		maxReceive:   cfg.MaxReceiveCount,
		log:          &qlog,
	}
}

func (q *JobQueue) processingKey() string { return q.key + ":processing" }
func (q *JobQueue) inflightKey() string   { return q.key + ":inflight" }
func (q *JobQueue) deadKey() string       { return q.key + ":dead" }

func (q *JobQueue) Enqueue(ctx context.Context, job *model.RenderJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	d := repository.Delivery{
		ID:           uuid.NewString(),
		ReceiveCount: 0,
		EnqueuedAt:   time.Now(),
		Body:         body,
	}
	raw, err := json.Marshal(&d)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw)
}

func (q *JobQueue) Dequeue(ctx context.Context) (*repository.Delivery, error) {
	raw, err := q.client.BRPopLPush(ctx, q.key, q.processingKey(), q.pollInterval)
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrQueueEmpty
		}
		return nil, err
	}

	var d repository.Delivery
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		// Not even the envelope decodes; push the garbage straight to the
		// dead-letter list so it cannot wedge the queue.
		q.log.Error().Err(err).Msg("undecodable queue entry, dead-lettering")
		_, _ = q.client.LRem(ctx, q.processingKey(), 1, raw)
		_ = q.client.LPush(ctx, q.deadKey(), raw)
		return nil, domain.ErrQueueEmpty
	}
	d.ReceiveCount++

	// Rewrite the processing entry with the incremented count, so a swept
	// redelivery of this entry escalates toward the dead-letter list. The
	// old entry is removed after the new one lands; if the removal is lost
	// the stale entry just becomes one extra redelivery.
	if updated, merr := json.Marshal(&d); merr == nil {
		if perr := q.client.LPush(ctx, q.processingKey(), updated); perr == nil {
			if _, rerr := q.client.LRem(ctx, q.processingKey(), 1, raw); rerr != nil {
				q.log.Warn().Err(rerr).Str("delivery_id", d.ID).Msg("stale processing entry not removed")
			}
			raw = string(updated)
		}
	}
	d.Raw = raw

	if err := q.client.HSet(ctx, q.inflightKey(), raw, strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
		q.log.Warn().Err(err).Str("delivery_id", d.ID).Msg("could not record pickup time")
	}
	return &d, nil
}

func (q *JobQueue) Ack(ctx context.Context, d *repository.Delivery) error {
	if _, err := q.client.LRem(ctx, q.processingKey(), 1, d.Raw); err != nil {
		return err
	}
	return q.client.HDel(ctx, q.inflightKey(), d.Raw)
}

// Requeue returns a delivery for another attempt, or dead-letters it when
// its receive count is exhausted.
func (q *JobQueue) Requeue(ctx context.Context, d *repository.Delivery) error {
	if _, err := q.client.LRem(ctx, q.processingKey(), 1, d.Raw); err != nil {
		return err
	}
	_ = q.client.HDel(ctx, q.inflightKey(), d.Raw)

	if d.ReceiveCount >= q.maxReceive {
		q.log.Warn().Str("delivery_id", d.ID).Int("receive_count", d.ReceiveCount).Msg("receive count exhausted, dead-lettering")
		return q.client.LPush(ctx, q.deadKey(), d.Raw)
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw)
}

// Sweep returns stale processing entries to the main list and refreshes the
// queue depth gauge. Called periodically; the visibility timeout must exceed
// the worst-case pipeline duration.
func (q *JobQueue) Sweep(ctx context.Context) (int, error) {
	entries, err := q.client.LRange(ctx, q.processingKey(), 0, -1)
	if err != nil {
		return 0, err
	}

	swept := 0
	cutoff := time.Now().Add(-q.visibility).Unix()
	for _, raw := range entries {
		ts, err := q.client.HGet(ctx, q.inflightKey(), raw)
		if err == nil {
			picked, perr := strconv.ParseInt(ts, 10, 64)
			if perr == nil && picked > cutoff {
				continue // still within its visibility window
			}
		} else if err != redis.Nil {
			continue
		}

		var d repository.Delivery
		if uerr := json.Unmarshal([]byte(raw), &d); uerr != nil {
			_, _ = q.client.LRem(ctx, q.processingKey(), 1, raw)
			_ = q.client.LPush(ctx, q.deadKey(), raw)
			continue
		}
		d.Raw = raw
		if err := q.Requeue(ctx, &d); err != nil {
			q.log.Error().Err(err).Str("delivery_id", d.ID).Msg("sweep requeue failed")
			continue
		}
		swept++
	}

	if depth, err := q.client.LLen(ctx, q.key); err == nil {
		metrics.SetQueueDepth(depth)
	}
	return swept, nil
}
