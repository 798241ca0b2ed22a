package repository

import (
	"context"
	"encoding/json"
	"time"

	"ai-demo-builder/internal/domain/model"
)

// Delivery is one at-least-once queue delivery. Raw holds the exact wire
// payload so the backing queue can acknowledge the precise entry it handed
// out. Body is decoded lazily by the consumer; a malformed body is a
// transport failure, not a pipeline failure.
type Delivery struct {
	ID           string          `json:"id"`
	ReceiveCount int             `json:"receiveCount"`
	EnqueuedAt   time.Time       `json:"enqueuedAt"`
	Body         json.RawMessage `json:"job"`

	Raw string `json:"-"`
}

// Job decodes the delivery body into a RenderJob.
func (d *Delivery) Job() (*model.RenderJob, error) {
	var job model.RenderJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobQueue is the durable queue between the gateway and the dispatcher.
//
// Contract: Dequeue hands a delivery to exactly one consumer at a time, but
// an unacknowledged delivery reappears after the visibility timeout, so
// consumers must tolerate redelivery. Ack removes the delivery for good;
// Requeue returns it for another attempt (or dead-letters it once the
// receive count is exhausted — the backing implementation decides).
type JobQueue interface {
	Enqueue(ctx context.Context, job *model.RenderJob) error
	// Dequeue blocks up to the implementation's poll interval and returns
	// domain.ErrQueueEmpty when nothing arrived.
	Dequeue(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Requeue(ctx context.Context, d *Delivery) error
}
