// File: internal/infra/redis/job_queue_test.go
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ai-demo-builder/internal/config"
	"ai-demo-builder/internal/domain"
	"ai-demo-builder/internal/domain/model"
	"ai-demo-builder/internal/domain/ports/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

func newTestQueue(t *testing.T, visibility time.Duration, maxReceive int) (*JobQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), &config.RedisConfig{URL: mr.Addr()})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	log := zerolog.Nop()
	q := NewJobQueue(client, config.QueueConfig{
		Name:              "render:jobs",
		PollInterval:      50 * time.Millisecond,
		VisibilityTimeout: visibility,
		MaxReceiveCount:   maxReceive,
	}, &log)
	return q, mr
}

func testJob(subjectID string) *model.RenderJob {
	return &model.RenderJob{
		JobID:     "job-1",
		SubjectID: subjectID,
		Kind:      model.JobKindFullRender,
		MediaItems: []model.MediaItem{
			{ID: "s1", Type: model.MediaTypeSlide, Key: "Intro", Order: 0},
		},
		CreatedAt: time.Now(),
	}
}

func listLen(t *testing.T, mr *miniredis.Miniredis, key string) int {
	t.Helper()
	if !mr.Exists(key) {
		return 0
	}
	entries, err := mr.List(key)
	if err != nil {
		t.Fatalf("list %s: %v", key, err)
	}
	return len(entries)
}

func TestJobQueueRoundTrip(t *testing.T) {
	t.Parallel()
	q, mr := newTestQueue(t, 30*time.Minute, 3)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("sess-1")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	del, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if del.ReceiveCount != 1 {
		t.Errorf("receiveCount = %d, want 1", del.ReceiveCount)
	}
	job, err := del.Job()
	if err != nil || job.SubjectID != "sess-1" {
		t.Errorf("job = %+v (err %v)", job, err)
	}

	if err := q.Ack(ctx, del); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if n := listLen(t, mr, "render:jobs:processing"); n != 0 {
		t.Errorf("processing list has %d entries after ack", n)
	}
	if n := listLen(t, mr, "render:jobs"); n != 0 {
		t.Errorf("main list has %d entries after ack", n)
	}
}

func TestDequeuePersistsReceiveCount(t *testing.T) {
	t.Parallel()
	q, mr := newTestQueue(t, 30*time.Minute, 3)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("sess-1")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	// The processing-list entry must carry the incremented count, not the
	// count it was enqueued with, or crashed consumers redeliver forever.
	entries, err := mr.List("render:jobs:processing")
	if err != nil || len(entries) != 1 {
		t.Fatalf("processing entries = %d (err %v), want 1", len(entries), err)
	}
	var stored repository.Delivery
	if err := json.Unmarshal([]byte(entries[0]), &stored); err != nil {
		t.Fatalf("decode processing entry: %v", err)
	}
	if stored.ReceiveCount != 1 {
		t.Errorf("persisted receiveCount = %d, want 1", stored.ReceiveCount)
	}
}

func TestSweepEscalatesCrashedConsumerToDeadLetter(t *testing.T) {
	t.Parallel()
	const maxReceive = 3
	q, mr := newTestQueue(t, time.Millisecond, maxReceive)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("sess-poison")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Each cycle: a consumer picks the job up and dies without acking,
	// then the sweep runs after the visibility window. The receive count
	// must escalate until the job is dead-lettered.
	deliveries := 0
	for cycle := 0; cycle < maxReceive+2; cycle++ {
		del, err := q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrQueueEmpty) {
				break
			}
			t.Fatalf("Dequeue: %v", err)
		}
		deliveries++
		if del.ReceiveCount != deliveries {
			t.Errorf("delivery %d receiveCount = %d", deliveries, del.ReceiveCount)
		}
		time.Sleep(5 * time.Millisecond)
		if _, err := q.Sweep(ctx); err != nil {
			t.Fatalf("Sweep: %v", err)
		}
	}

	if deliveries != maxReceive {
		t.Errorf("deliveries = %d, want exactly %d before dead-lettering", deliveries, maxReceive)
	}
	if n := listLen(t, mr, "render:jobs:dead"); n != 1 {
		t.Errorf("dead list = %d entries, want 1", n)
	}
	if n := listLen(t, mr, "render:jobs"); n != 0 {
		t.Errorf("main list = %d entries, want 0", n)
	}
	if n := listLen(t, mr, "render:jobs:processing"); n != 0 {
		t.Errorf("processing list = %d entries, want 0", n)
	}
}

func TestUnackedDeliveryWaitsForVisibilityWindow(t *testing.T) {
	t.Parallel()
	q, mr := newTestQueue(t, time.Hour, 3)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("sess-busy")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	// The consumer holds the delivery (subject locked or pool saturated).
	// A sweep inside the visibility window must leave it alone: not
	// redelivered early, not dead-lettered, not lost.
	swept, err := q.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if swept != 0 {
		t.Errorf("swept = %d, want 0 inside the visibility window", swept)
	}
	if _, err := q.Dequeue(ctx); !errors.Is(err, domain.ErrQueueEmpty) {
		t.Errorf("second Dequeue = %v, want ErrQueueEmpty", err)
	}
	if n := listLen(t, mr, "render:jobs:processing"); n != 1 {
		t.Errorf("processing list = %d entries, want the held delivery", n)
	}
	if n := listLen(t, mr, "render:jobs:dead"); n != 0 {
		t.Errorf("dead list = %d entries, want 0", n)
	}
}

func TestSweepRedeliversAfterVisibilityWindow(t *testing.T) {
	t.Parallel()
	q, _ := newTestQueue(t, time.Millisecond, 3)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("sess-1")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	first, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	swept, err := q.Sweep(ctx)
	if err != nil || swept != 1 {
		t.Fatalf("Sweep = %d (err %v), want 1", swept, err)
	}

	second, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("redelivery Dequeue: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("redelivered id = %q, want %q", second.ID, first.ID)
	}
	if second.ReceiveCount != first.ReceiveCount+1 {
		t.Errorf("redelivered receiveCount = %d, want %d", second.ReceiveCount, first.ReceiveCount+1)
	}
}

func TestRequeueDeadLettersAfterMaxReceive(t *testing.T) {
	t.Parallel()
	const maxReceive = 3
	q, mr := newTestQueue(t, 30*time.Minute, maxReceive)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testJob("sess-bad")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// The immediate-requeue path is reserved for poison deliveries; it
	// must exhaust quickly rather than cycle forever.
	for i := 0; i < maxReceive; i++ {
		del, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue %d: %v", i, err)
		}
		if err := q.Requeue(ctx, del); err != nil {
			t.Fatalf("Requeue %d: %v", i, err)
		}
	}

	if _, err := q.Dequeue(ctx); !errors.Is(err, domain.ErrQueueEmpty) {
		t.Fatalf("Dequeue after exhaustion = %v, want ErrQueueEmpty", err)
	}
	if n := listLen(t, mr, "render:jobs:dead"); n != 1 {
		t.Errorf("dead list = %d entries, want 1", n)
	}
}
