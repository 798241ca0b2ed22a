// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"ai-demo-builder/internal/domain"
	"ai-demo-builder/internal/domain/model"
	"ai-demo-builder/internal/domain/ports/repository"
)

// memStatusRepo is a small in-memory status store used by unit tests.
type memStatusRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.StatusRecord
	history map[string][]model.StatusRecord // every save, for monotonicity checks
	saveErr error
	findErr error
}

func newMemStatusRepo() *memStatusRepo {
	return &memStatusRepo{
		store:   make(map[string]*model.StatusRecord),
		history: make(map[string][]model.StatusRecord),
	}
}

func (m *memStatusRepo) Save(ctx context.Context, rec *model.StatusRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Outputs = append([]model.RenderOutput(nil), rec.Outputs...)
	m.store[rec.SubjectID] = &cp
	m.history[rec.SubjectID] = append(m.history[rec.SubjectID], cp)
	return nil
}

func (m *memStatusRepo) Find(ctx context.Context, subjectID string) (*model.StatusRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.store[subjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	cp.Outputs = append([]model.RenderOutput(nil), rec.Outputs...)
	return &cp, nil
}

// memQueue records enqueued jobs without delivering them.
type memQueue struct {
	mu         sync.Mutex
	jobs       []*model.RenderJob
	enqueueErr error
}

func (m *memQueue) Enqueue(ctx context.Context, job *model.RenderJob) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *memQueue) Dequeue(ctx context.Context) (*repository.Delivery, error) {
	return nil, domain.ErrQueueEmpty
}

func (m *memQueue) Ack(ctx context.Context, d *repository.Delivery) error     { return nil }
func (m *memQueue) Requeue(ctx context.Context, d *repository.Delivery) error { return nil }

// fakeInvoker scripts per-worker responses. A response entry may be an
// error (the call fails) or any value that marshals to the result object.
type fakeInvoker struct {
	mu        sync.Mutex
	responses map[string][]any // consumed in order per worker
	calls     map[string][]any // recorded request payloads
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		responses: make(map[string][]any),
		calls:     make(map[string][]any),
	}
}

func (f *fakeInvoker) stub(worker string, resp any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[worker] = append(f.responses[worker], resp)
}

func (f *fakeInvoker) Invoke(ctx context.Context, worker string, req any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[worker] = append(f.calls[worker], req)

	queue := f.responses[worker]
	if len(queue) == 0 {
		return nil, domain.NewStageError(worker, fmt.Errorf("no stubbed response"))
	}
	next := queue[0]
	f.responses[worker] = queue[1:]

	if err, ok := next.(error); ok {
		return nil, err
	}
	b, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (f *fakeInvoker) callCount(worker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[worker])
}
