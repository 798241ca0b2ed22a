// File: internal/usecase/status_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"

	"ai-demo-builder/internal/domain"
	"ai-demo-builder/internal/domain/model"
)

func TestStatusGet_NotFound(t *testing.T) {
	t.Parallel()
	uc := NewStatusUseCase(newMemStatusRepo())

	_, err := uc.Get(context.Background(), "sess-missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestStatusGet_IdempotentPolling(t *testing.T) {
	t.Parallel()
	repo := newMemStatusRepo()
	_ = repo.Save(context.Background(), &model.StatusRecord{
		SubjectID: "sess-1",
		Status:    model.SessionStatusOptimizing,
		Progress:  85,
	})
	uc := NewStatusUseCase(repo)

	first, err := uc.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, err := uc.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if first.Status != second.Status || first.Progress != second.Progress {
		t.Errorf("polling mutated the record: %+v vs %+v", first, second)
	}
}
