package usecase

import (
	"context"

	"ai-demo-builder/internal/domain/model"
	"ai-demo-builder/internal/domain/ports/repository"
)

// StatusUseCase answers read-only progress queries. An unknown subject is a
// normal answer for the polling UI, not an error; the HTTP layer maps
// domain.ErrNotFound to an explicit exists:false sentinel.
type StatusUseCase interface {
	Get(ctx context.Context, subjectID string) (*model.StatusRecord, error)
}

var _ StatusUseCase = (*statusUseCase)(nil)

type statusUseCase struct {
	statusRepo repository.StatusRepository
}

func NewStatusUseCase(statusRepo repository.StatusRepository) StatusUseCase {
	return &statusUseCase{statusRepo: statusRepo}
}

func (uc *statusUseCase) Get(ctx context.Context, subjectID string) (*model.StatusRecord, error) {
	return uc.statusRepo.Find(ctx, subjectID)
}
