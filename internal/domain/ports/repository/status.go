package repository

import (
	"context"

	"ai-demo-builder/internal/domain/model"
)

// StatusRepository persists one StatusRecord per subject.
type StatusRepository interface {
	// Save upserts the record for rec.SubjectID.
	Save(ctx context.Context, rec *model.StatusRecord) error
	// Find returns the record for subjectID or domain.ErrNotFound.
	Find(ctx context.Context, subjectID string) (*model.StatusRecord, error)
}
