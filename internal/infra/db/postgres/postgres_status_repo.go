package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-demo-builder/internal/domain"
	"ai-demo-builder/internal/domain/model"
	"ai-demo-builder/internal/domain/ports/repository"
)

var _ repository.StatusRepository = (*StatusRepo)(nil)

// StatusRepo keeps one sessions row per subject. The row is only ever
// overwritten, never deleted here; expiry belongs to the cleanup service.
type StatusRepo struct {
	pool *pgxpool.Pool
}

func NewStatusRepo(pool *pgxpool.Pool) *StatusRepo {
	return &StatusRepo{pool: pool}
}

const statusSchema = `
CREATE TABLE IF NOT EXISTS sessions (
  subject_id    TEXT PRIMARY KEY,
  job_id        TEXT NOT NULL DEFAULT '',
  status        TEXT NOT NULL,
  step          TEXT NOT NULL DEFAULT '',
  progress      INT  NOT NULL DEFAULT 0,
  outputs       JSONB,
  demo_url      TEXT NOT NULL DEFAULT '',
  thumbnail_url TEXT NOT NULL DEFAULT '',
  error_message TEXT NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL,
  updated_at    TIMESTAMPTZ NOT NULL
);`

// EnsureSchema creates the sessions table when it does not exist yet.
func (r *StatusRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, statusSchema)
	return err
}

func (r *StatusRepo) Save(ctx context.Context, rec *model.StatusRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()

	var outputs []byte
	if len(rec.Outputs) > 0 {
		b, err := json.Marshal(rec.Outputs)
		if err != nil {
			return err
		}
		outputs = b
	}

	const q = `
INSERT INTO sessions (
  subject_id, job_id, status, step, progress, outputs,
  demo_url, thumbnail_url, error_message, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (subject_id) DO UPDATE SET
  job_id=$2, status=$3, step=$4, progress=$5, outputs=$6,
  demo_url=$7, thumbnail_url=$8, error_message=$9, updated_at=$11;
`
	_, err := r.pool.Exec(ctx, q,
		rec.SubjectID, rec.JobID, string(rec.Status), rec.Step, rec.Progress, outputs,
		rec.DemoURL, rec.ThumbnailURL, rec.ErrorMessage, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *StatusRepo) Find(ctx context.Context, subjectID string) (*model.StatusRecord, error) {
	const q = `
SELECT subject_id, job_id, status, step, progress, outputs,
       demo_url, thumbnail_url, error_message, created_at, updated_at
  FROM sessions WHERE subject_id=$1;
`
	row := r.pool.QueryRow(ctx, q, subjectID)

	var rec model.StatusRecord
	var statusStr string
	var outputs []byte
	err := row.Scan(
		&rec.SubjectID, &rec.JobID, &statusStr, &rec.Step, &rec.Progress, &outputs,
		&rec.DemoURL, &rec.ThumbnailURL, &rec.ErrorMessage, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rec.Status = model.SessionStatus(statusStr)
	if len(outputs) > 0 {
		if err := json.Unmarshal(outputs, &rec.Outputs); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}
