package repository

import (
	"context"
	"time"

	"volleyref-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IngestionJobRepository handles database operations for ingestion jobs
type IngestionJobRepository struct {
	db *pgxpool.Pool
}

// NewIngestionJobRepository creates a new ingestion job repository
func NewIngestionJobRepository(db *pgxpool.Pool) *IngestionJobRepository {
	return &IngestionJobRepository{db: db}
}

// Create creates a new ingestion job
func (r *IngestionJobRepository) Create(ctx context.Context, job *models.IngestionJob) error {
	if job.Steps == nil {
		job.Steps = models.NewIngestionSteps()
	}
	query := `
		INSERT INTO ingestion_jobs (
			rulebook_id, status, steps
		) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query, job.RulebookID, job.Status, job.Steps).
		Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

// GetByID retrieves an ingestion job by ID
func (r *IngestionJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.IngestionJob, error) {
	job := &models.IngestionJob{}
	query := `
		SELECT id, rulebook_id, status, steps, chunk_count, error_message,
			created_at, updated_at, completed_at
		FROM ingestion_jobs
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.RulebookID,
		&job.Status,
		&job.Steps,
		&job.ChunkCount,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	if job.Steps == nil {
		job.Steps = models.IngestionSteps{}
	}
	return job, nil
}

// UpdateProgress stores the step list and moves the job to in_progress
func (r *IngestionJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, steps models.IngestionSteps) error {
	query := `
		UPDATE ingestion_jobs SET
			status = $2,
			steps = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.IngestionInProgress, steps)
	return err
}

// Complete marks an ingestion job as completed
func (r *IngestionJobRepository) Complete(ctx context.Context, id uuid.UUID, chunkCount int, steps models.IngestionSteps) error {
	now := time.Now()
	query := `
		UPDATE ingestion_jobs SET
			status = $2,
			chunk_count = $3,
			steps = $4,
			completed_at = $5,
			updated_at = $5
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.IngestionCompleted, chunkCount, steps, now)
	return err
}

// Fail marks an ingestion job as failed
func (r *IngestionJobRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string, steps models.IngestionSteps) error {
	query := `
		UPDATE ingestion_jobs SET
			status = $2,
			error_message = $3,
			steps = $4,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.IngestionFailed, errorMessage, steps)
	return err
}
