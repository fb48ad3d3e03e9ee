package repository

import (
	"context"

	"volleyref-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RulebookRepository handles database operations for rulebooks
type RulebookRepository struct {
	db *pgxpool.Pool
}

// NewRulebookRepository creates a new rulebook repository
func NewRulebookRepository(db *pgxpool.Pool) *RulebookRepository {
	return &RulebookRepository{db: db}
}

// Create creates a new rulebook record. A zero ID is generated by the
// database.
func (r *RulebookRepository) Create(ctx context.Context, rb *models.Rulebook) error {
	if rb.ID == uuid.Nil {
		rb.ID = uuid.New()
	}
	query := `
		INSERT INTO rulebooks (
			id, filename, mime_type, size, storage_path
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING chunk_count, created_at`

	return r.db.QueryRow(
		ctx, query,
		rb.ID,
		rb.Filename,
		rb.MimeType,
		rb.Size,
		rb.StoragePath,
	).Scan(&rb.ChunkCount, &rb.CreatedAt)
}

// GetByID retrieves a rulebook by ID
func (r *RulebookRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Rulebook, error) {
	rb := &models.Rulebook{}
	query := `
		SELECT id, filename, mime_type, size, storage_path, chunk_count, created_at
		FROM rulebooks
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&rb.ID,
		&rb.Filename,
		&rb.MimeType,
		&rb.Size,
		&rb.StoragePath,
		&rb.ChunkCount,
		&rb.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return rb, nil
}

// Delete removes a rulebook record; its chunks cascade
func (r *RulebookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rulebooks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
