package repository

import (
	"context"
	"fmt"

	"volleyref-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VideoRepository handles practice clips and the attempts made on them
type VideoRepository struct {
	db *pgxpool.Pool
}

// NewVideoRepository creates a new video repository
func NewVideoRepository(db *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, title, url, correct_call, difficulty, created_at`

// Create inserts a video
func (r *VideoRepository) Create(ctx context.Context, v *models.Video) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	query := `
		INSERT INTO videos (id, title, url, correct_call, difficulty)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return r.db.QueryRow(ctx, query, v.ID, v.Title, v.URL, v.CorrectCall, v.Difficulty).Scan(&v.CreatedAt)
}

// GetByID retrieves a video by ID
func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	v := &models.Video{}
	err := r.db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id).
		Scan(&v.ID, &v.Title, &v.URL, &v.CorrectCall, &v.Difficulty, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

// List returns videos newest first, optionally filtered by difficulty
func (r *VideoRepository) List(ctx context.Context, difficulty models.Difficulty) ([]models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	var args []interface{}
	if difficulty != "" {
		query += ` WHERE difficulty = $1`
		args = append(args, difficulty)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.URL, &v.CorrectCall, &v.Difficulty, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}
	return videos, nil
}

// Random returns one video of the given difficulty, or of any difficulty
// when difficulty is empty
func (r *VideoRepository) Random(ctx context.Context, difficulty models.Difficulty) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	var args []interface{}
	if difficulty != "" {
		query += ` WHERE difficulty = $1`
		args = append(args, difficulty)
	}
	query += ` ORDER BY random() LIMIT 1`

	v := &models.Video{}
	err := r.db.QueryRow(ctx, query, args...).
		Scan(&v.ID, &v.Title, &v.URL, &v.CorrectCall, &v.Difficulty, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

// CreateAttempt records a graded call on a video
func (r *VideoRepository) CreateAttempt(ctx context.Context, a *models.VideoAttempt) error {
	query := `
		INSERT INTO video_attempts (video_id, user_id, correct, time_taken)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return r.db.QueryRow(ctx, query, a.VideoID, a.UserID, a.Correct, a.TimeTaken).Scan(&a.ID, &a.CreatedAt)
}
