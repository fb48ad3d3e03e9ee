package repository

import (
	"context"

	"volleyref-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// QuizAttemptRepository stores answers to generated questions
type QuizAttemptRepository struct {
	db *pgxpool.Pool
}

// NewQuizAttemptRepository creates a new quiz attempt repository
func NewQuizAttemptRepository(db *pgxpool.Pool) *QuizAttemptRepository {
	return &QuizAttemptRepository{db: db}
}

// Create inserts a quiz attempt
func (r *QuizAttemptRepository) Create(ctx context.Context, a *models.QuizAttempt) error {
	query := `
		INSERT INTO quiz_attempts (user_id, question, selected_option, correct)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return r.db.QueryRow(ctx, query, a.UserID, a.Question, a.SelectedOption, a.Correct).Scan(&a.ID, &a.CreatedAt)
}
