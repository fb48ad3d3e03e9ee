package models

import (
	"time"

	"github.com/google/uuid"
)

// Video is a practice clip with its known-correct call
type Video struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	CorrectCall string     `json:"correct_call"`
	Difficulty  Difficulty `json:"difficulty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// VideoAttempt is a trainee's graded call on a clip
type VideoAttempt struct {
	ID        uuid.UUID `json:"id"`
	VideoID   uuid.UUID `json:"video_id"`
	UserID    uuid.UUID `json:"user_id"`
	Correct   bool      `json:"correct"`
	TimeTaken float64   `json:"time_taken"`
	CreatedAt time.Time `json:"created_at"`
}

// QuizAttempt is a trainee's answer to a generated question
type QuizAttempt struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Question       string    `json:"question"`
	SelectedOption string    `json:"selected_option"`
	Correct        bool      `json:"correct"`
	CreatedAt      time.Time `json:"created_at"`
}
