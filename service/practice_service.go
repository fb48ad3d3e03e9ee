package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"volleyref-backend/models"
	"volleyref-backend/repository"

	"github.com/google/uuid"
)

var (
	ErrVideoNotFound     = errors.New("video not found")
	ErrInvalidDifficulty = errors.New("difficulty must be easy, medium, hard or extreme")
	ErrInvalidInput      = errors.New("invalid input")
)

// VideoStore persists practice clips and graded attempts
type VideoStore interface {
	Create(ctx context.Context, v *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	List(ctx context.Context, difficulty models.Difficulty) ([]models.Video, error)
	Random(ctx context.Context, difficulty models.Difficulty) (*models.Video, error)
	CreateAttempt(ctx context.Context, a *models.VideoAttempt) error
}

// QuizAttemptStore persists quiz answers
type QuizAttemptStore interface {
	Create(ctx context.Context, a *models.QuizAttempt) error
}

// RulingEvaluator grades a ruling and never fails
type RulingEvaluator interface {
	EvaluateRuling(ctx context.Context, req models.EvaluationRequest) models.EvaluationResult
}

// PracticeService serves practice clips and records graded attempts
type PracticeService struct {
	videos    VideoStore
	quiz      QuizAttemptStore
	evaluator RulingEvaluator
}

// NewPracticeService creates a new practice service
func NewPracticeService(videos VideoStore, quiz QuizAttemptStore, evaluator RulingEvaluator) *PracticeService {
	return &PracticeService{videos: videos, quiz: quiz, evaluator: evaluator}
}

// PracticeClip is a clip with the time the trainee has to call it
type PracticeClip struct {
	Video           *models.Video `json:"video"`
	DurationSeconds int           `json:"duration"`
}

// parseOptionalDifficulty accepts an empty string as "any"
func parseOptionalDifficulty(s string) (models.Difficulty, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	d, err := models.ParseDifficulty(s)
	if err != nil {
		return "", ErrInvalidDifficulty
	}
	return d, nil
}

// RandomClip picks a clip of the requested difficulty
func (s *PracticeService) RandomClip(ctx context.Context, difficulty string) (*PracticeClip, error) {
	d, err := parseOptionalDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	v, err := s.videos.Random(ctx, d)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return &PracticeClip{Video: v, DurationSeconds: v.Difficulty.AnswerWindowSeconds()}, nil
}

// SubmitAttemptRequest is a trainee's call on a clip
type SubmitAttemptRequest struct {
	VideoID    uuid.UUID
	UserID     uuid.UUID
	UserAnswer string
	TimeTaken  float64
}

// SubmitAttemptResult is the evaluation and the stored attempt
type SubmitAttemptResult struct {
	Evaluation models.EvaluationResult `json:"evaluation"`
	Attempt    *models.VideoAttempt    `json:"attempt"`
}

// SubmitAttempt grades the answer against the clip's correct call and stores
// whether it was correct
func (s *PracticeService) SubmitAttempt(ctx context.Context, req SubmitAttemptRequest) (*SubmitAttemptResult, error) {
	answer := strings.TrimSpace(req.UserAnswer)
	if answer == "" {
		return nil, fmt.Errorf("%w: user_answer is required", ErrInvalidInput)
	}
	if req.TimeTaken < 0 {
		return nil, fmt.Errorf("%w: time_taken must not be negative", ErrInvalidInput)
	}

	video, err := s.videos.GetByID(ctx, req.VideoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}

	eval := s.evaluator.EvaluateRuling(ctx, models.EvaluationRequest{
		UserAnswer:  answer,
		CorrectCall: video.CorrectCall,
		Difficulty:  video.Difficulty,
	})

	attempt := &models.VideoAttempt{
		VideoID:   video.ID,
		UserID:    req.UserID,
		Correct:   eval.IsCorrect,
		TimeTaken: req.TimeTaken,
	}
	if err := s.videos.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to save attempt: %w", err)
	}
	return &SubmitAttemptResult{Evaluation: eval, Attempt: attempt}, nil
}

// ListVideos returns clips newest first
func (s *PracticeService) ListVideos(ctx context.Context, difficulty string) ([]models.Video, error) {
	d, err := parseOptionalDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	return s.videos.List(ctx, d)
}

// CreateVideo validates and stores a clip
func (s *PracticeService) CreateVideo(ctx context.Context, v *models.Video) error {
	d, err := models.ParseDifficulty(string(v.Difficulty))
	if err != nil {
		return ErrInvalidDifficulty
	}
	v.Difficulty = d
	v.Title = strings.TrimSpace(v.Title)
	v.URL = strings.TrimSpace(v.URL)
	v.CorrectCall = strings.TrimSpace(v.CorrectCall)
	if v.URL == "" || v.CorrectCall == "" {
		return fmt.Errorf("%w: url and correct_call are required", ErrInvalidInput)
	}
	return s.videos.Create(ctx, v)
}

// RecordQuizAttempt stores a quiz answer
func (s *PracticeService) RecordQuizAttempt(ctx context.Context, a *models.QuizAttempt) error {
	if strings.TrimSpace(a.Question) == "" || strings.TrimSpace(a.SelectedOption) == "" {
		return fmt.Errorf("%w: question and selected_option are required", ErrInvalidInput)
	}
	return s.quiz.Create(ctx, a)
}
