package handlers

import (
	"context"
	"errors"
	"net/http"

	"volleyref-backend/models"
	"volleyref-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Practice is the clip and quiz side of the service layer
type Practice interface {
	RandomClip(ctx context.Context, difficulty string) (*service.PracticeClip, error)
	SubmitAttempt(ctx context.Context, req service.SubmitAttemptRequest) (*service.SubmitAttemptResult, error)
	ListVideos(ctx context.Context, difficulty string) ([]models.Video, error)
	CreateVideo(ctx context.Context, v *models.Video) error
	RecordQuizAttempt(ctx context.Context, a *models.QuizAttempt) error
}

// PracticeHandler serves practice clips, videos and quiz attempts
type PracticeHandler struct {
	practice Practice
}

// NewPracticeHandler creates a new practice handler
func NewPracticeHandler(practice Practice) *PracticeHandler {
	return &PracticeHandler{practice: practice}
}

// RandomClip handles GET /api/practice
func (h *PracticeHandler) RandomClip(c *gin.Context) {
	clip, err := h.practice.RandomClip(c.Request.Context(), c.Query("difficulty"))
	if err != nil {
		respondPracticeError(c, err)
		return
	}
	respondData(c, http.StatusOK, clip)
}

// SubmitAttempt handles POST /api/practice/attempts
func (h *PracticeHandler) SubmitAttempt(c *gin.Context) {
	var req struct {
		VideoID    string  `json:"video_id"`
		UserID     string  `json:"user_id"`
		UserAnswer string  `json:"user_answer"`
		TimeTaken  float64 `json:"time_taken"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	videoID, err := uuid.Parse(req.VideoID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid video_id format")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid user_id format")
		return
	}

	res, err := h.practice.SubmitAttempt(c.Request.Context(), service.SubmitAttemptRequest{
		VideoID:    videoID,
		UserID:     userID,
		UserAnswer: req.UserAnswer,
		TimeTaken:  req.TimeTaken,
	})
	if err != nil {
		respondPracticeError(c, err)
		return
	}
	respondData(c, http.StatusCreated, res)
}

// ListVideos handles GET /api/videos
func (h *PracticeHandler) ListVideos(c *gin.Context) {
	videos, err := h.practice.ListVideos(c.Request.Context(), c.Query("difficulty"))
	if err != nil {
		respondPracticeError(c, err)
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}
	respondData(c, http.StatusOK, videos)
}

// CreateVideo handles POST /api/videos
func (h *PracticeHandler) CreateVideo(c *gin.Context) {
	var v models.Video
	if err := c.ShouldBindJSON(&v); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	v.ID = uuid.Nil
	if err := h.practice.CreateVideo(c.Request.Context(), &v); err != nil {
		respondPracticeError(c, err)
		return
	}
	respondData(c, http.StatusCreated, v)
}

// RecordQuizAttempt handles POST /api/quiz-attempts
func (h *PracticeHandler) RecordQuizAttempt(c *gin.Context) {
	var req struct {
		UserID         string `json:"user_id"`
		Question       string `json:"question"`
		SelectedOption string `json:"selected_option"`
		Correct        bool   `json:"correct"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid user_id format")
		return
	}

	attempt := &models.QuizAttempt{
		UserID:         userID,
		Question:       req.Question,
		SelectedOption: req.SelectedOption,
		Correct:        req.Correct,
	}
	if err := h.practice.RecordQuizAttempt(c.Request.Context(), attempt); err != nil {
		respondPracticeError(c, err)
		return
	}
	respondData(c, http.StatusCreated, attempt)
}

func respondPracticeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrVideoNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Video not found")
	case errors.Is(err, service.ErrInvalidDifficulty):
		respondError(c, http.StatusBadRequest, "INVALID_DIFFICULTY", "difficulty must be one of easy, medium, hard, extreme")
	case errors.Is(err, service.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
