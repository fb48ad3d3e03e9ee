package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"volleyref-backend/grounding"
	"volleyref-backend/models"
	"volleyref-backend/retrieval"
	"volleyref-backend/service"

	"github.com/gin-gonic/gin"
)

// Evaluator grades a trainee ruling
type Evaluator interface {
	EvaluateRuling(ctx context.Context, req models.EvaluationRequest) models.EvaluationResult
}

// QuestionGenerator produces grounded quiz questions
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, req service.GenerateQuestionRequest) (*service.GenerateQuestionResult, error)
	ModuleQuiz(ctx context.Context, module string) (*service.ModuleQuizResult, error)
}

// Tutor answers free-form rule questions
type Tutor interface {
	Ask(ctx context.Context, message string) (*service.TutorAnswer, error)
}

// TrainingHandler serves evaluation, question generation and the tutor
type TrainingHandler struct {
	evaluator Evaluator
	questions QuestionGenerator
	tutor     Tutor
}

// NewTrainingHandler creates a new training handler
func NewTrainingHandler(evaluator Evaluator, questions QuestionGenerator, tutor Tutor) *TrainingHandler {
	return &TrainingHandler{
		evaluator: evaluator,
		questions: questions,
		tutor:     tutor,
	}
}

// Evaluate handles POST /api/evaluate. Grading never fails; model and index
// outages come back as a failed-safe result with status 200.
func (h *TrainingHandler) Evaluate(c *gin.Context) {
	var req models.EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.CorrectCall) == "" {
		respondError(c, http.StatusBadRequest, "MISSING_CORRECT_CALL", "correct_call is required")
		return
	}

	result := h.evaluator.EvaluateRuling(c.Request.Context(), req)
	respondData(c, http.StatusOK, result)
}

// GenerateQuestion handles POST /api/questions/generate
func (h *TrainingHandler) GenerateQuestion(c *gin.Context) {
	var req struct {
		Difficulty string `json:"difficulty"`
		Seed       *int64 `json:"seed"`
	}
	// an empty body asks for a medium question with a fresh seed
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	res, err := h.questions.GenerateQuestion(c.Request.Context(), service.GenerateQuestionRequest{
		Difficulty: req.Difficulty,
		Seed:       req.Seed,
	})
	if err != nil {
		respondGenerationError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"question":       res.Question.Question,
		"options":        res.Question.Options,
		"answer":         res.Question.Answer,
		"explanation":    res.Question.Explanation,
		"rule_reference": res.Question.RuleReference,
		"difficulty":     res.Difficulty,
		"topics":         res.Topics,
		"seed":           res.Seed,
	})
}

// ModuleQuiz handles POST /api/lessons/quiz
func (h *TrainingHandler) ModuleQuiz(c *gin.Context) {
	var req struct {
		Module string `json:"module"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	res, err := h.questions.ModuleQuiz(c.Request.Context(), req.Module)
	if err != nil {
		if errors.Is(err, service.ErrEmptyModule) {
			respondError(c, http.StatusBadRequest, "MISSING_MODULE", "module is required")
			return
		}
		respondGenerationError(c, err)
		return
	}
	respondData(c, http.StatusOK, res)
}

// Ask handles POST /api/tutor
func (h *TrainingHandler) Ask(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	ans, err := h.tutor.Ask(c.Request.Context(), req.Message)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			respondError(c, http.StatusBadRequest, "MISSING_MESSAGE", "message is required")
			return
		}
		respondGenerationError(c, err)
		return
	}
	respondData(c, http.StatusOK, ans)
}

func respondGenerationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, grounding.ErrNoRuleContext):
		respondError(c, http.StatusBadRequest, "NO_RULE_CONTEXT",
			"No rule context available. Upload and embed a rulebook first.")
	case errors.Is(err, retrieval.ErrRetrievalUnavailable):
		respondError(c, http.StatusServiceUnavailable, "RETRIEVAL_UNAVAILABLE", err.Error())
	case errors.Is(err, grounding.ErrRetriesExhausted):
		respondError(c, http.StatusBadGateway, "GENERATION_FAILED", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
