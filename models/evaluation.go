package models

import (
	"fmt"
	"strings"
)

// Difficulty is the difficulty tag of a clip or question
type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
	DifficultyExtreme Difficulty = "extreme"
)

// ParseDifficulty accepts easy, medium, hard and extreme in any case
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExtreme:
		return d, nil
	}
	return "", fmt.Errorf("invalid difficulty %q", s)
}

// AnswerWindowSeconds is the time a trainee gets to call a clip
func (d Difficulty) AnswerWindowSeconds() int {
	switch d {
	case DifficultyEasy:
		return 3
	case DifficultyMedium:
		return 4
	case DifficultyHard:
		return 5
	default:
		return 6
	}
}

// EvaluationRequest is one trainee ruling to grade
type EvaluationRequest struct {
	UserAnswer  string     `json:"user_answer"`
	CorrectCall string     `json:"correct_call"`
	Difficulty  Difficulty `json:"difficulty"`
}

// EvaluationResult is the graded outcome returned to callers
type EvaluationResult struct {
	IsCorrect      bool   `json:"is_correct"`
	NormalizedCall string `json:"normalized_call"`
	Explanation    string `json:"explanation"`
	RuleReference  string `json:"rule_reference"`
}
