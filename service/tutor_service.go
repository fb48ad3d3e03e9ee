package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"volleyref-backend/grounding"
	"volleyref-backend/llm"
	"volleyref-backend/models"
	"volleyref-backend/structured"
)

const defaultTutorTopK = 4

// ErrEmptyMessage is returned for a blank tutor question
var ErrEmptyMessage = errors.New("message is required")

// TutorService answers free-form rule questions from the rule index
type TutorService struct {
	engine *grounding.Engine
	model  string
	topK   int
}

// NewTutorService creates a tutor. An empty model uses the generator default.
func NewTutorService(engine *grounding.Engine, model string) *TutorService {
	return &TutorService{engine: engine, model: model, topK: defaultTutorTopK}
}

// TutorAnswer is the model's reply and the snippets it was shown
type TutorAnswer struct {
	Answer     string                  `json:"answer"`
	References []models.RetrievedChunk `json:"references"`
}

// Ask retrieves snippets for message and answers it. An empty reply is
// retried like malformed structured output.
func (s *TutorService) Ask(ctx context.Context, message string) (*TutorAnswer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	spec := grounding.PromptSpec[string]{
		Task:    "tutor",
		Queries: []string{message},
		TopK:    s.topK,
		Messages: func(gc grounding.Context) []llm.Message {
			return []llm.Message{
				llm.System(tutorSystemPrompt),
				llm.User(tutorUserPrompt(message, gc.Text)),
			}
		},
		Model: s.model,
		Decode: func(raw string, _ grounding.Context) (string, error) {
			answer := strings.TrimSpace(raw)
			if answer == "" {
				return "", fmt.Errorf("%w: empty answer", structured.ErrGenerationFormat)
			}
			return answer, nil
		},
	}

	res, err := grounding.GenerateStructuredContent(ctx, s.engine, spec)
	if err != nil {
		return nil, err
	}
	refs := res.Context.Snippets
	if refs == nil {
		refs = []models.RetrievedChunk{}
	}
	return &TutorAnswer{Answer: res.Value, References: refs}, nil
}
