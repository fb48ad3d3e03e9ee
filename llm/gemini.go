package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiClient implements Generator with a Gemini chat session. System
// messages become the model's system instruction.
type GeminiClient struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiClient wraps an initialised genai client
func NewGeminiClient(client *genai.Client, defaultModel string) *GeminiClient {
	if defaultModel == "" {
		defaultModel = DefaultGeminiModel
	}
	return &GeminiClient{client: client, defaultModel: defaultModel}
}

// Complete sends every non-system message but the last as history, then the
// last one as the prompt
func (c *GeminiClient) Complete(ctx context.Context, messages []Message, model string, opts Options) (string, error) {
	if model == "" {
		model = c.defaultModel
	}

	gm := c.client.GenerativeModel(model)
	gm.SetTemperature(opts.EffectiveTemperature())
	if opts.MaxOutputTokens > 0 {
		gm.SetMaxOutputTokens(int32(opts.MaxOutputTokens))
	}

	var system []string
	var turns []*genai.Content
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		turns = append(turns, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	if len(system) > 0 {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: no user message to send", ErrGenerationUnavailable)
	}

	cs := gm.StartChat()
	cs.History = turns[:len(turns)-1]
	resp, err := cs.SendMessage(ctx, turns[len(turns)-1].Parts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		break
	}
	return b.String()
}
