package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient implements Generator with the chat completions API
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIClient creates a client for the public OpenAI endpoint
func NewOpenAIClient(apiKey, defaultModel string) *OpenAIClient {
	return NewOpenAIClientWithConfig(openai.DefaultConfig(apiKey), defaultModel)
}

// NewOpenAIClientWithConfig allows a custom base URL or HTTP client
func NewOpenAIClientWithConfig(cfg openai.ClientConfig, defaultModel string) *OpenAIClient {
	if defaultModel == "" {
		defaultModel = DefaultOpenAIModel
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), defaultModel: defaultModel}
}

// Complete returns the content of the first choice, or "" when the model
// returned no choices
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, model string, opts Options) (string, error) {
	if model == "" {
		model = c.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		Temperature: opts.EffectiveTemperature(),
	}
	if opts.MaxOutputTokens > 0 {
		req.MaxTokens = opts.MaxOutputTokens
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: openAIRole(m.Role), Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIRole(r Role) string {
	switch r {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
