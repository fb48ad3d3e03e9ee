// Package llm sends chat messages to a generative model and returns its raw
// text. It does not retry or cache.
package llm

import (
	"context"
	"errors"
)

// ErrGenerationUnavailable wraps transport and provider failures
var ErrGenerationUnavailable = errors.New("generation service unavailable")

// Role of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Sampling temperatures by task
const (
	DefaultTemperature    float32 = 0.7
	EvaluationTemperature float32 = 0.3
	CreativeTemperature   float32 = 0.85
)

// Message is one turn of the conversation sent to the model
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system message
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Options are the sampling parameters of one completion. A nil Temperature
// means DefaultTemperature; MaxOutputTokens of 0 leaves the cap unset.
type Options struct {
	Temperature     *float32
	MaxOutputTokens int
}

// Temperature returns a pointer for Options.Temperature
func Temperature(t float32) *float32 { return &t }

// EffectiveTemperature applies the default
func (o Options) EffectiveTemperature() float32 {
	if o.Temperature == nil {
		return DefaultTemperature
	}
	return *o.Temperature
}

// Generator completes a conversation. An empty model selects the client's
// default model.
type Generator interface {
	Complete(ctx context.Context, messages []Message, model string, opts Options) (string, error)
}
