// Package structured parses and repairs JSON returned by a generative model.
// Model output is untrusted: it is fence-stripped, parsed, checked against a
// JSON Schema and only then bound to a Go type.
package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrGenerationFormat marks output that could not be parsed or violated its
// schema. It is retryable.
var ErrGenerationFormat = errors.New("generation format failure")

// StripCodeFence removes one leading ```json or ``` marker and one trailing
// ``` marker. Either may be present without the other.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractObject returns the text between the first '{' and the last '}'
func extractObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// decode strips fences, parses, validates against schema and binds to T
func decode[T any](raw string, schema *jsonschema.Schema) (T, error) {
	var out T

	text := StripCodeFence(raw)
	if text == "" {
		return out, fmt.Errorf("%w: empty output", ErrGenerationFormat)
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		obj, ok := extractObject(text)
		if !ok || json.Unmarshal([]byte(obj), &doc) != nil {
			return out, fmt.Errorf("%w: output is not valid JSON: %w", ErrGenerationFormat, err)
		}
		text = obj
	}

	if err := schema.Validate(doc); err != nil {
		return out, fmt.Errorf("%w: %w", ErrGenerationFormat, err)
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrGenerationFormat, err)
	}
	return out, nil
}
