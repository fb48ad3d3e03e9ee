package structured

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"volleyref-backend/models"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MismatchPolicy decides what happens when the answer matches no option
type MismatchPolicy string

const (
	// MismatchFirstOption silently uses the first option
	MismatchFirstOption MismatchPolicy = "first-option"
	// MismatchReject reports a generation format failure so the caller retries
	MismatchReject MismatchPolicy = "reject"
)

// ParseMismatchPolicy accepts first-option and reject. Empty means first-option.
func ParseMismatchPolicy(s string) (MismatchPolicy, error) {
	switch p := MismatchPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return MismatchFirstOption, nil
	case MismatchFirstOption, MismatchReject:
		return p, nil
	}
	return "", fmt.Errorf("unknown answer mismatch policy %q", s)
}

const questionSchemaJSON = `{
  "type": "object",
  "required": ["question", "options", "answer", "explanation"],
  "properties": {
    "question": {"type": "string", "pattern": "\\S"},
    "options": {
      "type": "array",
      "minItems": 4,
      "maxItems": 4,
      "items": {"type": "string", "pattern": "\\S"}
    },
    "answer": {"type": "string", "pattern": "\\S"},
    "explanation": {"type": "string", "pattern": "\\S"},
    "rule_reference": {"type": ["string", "null"]}
  }
}`

var questionSchema = jsonschema.MustCompileString("question.schema.json", questionSchemaJSON)

var (
	enumeratorPrefix = regexp.MustCompile(`(?i)^(?:option\s+[a-d](?:\s*[-.):]+\s*|\s+)|[a-d]\s*[-.):]+\s*)`)
	bareEnumerator   = regexp.MustCompile(`(?i)^(option\s+)?([A-D])[\s\-.):]*$`)
)

// NormalizeOption strips a leading "Option A - ", "Option C ", "B)", "c."
// style enumerator and surrounding whitespace. A lone letter followed only by
// a space is kept, so "A player..." is left alone.
func NormalizeOption(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSpace(enumeratorPrefix.ReplaceAllString(s, ""))
}

// DecodeQuestion parses a generated question and makes its answer a byte
// exact member of its normalized options
func DecodeQuestion(raw string, policy MismatchPolicy) (models.GeneratedQuestion, error) {
	q, err := decode[models.GeneratedQuestion](raw, questionSchema)
	if err != nil {
		return models.GeneratedQuestion{}, err
	}

	q.Question = strings.TrimSpace(q.Question)
	q.Explanation = strings.TrimSpace(q.Explanation)
	for i, opt := range q.Options {
		q.Options[i] = NormalizeOption(opt)
		if q.Options[i] == "" {
			return models.GeneratedQuestion{}, fmt.Errorf("%w: option %d is only an enumerator", ErrGenerationFormat, i+1)
		}
	}
	if q.RuleReference != nil {
		if ref := strings.TrimSpace(*q.RuleReference); ref != "" {
			q.RuleReference = &ref
		} else {
			q.RuleReference = nil
		}
	}

	answer, err := ResolveAnswer(q.Answer, q.Options, policy)
	if err != nil {
		return models.GeneratedQuestion{}, err
	}
	q.Answer = answer
	return q, nil
}

// ResolveAnswer maps a model supplied answer onto one of options, which must
// already be normalized. Matching tries, in order: exact match, a bare letter
// (A to D), a unique case-insensitive equal, a unique case-insensitive
// containment either way. Anything else is settled by policy.
func ResolveAnswer(answer string, options []string, policy MismatchPolicy) (string, error) {
	norm := NormalizeOption(answer)
	if norm != "" && slices.Contains(options, norm) {
		return norm, nil
	}

	if m := bareEnumerator.FindStringSubmatch(strings.TrimSpace(answer)); m != nil {
		idx := int(strings.ToUpper(m[2])[0] - 'A')
		if idx < len(options) {
			return options[idx], nil
		}
	}

	if norm != "" {
		lowered := strings.ToLower(norm)
		if opt, ok := unique(options, func(o string) bool { return strings.EqualFold(o, norm) }); ok {
			return opt, nil
		}
		if opt, ok := unique(options, func(o string) bool {
			lo := strings.ToLower(o)
			return strings.Contains(lo, lowered) || strings.Contains(lowered, lo)
		}); ok {
			return opt, nil
		}
	}

	if policy == MismatchReject {
		return "", fmt.Errorf("%w: answer %q matches none of the options", ErrGenerationFormat, answer)
	}
	if len(options) == 0 {
		return "", fmt.Errorf("%w: no options", ErrGenerationFormat)
	}
	return options[0], nil
}

func unique(options []string, match func(string) bool) (string, bool) {
	found := -1
	for i, o := range options {
		if !match(o) {
			continue
		}
		if found != -1 {
			return "", false
		}
		found = i
	}
	if found == -1 {
		return "", false
	}
	return options[found], true
}
