package structured

import (
	"strings"

	"volleyref-backend/models"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// InsufficientContextNotice prefixes the explanation of any evaluation made
// without rule context
const InsufficientContextNotice = "Unable to evaluate: insufficient rule context available."

const evaluationSchemaJSON = `{
  "type": "object",
  "required": ["is_correct", "normalized_call", "explanation", "rule_reference"],
  "properties": {
    "is_correct": {"type": "boolean"},
    "normalized_call": {"type": "string", "pattern": "\\S"},
    "explanation": {"type": "string", "pattern": "\\S"},
    "rule_reference": {"type": "string"}
  }
}`

var evaluationSchema = jsonschema.MustCompileString("evaluation.schema.json", evaluationSchemaJSON)

// DecodeEvaluation parses a ruling evaluation. When hasContext is false the
// result is forced incorrect whatever the model claimed.
func DecodeEvaluation(raw string, hasContext bool) (models.EvaluationResult, error) {
	res, err := decode[models.EvaluationResult](raw, evaluationSchema)
	if err != nil {
		return models.EvaluationResult{}, err
	}

	res.NormalizedCall = strings.TrimSpace(res.NormalizedCall)
	res.Explanation = strings.TrimSpace(res.Explanation)
	res.RuleReference = strings.TrimSpace(res.RuleReference)

	if !hasContext {
		ApplyInsufficiency(&res)
	}
	return res, nil
}

// ApplyInsufficiency marks res incorrect and states that no rule context was
// available
func ApplyInsufficiency(res *models.EvaluationResult) {
	res.IsCorrect = false
	if strings.HasPrefix(res.Explanation, InsufficientContextNotice) {
		return
	}
	if res.Explanation == "" {
		res.Explanation = InsufficientContextNotice
		return
	}
	res.Explanation = InsufficientContextNotice + " " + res.Explanation
}
