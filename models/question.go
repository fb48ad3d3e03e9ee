package models

// GeneratedQuestion is a multiple choice quiz question. Answer is always one
// of Options byte for byte.
type GeneratedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	Answer        string   `json:"answer"`
	Explanation   string   `json:"explanation"`
	RuleReference *string  `json:"rule_reference"`
}
