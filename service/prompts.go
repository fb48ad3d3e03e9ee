package service

import (
	"fmt"
	"strings"

	"volleyref-backend/grounding"
	"volleyref-backend/models"
)

const evaluationSystemPrompt = `You are a volleyball officiating evaluator. Decide whether a trainee's ruling on a video clip is correct under the official volleyball rules.

Rules you must follow:
1. Use ONLY the provided rule snippets as ground truth. Never invent or assume rules.
2. Compare the trainee's answer with the correct call.
3. State clearly whether the ruling is correct or incorrect.
4. Cite an official rule number from the provided snippets (for example "Rule 11.2.1").
5. If the rule context is missing, insufficient or ambiguous, return is_correct: false and say so in the explanation.

Respond with ONLY a JSON object in exactly this shape, with no markdown and no extra text:
{
  "is_correct": boolean,
  "normalized_call": string,
  "explanation": string,
  "rule_reference": string
}

normalized_call is the trainee's intended call in official terminology (for example "net touch" becomes "Net touch fault").`

const noContextWarning = "WARNING: No rule context available. The ruling cannot be properly evaluated."

func evaluationUserPrompt(req models.EvaluationRequest, gc grounding.Context) string {
	var b strings.Builder
	b.WriteString("Evaluate the following ruling.\n\n")
	fmt.Fprintf(&b, "Trainee's answer: %q\n", req.UserAnswer)
	fmt.Fprintf(&b, "Correct call: %q\n", req.CorrectCall)
	fmt.Fprintf(&b, "Difficulty: %s\n\n", req.Difficulty)

	if gc.HasContext {
		b.WriteString("Official rule context:\n")
		b.WriteString(gc.Text)
		b.WriteString("\n\n")
	} else {
		b.WriteString(noContextWarning)
		b.WriteString("\n\n")
	}

	b.WriteString(`Consider:
- semantic equivalence ("net touch", "net contact" and "net violation" name the same fault)
- completeness (did the trainee identify every violation?)
- accuracy (is the trainee's understanding of the rule right?)
`)
	if !gc.HasContext {
		b.WriteString("\nNo rule context is available, so return is_correct: false and explain that the evaluation cannot be completed without rule information.\n")
	}
	b.WriteString("\nRespond with ONLY the JSON object.")
	return b.String()
}

var difficultyGuidelines = map[models.Difficulty]string{
	models.DifficultyEasy: `- Fundamental rules every referee must know
- Clear-cut scenarios with an obvious correct answer
- Basic terminology and common game situations
- Examples: basic faults, simple rotation questions, common hand signals`,
	models.DifficultyMedium: `- Intermediate rule applications that need good judgment
- Subtle distinctions between the options
- Rule interactions and timing
- Examples: back row attack nuances, block touch counting, libero restrictions`,
	models.DifficultyHard: `- Several rules interacting in one scenario
- Edge cases and unusual situations that test deep knowledge
- Rule priorities and exceptions
- Examples: simultaneous faults, replay versus point decisions, sanction escalation`,
}

type questionPromptData struct {
	FocusArea    string
	ScenarioType string
	Difficulty   models.Difficulty
	Variation    int
}

func questionSystemPrompt(d questionPromptData) string {
	return fmt.Sprintf(`You are an elite volleyball referee trainer and FIVB rules expert. Write ONE specific, practical quiz question that helps referees improve their officiating.

Requirements:
1. Base the question on a realistic match situation a referee would actually face.
2. Include specific details: player positions, score context if relevant, exact actions.
3. All 4 options must be plausible.
4. The answer MUST be exactly one of the option strings you provide.
5. The explanation must cite the specific rule number from the provided rules.

QUESTION FOCUS AREA: %s
SCENARIO TYPE: %s
DIFFICULTY: %s
%s

VARIATION: %d (vary the scenario angle, the team perspective and the phase of play)

Return ONLY valid JSON:
{
  "question": "a detailed scenario question",
  "options": ["Option A - ...", "Option B - ...", "Option C - ...", "Option D - ..."],
  "answer": "the complete text of one option, including its letter prefix",
  "explanation": "why this is correct, citing the rule (for example Rule 12.4.1)",
  "rule_reference": "Rule X.X.X - short rule title"
}`, d.FocusArea, d.ScenarioType, d.Difficulty, difficultyGuidelines[d.Difficulty], d.Variation)
}

func questionUserPrompt(d models.Difficulty, gc grounding.Context) string {
	return fmt.Sprintf("Based on these official volleyball rules, create a %s difficulty question:\n\n%s\n\nReturn ONLY valid JSON. The \"answer\" field must be the complete text of one of your options.", d, gc.Text)
}

const moduleQuizSystemPrompt = `You are a volleyball officiating quiz generator. Create a micro-quiz for volleyball referees.
You MUST respond with ONLY valid JSON in this exact format:
{
  "question": "Your question here?",
  "options": ["Option A", "Option B", "Option C", "Option D"],
  "answer": "The correct option text exactly as in options array",
  "explanation": "Brief explanation of why this is correct, citing rules."
}
Do not include any text before or after the JSON.`

func moduleQuizUserPrompt(module string, gc grounding.Context) string {
	context := gc.Text
	if !gc.HasContext {
		context = fmt.Sprintf("General volleyball %s rules and scenarios.", module)
	}
	return fmt.Sprintf("Create a quiz question for the %q module based on this context:\n\n%s", module, context)
}

const tutorSystemPrompt = "You are a volleyball officiating tutor. Answer concisely with rule citations. Treat the provided rule snippets as ground truth and say so when they do not cover the question."

func tutorUserPrompt(message, context string) string {
	if context == "" {
		context = "(no rule snippets found)"
	}
	return fmt.Sprintf("Trainee question: %s\n\nRule snippets:\n%s", message, context)
}
