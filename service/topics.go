package service

import "math/rand"

// refereeTopics are the retrieval queries questions are drawn from, grouped
// loosely by area of the rulebook
var refereeTopics = []string{
	// faults
	"volleyball double contact fault hand signal",
	"volleyball four hits fault team violation",
	"volleyball net touch fault player contact rules",
	"volleyball foot fault service line violation",
	"volleyball back row attack rules fault",
	"volleyball lift carry fault ball handling",
	"volleyball rotation fault positional error",
	"volleyball center line foot crossing violation",
	"volleyball attack hit blocking fault",
	"volleyball ball handling judgment double hit",

	// service
	"volleyball service rules order procedures",
	"volleyball service fault toss eight seconds",
	"volleyball let serve net service rules",
	"volleyball service screen illegal formation",
	"volleyball serving order rotation violation",

	// block and attack
	"volleyball blocking rules back row player",
	"volleyball simultaneous contact block attack",
	"volleyball attack line three meter rule",
	"volleyball joust ball simultaneous hit",
	"volleyball block touch team hits count",

	// net
	"volleyball net contact rules interference",
	"volleyball reaching over net blocking rules",
	"volleyball penetration under net rules",
	"volleyball antenna touch ball out rules",

	// positions
	"volleyball rotation order position fault",
	"volleyball overlap positional rules check",
	"volleyball libero replacement rules substitution",
	"volleyball libero attack restriction rules",
	"volleyball setter position overlap check",

	// in and out
	"volleyball ball in out line decision",
	"volleyball antenna ball contact outside",
	"volleyball ceiling contact rules play",
	"volleyball ball touching boundary lines",

	// match procedure
	"volleyball timeout rules duration procedure",
	"volleyball substitution rules procedure limits",
	"volleyball injury timeout protocol rules",
	"volleyball delay warning sanction rules",
	"volleyball coin toss first serve choice",

	// scoring
	"volleyball scoring rally point system",
	"volleyball deciding set rules fifth set",
	"volleyball side switch rules procedures",
	"volleyball point award replay situations",

	// sanctions
	"volleyball misconduct sanctions cards penalties",
	"volleyball yellow card red card rules",
	"volleyball coach conduct sideline rules",
	"volleyball expulsion disqualification rules",

	// officials
	"volleyball referee hand signals official",
	"volleyball first referee second referee duties",
	"volleyball line judge signals responsibilities",
	"volleyball scoresheet recording procedures",

	// interruptions
	"volleyball replay situations circumstances",
	"volleyball interference external objects rules",
	"volleyball ball becomes dead situations",
	"volleyball rally interruption circumstances",
}

var scenarioTypes = []string{
	"game situation judgment call",
	"rule interpretation edge case",
	"referee positioning and decision",
	"hand signal identification",
	"fault recognition scenario",
	"sanction and penalty application",
	"procedural knowledge test",
	"complex multi-fault situation",
}

const (
	topicsPerQuestion = 3
	maxVariation      = 10000
)

// questionPlan is the randomized part of one question request
type questionPlan struct {
	Topics       []string
	ScenarioType string
	Variation    int
}

// planQuestion draws topics, a scenario type and a variation number from rng
func planQuestion(rng *rand.Rand, topics, scenarios []string) questionPlan {
	shuffled := append([]string(nil), topics...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return questionPlan{
		Topics:       shuffled[:min(topicsPerQuestion, len(shuffled))],
		ScenarioType: scenarios[rng.Intn(len(scenarios))],
		Variation:    rng.Intn(maxVariation),
	}
}
