package workflow

type Stage string

const (
	StageFoundation Stage = "foundation"
	StageStrategy   Stage = "strategy"
	StageValidation Stage = "validation"
)

type Step struct {
	StepId  string
	AgentId string
	Stage   Stage
}

// Sequence is the fixed, totally ordered agent sequence. Role order never
// changes and there is no parallel branching.
var Sequence = []Step{
	{StepId: "step-01-gtm", AgentId: "gtm-consultant", Stage: StageFoundation},
	{StepId: "step-02-persona", AgentId: "persona-strategist", Stage: StageFoundation},
	{StepId: "step-03-product", AgentId: "product-manager", Stage: StageFoundation},
	{StepId: "step-04-growth", AgentId: "growth-manager", Stage: StageStrategy},
	{StepId: "step-05-acquisition", AgentId: "head-of-acquisition", Stage: StageStrategy},
	{StepId: "step-06-retention", AgentId: "head-of-retention", Stage: StageStrategy},
	{StepId: "step-07-viral", AgentId: "viral-growth-architect", Stage: StageStrategy},
	{StepId: "step-08-experiments", AgentId: "growth-hacker", Stage: StageValidation},
}

var stageSizes = map[Stage]int{
	StageFoundation: 3,
	StageStrategy:   4,
	StageValidation: 1,
}

var stageOffsets = map[Stage]int{
	StageFoundation: 0,
	StageStrategy:   3,
	StageValidation: 7,
}

func TotalSteps() int {
	return len(Sequence)
}

// StepAt returns the step at an index, false when past the end.
func StepAt(i int) (Step, bool) {
	if i < 0 || i >= len(Sequence) {
		return Step{}, false
	}
	return Sequence[i], true
}
