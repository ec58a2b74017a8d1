package workflow

import (
	"time"

	"github.com/philippzach/growth-gpt-sub000/internal/entity"
)

const avgStepDuration = 30 * time.Minute

// NewProgress returns the initial progress counters for a fresh session.
func NewProgress() entity.Progress {
	return entity.Progress{
		TotalSteps:    TotalSteps(),
		CurrentStepId: Sequence[0].StepId,
	}
}

// recomputeProgress refreshes the derived counters after an advancement.
// Each stage's fraction is (steps completed within the stage) / (stage
// size), clamped to [0,1].
func recomputeProgress(session *entity.Session) {
	completed := session.Progress.CompletedSteps

	session.Progress.StageProgress = entity.StageProgress{
		Foundation: stageFraction(StageFoundation, completed),
		Strategy:   stageFraction(StageStrategy, completed),
		Validation: stageFraction(StageValidation, completed),
	}

	remaining := TotalSteps() - session.CurrentStep
	if remaining < 0 {
		remaining = 0
	}
	session.Progress.EstimatedTimeRemaining = time.Duration(remaining) * avgStepDuration

	if step, ok := StepAt(session.CurrentStep); ok {
		session.Progress.CurrentStepId = step.StepId
	} else {
		session.Progress.CurrentStepId = ""
	}
}

func stageFraction(stage Stage, completedSteps int) float64 {
	inStage := completedSteps - stageOffsets[stage]
	fraction := float64(inStage) / float64(stageSizes[stage])
	if fraction < 0 {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}
