package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownStep    = errors.New("unknown step")
	ErrUnknownPrivacy = errors.New("unknown privacy lane")
	ErrUnknownStatus  = errors.New("unknown check-in status")
)

// Step is one phase of the check-in wizard.
type Step string

const (
	StepWelcome            Step = "welcome"
	StepCategorySelection  Step = "category-selection"
	StepWarmUp             Step = "warm-up"
	StepCategoryDiscussion Step = "category-discussion"
	StepReflection         Step = "reflection"
	StepActionItems        Step = "action-items"
	StepCompletion         Step = "completion"
)

const TotalSteps = 7

var stepOrder = [TotalSteps]Step{
	StepWelcome,
	StepCategorySelection,
	StepWarmUp,
	StepCategoryDiscussion,
	StepReflection,
	StepActionItems,
	StepCompletion,
}

// Steps returns the fixed wizard sequence.
func Steps() []Step {
	out := make([]Step, len(stepOrder))
	copy(out, stepOrder[:])
	return out
}

func ParseStep(raw string) (Step, error) {
	step := Step(strings.TrimSpace(raw))
	if !step.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, raw)
	}
	return step, nil
}

// Index is the position of s in the sequence, or -1.
func (s Step) Index() int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

func (s Step) Valid() bool {
	return s.Index() >= 0
}

// Next returns the following step. The last step (and any unknown step)
// returns itself.
func (s Step) Next() Step {
	idx := s.Index()
	if idx < 0 || idx == len(stepOrder)-1 {
		return s
	}
	return stepOrder[idx+1]
}

// CanGoToStep allows any already reached step or exactly one step ahead.
// It is advisory; Reduce does not consult it.
func CanGoToStep(current, target Step) bool {
	targetIdx := target.Index()
	if targetIdx < 0 {
		return false
	}
	return targetIdx <= current.Index()+1
}
