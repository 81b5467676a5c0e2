package application

import "math"

// Step is the 1-based position of a form page.
type Step int

const (
	StepPersonal  Step = 1
	StepFinancial Step = 2
)

// TotalSteps is the number of form pages.
const TotalSteps = 2

// Title returns the heading shown for the step.
func (s Step) Title() string {
	switch s {
	case StepPersonal:
		return "Personal Details"
	case StepFinancial:
		return "Financial Details"
	default:
		return ""
	}
}

// Description returns the short caption shown under the step title.
func (s Step) Description() string {
	switch s {
	case StepPersonal:
		return "Basic information"
	case StepFinancial:
		return "Identity & banking"
	default:
		return ""
	}
}

// Progress returns round(step / TotalSteps * 100).
func (s Step) Progress() int {
	return int(math.Round(float64(s) / TotalSteps * 100))
}

// Steps lists every step in order.
func Steps() []Step {
	return []Step{StepPersonal, StepFinancial}
}

// Phase is the state of a form session. It replaces the step cursor and the
// submitting/success flags with one value, so combinations such as
// "submitting on step 1" cannot be represented.
type Phase int

const (
	PhasePersonal Phase = iota
	PhaseFinancial
	PhaseSubmitting
	PhaseSuccess
)

// Step returns the form page the phase belongs to.
func (p Phase) Step() Step {
	if p == PhasePersonal {
		return StepPersonal
	}
	return StepFinancial
}

func (p Phase) String() string {
	switch p {
	case PhasePersonal:
		return "personal"
	case PhaseFinancial:
		return "financial"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSuccess:
		return "success"
	default:
		return "unknown"
	}
}
