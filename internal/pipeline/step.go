package pipeline

import "fmt"

// Step identifies a pipeline stage. Steps run in ascending order.
type Step int

const (
	StepSample Step = iota + 1
	StepSegment
	StepSmooth
	StepExtract
	StepSimplify
	StepProject

	numSteps = int(StepProject)
)

var stepNames = [numSteps + 1]string{
	StepSample:   "sample",
	StepSegment:  "segment",
	StepSmooth:   "smooth",
	StepExtract:  "extract",
	StepSimplify: "simplify",
	StepProject:  "project",
}

// String returns the short stage name used in errors and logs.
func (s Step) String() string {
	if s.Valid() {
		return stepNames[s]
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Valid reports whether s names a stage.
func (s Step) Valid() bool {
	return s >= StepSample && int(s) <= numSteps
}

// ParseStep maps a stage name back to its Step.
func ParseStep(name string) (Step, error) {
	for i := 1; i <= numSteps; i++ {
		if stepNames[i] == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", name)
}
