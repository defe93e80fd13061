// ABOUTME: Stage enumeration for the linear generation state machine.
// ABOUTME: Each stage has exactly one successor; error is a sink reachable from any live stage.
package genevent

// Stage is one phase of a generation run.
type Stage string

const (
	StageConfigAssembly Stage = "config-assembly"
	StageDesignSystem   Stage = "design-system"
	StageBlueprint      Stage = "blueprint"
	StageComponents     Stage = "components"
	StageAssembly       Stage = "assembly"
	StageDone           Stage = "complete"
	StageError          Stage = "error"
)

// Stages lists the non-error stages in execution order.
var Stages = []Stage{
	StageConfigAssembly,
	StageDesignSystem,
	StageBlueprint,
	StageComponents,
	StageAssembly,
	StageDone,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	if s == StageError {
		return true
	}
	for _, st := range Stages {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no stage may follow s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError
}

// Next returns the successor of s, or "" when s is terminal or unknown.
func (s Stage) Next() Stage {
	for i, st := range Stages {
		if st == s && i+1 < len(Stages) {
			return Stages[i+1]
		}
	}
	return ""
}

// CanTransition reports whether a run in stage from may move to stage to.
// The empty stage is the state before the first stage starts.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageError {
		return true
	}
	if from == "" {
		return to == StageConfigAssembly
	}
	return from.Next() == to
}
