package workflow

// Phase is one stage of a replication session. Transitions only move
// forward; naming and validating are optional and may be skipped. Error
// and completed are terminal.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseNaming     Phase = "naming"
	PhasePlanning   Phase = "planning"
	PhaseBuilding   Phase = "building"
	PhaseValidating Phase = "validating"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	return string(p)
}

// IsValid reports membership in the phase set.
func (p Phase) IsValid() bool {
	_, ok := phaseRank[p]
	return ok || p == PhaseError
}

// IsTerminal reports whether the session can leave this phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseError
}

// phaseRank orders the forward pipeline.
var phaseRank = map[Phase]int{
	PhaseIdle:       0,
	PhaseAnalyzing:  1,
	PhaseNaming:     2,
	PhasePlanning:   3,
	PhaseBuilding:   4,
	PhaseValidating: 5,
	PhaseCompleted:  6,
}

// CanTransitionTo reports whether the transition is legal: strictly
// forward through the pipeline, with error reachable from any non-terminal
// phase.
func (p Phase) CanTransitionTo(next Phase) bool {
	if p.IsTerminal() {
		return false
	}
	if next == PhaseError {
		return true
	}
	from, ok := phaseRank[p]
	if !ok {
		return false
	}
	to, ok := phaseRank[next]
	if !ok {
		return false
	}
	return to > from
}

// phaseWeights apportion overall progress across the pipeline phases.
var phaseWeights = map[Phase]int{
	PhaseAnalyzing:  15,
	PhaseNaming:     10,
	PhasePlanning:   15,
	PhaseBuilding:   50,
	PhaseValidating: 10,
}

// phaseOrder is the weighted pipeline in execution order.
var phaseOrder = []Phase{PhaseAnalyzing, PhaseNaming, PhasePlanning, PhaseBuilding, PhaseValidating}

// percentComplete maps a phase plus its internal fraction onto the 0-100
// session scale.
func percentComplete(phase Phase, fraction float64) int {
	if phase == PhaseCompleted {
		return 100
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	base := 0
	for _, p := range phaseOrder {
		if p == phase {
			return base + int(float64(phaseWeights[p])*fraction)
		}
		base += phaseWeights[p]
	}
	return 0
}
