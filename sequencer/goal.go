package sequencer

import "fmt"

// Goal names one of the poses a task can target.
type Goal int

// Goals.
const (
	GoalGrasp Goal = iota
	GoalApproach
	GoalHome
	GoalDrop
	GoalConstraintProjection
	numGoals
)

func (g Goal) String() string {
	switch g {
	case GoalGrasp:
		return "grasp"
	case GoalApproach:
		return "approach"
	case GoalHome:
		return "home"
	case GoalDrop:
		return "drop"
	case GoalConstraintProjection:
		return "constraint"
	default:
		return fmt.Sprintf("Goal(%d)", int(g))
	}
}

// Step is one entry of a traversal order: a goal to reach, or the grasp action
// marker.
type Step struct {
	Goal        Goal
	GraspAction bool
}

func (s Step) String() string {
	if s.GraspAction {
		return "grasp-action"
	}
	return s.Goal.String()
}

func goalStep(g Goal) Step {
	return Step{Goal: g}
}

var graspAction = Step{GraspAction: true}

// traversalOrders holds the fixed goal order for each traversal mode.
var traversalOrders = map[Mode][]Step{
	ModeLinear: {
		goalStep(GoalGrasp), graspAction, goalStep(GoalHome), goalStep(GoalDrop), goalStep(GoalHome),
	},
	ModeLShaped: {
		goalStep(GoalApproach), goalStep(GoalGrasp), graspAction, goalStep(GoalHome), goalStep(GoalDrop), goalStep(GoalHome),
	},
	ModeCone: {
		goalStep(GoalConstraintProjection), goalStep(GoalGrasp), graspAction, goalStep(GoalHome), goalStep(GoalDrop), goalStep(GoalHome),
	},
}

// TraversalOrder returns a copy of the goal order for a mode, or nil for modes
// that do not walk a fixed order.
func TraversalOrder(m Mode) []Step {
	return append([]Step(nil), traversalOrders[m]...)
}
