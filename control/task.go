package control

import (
	"context"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-labs/grasp-sequencer/command"
	"github.com/viam-labs/grasp-sequencer/coneconstraint"
	"github.com/viam-labs/grasp-sequencer/posehistory"
	"github.com/viam-labs/grasp-sequencer/sequencer"
)

// task is one grasp activation. The loop goroutine owns it.
type task struct {
	seq      *sequencer.Sequencer
	target   Target
	obstacle spatialmath.Pose
	solver   *coneconstraint.Solver
	history  *posehistory.History
	prim     coneconstraint.Primitive
	gain     float64
}

// step runs one tick against the measured pose and returns the command it
// published along with the sequencer status.
func (t *task) step(ctx context.Context, ee spatialmath.Pose, pub Publisher) ([]float64, sequencer.Status, error) {
	if t.solver != nil {
		if !t.seq.ConeDone() {
			t.solver.CheckCollision(ee, t.obstacle)
			if goal, ok := t.solver.ProjectedGoal(ee.Point(), t.target.Approach, t.target.Grasp); ok {
				t.seq.SetConstraintGoal(goal)
				t.seq.RefreshGoal()
			}
		}
	}
	t.history.Push(ee.Point())

	var errVec r3.Vector
	if !t.seq.Suspended() {
		errVec = t.seq.PositionError(ee.Point())
	}
	cmd := command.Build(t.frame(errVec), t.gain)
	if err := pub.PublishGoal(ctx, cmd); err != nil {
		return nil, sequencer.StatusRunning, err
	}

	status, err := t.seq.EvaluateConvergence(ctx, errVec)
	if status == sequencer.StatusCycleComplete && t.solver != nil {
		t.solver.ResetLatch()
	}
	return cmd, status, err
}

// restingPosition is the mean end-effector position over the history window.
func (t *task) restingPosition() (r3.Vector, bool) {
	mean, err := t.history.Mean()
	if err != nil {
		return r3.Vector{}, false
	}
	return mean, true
}

func (t *task) frame(errVec r3.Vector) command.Frame {
	f := command.Frame{
		Error:      errVec,
		Goal:       t.seq.CurrentGoal(),
		Approach:   t.target.Approach.Point(),
		Grasp:      t.target.Grasp.Point(),
		Anchor:     t.target.Grasp.Point(),
		ConeRadius: t.prim.Radius,
		ConeHeight: t.prim.Height,
	}
	if t.solver == nil {
		return f
	}
	report := t.solver.Report()
	f.Anchor = t.obstacle.Point()
	f.ConeRadius = report.Radius
	f.ConeHeight = report.Height
	f.LineDistance = report.LineDistance
	f.ConeActive = report.Active && !t.seq.ConeDone()
	xs, ys, zs := t.history.Snapshot()
	f.History = &command.History{Xs: xs, Ys: ys, Zs: zs}
	return f
}
