// Package sequencer decides which goal pose a grasp task is chasing and when it
// moves on to the next one.
//
// A Sequencer is built for a single grasp target and discarded when a new
// target arrives. It never blocks: gripper settle times and scripted waits put
// it into a suspended state that clears on a later EvaluateConvergence call
// once its clock passes the resume deadline.
package sequencer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-labs/grasp-sequencer/gripper"
	"github.com/viam-labs/grasp-sequencer/script"
)

// DefaultThreshold is the convergence bound on the summed absolute position
// error, in meters.
const DefaultThreshold = 0.012

// Status is the outcome of an EvaluateConvergence call.
type Status int

// Statuses.
const (
	// StatusRunning means the goal is unchanged.
	StatusRunning Status = iota
	// StatusAdvanced means a new goal is active.
	StatusAdvanced
	// StatusSuspended means the task is waiting out a gripper settle or a
	// scripted wait.
	StatusSuspended
	// StatusCycleComplete means the traversal wrapped back to its first step.
	StatusCycleComplete
	// StatusFinished means the task is over and will not advance again.
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusAdvanced:
		return "advanced"
	case StatusSuspended:
		return "suspended"
	case StatusCycleComplete:
		return "cycle-complete"
	case StatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// LoopPolicy controls what happens when a task runs off the end of its goals.
type LoopPolicy int

const (
	// LoopStop ends the task after one pass.
	LoopStop LoopPolicy = iota
	// LoopContinue starts over from the first goal.
	LoopContinue
)

// Poses are the fixed goals a task is built from. Approach is only required by
// the l-shaped and cone modes.
type Poses struct {
	Grasp    spatialmath.Pose
	Approach spatialmath.Pose
	Home     spatialmath.Pose
	Drop     spatialmath.Pose
}

// Sequencer tracks progress through one grasp task. It is not safe for
// concurrent use; a single control loop owns it.
type Sequencer struct {
	id      uuid.UUID
	mode    Mode
	logger  logging.Logger
	clock   clock.Clock
	gripper gripper.Actuator

	goals [numGoals]spatialmath.Pose
	order []Step
	idx   int
	goal  spatialmath.Pose

	script      *script.List
	records     []script.Record
	scriptStart int

	loop       LoopPolicy
	threshold  float64
	settle     time.Duration
	graspWidth float64

	suspended bool
	resumeAt  time.Time
	onResume  func(context.Context) (Status, error)

	finished bool
}

// New builds a sequencer for mode from the given poses.
func New(mode Mode, poses Poses, opts ...Option) (*Sequencer, error) {
	if !mode.valid() {
		return nil, errors.Wrapf(ErrInvalidMode, "%v", mode)
	}
	s := &Sequencer{
		id:         uuid.New(),
		mode:       mode,
		threshold:  DefaultThreshold,
		settle:     gripper.SettleTime,
		graspWidth: gripper.DefaultGraspWidth,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("sequencer")
	}
	s.logger = s.logger.Sublogger(s.id.String()[:8])

	if poses.Grasp == nil {
		return nil, errors.New("grasp pose is required")
	}
	if mode != ModeTeleop && s.gripper == nil {
		return nil, errors.Errorf("%v mode needs a gripper", mode)
	}
	s.goals[GoalGrasp] = poses.Grasp
	s.goals[GoalApproach] = poses.Approach
	s.goals[GoalHome] = poses.Home
	s.goals[GoalDrop] = poses.Drop

	switch {
	case mode.usesTraversal():
		if poses.Home == nil || poses.Drop == nil {
			return nil, errors.Errorf("%v mode needs home and drop poses", mode)
		}
		if mode != ModeLinear && poses.Approach == nil {
			return nil, errors.Errorf("%v mode needs an approach pose", mode)
		}
		s.order = TraversalOrder(mode)
		if mode == ModeLinear {
			s.goal = poses.Grasp
		} else {
			s.goal = poses.Approach
		}
	case mode == ModeScriptedList:
		list, err := script.NewList(s.records, s.loop == LoopContinue)
		if err != nil {
			return nil, err
		}
		if err := list.Seek(s.scriptStart); err != nil {
			return nil, err
		}
		first := list.Current()
		if first.Kind != script.KindPose {
			return nil, errors.Errorf("script must start with a pose, record %d is %v", s.scriptStart, first.Kind)
		}
		s.script = list
		s.goal = first.Pose
	default:
		s.goal = poses.Grasp
	}

	s.logger.Debugw("task created", "mode", mode, "order", s.order)
	return s, nil
}

// ID identifies this task instance in logs.
func (s *Sequencer) ID() uuid.UUID {
	return s.id
}

// Mode returns the task mode.
func (s *Sequencer) Mode() Mode {
	return s.mode
}

// CurrentGoal returns the active goal pose.
func (s *Sequencer) CurrentGoal() spatialmath.Pose {
	return s.goal
}

// Goal returns the pose stored for g, nil if unset.
func (s *Sequencer) Goal(g Goal) spatialmath.Pose {
	return s.goals[g]
}

// Index is the traversal position, or the script cursor in list mode.
func (s *Sequencer) Index() int {
	if s.script != nil {
		return s.script.Index()
	}
	return s.idx
}

// Step returns the current traversal step. It is meaningless outside the
// traversal modes.
func (s *Sequencer) Step() Step {
	if len(s.order) == 0 {
		return Step{}
	}
	return s.order[s.idx]
}

// Suspended reports whether the task is waiting on a deadline.
func (s *Sequencer) Suspended() bool {
	return s.suspended
}

// ResumeAt is the deadline of the current suspension.
func (s *Sequencer) ResumeAt() time.Time {
	return s.resumeAt
}

// Finished reports whether the task has ended.
func (s *Sequencer) Finished() bool {
	return s.finished
}

// PositionError is the per axis vector from measured to the goal position.
func (s *Sequencer) PositionError(measured r3.Vector) r3.Vector {
	return s.goal.Point().Sub(measured)
}

// ConvergenceMetric sums the absolute components of an error vector.
func ConvergenceMetric(e r3.Vector) float64 {
	return math.Abs(e.X) + math.Abs(e.Y) + math.Abs(e.Z)
}

// SetConstraintGoal stores the interim goal computed by the cone constraint.
func (s *Sequencer) SetConstraintGoal(p spatialmath.Pose) {
	s.goals[GoalConstraintProjection] = p
}

// RefreshGoal re-reads the goal for the current traversal step, picking up a
// changed constraint goal. Unset slots leave the goal alone.
func (s *Sequencer) RefreshGoal() {
	if len(s.order) == 0 {
		return
	}
	if p := s.goals[s.order[s.idx].Goal]; p != nil && !s.order[s.idx].GraspAction {
		s.goal = p
	}
}

// ConeDone reports whether a cone task is past the approach, grasp and grasp
// action steps, after which the constraint no longer applies.
func (s *Sequencer) ConeDone() bool {
	return s.mode == ModeCone && s.idx > 2
}

// EvaluateConvergence checks err against the threshold and moves the task on
// when it converges. Errors come only from the gripper and end the task.
func (s *Sequencer) EvaluateConvergence(ctx context.Context, e r3.Vector) (Status, error) {
	if s.finished {
		return StatusFinished, nil
	}
	if s.suspended {
		if s.clock.Now().Before(s.resumeAt) {
			return StatusSuspended, nil
		}
		return s.resume(ctx)
	}
	if s.mode == ModeTeleop {
		return StatusRunning, nil
	}
	if ConvergenceMetric(e) >= s.threshold {
		return StatusRunning, nil
	}
	if s.mode == ModeScriptedList {
		return s.advanceScript(ctx)
	}
	return s.arrive(ctx)
}

func (s *Sequencer) suspend(d time.Duration, then func(context.Context) (Status, error)) Status {
	s.suspended = true
	s.resumeAt = s.clock.Now().Add(d)
	s.onResume = then
	s.logger.Debugw("suspended", "for", d, "index", s.Index())
	return StatusSuspended
}

func (s *Sequencer) resume(ctx context.Context) (Status, error) {
	next := s.onResume
	s.suspended = false
	s.onResume = nil
	if next == nil {
		return StatusRunning, nil
	}
	return next(ctx)
}

func (s *Sequencer) fail(err error) (Status, error) {
	s.finished = true
	s.logger.Warnw("task aborted", "error", err)
	return StatusFinished, err
}

// arrive handles convergence on the current traversal goal.
func (s *Sequencer) arrive(ctx context.Context) (Status, error) {
	if step := s.order[s.idx]; !step.GraspAction && step.Goal == GoalDrop {
		s.logger.Info("at drop pose, releasing")
		if err := s.gripper.Open(ctx); err != nil {
			return s.fail(errors.Wrap(err, "releasing at drop pose"))
		}
		return s.suspend(s.settle, s.next), nil
	}
	return s.next(ctx)
}

// next moves to the following traversal step.
func (s *Sequencer) next(ctx context.Context) (Status, error) {
	s.idx++
	if s.idx >= len(s.order) {
		s.idx = 0
		s.RefreshGoal()
		if s.loop == LoopStop {
			s.finished = true
		}
		s.logger.Infow("traversal complete", "looping", s.loop == LoopContinue)
		return StatusCycleComplete, nil
	}

	step := s.order[s.idx]
	if step.GraspAction {
		s.logger.Info("grasping")
		if err := s.gripper.Grasp(ctx); err != nil {
			return s.fail(errors.Wrap(err, "grasping"))
		}
		status, err := s.next(ctx)
		if err != nil || status != StatusAdvanced {
			return status, err
		}
		return s.suspend(s.settle, nil), nil
	}

	s.RefreshGoal()
	s.logger.Debugw("advanced", "index", s.idx, "step", step)
	return StatusAdvanced, nil
}

func (s *Sequencer) advanceScript(ctx context.Context) (Status, error) {
	if err := s.script.Advance(); err != nil {
		s.finished = true
		s.logger.Warnw("script ran out", "index", s.script.Index())
		return StatusFinished, err
	}
	if s.script.Index() == 0 {
		s.logger.Info("script wrapped")
	}
	return s.interpret(ctx)
}

// interpret acts on the record under the script cursor.
func (s *Sequencer) interpret(ctx context.Context) (Status, error) {
	rec := s.script.Current()
	s.logger.Debugw("script record", "index", s.script.Index(), "kind", rec.Kind)
	switch rec.Kind {
	case script.KindPose:
		s.goal = rec.Pose
		return StatusAdvanced, nil
	case script.KindRelease:
		if err := s.gripper.Open(ctx); err != nil {
			return s.fail(errors.Wrap(err, "scripted release"))
		}
		return s.suspend(s.settle, s.advanceScript), nil
	case script.KindGrasp:
		if err := s.gripper.SetGraspWidth(ctx, s.graspWidth); err != nil {
			return s.fail(errors.Wrap(err, "scripted grasp width"))
		}
		if err := s.gripper.Grasp(ctx); err != nil {
			return s.fail(errors.Wrap(err, "scripted grasp"))
		}
		return s.suspend(s.settle, s.advanceScript), nil
	case script.KindWait:
		return s.suspend(rec.Wait, s.advanceScript), nil
	case script.KindEnd:
		s.finished = true
		s.logger.Info("script reached its end record")
		return StatusFinished, nil
	default:
		return s.fail(errors.Errorf("unknown script record kind %v", rec.Kind))
	}
}
