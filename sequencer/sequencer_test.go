package sequencer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"

	"github.com/viam-labs/grasp-sequencer/gripper"
	"github.com/viam-labs/grasp-sequencer/script"
	"github.com/viam-labs/grasp-sequencer/testutils/inject"
)

var (
	graspPose    = spatialmath.NewPoseFromPoint(r3.Vector{X: 0.5, Y: 0.1, Z: 0.1})
	approachPose = spatialmath.NewPoseFromPoint(r3.Vector{X: 0.5, Y: 0.1, Z: 0.3})
	homePose     = spatialmath.NewPoseFromPoint(r3.Vector{X: 0.3, Y: 0, Z: 0.5})
	dropPose     = spatialmath.NewPoseFromPoint(r3.Vector{X: 0.2, Y: -0.5, Z: 0.3})
	testPoses    = Poses{Grasp: graspPose, Approach: approachPose, Home: homePose, Drop: dropPose}
)

type harness struct {
	seq   *Sequencer
	clock *clock.Mock
	fake  *gripper.Fake
	grip  *inject.Gripper
}

func newHarness(t *testing.T, mode Mode, poses Poses, opts ...Option) *harness {
	t.Helper()
	mock := clock.NewMock()
	grip, fake := inject.NewGripper()
	opts = append([]Option{
		WithClock(mock),
		WithGripper(grip),
		WithLogger(logging.NewTestLogger(t)),
	}, opts...)
	seq, err := New(mode, poses, opts...)
	test.That(t, err, test.ShouldBeNil)
	return &harness{seq: seq, clock: mock, fake: fake, grip: grip}
}

// converge evaluates with the arm sitting exactly on the current goal.
func (h *harness) converge(t *testing.T) Status {
	t.Helper()
	status, err := h.seq.EvaluateConvergence(context.Background(), h.seq.PositionError(h.seq.CurrentGoal().Point()))
	test.That(t, err, test.ShouldBeNil)
	return status
}

func callNames(f *gripper.Fake) []string {
	var names []string
	for _, c := range f.Calls() {
		names = append(names, c.Name)
	}
	return names
}

func TestLinearTask(t *testing.T) {
	h := newHarness(t, ModeLinear, testPoses)
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, graspPose)
	test.That(t, h.seq.Step(), test.ShouldResemble, Step{Goal: GoalGrasp})

	// far away nothing moves
	status, err := h.seq.EvaluateConvergence(context.Background(), r3.Vector{X: 0.1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status, test.ShouldEqual, StatusRunning)

	// at the grasp pose the gripper closes and the task holds for the settle time
	test.That(t, h.converge(t), test.ShouldEqual, StatusSuspended)
	test.That(t, callNames(h.fake), test.ShouldResemble, []string{"grasp"})
	test.That(t, h.seq.Index(), test.ShouldEqual, 2)
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, homePose)
	test.That(t, h.seq.ResumeAt(), test.ShouldEqual, h.clock.Now().Add(gripper.SettleTime))

	h.clock.Add(time.Second)
	test.That(t, h.converge(t), test.ShouldEqual, StatusSuspended)
	h.clock.Add(time.Second)
	test.That(t, h.converge(t), test.ShouldEqual, StatusRunning)
	test.That(t, h.seq.Suspended(), test.ShouldBeFalse)

	test.That(t, h.converge(t), test.ShouldEqual, StatusAdvanced)
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, dropPose)

	// arriving at drop releases, then moves on once settled
	test.That(t, h.converge(t), test.ShouldEqual, StatusSuspended)
	test.That(t, callNames(h.fake), test.ShouldResemble, []string{"grasp", "open"})
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, dropPose)
	h.clock.Add(gripper.SettleTime)
	test.That(t, h.converge(t), test.ShouldEqual, StatusAdvanced)
	test.That(t, h.seq.Index(), test.ShouldEqual, 4)
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, homePose)

	test.That(t, h.converge(t), test.ShouldEqual, StatusCycleComplete)
	test.That(t, h.seq.Finished(), test.ShouldBeTrue)
	test.That(t, h.seq.Index(), test.ShouldEqual, 0)

	// nothing happens after the task is done
	test.That(t, h.converge(t), test.ShouldEqual, StatusFinished)
	test.That(t, len(h.fake.Calls()), test.ShouldEqual, 2)
}

func TestThresholdBoundary(t *testing.T) {
	h := newHarness(t, ModeLinear, testPoses, WithThreshold(0.5))
	ctx := context.Background()

	status, err := h.seq.EvaluateConvergence(ctx, r3.Vector{X: 0.25, Y: -0.25})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status, test.ShouldEqual, StatusRunning)

	status, err = h.seq.EvaluateConvergence(ctx, r3.Vector{X: 0.25, Y: -0.125})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status, test.ShouldEqual, StatusSuspended)
}

func TestConvergenceMetric(t *testing.T) {
	test.That(t, ConvergenceMetric(r3.Vector{X: -0.004, Y: 0.004, Z: 0.004}), test.ShouldAlmostEqual, 0.012)
	test.That(t, ConvergenceMetric(r3.Vector{}), test.ShouldEqual, 0.0)
}

func TestLShapedTask(t *testing.T) {
	h := newHarness(t, ModeLShaped, testPoses, WithSettle(0))
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, approachPose)

	test.That(t, h.converge(t), test.ShouldEqual, StatusAdvanced)
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, graspPose)
	test.That(t, h.converge(t), test.ShouldEqual, StatusSuspended)
	test.That(t, h.seq.Index(), test.ShouldEqual, 3)
	test.That(t, h.converge(t), test.ShouldEqual, StatusRunning)

	var goals []spatialmath.Pose
	for !h.seq.Finished() {
		if h.converge(t) == StatusAdvanced {
			goals = append(goals, h.seq.CurrentGoal())
		}
	}
	test.That(t, goals, test.ShouldResemble, []spatialmath.Pose{dropPose, homePose})
	test.That(t, callNames(h.fake), test.ShouldResemble, []string{"grasp", "open"})
}

func TestConeTask(t *testing.T) {
	h := newHarness(t, ModeCone, testPoses, WithSettle(0))
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, approachPose)
	test.That(t, h.seq.ConeDone(), test.ShouldBeFalse)

	projected := spatialmath.NewPoseFromPoint(r3.Vector{X: 0.45, Y: 0.1, Z: 0.25})
	h.seq.SetConstraintGoal(projected)
	h.seq.RefreshGoal()
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, projected)
	test.That(t, h.seq.Goal(GoalConstraintProjection), test.ShouldEqual, projected)

	test.That(t, h.converge(t), test.ShouldEqual, StatusAdvanced)
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, graspPose)
	// the constraint goal no longer applies past the first step
	h.seq.RefreshGoal()
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, graspPose)

	test.That(t, h.converge(t), test.ShouldEqual, StatusSuspended)
	test.That(t, h.seq.ConeDone(), test.ShouldBeTrue)
}

func TestLoopContinue(t *testing.T) {
	h := newHarness(t, ModeLinear, testPoses, WithSettle(0), WithLoopPolicy(LoopContinue))
	cycles := 0
	for i := 0; i < 20; i++ {
		if h.converge(t) == StatusCycleComplete {
			cycles++
		}
	}
	test.That(t, h.seq.Finished(), test.ShouldBeFalse)
	test.That(t, cycles, test.ShouldBeGreaterThanOrEqualTo, 2)
}

func TestGripperFailureEndsTask(t *testing.T) {
	h := newHarness(t, ModeLinear, testPoses)
	h.grip.GraspFunc = func(ctx context.Context) error {
		return errors.New("no object")
	}
	status, err := h.seq.EvaluateConvergence(context.Background(), r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no object")
	test.That(t, status, test.ShouldEqual, StatusFinished)
	test.That(t, h.seq.Finished(), test.ShouldBeTrue)
}

func scriptRecords(t *testing.T, text string) []script.Record {
	t.Helper()
	records, err := script.Parse(strings.NewReader(text))
	test.That(t, err, test.ShouldBeNil)
	return records
}

func TestScriptedTask(t *testing.T) {
	records := scriptRecords(t, `[0.3, 0.1, 0.2, 1, 0, 0, 0]
[1]
[0.4, -0.2, 0.3, 1, 0, 0, 0]
[2, 0.5]
[0]
[0.3, 0.0, 0.5, 1, 0, 0, 0]
[3]
`)
	h := newHarness(t, ModeScriptedList, Poses{Grasp: graspPose}, WithScript(records))
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, records[0].Pose)

	// grasp record: width then close, wait, then straight onto the next pose
	test.That(t, h.converge(t), test.ShouldEqual, StatusSuspended)
	test.That(t, h.seq.Index(), test.ShouldEqual, 1)
	test.That(t, h.fake.Calls(), test.ShouldResemble, []gripper.Call{
		{Name: "set_width", Width: gripper.DefaultGraspWidth},
		{Name: "grasp", Width: gripper.DefaultGraspWidth},
	})
	h.clock.Add(gripper.SettleTime)
	test.That(t, h.converge(t), test.ShouldEqual, StatusAdvanced)
	test.That(t, h.seq.Index(), test.ShouldEqual, 2)
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, records[2].Pose)

	// scripted wait
	test.That(t, h.converge(t), test.ShouldEqual, StatusSuspended)
	test.That(t, h.seq.ResumeAt(), test.ShouldEqual, h.clock.Now().Add(500*time.Millisecond))
	h.clock.Add(500 * time.Millisecond)

	// release follows directly after the wait
	test.That(t, h.converge(t), test.ShouldEqual, StatusSuspended)
	test.That(t, h.seq.Index(), test.ShouldEqual, 4)
	test.That(t, h.fake.Holding(), test.ShouldBeFalse)
	h.clock.Add(gripper.SettleTime)
	test.That(t, h.converge(t), test.ShouldEqual, StatusAdvanced)
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, records[5].Pose)

	test.That(t, h.converge(t), test.ShouldEqual, StatusFinished)
	test.That(t, h.seq.Finished(), test.ShouldBeTrue)
}

func TestScriptExhausted(t *testing.T) {
	records := scriptRecords(t, "[0.3, 0.1, 0.2, 1, 0, 0, 0]\n[0.4, 0.1, 0.2, 1, 0, 0, 0]\n")
	h := newHarness(t, ModeScriptedList, Poses{Grasp: graspPose}, WithScript(records))
	test.That(t, h.converge(t), test.ShouldEqual, StatusAdvanced)

	status, err := h.seq.EvaluateConvergence(context.Background(), r3.Vector{})
	test.That(t, errors.Is(err, script.ErrExhausted), test.ShouldBeTrue)
	test.That(t, status, test.ShouldEqual, StatusFinished)
}

func TestScriptLoops(t *testing.T) {
	records := scriptRecords(t, "[0.3, 0.1, 0.2, 1, 0, 0, 0]\n[0.4, 0.1, 0.2, 1, 0, 0, 0]\n")
	h := newHarness(t, ModeScriptedList, Poses{Grasp: graspPose},
		WithScript(records), WithLoopPolicy(LoopContinue), WithScriptStart(1))
	test.That(t, h.seq.Index(), test.ShouldEqual, 1)
	test.That(t, h.converge(t), test.ShouldEqual, StatusAdvanced)
	test.That(t, h.seq.Index(), test.ShouldEqual, 0)
	test.That(t, h.seq.CurrentGoal(), test.ShouldEqual, records[0].Pose)
}

func TestTeleopNeverAdvances(t *testing.T) {
	seq, err := New(ModeTeleop, Poses{Grasp: graspPose}, WithLogger(logging.NewTestLogger(t)))
	test.That(t, err, test.ShouldBeNil)
	status, err := seq.EvaluateConvergence(context.Background(), r3.Vector{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status, test.ShouldEqual, StatusRunning)
	test.That(t, seq.CurrentGoal(), test.ShouldEqual, graspPose)
}

func TestNewValidation(t *testing.T) {
	logger := logging.NewTestLogger(t)
	grip, _ := inject.NewGripper()
	records := scriptRecords(t, "[1]\n[0.3, 0.1, 0.2, 1, 0, 0, 0]\n")

	for _, tc := range []struct {
		name  string
		mode  Mode
		poses Poses
		opts  []Option
		err   string
	}{
		{"bad mode", Mode(42), testPoses, nil, "invalid task mode"},
		{"no grasp", ModeLinear, Poses{Home: homePose, Drop: dropPose}, []Option{WithGripper(grip)}, "grasp pose"},
		{"no gripper", ModeLinear, testPoses, nil, "needs a gripper"},
		{"no drop", ModeLinear, Poses{Grasp: graspPose, Home: homePose}, []Option{WithGripper(grip)}, "home and drop"},
		{"no approach", ModeCone, Poses{Grasp: graspPose, Home: homePose, Drop: dropPose}, []Option{WithGripper(grip)}, "approach"},
		{"empty script", ModeScriptedList, testPoses, []Option{WithGripper(grip)}, "empty"},
		{"script starts with action", ModeScriptedList, testPoses, []Option{WithGripper(grip), WithScript(records)}, "must start with a pose"},
		{"script start out of range", ModeScriptedList, testPoses, []Option{WithGripper(grip), WithScript(records), WithScriptStart(5)}, "out of range"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.mode, tc.poses, append(tc.opts, WithLogger(logger))...)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.err)
		})
	}
}

func TestParseMode(t *testing.T) {
	for name, want := range map[string]Mode{
		"linear":   ModeLinear,
		"L-Shaped": ModeLShaped,
		"lshaped":  ModeLShaped,
		" cone ":   ModeCone,
		"list":     ModeScriptedList,
		"xbox":     ModeTeleop,
	} {
		got, err := ParseMode(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, want)
	}
	_, err := ParseMode("spiral")
	test.That(t, errors.Is(err, ErrInvalidMode), test.ShouldBeTrue)
	test.That(t, ModeNames(), test.ShouldResemble, []string{"linear", "l-shaped", "cone", "list", "teleop"})
}

func TestTraversalOrder(t *testing.T) {
	order := TraversalOrder(ModeLShaped)
	test.That(t, len(order), test.ShouldEqual, 6)
	test.That(t, order[2].String(), test.ShouldEqual, "grasp-action")
	order[0] = graspAction
	test.That(t, TraversalOrder(ModeLShaped)[0], test.ShouldResemble, Step{Goal: GoalApproach})
	test.That(t, TraversalOrder(ModeTeleop), test.ShouldBeEmpty)
}
