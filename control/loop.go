package control

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/utils"

	"github.com/viam-labs/grasp-sequencer/config"
	"github.com/viam-labs/grasp-sequencer/coneconstraint"
	"github.com/viam-labs/grasp-sequencer/gripper"
	"github.com/viam-labs/grasp-sequencer/posehistory"
	"github.com/viam-labs/grasp-sequencer/safety"
	"github.com/viam-labs/grasp-sequencer/sequencer"
)

// Loop ticks the active grasp task. Targets may be set from any goroutine;
// everything else happens on the tick goroutine.
type Loop struct {
	cfg    *config.Config
	mode   sequencer.Mode
	deps   Dependencies
	logger logging.Logger
	clock  clock.Clock

	home, drop spatialmath.Pose
	prim       coneconstraint.Primitive
	bounds     safety.Bounds
	stepper    *gripper.WidthStepper

	mu        sync.Mutex
	pending   *Target
	lastGrasp spatialmath.Pose

	task *task

	cancelCtx               context.Context
	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
	ticker                  *clock.Ticker
	running                 bool

	// outside is set while a teleoperated end-effector is past the workspace box.
	outside bool
}

// NewLoop validates cfg against deps and returns a stopped loop. A nil clk uses
// the wall clock.
func NewLoop(logger logging.Logger, cfg *config.Config, deps Dependencies, clk clock.Clock) (*Loop, error) {
	mode, err := cfg.TaskMode()
	if err != nil {
		return nil, err
	}
	if deps.Sampler == nil {
		return nil, errors.New("control loop needs a pose sampler")
	}
	if deps.Publisher == nil {
		return nil, errors.New("control loop needs a publisher")
	}
	if deps.Gripper == nil {
		return nil, errors.New("control loop needs a gripper")
	}
	switch mode {
	case sequencer.ModeTeleop:
		if deps.Teleop == nil {
			return nil, errors.New("teleop mode needs a teleop source")
		}
	case sequencer.ModeScriptedList:
		if len(deps.Script) == 0 {
			return nil, errors.New("list mode needs a script")
		}
	default:
	}
	home, err := cfg.Home()
	if err != nil {
		return nil, errors.Wrap(err, "home pose")
	}
	drop, err := cfg.Drop()
	if err != nil {
		return nil, errors.Wrap(err, "drop pose")
	}
	prim, err := cfg.Primitive()
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		cfg:       cfg,
		mode:      mode,
		deps:      deps,
		logger:    logger,
		clock:     clk,
		home:      home,
		drop:      drop,
		prim:      prim,
		bounds:    cfg.Bounds(),
		stepper:   gripper.NewWidthStepper(deps.Gripper, clk),
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}
	if mode == sequencer.ModeScriptedList {
		// scripts run without waiting for a grasp target
		zero := spatialmath.NewZeroPose()
		l.pending = &Target{Grasp: zero, Approach: zero}
	}
	return l, nil
}

// SetTarget queues a grasp target for the next tick, replacing any running
// task. A grasp pose equal to the last accepted one is ignored and false is
// returned.
func (l *Loop) SetTarget(t Target) (bool, error) {
	if t.Grasp == nil {
		return false, errors.New("target needs a grasp pose")
	}
	if t.Approach == nil {
		t.Approach = t.Grasp
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastGrasp != nil && spatialmath.PoseAlmostEqual(l.lastGrasp, t.Grasp) {
		return false, nil
	}
	l.lastGrasp = t.Grasp
	l.pending = &t
	return true, nil
}

// Idle reports whether there is no running task. Call it from the tick
// goroutine or while the loop is stopped.
func (l *Loop) Idle() bool {
	return l.task == nil || l.task.seq.Finished()
}

// Start runs Tick every tick period until Stop.
func (l *Loop) Start() error {
	if l.running {
		return errors.New("control loop already running")
	}
	l.logger.Infof("running %v loop every %v", l.mode, l.cfg.TickPeriod)
	l.ticker = l.clock.Ticker(l.cfg.TickPeriod)
	waitCh := make(chan struct{})
	l.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		ticker := l.ticker
		close(waitCh)
		for {
			select {
			case <-l.cancelCtx.Done():
				return
			case <-ticker.C:
			}
			if err := l.Tick(l.cancelCtx); err != nil && !errors.Is(err, context.Canceled) {
				l.logger.Warnw("tick failed", "error", err)
			}
		}
	}, l.activeBackgroundWorkers.Done)
	<-waitCh
	l.running = true
	return nil
}

// Stop stops the loop and waits for the tick goroutine to exit.
func (l *Loop) Stop() {
	l.cancel()
	if l.running {
		l.logger.Debug("closing loop")
		l.ticker.Stop()
		l.activeBackgroundWorkers.Wait()
		l.running = false
	}
}

// Tick runs one control step. It does nothing until a pose sample exists.
func (l *Loop) Tick(ctx context.Context) error {
	ee, ok, err := l.deps.Sampler.LatestPose(ctx)
	if err != nil {
		return errors.Wrap(err, "sampling end-effector pose")
	}
	if !ok {
		return nil
	}
	if l.mode == sequencer.ModeTeleop {
		return l.teleop(ctx, ee)
	}

	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()
	if pending != nil {
		t, err := l.newTask(*pending)
		if err != nil {
			return err
		}
		l.task = t
	}
	if l.Idle() {
		return nil
	}

	_, status, err := l.task.step(ctx, ee, l.deps.Publisher)
	if err != nil {
		return errors.Wrapf(err, "task %v", l.task.seq.ID())
	}
	if l.task.seq.Finished() {
		fields := []interface{}{"task", l.task.seq.ID(), "status", status}
		if rest, ok := l.task.restingPosition(); ok {
			fields = append(fields, "resting_position", rest)
		}
		l.logger.Infow("task complete, waiting for a new target", fields...)
	}
	return nil
}

func (l *Loop) newTask(target Target) (*task, error) {
	if target.Approach == nil {
		target.Approach = target.Grasp
	}
	opts := []sequencer.Option{
		sequencer.WithLogger(l.logger),
		sequencer.WithClock(l.clock),
		sequencer.WithGripper(l.deps.Gripper),
		sequencer.WithLoopPolicy(l.cfg.LoopPolicy()),
		sequencer.WithThreshold(l.cfg.ConvergenceThreshold),
		sequencer.WithSettle(l.cfg.SettleTime),
		sequencer.WithGraspWidth(l.cfg.GraspWidth),
	}
	if l.mode == sequencer.ModeScriptedList {
		opts = append(opts, sequencer.WithScript(l.deps.Script), sequencer.WithScriptStart(l.cfg.ScriptStartIndex))
	}
	seq, err := sequencer.New(l.mode, sequencer.Poses{
		Grasp:    target.Grasp,
		Approach: target.Approach,
		Home:     l.home,
		Drop:     l.drop,
	}, opts...)
	if err != nil {
		return nil, err
	}

	t := &task{
		seq:     seq,
		target:  target,
		history: posehistory.New(l.cfg.HistoryLength),
		prim:    l.prim,
		gain:    l.cfg.ErrorGain,
	}
	if l.mode == sequencer.ModeCone {
		t.solver, err = coneconstraint.NewSolver(l.prim, l.cfg.Cone.SphereRadius)
		if err != nil {
			return nil, err
		}
		t.obstacle = target.Obstacle
		if t.obstacle == nil {
			t.obstacle = coneconstraint.ConePoseFromGoals(target.Approach, target.Grasp)
		}
	}
	l.logger.Infow("starting task", "task", seq.ID(), "mode", l.mode, "grasp", target.Grasp.Point())
	return t, nil
}

func (l *Loop) teleop(ctx context.Context, ee spatialmath.Pose) error {
	cmd, ok := l.deps.Teleop.LatestTeleop(ctx)
	if !ok {
		return nil
	}
	inside := l.bounds.Contains(ee.Point())
	if !inside && !l.outside {
		l.logger.Warnw("end-effector left the workspace, clamping outward motion", "position", ee.Point())
	}
	l.outside = !inside
	linear := l.bounds.Clamp(ee.Point(), cmd.Linear)
	if err := l.deps.Publisher.PublishVelocity(ctx, linear, cmd.Angular); err != nil {
		return err
	}
	if _, err := l.stepper.Step(ctx, cmd.GripperPresses); err != nil {
		return errors.Wrap(err, "stepping gripper width")
	}
	return nil
}
