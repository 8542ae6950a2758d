package control

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-labs/grasp-sequencer/command"
)

// SimArm is a kinematic stand-in for the arm and its velocity controller. Each
// goal command closes a fixed fraction of the commanded position error and each
// velocity command is integrated over one tick.
type SimArm struct {
	mu       sync.Mutex
	pose     spatialmath.Pose
	gain     float64
	rate     float64
	dt       time.Duration
	lastGoal []float64
	goals    int
}

// NewSimArm returns an arm at start. gain must match the error gain used to
// build commands; rate is in (0, 1].
func NewSimArm(start spatialmath.Pose, gain, rate float64, dt time.Duration) *SimArm {
	return &SimArm{pose: start, gain: gain, rate: rate, dt: dt}
}

// LatestPose returns the simulated end-effector pose.
func (a *SimArm) LatestPose(ctx context.Context) (spatialmath.Pose, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pose, true, nil
}

// LatestTransform returns the simulated end-effector pose as a column major
// homogeneous transform.
func (a *SimArm) LatestTransform(ctx context.Context) ([16]float64, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return TransformFromPose(a.pose), true, nil
}

// PublishGoal moves the arm toward the goal encoded in cmd.
func (a *SimArm) PublishGoal(ctx context.Context, cmd []float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastGoal = append(a.lastGoal[:0], cmd...)
	a.goals++
	e := r3.Vector{
		X: cmd[command.OffsetError],
		Y: cmd[command.OffsetError+1],
		Z: cmd[command.OffsetError+2],
	}.Mul(a.rate / a.gain)
	a.pose = spatialmath.NewPose(a.pose.Point().Add(e), a.pose.Orientation())
	return nil
}

// PublishVelocity integrates a velocity request over one tick.
func (a *SimArm) PublishVelocity(ctx context.Context, linear, angular r3.Vector) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pose = spatialmath.NewPose(a.pose.Point().Add(linear.Mul(a.dt.Seconds())), a.pose.Orientation())
	return nil
}

// LastGoal returns a copy of the most recent goal command.
func (a *SimArm) LastGoal() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]float64(nil), a.lastGoal...)
}

// Goals returns how many goal commands were received.
func (a *SimArm) Goals() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.goals
}
