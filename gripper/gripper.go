// Package gripper defines the gripper operations the grasp sequencer relies on
// and adapts rdk gripper components to them.
package gripper

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/gripper"
)

// Gripper limits and timing, in meters and seconds.
const (
	MinWidth          = 0.01
	MaxWidth          = 0.08
	WidthStep         = 0.02
	DefaultGraspWidth = 0.03
	SettleTime        = 2 * time.Second
)

// SetWidthCommand is the DoCommand key used to set the grasp width on an rdk
// gripper component.
const SetWidthCommand = "set_width"

// An Actuator is a width settable gripper. Commands return once issued; callers
// allow SettleTime before relying on the result.
type Actuator interface {
	SetGraspWidth(ctx context.Context, width float64) error
	Grasp(ctx context.Context) error
	Open(ctx context.Context) error
}

type viamActuator struct {
	g gripper.Gripper
}

// FromViam wraps an rdk gripper component as an Actuator.
func FromViam(g gripper.Gripper) Actuator {
	return &viamActuator{g: g}
}

func (v *viamActuator) SetGraspWidth(ctx context.Context, width float64) error {
	if _, err := v.g.DoCommand(ctx, map[string]interface{}{SetWidthCommand: width}); err != nil {
		return errors.Wrapf(err, "setting grasp width to %.3f", width)
	}
	return nil
}

func (v *viamActuator) Grasp(ctx context.Context) error {
	// an empty grab is not an error, the task carries on regardless
	if _, err := v.g.Grab(ctx, nil); err != nil {
		return errors.Wrap(err, "grasping")
	}
	return nil
}

func (v *viamActuator) Open(ctx context.Context) error {
	return errors.Wrap(v.g.Open(ctx, nil), "opening gripper")
}

// ClampWidth limits a width to [MinWidth, MaxWidth].
func ClampWidth(width float64) float64 {
	if width < MinWidth {
		return MinWidth
	}
	if width > MaxWidth {
		return MaxWidth
	}
	return width
}
