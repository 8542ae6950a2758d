// Package inject provides test doubles whose behavior is set per test.
package inject

import (
	"context"

	"github.com/viam-labs/grasp-sequencer/gripper"
)

// Gripper is an injected gripper.Actuator. Unset funcs fall through to the
// embedded Actuator, or succeed when there is none.
type Gripper struct {
	gripper.Actuator
	SetGraspWidthFunc func(ctx context.Context, width float64) error
	GraspFunc         func(ctx context.Context) error
	OpenFunc          func(ctx context.Context) error
}

// NewGripper returns an injected gripper recording into a gripper.Fake.
func NewGripper() (*Gripper, *gripper.Fake) {
	fake := gripper.NewFake()
	return &Gripper{Actuator: fake}, fake
}

// SetGraspWidth calls the injected SetGraspWidth or the real version.
func (g *Gripper) SetGraspWidth(ctx context.Context, width float64) error {
	if g.SetGraspWidthFunc == nil {
		if g.Actuator == nil {
			return nil
		}
		return g.Actuator.SetGraspWidth(ctx, width)
	}
	return g.SetGraspWidthFunc(ctx, width)
}

// Grasp calls the injected Grasp or the real version.
func (g *Gripper) Grasp(ctx context.Context) error {
	if g.GraspFunc == nil {
		if g.Actuator == nil {
			return nil
		}
		return g.Actuator.Grasp(ctx)
	}
	return g.GraspFunc(ctx)
}

// Open calls the injected Open or the real version.
func (g *Gripper) Open(ctx context.Context) error {
	if g.OpenFunc == nil {
		if g.Actuator == nil {
			return nil
		}
		return g.Actuator.Open(ctx)
	}
	return g.OpenFunc(ctx)
}
