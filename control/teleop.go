package control

import (
	"context"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/components/input"
	"go.viam.com/rdk/logging"
)

// Gamepad scaling: stick deflection to linear velocity, hat and bumpers to
// angular velocity.
const (
	DefaultLinearStride  = 0.002
	DefaultAngularStride = 0.0125
	stickDeadzone        = 0.1
)

// GamepadTeleop reads operator requests from an rdk input controller laid out
// like an Xbox pad. The left stick moves in x and y, the right stick in z, the
// hat and bumpers rotate, A widens and B narrows the gripper.
type GamepadTeleop struct {
	ctrl          input.Controller
	logger        logging.Logger
	linearStride  float64
	angularStride float64

	mu       sync.Mutex
	lastDown map[input.Control]bool
}

// NewGamepadTeleop returns a TeleopSource reading ctrl.
func NewGamepadTeleop(ctrl input.Controller, logger logging.Logger) *GamepadTeleop {
	return &GamepadTeleop{
		ctrl:          ctrl,
		logger:        logger,
		linearStride:  DefaultLinearStride,
		angularStride: DefaultAngularStride,
		lastDown:      map[input.Control]bool{},
	}
}

// LatestTeleop samples the controller. Gripper presses are counted on the
// press edge only.
func (g *GamepadTeleop) LatestTeleop(ctx context.Context) (TeleopCommand, bool) {
	events, err := g.ctrl.Events(ctx, nil)
	if err != nil {
		g.logger.Debugw("reading gamepad", "error", err)
		return TeleopCommand{}, false
	}
	axis := func(c input.Control) float64 {
		v := events[c].Value
		if math.Abs(v) <= stickDeadzone {
			return 0
		}
		return v
	}

	var cmd TeleopCommand
	cmd.Linear = r3.Vector{
		X: axis(input.AbsoluteY),
		Y: axis(input.AbsoluteX),
		Z: axis(input.AbsoluteRY),
	}.Mul(g.linearStride)
	cmd.Angular = r3.Vector{
		X: axis(input.AbsoluteHat0X),
		Y: axis(input.AbsoluteHat0Y),
	}
	if events[input.ButtonLT].Value > stickDeadzone {
		cmd.Angular.Z++
	}
	if events[input.ButtonRT].Value > stickDeadzone {
		cmd.Angular.Z--
	}
	cmd.Angular = cmd.Angular.Mul(g.angularStride)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pressed(events, input.ButtonSouth) {
		cmd.GripperPresses++
	}
	if g.pressed(events, input.ButtonEast) {
		cmd.GripperPresses--
	}
	return cmd, true
}

func (g *GamepadTeleop) pressed(events map[input.Control]input.Event, c input.Control) bool {
	down := events[c].Value > stickDeadzone
	was := g.lastDown[c]
	g.lastDown[c] = down
	return down && !was
}
