package inject

import (
	"context"
	"strings"
	"sync"

	"go.viam.com/rdk/components/input"
)

// InputController is an injected input.Controller.
type InputController struct {
	input.Controller
	EventsFunc func(ctx context.Context, extra map[string]interface{}) (map[input.Control]input.Event, error)
}

// Events calls the injected Events or the real version.
func (s *InputController) Events(ctx context.Context, extra map[string]interface{}) (map[input.Control]input.Event, error) {
	if s.EventsFunc == nil {
		return s.Controller.Events(ctx, extra)
	}
	return s.EventsFunc(ctx, extra)
}

// Gamepad is an InputController whose control values are set directly.
type Gamepad struct {
	InputController
	mu     sync.Mutex
	events map[input.Control]input.Event
	err    error
}

// NewGamepad returns a Gamepad with every control at rest.
func NewGamepad() *Gamepad {
	g := &Gamepad{events: map[input.Control]input.Event{}}
	g.EventsFunc = func(ctx context.Context, extra map[string]interface{}) (map[input.Control]input.Event, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.err != nil {
			return nil, g.err
		}
		out := make(map[input.Control]input.Event, len(g.events))
		for k, v := range g.events {
			out[k] = v
		}
		return out, nil
	}
	return g
}

// Set moves control c to v.
func (g *Gamepad) Set(c input.Control, v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	event := input.PositionChangeAbs
	if v == 0 {
		event = input.ButtonRelease
	} else if strings.HasPrefix(string(c), "Button") {
		event = input.ButtonPress
	}
	g.events[c] = input.Event{Event: event, Control: c, Value: v}
}

// Fail makes Events return err until cleared with nil.
func (g *Gamepad) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}
