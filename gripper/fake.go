package gripper

import (
	"context"
	"sync"
)

// Call is one command received by a Fake.
type Call struct {
	Name  string
	Width float64
}

// Fake is an Actuator that records the commands it receives.
type Fake struct {
	mu    sync.Mutex
	calls []Call
	width float64
	held  bool
}

// NewFake returns an open fake gripper at full width.
func NewFake() *Fake {
	return &Fake{width: MaxWidth}
}

// SetGraspWidth records the width.
func (f *Fake) SetGraspWidth(ctx context.Context, width float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.width = width
	f.calls = append(f.calls, Call{Name: "set_width", Width: width})
	return nil
}

// Grasp closes the fake on its current width.
func (f *Fake) Grasp(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = true
	f.calls = append(f.calls, Call{Name: "grasp", Width: f.width})
	return nil
}

// Open releases the fake.
func (f *Fake) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	f.width = MaxWidth
	f.calls = append(f.calls, Call{Name: "open", Width: f.width})
	return nil
}

// Calls returns the commands received so far, oldest first.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Holding reports whether the last command was a grasp.
func (f *Fake) Holding() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}
