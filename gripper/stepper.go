package gripper

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// WidthStepper drives a gripper from discrete open/close presses. Each press
// moves the target width by WidthStep within [MinWidth, MaxWidth]; the gripper
// is commanded at most once per SettleTime and always with the latest target.
type WidthStepper struct {
	mu      sync.Mutex
	act     Actuator
	clock   clock.Clock
	limiter *rate.Limiter
	width   float64
}

// NewWidthStepper returns a stepper starting fully open.
func NewWidthStepper(act Actuator, clk clock.Clock) *WidthStepper {
	if clk == nil {
		clk = clock.New()
	}
	return &WidthStepper{
		act:     act,
		clock:   clk,
		limiter: rate.NewLimiter(rate.Every(SettleTime), 1),
		width:   MaxWidth,
	}
}

// Step applies presses steps (positive widens, negative narrows) and commands
// the gripper if the settle window has passed. It reports whether a command
// was sent.
func (s *WidthStepper) Step(ctx context.Context, presses int) (bool, error) {
	if presses == 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.width = ClampWidth(s.width + float64(presses)*WidthStep)
	if !s.limiter.AllowN(s.clock.Now(), 1) {
		return false, nil
	}
	if err := s.act.SetGraspWidth(ctx, s.width); err != nil {
		return false, err
	}
	if err := s.act.Grasp(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Width returns the current target width.
func (s *WidthStepper) Width() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}
