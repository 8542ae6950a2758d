package sequencer

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/rdk/logging"

	"github.com/viam-labs/grasp-sequencer/gripper"
	"github.com/viam-labs/grasp-sequencer/script"
)

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// WithClock sets the clock used for suspension deadlines.
func WithClock(clk clock.Clock) Option {
	return func(s *Sequencer) {
		s.clock = clk
	}
}

// WithGripper sets the gripper driven on grasp, release and drop.
func WithGripper(g gripper.Actuator) Option {
	return func(s *Sequencer) {
		s.gripper = g
	}
}

// WithScript supplies the records walked in list mode.
func WithScript(records []script.Record) Option {
	return func(s *Sequencer) {
		s.records = records
	}
}

// WithLoopPolicy sets what happens after the last goal.
func WithLoopPolicy(p LoopPolicy) Option {
	return func(s *Sequencer) {
		s.loop = p
	}
}

// WithThreshold overrides DefaultThreshold.
func WithThreshold(threshold float64) Option {
	return func(s *Sequencer) {
		s.threshold = threshold
	}
}

// WithSettle overrides how long the task pauses after a gripper command.
func WithSettle(d time.Duration) Option {
	return func(s *Sequencer) {
		s.settle = d
	}
}

// WithGraspWidth overrides the width set before a scripted grasp.
func WithGraspWidth(width float64) Option {
	return func(s *Sequencer) {
		s.graspWidth = width
	}
}

// WithScriptStart starts a list task part way through its script. The record at
// index must be a pose.
func WithScriptStart(index int) Option {
	return func(s *Sequencer) {
		s.scriptStart = index
	}
}
