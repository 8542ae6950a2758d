// Package config holds the settings for a grasp task and reads them from JSON
// or YAML files.
package config

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/spatialmath"
	goutils "go.viam.com/utils"

	"github.com/viam-labs/grasp-sequencer/command"
	"github.com/viam-labs/grasp-sequencer/coneconstraint"
	"github.com/viam-labs/grasp-sequencer/gripper"
	"github.com/viam-labs/grasp-sequencer/pose"
	"github.com/viam-labs/grasp-sequencer/posehistory"
	"github.com/viam-labs/grasp-sequencer/safety"
	"github.com/viam-labs/grasp-sequencer/sequencer"
)

// DefaultTickPeriod is how often the control loop runs.
const DefaultTickPeriod = 5 * time.Millisecond

// Home and drop poses of the bench setup, as [x, y, z, qx, qy, qz, qw].
var (
	DefaultHomePose = []float64{0.30871, 0.000905, 0.48742, 0.9994651, -0.00187451, 0.0307489, -0.01097748}
	DefaultDropPose = []float64{0.23127, -0.5581, 0.31198, 0.9994651, -0.00187451, 0.0307489, -0.01097748}
)

// Config describes one grasp task setup.
type Config struct {
	Mode                 string        `json:"mode"`
	TickPeriod           time.Duration `json:"tick_period"`
	ConvergenceThreshold float64       `json:"convergence_threshold"`
	SettleTime           time.Duration `json:"settle_time"`
	GraspWidth           float64       `json:"grasp_width"`
	ErrorGain            float64       `json:"error_gain"`
	Loop                 bool          `json:"loop"`
	HomePose             []float64     `json:"home_pose"`
	DropPose             []float64     `json:"drop_pose"`
	ScriptPath           string        `json:"script_path,omitempty"`
	ScriptStartIndex     int           `json:"script_start_index"`
	Cone                 Cone          `json:"cone"`
	Workspace            Workspace     `json:"workspace"`
	HistoryLength        int           `json:"history_length"`
}

// Cone configures the keep-out primitive used by cone tasks.
type Cone struct {
	Shape        string  `json:"shape"`
	Radius       float64 `json:"radius"`
	Height       float64 `json:"height"`
	SphereRadius float64 `json:"sphere_radius"`
}

// Workspace configures the teleop safety box.
type Workspace struct {
	ZMin float64 `json:"z_min"`
}

// Default returns the configuration used when a file leaves a field unset.
func Default() *Config {
	return &Config{
		Mode:                 sequencer.ModeLinear.String(),
		TickPeriod:           DefaultTickPeriod,
		ConvergenceThreshold: sequencer.DefaultThreshold,
		SettleTime:           gripper.SettleTime,
		GraspWidth:           gripper.DefaultGraspWidth,
		ErrorGain:            command.DefaultErrorGain,
		HomePose:             append([]float64(nil), DefaultHomePose...),
		DropPose:             append([]float64(nil), DefaultDropPose...),
		Cone: Cone{
			Shape:        coneconstraint.ShapeCone.String(),
			Radius:       coneconstraint.DefaultRadius,
			Height:       coneconstraint.DefaultHeight,
			SphereRadius: coneconstraint.DefaultSphereRadius,
		},
		Workspace:     Workspace{ZMin: safety.DefaultZMin},
		HistoryLength: posehistory.DefaultCapacity,
	}
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate(path string) error {
	var errs error
	if c.Mode == "" {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "mode"))
	} else if _, err := c.TaskMode(); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, err))
	}
	if c.TickPeriod <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.New("tick_period must be positive")))
	}
	if c.ConvergenceThreshold <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.New("convergence_threshold must be positive")))
	}
	if c.SettleTime < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.New("settle_time cannot be negative")))
	}
	if c.GraspWidth < gripper.MinWidth || c.GraspWidth > gripper.MaxWidth {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("grasp_width must be within [%v, %v], got %v", gripper.MinWidth, gripper.MaxWidth, c.GraspWidth)))
	}
	if c.ErrorGain <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.New("error_gain must be positive")))
	}
	if _, err := pose.FromRecord(c.HomePose); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.Wrap(err, "home_pose")))
	}
	if _, err := pose.FromRecord(c.DropPose); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.Wrap(err, "drop_pose")))
	}
	if mode, err := c.TaskMode(); err == nil && mode == sequencer.ModeScriptedList && c.ScriptPath == "" {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "script_path"))
	}
	if c.ScriptStartIndex < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.New("script_start_index cannot be negative")))
	}
	if _, err := c.Primitive(); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path+".cone", err))
	}
	if c.Cone.SphereRadius <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path+".cone",
			errors.New("sphere_radius must be positive")))
	}
	if c.Workspace.ZMin < safety.MinZMin || c.Workspace.ZMin >= safety.ZMax {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path+".workspace",
			errors.Errorf("z_min must be within [%v, %v), got %v", safety.MinZMin, safety.ZMax, c.Workspace.ZMin)))
	}
	if c.HistoryLength <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.New("history_length must be positive")))
	}
	return errs
}

// TaskMode parses Mode.
func (c *Config) TaskMode() (sequencer.Mode, error) {
	return sequencer.ParseMode(c.Mode)
}

// LoopPolicy maps Loop onto the sequencer policy.
func (c *Config) LoopPolicy() sequencer.LoopPolicy {
	if c.Loop {
		return sequencer.LoopContinue
	}
	return sequencer.LoopStop
}

// Home returns the parsed home pose.
func (c *Config) Home() (spatialmath.Pose, error) {
	return pose.FromRecord(c.HomePose)
}

// Drop returns the parsed drop pose.
func (c *Config) Drop() (spatialmath.Pose, error) {
	return pose.FromRecord(c.DropPose)
}

// Primitive returns the configured keep-out primitive.
func (c *Config) Primitive() (coneconstraint.Primitive, error) {
	shape, err := coneconstraint.ParseShape(c.Cone.Shape)
	if err != nil {
		return coneconstraint.Primitive{}, err
	}
	prim := coneconstraint.Primitive{Shape: shape, Radius: c.Cone.Radius, Height: c.Cone.Height}
	if err := prim.Validate(); err != nil {
		return coneconstraint.Primitive{}, err
	}
	return prim, nil
}

// Bounds returns the teleop workspace box.
func (c *Config) Bounds() safety.Bounds {
	return safety.DefaultBounds(c.Workspace.ZMin)
}
