// Package main runs grasp tasks against a simulated arm and checks task files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-labs/grasp-sequencer/config"
	"github.com/viam-labs/grasp-sequencer/control"
	"github.com/viam-labs/grasp-sequencer/gripper"
	"github.com/viam-labs/grasp-sequencer/pose"
	"github.com/viam-labs/grasp-sequencer/script"
	"github.com/viam-labs/grasp-sequencer/sequencer"
)

const (
	// Flags.
	flagConfig   = "config"
	flagDebug    = "debug"
	flagMode     = "mode"
	flagGrasp    = "grasp"
	flagApproach = "approach"
	flagObstacle = "obstacle"
	flagDuration = "duration"
	flagRobotiq  = "robotiq"
	flagVelocity = "velocity"
	flagRate     = "rate"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var logger logging.Logger

	return &cli.App{
		Name:  "graspseq",
		Usage: "sequence grasp tasks",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("graspseq")
			} else {
				logger = logging.NewLogger("graspseq")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run a task against a simulated arm",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagConfig,
						Aliases: []string{"c"},
						Usage:   "load task configuration from `FILE`",
					},
					&cli.StringFlag{
						Name:  flagMode,
						Usage: "override the task mode (" + strings.Join(sequencer.ModeNames(), ", ") + ")",
					},
					&cli.Float64SliceFlag{
						Name:  flagGrasp,
						Usage: "grasp pose as x,y,z,qx,qy,qz,qw",
					},
					&cli.Float64SliceFlag{
						Name:  flagApproach,
						Usage: "approach pose as x,y,z,qx,qy,qz,qw",
					},
					&cli.Float64SliceFlag{
						Name:  flagObstacle,
						Usage: "keep-out cone pose as x,y,z,qx,qy,qz,qw",
					},
					&cli.DurationFlag{
						Name:  flagDuration,
						Value: 30 * time.Second,
						Usage: "stop after this long",
					},
					&cli.StringFlag{
						Name:  flagRobotiq,
						Usage: "drive a Robotiq gripper at `HOST` instead of a simulated one",
					},
					&cli.Float64SliceFlag{
						Name:  flagVelocity,
						Value: cli.NewFloat64Slice(0, 0, 0),
						Usage: "teleop linear velocity as x,y,z",
					},
					&cli.Float64Flag{
						Name:  flagRate,
						Value: 0.2,
						Usage: "fraction of the commanded error the simulated arm closes per tick",
					},
				},
				Action: func(c *cli.Context) error {
					return runAction(c, logger)
				},
			},
			{
				Name:  "script",
				Usage: "work with scripted pose lists",
				Subcommands: []*cli.Command{
					{
						Name:      "check",
						Usage:     "parse a script and summarize it",
						ArgsUsage: "<file>",
						Action:    scriptCheckAction,
					},
					{
						Name:      "show",
						Usage:     "print a script as a table",
						ArgsUsage: "<file>",
						Action:    scriptShowAction,
					},
					{
						Name:      "fmt",
						Usage:     "print a script in canonical form",
						ArgsUsage: "<file>",
						Action:    scriptFmtAction,
					},
				},
			},
			{
				Name:      "check-config",
				Usage:     "validate a task configuration file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return errors.New("expected a config file")
					}
					cfg, err := config.Read(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s: %s task, tick %v\n", c.Args().First(), cfg.Mode, cfg.TickPeriod)
					return nil
				},
			},
		},
	}
}

func runAction(c *cli.Context, logger logging.Logger) (err error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		if cfg, err = config.Read(path); err != nil {
			return err
		}
	}
	if c.IsSet(flagMode) {
		cfg.Mode = c.String(flagMode)
		if err := cfg.Validate(flagMode); err != nil {
			return err
		}
	}
	mode, err := cfg.TaskMode()
	if err != nil {
		return err
	}

	var deps control.Dependencies
	if mode == sequencer.ModeScriptedList {
		if deps.Script, err = script.Load(cfg.ScriptPath); err != nil {
			return err
		}
	}
	if mode == sequencer.ModeTeleop {
		vel, err := parseVector(c.Float64Slice(flagVelocity))
		if err != nil {
			return err
		}
		deps.Teleop = control.TeleopFunc(func(ctx context.Context) (control.TeleopCommand, bool) {
			return control.TeleopCommand{Linear: vel}, true
		})
	}

	home, err := cfg.Home()
	if err != nil {
		return err
	}
	arm := control.NewSimArm(home, cfg.ErrorGain, c.Float64(flagRate), cfg.TickPeriod)
	deps.Sampler = control.NewTransformSampler(arm)
	deps.Publisher = arm

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fake := gripper.NewFake()
	deps.Gripper = fake
	if host := c.String(flagRobotiq); host != "" {
		var robotiq *gripper.Robotiq
		if robotiq, err = gripper.DialRobotiq(ctx, host); err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, robotiq.Close())
		}()
		deps.Gripper = robotiq
	}

	loop, err := control.NewLoop(logger, cfg, deps, nil)
	if err != nil {
		return err
	}
	if c.IsSet(flagGrasp) {
		target, err := parseTarget(c)
		if err != nil {
			return err
		}
		if _, err := loop.SetTarget(target); err != nil {
			return err
		}
	} else if mode != sequencer.ModeScriptedList && mode != sequencer.ModeTeleop {
		return errors.Errorf("%v mode needs --%s", mode, flagGrasp)
	}

	if err := loop.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.Duration(flagDuration)):
	}
	loop.Stop()

	ee, _, err := arm.LatestPose(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "end-effector at %v after %d goal commands\n", ee.Point(), arm.Goals())
	for _, call := range fake.Calls() {
		fmt.Fprintf(c.App.Writer, "gripper %s %.3f\n", call.Name, call.Width)
	}
	return nil
}

func parseTarget(c *cli.Context) (control.Target, error) {
	var t control.Target
	var err error
	if t.Grasp, err = parsePose(c.Float64Slice(flagGrasp)); err != nil {
		return t, errors.Wrapf(err, "--%s", flagGrasp)
	}
	if c.IsSet(flagApproach) {
		if t.Approach, err = parsePose(c.Float64Slice(flagApproach)); err != nil {
			return t, errors.Wrapf(err, "--%s", flagApproach)
		}
	}
	if c.IsSet(flagObstacle) {
		if t.Obstacle, err = parsePose(c.Float64Slice(flagObstacle)); err != nil {
			return t, errors.Wrapf(err, "--%s", flagObstacle)
		}
	}
	return t, nil
}

func parsePose(vals []float64) (spatialmath.Pose, error) {
	return pose.FromRecord(vals)
}

func parseVector(vals []float64) (r3.Vector, error) {
	if len(vals) != 3 {
		return r3.Vector{}, errors.Errorf("vector needs 3 values, got %d", len(vals))
	}
	return r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func scriptCheckAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("expected a script file")
	}
	records, err := script.Load(c.Args().First())
	if err != nil {
		return err
	}
	counts := map[script.Kind]int{}
	for _, r := range records {
		counts[r.Kind]++
	}
	fmt.Fprintf(c.App.Writer, "%d records:", len(records))
	for k := script.KindPose; k <= script.KindEnd; k++ {
		fmt.Fprintf(c.App.Writer, " %v=%d", k, counts[k])
	}
	fmt.Fprintln(c.App.Writer)
	if len(records) == 0 {
		return errors.New("script is empty")
	}
	if records[0].Kind != script.KindPose {
		return errors.Errorf("script must start with a pose, got %v", records[0].Kind)
	}
	return nil
}

func scriptShowAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("expected a script file")
	}
	records, err := script.Load(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, script.Table(records))
	return nil
}

func scriptFmtAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("expected a script file")
	}
	records, err := script.Load(c.Args().First())
	if err != nil {
		return err
	}
	return script.Write(c.App.Writer, records)
}
