// Package control runs grasp tasks on a fixed tick, feeding measured poses into
// the sequencer and publishing the resulting goal commands.
package control

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-labs/grasp-sequencer/gripper"
	"github.com/viam-labs/grasp-sequencer/script"
)

// A PoseSampler supplies the latest measured end-effector pose. ok is false
// until the first measurement arrives.
type PoseSampler interface {
	LatestPose(ctx context.Context) (p spatialmath.Pose, ok bool, err error)
}

// A Publisher delivers commands to the downstream controller.
type Publisher interface {
	PublishGoal(ctx context.Context, command []float64) error
	PublishVelocity(ctx context.Context, linear, angular r3.Vector) error
}

// TeleopCommand is one operator request.
type TeleopCommand struct {
	Linear  r3.Vector
	Angular r3.Vector
	// GripperPresses is positive to widen and negative to narrow.
	GripperPresses int
}

// A TeleopSource supplies the latest operator request, ok is false when there
// is none.
type TeleopSource interface {
	LatestTeleop(ctx context.Context) (cmd TeleopCommand, ok bool)
}

// TeleopFunc adapts a function to a TeleopSource.
type TeleopFunc func(ctx context.Context) (TeleopCommand, bool)

// LatestTeleop calls f.
func (f TeleopFunc) LatestTeleop(ctx context.Context) (TeleopCommand, bool) {
	return f(ctx)
}

// Target is a grasp request. Approach defaults to Grasp. Obstacle places the
// keep-out cone; when nil it is derived from Approach and Grasp.
type Target struct {
	Grasp    spatialmath.Pose
	Approach spatialmath.Pose
	Obstacle spatialmath.Pose
}

// Dependencies are the collaborators a Loop drives.
type Dependencies struct {
	Sampler   PoseSampler
	Publisher Publisher
	Gripper   gripper.Actuator
	Teleop    TeleopSource
	Script    []script.Record
}

// A TransformSource reports the end-effector as a column major 4x4
// homogeneous transform. ok is false until the first measurement arrives.
type TransformSource interface {
	LatestTransform(ctx context.Context) (m [16]float64, ok bool, err error)
}

// TransformSampler is a PoseSampler over a TransformSource.
type TransformSampler struct {
	src TransformSource
}

// NewTransformSampler returns a PoseSampler reading src.
func NewTransformSampler(src TransformSource) *TransformSampler {
	return &TransformSampler{src: src}
}

// LatestPose converts the latest transform into a pose.
func (s *TransformSampler) LatestPose(ctx context.Context) (spatialmath.Pose, bool, error) {
	m, ok, err := s.src.LatestTransform(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	p, err := PoseFromTransform(m)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// PoseFromTransform reads a column major 4x4 homogeneous transform, as
// reported by the arm, into a pose.
func PoseFromTransform(m [16]float64) (spatialmath.Pose, error) {
	rot, err := spatialmath.NewRotationMatrix([]float64{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading end-effector rotation")
	}
	return spatialmath.NewPose(r3.Vector{X: m[12], Y: m[13], Z: m[14]}, rot), nil
}

// TransformFromPose is the inverse of PoseFromTransform.
func TransformFromPose(p spatialmath.Pose) [16]float64 {
	q := p.Orientation().Quaternion()
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	pt := p.Point()
	// columns: x axis, y axis, z axis, translation
	return [16]float64{
		1 - 2*(y*y+z*z), 2 * (x*y + w*z), 2 * (x*z - w*y), 0,
		2 * (x*y - w*z), 1 - 2*(x*x+z*z), 2 * (y*z + w*x), 0,
		2 * (x*z + w*y), 2 * (y*z - w*x), 1 - 2*(x*x+y*y), 0,
		pt.X, pt.Y, pt.Z, 1,
	}
}
