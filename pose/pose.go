// Package pose converts between the flat seven value pose records used by task
// scripts and configs and spatialmath poses.
//
// A record is laid out as [x, y, z, qx, qy, qz, qw]. Downstream consumers read
// the quaternion as (w, x, y, z), so WXYZ is the only supported way to emit it.
package pose

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/num/quat"
)

// RecordLen is the number of values in a pose record.
const RecordLen = 7

// FromRecord builds a pose from [x, y, z, qx, qy, qz, qw]. The quaternion is
// normalized; a zero or non-finite quaternion is rejected.
func FromRecord(rec []float64) (spatialmath.Pose, error) {
	if len(rec) != RecordLen {
		return nil, errors.Errorf("pose record needs %d values, got %d", RecordLen, len(rec))
	}
	for i, v := range rec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Errorf("pose record value %d is not finite", i)
		}
	}
	q := quat.Number{Real: rec[6], Imag: rec[3], Jmag: rec[4], Kmag: rec[5]}
	norm := quat.Abs(q)
	if norm < 1e-9 {
		return nil, errors.New("pose record has a zero quaternion")
	}
	q = quat.Scale(1/norm, q)
	return spatialmath.NewPose(r3.Vector{X: rec[0], Y: rec[1], Z: rec[2]}, (*spatialmath.Quaternion)(&q)), nil
}

// ToRecord flattens a pose back into [x, y, z, qx, qy, qz, qw].
func ToRecord(p spatialmath.Pose) []float64 {
	pt := p.Point()
	q := p.Orientation().Quaternion()
	return []float64{pt.X, pt.Y, pt.Z, q.Imag, q.Jmag, q.Kmag, q.Real}
}

// WXYZ returns the pose's orientation in the order the command consumer expects.
func WXYZ(p spatialmath.Pose) [4]float64 {
	q := p.Orientation().Quaternion()
	return [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}
}

// WithOrientation returns a pose at pt carrying the orientation of src.
func WithOrientation(pt r3.Vector, src spatialmath.Pose) spatialmath.Pose {
	return spatialmath.NewPose(pt, src.Orientation())
}
