// Package command assembles the per tick goal command consumed by the
// downstream velocity controller. The field order is fixed; consumers index
// into the vector by position.
package command

import (
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-labs/grasp-sequencer/pose"
)

// DefaultErrorGain scales the position error before it is sent.
const DefaultErrorGain = 0.005

// Offsets of the fixed fields.
const (
	OffsetError        = 0
	OffsetQuaternion   = 3
	OffsetDirection    = 7
	OffsetConeRadius   = 10
	OffsetConeHeight   = 11
	OffsetLineDistance = 12
	OffsetConeActive   = 13
	OffsetApproach     = 14
	OffsetAnchor       = 17
	FixedLen           = 20
)

// Frame is everything one command is built from.
type Frame struct {
	// Error is goal minus measured position.
	Error r3.Vector
	// Goal supplies the orientation.
	Goal     spatialmath.Pose
	Approach r3.Vector
	Grasp    r3.Vector
	// Anchor is sent in place of the grasp position, the obstacle center in
	// cone tasks and the grasp position otherwise.
	Anchor       r3.Vector
	ConeRadius   float64
	ConeHeight   float64
	LineDistance float64
	ConeActive   bool
	// History is appended when set, x values then y then z.
	History *History
}

// History is a snapshot of the recent end-effector positions.
type History struct {
	Xs, Ys, Zs []float64
}

// Build lays out f as a flat vector, scaling the error by gain.
func Build(f Frame, gain float64) []float64 {
	n := FixedLen
	if f.History != nil {
		n += len(f.History.Xs) + len(f.History.Ys) + len(f.History.Zs)
	}
	out := make([]float64, 0, n)

	e := f.Error.Mul(gain)
	out = append(out, e.X, e.Y, e.Z)
	q := pose.WXYZ(f.Goal)
	out = append(out, q[:]...)
	dir := UnitL1(f.Grasp, f.Approach)
	out = append(out, dir.X, dir.Y, dir.Z)
	out = append(out, f.ConeRadius, f.ConeHeight, f.LineDistance, flag(f.ConeActive))
	out = append(out, f.Approach.X, f.Approach.Y, f.Approach.Z)
	out = append(out, f.Anchor.X, f.Anchor.Y, f.Anchor.Z)

	if f.History != nil {
		out = append(out, f.History.Xs...)
		out = append(out, f.History.Ys...)
		out = append(out, f.History.Zs...)
	}
	return out
}

// UnitL1 returns b-a scaled so its absolute components sum to one. A zero
// vector is returned unchanged.
func UnitL1(a, b r3.Vector) r3.Vector {
	d := b.Sub(a)
	l1 := math.Abs(d.X) + math.Abs(d.Y) + math.Abs(d.Z)
	if l1 == 0 {
		return d
	}
	return d.Mul(1 / l1)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
