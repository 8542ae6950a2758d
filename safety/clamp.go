// Package safety filters teleoperated velocity requests against a soft
// workspace box.
package safety

import "github.com/golang/geo/r3"

// Workspace limits in meters.
const (
	XMin = 0.0
	XMax = 0.6
	YMin = -0.7
	YMax = 0.7
	ZMax = 0.7

	// DefaultZMin is the floor used by the teleop variant. Scripted variants run
	// lower, down to MinZMin.
	DefaultZMin = 0.04
	MinZMin     = 0.02
)

// Bounds is an axis aligned soft boundary.
type Bounds struct {
	Min r3.Vector
	Max r3.Vector
}

// DefaultBounds returns the workspace box with the given floor.
func DefaultBounds(zMin float64) Bounds {
	return Bounds{
		Min: r3.Vector{X: XMin, Y: YMin, Z: zMin},
		Max: r3.Vector{X: XMax, Y: YMax, Z: ZMax},
	}
}

// Clamp zeroes each velocity component that would push a position already
// outside the box further out. Components moving back inside are untouched.
func (b Bounds) Clamp(position, velocity r3.Vector) r3.Vector {
	return r3.Vector{
		X: clampAxis(position.X, velocity.X, b.Min.X, b.Max.X),
		Y: clampAxis(position.Y, velocity.Y, b.Min.Y, b.Max.Y),
		Z: clampAxis(position.Z, velocity.Z, b.Min.Z, b.Max.Z),
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func clampAxis(pos, vel, lo, hi float64) float64 {
	if pos > hi && vel > 0 {
		return 0
	}
	if pos < lo && vel < 0 {
		return 0
	}
	return vel
}
