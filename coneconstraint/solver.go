// Package coneconstraint keeps the end-effector out of a cone shaped region
// around a grasp target and supplies interim waypoints on the cone surface.
//
// The end-effector is modelled as a sphere. While it is clear of the cone the
// nearest surface point becomes the goal, which slides the arm along the
// outside of the cone toward its apex. Once the sphere touches the cone the
// solver latches and instead shrinks the cone so it keeps enclosing the arm's
// remaining path to the grasp.
package coneconstraint

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
	rutils "go.viam.com/rdk/utils"

	"github.com/viam-labs/grasp-sequencer/pose"
)

// Defaults for the keep-out cone and the end-effector proxy, in meters.
const (
	DefaultRadius       = 0.25
	DefaultHeight       = 0.25
	DefaultSphereRadius = 0.01
)

// Report is the solver state exposed to the goal command.
type Report struct {
	Radius       float64
	Height       float64
	LineDistance float64
	Active       bool
	Distance     float64
	Colliding    bool
	NearestEE    r3.Vector
	NearestCone  r3.Vector
}

// Solver holds the collision state for a single task instance.
type Solver struct {
	original     Primitive
	current      Primitive
	halfAngle    float64
	sphereRadius float64

	latched      bool
	colliding    bool
	distance     float64
	nearestEE    r3.Vector
	nearestCone  r3.Vector
	lineDistance float64
	active       bool
}

// NewSolver returns a solver for the given keep-out primitive and proxy radius.
func NewSolver(prim Primitive, sphereRadius float64) (*Solver, error) {
	if err := prim.Validate(); err != nil {
		return nil, err
	}
	if sphereRadius <= 0 {
		return nil, errors.Errorf("end-effector sphere radius must be positive, got %v", sphereRadius)
	}
	return &Solver{
		original:     prim,
		current:      prim,
		halfAngle:    math.Atan(prim.Radius / prim.Height),
		sphereRadius: sphereRadius,
		distance:     math.Inf(1),
	}, nil
}

// CheckCollision measures the signed distance between the end-effector sphere
// at ee and the primitive placed at cone. It reports a collision when the
// distance is not positive or when a collision was already seen; the latch
// holds until ResetLatch.
func (s *Solver) CheckCollision(ee, cone spatialmath.Pose) bool {
	center := ee.Point()
	local := spatialmath.Compose(spatialmath.PoseInverse(cone), spatialmath.NewPoseFromPoint(center)).Point()
	surfaceLocal, centerDist := s.current.closestSurfacePoint(local)
	surface := spatialmath.Compose(cone, spatialmath.NewPoseFromPoint(surfaceLocal)).Point()

	s.distance = centerDist - s.sphereRadius
	s.nearestCone = surface
	s.nearestEE = center
	if toSurface := surface.Sub(center); toSurface.Norm() > geometryEpsilon {
		dir := toSurface.Normalize()
		if centerDist < 0 {
			dir = dir.Mul(-1)
		}
		s.nearestEE = center.Add(dir.Mul(s.sphereRadius))
	}

	if s.distance > 0 && !s.latched {
		s.colliding = false
		return false
	}
	s.latched = true
	s.colliding = true
	return true
}

// ProjectedGoal acts on the last CheckCollision result. When clear it returns
// the nearest cone surface point carrying the approach orientation, to be used
// as the interim goal. When colliding it shrinks the cone instead and returns
// false; the goal is left alone.
func (s *Solver) ProjectedGoal(ee r3.Vector, approach, grasp spatialmath.Pose) (spatialmath.Pose, bool) {
	if !s.colliding {
		return pose.WithOrientation(s.nearestCone, approach), true
	}
	s.shrink(ee, approach.Point(), grasp.Point())
	return nil, false
}

// shrink recomputes the cone so its slant passes through the end-effector,
// keeping the original half-angle. Results never grow past the original cone.
func (s *Solver) shrink(ee, approach, grasp r3.Vector) {
	perp := segmentDistance(ee, grasp, approach)
	hyp := ee.Distance(grasp)
	s.lineDistance = perp
	s.active = true

	if hyp < geometryEpsilon {
		s.current.Height = 0
		s.current.Radius = 0
		return
	}
	height := math.Cos(math.Asin(math.Min(perp/hyp, 1))) * hyp
	height = math.Min(height, s.original.Height)
	s.current.Height = height
	s.current.Radius = math.Min(math.Tan(s.halfAngle)*height, s.original.Radius)
}

// ResetLatch clears the collision latch. The control loop calls this when the
// task's traversal returns to its first stage.
func (s *Solver) ResetLatch() {
	s.latched = false
	s.colliding = false
}

// Latched reports whether a collision has been seen since the last reset.
func (s *Solver) Latched() bool {
	return s.latched
}

// HalfAngleDegrees is the original cone's half-angle, for display.
func (s *Solver) HalfAngleDegrees() float64 {
	return rutils.RadToDeg(s.halfAngle)
}

// Report returns the current cone dimensions and last query results.
func (s *Solver) Report() Report {
	return Report{
		Radius:       s.current.Radius,
		Height:       s.current.Height,
		LineDistance: s.lineDistance,
		Active:       s.active,
		Distance:     s.distance,
		Colliding:    s.colliding,
		NearestEE:    s.nearestEE,
		NearestCone:  s.nearestCone,
	}
}

// ConePoseFromGoals places the cone between the grasp and approach poses with
// its apex toward the approach. A coincident pair falls back to world +z.
func ConePoseFromGoals(approach, grasp spatialmath.Pose) spatialmath.Pose {
	a, g := approach.Point(), grasp.Point()
	center := a.Add(g).Mul(0.5)
	axis := a.Sub(g)
	if axis.Norm() < geometryEpsilon {
		axis = r3.Vector{Z: 1}
	}
	ov := &spatialmath.OrientationVector{OX: axis.X, OY: axis.Y, OZ: axis.Z}
	ov.Normalize()
	return spatialmath.NewPose(center, ov)
}
