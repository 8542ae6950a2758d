package coneconstraint

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Shape selects the solid used as the keep-out region.
type Shape int

// Supported shapes.
const (
	ShapeCone Shape = iota
	ShapeCylinder
)

func (s Shape) String() string {
	switch s {
	case ShapeCone:
		return "cone"
	case ShapeCylinder:
		return "cylinder"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// ParseShape maps a config name onto a Shape.
func ParseShape(name string) (Shape, error) {
	switch name {
	case "", "cone":
		return ShapeCone, nil
	case "cylinder":
		return ShapeCylinder, nil
	default:
		return 0, errors.Errorf("unknown keep-out shape %q", name)
	}
}

// geometryEpsilon is the length below which a vector is treated as zero.
const geometryEpsilon = 1e-9

// Primitive is a solid of revolution centered on its pose with its axis along
// local +z, spanning z in [-Height/2, Height/2]. For a cone the apex is at
// +Height/2 and the base of the given Radius at -Height/2.
type Primitive struct {
	Shape  Shape
	Radius float64
	Height float64
}

// Validate checks the dimensions.
func (p Primitive) Validate() error {
	if p.Radius <= 0 || p.Height <= 0 {
		return errors.Errorf("%v dimensions must be positive, got radius %v height %v", p.Shape, p.Radius, p.Height)
	}
	if p.Shape != ShapeCone && p.Shape != ShapeCylinder {
		return errors.Errorf("unsupported shape %v", p.Shape)
	}
	return nil
}

// profilePoint is a point in the half plane (rho >= 0, z) swept around the axis.
type profilePoint struct {
	rho float64
	z   float64
}

func (a profilePoint) sub(b profilePoint) profilePoint {
	return profilePoint{a.rho - b.rho, a.z - b.z}
}

func (a profilePoint) dot(b profilePoint) float64 {
	return a.rho*b.rho + a.z*b.z
}

func (a profilePoint) dist(b profilePoint) float64 {
	return math.Hypot(a.rho-b.rho, a.z-b.z)
}

// outline returns the profile edges that form the surface. Edges lying on the
// axis are interior once swept and are left out.
func (p Primitive) outline() [][2]profilePoint {
	top := p.Height / 2
	bottom := -p.Height / 2
	if p.Shape == ShapeCylinder {
		return [][2]profilePoint{
			{{0, top}, {p.Radius, top}},
			{{p.Radius, top}, {p.Radius, bottom}},
			{{p.Radius, bottom}, {0, bottom}},
		}
	}
	return [][2]profilePoint{
		{{0, top}, {p.Radius, bottom}},
		{{p.Radius, bottom}, {0, bottom}},
	}
}

func (p Primitive) contains(q profilePoint) bool {
	top := p.Height / 2
	if q.z < -top || q.z > top {
		return false
	}
	if p.Shape == ShapeCylinder {
		return q.rho <= p.Radius
	}
	return q.rho <= p.Radius*(top-q.z)/p.Height
}

// closestSurfacePoint returns the surface point nearest to local, in the
// primitive's frame, and the signed distance to it (negative inside).
func (p Primitive) closestSurfacePoint(local r3.Vector) (r3.Vector, float64) {
	rho := math.Hypot(local.X, local.Y)
	q := profilePoint{rho, local.Z}

	best := profilePoint{}
	bestDist := math.Inf(1)
	for _, edge := range p.outline() {
		c := closestOnEdge(q, edge[0], edge[1])
		if d := q.dist(c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if p.contains(q) {
		bestDist = -bestDist
	}

	// on the axis any radial direction is equally close
	ux, uy := 1.0, 0.0
	if rho > geometryEpsilon {
		ux, uy = local.X/rho, local.Y/rho
	}
	return r3.Vector{X: best.rho * ux, Y: best.rho * uy, Z: best.z}, bestDist
}

func closestOnEdge(q, a, b profilePoint) profilePoint {
	ab := b.sub(a)
	lenSq := ab.dot(ab)
	if lenSq < geometryEpsilon*geometryEpsilon {
		return a
	}
	t := q.sub(a).dot(ab) / lenSq
	t = math.Max(0, math.Min(1, t))
	return profilePoint{a.rho + t*ab.rho, a.z + t*ab.z}
}

// segmentDistance is the distance from p to the segment ab. A degenerate
// segment collapses to the distance from p to a.
func segmentDistance(p, a, b r3.Vector) float64 {
	ab := b.Sub(a)
	length := ab.Norm()
	if length < geometryEpsilon {
		return p.Distance(a)
	}
	d := ab.Mul(1 / length)
	s := a.Sub(p).Dot(d)
	t := p.Sub(b).Dot(d)
	h := math.Max(math.Max(s, t), 0)
	c := p.Sub(a).Cross(d)
	return math.Hypot(h, c.Norm())
}
