// Package posehistory keeps a short window of recent end-effector positions for
// display and smoothing downstream.
package posehistory

import (
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// DefaultCapacity is the number of positions retained when no capacity is given.
const DefaultCapacity = 50

// History is a fixed capacity FIFO of positions stored as three parallel
// sequences. It is not safe for concurrent use.
type History struct {
	capacity int
	xs       []float64
	ys       []float64
	zs       []float64
}

// New returns an empty history. A non-positive capacity selects DefaultCapacity.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{
		capacity: capacity,
		xs:       make([]float64, 0, capacity+1),
		ys:       make([]float64, 0, capacity+1),
		zs:       make([]float64, 0, capacity+1),
	}
}

// Push appends a position, evicting the oldest once the window is full.
func (h *History) Push(p r3.Vector) {
	h.xs = append(h.xs, p.X)
	h.ys = append(h.ys, p.Y)
	h.zs = append(h.zs, p.Z)
	if len(h.xs) > h.capacity {
		h.xs = h.xs[1:]
		h.ys = h.ys[1:]
		h.zs = h.zs[1:]
	}
}

// Snapshot returns copies of the x, y and z sequences, oldest first.
func (h *History) Snapshot() (xs, ys, zs []float64) {
	return append([]float64(nil), h.xs...), append([]float64(nil), h.ys...), append([]float64(nil), h.zs...)
}

// Len returns the number of stored positions.
func (h *History) Len() int {
	return len(h.xs)
}

// Capacity returns the window size.
func (h *History) Capacity() int {
	return h.capacity
}

// Mean returns the average position over the window.
func (h *History) Mean() (r3.Vector, error) {
	if h.Len() == 0 {
		return r3.Vector{}, errors.New("pose history is empty")
	}
	x, err := stats.Mean(h.xs)
	if err != nil {
		return r3.Vector{}, err
	}
	y, err := stats.Mean(h.ys)
	if err != nil {
		return r3.Vector{}, err
	}
	z, err := stats.Mean(h.zs)
	if err != nil {
		return r3.Vector{}, err
	}
	return r3.Vector{X: x, Y: y, Z: z}, nil
}
