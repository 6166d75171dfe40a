// Package envs provides simple planar environments satisfying the cost-field
// contract consumed by costs.Field.
package envs

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Box is an axis-aligned obstacle on the XY plane. Z components are ignored.
type Box struct {
	Center   r3.Vector
	HalfSize r3.Vector
}

// Occupancy2D is a planar occupancy map built from boxes. Value is 1 inside
// any obstacle and falls off linearly to 0 across a margin band around it, so
// probe candidates near obstacles still see a gradient.
type Occupancy2D struct {
	lo, hi r3.Vector
	margin float64
	boxes  []Box
}

// NewOccupancy2D builds a map over the rectangle [lo, hi] with the given
// obstacle margin.
func NewOccupancy2D(lo, hi r3.Vector, margin float64, boxes ...Box) (*Occupancy2D, error) {
	if lo.X >= hi.X || lo.Y >= hi.Y {
		return nil, errors.Errorf("invalid map bounds [%v, %v]", lo, hi)
	}
	if margin < 0 {
		return nil, errors.Errorf("margin must be nonnegative, got %v", margin)
	}
	for i, b := range boxes {
		if b.HalfSize.X <= 0 || b.HalfSize.Y <= 0 {
			return nil, errors.Errorf("box %d has non-positive half size %v", i, b.HalfSize)
		}
	}
	return &Occupancy2D{lo: lo, hi: hi, margin: margin, boxes: boxes}, nil
}

// GridOccupancy2D is the standard benchmark map: a [-10, 10]^2 workspace with
// a 2x3 grid of square obstacles between start and goal regions.
func GridOccupancy2D() *Occupancy2D {
	boxes := make([]Box, 0, 6)
	for _, cx := range []float64{-5, 0, 5} {
		for _, cy := range []float64{-2.5, 3.5} {
			boxes = append(boxes, Box{
				Center:   r3.Vector{X: cx, Y: cy},
				HalfSize: r3.Vector{X: 1.5, Y: 1.5},
			})
		}
	}
	env, err := NewOccupancy2D(r3.Vector{X: -10, Y: -10}, r3.Vector{X: 10, Y: 10}, 0.5, boxes...)
	if err != nil {
		panic(err) // static construction cannot fail
	}
	return env
}

// Limits returns the workspace bounds.
func (o *Occupancy2D) Limits() (lo, hi r3.Vector) {
	return o.lo, o.hi
}

// distanceOutside returns the distance from p to the box surface, zero inside.
func (b Box) distanceOutside(x, y float64) float64 {
	dx := math.Max(math.Abs(x-b.Center.X)-b.HalfSize.X, 0)
	dy := math.Max(math.Abs(y-b.Center.Y)-b.HalfSize.Y, 0)
	return math.Hypot(dx, dy)
}

// Value implements costs.ScalarField over the first two position components.
func (o *Occupancy2D) Value(pos []float64) float64 {
	x, y := pos[0], pos[1]
	best := 0.0
	for _, b := range o.boxes {
		d := b.distanceOutside(x, y)
		var v float64
		switch {
		case d == 0:
			return 1
		case o.margin > 0 && d < o.margin:
			v = 1 - d/o.margin
		}
		if v > best {
			best = v
		}
	}
	return best
}

// Collides reports whether the position is inside any obstacle.
func (o *Occupancy2D) Collides(pos []float64) bool {
	x, y := pos[0], pos[1]
	for _, b := range o.boxes {
		if b.distanceOutside(x, y) == 0 {
			return true
		}
	}
	return false
}
