// Package mobility decides where nodes are and how they move.
package mobility

import (
	"fmt"
	"math"
)

// Vector is a position or a velocity in the simulated space.
type Vector struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vector) Add(o Vector) Vector {
	return Vector{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v * s.
func (v Vector) Scale(s float64) Vector {
	return Vector{v.X * s, v.Y * s, v.Z * s}
}

// Length returns the euclidean norm of v.
func (v Vector) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DistanceTo returns the euclidean distance between two positions.
func (v Vector) DistanceTo(o Vector) float64 {
	return o.Add(v.Scale(-1)).Length()
}

func (v Vector) String() string {
	return fmt.Sprintf("(%g,%g,%g)", v.X, v.Y, v.Z)
}

// Rectangle is an axis-aligned area on the XY plane.
type Rectangle struct {
	XMin, XMax float64
	YMin, YMax float64
}

// Square returns the rectangle [0,side]x[0,side].
func Square(side float64) Rectangle {
	return Rectangle{XMax: side, YMax: side}
}

// Contains tells if the XY projection of p is inside the rectangle, borders
// included.
func (r Rectangle) Contains(p Vector) bool {
	return p.X >= r.XMin && p.X <= r.XMax && p.Y >= r.YMin && p.Y <= r.YMax
}

// Clamp returns p moved onto the closest point of the rectangle. Z is kept.
func (r Rectangle) Clamp(p Vector) Vector {
	p.X = math.Max(r.XMin, math.Min(r.XMax, p.X))
	p.Y = math.Max(r.YMin, math.Min(r.YMax, p.Y))

	return p
}

// IsValid tells if the rectangle has a non-negative extent on both axes.
func (r Rectangle) IsValid() bool {
	return r.XMin <= r.XMax && r.YMin <= r.YMax
}
