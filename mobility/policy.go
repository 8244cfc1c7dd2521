package mobility

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned when a policy carries unusable parameters.
var ErrInvalidPolicy = errors.New("invalid mobility policy")

// Policy is the placement or motion rule bound to one node. The set of
// policies is closed: Fixed, Grid, RandomUniform and RandomWalk.
type Policy interface {
	// Kind names the policy.
	Kind() string

	// Validate checks the policy parameters.
	Validate() error

	isPolicy()
}

// Fixed pins a node at a position.
type Fixed struct {
	Position Vector
}

// Kind returns "fixed".
func (Fixed) Kind() string { return "fixed" }

// Validate never fails.
func (Fixed) Validate() error { return nil }

func (Fixed) isPolicy() {}

// Grid places a node on a row-major grid. Slot is the index of the node in
// the fill order.
type Grid struct {
	Origin Vector
	DeltaX float64
	DeltaY float64
	Width  int
	Slot   int
}

// Kind returns "grid".
func (Grid) Kind() string { return "grid" }

// Validate checks the grid width and the slot.
func (g Grid) Validate() error {
	if g.Width <= 0 {
		return fmt.Errorf("%w: grid width %d", ErrInvalidPolicy, g.Width)
	}

	if g.Slot < 0 {
		return fmt.Errorf("%w: grid slot %d", ErrInvalidPolicy, g.Slot)
	}

	return nil
}

// Position returns the position of the slot. Rows are filled first.
func (g Grid) Position() Vector {
	col := g.Slot % g.Width
	row := g.Slot / g.Width

	return Vector{
		X: g.Origin.X + g.DeltaX*float64(col),
		Y: g.Origin.Y + g.DeltaY*float64(row),
		Z: g.Origin.Z,
	}
}

func (Grid) isPolicy() {}

// RandomUniform places a node at a random point of an area. The point is
// sampled once and never changes.
type RandomUniform struct {
	Bounds Rectangle
}

// Kind returns "random-uniform".
func (RandomUniform) Kind() string { return "random-uniform" }

// Validate checks the area.
func (r RandomUniform) Validate() error {
	if !r.Bounds.IsValid() {
		return fmt.Errorf("%w: bounds %+v", ErrInvalidPolicy, r.Bounds)
	}

	return nil
}

func (RandomUniform) isPolicy() {}

// RandomWalk moves a node in straight lines. Every time the node has covered
// Distance, a new speed in [SpeedMin, SpeedMax] and a new direction are drawn.
// The node rebounds on the borders of Bounds.
type RandomWalk struct {
	Start    Vector
	SpeedMin float64
	SpeedMax float64
	Distance float64
	Bounds   Rectangle
}

// Kind returns "random-walk".
func (RandomWalk) Kind() string { return "random-walk" }

// Validate checks the speed range, the distance and the start position.
func (w RandomWalk) Validate() error {
	switch {
	case w.SpeedMin <= 0 || w.SpeedMax < w.SpeedMin:
		return fmt.Errorf("%w: speed range [%g,%g]",
			ErrInvalidPolicy, w.SpeedMin, w.SpeedMax)
	case w.Distance <= 0:
		return fmt.Errorf("%w: walk distance %g", ErrInvalidPolicy, w.Distance)
	case w.Bounds.XMin >= w.Bounds.XMax || w.Bounds.YMin >= w.Bounds.YMax:
		return fmt.Errorf("%w: bounds %+v have no area", ErrInvalidPolicy, w.Bounds)
	case !w.Bounds.Contains(w.Start):
		return fmt.Errorf("%w: start %s outside bounds", ErrInvalidPolicy, w.Start)
	}

	return nil
}

func (RandomWalk) isPolicy() {}
