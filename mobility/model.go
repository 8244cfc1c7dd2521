package mobility

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sarchlab/hybridnet/sim"
)

// Model tells where a node is at a given time. Queries must be made with
// non-decreasing times.
type Model interface {
	Position(now sim.VTimeInSec) Vector
	Velocity(now sim.VTimeInSec) Vector
}

// NewModel instantiates the motion model of a policy. Random draws come from
// rng.
func NewModel(p Policy, rng *rand.Rand) (Model, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil policy", ErrInvalidPolicy)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	switch p := p.(type) {
	case Fixed:
		return &ConstantPosition{pos: p.Position}, nil
	case Grid:
		return &ConstantPosition{pos: p.Position()}, nil
	case RandomUniform:
		return &ConstantPosition{pos: Vector{
			X: uniform(rng, p.Bounds.XMin, p.Bounds.XMax),
			Y: uniform(rng, p.Bounds.YMin, p.Bounds.YMax),
		}}, nil
	case RandomWalk:
		return newRandomWalkModel(p, rng), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrInvalidPolicy, p.Kind())
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// ConstantPosition is a model that never moves.
type ConstantPosition struct {
	pos Vector
}

// Position returns the fixed position.
func (m *ConstantPosition) Position(_ sim.VTimeInSec) Vector {
	return m.pos
}

// Velocity is always zero.
func (m *ConstantPosition) Velocity(_ sim.VTimeInSec) Vector {
	return Vector{}
}

const walkEpsilon = 1e-12

// RandomWalkModel is the motion of a RandomWalk policy. The walk is computed
// lazily up to the queried time.
type RandomWalkModel struct {
	policy RandomWalk
	rng    *rand.Rand

	now      float64
	pos      Vector
	vel      Vector
	walkLeft float64
}

func newRandomWalkModel(p RandomWalk, rng *rand.Rand) *RandomWalkModel {
	m := &RandomWalkModel{
		policy: p,
		rng:    rng,
		pos:    p.Start,
	}
	m.reseed()

	return m
}

func (m *RandomWalkModel) reseed() {
	speed := uniform(m.rng, m.policy.SpeedMin, m.policy.SpeedMax)
	dir := m.rng.Float64() * 2 * math.Pi

	m.vel = Vector{X: speed * math.Cos(dir), Y: speed * math.Sin(dir)}
	m.walkLeft = m.policy.Distance / speed
}

// Position returns the position at now.
func (m *RandomWalkModel) Position(now sim.VTimeInSec) Vector {
	m.advance(float64(now))
	return m.pos
}

// Velocity returns the velocity at now.
func (m *RandomWalkModel) Velocity(now sim.VTimeInSec) Vector {
	m.advance(float64(now))
	return m.vel
}

func (m *RandomWalkModel) advance(to float64) {
	for to-m.now > walkEpsilon {
		tx := timeToBorder(m.pos.X, m.vel.X, m.policy.Bounds.XMin, m.policy.Bounds.XMax)
		ty := timeToBorder(m.pos.Y, m.vel.Y, m.policy.Bounds.YMin, m.policy.Bounds.YMax)
		tWall := math.Min(tx, ty)

		step := math.Min(to-m.now, math.Min(m.walkLeft, tWall))

		m.pos = m.pos.Add(m.vel.Scale(step))
		m.now += step
		m.walkLeft -= step

		if step >= tWall-walkEpsilon {
			m.rebound(tx, ty, tWall)
		}

		if m.walkLeft <= walkEpsilon {
			m.reseed()
		}
	}

	m.clamp()
}

func (m *RandomWalkModel) rebound(tx, ty, tWall float64) {
	if tx <= tWall+walkEpsilon {
		m.vel.X = -m.vel.X
	}

	if ty <= tWall+walkEpsilon {
		m.vel.Y = -m.vel.Y
	}
}

func (m *RandomWalkModel) clamp() {
	m.pos = m.policy.Bounds.Clamp(m.pos)
}

// timeToBorder is the time until a coordinate moving at speed v leaves
// [lo, hi]. It is infinite when the coordinate does not move.
func timeToBorder(x, v, lo, hi float64) float64 {
	switch {
	case v > 0:
		return math.Max(0, (hi-x)/v)
	case v < 0:
		return math.Max(0, (lo-x)/v)
	default:
		return math.Inf(1)
	}
}
