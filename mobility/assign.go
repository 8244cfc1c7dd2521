package mobility

import (
	"fmt"

	"github.com/sarchlab/hybridnet/topology"
)

// Params holds the placement constants used by Assign.
type Params struct {
	ServerPosition      Vector
	AccessPointPosition Vector

	GridOrigin Vector
	GridDeltaX float64
	GridDeltaY float64
	GridWidth  int

	WalkSpeedMin float64
	WalkSpeedMax float64
	WalkDistance float64
	WalkBounds   Rectangle

	InteriorBounds Rectangle
}

// DefaultParams returns the placement used by the reference scenario.
func DefaultParams() Params {
	return Params{
		ServerPosition:      Vector{0, 0, 0},
		AccessPointPosition: Vector{70, 70, 0},
		GridOrigin:          Vector{70, 70, 0},
		GridDeltaX:          5,
		GridDeltaY:          5,
		GridWidth:           3,
		WalkSpeedMin:        1,
		WalkSpeedMax:        2,
		WalkDistance:        10,
		WalkBounds:          Square(140),
		InteriorBounds:      Square(140),
	}
}

// Assignment maps every node to exactly one policy.
type Assignment map[topology.NodeID]Policy

// Assign derives the policy of every node from its role. Wireless clients get
// a grid slot in ModeStatic and a random walk starting at that slot in
// ModeRandomWalk. Slots beyond the walk bounds start on the nearest border.
func Assign(
	reg *topology.Registry,
	nodes []topology.NodeID,
	mode Mode,
	params Params,
) (Assignment, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}

	out := make(Assignment, len(nodes))
	slot := 0

	for _, id := range nodes {
		role, ok := reg.RoleOf(id)
		if !ok {
			return nil, fmt.Errorf("node %d has no role", id)
		}

		var (
			p   Policy
			err error
		)

		switch role {
		case topology.RoleServer:
			p = Fixed{Position: params.ServerPosition}
		case topology.RoleAccessPoint:
			p = Fixed{Position: params.AccessPointPosition}
		case topology.RoleWiredInterior:
			p = RandomUniform{Bounds: params.InteriorBounds}
		case topology.RoleWirelessClient:
			p, err = clientPolicy(mode, params, slot)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", id, err)
			}
			slot++
		default:
			return nil, fmt.Errorf("node %d has unsupported role %s", id, role)
		}

		if err = p.Validate(); err != nil {
			return nil, fmt.Errorf("node %d: %w", id, err)
		}

		out[id] = p
	}

	return out, nil
}

func clientPolicy(mode Mode, params Params, slot int) (Policy, error) {
	grid := Grid{
		Origin: params.GridOrigin,
		DeltaX: params.GridDeltaX,
		DeltaY: params.GridDeltaY,
		Width:  params.GridWidth,
		Slot:   slot,
	}

	if err := grid.Validate(); err != nil {
		return nil, err
	}

	if mode == ModeStatic {
		return grid, nil
	}

	return RandomWalk{
		Start:    params.WalkBounds.Clamp(grid.Position()),
		SpeedMin: params.WalkSpeedMin,
		SpeedMax: params.WalkSpeedMax,
		Distance: params.WalkDistance,
		Bounds:   params.WalkBounds,
	}, nil
}
