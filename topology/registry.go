package topology

import "fmt"

// Role tells what a node does in the scenario.
type Role int

// The roles a node can take.
const (
	RoleWiredInterior Role = iota
	RoleServer
	RoleAccessPoint
	RoleWirelessClient
)

func (r Role) String() string {
	switch r {
	case RoleWiredInterior:
		return "wired-interior"
	case RoleServer:
		return "wired-server"
	case RoleAccessPoint:
		return "access-point"
	case RoleWirelessClient:
		return "wireless-client"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Registry maps roles to nodes. The server and the access point are looked up
// by role, never by position.
type Registry struct {
	byRole map[Role][]NodeID
	roleOf map[NodeID]Role
}

func newRegistry() *Registry {
	return &Registry{
		byRole: make(map[Role][]NodeID),
		roleOf: make(map[NodeID]Role),
	}
}

func (r *Registry) add(id NodeID, role Role) {
	if _, found := r.roleOf[id]; found {
		panic(fmt.Sprintf("node %d already has a role", id))
	}

	r.byRole[role] = append(r.byRole[role], id)
	r.roleOf[id] = role
}

// ByRole returns the nodes holding the role, in construction order.
func (r *Registry) ByRole(role Role) []NodeID {
	ids := r.byRole[role]
	out := make([]NodeID, len(ids))
	copy(out, ids)

	return out
}

// RoleOf returns the role of a node.
func (r *Registry) RoleOf(id NodeID) (Role, bool) {
	role, ok := r.roleOf[id]
	return role, ok
}

// Server returns the node hosting the traffic sinks.
func (r *Registry) Server() NodeID {
	return r.single(RoleServer)
}

// AccessPoint returns the wired node that also hosts the wireless access
// point.
func (r *Registry) AccessPoint() NodeID {
	return r.single(RoleAccessPoint)
}

// Clients returns the wireless clients in construction order.
func (r *Registry) Clients() []NodeID {
	return r.ByRole(RoleWirelessClient)
}

// Interior returns the wired nodes that are neither the server nor the access
// point.
func (r *Registry) Interior() []NodeID {
	return r.ByRole(RoleWiredInterior)
}

func (r *Registry) single(role Role) NodeID {
	ids := r.byRole[role]
	if len(ids) != 1 {
		panic(fmt.Sprintf("expected exactly one %s, found %d", role, len(ids)))
	}

	return ids[0]
}
