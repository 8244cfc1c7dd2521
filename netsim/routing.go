package netsim

import (
	"net/netip"
)

type firstHop struct {
	dev     *NetDevice
	gateway netip.Addr
}

// populateRoutes computes the routing table of every node. Directly attached
// prefixes are reached on the attached device. Every other prefix is reached
// through the first hop of a shortest path to a node attached to it.
func (n *Network) populateRoutes() {
	for _, id := range n.order {
		node := n.nodes[id]
		node.ipv4.routes = node.ipv4.routes[:0]

		known := make(map[netip.Prefix]bool)

		for _, d := range node.devices {
			if !d.addr.IsValid() || known[d.prefix] {
				continue
			}

			known[d.prefix] = true
			node.ipv4.routes = append(node.ipv4.routes, route{prefix: d.prefix, dev: d})
		}

		n.bfsRoutes(node, known)
	}
}

func (n *Network) bfsRoutes(src *Node, known map[netip.Prefix]bool) {
	visited := map[*Node]bool{src: true}
	hops := make(map[*Node]firstHop)
	frontier := []*Node{src}

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]

		for _, d := range cur.devices {
			if !d.addr.IsValid() {
				continue
			}

			for _, peer := range d.medium.devices {
				next := peer.node
				if visited[next] || !peer.addr.IsValid() {
					continue
				}

				visited[next] = true

				hop, ok := hops[cur]
				if !ok {
					hop = firstHop{dev: d, gateway: peer.addr}
				}
				hops[next] = hop

				for _, nd := range next.devices {
					if !nd.addr.IsValid() || known[nd.prefix] {
						continue
					}

					known[nd.prefix] = true
					src.ipv4.routes = append(src.ipv4.routes, route{
						prefix:  nd.prefix,
						dev:     hop.dev,
						gateway: hop.gateway,
					})
				}

				frontier = append(frontier, next)
			}
		}
	}
}
