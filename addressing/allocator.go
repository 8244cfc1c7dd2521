package addressing

import (
	"fmt"
	"net/netip"
)

// Allocator hands out the host addresses of a block in increasing order,
// starting from the first address after the network address.
type Allocator struct {
	block Block
	next  netip.Addr
	count int
}

// NewAllocator creates an allocator over the block.
func NewAllocator(b Block) *Allocator {
	return &Allocator{
		block: b,
		next:  b.prefix.Addr().Next(),
	}
}

// Next returns the next free address.
func (a *Allocator) Next() (netip.Addr, error) {
	if a.count >= a.block.Capacity() {
		return netip.Addr{}, fmt.Errorf("%w: %s after %d addresses",
			ErrBlockExhausted, a.block, a.count)
	}

	addr := a.next
	a.next = a.next.Next()
	a.count++

	return addr, nil
}

// Allocated returns the number of addresses handed out.
func (a *Allocator) Allocated() int {
	return a.count
}
