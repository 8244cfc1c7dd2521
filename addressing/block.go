// Package addressing assigns IPv4 addresses to the devices of each network
// segment.
package addressing

import (
	"errors"
	"fmt"
	"math/bits"
	"net/netip"
)

// Errors of the addressing package.
var (
	ErrInvalidBlock   = errors.New("invalid address block")
	ErrBlockExhausted = errors.New("address block exhausted")
	ErrBlocksOverlap  = errors.New("address blocks overlap")
)

// Block is a contiguous IPv4 range.
type Block struct {
	prefix netip.Prefix
}

// NewBlock creates a block from a network address and a dotted mask, for
// example "10.1.1.0" and "255.255.255.0".
func NewBlock(base, mask string) (Block, error) {
	addr, err := netip.ParseAddr(base)
	if err != nil || !addr.Is4() {
		return Block{}, fmt.Errorf("%w: base %q", ErrInvalidBlock, base)
	}

	m, err := netip.ParseAddr(mask)
	if err != nil || !m.Is4() {
		return Block{}, fmt.Errorf("%w: mask %q", ErrInvalidBlock, mask)
	}

	b := m.As4()
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	ones := bits.OnesCount32(v)

	if v != ^uint32(0)<<(32-ones) {
		return Block{}, fmt.Errorf("%w: mask %q is not contiguous", ErrInvalidBlock, mask)
	}

	return newBlock(netip.PrefixFrom(addr, ones))
}

// ParseBlock creates a block from CIDR notation, for example "10.1.1.0/24".
func ParseBlock(cidr string) (Block, error) {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}

	return newBlock(p)
}

// MustParseBlock is ParseBlock that panics on error.
func MustParseBlock(cidr string) Block {
	b, err := ParseBlock(cidr)
	if err != nil {
		panic(err)
	}

	return b
}

func newBlock(p netip.Prefix) (Block, error) {
	if !p.Addr().Is4() {
		return Block{}, fmt.Errorf("%w: %s is not IPv4", ErrInvalidBlock, p)
	}

	if p.Bits() > 30 {
		return Block{}, fmt.Errorf("%w: %s leaves no host addresses",
			ErrInvalidBlock, p)
	}

	if p.Masked() != p {
		return Block{}, fmt.Errorf("%w: %s has host bits set", ErrInvalidBlock, p)
	}

	return Block{prefix: p}, nil
}

// Prefix returns the block as a prefix.
func (b Block) Prefix() netip.Prefix {
	return b.prefix
}

// Contains tells if the address belongs to the block.
func (b Block) Contains(a netip.Addr) bool {
	return b.prefix.Contains(a)
}

// Overlaps tells if two blocks share any address.
func (b Block) Overlaps(o Block) bool {
	return b.prefix.Overlaps(o.prefix)
}

// Capacity is the number of host addresses, excluding the network and the
// broadcast addresses.
func (b Block) Capacity() int {
	return 1<<(32-b.prefix.Bits()) - 2
}

// Mask returns the dotted form of the mask.
func (b Block) Mask() string {
	v := ^uint32(0) << (32 - b.prefix.Bits())
	return netip.AddrFrom4([4]byte{
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}).String()
}

func (b Block) String() string {
	return b.prefix.String()
}

// MarshalText implements encoding.TextMarshaler.
func (b Block) MarshalText() ([]byte, error) {
	return []byte(b.prefix.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Block) UnmarshalText(text []byte) error {
	v, err := ParseBlock(string(text))
	if err != nil {
		return err
	}

	*b = v

	return nil
}
