package traffic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownProtocol is returned for a protocol selector outside the defined
// set.
var ErrUnknownProtocol = errors.New("unknown protocol selector")

// Protocol selects the kind of traffic the clients generate.
type Protocol int

// The protocol selectors.
const (
	ProtocolUDP Protocol = iota
	ProtocolTCP
	ProtocolMixed
)

// Protocols lists every defined selector.
var Protocols = []Protocol{ProtocolUDP, ProtocolTCP, ProtocolMixed}

func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	case ProtocolMixed:
		return "mixed"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// IsValid tells if the selector is defined.
func (p Protocol) IsValid() bool {
	return p >= ProtocolUDP && p <= ProtocolMixed
}

// ProtocolFromInt converts the numeric selector: 0 for UDP, 1 for TCP and 2
// for mixed.
func ProtocolFromInt(v int) (Protocol, error) {
	p := Protocol(v)
	if !p.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownProtocol, v)
	}

	return p, nil
}

// ParseProtocol accepts the numeric selector or the protocol name.
func ParseProtocol(s string) (Protocol, error) {
	str := strings.ToLower(strings.TrimSpace(s))

	if v, err := strconv.Atoi(str); err == nil {
		return ProtocolFromInt(v)
	}

	for _, p := range Protocols {
		if p.String() == str {
			return p, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownProtocol, s)
}
