package mobility

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownMode is returned for a mobility selector outside the defined set.
var ErrUnknownMode = errors.New("unknown mobility mode")

// Mode selects how wireless clients move.
type Mode int

// The mobility modes.
const (
	ModeStatic Mode = iota
	ModeRandomWalk
)

// Modes lists every defined mode.
var Modes = []Mode{ModeStatic, ModeRandomWalk}

func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModeRandomWalk:
		return "mobile"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// IsValid tells if the mode is one of the defined modes.
func (m Mode) IsValid() bool {
	return m == ModeStatic || m == ModeRandomWalk
}

// ModeFromInt converts the numeric selector, 0 for static and 1 for random
// walk.
func ModeFromInt(v int) (Mode, error) {
	m := Mode(v)
	if !m.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownMode, v)
	}

	return m, nil
}

// ParseMode accepts the numeric selector or the mode name.
func ParseMode(s string) (Mode, error) {
	str := strings.ToLower(strings.TrimSpace(s))

	if v, err := strconv.Atoi(str); err == nil {
		return ModeFromInt(v)
	}

	for _, m := range Modes {
		if m.String() == str {
			return m, nil
		}
	}

	if str == "random-walk" {
		return ModeRandomWalk, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}
