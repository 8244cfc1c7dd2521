package sim

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// DataRate defines the speed of a transmission medium in bits per second.
type DataRate float64

// Defines the unit of data rate
const (
	BitPerSecond DataRate = 1
	Kbps         DataRate = 1e3
	Mbps         DataRate = 1e6
	Gbps         DataRate = 1e9
)

// TxTime returns the time needed to put the given number of bytes on the
// medium.
func (r DataRate) TxTime(bytes int) VTimeInSec {
	if r <= 0 {
		log.Panic("data rate must be positive")
	}

	return VTimeInSec(float64(bytes*8) / float64(r))
}

// BytesIn returns how many whole bytes can be transmitted in the given time.
func (r DataRate) BytesIn(t VTimeInSec) int {
	return int(float64(r) * float64(t) / 8)
}

// String formats the rate with the largest unit that keeps it integral.
func (r DataRate) String() string {
	switch {
	case r >= Gbps && float64(r)/float64(Gbps) == float64(int64(r/Gbps)):
		return strconv.FormatInt(int64(r/Gbps), 10) + "Gbps"
	case r >= Mbps && float64(r)/float64(Mbps) == float64(int64(r/Mbps)):
		return strconv.FormatInt(int64(r/Mbps), 10) + "Mbps"
	case r >= Kbps && float64(r)/float64(Kbps) == float64(int64(r/Kbps)):
		return strconv.FormatInt(int64(r/Kbps), 10) + "Kbps"
	default:
		return strconv.FormatFloat(float64(r), 'f', -1, 64) + "bps"
	}
}

var rateUnits = []struct {
	suffix string
	unit   DataRate
}{
	{"Gbps", Gbps},
	{"Mbps", Mbps},
	{"Kbps", Kbps},
	{"kbps", Kbps},
	{"bps", BitPerSecond},
}

// ParseDataRate parses strings such as "5Mbps" or "100Mbps".
func ParseDataRate(s string) (DataRate, error) {
	str := strings.TrimSpace(s)

	for _, u := range rateUnits {
		if !strings.HasSuffix(str, u.suffix) {
			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSuffix(str, u.suffix), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid data rate %q: %w", s, err)
		}

		if v <= 0 {
			return 0, fmt.Errorf("invalid data rate %q: must be positive", s)
		}

		return DataRate(v) * u.unit, nil
	}

	return 0, fmt.Errorf("invalid data rate %q: missing unit", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r DataRate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *DataRate) UnmarshalText(text []byte) error {
	v, err := ParseDataRate(string(text))
	if err != nil {
		return err
	}

	*r = v

	return nil
}
