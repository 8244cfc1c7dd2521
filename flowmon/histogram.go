package flowmon

import "math"

// Histogram counts values in fixed-width bins starting at zero.
type Histogram struct {
	BinWidth float64
	Counts   []uint32
}

// NewHistogram creates an empty histogram.
func NewHistogram(binWidth float64) Histogram {
	return Histogram{BinWidth: binWidth}
}

// AddValue counts a value. Negative values fall into the first bin.
func (h *Histogram) AddValue(v float64) {
	idx := int(math.Floor(v / h.BinWidth))
	if idx < 0 {
		idx = 0
	}

	if idx >= len(h.Counts) {
		grown := make([]uint32, idx+1)
		copy(grown, h.Counts)
		h.Counts = grown
	}

	h.Counts[idx]++
}

// NumBins returns the number of bins, up to the last non-empty one.
func (h Histogram) NumBins() int {
	return len(h.Counts)
}

// BinStart returns the lower edge of a bin.
func (h Histogram) BinStart(i int) float64 {
	return float64(i) * h.BinWidth
}

// Total returns the number of values counted.
func (h Histogram) Total() uint64 {
	var n uint64
	for _, c := range h.Counts {
		n += uint64(c)
	}

	return n
}

func (h Histogram) clone() Histogram {
	return Histogram{
		BinWidth: h.BinWidth,
		Counts:   append([]uint32(nil), h.Counts...),
	}
}
