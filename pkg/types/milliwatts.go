package types

import (
	"fmt"
	"strconv"
)

// Milliwatts is a uint64 wrapper representing a power limit in milliwatts.
type Milliwatts uint64

// Humanized returns a human-readable string in watts ("35 W", "7.5 W").
// Fractional watts are printed with one decimal, whole watts without.
func (m Milliwatts) Humanized() string {
	if m%1000 == 0 {
		return fmt.Sprintf("%d W", m/1000)
	}
	return fmt.Sprintf("%.1f W", float64(m)/1000)
}

// Watts returns the value in watts.
func (m Milliwatts) Watts() float64 { return float64(m) / 1000 }

// Arg returns the decimal milliwatt string passed to the power-limit tool.
func (m Milliwatts) Arg() string { return strconv.FormatUint(uint64(m), 10) }

// String implements fmt.Stringer (same as Humanized).
func (m Milliwatts) String() string { return m.Humanized() }
