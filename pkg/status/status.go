// Package status decodes the FlexCAN error and status register.
package status

import (
	"strings"

	"github.com/roffe/flexcan/pkg/regs"
)

// Flags is the set of fault classes reported by one error interrupt.
type Flags uint64

const (
	LimitWarning Flags = 1 << iota
	BusOff
	FramingError
)

func (f Flags) Has(o Flags) bool {
	return f&o == o
}

func (f Flags) String() string {
	if f == 0 {
		return "NONE"
	}
	var out []string
	if f&LimitWarning != 0 {
		out = append(out, "LIMIT_WARNING")
	}
	if f&BusOff != 0 {
		out = append(out, "BUS_OFF")
	}
	if f&FramingError != 0 {
		out = append(out, "FRAMING_ERROR")
	}
	return strings.Join(out, "|")
}

/*
ESR interrupt flags handled by Decode:

	bit 17 TWRN_INT  transmit error counter reached 96
	bit 16 RWRN_INT  receive error counter reached 96
	bit  2 BOFF_INT  module entered bus off
	bit  1 ERR_INT   any of the bit error flags got set

All of them are write-1-to-clear.
*/
var classes = []struct {
	bits uint32
	flag Flags
}{
	{regs.ESRTWRNINT | regs.ESRRWRNINT, LimitWarning},
	{regs.ESRBOFFINT, BusOff},
	{regs.ESRERRINT, FramingError},
}

// Decode reads ESR once, clears every asserted interrupt flag it knows by
// writing it back and returns the matching fault classes. Classes are
// independent, one call may report several.
func Decode(b regs.Bank) Flags {
	esr := b.Load(regs.ESR)
	var (
		flags Flags
		clear uint32
	)
	for _, c := range classes {
		if asserted := esr & c.bits; asserted != 0 {
			clear |= asserted
			flags |= c.flag
		}
	}
	if clear != 0 {
		b.Store(regs.ESR, clear)
	}
	return flags
}
