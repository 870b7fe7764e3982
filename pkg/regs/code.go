package regs

import "fmt"

// Code is the message buffer state held in the CODE field of CS.
type Code uint8

const (
	CodeRxInactive Code = 0x0
	CodeRxBusy     Code = 0x1
	CodeRxFull     Code = 0x2
	CodeRxEmpty    Code = 0x4
	CodeRxOverrun  Code = 0x6
	CodeTxInactive Code = 0x8
	CodeTxAbort    Code = 0x9
	CodeTxData     Code = 0xC
	CodeTxAnswer   Code = 0xE

	// CodeInvalid is returned for raw patterns the driver does not know.
	CodeInvalid Code = 0xFF
)

// ParseCode converts the raw 4-bit CODE field.
func ParseCode(raw uint32) Code {
	switch c := Code(raw & 0xF); c {
	case CodeRxInactive, CodeRxBusy, CodeRxFull, CodeRxEmpty, CodeRxOverrun,
		CodeTxInactive, CodeTxAbort, CodeTxData, CodeTxAnswer:
		return c
	default:
		return CodeInvalid
	}
}

// Raw returns the 4-bit hardware pattern.
func (c Code) Raw() uint32 {
	return uint32(c) & 0xF
}

// Transmit reports whether c belongs to the transmit code space.
func (c Code) Transmit() bool {
	return c != CodeInvalid && c&0x8 != 0
}

// Available reports whether a buffer with this code can take a new use:
// an armed empty receive buffer or an idle transmit buffer.
func (c Code) Available() bool {
	return c == CodeRxEmpty || c == CodeTxInactive
}

// HoldsData reports whether a receive buffer holds an unread frame.
func (c Code) HoldsData() bool {
	return c == CodeRxFull || c == CodeRxOverrun
}

// InFlight reports whether the hardware currently owns the buffer.
func (c Code) InFlight() bool {
	return c == CodeTxData || c == CodeTxAnswer || c == CodeRxBusy
}

func (c Code) String() string {
	switch c {
	case CodeRxInactive:
		return "RX_INACTIVE"
	case CodeRxBusy:
		return "RX_BUSY"
	case CodeRxFull:
		return "RX_FULL"
	case CodeRxEmpty:
		return "RX_EMPTY"
	case CodeRxOverrun:
		return "RX_OVERRUN"
	case CodeTxInactive:
		return "TX_INACTIVE"
	case CodeTxAbort:
		return "TX_ABORT"
	case CodeTxData:
		return "TX_DATA"
	case CodeTxAnswer:
		return "TX_ANSWER"
	default:
		return fmt.Sprintf("CODE(0x%X)", uint8(c))
	}
}
