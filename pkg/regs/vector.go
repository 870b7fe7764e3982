package regs

// Vector is one interrupt request line of the module.
type Vector uint8

const (
	VectorErr Vector = iota
	VectorBusOff
	VectorBuf00_03
	VectorBuf04_07
	VectorBuf08_11
	VectorBuf12_15
	VectorBuf16_31
	VectorBuf32_63
)

// Vectors lists every line in the order the interrupt controller numbers
// them.
var Vectors = []Vector{
	VectorErr, VectorBusOff,
	VectorBuf00_03, VectorBuf04_07, VectorBuf08_11,
	VectorBuf12_15, VectorBuf16_31, VectorBuf32_63,
}

var vectorRanges = map[Vector][2]int{
	VectorBuf00_03: {0, 3},
	VectorBuf04_07: {4, 7},
	VectorBuf08_11: {8, 11},
	VectorBuf12_15: {12, 15},
	VectorBuf16_31: {16, 31},
	VectorBuf32_63: {32, 63},
}

// Buffer reports whether v is a message buffer line.
func (v Vector) Buffer() bool {
	_, ok := vectorRanges[v]
	return ok
}

// Range returns the first and last buffer served by v. ok is false for
// the ESR lines.
func (v Vector) Range() (first, last int, ok bool) {
	r, ok := vectorRanges[v]
	return r[0], r[1], ok
}

// Set returns the mailbox set served by v.
func (v Vector) Set() uint64 {
	first, last, ok := v.Range()
	if !ok {
		return 0
	}
	var set uint64
	for i := first; i <= last; i++ {
		set |= 1 << uint(i)
	}
	return set
}

// VectorFor returns the buffer line that serves mailbox i.
func VectorFor(i int) Vector {
	switch {
	case i < 4:
		return VectorBuf00_03
	case i < 8:
		return VectorBuf04_07
	case i < 12:
		return VectorBuf08_11
	case i < 16:
		return VectorBuf12_15
	case i < 32:
		return VectorBuf16_31
	default:
		return VectorBuf32_63
	}
}

func (v Vector) String() string {
	switch v {
	case VectorErr:
		return "ESR_ERR_INT"
	case VectorBusOff:
		return "ESR_BOFF"
	case VectorBuf00_03:
		return "BUF_00_03"
	case VectorBuf04_07:
		return "BUF_04_07"
	case VectorBuf08_11:
		return "BUF_08_11"
	case VectorBuf12_15:
		return "BUF_12_15"
	case VectorBuf16_31:
		return "BUF_16_31"
	case VectorBuf32_63:
		return "BUF_32_63"
	default:
		return "UNKNOWN"
	}
}
