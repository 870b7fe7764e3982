package regs

const (
	csCodeShift  = 24
	csCodeMask   = 0xF << csCodeShift
	csSRR        = 1 << 22
	csIDE        = 1 << 21
	csRTR        = 1 << 20
	csLenShift   = 16
	csLenMask    = 0xF << csLenShift
	csStampMask  = 0xFFFF
	idStdShift   = 18
	idStdMask    = 0x7FF << idStdShift
	idExtMask    = 0x1FFFFFFF
	idPrioShift  = 29
	maxStdID     = 0x7FF
	maxDataBytes = 8
)

// ControlStatus is the CS word of a message buffer.
type ControlStatus uint32

func (cs ControlStatus) Code() Code { return ParseCode(uint32(cs&csCodeMask) >> csCodeShift) }
func (cs ControlStatus) IDE() bool { return cs&csIDE != 0 }
func (cs ControlStatus) RTR() bool { return cs&csRTR != 0 }
func (cs ControlStatus) SRR() bool { return cs&csSRR != 0 }
func (cs ControlStatus) Length() uint8 { return uint8(uint32(cs&csLenMask) >> csLenShift) }
func (cs ControlStatus) Timestamp() uint16 { return uint16(cs & csStampMask) }
func (cs ControlStatus) Raw() uint32 { return uint32(cs) }

// WithCode replaces the CODE field.
func (cs ControlStatus) WithCode(c Code) ControlStatus {
	return cs&^csCodeMask | ControlStatus(c.Raw()<<csCodeShift)
}

// WithIDE sets or clears the extended identifier flag.
func (cs ControlStatus) WithIDE(v bool) ControlStatus {
	if v {
		// SRR must be recessive in extended frames.
		return cs | csIDE | csSRR
	}
	return cs &^ (csIDE | csSRR)
}

// WithRTR sets or clears the remote request flag.
func (cs ControlStatus) WithRTR(v bool) ControlStatus {
	if v {
		return cs | csRTR
	}
	return cs &^ csRTR
}

// WithLength sets the data length code. Values above 8 are clamped.
func (cs ControlStatus) WithLength(n uint8) ControlStatus {
	if n > maxDataBytes {
		n = maxDataBytes
	}
	return cs&^csLenMask | ControlStatus(uint32(n)<<csLenShift)
}

// WithTimestamp sets the time stamp field. Only the hardware does this on
// a real module.
func (cs ControlStatus) WithTimestamp(t uint16) ControlStatus {
	return cs&^csStampMask | ControlStatus(t)
}

// Identifier is the ID word of a message buffer.
type Identifier uint32

// StdID returns the 11-bit identifier.
func (id Identifier) StdID() uint32 { return uint32(id&idStdMask) >> idStdShift }

// ExtID returns the 29-bit identifier.
func (id Identifier) ExtID() uint32 { return uint32(id & idExtMask) }

// Prio returns the local transmit priority.
func (id Identifier) Prio() uint8 { return uint8(uint32(id) >> idPrioShift) }

// StdIdentifier places an 11-bit identifier in the upper bits of the
// 29-bit space.
func StdIdentifier(sid uint32) Identifier {
	return Identifier((sid & maxStdID) << idStdShift)
}

// ExtIdentifier stores the full 29-bit identifier.
func ExtIdentifier(eid uint32) Identifier {
	return Identifier(eid & idExtMask)
}

// ReadCS loads the CS word of buffer i. On a receive buffer this read
// locks the buffer until Unlock.
func ReadCS(b Bank, i int) ControlStatus {
	return ControlStatus(b.LoadMB(i, CS))
}

// WriteCS stores the CS word of buffer i.
func WriteCS(b Bank, i int, cs ControlStatus) {
	b.StoreMB(i, CS, uint32(cs))
}

// ReadCode returns the code of buffer i.
func ReadCode(b Bank, i int) Code {
	return ReadCS(b, i).Code()
}

// WriteCode rewrites only the CODE field of buffer i.
func WriteCode(b Bank, i int, c Code) {
	WriteCS(b, i, ReadCS(b, i).WithCode(c))
}

// ReadID loads the ID word of buffer i.
func ReadID(b Bank, i int) Identifier {
	return Identifier(b.LoadMB(i, ID))
}

// WriteID stores the ID word of buffer i.
func WriteID(b Bank, i int, id Identifier) {
	b.StoreMB(i, ID, uint32(id))
}

// ReadData returns both payload words of buffer i.
func ReadData(b Bank, i int) [2]uint32 {
	return [2]uint32{b.LoadMB(i, Data0), b.LoadMB(i, Data1)}
}

// WriteData stores both payload words of buffer i.
func WriteData(b Bank, i int, w [2]uint32) {
	b.StoreMB(i, Data0, w[0])
	b.StoreMB(i, Data1, w[1])
}
