// Package regs is a typed view of the FlexCAN register file and its
// message buffer array.
package regs

// Reg names a module register.
type Reg uint8

const (
	MCR Reg = iota
	CTRL
	TIMER
	RXGMASK
	RX14MASK
	RX15MASK
	ECR
	ESR
	IMASK2
	IMASK1
	IFLAG2
	IFLAG1
	numRegs
)

// NumRegs is the number of module registers addressable through a Bank.
const NumRegs = int(numRegs)

var regOffsets = [numRegs]uintptr{
	MCR:      0x00,
	CTRL:     0x04,
	TIMER:    0x08,
	RXGMASK:  0x10,
	RX14MASK: 0x14,
	RX15MASK: 0x18,
	ECR:      0x1C,
	ESR:      0x20,
	IMASK2:   0x24,
	IMASK1:   0x28,
	IFLAG2:   0x2C,
	IFLAG1:   0x30,
}

var regNames = [numRegs]string{
	"MCR", "CTRL", "TIMER", "RXGMASK", "RX14MASK", "RX15MASK",
	"ECR", "ESR", "IMASK2", "IMASK1", "IFLAG2", "IFLAG1",
}

// Offset returns the register offset from the module base address.
func (r Reg) Offset() uintptr {
	return regOffsets[r]
}

func (r Reg) String() string {
	if r >= numRegs {
		return "UNKNOWN"
	}
	return regNames[r]
}

// Word names one 32-bit word of a message buffer.
type Word uint8

const (
	CS Word = iota
	ID
	Data0
	Data1
)

const (
	// MailboxBase is the offset of message buffer 0.
	MailboxBase uintptr = 0x80
	// MailboxSize is the size in bytes of one message buffer.
	MailboxSize uintptr = 16
)

// Bank gives 32-bit access to the module registers and the message
// buffers. Implementations give no reentrancy guarantee beyond single
// word atomicity.
type Bank interface {
	Load(Reg) uint32
	Store(Reg, uint32)
	LoadMB(i int, w Word) uint32
	StoreMB(i int, w Word, v uint32)
	Mailboxes() int
}

// Set ORs bits into r.
func Set(b Bank, r Reg, bits uint32) {
	b.Store(r, b.Load(r)|bits)
}

// Clear removes bits from r.
func Clear(b Bank, r Reg, bits uint32) {
	b.Store(r, b.Load(r)&^bits)
}

// Unlock performs the dummy free running timer read that releases a
// locked message buffer. It must follow the claim read of a receive
// buffer and every release of a buffer back to its idle code.
func Unlock(b Bank) {
	_ = b.Load(TIMER)
}

// LoadFlags returns IFLAG2:IFLAG1 as one 64-bit mailbox set.
func LoadFlags(b Bank) uint64 {
	lo := uint64(b.Load(IFLAG1))
	if b.Mailboxes() <= 32 {
		return lo
	}
	return uint64(b.Load(IFLAG2))<<32 | lo
}

// ClearFlags writes back the given mailbox set to IFLAG1/IFLAG2. The
// flag registers are write-1-to-clear so only the given bits change.
func ClearFlags(b Bank, set uint64) {
	if lo := uint32(set); lo != 0 {
		b.Store(IFLAG1, lo)
	}
	if hi := uint32(set >> 32); hi != 0 && b.Mailboxes() > 32 {
		b.Store(IFLAG2, hi)
	}
}

// SetMasks writes IMASK1/IMASK2 from a 64-bit mailbox set.
func SetMasks(b Bank, set uint64) {
	b.Store(IMASK1, uint32(set))
	if b.Mailboxes() > 32 {
		b.Store(IMASK2, uint32(set>>32))
	}
}

// AllMailboxes returns the set with one bit per implemented buffer.
func AllMailboxes(b Bank) uint64 {
	n := b.Mailboxes()
	if n >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(n) - 1
}
