// Package mailbox partitions the message buffers of a module into a
// receive prefix and a transmit suffix and implements claim, scan and
// release over that partition.
package mailbox

import (
	"errors"
	"fmt"

	"github.com/roffe/flexcan/pkg/regs"
)

// DefaultRxMailboxes is the size of the receive partition unless
// configured otherwise.
const DefaultRxMailboxes = 8

// Selector addresses a logical mailbox. Receive and transmit mailboxes
// are numbered from 1 within their own partition.
type Selector uint8

// Any lets the driver choose the first eligible mailbox.
const Any Selector = 0

func (s Selector) String() string {
	if s == Any {
		return "ANY"
	}
	return fmt.Sprintf("MB%d", uint8(s))
}

// Filter is the acceptance identifier of one receive mailbox.
type Filter struct {
	ID       uint32 `yaml:"id"`
	Extended bool   `yaml:"extended"`
}

var (
	ErrPartition     = errors.New("invalid mailbox partition")
	ErrFilterCount   = errors.New("filter table size does not match receive mailboxes")
	ErrOutOfRange    = errors.New("mailbox selector out of range")
	ErrInvalidFilter = errors.New("filter identifier out of range")
)

// Table is the mailbox partition of one module.
type Table struct {
	bank regs.Bank
	rx   int
	n    int
}

// New partitions bank into rx receive mailboxes and the remaining
// transmit mailboxes.
func New(bank regs.Bank, rx int) (*Table, error) {
	n := bank.Mailboxes()
	if n != 32 && n != 64 {
		return nil, fmt.Errorf("%w: %d message buffers", ErrPartition, n)
	}
	if rx < 1 || rx >= n {
		return nil, fmt.Errorf("%w: %d receive of %d", ErrPartition, rx, n)
	}
	return &Table{bank: bank, rx: rx, n: n}, nil
}

// Rx returns the number of receive mailboxes.
func (t *Table) Rx() int { return t.rx }

// Tx returns the number of transmit mailboxes.
func (t *Table) Tx() int { return t.n - t.rx }

// Len returns the number of message buffers.
func (t *Table) Len() int { return t.n }

// RxMask returns the receive buffers as a flag set.
func (t *Table) RxMask() uint64 {
	return uint64(1)<<uint(t.rx) - 1
}

// TxMask returns the transmit buffers as a flag set.
func (t *Table) TxMask() uint64 {
	return regs.AllMailboxes(t.bank) &^ t.RxMask()
}

// RxIndex maps a receive selector to its buffer index.
func (t *Table) RxIndex(s Selector) (int, error) {
	if s == Any || int(s) > t.rx {
		return 0, fmt.Errorf("%w: receive %s", ErrOutOfRange, s)
	}
	return int(s) - 1, nil
}

// TxIndex maps a transmit selector to its buffer index.
func (t *Table) TxIndex(s Selector) (int, error) {
	if s == Any || int(s) > t.Tx() {
		return 0, fmt.Errorf("%w: transmit %s", ErrOutOfRange, s)
	}
	return t.rx + int(s) - 1, nil
}

// Valid reports whether s addresses a mailbox in the given role.
func (t *Table) Valid(s Selector, transmit bool) bool {
	if s == Any {
		return true
	}
	if transmit {
		return int(s) <= t.Tx()
	}
	return int(s) <= t.rx
}

// Selector returns the logical selector of buffer i.
func (t *Table) Selector(i int) Selector {
	if i < t.rx {
		return Selector(i + 1)
	}
	return Selector(i - t.rx + 1)
}

// InitTransmit parks every transmit buffer in the inactive code.
func (t *Table) InitTransmit() {
	for i := t.rx; i < t.n; i++ {
		regs.WriteCS(t.bank, i, regs.ControlStatus(0).WithCode(regs.CodeTxInactive))
	}
}

// ConfigureReceive programs the receive buffers, discarding whatever
// they held. With a nil table every receive buffer accepts every
// identifier and the global masks are cleared. Otherwise filters must
// hold one entry per receive buffer and mask is loaded into the global
// masks.
func (t *Table) ConfigureReceive(filters []Filter, mask uint32) error {
	if filters == nil {
		for i := 0; i < t.rx; i++ {
			regs.WriteCS(t.bank, i, regs.ControlStatus(0).WithCode(regs.CodeRxInactive))
			regs.WriteID(t.bank, i, 0)
			regs.WriteCode(t.bank, i, regs.CodeRxEmpty)
		}
		regs.Unlock(t.bank)
		t.setMasks(0)
		return nil
	}
	if len(filters) != t.rx {
		return fmt.Errorf("%w: got %d want %d", ErrFilterCount, len(filters), t.rx)
	}
	for _, f := range filters {
		if (f.Extended && f.ID > 0x1FFFFFFF) || (!f.Extended && f.ID > 0x7FF) {
			return fmt.Errorf("%w: 0x%X", ErrInvalidFilter, f.ID)
		}
	}
	for i, f := range filters {
		regs.WriteCS(t.bank, i, regs.ControlStatus(0).WithIDE(f.Extended).WithCode(regs.CodeRxInactive))
		if f.Extended {
			regs.WriteID(t.bank, i, regs.ExtIdentifier(f.ID))
		} else {
			regs.WriteID(t.bank, i, regs.StdIdentifier(f.ID))
		}
		regs.WriteCode(t.bank, i, regs.CodeRxEmpty)
	}
	// Configuration reads of CS lock buffers on real silicon too.
	regs.Unlock(t.bank)
	t.setMasks(mask)
	return nil
}

func (t *Table) setMasks(mask uint32) {
	t.bank.Store(regs.RXGMASK, mask)
	t.bank.Store(regs.RX14MASK, mask)
	t.bank.Store(regs.RX15MASK, mask)
}

// ClaimFreeTransmit returns the buffer a frame for s should go to. A
// specific selector is returned as is; Any scans the transmit buffers
// lowest index first. ok is false when no buffer is free.
func (t *Table) ClaimFreeTransmit(s Selector) (int, bool) {
	if s != Any {
		i, err := t.TxIndex(s)
		return i, err == nil
	}
	for i := t.rx; i < t.n; i++ {
		if regs.ReadCode(t.bank, i) == regs.CodeTxInactive {
			return i, true
		}
	}
	return 0, false
}

// TransmitReady reports whether a frame for s could be queued now.
func (t *Table) TransmitReady(s Selector) bool {
	if s == Any {
		_, ok := t.ClaimFreeTransmit(Any)
		return ok
	}
	i, err := t.TxIndex(s)
	if err != nil {
		return false
	}
	return regs.ReadCode(t.bank, i) == regs.CodeTxInactive
}

// FindReadyReceive returns the buffer holding an unread frame for s,
// lowest index first. Under sustained traffic low buffers are served
// before high ones. Reading CS locks a receive buffer, so the scan ends
// with an unlock read.
func (t *Table) FindReadyReceive(s Selector) (int, bool) {
	defer regs.Unlock(t.bank)
	if s != Any {
		i, err := t.RxIndex(s)
		if err != nil {
			return 0, false
		}
		return i, regs.ReadCode(t.bank, i).HoldsData()
	}
	for i := 0; i < t.rx; i++ {
		if regs.ReadCode(t.bank, i).HoldsData() {
			return i, true
		}
	}
	return 0, false
}

// ReceiveReady reports whether at least one frame is waiting for s.
func (t *Table) ReceiveReady(s Selector) bool {
	_, ok := t.FindReadyReceive(s)
	return ok
}

// Release returns buffer i to code c and performs the unlock read.
func (t *Table) Release(i int, c regs.Code) {
	regs.WriteCode(t.bank, i, c)
	regs.Unlock(t.bank)
}

// Codes returns the current code of every buffer.
func (t *Table) Codes() []regs.Code {
	out := make([]regs.Code, t.n)
	for i := range out {
		out[i] = regs.ReadCode(t.bank, i)
	}
	regs.Unlock(t.bank)
	return out
}
