package regs

import (
	"sync/atomic"
	"unsafe"
)

// MMIO is a Bank backed by the memory mapped module.
type MMIO struct {
	base      uintptr
	mailboxes int
}

// Map returns a Bank for the module at base with the given number of
// implemented message buffers (32 or 64).
func Map(base uintptr, mailboxes int) *MMIO {
	return &MMIO{base: base, mailboxes: mailboxes}
}

func (m *MMIO) reg(off uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(m.base + off))
}

func (m *MMIO) mb(i int, w Word) *uint32 {
	return m.reg(MailboxBase + uintptr(i)*MailboxSize + uintptr(w)*4)
}

func (m *MMIO) Load(r Reg) uint32 {
	return atomic.LoadUint32(m.reg(r.Offset()))
}

func (m *MMIO) Store(r Reg, v uint32) {
	atomic.StoreUint32(m.reg(r.Offset()), v)
}

func (m *MMIO) LoadMB(i int, w Word) uint32 {
	return atomic.LoadUint32(m.mb(i, w))
}

func (m *MMIO) StoreMB(i int, w Word, v uint32) {
	atomic.StoreUint32(m.mb(i, w), v)
}

func (m *MMIO) Mailboxes() int {
	return m.mailboxes
}
