package sim

import "github.com/roffe/flexcan/pkg/regs"

// Peek returns a register without the read side effects of Load.
func (p *Peripheral) Peek(r regs.Reg) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r == regs.TIMER {
		return uint32(p.timer)
	}
	return p.regs[r]
}

// Code returns the code of buffer i without locking it.
func (p *Peripheral) Code(i int) regs.Code {
	p.mu.Lock()
	defer p.mu.Unlock()
	return regs.ControlStatus(p.mbs[i][regs.CS]).Code()
}

// PeekMB returns one buffer word without side effects.
func (p *Peripheral) PeekMB(i int, w regs.Word) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mbs[i][w]
}

// Force overwrites the code of buffer i, bypassing transmission. Tests
// use it to park transmit buffers in flight.
func (p *Peripheral) Force(i int, c regs.Code) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cs := regs.ControlStatus(p.mbs[i][regs.CS])
	p.mbs[i][regs.CS] = uint32(cs.WithCode(c))
}

// Complete finishes an in-flight transmission of buffer i as the bus
// would, setting its flag and pending its line. A queued frame is sent,
// a forced code is just retired.
func (p *Peripheral) Complete(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cs := regs.ControlStatus(p.mbs[i][regs.CS])
	if cs.Code() == regs.CodeTxData {
		p.transmit(i)
		return
	}
	p.mbs[i][regs.CS] = uint32(cs.WithCode(regs.CodeTxInactive))
	p.flag(i)
}

// Sent returns a copy of every frame transmitted so far.
func (p *Peripheral) Sent() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.sent))
	copy(out, p.sent)
	return out
}

// Dropped returns the number of frames no receive buffer accepted.
func (p *Peripheral) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// TimerReads returns how many times TIMER was read through Load.
func (p *Peripheral) TimerReads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timerReads
}

// Locked returns the locked buffer or -1.
func (p *Peripheral) Locked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.locked
}

// Pending reports whether line v is pended.
func (p *Peripheral) Pending(v regs.Vector) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[v]
}
