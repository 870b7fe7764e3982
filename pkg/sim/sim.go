// Package sim is a software model of a FlexCAN module. It implements
// regs.Bank with the side effects the driver depends on: write-1-to-clear
// flag registers, message buffer locking by the CS read and unlocking by
// the TIMER read, loopback transmission, acceptance filtering and pended
// interrupt lines.
package sim

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/roffe/flexcan/pkg/regs"
)

// Message is a frame as seen on the simulated bus.
type Message struct {
	ID        uint32
	Extended  bool
	RTR       bool
	Length    uint8
	Data      [8]byte
	Timestamp uint16
	Mailbox   int
}

// Peripheral is one simulated module.
type Peripheral struct {
	mu sync.Mutex

	regs [regs.NumRegs]uint32
	mbs  [][4]uint32

	timer      uint16
	timerReads int
	locked     int
	loopback   bool
	hold       bool

	pending [8]bool
	notify  chan struct{}

	sent    []Message
	dropped int
}

const resetMCR = regs.MCRMDIS | regs.MCRFRZ | regs.MCRHALT | regs.MCRNOTRDY | 0x0F

// New returns a module in its reset state with the given number of
// message buffers.
func New(mailboxes int) *Peripheral {
	p := &Peripheral{
		mbs:    make([][4]uint32, mailboxes),
		locked: -1,
		notify: make(chan struct{}, 1),
	}
	p.regs[regs.MCR] = resetMCR
	return p
}

// SetLoopback routes every transmitted frame back into the receive
// buffers, as if another node echoed it. CTRL.LPB has the same effect.
func (p *Peripheral) SetLoopback(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loopback = enabled
}

// HoldBus keeps queued frames in flight until the bus is released or
// Complete is called for their buffer. Releasing the bus sends every
// frame still queued.
func (p *Peripheral) HoldBus(hold bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hold = hold
	if !hold && p.running() {
		p.flushTransmit()
	}
}

func (p *Peripheral) Mailboxes() int {
	return len(p.mbs)
}

func (p *Peripheral) Load(r regs.Reg) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch r {
	case regs.TIMER:
		p.timerReads++
		p.locked = -1
		v := p.timer
		p.timer++
		return uint32(v)
	case regs.ESR:
		v := p.regs[r]
		// Bit error flags are cleared by reading ESR.
		p.regs[r] &^= regs.ESRBitErrors
		return v
	}
	return p.regs[r]
}

func (p *Peripheral) Store(r regs.Reg, v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch r {
	case regs.ESR:
		p.regs[r] &^= v & regs.ESRInterrupts
	case regs.IFLAG1, regs.IFLAG2:
		p.regs[r] &^= v
	case regs.TIMER:
		p.timer = uint16(v)
	case regs.MCR:
		wasRunning := p.running()
		p.regs[r] = p.mcr(v)
		if v&regs.MCRMDIS != 0 {
			// Disabling the module resets the protocol engine.
			p.regs[regs.ECR] = 0
			p.regs[regs.ESR] &^= regs.ESRFLTCONF
		}
		if !wasRunning && p.running() && !p.hold {
			p.flushTransmit()
		}
	default:
		p.regs[r] = v
	}
}

// mcr derives the read-only acknowledge bits from a written value.
func (p *Peripheral) mcr(v uint32) uint32 {
	v &^= regs.MCRFRZACK | regs.MCRLPMACK | regs.MCRNOTRDY | regs.MCRSOFTRST
	switch {
	case v&regs.MCRMDIS != 0:
		v |= regs.MCRLPMACK | regs.MCRNOTRDY
	case v&regs.MCRFRZ != 0 && v&regs.MCRHALT != 0:
		v |= regs.MCRFRZACK | regs.MCRNOTRDY
	}
	return v
}

func (p *Peripheral) running() bool {
	return p.regs[regs.MCR]&(regs.MCRMDIS|regs.MCRHALT) == 0
}

func (p *Peripheral) LoadMB(i int, w regs.Word) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.mbs[i][w]
	if w == regs.CS && !regs.ControlStatus(v).Code().Transmit() {
		p.locked = i
	}
	return v
}

func (p *Peripheral) StoreMB(i int, w regs.Word, v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mbs[i][w] = v
	if w == regs.CS && regs.ControlStatus(v).Code() == regs.CodeTxData && p.running() && !p.hold {
		p.transmit(i)
	}
}

func (p *Peripheral) flushTransmit() {
	for i := range p.mbs {
		if regs.ControlStatus(p.mbs[i][regs.CS]).Code() == regs.CodeTxData {
			p.transmit(i)
		}
	}
}

func (p *Peripheral) transmit(i int) {
	cs := regs.ControlStatus(p.mbs[i][regs.CS])
	m := Message{
		Extended:  cs.IDE(),
		RTR:       cs.RTR(),
		Length:    cs.Length(),
		Timestamp: p.timer,
		Mailbox:   i,
	}
	id := regs.Identifier(p.mbs[i][regs.ID])
	if m.Extended {
		m.ID = id.ExtID()
	} else {
		m.ID = id.StdID()
	}
	putWords(&m.Data, p.mbs[i][regs.Data0], p.mbs[i][regs.Data1])
	p.sent = append(p.sent, m)

	p.mbs[i][regs.CS] = uint32(cs.WithCode(regs.CodeTxInactive).WithTimestamp(p.timer))
	p.flag(i)

	if p.loopback || p.regs[regs.CTRL]&regs.CTRLLPB != 0 {
		p.deliver(m)
	}
}

func (p *Peripheral) flag(i int) {
	reg, mask := regs.IFLAG1, regs.IMASK1
	bit := uint(i)
	if i >= 32 {
		reg, mask = regs.IFLAG2, regs.IMASK2
		bit -= 32
	}
	p.regs[reg] |= 1 << bit
	if p.regs[mask]&(1<<bit) != 0 {
		p.pend(regs.VectorFor(i))
	}
}

func (p *Peripheral) pend(v regs.Vector) {
	p.pending[v] = true
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Peripheral) globalMask(i int) uint32 {
	switch i {
	case 14:
		return p.regs[regs.RX14MASK]
	case 15:
		return p.regs[regs.RX15MASK]
	default:
		return p.regs[regs.RXGMASK]
	}
}

func (p *Peripheral) matches(i int, m Message) bool {
	mask := p.globalMask(i) & regs.GlobalMaskExact
	cs := regs.ControlStatus(p.mbs[i][regs.CS])
	// A cleared mask is modelled as accept-all, frame format included.
	if mask != 0 && cs.IDE() != m.Extended {
		return false
	}
	var want regs.Identifier
	if m.Extended {
		want = regs.ExtIdentifier(m.ID)
	} else {
		want = regs.StdIdentifier(m.ID)
	}
	have := regs.Identifier(p.mbs[i][regs.ID])
	return uint32(want^have)&mask == 0
}

// deliver moves m into the first matching empty receive buffer, or
// overruns the first matching full one.
func (p *Peripheral) deliver(m Message) bool {
	target := -1
	for _, want := range []regs.Code{regs.CodeRxEmpty, regs.CodeRxFull} {
		for i := range p.mbs {
			if i == p.locked {
				continue
			}
			if regs.ControlStatus(p.mbs[i][regs.CS]).Code() == want && p.matches(i, m) {
				target = i
				break
			}
		}
		if target >= 0 {
			break
		}
	}
	if target < 0 {
		p.dropped++
		return false
	}
	code := regs.CodeRxFull
	if regs.ControlStatus(p.mbs[target][regs.CS]).Code() == regs.CodeRxFull {
		code = regs.CodeRxOverrun
	}
	var id regs.Identifier
	if m.Extended {
		id = regs.ExtIdentifier(m.ID)
	} else {
		id = regs.StdIdentifier(m.ID)
	}
	cs := regs.ControlStatus(0).
		WithCode(code).
		WithIDE(m.Extended).
		WithRTR(m.RTR).
		WithLength(m.Length).
		WithTimestamp(p.timer)
	d0, d1 := getWords(&m.Data)
	p.mbs[target] = [4]uint32{uint32(cs), uint32(id), d0, d1}
	p.flag(target)
	return true
}

// Inject puts a frame from another node on the bus. It reports whether a
// receive buffer accepted it.
func (p *Peripheral) Inject(m Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running() {
		p.dropped++
		return false
	}
	return p.deliver(m)
}

// RaiseError latches ESR interrupt flags and pends the matching lines
// when their interrupt enables are set.
func (p *Peripheral) RaiseError(bits uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs[regs.ESR] |= bits
	ctrl, mcr := p.regs[regs.CTRL], p.regs[regs.MCR]
	if bits&regs.ESRBOFFINT != 0 {
		p.regs[regs.ESR] = p.regs[regs.ESR]&^regs.ESRFLTCONF | 0x2<<4
		if ctrl&regs.CTRLBOFFMSK != 0 {
			p.pend(regs.VectorBusOff)
		}
	}
	if bits&regs.ESRTWRNINT != 0 && ctrl&regs.CTRLTWRNMSK != 0 && mcr&regs.MCRWRNEN != 0 {
		p.pend(regs.VectorBusOff)
	}
	if bits&regs.ESRRWRNINT != 0 && ctrl&regs.CTRLRWRNMSK != 0 && mcr&regs.MCRWRNEN != 0 {
		p.pend(regs.VectorBusOff)
	}
	if bits&regs.ESRERRINT != 0 && ctrl&regs.CTRLERRMSK != 0 {
		p.pend(regs.VectorErr)
	}
}

// SetCounters sets the transmit and receive error counters and the fault
// confinement state that follows from them.
func (p *Peripheral) SetCounters(tx, rx uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs[regs.ECR] = uint32(rx)<<8 | uint32(tx)
	var flt uint32
	if tx > 127 || rx > 127 {
		flt = 0x1
	}
	p.regs[regs.ESR] = p.regs[regs.ESR]&^regs.ESRFLTCONF | flt<<4
}

// Service runs fn for every pending line, lowest vector first, and
// returns the number of lines serviced.
func (p *Peripheral) Service(fn func(regs.Vector)) int {
	n := 0
	for {
		p.mu.Lock()
		var next []regs.Vector
		for v, set := range p.pending {
			if set {
				next = append(next, regs.Vector(v))
				p.pending[v] = false
			}
		}
		p.mu.Unlock()
		if len(next) == 0 {
			return n
		}
		for _, v := range next {
			fn(v)
			n++
		}
	}
}

// Run services pending lines until ctx is done, acting as the interrupt
// controller.
func (p *Peripheral) Run(ctx context.Context, fn func(regs.Vector)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.notify:
			p.Service(fn)
		}
	}
}

func putWords(d *[8]byte, w0, w1 uint32) {
	binary.BigEndian.PutUint32(d[:4], w0)
	binary.BigEndian.PutUint32(d[4:], w1)
}

func getWords(d *[8]byte) (w0, w1 uint32) {
	return binary.BigEndian.Uint32(d[:4]), binary.BigEndian.Uint32(d[4:])
}
