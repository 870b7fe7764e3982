package sim

import (
	"context"
	"testing"
	"time"

	"github.com/roffe/flexcan/pkg/regs"
)

// start takes p out of reset with every receive buffer below rx armed
// as accept-all and every flag line enabled.
func start(p *Peripheral, rx int) {
	p.Store(regs.MCR, 0)
	for i := 0; i < p.Mailboxes(); i++ {
		c := regs.CodeRxEmpty
		if i >= rx {
			c = regs.CodeTxInactive
		}
		p.StoreMB(i, regs.CS, uint32(regs.ControlStatus(0).WithCode(c)))
	}
	regs.SetMasks(p, regs.AllMailboxes(p))
}

func queue(p *Peripheral, i int, id uint32, data ...byte) {
	p.StoreMB(i, regs.ID, uint32(regs.StdIdentifier(id)))
	var d [8]byte
	copy(d[:], data)
	w0, w1 := getWords(&d)
	p.StoreMB(i, regs.Data0, w0)
	p.StoreMB(i, regs.Data1, w1)
	cs := regs.ControlStatus(0).WithLength(uint8(len(data))).WithCode(regs.CodeTxData)
	p.StoreMB(i, regs.CS, uint32(cs))
}

func TestResetState(t *testing.T) {
	p := New(32)
	mcr := p.Peek(regs.MCR)
	if mcr&regs.MCRMDIS == 0 || mcr&regs.MCRNOTRDY == 0 {
		t.Errorf("MCR after reset = 0x%08X", mcr)
	}
	if p.running() {
		t.Error("module runs out of reset")
	}
}

func TestFreezeAcknowledge(t *testing.T) {
	p := New(32)
	p.Store(regs.MCR, regs.MCRFRZ|regs.MCRHALT)
	if v := p.Peek(regs.MCR); v&regs.MCRFRZACK == 0 || v&regs.MCRNOTRDY == 0 {
		t.Errorf("MCR in freeze = 0x%08X", v)
	}
	p.Store(regs.MCR, regs.MCRFRZ)
	if v := p.Peek(regs.MCR); v&(regs.MCRFRZACK|regs.MCRNOTRDY) != 0 {
		t.Errorf("MCR after leaving freeze = 0x%08X", v)
	}
}

func TestFlagsWriteOneToClear(t *testing.T) {
	p := New(64)
	p.regs[regs.IFLAG1] = 0xF0
	p.regs[regs.IFLAG2] = 0x3
	p.Store(regs.IFLAG1, 0x30)
	p.Store(regs.IFLAG2, 0)
	if v := p.Peek(regs.IFLAG1); v != 0xC0 {
		t.Errorf("IFLAG1 = 0x%X, want 0xC0", v)
	}
	if v := p.Peek(regs.IFLAG2); v != 0x3 {
		t.Errorf("IFLAG2 = 0x%X, want 0x3", v)
	}

	p.RaiseError(regs.ESRERRINT | regs.ESRTWRNINT)
	p.Store(regs.ESR, regs.ESRERRINT)
	if v := p.Peek(regs.ESR) & regs.ESRInterrupts; v != regs.ESRTWRNINT {
		t.Errorf("ESR = 0x%X", v)
	}
}

func TestLocking(t *testing.T) {
	p := New(32)
	start(p, 8)
	_ = p.LoadMB(3, regs.CS)
	if p.Locked() != 3 {
		t.Fatalf("Locked() = %d, want 3", p.Locked())
	}
	// A locked buffer is skipped by reception.
	for i := 0; i < 3; i++ {
		p.Force(i, regs.CodeRxInactive)
	}
	if !p.Inject(Message{ID: 0x10, Length: 1}) {
		t.Fatal("Inject() rejected a frame")
	}
	if p.Code(3) != regs.CodeRxEmpty || p.Code(4) != regs.CodeRxFull {
		t.Errorf("delivery ignored the lock: %s %s", p.Code(3), p.Code(4))
	}
	_ = p.Load(regs.TIMER)
	if p.Locked() != -1 {
		t.Error("TIMER read did not unlock")
	}
	// Transmit buffers never lock.
	_ = p.LoadMB(20, regs.CS)
	if p.Locked() != -1 {
		t.Error("transmit CS read locked the buffer")
	}
}

func TestLoopback(t *testing.T) {
	p := New(32)
	start(p, 8)
	p.SetLoopback(true)
	queue(p, 8, 0x123, 0xDE, 0xAD)

	if sent := p.Sent(); len(sent) != 1 || sent[0].ID != 0x123 || sent[0].Mailbox != 8 {
		t.Fatalf("Sent() = %+v", sent)
	}
	if c := p.Code(8); c != regs.CodeTxInactive {
		t.Errorf("transmit buffer code = %s", c)
	}
	if c := p.Code(0); c != regs.CodeRxFull {
		t.Fatalf("receive buffer code = %s", c)
	}
	cs := regs.ControlStatus(p.PeekMB(0, regs.CS))
	if cs.Length() != 2 || cs.IDE() {
		t.Errorf("received cs = 0x%08X", cs.Raw())
	}
	if id := regs.Identifier(p.PeekMB(0, regs.ID)).StdID(); id != 0x123 {
		t.Errorf("received id = 0x%X", id)
	}
	if w := p.PeekMB(0, regs.Data0); w != 0xDEAD0000 {
		t.Errorf("received data word = 0x%08X", w)
	}
	if !p.Pending(regs.VectorBuf00_03) || !p.Pending(regs.VectorBuf08_11) {
		t.Error("buffer lines not pended")
	}
}

func TestOverrunAndDrop(t *testing.T) {
	p := New(32)
	start(p, 1)
	if !p.Inject(Message{ID: 1}) || !p.Inject(Message{ID: 2}) {
		t.Fatal("Inject() rejected a frame")
	}
	if c := p.Code(0); c != regs.CodeRxOverrun {
		t.Errorf("code = %s, want RX_OVERRUN", c)
	}
	if id := regs.Identifier(p.PeekMB(0, regs.ID)).StdID(); id != 2 {
		t.Errorf("overrun kept id %d, want the newest", id)
	}

	p.Force(0, regs.CodeRxInactive)
	if p.Inject(Message{ID: 3}) {
		t.Error("frame accepted without an armed buffer")
	}
	if p.Dropped() != 1 {
		t.Errorf("Dropped() = %d", p.Dropped())
	}
}

func TestFilterFormat(t *testing.T) {
	p := New(32)
	start(p, 2)
	p.Store(regs.RXGMASK, regs.GlobalMaskExact)
	p.StoreMB(0, regs.ID, uint32(regs.StdIdentifier(0x100)))
	p.StoreMB(1, regs.CS, uint32(regs.ControlStatus(0).WithIDE(true).WithCode(regs.CodeRxEmpty)))
	p.StoreMB(1, regs.ID, uint32(regs.ExtIdentifier(0x100)))

	p.Inject(Message{ID: 0x100, Extended: true})
	if p.Code(0) != regs.CodeRxEmpty || p.Code(1) != regs.CodeRxFull {
		t.Errorf("extended frame went to the wrong buffer: %s %s", p.Code(0), p.Code(1))
	}
	p.Inject(Message{ID: 0x100})
	if p.Code(0) != regs.CodeRxFull {
		t.Errorf("standard frame not accepted: %s", p.Code(0))
	}
}

func TestHoldBus(t *testing.T) {
	p := New(32)
	start(p, 8)
	p.HoldBus(true)
	queue(p, 9, 0x1)
	queue(p, 10, 0x2)
	if len(p.Sent()) != 0 || p.Code(9) != regs.CodeTxData {
		t.Fatal("frame left a held bus")
	}
	p.Complete(10)
	if sent := p.Sent(); len(sent) != 1 || sent[0].Mailbox != 10 {
		t.Fatalf("Sent() = %+v", sent)
	}
	p.HoldBus(false)
	if len(p.Sent()) != 2 || p.Code(9) != regs.CodeTxInactive {
		t.Error("releasing the bus did not send the queued frame")
	}
}

func TestServiceAndRun(t *testing.T) {
	p := New(64)
	start(p, 8)
	p.Inject(Message{ID: 1})
	p.Force(40, regs.CodeTxInactive)
	p.Complete(40)

	var got []regs.Vector
	if n := p.Service(func(v regs.Vector) { got = append(got, v) }); n != 2 {
		t.Fatalf("Service() = %d, want 2", n)
	}
	if got[0] != regs.VectorBuf00_03 || got[1] != regs.VectorBuf32_63 {
		t.Errorf("serviced %v", got)
	}
	if p.Service(func(regs.Vector) {}) != 0 {
		t.Error("lines serviced twice")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan regs.Vector, 1)
	go p.Run(ctx, func(v regs.Vector) {
		select {
		case done <- v:
		default:
		}
	})
	p.Inject(Message{ID: 2})
	select {
	case v := <-done:
		if v != regs.VectorBuf00_03 {
			t.Errorf("Run delivered %s", v)
		}
	case <-ctx.Done():
		t.Fatal("Run did not deliver the line")
	}
}

func TestBusOffAndReset(t *testing.T) {
	p := New(32)
	start(p, 8)
	regs.Set(p, regs.CTRL, regs.CTRLBOFFMSK)
	p.SetCounters(255, 0)
	p.RaiseError(regs.ESRBOFFINT)
	if !p.Pending(regs.VectorBusOff) {
		t.Error("bus off line not pended")
	}
	if flt := p.Peek(regs.ESR) & regs.ESRFLTCONF >> 4; flt != 2 {
		t.Errorf("FLTCONF = %d, want 2", flt)
	}
	p.Store(regs.MCR, regs.MCRMDIS)
	if p.Peek(regs.ECR) != 0 || p.Peek(regs.ESR)&regs.ESRFLTCONF != 0 {
		t.Error("disabling the module kept the fault state")
	}
}
