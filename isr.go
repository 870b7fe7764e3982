package flexcan

import (
	"sync/atomic"

	"github.com/roffe/flexcan/pkg/regs"
	"github.com/roffe/flexcan/pkg/status"
)

// Serve handles one interrupt line of the module. Buffer lines that
// cover both partitions run the receive path first.
func (d *Driver) Serve(v regs.Vector) {
	if !v.Buffer() {
		d.serveError()
		return
	}
	lines := v.Set() & regs.AllMailboxes(d.bank)
	if rx := lines & d.table.RxMask(); rx != 0 {
		d.serveReceive(rx)
	}
	if tx := lines & d.table.TxMask(); tx != 0 {
		d.serveTransmit(tx)
	}
}

func (d *Driver) serveTransmit(lines uint64) {
	flags := regs.LoadFlags(d.bank) & lines
	if flags == 0 {
		return
	}
	regs.ClearFlags(d.bank, flags)
	atomic.AddUint64(&d.stats.txIRQ, 1)

	d.mu.Lock()
	d.txQueue.broadcast()
	d.txEmpty.broadcast(flags)
	d.mu.Unlock()
}

func (d *Driver) serveReceive(lines uint64) {
	flags := regs.LoadFlags(d.bank) & lines
	if flags == 0 {
		return
	}
	atomic.AddUint64(&d.stats.rxIRQ, 1)

	d.mu.Lock()
	d.rxQueue.broadcast()
	d.rxFull.broadcast(flags)
	d.mu.Unlock()

	regs.ClearFlags(d.bank, flags)
}

func (d *Driver) serveError() {
	flags := status.Decode(d.bank)
	atomic.AddUint64(&d.stats.errIRQ, 1)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs.broadcast(uint64(flags))
	if flags.Has(status.BusOff) {
		atomic.AddUint64(&d.stats.busOff, 1)
		if d.state == StateReady {
			d.setState(StateError)
		}
	}
	if flags != 0 {
		d.debugf("error interrupt: %s", flags)
	}
}
