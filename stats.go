package flexcan

import (
	"fmt"
	"sync/atomic"
)

type Stats struct {
	Sent         uint64
	Received     uint64
	Overruns     uint64
	TxInterrupts uint64
	RxInterrupts uint64
	ErrInterrupt uint64
	BusOff       uint64
}

func (st Stats) String() string {
	return fmt.Sprintf("sent: %d recv: %d overrun: %d txirq: %d rxirq: %d errirq: %d busoff: %d",
		st.Sent, st.Received, st.Overruns, st.TxInterrupts, st.RxInterrupts, st.ErrInterrupt, st.BusOff)
}

type counters struct {
	sent, received, overruns uint64
	txIRQ, rxIRQ, errIRQ     uint64
	busOff                   uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Sent:         atomic.LoadUint64(&c.sent),
		Received:     atomic.LoadUint64(&c.received),
		Overruns:     atomic.LoadUint64(&c.overruns),
		TxInterrupts: atomic.LoadUint64(&c.txIRQ),
		RxInterrupts: atomic.LoadUint64(&c.rxIRQ),
		ErrInterrupt: atomic.LoadUint64(&c.errIRQ),
		BusOff:       atomic.LoadUint64(&c.busOff),
	}
}

func (d *Driver) Stats() Stats {
	return d.stats.snapshot()
}
