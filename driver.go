// Package flexcan drives the FlexCAN controller: a fixed array of message
// buffers split into a receive and a transmit partition, a non-blocking
// API over those buffers and an interrupt dispatcher that wakes waiters
// and publishes events.
//
// The driver never starts goroutines. Interrupts reach it through Serve,
// called by the platform interrupt glue or by sim.Peripheral.Run.
package flexcan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/roffe/flexcan/pkg/mailbox"
	"github.com/roffe/flexcan/pkg/regs"
	"github.com/roffe/flexcan/pkg/status"
)

// Mailbox selects a logical mailbox, 1-based within its partition.
type Mailbox = mailbox.Selector

// AnyMailbox lets the driver pick the first eligible mailbox.
const AnyMailbox = mailbox.Any

type State int

const (
	StateStopped State = iota
	StateStarting
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateReady:
		return "READY"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type Driver struct {
	name      string
	rx        int
	clock     Clock
	onMessage func(string)
	debug     bool

	bank  regs.Bank
	table *mailbox.Table

	// mu is the critical section shared with Serve.
	mu     sync.Mutex
	state  State
	config *Config

	txQueue *waitQueue
	rxQueue *waitQueue

	txEmpty *eventSource
	rxFull  *eventSource
	errs    *eventSource

	stats counters
}

// New returns a stopped driver for the module behind bank.
func New(bank regs.Bank, opts ...Option) (*Driver, error) {
	d := defaultDriver()
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.onMessage == nil {
		d.onMessage = defaultOnMessage
	}
	table, err := mailbox.New(bank, d.rx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	d.bank = bank
	d.table = table
	d.txQueue = newWaitQueue()
	d.rxQueue = newWaitQueue()
	d.txEmpty = newEventSource(EventTxEmpty)
	d.rxFull = newEventSource(EventRxFull)
	d.errs = newEventSource(EventError)
	return d, nil
}

func (d *Driver) Name() string {
	return d.name
}

// Table returns the mailbox partition of the driver.
func (d *Driver) Table() *mailbox.Table {
	return d.table
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Config returns a copy of the configuration of the last start, or nil.
func (d *Driver) Config() *Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.config == nil {
		return nil
	}
	return d.config.clone()
}

func (d *Driver) debugf(format string, args ...interface{}) {
	if d.debug {
		d.onMessage(d.name + ": " + fmt.Sprintf(format, args...))
	}
}

func (d *Driver) setState(s State) {
	if d.state != s {
		d.debugf("%s -> %s", d.state, s)
	}
	d.state = s
}

// Start configures and enables the module. A nil cfg starts with
// DefaultConfig. Start is only valid on a stopped driver.
func (d *Driver) Start(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := d.checkConfig(cfg); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateStopped {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, d.state)
	}
	return d.startLocked(cfg.clone())
}

func (d *Driver) checkConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if f := cfg.filters(); f != nil && len(f) != d.table.Rx() {
		return fmt.Errorf("%w: %d filters for %d receive mailboxes", ErrInvalidConfig, len(f), d.table.Rx())
	}
	return nil
}

func (d *Driver) startLocked(cfg *Config) error {
	b := d.bank
	d.setState(StateStarting)
	d.clock.Enable()

	regs.Set(b, regs.CTRL, regs.CTRLCLKSRC)
	// Leave disable straight into freeze so nothing queued goes out
	// before the buffers are initialized.
	b.Store(regs.MCR, b.Load(regs.MCR)&^regs.MCRMDIS|regs.MCRFRZ|regs.MCRHALT)
	regs.Set(b, regs.MCR, regs.MCRSUPV|regs.MCRMaxMB(d.table.Len()-1))

	regs.Clear(b, regs.CTRL, regs.CTRLTimingMask)
	regs.Set(b, regs.CTRL, cfg.timingBits())

	d.table.InitTransmit()
	regs.Unlock(b)

	regs.Set(b, regs.MCR, cfg.mcrBits())
	regs.Set(b, regs.CTRL, cfg.ctrlBits())

	regs.Set(b, regs.MCR, regs.MCRWRNEN)
	regs.Set(b, regs.CTRL, regs.CTRLInterrupts)

	if err := d.table.ConfigureReceive(cfg.filters(), cfg.mask()); err != nil {
		d.shutdownLocked(cfg)
		d.setState(StateStopped)
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// Stale completions from a previous run must not wake anyone.
	regs.ClearFlags(b, regs.AllMailboxes(b))
	regs.SetMasks(b, regs.AllMailboxes(b))

	regs.Clear(b, regs.MCR, regs.MCRHALT)
	d.config = cfg
	d.setState(StateReady)
	return nil
}

// Stop disables the module. Stopping a stopped driver does nothing.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case StateStopped:
		return nil
	case StateStarting:
		return fmt.Errorf("%w: stop from %s", ErrInvalidState, d.state)
	}
	d.shutdownLocked(d.config)
	d.setState(StateStopped)
	// Blocked callers return ErrNotReady.
	d.txQueue.broadcast()
	d.rxQueue.broadcast()
	return nil
}

func (d *Driver) shutdownLocked(cfg *Config) {
	b := d.bank
	mcr, ctrl := regs.MCRWRNEN, regs.CTRLInterrupts
	if cfg != nil {
		mcr |= cfg.mcrBits()
		ctrl |= cfg.ctrlBits()
	}
	regs.Clear(b, regs.MCR, mcr)
	regs.Clear(b, regs.CTRL, ctrl)
	regs.SetMasks(b, 0)
	regs.Set(b, regs.MCR, regs.MCRMDIS)
	d.clock.Disable()
}

// Recover brings a driver out of the error state by stopping and
// starting it again with the configuration of the last start.
func (d *Driver) Recover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateError {
		return fmt.Errorf("%w: recover from %s", ErrInvalidState, d.state)
	}
	cfg := d.config
	d.shutdownLocked(cfg)
	d.setState(StateStopped)
	if err := d.startLocked(cfg); err != nil {
		return err
	}
	if st := status.Read(d.bank); st.State == status.Off {
		d.setState(StateError)
		return fmt.Errorf("%w: still %s after restart", ErrBusOff, st.State)
	}
	d.txQueue.broadcast()
	d.rxQueue.broadcast()
	return nil
}

// Sleep is accepted and does nothing. The module has no retention mode
// the driver makes use of.
func (d *Driver) Sleep() error {
	d.debugf("sleep ignored")
	return nil
}

// Wakeup is accepted and does nothing.
func (d *Driver) Wakeup() error {
	d.debugf("wakeup ignored")
	return nil
}

func (d *Driver) readyLocked() error {
	switch d.state {
	case StateReady:
		return nil
	case StateError:
		return fmt.Errorf("%w: %w", ErrNotReady, ErrBusOff)
	default:
		return fmt.Errorf("%w: %s", ErrNotReady, d.state)
	}
}

func (d *Driver) IsTransmitReady(sel Mailbox) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == StateReady && d.table.Valid(sel, true) && d.table.TransmitReady(sel)
}

func (d *Driver) IsReceiveReady(sel Mailbox) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == StateReady && d.table.Valid(sel, false) && d.table.ReceiveReady(sel)
}

// Transmit queues f without waiting. With AnyMailbox the lowest free
// transmit mailbox is used and ErrMailboxUnavailable is returned when
// there is none. A specific mailbox is written as is, a frame still
// pending in it is replaced.
func (d *Driver) Transmit(sel Mailbox, f *Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transmitLocked(sel, f)
}

func (d *Driver) transmitLocked(sel Mailbox, f *Frame) error {
	if err := d.readyLocked(); err != nil {
		return err
	}
	if !d.table.Valid(sel, true) {
		return fmt.Errorf("%w: transmit %s", ErrInvalidMailbox, sel)
	}
	i, ok := d.table.ClaimFreeTransmit(sel)
	if !ok {
		return fmt.Errorf("%w: transmit %s", ErrMailboxUnavailable, sel)
	}
	b := d.bank
	if f.Extended {
		regs.WriteID(b, i, regs.ExtIdentifier(f.ID))
	} else {
		regs.WriteID(b, i, regs.StdIdentifier(f.ID))
	}
	regs.WriteData(b, i, f.words())
	cs := regs.ControlStatus(0).
		WithIDE(f.Extended).
		WithRTR(f.RTR).
		WithLength(f.Length).
		WithCode(regs.CodeTxData)
	regs.WriteCS(b, i, cs)
	atomic.AddUint64(&d.stats.sent, 1)
	return nil
}

// Receive copies the oldest unread frame out of a receive mailbox and
// re-arms it. With AnyMailbox the lowest mailbox holding a frame is read
// and ErrMailboxUnavailable is returned when there is none. A specific
// mailbox is read whatever its state.
func (d *Driver) Receive(sel Mailbox, f *Frame) error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.receiveLocked(sel, f)
}

func (d *Driver) receiveLocked(sel Mailbox, f *Frame) error {
	if err := d.readyLocked(); err != nil {
		return err
	}
	if !d.table.Valid(sel, false) {
		return fmt.Errorf("%w: receive %s", ErrInvalidMailbox, sel)
	}
	var i int
	if sel == AnyMailbox {
		var ok bool
		if i, ok = d.table.FindReadyReceive(sel); !ok {
			return fmt.Errorf("%w: receive %s", ErrMailboxUnavailable, sel)
		}
	} else {
		i, _ = d.table.RxIndex(sel)
	}

	b := d.bank
	// The CS read locks the buffer against incoming frames.
	cs := regs.ReadCS(b, i)
	id := regs.ReadID(b, i)
	f.setWords(regs.ReadData(b, i))
	f.Extended = cs.IDE()
	f.RTR = cs.RTR()
	// DLC 9 to 15 still carries eight bytes.
	if n := cs.Length(); n > MaxLength {
		f.Length = MaxLength
	} else {
		f.Length = n
	}
	f.Timestamp = cs.Timestamp()
	if f.Extended {
		f.ID = id.ExtID()
	} else {
		f.ID = id.StdID()
	}
	regs.Unlock(b)
	d.table.Release(i, regs.CodeRxEmpty)

	if cs.Code() == regs.CodeRxOverrun {
		atomic.AddUint64(&d.stats.overruns, 1)
	}
	atomic.AddUint64(&d.stats.received, 1)
	return nil
}

// Status samples the error counters and fault confinement state.
func (d *Driver) Status() status.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return status.Read(d.bank)
}

// Subscribe registers for the flags of one event source. A zero mask
// selects every flag. The subscriber must be closed when done.
func (d *Driver) Subscribe(source EventSource, mask uint64) *Subscriber {
	var es *eventSource
	switch source {
	case EventTxEmpty:
		es = d.txEmpty
	case EventRxFull:
		es = d.rxFull
	default:
		es = d.errs
	}
	sub := newSubscriber(es, mask)
	es.register(sub)
	return sub
}
