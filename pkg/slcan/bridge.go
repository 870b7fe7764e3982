package slcan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roffe/flexcan"
	"github.com/roffe/flexcan/pkg/status"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
)

// Device is the driver side of a bridge.
type Device interface {
	Start(*flexcan.Config) error
	Stop() error
	IsTransmitReady(flexcan.Mailbox) bool
	TransmitWait(context.Context, flexcan.Mailbox, *flexcan.Frame) error
	ReceiveWait(context.Context, flexcan.Mailbox) (flexcan.Frame, error)
	Status() status.Snapshot
	Stats() flexcan.Stats
}

// Bitrates maps the S command digits to bit timings for an 8 MHz module
// clock.
var Bitrates = map[byte]*flexcan.BitTiming{
	'0': {Prescaler: 50, PropSeg: 5, PhaseSeg1: 6, PhaseSeg2: 4, JumpWidth: 4},
	'1': {Prescaler: 25, PropSeg: 5, PhaseSeg1: 6, PhaseSeg2: 4, JumpWidth: 4},
	'2': {Prescaler: 10, PropSeg: 5, PhaseSeg1: 6, PhaseSeg2: 4, JumpWidth: 4},
	'3': {Prescaler: 5, PropSeg: 5, PhaseSeg1: 6, PhaseSeg2: 4, JumpWidth: 4},
	'4': {Prescaler: 4, PropSeg: 5, PhaseSeg1: 6, PhaseSeg2: 4, JumpWidth: 4},
	'5': {Prescaler: 2, PropSeg: 5, PhaseSeg1: 6, PhaseSeg2: 4, JumpWidth: 4},
	'6': {Prescaler: 1, PropSeg: 5, PhaseSeg1: 6, PhaseSeg2: 4, JumpWidth: 4},
	'7': {Prescaler: 1, PropSeg: 3, PhaseSeg1: 3, PhaseSeg2: 3, JumpWidth: 3},
	'8': {Prescaler: 1, PropSeg: 2, PhaseSeg1: 3, PhaseSeg2: 2, JumpWidth: 2},
}

const (
	HardwareVersion = 10
	SoftwareVersion = 13
)

type Bridge struct {
	port io.ReadWriter
	dev  Device
	cfg  *flexcan.Config

	wmu sync.Mutex

	open      int32
	overruns  uint64
	Debug     bool
	OnMessage func(string)
}

// New bridges dev to port. cfg is the base configuration used by the O
// command, the S command replaces its timing.
func New(port io.ReadWriter, dev Device, cfg *flexcan.Config) *Bridge {
	if cfg == nil {
		cfg = flexcan.DefaultConfig()
	}
	return &Bridge{
		port:      port,
		dev:       dev,
		cfg:       cfg,
		OnMessage: func(string) {},
	}
}

// OpenPort opens a serial port for use with New.
func OpenPort(name string, baudrate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open com port %q : %v", name, err)
	}
	p.SetReadTimeout(10 * time.Millisecond)
	p.ResetOutputBuffer()
	p.ResetInputBuffer()
	return p, nil
}

// Run pumps commands from the port to the device and received frames
// back until ctx is done or the port fails.
func (b *Bridge) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.recvManager(gctx)
	})
	g.Go(func() error {
		return b.sendManager(gctx)
	})
	err := g.Wait()
	if atomic.CompareAndSwapInt32(&b.open, 1, 0) {
		b.dev.Stop()
	}
	return err
}

func (b *Bridge) write(p []byte) error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if _, err := b.port.Write(p); err != nil {
		return fmt.Errorf("failed to write to com port: %w", err)
	}
	if b.Debug {
		b.OnMessage(">> " + string(bytes.TrimRight(p, "\r")))
	}
	return nil
}

// recvManager reads host lines and executes them.
func (b *Bridge) recvManager(ctx context.Context) error {
	buff := bytes.NewBuffer(nil)
	readBuffer := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := b.port.Read(readBuffer)
		if err == nil && n == 0 {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read com port: %w", err)
		}
		for _, c := range readBuffer[:n] {
			if c != CR {
				buff.WriteByte(c)
				continue
			}
			if buff.Len() == 0 {
				continue
			}
			line := append([]byte(nil), buff.Bytes()...)
			buff.Reset()
			if b.Debug {
				b.OnMessage("<< " + string(line))
			}
			if err := b.write(b.execute(ctx, line)); err != nil {
				return err
			}
		}
	}
}

// execute runs one command and returns the reply.
func (b *Bridge) execute(ctx context.Context, line []byte) []byte {
	ok, fail := []byte{CR}, []byte{BELL}
	switch line[0] {
	case 'S':
		if len(line) != 2 || atomic.LoadInt32(&b.open) == 1 {
			return fail
		}
		bt, found := Bitrates[line[1]]
		if !found {
			return fail
		}
		t := *bt
		b.cfg.Timing = &t
		return ok
	case 'O', 'L':
		if atomic.LoadInt32(&b.open) == 1 {
			return fail
		}
		cfg := *b.cfg
		cfg.ListenOnly = line[0] == 'L'
		if err := b.dev.Start(&cfg); err != nil {
			b.OnMessage(fmt.Sprintf("open failed: %v", err))
			return fail
		}
		atomic.StoreInt32(&b.open, 1)
		return ok
	case 'C':
		if !atomic.CompareAndSwapInt32(&b.open, 1, 0) {
			return fail
		}
		if err := b.dev.Stop(); err != nil {
			return fail
		}
		return ok
	case 'V':
		return Version(HardwareVersion, SoftwareVersion)
	case 'N':
		return []byte("NFCAN\r")
	case 'F':
		if atomic.LoadInt32(&b.open) == 0 {
			return fail
		}
		txFull := !b.dev.IsTransmitReady(flexcan.AnyMailbox)
		n := b.dev.Stats().Overruns
		overrun := atomic.SwapUint64(&b.overruns, n) != n
		return []byte(fmt.Sprintf("F%02X\r", StatusByte(b.dev.Status(), txFull, overrun)))
	case 't', 'T', 'r', 'R':
		if atomic.LoadInt32(&b.open) == 0 {
			return fail
		}
		f, err := Decode(line)
		if err != nil {
			b.OnMessage(fmt.Sprintf("failed to decode frame: %v", err))
			return fail
		}
		tctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		if err := b.dev.TransmitWait(tctx, flexcan.AnyMailbox, &f); err != nil {
			b.OnMessage(fmt.Sprintf("failed to send frame: %v", err))
			return fail
		}
		if line[0] == 't' || line[0] == 'r' {
			return []byte{'z', CR}
		}
		return []byte{'Z', CR}
	default:
		return fail
	}
}

// sendManager forwards received frames to the host while the channel is
// open.
func (b *Bridge) sendManager(ctx context.Context) error {
	for {
		if atomic.LoadInt32(&b.open) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		f, err := b.dev.ReceiveWait(ctx, flexcan.AnyMailbox)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, flexcan.ErrNotReady) {
				// Closed or bus off, poll until reopened.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(10 * time.Millisecond):
				}
				continue
			}
			b.OnMessage(fmt.Sprintf("receive failed: %v", err))
			continue
		}
		if err := b.write(Encode(&f)); err != nil {
			return err
		}
	}
}
