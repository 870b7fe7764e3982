package instance

import (
	"fmt"
	"unsafe"

	"github.com/roffe/flexcan"
	"github.com/roffe/flexcan/pkg/regs"
	"github.com/roffe/flexcan/pkg/sim"
)

// Mode entry peripheral control registers, one byte per peripheral.
const (
	mePCTLBase uintptr = 0xC3FDC0C0
	// Clock on in RUN mode config 1 and low power config 2.
	pctlStart uint8 = 1 | 2<<3
	pctlStop  uint8 = 0
)

// DefaultPriority is the interrupt priority of every unit line.
const DefaultPriority = 11

// Line offsets from the first vector of a unit. One number between the
// ESR and buffer lines is reserved.
var lineOffsets = map[regs.Vector]int{
	regs.VectorErr:      0,
	regs.VectorBusOff:   1,
	regs.VectorBuf00_03: 3,
	regs.VectorBuf04_07: 4,
	regs.VectorBuf08_11: 5,
	regs.VectorBuf12_15: 6,
	regs.VectorBuf16_31: 7,
	regs.VectorBuf32_63: 8,
}

func irqTable(first, mailboxes int) map[regs.Vector]int {
	out := make(map[regs.Vector]int)
	for v, off := range lineOffsets {
		if v == regs.VectorBuf32_63 && mailboxes <= 32 {
			continue
		}
		out[v] = first + off
	}
	return out
}

// pctlClock gates a unit clock through its PCTL byte.
type pctlClock struct {
	addr uintptr
}

func (c pctlClock) Enable()  { *(*uint8)(unsafe.Pointer(c.addr)) = pctlStart }
func (c pctlClock) Disable() { *(*uint8)(unsafe.Pointer(c.addr)) = pctlStop }

func newHardware(info *Info, cfg *Config) (*Controller, error) {
	bank := regs.Map(info.Base, info.Mailboxes)
	opts := append(driverOptions(info, cfg),
		flexcan.WithClock(pctlClock{addr: mePCTLBase + uintptr(info.PCTL)}))
	d, err := flexcan.New(bank, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}
	return &Controller{Driver: d, Info: info, Bank: bank}, nil
}

func newSimulated(info *Info, cfg *Config) (*Controller, error) {
	p := sim.New(info.Mailboxes)
	d, err := flexcan.New(p, driverOptions(info, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Name, err)
	}
	return &Controller{Driver: d, Info: info, Bank: p, Sim: p}, nil
}

func init() {
	units := []struct {
		base      uintptr
		mailboxes int
		pctl      int
		firstIRQ  int
	}{
		{0xFFFC0000, 64, 16, 65},
		{0xFFFC4000, 64, 17, 85},
		{0xFFFC8000, 64, 18, 105},
		{0xFFFCC000, 32, 19, 173},
		{0xFFFD0000, 32, 20, 182},
		{0xFFFD4000, 32, 21, 191},
	}
	for n, u := range units {
		if err := Register(&Info{
			Name:        fmt.Sprintf("FlexCAN%d", n),
			Description: "on-chip FlexCAN controller",
			Base:        u.base,
			Mailboxes:   u.mailboxes,
			PCTL:        u.pctl,
			IRQ:         irqTable(u.firstIRQ, u.mailboxes),
			Priority:    DefaultPriority,
			New:         newHardware,
		}); err != nil {
			panic(err)
		}
	}
	if err := Register(&Info{
		Name:        "Simulated",
		Description: "software model of a 64 mailbox unit",
		Mailboxes:   64,
		IRQ:         irqTable(0, 64),
		Priority:    DefaultPriority,
		Simulated:   true,
		New:         newSimulated,
	}); err != nil {
		panic(err)
	}
	if err := Register(&Info{
		Name:        "Simulated32",
		Description: "software model of a 32 mailbox unit",
		Mailboxes:   32,
		IRQ:         irqTable(0, 32),
		Priority:    DefaultPriority,
		Simulated:   true,
		New:         newSimulated,
	}); err != nil {
		panic(err)
	}
}
