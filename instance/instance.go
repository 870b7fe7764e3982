// Package instance keeps the table of FlexCAN units a platform carries
// and opens drivers for them by name.
package instance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/roffe/flexcan"
	"github.com/roffe/flexcan/pkg/regs"
	"github.com/roffe/flexcan/pkg/sim"
)

var ErrUnknownInstance = errors.New("unknown instance")

// Info describes one controller unit.
type Info struct {
	Name        string
	Description string
	Base        uintptr
	Mailboxes   int
	// PCTL is the mode entry peripheral control slot gating the clock.
	PCTL int
	// IRQ maps each interrupt line to its vector number.
	IRQ      map[regs.Vector]int
	Priority int
	// Simulated units are backed by pkg/sim instead of memory.
	Simulated bool
	New       func(*Info, *Config) (*Controller, error)
}

func (i *Info) String() string {
	if i.Simulated {
		return fmt.Sprintf("%s | %s, %d mailboxes", i.Name, i.Description, i.Mailboxes)
	}
	return fmt.Sprintf("%s | %s, base: 0x%08X, %d mailboxes, priority: %d", i.Name, i.Description, i.Base, i.Mailboxes, i.Priority)
}

// Vectors returns the lines of the unit ordered by vector number.
func (i *Info) Vectors() []regs.Vector {
	var out []regs.Vector
	for v := range i.IRQ {
		out = append(out, v)
	}
	sort.Slice(out, func(a, b int) bool { return i.IRQ[out[a]] < i.IRQ[out[b]] })
	return out
}

// Line returns the interrupt line with vector number n.
func (i *Info) Line(n int) (regs.Vector, bool) {
	for v, num := range i.IRQ {
		if num == n {
			return v, true
		}
	}
	return 0, false
}

type Config struct {
	RxMailboxes int
	Debug       bool
	OnMessage   func(string)
}

// Controller is an opened unit.
type Controller struct {
	*flexcan.Driver
	Info *Info
	Bank regs.Bank
	// Sim is set for simulated units.
	Sim *sim.Peripheral
}

// Run delivers interrupts to the driver until ctx is done. Hardware
// units get their interrupts from the platform glue, Run only waits.
func (c *Controller) Run(ctx context.Context) error {
	if c.Sim != nil {
		return c.Sim.Run(ctx, c.Serve)
	}
	<-ctx.Done()
	return ctx.Err()
}

// Interrupt routes vector number n of the unit to the driver.
func (c *Controller) Interrupt(n int) error {
	v, ok := c.Info.Line(n)
	if !ok {
		return fmt.Errorf("%s: vector %d not routed", c.Info.Name, n)
	}
	c.Serve(v)
	return nil
}

var (
	instanceMap = make(map[string]*Info)
	mu          sync.RWMutex
)

// Open creates a controller for the named unit.
func Open(name string, cfg *Config) (*Controller, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(msg string) {
			_, file, no, ok := runtime.Caller(1)
			if ok {
				fmt.Printf("%s#%d %v\n", filepath.Base(file), no, msg)
			} else {
				log.Println(msg)
			}
		}
	}
	info, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return info.New(info, cfg)
}

func Register(info *Info) error {
	mu.Lock()
	defer mu.Unlock()
	if _, found := instanceMap[info.Name]; !found {
		instanceMap[info.Name] = info
		return nil
	}
	return fmt.Errorf("instance %s already registered", info.Name)
}

func Lookup(name string) (*Info, error) {
	mu.RLock()
	defer mu.RUnlock()
	for n, info := range instanceMap {
		if strings.EqualFold(n, name) {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownInstance, name)
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	var out []string
	for name := range instanceMap {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func List() []Info {
	var out []Info
	for _, name := range Names() {
		info, _ := Lookup(name)
		out = append(out, *info)
	}
	return out
}

func driverOptions(info *Info, cfg *Config) []flexcan.Option {
	opts := []flexcan.Option{
		flexcan.WithName(info.Name),
		flexcan.WithDebug(cfg.Debug),
		flexcan.WithOnMessage(cfg.OnMessage),
	}
	if cfg.RxMailboxes > 0 {
		opts = append(opts, flexcan.WithRxMailboxes(cfg.RxMailboxes))
	}
	return opts
}
