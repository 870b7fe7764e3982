package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/roffe/flexcan"
	"github.com/roffe/flexcan/cmd/flexcantool/pkg/ui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(monitorCmd)
}

var filterInput = &ui.Input{
	Name:      "filter",
	Title:     "Filter",
	X:         0,
	Y:         13,
	W:         30,
	MaxLength: 40,
	Accept:    ui.HexList,
}

type monitor struct {
	d      *flexcan.Driver
	frames uint64
	lines  int64

	mu      sync.Mutex
	filters []uint32
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "watch frames, mailboxes and error events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := initCAN(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		g, err := gocui.NewGui(gocui.OutputNormal)
		if err != nil {
			return err
		}
		g.Cursor = true
		defer g.Close()

		m := &monitor{d: s.Driver}
		g.SetManagerFunc(m.layout)
		if err := m.keybindings(g); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		go m.frameParser(ctx, g)
		go m.eventParser(ctx, g)
		go m.refresh(ctx, g)

		if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
			return err
		}
		return nil
	},
}

func (m *monitor) accept(id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.filters) == 0 {
		return true
	}
	for _, f := range m.filters {
		if f == id {
			return true
		}
	}
	return false
}

func (m *monitor) frameParser(ctx context.Context, g *gocui.Gui) {
	for {
		f, err := m.d.ReceiveWait(ctx, flexcan.AnyMailbox)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, flexcan.ErrNotReady) {
				time.Sleep(50 * time.Millisecond)
			}
			continue
		}
		atomic.AddUint64(&m.frames, 1)
		if !m.accept(f.ID) || atomic.LoadInt64(&m.lines) > 50000 {
			continue
		}
		ts := time.Now().Format("15:04:05.00000")
		g.Update(func(g *gocui.Gui) error {
			v, err := g.View("frames")
			if err != nil {
				return err
			}
			fmt.Fprintf(v, " %s || %s\n", ts, f.String())
			atomic.AddInt64(&m.lines, 1)
			return nil
		})
	}
}

func (m *monitor) eventParser(ctx context.Context, g *gocui.Gui) {
	sub := m.d.Subscribe(flexcan.EventError, 0)
	defer sub.Close()
	for {
		ev, err := sub.Event(ctx)
		if err != nil {
			return
		}
		ts := time.Now().Format("15:04:05")
		g.Update(func(g *gocui.Gui) error {
			v, err := g.View("errors")
			if err != nil {
				return err
			}
			fmt.Fprintf(v, "%s %s\n", ts, ev)
			return nil
		})
	}
}

func (m *monitor) refresh(ctx context.Context, g *gocui.Gui) {
	t := time.NewTicker(250 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		g.Update(m.updateInfo)
	}
}

func (m *monitor) updateInfo(g *gocui.Gui) error {
	info, err := g.View("info")
	if err != nil {
		return err
	}
	info.Clear()
	st := m.d.Stats()
	fmt.Fprintf(info, "state: %s\n", m.d.State())
	fmt.Fprintf(info, "frames: %d\n", atomic.LoadUint64(&m.frames))
	fmt.Fprintf(info, "in buffer: %d\n", atomic.LoadInt64(&m.lines))
	fmt.Fprintf(info, "sent: %d\n", st.Sent)
	fmt.Fprintf(info, "overruns: %d\n", st.Overruns)
	fmt.Fprintf(info, "bus off: %d\n", st.BusOff)
	fmt.Fprintln(info, m.d.Status().State)

	mbs, err := g.View("mailboxes")
	if err != nil {
		return err
	}
	mbs.Clear()
	t := m.d.Table()
	for i, c := range t.Codes() {
		role := "rx"
		if i >= t.Rx() {
			role = "tx"
		}
		fmt.Fprintf(mbs, "%2d %s %-5s %s\n", i, role, t.Selector(i), c)
	}
	return nil
}

func (m *monitor) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("info", 0, 0, 30, 12); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Info"
	}
	if err := filterInput.Layout(g); err != nil {
		return err
	}
	if v, err := g.SetView("help", 0, 16, 30, 23); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Wrap = true
		v.Title = "Help"
		fmt.Fprintln(v, "<Q, Ctrl-C> Quit")
		fmt.Fprintln(v, "<Space> Autoscroll")
		fmt.Fprintln(v, "<Ctrl-F> Set filter")
		fmt.Fprintln(v, "<C> Clear frames")
	}
	if v, err := g.SetView("errors", 0, 24, 30, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Autoscroll = true
		v.Wrap = true
		v.Title = "Errors"
	}
	if v, err := g.SetView("mailboxes", maxX-28, 0, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Mailboxes"
	}
	if v, err := g.SetView("frames", 31, 0, maxX-29, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.SelFgColor = gocui.ColorCyan
		v.Autoscroll = true
		v.Highlight = true
		v.Title = "Frames"
		if _, err := g.SetCurrentView("frames"); err != nil {
			return err
		}
	}
	return nil
}

func (m *monitor) setFilter(g *gocui.Gui, v *gocui.View) error {
	buff := strings.TrimSpace(v.Buffer())
	var filters []uint32
	if buff != "" {
		for _, p := range strings.Split(buff, ",") {
			id, err := parseID(p)
			if err != nil {
				if ev, errr := g.View("errors"); errr == nil {
					fmt.Fprintln(ev, err)
				}
				return nil
			}
			filters = append(filters, id)
		}
	}
	m.mu.Lock()
	m.filters = filters
	m.mu.Unlock()
	_, err := g.SetCurrentView("frames")
	return err
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

func (m *monitor) keybindings(g *gocui.Gui) error {
	if err := g.SetKeybinding("", 'q', gocui.ModNone, quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", gocui.KeyCtrlF, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			_, err := g.SetCurrentView("filter")
			return err
		}); err != nil {
		return err
	}
	if err := g.SetKeybinding("filter", gocui.KeyEnter, gocui.ModNone, m.setFilter); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", 'c', gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			atomic.StoreInt64(&m.lines, 0)
			v.Autoscroll = true
			v.Clear()
			return v.SetOrigin(0, 0)
		}); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", gocui.KeySpace, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.Autoscroll = !v.Autoscroll
			return nil
		}); err != nil {
		return err
	}
	if err := g.SetKeybinding("frames", gocui.KeyArrowUp, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.MoveCursor(0, -1, false)
			return nil
		}); err != nil {
		return err
	}
	return g.SetKeybinding("frames", gocui.KeyArrowDown, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.MoveCursor(0, 1, false)
			return nil
		})
}
