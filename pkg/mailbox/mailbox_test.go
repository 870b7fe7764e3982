package mailbox_test

import (
	"errors"
	"testing"

	"github.com/roffe/flexcan/pkg/mailbox"
	"github.com/roffe/flexcan/pkg/regs"
	"github.com/roffe/flexcan/pkg/sim"
)

func newTable(t *testing.T, n, rx int) (*mailbox.Table, *sim.Peripheral) {
	t.Helper()
	p := sim.New(n)
	tbl, err := mailbox.New(p, rx)
	if err != nil {
		t.Fatalf("mailbox.New() error: %v", err)
	}
	tbl.InitTransmit()
	if err := tbl.ConfigureReceive(nil, 0); err != nil {
		t.Fatalf("ConfigureReceive() error: %v", err)
	}
	return tbl, p
}

func TestNewPartition(t *testing.T) {
	tests := []struct {
		name    string
		n, rx   int
		wantErr bool
	}{
		{"32 default", 32, mailbox.DefaultRxMailboxes, false},
		{"64 default", 64, mailbox.DefaultRxMailboxes, false},
		{"one receive", 32, 1, false},
		{"one transmit", 32, 31, false},
		{"no receive", 32, 0, true},
		{"no transmit", 32, 32, true},
		{"odd size", 16, 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := mailbox.New(sim.New(tt.n), tt.rx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, mailbox.ErrPartition) {
					t.Errorf("error %v is not ErrPartition", err)
				}
				return
			}
			if tbl.Rx()+tbl.Tx() != tt.n {
				t.Errorf("Rx()+Tx() = %d, want %d", tbl.Rx()+tbl.Tx(), tt.n)
			}
			if tbl.RxMask()|tbl.TxMask() != regs.AllMailboxes(sim.New(tt.n)) || tbl.RxMask()&tbl.TxMask() != 0 {
				t.Errorf("masks overlap or leave gaps: rx 0x%X tx 0x%X", tbl.RxMask(), tbl.TxMask())
			}
		})
	}
}

func TestSelectorMapping(t *testing.T) {
	tbl, _ := newTable(t, 32, 8)
	if i, err := tbl.RxIndex(1); err != nil || i != 0 {
		t.Errorf("RxIndex(1) = %d, %v", i, err)
	}
	if i, err := tbl.RxIndex(8); err != nil || i != 7 {
		t.Errorf("RxIndex(8) = %d, %v", i, err)
	}
	if i, err := tbl.TxIndex(1); err != nil || i != 8 {
		t.Errorf("TxIndex(1) = %d, %v", i, err)
	}
	if i, err := tbl.TxIndex(24); err != nil || i != 31 {
		t.Errorf("TxIndex(24) = %d, %v", i, err)
	}
	if _, err := tbl.RxIndex(9); !errors.Is(err, mailbox.ErrOutOfRange) {
		t.Errorf("RxIndex(9) error = %v", err)
	}
	if _, err := tbl.TxIndex(mailbox.Any); !errors.Is(err, mailbox.ErrOutOfRange) {
		t.Errorf("TxIndex(Any) error = %v", err)
	}
	if s := tbl.Selector(9); s != 2 {
		t.Errorf("Selector(9) = %s", s)
	}
}

func TestClaimFreeTransmitLowestFirst(t *testing.T) {
	tbl, p := newTable(t, 32, 8)
	for i := 8; i < 32; i++ {
		p.Force(i, regs.CodeTxData)
	}
	if tbl.TransmitReady(mailbox.Any) {
		t.Fatal("TransmitReady(Any) with every mailbox busy")
	}
	if _, ok := tbl.ClaimFreeTransmit(mailbox.Any); ok {
		t.Fatal("ClaimFreeTransmit(Any) succeeded with every mailbox busy")
	}

	// [busy, busy, ready, ready, busy...]
	p.Force(10, regs.CodeTxInactive)
	p.Force(11, regs.CodeTxInactive)
	i, ok := tbl.ClaimFreeTransmit(mailbox.Any)
	if !ok || i != 10 {
		t.Errorf("ClaimFreeTransmit(Any) = %d, %v, want 10", i, ok)
	}
	if !tbl.TransmitReady(3) || tbl.TransmitReady(1) {
		t.Error("TransmitReady of a specific mailbox does not follow its code")
	}
	// A specific selector is handed out whatever its state.
	if i, ok := tbl.ClaimFreeTransmit(1); !ok || i != 8 {
		t.Errorf("ClaimFreeTransmit(1) = %d, %v", i, ok)
	}
}

func TestFindReadyReceive(t *testing.T) {
	tbl, p := newTable(t, 32, 8)
	if tbl.ReceiveReady(mailbox.Any) {
		t.Fatal("ReceiveReady(Any) on empty mailboxes")
	}
	p.Force(0, regs.CodeRxFull)
	p.Force(2, regs.CodeRxOverrun)

	reads := p.TimerReads()
	i, ok := tbl.FindReadyReceive(mailbox.Any)
	if !ok || i != 0 {
		t.Errorf("FindReadyReceive(Any) = %d, %v, want 0", i, ok)
	}
	if p.Locked() != -1 || p.TimerReads() != reads+1 {
		t.Error("scan did not end with an unlock read")
	}

	tbl.Release(0, regs.CodeRxEmpty)
	if i, ok := tbl.FindReadyReceive(mailbox.Any); !ok || i != 2 {
		t.Errorf("FindReadyReceive(Any) = %d, %v, want 2", i, ok)
	}
	if !tbl.ReceiveReady(3) || tbl.ReceiveReady(2) {
		t.Error("ReceiveReady of a specific mailbox does not follow its code")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	tbl, p := newTable(t, 32, 8)
	p.Force(4, regs.CodeRxFull)
	tbl.Release(4, regs.CodeRxEmpty)
	tbl.Release(4, regs.CodeRxEmpty)
	if c := p.Code(4); c != regs.CodeRxEmpty {
		t.Errorf("code = %s, want RX_EMPTY", c)
	}
	if p.Locked() != -1 {
		t.Error("release left the buffer locked")
	}
}

func TestConfigureReceive(t *testing.T) {
	t.Run("accept all", func(t *testing.T) {
		_, p := newTable(t, 32, 4)
		for i := 0; i < 4; i++ {
			if c := p.Code(i); c != regs.CodeRxEmpty {
				t.Errorf("buffer %d code = %s", i, c)
			}
		}
		if p.Peek(regs.RXGMASK) != 0 || p.Peek(regs.RX14MASK) != 0 || p.Peek(regs.RX15MASK) != 0 {
			t.Error("global masks not cleared")
		}
	})

	t.Run("filtered", func(t *testing.T) {
		tbl, p := newTable(t, 32, 2)
		err := tbl.ConfigureReceive([]mailbox.Filter{
			{ID: 0x123},
			{ID: 0x1ABCDE, Extended: true},
		}, regs.GlobalMaskExact)
		if err != nil {
			t.Fatal(err)
		}
		if id := regs.Identifier(p.PeekMB(0, regs.ID)); id.StdID() != 0x123 {
			t.Errorf("buffer 0 id = 0x%X", id.StdID())
		}
		if cs := regs.ControlStatus(p.PeekMB(1, regs.CS)); !cs.IDE() || cs.Code() != regs.CodeRxEmpty {
			t.Errorf("buffer 1 cs = 0x%08X", cs.Raw())
		}
		if p.Peek(regs.RXGMASK) != regs.GlobalMaskExact {
			t.Errorf("RXGMASK = 0x%08X", p.Peek(regs.RXGMASK))
		}
		if p.Locked() != -1 {
			t.Error("configuration left a buffer locked")
		}
	})

	t.Run("wrong count", func(t *testing.T) {
		tbl, _ := newTable(t, 32, 8)
		err := tbl.ConfigureReceive([]mailbox.Filter{{ID: 1}}, 0)
		if !errors.Is(err, mailbox.ErrFilterCount) {
			t.Errorf("error = %v, want ErrFilterCount", err)
		}
	})

	t.Run("identifier range", func(t *testing.T) {
		tbl, _ := newTable(t, 32, 1)
		err := tbl.ConfigureReceive([]mailbox.Filter{{ID: 0x800}}, 0)
		if !errors.Is(err, mailbox.ErrInvalidFilter) {
			t.Errorf("error = %v, want ErrInvalidFilter", err)
		}
	})
}
