package status_test

import (
	"testing"

	"github.com/roffe/flexcan/pkg/regs"
	"github.com/roffe/flexcan/pkg/sim"
	"github.com/roffe/flexcan/pkg/status"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		raise  uint32
		want   status.Flags
		remain uint32
	}{
		{"nothing", 0, 0, 0},
		{"bus off", regs.ESRBOFFINT, status.BusOff, 0},
		{"transmit warning", regs.ESRTWRNINT, status.LimitWarning, 0},
		{"both warnings", regs.ESRTWRNINT | regs.ESRRWRNINT, status.LimitWarning, 0},
		{"warning and error", regs.ESRRWRNINT | regs.ESRERRINT, status.LimitWarning | status.FramingError, 0},
		{"wake is not decoded", regs.ESRWAKINT, 0, regs.ESRWAKINT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sim.New(32)
			p.RaiseError(tt.raise)
			got := status.Decode(p)
			if got != tt.want {
				t.Errorf("Decode() = %s, want %s", got, tt.want)
			}
			if esr := p.Peek(regs.ESR) & regs.ESRInterrupts; esr != tt.remain {
				t.Errorf("ESR interrupt flags after decode = 0x%X, want 0x%X", esr, tt.remain)
			}
		})
	}
}

func TestDecodeKeepsFaultState(t *testing.T) {
	p := sim.New(32)
	p.RaiseError(regs.ESRBOFFINT)
	if f := status.Decode(p); !f.Has(status.BusOff) || f.Has(status.FramingError) {
		t.Fatalf("Decode() = %s", f)
	}
	if s := status.Read(p); s.State != status.Off {
		t.Errorf("state = %s, want bus off", s.State)
	}
}

func TestFlagsString(t *testing.T) {
	tests := []struct {
		f    status.Flags
		want string
	}{
		{0, "NONE"},
		{status.BusOff, "BUS_OFF"},
		{status.LimitWarning | status.FramingError, "LIMIT_WARNING|FRAMING_ERROR"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRead(t *testing.T) {
	p := sim.New(64)
	p.SetCounters(130, 12)
	s := status.Read(p)
	if s.TxErrors != 130 || s.RxErrors != 12 {
		t.Errorf("counters = %d/%d", s.TxErrors, s.RxErrors)
	}
	if s.State != status.ErrorPassive {
		t.Errorf("state = %s, want error passive", s.State)
	}

	p.SetCounters(0, 0)
	if s := status.Read(p); s.State != status.ErrorActive {
		t.Errorf("state = %s, want error active", s.State)
	}
}
