package slcan

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/roffe/flexcan"
	"github.com/roffe/flexcan/pkg/sim"
	"github.com/roffe/flexcan/pkg/status"
	"golang.org/x/sync/errgroup"
)

func TestCodec(t *testing.T) {
	tests := []struct {
		name string
		line string
		want flexcan.Frame
	}{
		{"standard", "t1232DEAD", flexcan.NewFrame(0x123, []byte{0xDE, 0xAD})},
		{"standard empty", "t7FF0", flexcan.NewFrame(0x7FF, nil)},
		{"extended", "T1ABCDE008DEADBEEF01020304", flexcan.NewExtendedFrame(0x1ABCDE00, []byte{0xDE, 0xAD, 0xBE, 0xEF, 1, 2, 3, 4})},
		{"remote", "r0014", flexcan.NewRemoteFrame(0x001, false, 4)},
		{"extended remote", "R000001008", flexcan.NewRemoteFrame(0x100, true, 8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.line))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %s, want %s", got.String(), tt.want.String())
			}
			if enc := Encode(&got); string(enc) != tt.line+"\r" {
				t.Errorf("Encode() = %q, want %q", enc, tt.line+"\r")
			}
		})
	}
}

func TestEncodeLongDLC(t *testing.T) {
	f := flexcan.NewFrame(0x123, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	f.Length = 12
	if got := string(Encode(&f)); got != "t12380102030405060708\r" {
		t.Errorf("Encode() = %q", got)
	}
	f.RTR = true
	if got := string(Encode(&f)); got != "r1238\r" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"empty", "", ErrShortLine},
		{"unknown type", "x1230", ErrUnknownType},
		{"short id", "t12", ErrShortLine},
		{"missing data", "t1232DE", ErrShortLine},
		{"length 9", "t1239", flexcan.ErrInvalidFrame},
		{"standard id too wide", "tFFF0", flexcan.ErrInvalidFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.line)); !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := Decode([]byte("t123zDEAD")); err == nil {
		t.Error("Decode() accepted a bad length digit")
	}
	if _, err := Decode([]byte("t1231ZZ")); err == nil {
		t.Error("Decode() accepted bad data")
	}
}

func TestVersion(t *testing.T) {
	v := Version(HardwareVersion, SoftwareVersion)
	if string(v) != "V1013\r" {
		t.Fatalf("Version() = %q", v)
	}
	hw, sw, err := ParseVersion(bytes.TrimRight(v, "\r"))
	if err != nil || hw != HardwareVersion || sw != SoftwareVersion {
		t.Errorf("ParseVersion() = %d, %d, %v", hw, sw, err)
	}
	if _, _, err := ParseVersion([]byte("V10")); err == nil {
		t.Error("ParseVersion() accepted a short line")
	}
}

func TestStatusByte(t *testing.T) {
	tests := []struct {
		name    string
		s       status.Snapshot
		txFull  bool
		overrun bool
		want    uint8
	}{
		{"idle", status.Snapshot{}, false, false, 0},
		{"busy", status.Snapshot{}, true, true, StatusTxFull | StatusOverrun},
		{"warning", status.Snapshot{RxWarning: true}, false, false, StatusWarning},
		{"passive", status.Snapshot{State: status.ErrorPassive}, false, false, StatusErrorPassive},
		{"bus off", status.Snapshot{State: status.Off, TxWarning: true}, false, false, StatusBusError | StatusWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusByte(tt.s, tt.txFull, tt.overrun); got != tt.want {
				t.Errorf("StatusByte() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

// replies splits host side output into CR or BELL terminated replies.
func replies(r io.Reader) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		var line []byte
		buf := make([]byte, 64)
		for {
			n, err := r.Read(buf)
			for _, c := range buf[:n] {
				line = append(line, c)
				if c == CR || c == BELL {
					out <- string(line)
					line = nil
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

func TestBridge(t *testing.T) {
	p := sim.New(32)
	d, err := flexcan.New(p, flexcan.WithOnMessage(func(msg string) { t.Log(msg) }))
	if err != nil {
		t.Fatal(err)
	}
	host, port := net.Pipe()
	cfg := flexcan.DefaultConfig()
	cfg.LoopBack = true
	b := New(port, d, cfg)
	b.Debug = true
	b.OnMessage = func(msg string) { t.Log(msg) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Run(gctx, d.Serve)
	})
	g.Go(func() error {
		return b.Run(gctx)
	})
	in := replies(host)

	next := func() string {
		t.Helper()
		select {
		case r := <-in:
			return r
		case <-ctx.Done():
			t.Fatal("no reply from bridge")
			return ""
		}
	}
	command := func(cmd string, want ...string) {
		t.Helper()
		if _, err := host.Write([]byte(cmd + "\r")); err != nil {
			t.Fatal(err)
		}
		got := make(map[string]int)
		for range want {
			got[next()]++
		}
		for _, w := range want {
			if got[w] == 0 {
				t.Errorf("%s: replies %v, missing %q", cmd, got, w)
			}
			got[w]--
		}
	}

	command("V", "V1013\r")
	command("N", "NFCAN\r")
	command("t1230", "\a")
	command("S5", "\r")
	command("S9", "\a")
	command("O", "\r")
	command("S4", "\a")
	command("O", "\a")
	command("t1232DEAD", "z\r", "t1232DEAD\r")
	command("T0000ABCD1FF", "Z\r", "T0000ABCD1FF\r")
	command("F", "F00\r")
	command("C", "\r")
	command("C", "\a")
	command("?", "\a")

	if d.State() != flexcan.StateStopped {
		t.Errorf("state after close = %s", d.State())
	}
	if bt := d.Config().Timing; bt.Prescaler != 2 || bt.Bitrate(8000000) != 250000 {
		t.Errorf("timing after S5 = %+v", bt)
	}

	cancel()
	host.Close()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v", err)
	}
}
