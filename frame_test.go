package flexcan

import (
	"errors"
	"strings"
	"testing"
)

func TestFrameValidate(t *testing.T) {
	tests := []struct {
		name    string
		f       Frame
		wantErr bool
	}{
		{"standard max", Frame{ID: MaxStdID, Length: 8}, false},
		{"standard too wide", Frame{ID: MaxStdID + 1}, true},
		{"extended max", Frame{ID: MaxExtID, Extended: true}, false},
		{"extended too wide", Frame{ID: MaxExtID + 1, Extended: true}, true},
		{"length 9", Frame{ID: 1, Length: 9}, true},
		{"remote", NewRemoteFrame(0x10, false, 8), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("error %v is not ErrInvalidFrame", err)
			}
		})
	}
}

func TestNewFrameTruncates(t *testing.T) {
	f := NewFrame(0x1, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if f.Length != 8 || f.Data[7] != 8 {
		t.Errorf("NewFrame() = %s", f.String())
	}
	ext := NewExtendedFrame(0x1, []byte{1, 2})
	if got := len(ext.Payload()); got != 2 {
		t.Errorf("Payload() length = %d", got)
	}
}

func TestFrameWordsBigEndian(t *testing.T) {
	f := NewFrame(0x1, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	w := f.words()
	if w[0] != 0x01020304 || w[1] != 0x05060708 {
		t.Errorf("words() = 0x%08X 0x%08X", w[0], w[1])
	}
	var g Frame
	g.setWords(w)
	if g.Data != f.Data {
		t.Errorf("setWords() = % X", g.Data)
	}
}

func TestFrameString(t *testing.T) {
	f := NewFrame(0x123, []byte("AB\x01"))
	s := f.String()
	for _, want := range []string{"<s>", "0x123", "41 42 01", "AB·"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
	x := NewExtendedFrame(0x1ABCDE, nil)
	if s := x.String(); !strings.Contains(s, "<x>") || !strings.Contains(s, "0x001ABCDE") {
		t.Errorf("String() = %q", s)
	}
}

func TestUnrecoverable(t *testing.T) {
	err := Unrecoverable(ErrBusOff)
	if IsRecoverable(err) {
		t.Error("IsRecoverable() = true for wrapped error")
	}
	if !errors.Is(err, ErrBusOff) {
		t.Error("Unrecoverable hides the cause")
	}
	if !IsRecoverable(ErrBusOff) {
		t.Error("IsRecoverable() = false for plain error")
	}
}
