// Package slcan speaks the Lawicel serial line CAN protocol on behalf of
// a FlexCAN driver, so host tools built for SLCAN adapters can use it.
package slcan

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/albenik/bcd"
	"github.com/roffe/flexcan"
	"github.com/roffe/flexcan/pkg/status"
)

const (
	CR   = 0x0D
	BELL = 0x07
)

var (
	ErrShortLine   = errors.New("line too short")
	ErrUnknownType = errors.New("unknown frame type")
)

// Encode renders f as a t, T, r or R line including the trailing CR.
func Encode(f *flexcan.Frame) []byte {
	var b bytes.Buffer
	switch {
	case f.Extended && f.RTR:
		b.WriteByte('R')
	case f.Extended:
		b.WriteByte('T')
	case f.RTR:
		b.WriteByte('r')
	default:
		b.WriteByte('t')
	}
	if f.Extended {
		fmt.Fprintf(&b, "%08X", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X", f.ID)
	}
	payload := f.Payload()
	b.WriteByte(nybbleToHex(uint8(len(payload))))
	if !f.RTR {
		b.WriteString(hexUpper(payload))
	}
	b.WriteByte(CR)
	return b.Bytes()
}

// Decode parses one frame line without its CR.
func Decode(line []byte) (flexcan.Frame, error) {
	var f flexcan.Frame
	if len(line) == 0 {
		return f, ErrShortLine
	}
	idLen := 3
	switch line[0] {
	case 't':
	case 'T':
		f.Extended = true
		idLen = 8
	case 'r':
		f.RTR = true
	case 'R':
		f.Extended = true
		f.RTR = true
		idLen = 8
	default:
		return f, fmt.Errorf("%w: %q", ErrUnknownType, line[0])
	}
	if len(line) < 2+idLen {
		return f, ErrShortLine
	}
	id, err := strconv.ParseUint(string(line[1:1+idLen]), 16, 32)
	if err != nil {
		return f, fmt.Errorf("failed to decode identifier: %v", err)
	}
	f.ID = uint32(id)
	n, err := strconv.ParseUint(string(line[1+idLen:2+idLen]), 16, 8)
	if err != nil {
		return f, fmt.Errorf("failed to decode message length: %v", err)
	}
	f.Length = uint8(n)
	if err := f.Validate(); err != nil {
		return f, err
	}
	if f.RTR {
		return f, nil
	}
	body := line[2+idLen:]
	if len(body) < int(f.Length)*2 {
		return f, fmt.Errorf("%w: want %d data bytes", ErrShortLine, f.Length)
	}
	if _, err := hex.Decode(f.Data[:], body[:int(f.Length)*2]); err != nil {
		return f, fmt.Errorf("failed to decode frame body: %v", err)
	}
	return f, nil
}

func nybbleToHex(n uint8) byte {
	n &= 0x0F
	if n < 10 {
		return '0' + n
	}
	return 'A' + n - 10
}

func hexUpper(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = nybbleToHex(c >> 4)
		out[i*2+1] = nybbleToHex(c)
	}
	return string(out)
}

/*
Status flags byte of the F command:

	bit 0 receive queue full
	bit 1 transmit queue full
	bit 2 error warning
	bit 3 data overrun
	bit 5 error passive
	bit 6 arbitration lost
	bit 7 bus error
*/
const (
	StatusRxFull       = 1 << 0
	StatusTxFull       = 1 << 1
	StatusWarning      = 1 << 2
	StatusOverrun      = 1 << 3
	StatusErrorPassive = 1 << 5
	StatusArbLost      = 1 << 6
	StatusBusError     = 1 << 7
)

// StatusByte folds a driver status into the F reply flags.
func StatusByte(s status.Snapshot, txFull, overrun bool) uint8 {
	var b uint8
	if txFull {
		b |= StatusTxFull
	}
	if overrun {
		b |= StatusOverrun
	}
	if s.TxWarning || s.RxWarning {
		b |= StatusWarning
	}
	switch s.State {
	case status.ErrorPassive:
		b |= StatusErrorPassive
	case status.Off:
		b |= StatusBusError
	}
	return b
}

// Version renders the V reply. Hardware and software versions are
// given as two decimal digits each, e.g. 10 for 1.0.
func Version(hw, sw uint8) []byte {
	v := bcd.FromUint16(uint16(hw)*100 + uint16(sw))
	return []byte("V" + hexUpper(v) + "\r")
}

// ParseVersion is the reverse of Version.
func ParseVersion(line []byte) (hw, sw uint8, err error) {
	if len(line) != 5 || line[0] != 'V' {
		return 0, 0, fmt.Errorf("%w: %q", ErrShortLine, line)
	}
	raw, err := hex.DecodeString(string(line[1:]))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode version: %v", err)
	}
	v := bcd.ToUint16(raw)
	return uint8(v / 100), uint8(v % 100), nil
}
