package flexcan

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

const (
	MaxStdID  = 0x7FF
	MaxExtID  = 0x1FFFFFFF
	MaxLength = 8
)

// Frame is a classic CAN frame as copied in and out of a message buffer.
type Frame struct {
	ID        uint32
	Extended  bool
	RTR       bool
	Length    uint8
	Data      [8]byte
	Timestamp uint16 // receive only, assigned by the module
}

// NewFrame creates a standard frame and copies up to 8 bytes of data
func NewFrame(identifier uint32, data []byte) Frame {
	f := Frame{ID: identifier}
	f.Length = uint8(copy(f.Data[:], data))
	return f
}

// NewExtendedFrame creates an extended frame and copies up to 8 bytes of data
func NewExtendedFrame(identifier uint32, data []byte) Frame {
	f := NewFrame(identifier, data)
	f.Extended = true
	return f
}

// NewRemoteFrame creates a remote request for length bytes.
func NewRemoteFrame(identifier uint32, extended bool, length uint8) Frame {
	return Frame{ID: identifier, Extended: extended, RTR: true, Length: length}
}

// Validate checks identifier range and length.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrame)
	}
	if f.Length > MaxLength {
		return fmt.Errorf("%w: length %d", ErrInvalidFrame, f.Length)
	}
	if f.Extended && f.ID > MaxExtID || !f.Extended && f.ID > MaxStdID {
		return fmt.Errorf("%w: identifier 0x%X", ErrInvalidFrame, f.ID)
	}
	return nil
}

// Payload returns the used part of Data.
func (f *Frame) Payload() []byte {
	n := f.Length
	if n > MaxLength {
		n = MaxLength
	}
	return f.Data[:n]
}

// words returns the payload as the two big endian data words of a
// message buffer.
func (f *Frame) words() [2]uint32 {
	return [2]uint32{
		binary.BigEndian.Uint32(f.Data[0:4]),
		binary.BigEndian.Uint32(f.Data[4:8]),
	}
}

func (f *Frame) setWords(w [2]uint32) {
	binary.BigEndian.PutUint32(f.Data[0:4], w[0])
	binary.BigEndian.PutUint32(f.Data[4:8], w[1])
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

func (f *Frame) idString() string {
	if f.Extended {
		return fmt.Sprintf("0x%08X", f.ID)
	}
	return fmt.Sprintf("0x%03X", f.ID)
}

func (f *Frame) flagString() string {
	if f.RTR {
		return "<r>"
	}
	if f.Extended {
		return "<x>"
	}
	return "<s>"
}

func hexView(data []byte) string {
	var out strings.Builder
	for i, b := range data {
		out.WriteString(fmt.Sprintf("%02X", b))
		if i != len(data)-1 {
			out.WriteString(" ")
		}
	}
	return out.String()
}

func (f *Frame) String() string {
	var out strings.Builder
	out.WriteString(f.flagString() + " || ")
	out.WriteString(f.idString() + " || ")
	out.WriteString(strconv.Itoa(int(f.Length)) + " || ")
	out.WriteString(fmt.Sprintf("%-23s", hexView(f.Payload())))
	out.WriteString(" || ")
	out.WriteString(onlyPrintable(f.Payload()))
	return out.String()
}

func (f *Frame) ColorString() string {
	var out strings.Builder
	out.WriteString(f.flagString() + " || ")
	out.WriteString(green("%s", f.idString()) + " || ")
	out.WriteString(strconv.Itoa(int(f.Length)) + " || ")
	out.WriteString(red("%-23s", hexView(f.Payload())))
	out.WriteString(" || ")
	out.WriteString(yellow("%s", onlyPrintable(f.Payload())))
	out.WriteString(fmt.Sprintf(" || t=%d", f.Timestamp))
	return out.String()
}

func onlyPrintable(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		if b < 32 || b > 127 {
			out.WriteString("·")
		} else {
			out.WriteByte(b)
		}
	}
	return out.String()
}
