package status

import (
	"fmt"

	"github.com/roffe/flexcan/pkg/regs"
)

// Confinement is the fault confinement state of the node.
type Confinement uint8

const (
	ErrorActive Confinement = iota
	ErrorPassive
	Off
)

func (c Confinement) String() string {
	switch c {
	case ErrorActive:
		return "error active"
	case ErrorPassive:
		return "error passive"
	case Off:
		return "bus off"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only view of the error state.
type Snapshot struct {
	State       Confinement
	TxErrors    uint8
	RxErrors    uint8
	TxWarning   bool
	RxWarning   bool
	Idle        bool
	Transmitter bool
	BitErrors   uint32
}

// Read samples ECR and ESR. It does not clear interrupt flags, but on
// hardware the ESR read resets the latched bit error flags.
func Read(b regs.Bank) Snapshot {
	ecr := b.Load(regs.ECR)
	esr := b.Load(regs.ESR)
	s := Snapshot{
		TxErrors:    uint8(ecr),
		RxErrors:    uint8(ecr >> 8),
		TxWarning:   esr&regs.ESRTXWRN != 0,
		RxWarning:   esr&regs.ESRRXWRN != 0,
		Idle:        esr&regs.ESRIDLE != 0,
		Transmitter: esr&regs.ESRTXRX != 0,
		BitErrors:   esr & regs.ESRBitErrors,
	}
	switch flt := (esr & regs.ESRFLTCONF) >> 4; {
	case flt == 0:
		s.State = ErrorActive
	case flt == 1:
		s.State = ErrorPassive
	default:
		s.State = Off
	}
	return s
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s tec: %d rec: %d txwrn: %v rxwrn: %v biterr: 0x%04X",
		s.State, s.TxErrors, s.RxErrors, s.TxWarning, s.RxWarning, s.BitErrors)
}
