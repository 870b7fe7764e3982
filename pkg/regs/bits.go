package regs

// MCR bits.
const (
	MCRMDIS    uint32 = 1 << 31
	MCRFRZ     uint32 = 1 << 30
	MCRHALT    uint32 = 1 << 28
	MCRNOTRDY  uint32 = 1 << 27
	MCRSOFTRST uint32 = 1 << 25
	MCRFRZACK  uint32 = 1 << 24
	MCRSUPV    uint32 = 1 << 23
	MCRWRNEN   uint32 = 1 << 21
	MCRLPMACK  uint32 = 1 << 20
	MCRSRXDIS  uint32 = 1 << 17
	MCRBCC     uint32 = 1 << 16
	MCRAEN     uint32 = 1 << 12
	mcrMAXMB   uint32 = 0x3F
)

// MCRMaxMB encodes the number of the last active message buffer.
func MCRMaxMB(last int) uint32 {
	return uint32(last) & mcrMAXMB
}

// CTRL bits.
const (
	CTRLBOFFMSK uint32 = 1 << 15
	CTRLERRMSK  uint32 = 1 << 14
	CTRLCLKSRC  uint32 = 1 << 13
	CTRLLPB     uint32 = 1 << 12
	CTRLTWRNMSK uint32 = 1 << 11
	CTRLRWRNMSK uint32 = 1 << 10
	CTRLSMP     uint32 = 1 << 7
	CTRLBOFFREC uint32 = 1 << 6
	CTRLTSYN    uint32 = 1 << 5
	CTRLLBUF    uint32 = 1 << 4
	CTRLLOM     uint32 = 1 << 3
)

// CTRLPresDiv encodes the prescaler division factor minus one.
func CTRLPresDiv(v uint8) uint32 { return uint32(v) << 24 }

// CTRLRJW encodes the resynchronization jump width minus one.
func CTRLRJW(v uint8) uint32 { return uint32(v&0x3) << 22 }

// CTRLPSeg1 encodes phase segment 1 minus one.
func CTRLPSeg1(v uint8) uint32 { return uint32(v&0x7) << 19 }

// CTRLPSeg2 encodes phase segment 2 minus one.
func CTRLPSeg2(v uint8) uint32 { return uint32(v&0x7) << 16 }

// CTRLPropSeg encodes the propagation segment minus one.
func CTRLPropSeg(v uint8) uint32 { return uint32(v & 0x7) }

// CTRLTimingMask covers every bit timing field of CTRL.
const CTRLTimingMask uint32 = 0xFF<<24 | 0x3<<22 | 0x7<<19 | 0x7<<16 | 0x7

// CTRLInterrupts are the error, bus-off and warning interrupt enables.
const CTRLInterrupts = CTRLBOFFMSK | CTRLERRMSK | CTRLTWRNMSK | CTRLRWRNMSK

// ESR bits.
const (
	ESRTWRNINT uint32 = 1 << 17
	ESRRWRNINT uint32 = 1 << 16
	ESRBIT1ERR uint32 = 1 << 15
	ESRBIT0ERR uint32 = 1 << 14
	ESRACKERR  uint32 = 1 << 13
	ESRCRCERR  uint32 = 1 << 12
	ESRFRMERR  uint32 = 1 << 11
	ESRSTFERR  uint32 = 1 << 10
	ESRTXWRN   uint32 = 1 << 9
	ESRRXWRN   uint32 = 1 << 8
	ESRIDLE    uint32 = 1 << 7
	ESRTXRX    uint32 = 1 << 6
	ESRFLTCONF uint32 = 0x3 << 4
	ESRBOFFINT uint32 = 1 << 2
	ESRERRINT  uint32 = 1 << 1
	ESRWAKINT  uint32 = 1 << 0
)

// ESRInterrupts are the write-1-to-clear interrupt flags of ESR.
const ESRInterrupts = ESRTWRNINT | ESRRWRNINT | ESRBOFFINT | ESRERRINT | ESRWAKINT

// ESRBitErrors are the protocol error flags latched since the last read.
const ESRBitErrors = ESRBIT1ERR | ESRBIT0ERR | ESRACKERR | ESRCRCERR | ESRFRMERR | ESRSTFERR

// GlobalMaskExact compares all 29 identifier bits.
const GlobalMaskExact uint32 = 0x1FFFFFFF
