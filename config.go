package flexcan

import (
	"fmt"
	"os"

	"github.com/roffe/flexcan/pkg/mailbox"
	"github.com/roffe/flexcan/pkg/regs"
	"gopkg.in/yaml.v2"
)

// Filter is the acceptance identifier of one receive mailbox.
type Filter = mailbox.Filter

// BitTiming holds the bit timing segments in time quanta and the
// prescaler division factor. The register fields store each value minus
// one.
type BitTiming struct {
	Prescaler uint16 `yaml:"prescaler"`
	PropSeg   uint8  `yaml:"prop_seg"`
	PhaseSeg1 uint8  `yaml:"phase_seg1"`
	PhaseSeg2 uint8  `yaml:"phase_seg2"`
	JumpWidth uint8  `yaml:"jump_width"`
}

func (bt *BitTiming) Validate() error {
	switch {
	case bt.Prescaler < 1 || bt.Prescaler > 256:
		return fmt.Errorf("%w: prescaler %d not in 1..256", ErrInvalidConfig, bt.Prescaler)
	case bt.PropSeg < 1 || bt.PropSeg > 8:
		return fmt.Errorf("%w: prop_seg %d not in 1..8", ErrInvalidConfig, bt.PropSeg)
	case bt.PhaseSeg1 < 1 || bt.PhaseSeg1 > 8:
		return fmt.Errorf("%w: phase_seg1 %d not in 1..8", ErrInvalidConfig, bt.PhaseSeg1)
	case bt.PhaseSeg2 < 2 || bt.PhaseSeg2 > 8:
		return fmt.Errorf("%w: phase_seg2 %d not in 2..8", ErrInvalidConfig, bt.PhaseSeg2)
	case bt.JumpWidth < 1 || bt.JumpWidth > 4:
		return fmt.Errorf("%w: jump_width %d not in 1..4", ErrInvalidConfig, bt.JumpWidth)
	}
	return nil
}

// Quanta returns the number of time quanta per bit.
func (bt *BitTiming) Quanta() int {
	return 1 + int(bt.PropSeg) + int(bt.PhaseSeg1) + int(bt.PhaseSeg2)
}

// Bitrate returns the bus bitrate for the given module clock in Hz.
func (bt *BitTiming) Bitrate(clockHz uint32) uint32 {
	if bt.Prescaler == 0 {
		return 0
	}
	return clockHz / uint32(bt.Prescaler) / uint32(bt.Quanta())
}

func (bt *BitTiming) ctrl() uint32 {
	return regs.CTRLPresDiv(uint8(bt.Prescaler-1)) |
		regs.CTRLPropSeg(bt.PropSeg-1) |
		regs.CTRLPSeg1(bt.PhaseSeg1-1) |
		regs.CTRLPSeg2(bt.PhaseSeg2-1) |
		regs.CTRLRJW(bt.JumpWidth-1)
}

// Config is the start configuration of a driver.
type Config struct {
	// Timing overrides the timing fields of CTRL. Without it the jump
	// width is set to 4 and the rest is taken from CTRL.
	Timing *BitTiming `yaml:"timing"`

	TimerSync            bool `yaml:"timer_sync"`
	LoopBack             bool `yaml:"loopback"`
	ListenOnly           bool `yaml:"listen_only"`
	TripleSample         bool `yaml:"triple_sample"`
	LowestBufferFirst    bool `yaml:"lowest_buffer_first"`
	SelfReceptionDisable bool `yaml:"self_reception_disable"`
	ManualBusOffRecovery bool `yaml:"manual_busoff_recovery"`

	// Raw bits OR-ed into the registers after the defaults.
	MCR  uint32 `yaml:"mcr"`
	CTRL uint32 `yaml:"ctrl"`

	// Filters holds one acceptance filter per receive mailbox. An empty
	// table accepts every frame.
	Filters []Filter `yaml:"filters"`
	// Mask is the global acceptance mask used with Filters. Zero means
	// every identifier bit must match.
	Mask uint32 `yaml:"mask"`
}

// DefaultConfig is 500 kbit/s from an 8 MHz oscillator with an
// accept-all receive partition.
func DefaultConfig() *Config {
	return &Config{
		Timing: &BitTiming{
			Prescaler: 1,
			PropSeg:   5,
			PhaseSeg1: 6,
			PhaseSeg2: 4,
			JumpWidth: 4,
		},
		TimerSync: true,
	}
}

func (c *Config) Validate() error {
	if c.Timing != nil {
		if err := c.Timing.Validate(); err != nil {
			return err
		}
	}
	if c.Mask&^regs.GlobalMaskExact != 0 {
		return fmt.Errorf("%w: mask 0x%08X wider than 29 bits", ErrInvalidConfig, c.Mask)
	}
	if c.CTRL&regs.CTRLInterrupts != 0 {
		return fmt.Errorf("%w: interrupt enables are managed by the driver", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) filters() []Filter {
	if len(c.Filters) == 0 {
		return nil
	}
	return c.Filters
}

func (c *Config) mask() uint32 {
	if c.Mask == 0 {
		return regs.GlobalMaskExact
	}
	return c.Mask
}

func (c *Config) timingBits() uint32 {
	if c.Timing == nil {
		return regs.CTRLRJW(3)
	}
	return c.Timing.ctrl()
}

func (c *Config) ctrlBits() uint32 {
	bits := c.CTRL
	if c.TimerSync {
		bits |= regs.CTRLTSYN
	}
	if c.LoopBack {
		bits |= regs.CTRLLPB
	}
	if c.ListenOnly {
		bits |= regs.CTRLLOM
	}
	if c.TripleSample {
		bits |= regs.CTRLSMP
	}
	if c.LowestBufferFirst {
		bits |= regs.CTRLLBUF
	}
	if c.ManualBusOffRecovery {
		bits |= regs.CTRLBOFFREC
	}
	return bits
}

func (c *Config) mcrBits() uint32 {
	bits := c.MCR
	if c.SelfReceptionDisable {
		bits |= regs.MCRSRXDIS
	}
	return bits
}

func (c *Config) clone() *Config {
	out := *c
	if c.Timing != nil {
		t := *c.Timing
		out.Timing = &t
	}
	if c.Filters != nil {
		out.Filters = append([]Filter(nil), c.Filters...)
	}
	return &out
}

// ParseConfig decodes and validates a YAML configuration.
func ParseConfig(b []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(b)
}
