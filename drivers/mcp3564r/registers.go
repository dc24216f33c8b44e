package mcp3564r

// Register addresses
const (
	RegADCData   = 0x0
	RegConfig0   = 0x1
	RegConfig1   = 0x2
	RegConfig2   = 0x3
	RegConfig3   = 0x4
	RegIRQ       = 0x5
	RegMux       = 0x6
	RegScan      = 0x7
	RegTimer     = 0x8
	RegOffsetCal = 0x9
	RegGainCal   = 0xA
	RegLock      = 0xD
	RegCRCCfg    = 0xF
)

// Command types, the low two bits of a command byte
const (
	cmdFast      = 0x0
	cmdStatic    = 0x1
	cmdIncWrite  = 0x2
	cmdIncRead   = 0x3
	cmdAddrShift = 6
	cmdRegShift  = 2
)

// Fast commands, sent in the register field of a fast command byte
const (
	FastStartConversion = 0xA
	FastStandby         = 0xB
	FastShutdown        = 0xC
	FastFullShutdown    = 0xD
	FastReset           = 0xE
)

// DefaultAddress is the factory device address
const DefaultAddress = 0x1

// regSize returns the width of a register in bytes
func regSize(reg uint8) int {
	switch reg {
	case RegScan, RegTimer, RegOffsetCal, RegGainCal:
		return 3
	case RegCRCCfg:
		return 2
	default:
		return 1
	}
}

// Field is a bit field inside a register
type Field struct {
	Reg   uint8
	Shift uint8
	Width uint8
}

func (f Field) mask() uint32 {
	return (1<<f.Width - 1) << f.Shift
}

// max returns the largest value the field holds
func (f Field) max() uint32 {
	return 1<<f.Width - 1
}

var (
	fieldVRef      = Field{RegConfig0, 7, 1}
	fieldClockSel  = Field{RegConfig0, 4, 2}
	fieldCurrent   = Field{RegConfig0, 2, 2}
	fieldADCMode   = Field{RegConfig0, 0, 2}
	fieldPrescale  = Field{RegConfig1, 6, 2}
	fieldOSR       = Field{RegConfig1, 2, 4}
	fieldBoost     = Field{RegConfig2, 6, 2}
	fieldGain      = Field{RegConfig2, 3, 3}
	fieldAZMux     = Field{RegConfig2, 2, 1}
	fieldAZRef     = Field{RegConfig2, 1, 1}
	fieldConvMode  = Field{RegConfig3, 6, 2}
	fieldFormat    = Field{RegConfig3, 4, 2}
	fieldCRCFormat = Field{RegConfig3, 3, 1}
	fieldCRCCom    = Field{RegConfig3, 2, 1}
	fieldOffCal    = Field{RegConfig3, 1, 1}
	fieldGainCal   = Field{RegConfig3, 0, 1}
	fieldDRStatus  = Field{RegIRQ, 6, 1}
)

// ClockSource is CONFIG0.CLK_SEL
type ClockSource uint8

const (
	ClockExternal         ClockSource = 0
	ClockInternal         ClockSource = 2
	ClockInternalWithMCLK ClockSource = 3
)

// Mode is CONFIG0.ADC_MODE
type Mode uint8

const (
	ModeShutdown   Mode = 0
	ModeStandby    Mode = 2
	ModeConversion Mode = 3
)

// Gain is CONFIG2.GAIN
type Gain uint8

const (
	GainThird Gain = iota
	Gain1
	Gain2
	Gain4
	Gain8
	Gain16
	Gain32
	Gain64
)

// ConvMode is CONFIG3.CONV_MODE
type ConvMode uint8

const (
	ConvOneShotShutdown ConvMode = 0
	ConvOneShotStandby  ConvMode = 2
	ConvContinuous      ConvMode = 3
)

// DataFormat is CONFIG3.DATA_FORMAT
type DataFormat uint8

const (
	Format24          DataFormat = 0 // 24-bit two's complement
	Format32Padded    DataFormat = 1 // 24 bits left justified, 8 zero bits
	Format32SignExt   DataFormat = 2 // 25-bit value sign extended to 32
	Format32ChannelID DataFormat = 3 // channel ID in bits 31..28
)
