// Package protocol defines the closed set of opcodes, clock constants, and
// integer packers that make up the PSLab wire protocol. Numeric opcode
// values are internally consistent but not verified against firmware
// source, which was not available for grounding (see DESIGN.md); every
// formula and control-flow detail elsewhere in this module is grounded on
// the original Python sources.
package protocol

import "encoding/binary"

// Primary opcodes. Each selects a secondary-opcode table.
const (
	FLASH byte = iota + 1
	ADC
	SPI
	I2C
	UART2
	DOUT
	DIN
	WAVEGEN
	TIMING
	COMMON
	NRFL01
	NONSTANDARDIO
	PASSTHROUGHS
	DAC
)

// ADC secondary opcodes.
const (
	CaptureOne byte = iota + 1
	CaptureTwo
	CaptureFour
	CaptureDMASpeed
	ConfigureTrigger
	GetCaptureStatus
	SetPGAGain
	GetVoltageSummed
	SetCap
	GetCTMUVoltage
)

// TIMING secondary opcodes.
const (
	StartAlternateOneChanLA byte = iota + 1
	StartTwoChanLA
	StartFourChanLA
	StopLA
	FetchLongDMAData
	GetFrequency
	GetAlternateHighFrequency
)

// DIN secondary opcodes.
const (
	GetStates byte = iota + 1
	GetInitialDigitalStates
)

// DOUT secondary opcodes.
const (
	SetState byte = iota + 1
)

// WAVEGEN secondary opcodes.
const (
	SetSine1 byte = iota + 1
	SetSine2
	SetBothWG
	LoadWaveform1
	LoadWaveform2
	SQR4
	MapReference
)

// COMMON secondary opcodes.
const (
	GetVersion byte = iota + 1
	RetrieveBuffer
	ClearBuffer
	FillBuffer
	GetCapacitance
	StartCounting
	FetchCount
	SetPower
	ReadProgramAddress
)

// Clock constants.
const (
	// ClockRate is the 64 MHz master clock that drives ADC timing, the
	// logic analyzer event counters, and the waveform generator's
	// (timegap, prescaler) timebase.
	ClockRate float64 = 64_000_000

	// ReferenceClockHz is the 128 MHz clock used only by the PWM
	// reference-clock bypass (MapReferenceClock); distinct from ClockRate.
	ReferenceClockHz float64 = 128_000_000

	// MaxSamples is the size, in u16 slots, of the device's single linear
	// ADC sample buffer.
	MaxSamples = 10000
)

// PrescalerLadder is the shared divisor ladder used by the logic
// analyzer's 4-channel timing and both generators. {1, 8, 64, 256}.
var PrescalerLadder = [4]int{1, 8, 64, 256}

// PutU8 encodes v as a single byte.
func PutU8(v byte) []byte {
	return []byte{v}
}

// PutU16 encodes v little-endian into 2 bytes.
func PutU16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// PutU32 encodes v little-endian into 4 bytes.
func PutU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// GetU16 decodes 2 little-endian bytes. Panics if b is shorter than 2
// bytes; callers are expected to have already validated read length via
// transport.ShortRead.
func GetU16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

// GetU32 decodes 4 little-endian bytes.
func GetU32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}
