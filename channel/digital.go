package channel

import pslaberrors "github.com/fossasia/pslab-go/errors"

// LogicMode is a digital input's edge-detection mode.
type LogicMode int

const (
	LogicDisabled LogicMode = iota
	LogicAny
	LogicFalling
	LogicRising
	LogicFourRising
	LogicSixteenRising
)

// digitalInputChannels maps a DigitalInput name to its firmware channel
// number, grounded on digital.py's DIGITAL_INPUTS.
var digitalInputChannels = map[string]int{
	"LA1": 0,
	"LA2": 1,
	"LA3": 2,
	"LA4": 3,
	"RES": 4,
	"EXT": 5,
	"FRQ": 6,
}

// DigitalInput is the per-input state the logic analyzer mutates (§3).
type DigitalInput struct {
	Name      string
	ChanNum   int
	Datatype  int // 16 or 32
	LogicMode LogicMode

	EventsInBuffer int
	BufferIdx      int
}

// NewDigitalInput returns a DigitalInput for name, disabled by default.
func NewDigitalInput(name string) (*DigitalInput, error) {
	num, ok := digitalInputChannels[name]
	if !ok {
		return nil, &pslaberrors.ArgumentError{Parameter: "channel", Value: name}
	}
	return &DigitalInput{Name: name, ChanNum: num, Datatype: 32, LogicMode: LogicDisabled}, nil
}

// DigitalLevel is an output's driven level.
type DigitalLevel int

const (
	LOW DigitalLevel = iota
	HIGH
)

// outputStateMasks are the per-channel mask constants sent to
// DOUT/SET_STATE, grounded on digital.py's DigitalOutput.state_mask.
var outputStateMasks = map[string]byte{
	"SQ1": 0x10,
	"SQ2": 0x20,
	"SQ3": 0x40,
	"SQ4": 0x80,
}

// refClockMasks are the per-channel mask constants sent to
// WAVEGEN/MAP_REFERENCE, grounded on digital.py's
// DigitalOutput.reference_clock_map.
var refClockMasks = map[string]byte{
	"SQ1": 0x01,
	"SQ2": 0x02,
	"SQ3": 0x04,
	"SQ4": 0x08,
}

// OutputState is the DigitalOutput state machine (§4.11): LOW <-> HIGH <->
// PWM.
type OutputState int

const (
	StateLow OutputState = iota
	StateHigh
	StatePWM
)

// DigitalOutput is the per-output state the PWM generator mutates (§3).
type DigitalOutput struct {
	Name      string
	State     OutputState
	DutyCycle float64 // [0, 1], meaningful only in StatePWM
	Phase     float64 // [0, 1)
	Remapped  bool
}

// NewDigitalOutput returns a DigitalOutput for name, initially LOW.
func NewDigitalOutput(name string) (*DigitalOutput, error) {
	if _, ok := outputStateMasks[name]; !ok {
		return nil, &pslaberrors.ArgumentError{Parameter: "channel", Value: name}
	}
	return &DigitalOutput{Name: name, State: StateLow}, nil
}

// StateMask returns the channel's DOUT/SET_STATE mask byte.
func (d *DigitalOutput) StateMask() byte { return outputStateMasks[d.Name] }

// ReferenceClockMask returns the channel's WAVEGEN/MAP_REFERENCE mask
// byte.
func (d *DigitalOutput) ReferenceClockMask() byte { return refClockMasks[d.Name] }
