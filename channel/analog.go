// Package channel models the per-input/per-output state the oscilloscope,
// multimeter, logic analyzer and generators mutate: analog channel gain,
// resolution and scale maps (§4.3), and digital channel modes and output
// state.
//
// Grounded on pslab/instrument/analog.py and pslab/instrument/digital.py.
// The original's dynamic-attribute objects become plain structs with
// exported mutator methods (§9); the two PGA-equipped channels are
// distinguished by a *PgaID pointer rather than by subclassing.
package channel

import (
	"math"

	pslaberrors "github.com/fossasia/pslab-go/errors"
	"github.com/fossasia/pslab-go/util"
)

// PgaID identifies which programmable-gain amplifier a channel is wired
// through. Only CH1 and CH2 have one.
type PgaID int

const (
	PGA1 PgaID = 1
	PGA2 PgaID = 2
)

// GainValues is the closed set of gains the PGA supports.
var GainValues = [8]int{1, 2, 4, 5, 8, 10, 16, 32}

// Range is an input's full-scale range in volts. Lo may be greater than
// Hi (CH1/CH2 are wired inverted).
type Range struct{ Lo, Hi float64 }

// inputRanges is keyed by channel name, grounded on analog.py's
// INPUT_RANGES.
var inputRanges = map[string]Range{
	"CH1": {16.5, -16.5},
	"CH2": {16.5, -16.5},
	"CH3": {-3.3, 3.3},
	"MIC": {-3.3, 3.3},
	"CAP": {0, 3.3},
	"RES": {0, 3.3},
	"VOL": {0, 3.3},
	"AN4": {0, 3.3},
}

// muxCodes is the device's internal "chosa" index for each analog input,
// grounded on analog.py's PIC_ADC_MULTIPLEX.
var muxCodes = map[string]byte{
	"CH1": 3,
	"CH2": 0,
	"CH3": 1,
	"MIC": 2,
	"AN4": 4,
	"RES": 7,
	"CAP": 5,
	"VOL": 8,
}

// pgaChannels maps the two gain-equipped channels to their PGA id.
var pgaChannels = map[string]PgaID{
	"CH1": PGA1,
	"CH2": PGA2,
}

// AnalogInput is the per-input mutable state described in §3.
type AnalogInput struct {
	Name       string
	Mux        byte
	Pga        *PgaID
	gain       int
	resolution int
	rng        Range

	// SamplesInBuffer and BufferIdx are set by whichever capture claimed
	// this channel's buffer region; they have no meaning between
	// captures.
	SamplesInBuffer int
	BufferIdx       int
}

// NewAnalogInput constructs the channel's fixed identity (name, mux, PGA)
// and its initial scale state (gain 1, resolution 10).
func NewAnalogInput(name string) (*AnalogInput, error) {
	rng, ok := inputRanges[name]
	if !ok {
		return nil, &pslaberrors.ArgumentError{Parameter: "channel", Value: name}
	}
	mux := muxCodes[name]

	var pga *PgaID
	if id, ok := pgaChannels[name]; ok {
		id := id
		pga = &id
	}

	a := &AnalogInput{
		Name:       name,
		Mux:        mux,
		Pga:        pga,
		gain:       1,
		resolution: 10,
		rng:        rng,
	}
	return a, nil
}

// Gain returns the channel's current PGA gain (always 1 for non-PGA
// channels).
func (a *AnalogInput) Gain() int { return a.gain }

// SetGain updates the gain, validating it is one of GainValues and that
// the channel actually has a PGA.
func (a *AnalogInput) SetGain(gain int) error {
	if a.Pga == nil {
		return &pslaberrors.NotSupported{Operation: "SetGain", Channel: a.Name}
	}
	valid := false
	for _, g := range GainValues {
		if g == gain {
			valid = true
			break
		}
	}
	if !valid {
		return &pslaberrors.ArgumentError{Parameter: "gain", Value: gain}
	}
	a.gain = gain
	return nil
}

// GainIndex returns the index of the current gain in GainValues, as sent
// on the wire to ADC/SET_PGA_GAIN.
func (a *AnalogInput) GainIndex() byte {
	for i, g := range GainValues {
		if g == a.gain {
			return byte(i)
		}
	}
	return 0
}

// Resolution returns the channel's current ADC resolution in bits (10 or
// 12).
func (a *AnalogInput) Resolution() int { return a.resolution }

// SetResolution updates the resolution, which must be 10 or 12 (I2).
func (a *AnalogInput) SetResolution(bits int) error {
	if bits != 10 && bits != 12 {
		return &pslaberrors.ArgumentError{Parameter: "resolution", Value: bits}
	}
	a.resolution = bits
	return nil
}

// Range returns the channel's configured full-scale input range.
func (a *AnalogInput) Range() Range { return a.rng }

// maxCode returns 2^resolution - 1.
func (a *AnalogInput) maxCode() float64 {
	return math.Exp2(float64(a.resolution)) - 1
}

// scaleBounds returns (A, B) per §4.3: A = lo/gain, B = hi/gain.
func (a *AnalogInput) scaleBounds() (float64, float64) {
	g := float64(a.gain)
	return a.rng.Lo / g, a.rng.Hi / g
}

// Scale converts a raw ADC code to volts.
func (a *AnalogInput) Scale(raw int) float64 {
	lo, hi := a.scaleBounds()
	m := a.maxCode()
	return lo + float64(raw)*(hi-lo)/m
}

// Unscale converts a voltage to the nearest raw ADC code, clipped to
// [0, maxCode].
func (a *AnalogInput) Unscale(volts float64) int {
	lo, hi := a.scaleBounds()
	m := a.maxCode()
	raw := math.Round((volts - lo) * m / (hi - lo))
	return int(util.Clamp(raw, 0, m))
}

// AnalogOutput is the waveform generator's per-output table state (§3).
// Only SI1 and SI2 exist.
type AnalogOutput struct {
	Name      string
	Frequency float64
	WaveType  string // "sine", "tria", or "custom"

	// Table holds 512 voltages in [-3.3, 3.3], the host-side copy of the
	// device's hi-res waveform table.
	Table [512]float64
}

// NewAnalogOutput returns a zeroed output named name.
func NewAnalogOutput(name string) (*AnalogOutput, error) {
	if name != "SI1" && name != "SI2" {
		return nil, &pslaberrors.ArgumentError{Parameter: "channel", Value: name}
	}
	return &AnalogOutput{Name: name}, nil
}

// HighResTable normalises Table to [0, 511] u16 codes for LOAD_WAVEFORM.
func (o *AnalogOutput) HighResTable() [512]uint16 {
	var out [512]uint16
	for i, v := range o.Table {
		out[i] = uint16(normalize(v, 511))
	}
	return out
}

// LowResTable samples every 16th point of Table, normalised to [0, 63].
func (o *AnalogOutput) LowResTable() [32]byte {
	var out [32]byte
	for i := 0; i < 32; i++ {
		out[i] = byte(normalize(o.Table[i*16], 63))
	}
	return out
}

func normalize(v float64, maxCode float64) float64 {
	v = util.Clamp(v, -3.3, 3.3)
	return math.Round((v + 3.3) * maxCode / 6.6)
}
