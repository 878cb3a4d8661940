// Package waveform drives the PSLab's two signal generators: an arbitrary
// analog waveform generator on SI1/SI2, and a four-channel PWM generator
// on SQ1..SQ4 (§4.7, §4.8).
//
// Grounded on pslab/instrument/waveform_generator.py. Both generators
// share a single (wavelength, prescaler) timebase quantizer,
// _get_wavelength in the original, exported here as GetWavelength so the
// PWM generator in pwm.go can reuse it without duplicating the search.
package waveform

import (
	"log"
	"math"

	"github.com/fossasia/pslab-go/channel"
	pslaberrors "github.com/fossasia/pslab-go/errors"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
)

// GetWavelength picks the smallest prescaler from protocol.PrescalerLadder
// for which the resulting wavelength (in clock cycles, divided across
// tableSize points for an analog waveform) fits in 16 bits.
func GetWavelength(frequency float64, tableSize int) (wavelength int, prescaler int, err error) {
	if tableSize < 1 {
		tableSize = 1
	}
	for _, p := range protocol.PrescalerLadder {
		timegap := int(math.Round(protocol.ClockRate / frequency / float64(p) / float64(tableSize)))
		if timegap > 0 && timegap < 1<<16 {
			return timegap, p, nil
		}
	}
	return 0, 0, &pslaberrors.FrequencyOutOfRange{RequestedHz: frequency}
}

func prescalerIndex(p int) byte {
	for i, v := range protocol.PrescalerLadder {
		if v == p {
			return byte(i)
		}
	}
	return 0
}

const (
	highresTableSize    = 512
	lowresTableSize     = 32
	lowFrequencyLimit   = 0.1
	highresFrequencyLim = 1100
)

// WaveformGenerator outputs arbitrary analog waveforms on SI1 and SI2.
type WaveformGenerator struct {
	T        *transport.Transport
	channels map[string]*channel.AnalogOutput
}

// New returns a WaveformGenerator over t with both channels defaulted to
// a zeroed (silent) table.
func New(t *transport.Transport) (*WaveformGenerator, error) {
	w := &WaveformGenerator{T: t, channels: make(map[string]*channel.AnalogOutput, 2)}
	for _, name := range []string{"SI1", "SI2"} {
		c, err := channel.NewAnalogOutput(name)
		if err != nil {
			return nil, err
		}
		w.channels[name] = c
	}
	return w, nil
}

func tableSizeFor(frequency float64) (int, error) {
	if frequency < lowFrequencyLimit {
		return 0, &pslaberrors.ArgumentError{Parameter: "frequency", Value: frequency}
	}
	if frequency < highresFrequencyLim {
		return highresTableSize, nil
	}
	return lowresTableSize, nil
}

// Generate outputs a (default sine, 3.3V amplitude) waveform on one or
// both of SI1/SI2. Frequencies below 20 Hz or above 5 kHz are accepted,
// with a logged (not returned) warning that the output amplitude is
// reduced there. phase is the phase offset between SI1 and
// SI2 in degrees, used only when generating on both channels.
func (w *WaveformGenerator) Generate(channels []string, frequency []float64, phase float64) ([]float64, error) {
	if len(channels) == 0 || len(channels) > 2 {
		return nil, &pslaberrors.ArgumentError{Parameter: "channels", Value: channels}
	}
	if len(frequency) == 1 && len(channels) == 2 {
		frequency = []float64{frequency[0], frequency[0]}
	}
	if len(frequency) != len(channels) {
		return nil, &pslaberrors.ArgumentError{Parameter: "frequency", Value: frequency}
	}

	tableSize := make([]int, len(channels))
	timegap := make([]int, len(channels))
	prescaler := make([]int, len(channels))
	actual := make([]float64, len(channels))

	for i, name := range channels {
		c, ok := w.channels[name]
		if !ok {
			return nil, &pslaberrors.ArgumentError{Parameter: "channel", Value: name}
		}
		ts, err := tableSizeFor(frequency[i])
		if err != nil {
			return nil, err
		}
		if frequency[i] < 20 || frequency[i] > 5000 {
			log.Printf("pslab: %s at %g Hz: output amplitude is reduced below 20 Hz and above 5 kHz", name, frequency[i])
		}
		tableSize[i] = ts
		tg, ps, err := GetWavelength(frequency[i], ts)
		if err != nil {
			return nil, err
		}
		timegap[i] = tg
		prescaler[i] = ps
		actual[i] = protocol.ClockRate / float64(tg) / float64(ps) / float64(ts)
		c.Frequency = actual[i]
	}

	if len(channels) == 1 {
		if err := w.outputOne(channels[0], tableSize[0], prescaler[0], timegap[0]); err != nil {
			return nil, err
		}
	} else {
		if err := w.outputTwo(tableSize, phase, prescaler, timegap); err != nil {
			return nil, err
		}
	}
	return actual, nil
}

func (w *WaveformGenerator) outputOne(channelName string, tableSize, prescaler, timegap int) error {
	if err := w.T.SendU8(protocol.WAVEGEN); err != nil {
		return err
	}
	secondary := protocol.SetSine2
	if channelName == "SI1" {
		secondary = protocol.SetSine1
	}
	if err := w.T.SendU8(secondary); err != nil {
		return err
	}
	highres := byte(0)
	if tableSize == highresTableSize {
		highres = 1
	}
	if err := w.T.SendU8(highres | prescalerIndex(prescaler)<<1); err != nil {
		return err
	}
	if err := w.T.SendU16(uint16(timegap - 1)); err != nil {
		return err
	}
	_, err := w.T.GetAck()
	return err
}

func (w *WaveformGenerator) outputTwo(tableSize []int, phase float64, prescaler, timegap []int) error {
	phaseCoarse := int(float64(tableSize[1]) * phase / 360)
	phaseFine := int(float64(timegap[1]) * (phase - float64(phaseCoarse)*360/float64(tableSize[1])) / (360 / float64(tableSize[1])))

	if err := w.T.SendU8(protocol.WAVEGEN); err != nil {
		return err
	}
	if err := w.T.SendU8(protocol.SetBothWG); err != nil {
		return err
	}
	if err := w.T.SendU16(uint16(timegap[0] - 1)); err != nil {
		return err
	}
	if err := w.T.SendU16(uint16(timegap[1] - 1)); err != nil {
		return err
	}
	if err := w.T.SendU16(uint16(phaseCoarse)); err != nil {
		return err
	}
	if err := w.T.SendU16(uint16(phaseFine)); err != nil {
		return err
	}

	highres0, highres1 := byte(0), byte(0)
	if tableSize[0] == highresTableSize {
		highres0 = 1
	}
	if tableSize[1] == highresTableSize {
		highres1 = 1
	}
	packed := prescalerIndex(prescaler[1])<<4 | prescalerIndex(prescaler[0])<<2 | highres1<<1 | highres0
	if err := w.T.SendU8(packed); err != nil {
		return err
	}
	_, err := w.T.GetAck()
	return err
}

// LoadSine loads the default 3.3V-amplitude sine table onto channel.
func (w *WaveformGenerator) LoadSine(channelName string) error {
	points := make([]float64, highresTableSize)
	for i := range points {
		x := 2 * math.Pi * float64(i) / highresTableSize
		points[i] = 3.3 * math.Sin(x)
	}
	return w.loadTable(channelName, points, "sine")
}

// LoadTriangle loads a 3.3V-amplitude triangle wave table onto channel.
func (w *WaveformGenerator) LoadTriangle(channelName string) error {
	points := make([]float64, highresTableSize)
	span := 4.0
	start := -1.0
	for i := range points {
		x := start + span*float64(i)/highresTableSize
		points[i] = 3.3 * (math.Abs(math.Mod(x+4, 4)-2) - 1)
	}
	return w.loadTable(channelName, points, "tria")
}

// LoadEquation samples fn over 512 evenly spaced points across
// [span[0], span[1]) and loads the result as channel's waveform table.
// Values outside [-3.3, 3.3] V are clipped by channel.AnalogOutput's
// normalization when the table is encoded for the wire.
func (w *WaveformGenerator) LoadEquation(channelName string, fn func(x float64) float64, span [2]float64) error {
	points := make([]float64, highresTableSize)
	step := (span[1] - span[0]) / highresTableSize
	for i := range points {
		points[i] = fn(span[0] + step*float64(i))
	}
	return w.loadTable(channelName, points, "custom")
}

// LoadTable loads an arbitrary 512-point waveform table onto channel.
func (w *WaveformGenerator) LoadTable(channelName string, points [512]float64) error {
	return w.loadTable(channelName, points[:], "custom")
}

func (w *WaveformGenerator) loadTable(channelName string, points []float64, mode string) error {
	c, ok := w.channels[channelName]
	if !ok {
		return &pslaberrors.ArgumentError{Parameter: "channel", Value: channelName}
	}
	c.WaveType = mode
	copy(c.Table[:], points)

	if err := w.T.SendU8(protocol.WAVEGEN); err != nil {
		return err
	}
	secondary := protocol.LoadWaveform2
	if channelName == "SI1" {
		secondary = protocol.LoadWaveform1
	}
	if err := w.T.SendU8(secondary); err != nil {
		return err
	}
	for _, v := range c.HighResTable() {
		if err := w.T.SendU16(v); err != nil {
			return err
		}
	}
	for _, v := range c.LowResTable() {
		if err := w.T.SendU8(v); err != nil {
			return err
		}
	}
	_, err := w.T.GetAck()
	return err
}
