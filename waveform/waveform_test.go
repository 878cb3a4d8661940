package waveform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
	"github.com/fossasia/pslab-go/waveform"
)

func TestGetWavelengthRoundTrips(t *testing.T) {
	// For a range of frequencies, the (wavelength, prescaler) pair should
	// reconstruct a frequency within 1% of what was requested.
	for _, freq := range []float64{4, 10, 50, 1000, 10000, 100000, 1e6} {
		wavelength, prescaler, err := waveform.GetWavelength(freq, 1)
		assert.NoError(t, err)
		assert.Greater(t, wavelength, 0)
		assert.Less(t, wavelength, 1<<16)

		reconstructed := protocol.ClockRate / float64(wavelength) / float64(prescaler)
		assert.InDelta(t, freq, reconstructed, freq*0.01)
	}
}

func TestGetWavelengthPicksSmallestPrescaler(t *testing.T) {
	// A frequency representable at prescaler 1 should never be given a
	// larger one.
	wavelength, prescaler, err := waveform.GetWavelength(1000, 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, prescaler)
	assert.Greater(t, wavelength, 0)
}

func TestGetWavelengthRejectsTooLowFrequency(t *testing.T) {
	_, _, err := waveform.GetWavelength(1e-6, 1)
	assert.Error(t, err)
}

func newWaveformGenerator(t *testing.T, entries []transport.TrafficEntry) *waveform.WaveformGenerator {
	tr := transport.NewMock("PSLab vMOCK", entries)
	w, err := waveform.New(tr)
	assert.NoError(t, err)
	return w
}

// prescalerIdx mirrors waveform's internal index lookup for test traffic
// construction.
func prescalerIdx(p int) byte {
	for i, v := range protocol.PrescalerLadder {
		if v == p {
			return byte(i)
		}
	}
	return 0
}

func TestGenerateSingleChannel(t *testing.T) {
	// 2500 Hz is above the high-resolution table's frequency ceiling
	// (1100 Hz), so this exercises the 32-point low-res table path.
	timegap, prescaler, err := waveform.GetWavelength(2500, 32)
	assert.NoError(t, err)

	w := newWaveformGenerator(t, []transport.TrafficEntry{
		{
			Tx: append([]byte{
				protocol.WAVEGEN, protocol.SetSine2,
				byte(0) | prescalerIdx(prescaler)<<1,
			}, protocol.PutU16(uint16(timegap-1))...),
			Rx: []byte{0x01},
		},
	})
	actual, err := w.Generate([]string{"SI2"}, []float64{2500}, 0)
	assert.NoError(t, err)
	assert.Len(t, actual, 1)
	assert.InDelta(t, 2500, actual[0], 25)
}

func TestGenerateRejectsTooManyChannels(t *testing.T) {
	w := newWaveformGenerator(t, nil)
	_, err := w.Generate([]string{"SI1", "SI2", "SI1"}, []float64{100}, 0)
	assert.Error(t, err)
}

func TestGenerateRejectsUnknownChannel(t *testing.T) {
	w := newWaveformGenerator(t, nil)
	_, err := w.Generate([]string{"SI3"}, []float64{100}, 0)
	assert.Error(t, err)
}

func newPWMGenerator(t *testing.T, entries []transport.TrafficEntry) *waveform.PWMGenerator {
	tr := transport.NewMock("PSLab vMOCK", entries)
	p, err := waveform.NewPWMGenerator(tr)
	assert.NoError(t, err)
	return p
}

func TestPWMGenerateRejectsTooHighFrequency(t *testing.T) {
	p := newPWMGenerator(t, nil)
	err := p.Generate([]string{"SQ1"}, 2e7, []float64{0.5}, []float64{0})
	assert.Error(t, err)
}

func TestPWMGenerateRejectsNonPositiveFrequency(t *testing.T) {
	p := newPWMGenerator(t, nil)
	err := p.Generate([]string{"SQ1"}, 0, []float64{0.5}, []float64{0})
	assert.Error(t, err)
}

func TestPWMSetStateBuildsMask(t *testing.T) {
	p := newPWMGenerator(t, []transport.TrafficEntry{
		{Tx: []byte{protocol.DOUT, protocol.SetState, 0x10 | 0x01}, Rx: []byte{0x01}},
	})
	assert.NoError(t, p.SetState(map[string]bool{"SQ1": true}))
}

func TestPWMMapReferenceClockSendsMaskAndPrescaler(t *testing.T) {
	p := newPWMGenerator(t, []transport.TrafficEntry{
		{Tx: []byte{protocol.WAVEGEN, protocol.MapReference, 0x01 | 0x02, 3}, Rx: []byte{0x01}},
	})
	assert.NoError(t, p.MapReferenceClock([]string{"SQ1", "SQ2"}, 3))
}
