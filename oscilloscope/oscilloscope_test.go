package oscilloscope_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fossasia/pslab-go/oscilloscope"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
)

func setGainEntries(pga, gainIdx byte) transport.TrafficEntry {
	return transport.TrafficEntry{
		Tx: []byte{protocol.ADC, protocol.SetPGAGain, pga, gainIdx},
		Rx: []byte{0x01},
	}
}

func newOscilloscope(t *testing.T, extra []transport.TrafficEntry) *oscilloscope.Oscilloscope {
	entries := append([]transport.TrafficEntry{
		setGainEntries(1, 0),
		setGainEntries(2, 0),
	}, extra...)
	tr := transport.NewMock("PSLab vMOCK", entries)
	o, err := oscilloscope.New(tr)
	assert.NoError(t, err)
	return o
}

func TestNewOscilloscopeInitializesGain(t *testing.T) {
	newOscilloscope(t, nil)
}

func TestCaptureRejectsBadChannelCount(t *testing.T) {
	o := newOscilloscope(t, nil)
	_, err := o.Capture(5, 100, 2, oscilloscope.CaptureOptions{Block: true})
	assert.Error(t, err)
}

func TestCaptureRejectsTimegapTooSmall(t *testing.T) {
	o := newOscilloscope(t, nil)
	_, err := o.Capture(1, 100, 0.1, oscilloscope.CaptureOptions{Block: true})
	assert.Error(t, err)
}

func TestCaptureRejectsTooManySamples(t *testing.T) {
	o := newOscilloscope(t, nil)
	_, err := o.Capture(2, protocol.MaxSamples, 2, oscilloscope.CaptureOptions{Block: true})
	assert.Error(t, err)
}

func TestSelectRangeSetsGain(t *testing.T) {
	o := newOscilloscope(t, []transport.TrafficEntry{
		setGainEntries(1, 0),
		setGainEntries(1, 1),
	})
	assert.NoError(t, o.SelectRange("CH1", 16))
	assert.NoError(t, o.SelectRange("CH1", 8))
}

func TestSelectRangeRejectsUnknownRange(t *testing.T) {
	o := newOscilloscope(t, nil)
	assert.Error(t, o.SelectRange("CH1", 99))
}

func TestCaptureEncodeCSV(t *testing.T) {
	cap := &oscilloscope.Capture{
		ChannelNames: []string{"CH1"},
		Timestamps:   []float64{0, 1, 2},
		Voltages:     [][]float64{{0.1, 0.2, 0.3}},
	}
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	assert.NoError(t, cap.EncodeCSV(w))
	assert.Contains(t, buf.String(), "time,CH1")
	assert.Contains(t, buf.String(), "0.2")
}
