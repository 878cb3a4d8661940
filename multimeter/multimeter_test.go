package multimeter_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fossasia/pslab-go/multimeter"
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

func getVoltageSummedEntry(mux byte, rawSum uint16) transport.TrafficEntry {
	return transport.TrafficEntry{
		Tx: append([]byte{protocol.ADC, protocol.GetVoltageSummed}, mux),
		Rx: append(protocol.PutU16(rawSum), 0x01),
	}
}

func newMultimeter(t *testing.T, extra []transport.TrafficEntry) *multimeter.Multimeter {
	entries := append([]transport.TrafficEntry{
		setGainEntries(1, 0),
		setGainEntries(2, 0),
	}, extra...)
	tr := transport.NewMock("PSLab vMOCK", entries)
	scope, err := oscilloscope.New(tr)
	assert.NoError(t, err)
	return multimeter.New(scope)
}

func TestMeasureVoltageNonPGAChannel(t *testing.T) {
	// VOL has mux code 8 and no PGA, so no autorange traffic is expected.
	m := newMultimeter(t, []transport.TrafficEntry{
		getVoltageSummedEntry(8, 4095*16),
	})
	v, err := m.MeasureVoltage("VOL")
	assert.NoError(t, err)
	assert.InDelta(t, 3.3, v, 1e-2)
}

func TestMeasureVoltageAutorangesCH1(t *testing.T) {
	// CH1 mux is 3, range is inverted (16.5, -16.5): raw 0 scales to 16.5V
	// at gain 1, which is not below any bound in the gain ladder, so
	// autorange settles back on gain 1.
	m := newMultimeter(t, []transport.TrafficEntry{
		setGainEntries(1, 0),
		getVoltageSummedEntry(3, 0),
		setGainEntries(1, 0),
		getVoltageSummedEntry(3, 0),
	})
	v, err := m.MeasureVoltage("CH1")
	assert.NoError(t, err)
	assert.InDelta(t, 16.5, v, 1e-6)
}

func TestMeasureResistanceOpenCircuitIsInfinite(t *testing.T) {
	m := newMultimeter(t, []transport.TrafficEntry{
		getVoltageSummedEntry(7, 4095*16),
	})
	r, err := m.MeasureResistance()
	assert.NoError(t, err)
	assert.True(t, math.IsInf(r, 1))
}
