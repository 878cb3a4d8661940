package powersupply_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fossasia/pslab-go/powersupply"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
)

func setPowerEntry(chanNum byte, output uint16) transport.TrafficEntry {
	return transport.TrafficEntry{
		Tx: append([]byte{protocol.DAC, protocol.SetPower, chanNum}, protocol.PutU16(output)...),
		Rx: []byte{0x01},
	}
}

func TestSetPV1MidRangeScalesToHalfReference(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		setPowerEntry(3, 1650), // (0 - (-5))/10 * 3300 = 1650
	})
	ps := powersupply.New(tr)
	applied, err := ps.SetPV1(0)
	assert.NoError(t, err)
	assert.InDelta(t, 0, applied, 1e-9)
	v, ok := ps.PV1()
	assert.True(t, ok)
	assert.InDelta(t, 0, v, 1e-9)
}

func TestSetPV2ClampsAboveRange(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		setPowerEntry(2, 3300), // clamped to 3.3V -> full scale
	})
	ps := powersupply.New(tr)
	applied, err := ps.SetPV2(100)
	assert.NoError(t, err)
	assert.InDelta(t, 3.3, applied, 1e-9)
	v, _ := ps.PV2()
	assert.InDelta(t, 3.3, v, 1e-9)
}

func TestSetPV3ClampsBelowRange(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		setPowerEntry(1, 0),
	})
	ps := powersupply.New(tr)
	applied, err := ps.SetPV3(-10)
	assert.NoError(t, err)
	assert.InDelta(t, 0, applied, 1e-9)
	v, _ := ps.PV3()
	assert.InDelta(t, 0, v, 1e-9)
}

func TestSetPCSScalesInvertedRange(t *testing.T) {
	// PCS range is (3.3e-3, 0), i.e. inverted: requesting 0 A scales to
	// full reference since lo=3.3e-3 is the zero-code end.
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		setPowerEntry(0, 3300),
	})
	ps := powersupply.New(tr)
	applied, err := ps.SetPCS(0)
	assert.NoError(t, err)
	assert.InDelta(t, 0, applied, 1e-9)
	v, _ := ps.PCS()
	assert.InDelta(t, 0, v, 1e-9)
}

func TestUnsetChannelReportsNotOk(t *testing.T) {
	ps := powersupply.New(transport.NewMock("PSLab vMOCK", nil))
	_, ok := ps.PV1()
	assert.False(t, ok)
}

func TestSetVoltageClampsAndReturnsAppliedValue(t *testing.T) {
	// SetVoltage(PV3, 10.0) clamps to PV3's 0..3.3V range and returns the
	// clamped value, not an error, so the caller can detect clamping
	// without a separate error path.
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		setPowerEntry(1, 3300),
	})
	ps := powersupply.New(tr)
	applied, err := ps.SetVoltage("PV3", 10.0)
	assert.NoError(t, err)
	assert.InDelta(t, 3.3, applied, 1e-9)
}

func TestSetVoltageRejectsUnknownChannel(t *testing.T) {
	ps := powersupply.New(transport.NewMock("PSLab vMOCK", nil))
	_, err := ps.SetVoltage("PV9", 1.0)
	assert.Error(t, err)
}

func TestSetCurrentClampsAndReturnsAppliedMilliamps(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		setPowerEntry(0, 0),
	})
	ps := powersupply.New(tr)
	applied, err := ps.SetCurrent(10) // requested 10 mA, clamped to 3.3 mA
	assert.NoError(t, err)
	assert.InDelta(t, 3.3, applied, 1e-9)
}
