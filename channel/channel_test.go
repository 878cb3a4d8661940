package channel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fossasia/pslab-go/channel"
)

func TestAnalogInputDefaultScale(t *testing.T) {
	ch, err := channel.NewAnalogInput("CH1")
	assert.NoError(t, err)
	assert.Equal(t, 1, ch.Gain())
	assert.Equal(t, 10, ch.Resolution())

	// At gain 1, resolution 10: A = 16.5, B = -16.5 (CH1's range is
	// inverted), m = 1023.
	assert.InDelta(t, 16.5, ch.Scale(0), 1e-9)
	assert.InDelta(t, -16.5, ch.Scale(1023), 1e-9)
}

func TestAnalogInputScaleUnscaleRoundTrip(t *testing.T) {
	ch, err := channel.NewAnalogInput("CH3")
	assert.NoError(t, err)
	assert.NoError(t, ch.SetResolution(12))

	for raw := 0; raw <= 4095; raw += 137 {
		volts := ch.Scale(raw)
		back := ch.Unscale(volts)
		assert.InDelta(t, raw, back, 1)
	}
}

func TestAnalogInputUnscaleClipsToRange(t *testing.T) {
	ch, err := channel.NewAnalogInput("CH3")
	assert.NoError(t, err)

	assert.Equal(t, 0, ch.Unscale(-100))
	assert.Equal(t, int(1023), ch.Unscale(100))
}

func TestAnalogInputSetGainRequiresPGA(t *testing.T) {
	ch, err := channel.NewAnalogInput("CH3")
	assert.NoError(t, err)
	assert.Error(t, ch.SetGain(2))
}

func TestAnalogInputSetGainValidatesValue(t *testing.T) {
	ch, err := channel.NewAnalogInput("CH1")
	assert.NoError(t, err)
	assert.Error(t, ch.SetGain(3))
	assert.NoError(t, ch.SetGain(8))
	assert.Equal(t, 8, ch.Gain())
}

func TestAnalogInputGainIndex(t *testing.T) {
	ch, err := channel.NewAnalogInput("CH2")
	assert.NoError(t, err)
	assert.NoError(t, ch.SetGain(16))
	assert.Equal(t, byte(6), ch.GainIndex())
}

func TestAnalogInputUnknownChannel(t *testing.T) {
	_, err := channel.NewAnalogInput("CH9")
	assert.Error(t, err)
}

func TestAnalogInputSetResolutionValidates(t *testing.T) {
	ch, err := channel.NewAnalogInput("CH1")
	assert.NoError(t, err)
	assert.Error(t, ch.SetResolution(8))
	assert.NoError(t, ch.SetResolution(12))
	assert.Equal(t, 12, ch.Resolution())
}

func TestAnalogOutputHighResTableNormalizes(t *testing.T) {
	out, err := channel.NewAnalogOutput("SI1")
	assert.NoError(t, err)
	out.Table[0] = -3.3
	out.Table[511] = 3.3

	table := out.HighResTable()
	assert.Equal(t, uint16(0), table[0])
	assert.Equal(t, uint16(511), table[511])
}

func TestAnalogOutputLowResTableSamples16th(t *testing.T) {
	out, err := channel.NewAnalogOutput("SI2")
	assert.NoError(t, err)
	for i := range out.Table {
		out.Table[i] = 0
	}
	out.Table[16] = 3.3

	low := out.LowResTable()
	assert.Equal(t, byte(63), low[1])
}

func TestNewAnalogOutputRejectsUnknownName(t *testing.T) {
	_, err := channel.NewAnalogOutput("SI3")
	assert.Error(t, err)
}

func TestDigitalInputKnownChannels(t *testing.T) {
	in, err := channel.NewDigitalInput("LA1")
	assert.NoError(t, err)
	assert.Equal(t, 0, in.ChanNum)
	assert.Equal(t, channel.LogicDisabled, in.LogicMode)
}

func TestDigitalInputUnknownChannel(t *testing.T) {
	_, err := channel.NewDigitalInput("LA9")
	assert.Error(t, err)
}

func TestDigitalOutputMasks(t *testing.T) {
	out, err := channel.NewDigitalOutput("SQ1")
	assert.NoError(t, err)
	assert.Equal(t, byte(0x10), out.StateMask())
	assert.Equal(t, byte(0x01), out.ReferenceClockMask())
	assert.Equal(t, channel.StateLow, out.State)
}

func TestDigitalOutputUnknownChannel(t *testing.T) {
	_, err := channel.NewDigitalOutput("SQ9")
	assert.Error(t, err)
}
