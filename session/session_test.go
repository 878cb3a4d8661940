package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/session"
	"github.com/fossasia/pslab-go/transport"
)

func setGainEntries(pga, gainIdx byte) transport.TrafficEntry {
	return transport.TrafficEntry{
		Tx: []byte{protocol.ADC, protocol.SetPGAGain, pga, gainIdx},
		Rx: []byte{0x01},
	}
}

func TestWrapWiresUpEveryInstrument(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		setGainEntries(1, 0),
		setGainEntries(2, 0),
	})
	s, err := session.Wrap(tr)
	assert.NoError(t, err)
	assert.NotNil(t, s.LogicAnalyzer)
	assert.NotNil(t, s.Oscilloscope)
	assert.NotNil(t, s.Multimeter)
	assert.NotNil(t, s.WaveformGenerator)
	assert.NotNil(t, s.PWMGenerator)
	assert.NotNil(t, s.PowerSupply)
}

func TestTemperatureReadsCTMUVoltage(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		setGainEntries(1, 0),
		setGainEntries(2, 0),
		{
			Tx: []byte{protocol.ADC, protocol.GetCTMUVoltage, 0b11110 | (3 << 5)},
			Rx: append(protocol.PutU16(0), 0x01),
		},
	})
	s, err := session.Wrap(tr)
	assert.NoError(t, err)
	temp, err := s.Temperature()
	assert.NoError(t, err)
	assert.InDelta(t, 760/1.56, temp, 1e-6)
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	_, err := session.LoadConfig("/nonexistent/pslab-config.yaml")
	assert.Error(t, err)
}

func TestConfigTimeoutDefaultsToZeroSeconds(t *testing.T) {
	cfg := session.Config{}
	assert.Equal(t, int64(0), int64(cfg.Timeout()))
}
