package transport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
)

func TestMockSendU8AndGetAck(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		{Tx: []byte{protocol.COMMON, protocol.GetVersion}, Rx: []byte{0x01}},
	})

	err := tr.SendU8(protocol.COMMON)
	assert.NoError(t, err)
	err = tr.SendU8(protocol.GetVersion)
	assert.NoError(t, err)

	ack, err := tr.GetAck()
	assert.NoError(t, err)
	assert.Equal(t, byte(0x01), ack)
}

func TestMockGetAckMissingAck(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		{Tx: []byte{protocol.ADC}, Rx: []byte{0x00}},
	})

	assert.NoError(t, tr.SendU8(protocol.ADC))

	_, err := tr.GetAck()
	assert.Error(t, err)
}

func TestMockGetU16RoundTrip(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		{Tx: []byte{protocol.ADC}, Rx: protocol.PutU16(12345)},
	})

	assert.NoError(t, tr.SendU8(protocol.ADC))
	v, err := tr.GetU16()
	assert.NoError(t, err)
	assert.Equal(t, uint16(12345), v)
}

func TestMockShortRead(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		// Rx shorter than the 4 bytes GetU32 will try to read.
		{Tx: []byte{protocol.ADC}, Rx: []byte{0x01, 0x02}},
	})

	assert.NoError(t, tr.SendU8(protocol.ADC))
	_, err := tr.GetU32()
	assert.Error(t, err)
}

func TestMockWriteMismatchIsAnError(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		{Tx: []byte{protocol.ADC}, Rx: []byte{0x01}},
	})

	err := tr.SendU8(protocol.TIMING)
	assert.Error(t, err)
}
