package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fossasia/pslab-go/buffer"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
)

func txFetch(offset, samples int) []byte {
	return append([]byte{protocol.COMMON, protocol.RetrieveBuffer}, append(protocol.PutU16(uint16(offset)), protocol.PutU16(uint16(samples))...)...)
}

func rxFetch(samples int, start uint16) []byte {
	var rx []byte
	for i := 0; i < samples; i++ {
		rx = append(rx, protocol.PutU16(start+uint16(i))...)
	}
	rx = append(rx, 0x01)
	return rx
}

func TestFetchSingleChunk(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		{Tx: txFetch(0, 4), Rx: rxFetch(4, 100)},
	})
	buf := buffer.New(tr)

	got, err := buf.Fetch(4, 0)
	assert.NoError(t, err)
	assert.Equal(t, []uint16{100, 101, 102, 103}, got)
}

func TestFetchChunksAt128(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		{Tx: txFetch(0, 128), Rx: rxFetch(128, 0)},
		{Tx: txFetch(128, 64), Rx: rxFetch(64, 128)},
	})
	buf := buffer.New(tr)

	got, err := buf.Fetch(192, 0)
	assert.NoError(t, err)
	assert.Len(t, got, 192)
	assert.Equal(t, uint16(0), got[0])
	assert.Equal(t, uint16(191), got[191])
}

func TestClearIsSingleRoundTrip(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", []transport.TrafficEntry{
		{Tx: append([]byte{protocol.COMMON, protocol.ClearBuffer}, append(protocol.PutU16(0), protocol.PutU16(500)...)...), Rx: []byte{0x01}},
	})
	buf := buffer.New(tr)

	err := buf.Clear(500, 0)
	assert.NoError(t, err)
}

func TestFetchRejectsOutOfRangeRegion(t *testing.T) {
	tr := transport.NewMock("PSLab vMOCK", nil)
	buf := buffer.New(tr)

	_, err := buf.Fetch(10, protocol.MaxSamples-5)
	assert.Error(t, err)
}
