package logicanalyzer_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fossasia/pslab-go/logicanalyzer"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
)

func newLA(t *testing.T, entries []transport.TrafficEntry) *logicanalyzer.LogicAnalyzer {
	tr := transport.NewMock("PSLab vMOCK", entries)
	la, err := logicanalyzer.New(tr)
	assert.NoError(t, err)
	return la
}

func TestStopSendsOpcode(t *testing.T) {
	la := newLA(t, []transport.TrafficEntry{
		{Tx: []byte{protocol.TIMING, protocol.StopLA}, Rx: []byte{0x01}},
	})
	assert.NoError(t, la.Stop())
}

func TestGetStatesDecodesBitmask(t *testing.T) {
	la := newLA(t, []transport.TrafficEntry{
		{Tx: []byte{protocol.DIN, protocol.GetStates}, Rx: []byte{0x05, 0x01}}, // LA1 | LA3
	})
	states, err := la.GetStates()
	assert.NoError(t, err)
	assert.True(t, states["LA1"])
	assert.False(t, states["LA2"])
	assert.True(t, states["LA3"])
	assert.False(t, states["LA4"])
}

func TestFetchPulseCount(t *testing.T) {
	la := newLA(t, []transport.TrafficEntry{
		{Tx: []byte{protocol.COMMON, protocol.FetchCount}, Rx: append(protocol.PutU16(42), 0x01)},
	})
	n, err := la.FetchPulseCount()
	assert.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestCountPulsesNonBlockingReturnsImmediately(t *testing.T) {
	la := newLA(t, []transport.TrafficEntry{
		// resetPrescaler
		{Tx: []byte{protocol.TIMING, protocol.StartFourChanLA, 0, 0, 0, 0, 0, 0}, Rx: []byte{0x01}},
		{Tx: []byte{protocol.TIMING, protocol.StopLA}, Rx: []byte{0x01}},
		// StartCounting on FRQ (chan num 6)
		{Tx: []byte{protocol.COMMON, protocol.StartCounting, 6}, Rx: []byte{0x01}},
	})
	n, err := la.CountPulses("FRQ", 0, false)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCaptureRejectsTooManyEvents(t *testing.T) {
	la := newLA(t, nil)
	_, err := la.Capture(1, protocol.MaxSamples, logicanalyzer.CaptureOptions{Block: true})
	assert.Error(t, err)
}

func TestCaptureRejectsBadChannelCount(t *testing.T) {
	la := newLA(t, nil)
	_, err := la.Capture(7, 10, logicanalyzer.CaptureOptions{Block: true})
	assert.Error(t, err)
}

// putU32 encodes v little-endian into 4 bytes, matching the device's raw
// long-counter wire format.
func putU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func TestGetProgressTwoChannelUsesQuarterIndexForDatatype32(t *testing.T) {
	// Two-channel capture uses 32-bit counters, so each channel occupies
	// two progress quarters (LA1: 0,1; LA2: 2,3) rather than one apiece.
	// progress[0]=5000 (LA1), progress[1]=777 (LA1's other quarter, must
	// NOT be read as LA2's progress), progress[2]=222 (LA2's actual
	// quarter, the real minimum), progress[3]=999.
	initial := uint16(0)
	v0 := uint16(2 * (5000 + 0*2500))
	v1 := uint16(2 * (777 + 1*2500))
	v2 := uint16(2 * (222 + 2*2500))
	v3 := uint16(2 * (999 + 3*2500))

	rx := append([]byte{}, protocol.PutU16(initial)...)
	rx = append(rx, protocol.PutU16(v0)...)
	rx = append(rx, protocol.PutU16(v1)...)
	rx = append(rx, protocol.PutU16(v2)...)
	rx = append(rx, protocol.PutU16(v3)...)
	rx = append(rx, 0x00, 0x00, 0x01) // state byte, unused byte, ack

	la := newLA(t, []transport.TrafficEntry{
		// Capture(2, 100, {Block:false})
		{Tx: []byte{protocol.TIMING, protocol.StopLA}, Rx: []byte{0x01}},
		{Tx: []byte{protocol.COMMON, protocol.ClearBuffer, 0, 0, 0x10, 0x27}, Rx: []byte{0x01}},
		{Tx: []byte{protocol.TIMING, protocol.StartTwoChanLA, 0xC4, 0x09, 0x00, 0x11, 0x10}, Rx: []byte{0x01}},
		// GetProgress
		{Tx: []byte{protocol.TIMING, protocol.GetInitialDigitalStates}, Rx: rx},
	})

	_, err := la.Capture(2, 100, logicanalyzer.CaptureOptions{Block: false})
	assert.NoError(t, err)

	p, err := la.GetProgress()
	assert.NoError(t, err)
	assert.Equal(t, 222, p)
}

func TestCaptureOneChannelBlockingFetchesLongCounts(t *testing.T) {
	// Build a 2500-slot raw capture buffer: two nonzero counts (10, 20),
	// zeros everywhere else, to exercise the leading/trailing zero trim.
	raw := make([]byte, protocol.MaxSamples)
	copy(raw[0:4], putU32(10))
	copy(raw[4:8], putU32(20))

	la := newLA(t, []transport.TrafficEntry{
		// Stop()
		{Tx: []byte{protocol.TIMING, protocol.StopLA}, Rx: []byte{0x01}},
		// buf.Clear(10000, 0)
		{Tx: []byte{protocol.COMMON, protocol.ClearBuffer, 0, 0, 0x10, 0x27}, Rx: []byte{0x01}},
		// captureOne: trigger channel LA1 (chan 0), trigger mode "disabled" -> 0x00
		{Tx: []byte{protocol.TIMING, protocol.StartAlternateOneChanLA, 0xC4, 0x09, 0x01, 0x00}, Rx: []byte{0x01}},
		// FetchData -> fetchLong for LA1: offset byte 0
		{Tx: []byte{protocol.TIMING, protocol.FetchLongDMAData, 0xC4, 0x09, 0x00}, Rx: append(raw, 0x01)},
	})

	result, err := la.Capture(1, 2, logicanalyzer.CaptureOptions{Modes: []string{"any"}, Block: true})
	assert.NoError(t, err)
	assert.Len(t, result, 1)
	// Raw tick counts at the unprescaled 64 MHz clock convert to
	// microseconds at a 1/64 factor (§4.6).
	assert.InDeltaSlice(t, []float64{10.0 / 64, 20.0 / 64}, result[0], 1e-9)
}
