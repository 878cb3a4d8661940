// Package logicanalyzer investigates digital signals on up to four
// channels simultaneously (§4.6), the largest and most timing-sensitive
// capture mode the device supports.
//
// Grounded on pslab/instrument/logic_analyzer.py. ADCBufferMixin becomes
// an embedded buffer.Buffer; OrderedDict-based channel dedup becomes a
// plain ordered slice walk (§9).
package logicanalyzer

import (
	"encoding/binary"
	"time"

	"github.com/fossasia/pslab-go/buffer"
	"github.com/fossasia/pslab-go/channel"
	pslaberrors "github.com/fossasia/pslab-go/errors"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
	"github.com/fossasia/pslab-go/util"
)

// captureDelay is the two clock cycle skew between channels in
// multi-channel capture, grounded on logic_analyzer.py's _CAPTURE_DELAY.
const captureDelay = 2

// maxEvents is the per-channel event capacity, CP.MAX_SAMPLES // 4.
const maxEvents = protocol.MaxSamples / 4

// modeCodes maps a capture-mode name to the channel-level logic mode
// encoding shared by every channel count, grounded on digital.py's MODES.
var modeCodes = map[string]int{
	"disabled":        0,
	"any":              1,
	"falling":          2,
	"rising":           3,
	"four rising":      4,
	"sixteen rising":    5,
}

// triggerModeCodes1/2/4 re-encode trigger_mode per channel count: the
// firmware uses different numeric values for one-, two-, and four-channel
// capture, grounded on logic_analyzer.py's _configure_trigger.
var triggerModeCodes1 = map[string]int{"disabled": 0, "any": 1, "falling": 2, "rising": 3, "four rising": 4, "sixteen rising": 5}
var triggerModeCodes2 = map[string]int{"disabled": 0, "falling": 3, "rising": 1}
var triggerModeCodes4 = map[string]int{"disabled": 0, "falling": 1, "rising": 3}

// channelOrder is the fixed channel-selection order for multi-channel
// capture.
var channelOrder = []string{"LA1", "LA2", "LA3", "LA4"}

// LogicAnalyzer models the PSLab's digital event-timestamping instrument.
type LogicAnalyzer struct {
	T   *transport.Transport
	buf buffer.Buffer

	channels map[string]*channel.DigitalInput

	channelOneMap string
	channelTwoMap string

	triggerChannel string
	triggerMode    string
	prescalerIdx   int
	trimmed        int
}

// digitalInputNames is every channel LogicAnalyzer models, grounded on
// digital.py's DIGITAL_INPUTS.
var digitalInputNames = []string{"LA1", "LA2", "LA3", "LA4", "RES", "EXT", "FRQ"}

// New returns a LogicAnalyzer over t with all channels idle and triggering
// disabled.
func New(t *transport.Transport) (*LogicAnalyzer, error) {
	la := &LogicAnalyzer{
		T:              t,
		buf:            buffer.New(t),
		channels:       make(map[string]*channel.DigitalInput, len(digitalInputNames)),
		channelOneMap:  "LA1",
		channelTwoMap:  "LA2",
		triggerChannel: "LA1",
		triggerMode:    "disabled",
	}
	for _, name := range digitalInputNames {
		c, err := channel.NewDigitalInput(name)
		if err != nil {
			return nil, err
		}
		la.channels[name] = c
	}
	return la, nil
}

// CaptureOptions carries Capture's optional parameters (§4.6).
type CaptureOptions struct {
	// Timeout bounds blocking capture; partial results are returned if it
	// elapses before `events` events arrive on every channel.
	Timeout time.Duration
	// Modes gives the logic-edge type to capture per channel, in capture
	// order. Defaults to "any" on every channel.
	Modes []string
	// E2ETime is the maximum expected time between events, used only in
	// three/four-channel mode to pick a 16-bit counter prescaler that
	// avoids rollover miscounts.
	E2ETime time.Duration
	// Block controls whether Capture waits for events before returning.
	Block bool
}

// Capture starts an event capture on 1, 2, 3, or 4 channels (LA1..LA4 in
// that order), or on an explicitly named channel or pair of channels.
// channelSpec is 1, 2, 3, 4, a channel name, or a [2]string pair.
func (la *LogicAnalyzer) Capture(channelSpec interface{}, events int, opts CaptureOptions) ([][]float64, error) {
	channels, err := la.resolveChannelSpec(channelSpec)
	if err != nil {
		return nil, err
	}
	if events > maxEvents {
		return nil, &pslaberrors.ArgumentError{Parameter: "events", Value: events}
	}
	if channels < 1 || channels > 4 {
		return nil, &pslaberrors.ArgumentError{Parameter: "channels", Value: channels}
	}

	if err := la.Stop(); err != nil {
		return nil, err
	}
	la.prescalerIdx = 0
	if err := la.buf.Clear(protocol.MaxSamples, 0); err != nil {
		return nil, err
	}
	la.invalidateBuffer()

	triggerCode, err := la.configureTriggerCode(channels)
	if err != nil {
		return nil, err
	}

	modes := opts.Modes
	if len(modes) == 0 {
		modes = []string{"any", "any", "any", "any"}
	}
	modeValues := make([]int, channels)
	for i := 0; i < channels; i++ {
		m := "any"
		if i < len(modes) {
			m = modes[i]
		}
		code, ok := modeCodes[m]
		if !ok {
			return nil, &pslaberrors.ArgumentError{Parameter: "modes", Value: m}
		}
		modeValues[i] = code
	}

	order := []string{la.channelOneMap, la.channelTwoMap, "LA3", "LA4"}[:channels]
	for i, name := range order {
		c, ok := la.channels[name]
		if !ok {
			return nil, &pslaberrors.ArgumentError{Parameter: "channel", Value: name}
		}
		c.EventsInBuffer = events
		if channels < 3 {
			c.Datatype = 32
		} else {
			c.Datatype = 16
		}
		mult := 2
		if c.Datatype == 16 {
			mult = 1
		}
		c.BufferIdx = maxEvents * i * mult
		c.LogicMode = channel.LogicMode(modeValues[i])
	}

	switch channels {
	case 1:
		if err := la.captureOne(triggerCode); err != nil {
			return nil, err
		}
	case 2:
		if err := la.captureTwo(triggerCode); err != nil {
			return nil, err
		}
	default:
		if err := la.captureFour(opts.E2ETime, triggerCode); err != nil {
			return nil, err
		}
	}

	if !opts.Block {
		return nil, nil
	}

	start := time.Now()
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 1 * time.Second
	}
	timestamps, err := la.FetchData()
	if err != nil {
		return nil, err
	}
	progress := minLen(timestamps[:channels])
	for progress < events {
		timestamps, err = la.FetchData()
		if err != nil {
			return nil, err
		}
		progress = minLen(timestamps[:channels])
		if time.Since(start) >= timeout {
			break
		}
		if progress >= maxEvents-la.trimmed {
			break
		}
	}

	out := make([][]float64, channels)
	for i := 0; i < channels; i++ {
		t := timestamps[i]
		if len(t) > events {
			t = t[:events]
		}
		out[i] = t
	}
	return out, nil
}

func (la *LogicAnalyzer) resolveChannelSpec(spec interface{}) (int, error) {
	switch v := spec.(type) {
	case int:
		return v, nil
	case string:
		la.channelOneMap = v
		return 1, nil
	case [2]string:
		la.channelOneMap = v[0]
		la.channelTwoMap = v[1]
		return 2, nil
	default:
		return 0, &pslaberrors.ArgumentError{Parameter: "channelSpec", Value: spec}
	}
}

func minLen(slices [][]float64) int {
	if len(slices) == 0 {
		return 0
	}
	m := len(slices[0])
	for _, s := range slices[1:] {
		if len(s) < m {
			m = len(s)
		}
	}
	return m
}

func (la *LogicAnalyzer) invalidateBuffer() {
	for _, c := range la.channels {
		c.EventsInBuffer = 0
		c.BufferIdx = -1
	}
}

// configureTriggerCode re-encodes the stored trigger mode name for the
// given channel count and returns the combined (channel<<shift | mode)
// byte each capture routine sends, per _configure_trigger/_capture_*.
func (la *LogicAnalyzer) configureTriggerCode(channels int) (byte, error) {
	var table map[string]int
	switch channels {
	case 1:
		table = triggerModeCodes1
	case 2:
		table = triggerModeCodes2
	default:
		table = triggerModeCodes4
	}
	code, ok := table[la.triggerMode]
	if !ok {
		return 0, &pslaberrors.ArgumentError{Parameter: "triggerMode", Value: la.triggerMode}
	}

	c, ok := la.channels[la.triggerChannel]
	if !ok {
		return 0, &pslaberrors.ArgumentError{Parameter: "triggerChannel", Value: la.triggerChannel}
	}

	switch channels {
	case 1, 2:
		return byte(c.ChanNum<<4) | byte(code), nil
	default:
		var bit int
		switch c.ChanNum {
		case 0:
			bit = 4
		case 1:
			bit = 8
		case 2:
			bit = 16
		default:
			return 0, &pslaberrors.TriggerNotSupportedOnChannel{Channel: la.triggerChannel}
		}
		return byte(bit | code), nil
	}
}

func (la *LogicAnalyzer) captureOne(triggerByte byte) error {
	c := la.channels[la.channelOneMap]
	if err := la.T.SendU8(protocol.TIMING); err != nil {
		return err
	}
	if err := la.T.SendU8(protocol.StartAlternateOneChanLA); err != nil {
		return err
	}
	if err := la.T.SendU16(maxEvents); err != nil {
		return err
	}
	if err := la.T.SendU8(byte(c.ChanNum<<4) | byte(c.LogicMode)); err != nil {
		return err
	}
	if err := la.T.SendU8(triggerByte); err != nil {
		return err
	}
	_, err := la.T.GetAck()
	return err
}

func (la *LogicAnalyzer) captureTwo(triggerByte byte) error {
	one := la.channels[la.channelOneMap]
	two := la.channels[la.channelTwoMap]
	if err := la.T.SendU8(protocol.TIMING); err != nil {
		return err
	}
	if err := la.T.SendU8(protocol.StartTwoChanLA); err != nil {
		return err
	}
	if err := la.T.SendU16(maxEvents); err != nil {
		return err
	}
	if err := la.T.SendU8(triggerByte); err != nil {
		return err
	}
	if err := la.T.SendU8(byte(one.LogicMode) | byte(two.LogicMode)<<4); err != nil {
		return err
	}
	if err := la.T.SendU8(byte(one.ChanNum) | byte(two.ChanNum)<<4); err != nil {
		return err
	}
	_, err := la.T.GetAck()
	return err
}

// rolloverPeriod is (2^16 - 1) / ClockRate seconds, the 16-bit counter's
// unprescaled rollover time.
var rolloverPeriod = float64(1<<16-1) / protocol.ClockRate

func (la *LogicAnalyzer) captureFour(e2eTime time.Duration, triggerByte byte) error {
	e2eSeconds := e2eTime.Seconds()

	switch {
	case e2eSeconds > rolloverPeriod*float64(protocol.PrescalerLadder[3]):
		return &pslaberrors.TimegapTooLarge{RequestedUs: e2eSeconds * 1e6, MaximumUs: rolloverPeriod * float64(protocol.PrescalerLadder[3]) * 1e6}
	case e2eSeconds > rolloverPeriod*float64(protocol.PrescalerLadder[2]):
		la.prescalerIdx = 3
	case e2eSeconds > rolloverPeriod*float64(protocol.PrescalerLadder[1]):
		la.prescalerIdx = 2
	case e2eSeconds > rolloverPeriod:
		la.prescalerIdx = 1
	default:
		la.prescalerIdx = 0
	}

	if err := la.T.SendU8(protocol.TIMING); err != nil {
		return err
	}
	if err := la.T.SendU8(protocol.StartFourChanLA); err != nil {
		return err
	}
	if err := la.T.SendU16(maxEvents); err != nil {
		return err
	}

	modeWord := uint16(la.channels["LA1"].LogicMode) |
		uint16(la.channels["LA2"].LogicMode)<<4 |
		uint16(la.channels["LA3"].LogicMode)<<8 |
		uint16(la.channels["LA4"].LogicMode)<<12
	if err := la.T.SendU16(modeWord); err != nil {
		return err
	}
	if err := la.T.SendU8(byte(la.prescalerIdx)); err != nil {
		return err
	}
	if err := la.T.SendU8(triggerByte); err != nil {
		return err
	}
	_, err := la.T.GetAck()
	return err
}

// FetchData collects whatever events are currently captured for every
// channel that has an active capture, converting counter ticks to
// microsecond timestamps.
func (la *LogicAnalyzer) FetchData() ([][]float64, error) {
	seen := make(map[string]bool, 4)
	order := []string{}
	for _, name := range []string{la.channelOneMap, la.channelTwoMap, "LA3", "LA4"} {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}

	var rawCounts [][]uint32
	for _, name := range order {
		c := la.channels[name]
		if c.EventsInBuffer == 0 {
			continue
		}
		var raw []uint32
		var err error
		if c.Datatype == 32 {
			raw, err = la.fetchLong(c)
		} else {
			raw, err = la.fetchInt(c)
		}
		if err != nil {
			return nil, err
		}
		rawCounts = append(rawCounts, raw)
	}

	prescalerScale := []float64{1.0 / 64, 1.0 / 8, 1.0, 4.0}[la.prescalerIdx]
	delay := 0
	if la.prescalerIdx == 0 {
		delay = captureDelay
	}

	timestamps := make([][]float64, len(rawCounts))
	for i, raw := range rawCounts {
		ts := make([]float64, len(raw))
		for j, v := range raw {
			ts[j] = (float64(v) + float64(i*delay)) * prescalerScale
		}
		timestamps[i] = ts
	}
	return timestamps, nil
}

// fetchLong reads the raw 10000-byte capture region directly (bypassing
// the chunked buffer façade, matching _fetch_long's single unchunked read)
// and decodes it as 2500 little-endian u32 counter values.
func (la *LogicAnalyzer) fetchLong(c *channel.DigitalInput) ([]uint32, error) {
	if err := la.T.SendU8(protocol.TIMING); err != nil {
		return nil, err
	}
	if err := la.T.SendU8(protocol.FetchLongDMAData); err != nil {
		return nil, err
	}
	if err := la.T.SendU16(maxEvents); err != nil {
		return nil, err
	}
	if err := la.T.SendU8(byte(c.BufferIdx / 5000)); err != nil {
		return nil, err
	}
	raw, err := la.T.Read(protocol.MaxSamples)
	if err != nil {
		return nil, err
	}
	if _, err := la.T.GetAck(); err != nil {
		return nil, err
	}

	values := make([]uint32, maxEvents)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
	}

	trimmedValues, trimmedCount := trimZerosBothEnds(values)
	la.trimmed = trimmedCount
	return trimmedValues, nil
}

func (la *LogicAnalyzer) fetchInt(c *channel.DigitalInput) ([]uint32, error) {
	raw, err := la.buf.Fetch(maxEvents, c.BufferIdx)
	if err != nil {
		return nil, err
	}
	values := make([]uint32, len(raw))
	for i, v := range raw {
		values[i] = uint32(v)
	}

	trimmedValues, trimmedCount := trimZerosBothEnds(values)
	if trimmedCount > 0 {
		// Keep one leading zero: an event at counter value 0 is real.
		trimmedValues = append([]uint32{0}, trimmedValues...)
		trimmedCount--
	}
	la.trimmed = trimmedCount

	rollover := uint32(0)
	for i := 1; i < len(trimmedValues); i++ {
		if int64(trimmedValues[i])+int64(rollover)-int64(trimmedValues[i-1]) <= 0 {
			rollover += 1<<16 - 1
		}
		trimmedValues[i] += rollover
	}
	return trimmedValues, nil
}

// trimZerosBothEnds trims trailing zeros, then leading zeros, returning
// the result and the count of leading zeros removed (matching
// logic_analyzer.py's trimmed-counter bookkeeping, which measures the
// latter only: np.trim_zeros "b" then "f", with self._trimmed set to the
// difference between those two steps).
func trimZerosBothEnds(v []uint32) ([]uint32, int) {
	end := len(v)
	for end > 0 && v[end-1] == 0 {
		end--
	}
	v = v[:end]
	pretrim := len(v)

	start := 0
	for start < len(v) && v[start] == 0 {
		start++
	}
	v = v[start:]
	return v, pretrim - len(v)
}

// GetProgress returns the number of events currently held in the buffer,
// the minimum across every active channel.
func (la *LogicAnalyzer) GetProgress() (int, error) {
	_, progress, err := la.initialStatesAndProgress()
	if err != nil {
		return 0, err
	}
	active := []int{}
	a := 0
	for _, name := range channelOrder {
		c := la.channels[name]
		if c.EventsInBuffer == 0 {
			continue
		}
		active = append(active, a)
		if c.Datatype == 16 {
			a++
		} else {
			a += 2
		}
	}
	p := maxEvents
	for _, idx := range active {
		if idx < len(progress) && progress[idx] < p {
			p = progress[idx]
		}
	}
	return p, nil
}

// GetInitialStates returns the level each LA channel held at the start of
// the most recent capture.
func (la *LogicAnalyzer) GetInitialStates() (map[string]bool, error) {
	states, _, err := la.initialStatesAndProgress()
	return states, err
}

func (la *LogicAnalyzer) initialStatesAndProgress() (map[string]bool, []int, error) {
	if err := la.T.SendU8(protocol.TIMING); err != nil {
		return nil, nil, err
	}
	if err := la.T.SendU8(protocol.GetInitialDigitalStates); err != nil {
		return nil, nil, err
	}
	initial, err := la.T.GetU16()
	if err != nil {
		return nil, nil, err
	}

	progress := make([]int, 4)
	for i := 0; i < 4; i++ {
		v, err := la.T.GetU16()
		if err != nil {
			return nil, nil, err
		}
		progress[i] = (int(v)-int(initial))/2 - i*maxEvents
	}

	stateByte, err := la.T.GetU8()
	if err != nil {
		return nil, nil, err
	}
	if _, err := la.T.GetU8(); err != nil { // INITIAL_DIGITAL_STATES_ERR, unused
		return nil, nil, err
	}
	if _, err := la.T.GetAck(); err != nil {
		return nil, nil, err
	}

	for i, p := range progress {
		if p == 0 {
			progress[i] = maxEvents
		} else if p < 0 {
			progress[i] = 0
		}
	}

	states := map[string]bool{
		"LA1": stateByte&1 != 0,
		"LA2": stateByte&2 != 0,
		"LA3": stateByte&4 != 0,
		"LA4": stateByte&8 != 0,
	}
	return states, progress, nil
}

// ConfigureTrigger sets the channel and edge type the next Capture call
// will wait for before starting to record events.
func (la *LogicAnalyzer) ConfigureTrigger(triggerChannel, triggerMode string) {
	la.triggerChannel = triggerChannel
	la.triggerMode = triggerMode
}

// Stop halts a running capture.
func (la *LogicAnalyzer) Stop() error {
	if err := la.T.SendU8(protocol.TIMING); err != nil {
		return err
	}
	if err := la.T.SendU8(protocol.StopLA); err != nil {
		return err
	}
	_, err := la.T.GetAck()
	return err
}

// GetStates returns the instantaneous level of every LA channel.
func (la *LogicAnalyzer) GetStates() (map[string]bool, error) {
	if err := la.T.SendU8(protocol.DIN); err != nil {
		return nil, err
	}
	if err := la.T.SendU8(protocol.GetStates); err != nil {
		return nil, err
	}
	s, err := la.T.GetU8()
	if err != nil {
		return nil, err
	}
	if _, err := la.T.GetAck(); err != nil {
		return nil, err
	}
	return map[string]bool{
		"LA1": util.GetBit(s, 0),
		"LA2": util.GetBit(s, 1),
		"LA3": util.GetBit(s, 2),
		"LA4": util.GetBit(s, 3),
	}, nil
}

// CountPulses counts rising edges on channel for interval (1s by default
// if zero), blocking unless block is false. The counter is 16 bits and
// rolls over at 65535 pulses.
func (la *LogicAnalyzer) CountPulses(channelName string, interval time.Duration, block bool) (int, error) {
	if err := la.resetPrescaler(); err != nil {
		return 0, err
	}
	c, ok := la.channels[channelName]
	if !ok {
		return 0, &pslaberrors.ArgumentError{Parameter: "channel", Value: channelName}
	}
	if err := la.T.SendU8(protocol.COMMON); err != nil {
		return 0, err
	}
	if err := la.T.SendU8(protocol.StartCounting); err != nil {
		return 0, err
	}
	if err := la.T.SendU8(byte(c.ChanNum)); err != nil {
		return 0, err
	}
	if _, err := la.T.GetAck(); err != nil {
		return 0, err
	}

	if !block {
		return 0, nil
	}
	if interval == 0 {
		interval = 1 * time.Second
	}
	time.Sleep(interval)
	return la.FetchPulseCount()
}

// FetchPulseCount returns the number of pulses counted since CountPulses.
func (la *LogicAnalyzer) FetchPulseCount() (int, error) {
	if err := la.T.SendU8(protocol.COMMON); err != nil {
		return 0, err
	}
	if err := la.T.SendU8(protocol.FetchCount); err != nil {
		return 0, err
	}
	count, err := la.T.GetU16()
	if err != nil {
		return 0, err
	}
	if _, err := la.T.GetAck(); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (la *LogicAnalyzer) resetPrescaler() error {
	if err := la.T.SendU8(protocol.TIMING); err != nil {
		return err
	}
	if err := la.T.SendU8(protocol.StartFourChanLA); err != nil {
		return err
	}
	if err := la.T.SendU16(0); err != nil {
		return err
	}
	if err := la.T.SendU16(0); err != nil {
		return err
	}
	if err := la.T.SendU8(0); err != nil {
		return err
	}
	if err := la.T.SendU8(0); err != nil {
		return err
	}
	if _, err := la.T.GetAck(); err != nil {
		return err
	}
	if err := la.Stop(); err != nil {
		return err
	}
	la.prescalerIdx = 0
	return nil
}

// MeasureFrequency measures channel's frequency. By default it captures
// 16 rising edges in software and derives the period; set
// simultaneousOscilloscope to use a slower but oscilloscope-compatible
// firmware counter instead.
func (la *LogicAnalyzer) MeasureFrequency(channelName string, simultaneousOscilloscope bool, timeout time.Duration) (float64, error) {
	if simultaneousOscilloscope {
		return la.measureFrequencyFirmware(channelName, timeout, true)
	}

	tmp := la.channelOneMap
	la.channelOneMap = channelName
	result, err := la.Capture(1, 2, CaptureOptions{Modes: []string{"sixteen rising"}, Timeout: timeout, Block: true})
	la.channelOneMap = tmp
	if err != nil {
		return 0, err
	}

	var frequency float64
	if len(result) > 0 && len(result[0]) >= 2 {
		t := result[0]
		period := (t[1] - t[0]) * 1e-6 / 16
		if period != 0 {
			frequency = 1 / period
		}
	}

	if frequency >= 1e7 {
		return la.getHighFrequency(channelName)
	}
	return frequency, nil
}

func (la *LogicAnalyzer) measureFrequencyFirmware(channelName string, timeout time.Duration, retry bool) (float64, error) {
	c, ok := la.channels[channelName]
	if !ok {
		return 0, &pslaberrors.ArgumentError{Parameter: "channel", Value: channelName}
	}
	if err := la.T.SendU8(protocol.COMMON); err != nil {
		return 0, err
	}
	if err := la.T.SendU8(protocol.GetFrequency); err != nil {
		return 0, err
	}
	if err := la.T.SendU16(uint16(int(timeout.Seconds()*protocol.ClockRate) >> 16)); err != nil {
		return 0, err
	}
	if err := la.T.SendU8(byte(c.ChanNum)); err != nil {
		return 0, err
	}
	la.T.WaitForData(timeout)

	errFlag, err := la.T.GetU8()
	if err != nil {
		return 0, err
	}
	t0, err := la.T.GetU32()
	if err != nil {
		return 0, err
	}
	t1, err := la.T.GetU32()
	if err != nil {
		return 0, err
	}
	if _, err := la.T.GetAck(); err != nil {
		return 0, err
	}

	const edges = 16
	period := float64(int64(t1)-int64(t0)) / edges / protocol.ClockRate

	if errFlag != 0 || period == 0 {
		if retry {
			return la.measureFrequencyFirmware(channelName, timeout, false)
		}
		return 0, nil
	}
	return 1 / period, nil
}

// getHighFrequency measures signals above 10 MHz by gating a 32-bit
// counter for 100 ms.
func (la *LogicAnalyzer) getHighFrequency(channelName string) (float64, error) {
	c, ok := la.channels[channelName]
	if !ok {
		return 0, &pslaberrors.ArgumentError{Parameter: "channel", Value: channelName}
	}
	if err := la.T.SendU8(protocol.COMMON); err != nil {
		return 0, err
	}
	if err := la.T.SendU8(protocol.GetAlternateHighFrequency); err != nil {
		return 0, err
	}
	if err := la.T.SendU8(byte(c.ChanNum)); err != nil {
		return 0, err
	}
	scale, err := la.T.GetU8()
	if err != nil {
		return 0, err
	}
	counter, err := la.T.GetU32()
	if err != nil {
		return 0, err
	}
	if _, err := la.T.GetAck(); err != nil {
		return 0, err
	}
	return float64(scale) * float64(counter) / 1e-1, nil
}

// MeasureDutyCycle measures a signal's wavelength (in microseconds) and
// duty cycle by triggering on a rising edge and timing two subsequent
// edges.
func (la *LogicAnalyzer) MeasureDutyCycle(channelName string, timeout time.Duration) (wavelength, dutyCycle float64, err error) {
	tmpMode, tmpChannel := la.triggerMode, la.triggerChannel
	la.ConfigureTrigger(channelName, "rising")
	tmpMap := la.channelOneMap
	la.channelOneMap = channelName

	result, capErr := la.Capture(1, 3, CaptureOptions{Modes: []string{"any"}, Timeout: timeout, Block: true})
	la.channelOneMap = tmpMap
	la.ConfigureTrigger(tmpChannel, tmpMode)
	if capErr != nil {
		return 0, 0, capErr
	}
	if len(result) == 0 || len(result[0]) < 3 {
		return 0, 0, &pslaberrors.CaptureTimeout{SamplesCaptured: len(result[0]), SamplesRequested: 3}
	}
	t := result[0]
	period := t[2] - t[0]
	duty := 1 - (t[1]-t[0])/period
	return period, duty, nil
}

// MeasureInterval measures the time in microseconds between an event on
// channels[0] (mode modes[0]) and an event on channels[1] (mode modes[1]).
// A negative result means the second channel's event happened first.
func (la *LogicAnalyzer) MeasureInterval(channels [2]string, modes [2]string, timeout time.Duration) (float64, error) {
	tmpTriggerChannel, tmpTriggerMode := la.triggerChannel, la.triggerMode
	la.ConfigureTrigger(channels[0], la.triggerMode)
	tmpOne, tmpTwo := la.channelOneMap, la.channelTwoMap
	la.channelOneMap = channels[0]
	la.channelTwoMap = channels[1]

	var t1, t2 float64
	var err error
	if channels[0] == channels[1] {
		result, capErr := la.Capture(1, 34, CaptureOptions{Modes: []string{"any"}, Timeout: timeout, Block: true})
		if capErr != nil {
			err = capErr
		} else if len(result) > 0 {
			t := result[0]
			initialStates, stateErr := la.GetInitialStates()
			if stateErr != nil {
				err = stateErr
			} else {
				initial := initialStates[la.channelOneMap]
				t1 = firstEvent(t, modes[0], initial)
				if modes[0] == modes[1] {
					idx := 1
					initial2 := !initial
					if modes[1] == "any" {
						idx = 1
						initial2 = initial
					} else {
						idx = 2
						initial2 = initial
					}
					if idx < len(t) {
						t2 = firstEvent(t[idx:], modes[1], initial2)
					}
				} else {
					t2 = firstEvent(t, modes[1], initial)
				}
			}
		}
	} else {
		result, capErr := la.Capture(2, 1, CaptureOptions{Modes: modes[:], Timeout: timeout, Block: true})
		if capErr != nil {
			err = capErr
		} else if len(result) == 2 && len(result[0]) > 0 && len(result[1]) > 0 {
			t1 = result[0][0]
			t2 = result[1][0]
		}
	}

	la.ConfigureTrigger(tmpTriggerChannel, tmpTriggerMode)
	la.channelOneMap = tmpOne
	la.channelTwoMap = tmpTwo
	if err != nil {
		return 0, err
	}
	return t2 - t1, nil
}

// firstEvent picks the timestamp of the first qualifying edge in events
// given the channel's initial level, grounded on
// logic_analyzer.py's _get_first_event.
func firstEvent(events []float64, mode string, initial bool) float64 {
	idx := 0
	switch mode {
	case "any":
		idx = 0
	case "rising":
		if initial {
			idx = 1
		}
	case "falling":
		if !initial {
			idx = 1
		}
	case "four rising":
		return nthFromParity(events, initial, 3)
	case "sixteen rising":
		return nthFromParity(events, initial, 15)
	}
	if idx < len(events) {
		return events[idx]
	}
	return 0
}

// nthFromParity returns events[initial::2][n], i.e. every other event
// starting at index 0 or 1 depending on initial, picking the n:th of
// those.
func nthFromParity(events []float64, initial bool, n int) float64 {
	start := 0
	if initial {
		start = 1
	}
	count := 0
	for i := start; i < len(events); i += 2 {
		if count == n {
			return events[i]
		}
		count++
	}
	return 0
}

// XY is a plottable step-function rendering of one channel's timestamps.
type XY struct {
	X []float64
	Y []bool
}

// GetXY turns capture timestamps into plottable step functions, one per
// channel, given the initial level of each channel at capture start.
func (la *LogicAnalyzer) GetXY(timestamps [][]float64, initialStates map[string]bool) ([]XY, error) {
	var err error
	if initialStates == nil {
		initialStates, err = la.GetInitialStates()
		if err != nil {
			return nil, err
		}
	}

	order := []string{la.channelOneMap, la.channelTwoMap, "LA3", "LA4"}
	if len(timestamps) < len(order) {
		order = order[:len(timestamps)]
	}

	var out []XY
	for i, name := range order {
		c, ok := la.channels[name]
		if !ok || c.EventsInBuffer == 0 {
			continue
		}
		out = append(out, channelXY(c.LogicMode, initialStates[name], timestamps[i]))
	}
	return out, nil
}

func channelXY(mode channel.LogicMode, initial bool, timestamps []float64) XY {
	x := make([]float64, 1+3*len(timestamps))
	for i, t := range timestamps {
		x[1+3*i] = t
		x[2+3*i] = t
		x[3+3*i] = t
	}
	y := make([]bool, len(x))

	switch mode {
	case channel.LogicAny:
		y[0] = initial
		for i := 1; i < len(x); i += 3 {
			y[i] = y[i-1]
			y[i+1] = !y[i]
			y[i+2] = y[i+1]
		}
	case channel.LogicFalling:
		y[0] = true
		for i := 1; i < len(x); i += 3 {
			y[i] = true
			y[i+1] = false
			y[i+2] = true
		}
	default:
		y[0] = false
		for i := 1; i < len(x); i += 3 {
			y[i] = false
			y[i+1] = true
			y[i+2] = false
		}
	}
	return XY{X: x, Y: y}
}
