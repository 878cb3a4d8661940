// Package oscilloscope captures varying voltage signals on up to four
// channels simultaneously (§4.4).
//
// Grounded on pslab/instrument/oscilloscope.py. The original's kwargs-heavy
// capture() becomes CaptureOptions; ADCBufferMixin becomes an embedded
// buffer.Buffer (§9).
package oscilloscope

import (
	"bufio"
	"encoding/csv"
	"math"
	"strconv"
	"time"

	"github.com/fossasia/pslab-go/buffer"
	"github.com/fossasia/pslab-go/channel"
	pslaberrors "github.com/fossasia/pslab-go/errors"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
)

// analogChannelNames is the full set of channels an Oscilloscope can model,
// grounded on analog.py's ANALOG_CHANNELS.
var analogChannelNames = []string{"CH1", "CH2", "CH3", "MIC", "CAP", "RES", "VOL", "AN4"}

// ch234 is the fixed capture order for 3- and 4-channel mode.
var ch234 = []string{"CH2", "CH3", "MIC"}

// minTimegapUs[channels][triggered] is the minimum inter-sample time in
// microseconds, keyed by channel count; 3-channel capture uses the
// 4-channel row.
var minTimegapUs = map[int][2]float64{
	1: {0.5, 0.75},
	2: {0.875, 0.875},
	4: {1.75, 1.75},
}

// Oscilloscope models the PSLab's ADC-driven capture instrument.
type Oscilloscope struct {
	T   *transport.Transport
	buf buffer.Buffer

	channels      map[string]*channel.AnalogInput
	channelOneMap string

	triggerVoltage *float64
	triggerEnabled bool
	triggerChannel string
}

// New returns an Oscilloscope over t, with all analog channels at gain 1.
func New(t *transport.Transport) (*Oscilloscope, error) {
	o := &Oscilloscope{
		T:             t,
		buf:           buffer.New(t),
		channels:      make(map[string]*channel.AnalogInput, len(analogChannelNames)),
		channelOneMap: "CH1",
		triggerChannel: "CH1",
	}
	for _, name := range analogChannelNames {
		ch, err := channel.NewAnalogInput(name)
		if err != nil {
			return nil, err
		}
		o.channels[name] = ch
	}
	if err := o.setGain("CH1", 1); err != nil {
		return nil, err
	}
	if err := o.setGain("CH2", 1); err != nil {
		return nil, err
	}
	return o, nil
}

// CaptureOptions carries capture's optional parameters (§4.4).
type CaptureOptions struct {
	// Trigger, if non-nil, sets the trigger voltage before capture starts.
	Trigger *float64
	// TriggerChannel selects which channel is watched for the trigger
	// condition. Defaults to the first sampled channel.
	TriggerChannel string
	// DisableTrigger forces triggering off regardless of prior state.
	DisableTrigger bool
	// Block controls whether Capture waits for the device to finish before
	// returning voltages (§4.4, non-blocking capture).
	Block bool
}

// Capture is one capture's result: shared timestamps and one voltage slice
// per sampled channel, in capture order.
type Capture struct {
	ChannelNames []string
	Timestamps   []float64
	Voltages     [][]float64
}

// Capture samples `samples` points at `timegapUs` microsecond spacing from
// either a named single channel or the first N channels of CH1/CH2/CH3/MIC.
// channelSpec must be 1, 2, 3, 4, or a channel name (which forces 1
// channel). Resolution is chosen automatically: 12-bit only for a single
// untriggered channel sampled at timegap >= 1 µs (I2).
func (o *Oscilloscope) Capture(channelSpec interface{}, samples int, timegapUs float64, opts CaptureOptions) (*Capture, error) {
	channels := 1
	switch v := channelSpec.(type) {
	case string:
		o.channelOneMap = v
		channels = 1
	case int:
		channels = v
	default:
		return nil, &pslaberrors.ArgumentError{Parameter: "channelSpec", Value: channelSpec}
	}

	if opts.TriggerChannel == "" {
		o.triggerChannel = o.channelOneMap
	} else {
		o.triggerChannel = opts.TriggerChannel
	}

	if opts.DisableTrigger {
		o.triggerEnabled = false
	} else if opts.Trigger != nil {
		if o.triggerVoltage == nil || *opts.Trigger != *o.triggerVoltage {
			if err := o.ConfigureTrigger(o.triggerChannel, *opts.Trigger, 0); err != nil {
				return nil, err
			}
		}
	}

	if err := o.checkCaptureArgs(channels, samples, timegapUs); err != nil {
		return nil, err
	}
	timegapUs = math.Round(timegapUs*8) / 8

	// Reset gain; another Oscilloscope on the same device could have
	// changed it.
	if err := o.setGain("CH1", o.channels["CH1"].Gain()); err != nil {
		return nil, err
	}
	if err := o.setGain("CH2", o.channels["CH2"].Gain()); err != nil {
		return nil, err
	}

	if err := o.startCapture(channels, samples, timegapUs); err != nil {
		return nil, err
	}

	timestamps := make([]float64, samples)
	for i := range timestamps {
		timestamps[i] = timegapUs * float64(i)
	}

	if !opts.Block {
		return &Capture{Timestamps: timestamps}, nil
	}

	time.Sleep(time.Duration(float64(samples) * timegapUs * float64(time.Microsecond)))
	for {
		done, _, err := o.Progress()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	result, err := o.FetchData()
	if err != nil {
		return nil, err
	}
	result.Timestamps = timestamps

	if channels < len(result.ChannelNames) {
		result.ChannelNames = result.ChannelNames[:channels]
		result.Voltages = result.Voltages[:channels]
	}
	return result, nil
}

func (o *Oscilloscope) checkCaptureArgs(channels, samples int, timegapUs float64) error {
	switch channels {
	case 1, 2, 3, 4:
	default:
		return &pslaberrors.ArgumentError{Parameter: "channels", Value: channels}
	}

	maxSamples := protocol.MaxSamples / channels
	if samples <= 0 || samples > maxSamples {
		return &pslaberrors.ArgumentError{Parameter: "samples", Value: samples}
	}

	idx := channels
	if channels == 3 {
		idx = 4
	}
	triggered := 0
	if o.triggerEnabled {
		triggered = 1
	}
	bounds := minTimegapUs[idx]
	minGap := bounds[triggered]
	if timegapUs < minGap {
		return &pslaberrors.TimegapTooSmall{RequestedUs: timegapUs, MinimumUs: minGap}
	}

	if _, ok := o.channels[o.channelOneMap]; !ok {
		return &pslaberrors.ArgumentError{Parameter: "channel", Value: o.channelOneMap}
	}
	return nil
}

func (o *Oscilloscope) startCapture(channels, samples int, timegapUs float64) error {
	for _, c := range o.channels {
		c.SamplesInBuffer = 0
		c.BufferIdx = -1
	}

	first := o.channels[o.channelOneMap]
	if err := first.SetResolution(10); err != nil {
		return err
	}
	chosa := first.Mux

	if err := o.T.SendU8(protocol.ADC); err != nil {
		return err
	}

	const ch123sa = 0
	first.SamplesInBuffer = samples
	first.BufferIdx = 0

	switch channels {
	case 1:
		if o.triggerEnabled {
			if err := o.T.SendU8(protocol.CaptureOne); err != nil {
				return err
			}
			if err := o.T.SendU8(chosa | 0x80); err != nil {
				return err
			}
		} else if timegapUs >= 1 {
			if err := first.SetResolution(12); err != nil {
				return err
			}
			if err := o.T.SendU8(protocol.CaptureDMASpeed); err != nil {
				return err
			}
			if err := o.T.SendU8(chosa | 0x80); err != nil {
				return err
			}
		} else {
			if err := o.T.SendU8(protocol.CaptureDMASpeed); err != nil {
				return err
			}
			if err := o.T.SendU8(chosa); err != nil {
				return err
			}
		}
	case 2:
		second := o.channels["CH2"]
		if err := second.SetResolution(10); err != nil {
			return err
		}
		second.SamplesInBuffer = samples
		second.BufferIdx = samples
		if err := o.T.SendU8(protocol.CaptureTwo); err != nil {
			return err
		}
		b := chosa
		if o.triggerEnabled {
			b |= 0x80
		}
		if err := o.T.SendU8(b); err != nil {
			return err
		}
	default:
		for i, name := range ch234 {
			c := o.channels[name]
			if err := c.SetResolution(10); err != nil {
				return err
			}
			c.SamplesInBuffer = samples
			c.BufferIdx = (i + 1) * samples
		}
		if err := o.T.SendU8(protocol.CaptureFour); err != nil {
			return err
		}
		b := chosa | (ch123sa << 4)
		if o.triggerEnabled {
			b |= 0x80
		}
		if err := o.T.SendU8(b); err != nil {
			return err
		}
	}

	if err := o.T.SendU16(uint16(samples)); err != nil {
		return err
	}
	if err := o.T.SendU16(uint16(timegapUs * 8)); err != nil {
		return err
	}
	_, err := o.T.GetAck()
	return err
}

// FetchData reads back every channel currently holding captured samples,
// scaled to volts, in capture order.
func (o *Oscilloscope) FetchData() (*Capture, error) {
	result := &Capture{}
	seen := make(map[string]bool, len(analogChannelNames))
	for _, name := range append([]string{o.channelOneMap}, ch234...) {
		c, ok := o.channels[name]
		if !ok || seen[name] || c.SamplesInBuffer == 0 {
			continue
		}
		seen[name] = true
		raw, err := o.buf.Fetch(c.SamplesInBuffer, c.BufferIdx)
		if err != nil {
			return result, err
		}
		volts := make([]float64, len(raw))
		for i, v := range raw {
			volts[i] = c.Scale(int(v))
		}
		result.ChannelNames = append(result.ChannelNames, name)
		result.Voltages = append(result.Voltages, volts)
	}
	return result, nil
}

// Progress reports whether an in-flight capture has finished and how many
// samples the device currently holds.
func (o *Oscilloscope) Progress() (bool, int, error) {
	if err := o.T.SendU8(protocol.ADC); err != nil {
		return false, 0, err
	}
	if err := o.T.SendU8(protocol.GetCaptureStatus); err != nil {
		return false, 0, err
	}
	done, err := o.T.GetU8()
	if err != nil {
		return false, 0, err
	}
	samples, err := o.T.GetU16()
	if err != nil {
		return false, 0, err
	}
	if _, err := o.T.GetAck(); err != nil {
		return false, 0, err
	}
	return done != 0, int(samples), nil
}

// ConfigureTrigger sets trigger channel, voltage, and prescaler for 10-bit
// capture, enabling the trigger. The capture routines wait for a rising
// edge crossing voltage and time out after 8 ms regardless.
func (o *Oscilloscope) ConfigureTrigger(channelName string, voltage float64, prescaler byte) error {
	o.triggerChannel = channelName

	var chanIdx byte
	switch {
	case channelName == o.channelOneMap:
		chanIdx = 0
	default:
		found := false
		for i, name := range ch234 {
			if name == channelName {
				chanIdx = byte(i + 1)
				found = true
				break
			}
		}
		if !found {
			return &pslaberrors.TriggerNotSupportedOnChannel{Channel: channelName}
		}
	}

	c, ok := o.channels[channelName]
	if !ok {
		return &pslaberrors.ArgumentError{Parameter: "channel", Value: channelName}
	}

	if err := o.T.SendU8(protocol.ADC); err != nil {
		return err
	}
	if err := o.T.SendU8(protocol.ConfigureTrigger); err != nil {
		return err
	}
	if err := o.T.SendU8((prescaler << 4) | (1 << chanIdx)); err != nil {
		return err
	}
	level := c.Unscale(voltage)
	if err := o.T.SendU16(uint16(level)); err != nil {
		return err
	}
	if _, err := o.T.GetAck(); err != nil {
		return err
	}
	o.triggerVoltage = &voltage
	o.triggerEnabled = true
	return nil
}

// DisableTrigger turns off triggering without altering the stored voltage.
func (o *Oscilloscope) DisableTrigger() { o.triggerEnabled = false }

// TriggerEnabled reports whether a capture will wait for the trigger
// condition.
func (o *Oscilloscope) TriggerEnabled() bool { return o.triggerEnabled }

// Channel returns the live per-channel model backing name, shared with
// whatever captures and scales this Oscilloscope performs. Multimeter uses
// this to read and mutate gain/resolution/mux state rather than modeling
// its own copy (§9).
func (o *Oscilloscope) Channel(name string) (*channel.AnalogInput, error) {
	c, ok := o.channels[name]
	if !ok {
		return nil, &pslaberrors.ArgumentError{Parameter: "channel", Value: name}
	}
	return c, nil
}

// SetGain sets channelName's PGA gain directly to one of channel.GainValues.
func (o *Oscilloscope) SetGain(channelName string, gain int) error {
	return o.setGain(channelName, gain)
}

// voltageRanges is the user-facing range ladder for SelectRange, grounded
// on oscilloscope.py's select_range.
var voltageRanges = []float64{16, 8, 4, 3, 2, 1.5, 1, 0.5}

// SelectRange sets CH1 or CH2's gain so its full-scale range best matches
// voltageRange, one of {16, 8, 4, 3, 2, 1.5, 1, 0.5}.
func (o *Oscilloscope) SelectRange(channelName string, voltageRange float64) error {
	idx := -1
	for i, r := range voltageRanges {
		if r == voltageRange {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &pslaberrors.ArgumentError{Parameter: "voltageRange", Value: voltageRange}
	}
	return o.setGain(channelName, channel.GainValues[idx])
}

// setGain updates the channel's gain model and pushes it to the PGA. The
// original also saved and restored SPI bus parameters around this call
// when the bus wasn't already configured for the PGA; SPI bus access is
// out of scope here (§9), so this always issues SET_PGA_GAIN directly.
func (o *Oscilloscope) setGain(channelName string, gain int) error {
	c, ok := o.channels[channelName]
	if !ok {
		return &pslaberrors.ArgumentError{Parameter: "channel", Value: channelName}
	}
	if err := c.SetGain(gain); err != nil {
		return err
	}
	if err := o.T.SendU8(protocol.ADC); err != nil {
		return err
	}
	if err := o.T.SendU8(protocol.SetPGAGain); err != nil {
		return err
	}
	if c.Pga != nil {
		if err := o.T.SendU8(byte(*c.Pga)); err != nil {
			return err
		}
	} else {
		if err := o.T.SendU8(0); err != nil {
			return err
		}
	}
	if err := o.T.SendU8(c.GainIndex()); err != nil {
		return err
	}
	_, err := o.T.GetAck()
	return err
}

// EncodeCSV writes a Capture's timestamps and voltages as CSV, one column
// per channel plus a leading time column.
func (c *Capture) EncodeCSV(w *bufio.Writer) error {
	writer := csv.NewWriter(w)
	header := append([]string{"time"}, c.ChannelNames...)
	if err := writer.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for i, t := range c.Timestamps {
		row[0] = strconv.FormatFloat(t, 'G', -1, 64)
		for j, volts := range c.Voltages {
			row[j+1] = strconv.FormatFloat(volts[i], 'G', -1, 64)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
