// Package powersupply controls the PSLab's three programmable voltage
// sources (PV1, PV2, PV3) and one programmable current source (PCS).
//
// Grounded on pslab/instrument/power_supply.py. Out-of-range requests are
// clamped to the channel's range rather than rejected (I9, "clamp, don't
// reject"), matching the original's _bound helper.
package powersupply

import (
	pslaberrors "github.com/fossasia/pslab-go/errors"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
	"github.com/fossasia/pslab-go/util"
)

// reference is the DAC's full-scale code, corresponding to output_range[1].
const reference = 3300

// channel is one DAC-backed output, carrying its firmware channel number,
// its voltage or current bounds, and the last value written.
type channel struct {
	num      byte
	lo, hi   float64
	lastSet  float64
	hasValue bool
}

func (c *channel) scale(value float64) int {
	scaled := (value - c.lo) / (c.hi - c.lo)
	return int(scaled * reference)
}

// PowerSupply controls PV1, PV2, PV3, and PCS.
type PowerSupply struct {
	T *transport.Transport

	pv1, pv2, pv3, pcs channel
}

// New returns a PowerSupply over t with every output unset.
func New(t *transport.Transport) *PowerSupply {
	return &PowerSupply{
		T:   t,
		pv1: channel{num: 3, lo: -5, hi: 5},
		pv2: channel{num: 2, lo: -3.3, hi: 3.3},
		pv3: channel{num: 1, lo: 0, hi: 3.3},
		pcs: channel{num: 0, lo: 3.3e-3, hi: 0},
	}
}

// setPower clamps value to c's range (I9), writes the resulting DAC code,
// and returns the actually-applied (clamped) value so the caller can
// detect clamping without a separate error path.
func (p *PowerSupply) setPower(c *channel, value float64) (float64, error) {
	bounded := util.Clamp(value, minOf(c.lo, c.hi), maxOf(c.lo, c.hi))
	output := c.scale(bounded)

	if err := p.T.SendU8(protocol.DAC); err != nil {
		return 0, err
	}
	if err := p.T.SendU8(protocol.SetPower); err != nil {
		return 0, err
	}
	if err := p.T.SendU8(c.num); err != nil {
		return 0, err
	}
	if err := p.T.SendU16(uint16(output)); err != nil {
		return 0, err
	}
	if _, err := p.T.GetAck(); err != nil {
		return 0, err
	}

	c.lastSet = bounded
	c.hasValue = true
	return bounded, nil
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// SetPV1 drives PV1 to value volts, clamped to [-5, 5], and returns the
// actually-applied (clamped) value.
func (p *PowerSupply) SetPV1(value float64) (float64, error) { return p.setPower(&p.pv1, value) }

// PV1 returns the last value SetPV1 wrote, or (0, false) if never set.
func (p *PowerSupply) PV1() (float64, bool) { return p.pv1.lastSet, p.pv1.hasValue }

// SetPV2 drives PV2 to value volts, clamped to [-3.3, 3.3], and returns
// the actually-applied (clamped) value.
func (p *PowerSupply) SetPV2(value float64) (float64, error) { return p.setPower(&p.pv2, value) }

// PV2 returns the last value SetPV2 wrote, or (0, false) if never set.
func (p *PowerSupply) PV2() (float64, bool) { return p.pv2.lastSet, p.pv2.hasValue }

// SetPV3 drives PV3 to value volts, clamped to [0, 3.3], and returns the
// actually-applied (clamped) value.
func (p *PowerSupply) SetPV3(value float64) (float64, error) { return p.setPower(&p.pv3, value) }

// PV3 returns the last value SetPV3 wrote, or (0, false) if never set.
func (p *PowerSupply) PV3() (float64, bool) { return p.pv3.lastSet, p.pv3.hasValue }

// SetPCS drives PCS to value amps, clamped to [0, 3.3e-3], and returns the
// actually-applied (clamped) value. The actual current delivered also
// depends on load resistance (I_max = 3.3V / (1kΩ + R_load)); requesting
// more than a given load can sustain yields a smaller actual current than
// requested, not an error.
func (p *PowerSupply) SetPCS(value float64) (float64, error) { return p.setPower(&p.pcs, value) }

// PCS returns the last value SetPCS wrote, or (0, false) if never set.
func (p *PowerSupply) PCS() (float64, bool) { return p.pcs.lastSet, p.pcs.hasValue }

// voltageChannel maps the §4.10 channel names SetVoltage accepts to
// their backing channel.
func (p *PowerSupply) voltageChannel(name string) (*channel, bool) {
	switch name {
	case "PV1":
		return &p.pv1, true
	case "PV2":
		return &p.pv2, true
	case "PV3":
		return &p.pv3, true
	default:
		return nil, false
	}
}

// SetVoltage drives the named voltage rail ("PV1", "PV2", or "PV3") to
// volts, clamped to that channel's range (I9), and returns the
// actually-applied (clamped) value so the caller can detect clamping
// without a separate error path.
func (p *PowerSupply) SetVoltage(channelName string, volts float64) (float64, error) {
	c, ok := p.voltageChannel(channelName)
	if !ok {
		return 0, &pslaberrors.ArgumentError{Parameter: "channel", Value: channelName}
	}
	return p.setPower(c, volts)
}

// SetCurrent drives PCS to milliamps, clamped to [0, 3.3] mA, and returns
// the actually-applied (clamped) value in milliamps.
func (p *PowerSupply) SetCurrent(milliamps float64) (float64, error) {
	amps, err := p.setPower(&p.pcs, milliamps/1000)
	if err != nil {
		return 0, err
	}
	return amps * 1000, nil
}
