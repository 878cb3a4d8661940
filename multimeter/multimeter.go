// Package multimeter adds voltage, resistance, and capacitance
// measurement on top of an Oscilloscope (§4.5).
//
// Grounded on pslab/instrument/multimeter.py. Multimeter subclassed
// Oscilloscope there; here it embeds *oscilloscope.Oscilloscope (§9).
package multimeter

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/fossasia/pslab-go/channel"
	pslaberrors "github.com/fossasia/pslab-go/errors"
	"github.com/fossasia/pslab-go/oscilloscope"
	"github.com/fossasia/pslab-go/protocol"
)

// currents are the charging-current options for GET_CAPACITANCE, indexed
// by the firmware's current-range code (550 µA is code 0); currentRanges
// lists those codes smallest current first. Grounded on multimeter.py's
// _CURRENTS/_CURRENTS_RANGES.
var currents = [4]float64{5.5e-4, 5.5e-7, 5.5e-6, 5.5e-5}
var currentRanges = [4]int{1, 2, 3, 0}

const (
	rcResistance  = 1e4
	microsecond   = 1e-6
	defaultStray  = 46e-12
	dischargeTime = 50000
)

// Multimeter measures voltage, resistance, and capacitance using the same
// ADC capture path as Oscilloscope.
type Multimeter struct {
	*oscilloscope.Oscilloscope
	strayCapacitance float64
}

// New returns a Multimeter built on the same transport as scope.
func New(scope *oscilloscope.Oscilloscope) *Multimeter {
	return &Multimeter{Oscilloscope: scope, strayCapacitance: defaultStray}
}

// capRange bounds, grounded on analog.py's INPUT_RANGES["CAP"] = (0, 3.3).
const capMaxVoltage = 3.3

var (
	capacitorChargedVoltage    = 0.9 * capMaxVoltage
	capacitorDischargedVoltage = 0.01 * capMaxVoltage
)

// MeasureVoltage autoranges CH1/CH2 gain (if applicable) then returns the
// voltage on channel, averaged over 16 device-side samples.
func (m *Multimeter) MeasureVoltage(channelName string) (float64, error) {
	if channelName == "" {
		channelName = "VOL"
	}
	if err := m.voltmeterAutorange(channelName); err != nil {
		return 0, err
	}
	return m.measureVoltage(channelName)
}

func (m *Multimeter) measureVoltage(channelName string) (float64, error) {
	c, err := m.channelFor(channelName)
	if err != nil {
		return 0, err
	}
	if err := c.SetResolution(12); err != nil {
		return 0, err
	}

	if err := m.T.SendU8(protocol.ADC); err != nil {
		return 0, err
	}
	if err := m.T.SendU8(protocol.GetVoltageSummed); err != nil {
		return 0, err
	}
	if err := m.T.SendU8(c.Mux); err != nil {
		return 0, err
	}
	rawSum, err := m.T.GetU16()
	if err != nil {
		return 0, err
	}
	if _, err := m.T.GetAck(); err != nil {
		return 0, err
	}
	rawMean := math.Round(float64(rawSum) / 16)
	return c.Scale(int(rawMean)), nil
}

func (m *Multimeter) voltmeterAutorange(channelName string) error {
	if channelName != "CH1" && channelName != "CH2" {
		return nil
	}
	if err := m.SetGain(channelName, 1); err != nil {
		return err
	}
	voltage, err := m.measureVoltage(channelName)
	if err != nil {
		return err
	}

	c, err := m.channelFor(channelName)
	if err != nil {
		return err
	}
	rng := c.Range()
	maxRange := math.Max(rng.Lo, rng.Hi)

	var gain int
	for i := len(channel.GainValues) - 1; i >= 0; i-- {
		gain = channel.GainValues[i]
		bound := maxRange / float64(gain)
		if math.Abs(voltage) < bound {
			break
		}
	}
	return m.SetGain(channelName, gain)
}

func (m *Multimeter) channelFor(channelName string) (*channel.AnalogInput, error) {
	return m.Channel(channelName)
}

// MeasureResistance measures a resistor connected between RES and GND,
// via the pull-up divider formed with a fixed 5.1 kΩ resistor.
func (m *Multimeter) MeasureResistance() (float64, error) {
	voltage, err := m.MeasureVoltage("RES")
	if err != nil {
		return 0, err
	}
	const pullUp = 5.1e3
	maxV := capMaxVoltage
	resolution := maxV / (math.Exp2(12) - 1)
	if voltage >= maxV-resolution {
		return math.Inf(1), nil
	}
	current := (maxV - voltage) / pullUp
	if current == 0 {
		return math.Inf(1), nil
	}
	return voltage / current, nil
}

// setCap drives the CAP pin HIGH or LOW for charge_time microseconds.
func (m *Multimeter) setCap(state byte, chargeTimeUs int) error {
	if err := m.T.SendU8(protocol.ADC); err != nil {
		return err
	}
	if err := m.T.SendU8(protocol.SetCap); err != nil {
		return err
	}
	if err := m.T.SendU8(state); err != nil {
		return err
	}
	if err := m.T.SendU16(uint16(chargeTimeUs)); err != nil {
		return err
	}
	_, err := m.T.GetAck()
	return err
}

func (m *Multimeter) dischargeCapacitor() (float64, error) {
	deadline := time.Now().Add(1 * time.Second)
	voltage, err := m.MeasureVoltage("CAP")
	if err != nil {
		return 0, err
	}
	previous := voltage
	for voltage > capacitorDischargedVoltage {
		if err := m.setCap(0, dischargeTime); err != nil {
			return 0, err
		}
		voltage, err = m.MeasureVoltage("CAP")
		if err != nil {
			return 0, err
		}
		if math.Abs(previous-voltage) < capacitorDischargedVoltage {
			break
		}
		previous = voltage
		if time.Now().After(deadline) {
			break
		}
	}
	return voltage, nil
}

// measureCapacitanceOnce charges CAP for chargeTimeUs microseconds at the
// selected current and trim, then returns the resulting voltage and the
// implied capacitance.
func (m *Multimeter) measureCapacitanceOnce(currentRange, trim, chargeTimeUs int) (float64, float64, error) {
	if _, err := m.dischargeCapacitor(); err != nil {
		return 0, 0, err
	}
	c, err := m.channelFor("CAP")
	if err != nil {
		return 0, 0, err
	}
	if err := c.SetResolution(12); err != nil {
		return 0, 0, err
	}

	if err := m.T.SendU8(protocol.COMMON); err != nil {
		return 0, 0, err
	}
	if err := m.T.SendU8(protocol.GetCapacitance); err != nil {
		return 0, 0, err
	}
	if err := m.T.SendU8(byte(currentRange)); err != nil {
		return 0, 0, err
	}

	var trimByte byte
	if trim < 0 {
		trimByte = byte(int(31-abs(trim)/2)) | 32
	} else {
		trimByte = byte(trim / 2)
	}
	if err := m.T.SendU8(trimByte); err != nil {
		return 0, 0, err
	}
	if err := m.T.SendU16(uint16(chargeTimeUs)); err != nil {
		return 0, 0, err
	}

	time.Sleep(time.Duration(float64(chargeTimeUs) * float64(time.Microsecond)))

	rawVoltage, err := m.T.GetU16()
	if err != nil {
		return 0, 0, err
	}
	voltage := c.Scale(int(rawVoltage))
	if _, err := m.T.GetAck(); err != nil {
		return 0, 0, err
	}

	chargeCurrent := currents[currentRange] * float64(100+trim) / 100
	var capacitance float64
	if voltage != 0 {
		capacitance = chargeCurrent*float64(chargeTimeUs)*microsecond/voltage - m.strayCapacitance
	}
	return voltage, capacitance, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// CalibrateCapacitance recalibrates stray capacitance against an open CAP
// pin. Should be rerun whenever external wiring is attached to CAP.
func (m *Multimeter) CalibrateCapacitance() error {
	for _, chargeTime := range logspaceChargeTimes() {
		if _, err := m.dischargeCapacitor(); err != nil {
			return err
		}
		voltage, capacitance, err := m.measureCapacitanceOnce(1, 0, chargeTime)
		if err != nil {
			return err
		}
		if voltage >= capacitorChargedVoltage {
			m.strayCapacitance += capacitance
			return nil
		}
	}
	return nil
}

// logspaceChargeTimes mirrors np.unique(np.int16(np.logspace(2, 3))): 50
// log-spaced integer points between 100 and 1000 microseconds, deduped.
func logspaceChargeTimes() []int {
	const n = 50
	seen := make(map[int]bool, n)
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		exp := 2 + float64(i)/float64(n-1)
		v := int(math.Pow(10, exp))
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// MeasureCapacitance measures a capacitor connected between CAP and GND,
// first trying each fixed-current charge range, then falling back to an
// RC-decay timing fit for capacitors too large for the fixed-current
// method to settle quickly.
func (m *Multimeter) MeasureCapacitance() (float64, error) {
	for _, currentRange := range currentRanges {
		chargeTime := 10
		for i := 0; i < 10; i++ {
			if chargeTime > 50000 {
				break
			}
			voltage, capacitance, err := m.measureCapacitanceOnce(currentRange, 0, chargeTime)
			if err != nil {
				return 0, err
			}
			ratio := voltage / capacitorChargedVoltage
			if ratio > 0.98 && ratio < 1.02 {
				return capacitance, nil
			}
			if voltage == 0 {
				break
			}
			chargeTime = int(float64(chargeTime) * capacitorChargedVoltage / voltage)
		}
	}
	return m.measureRCCapacitance()
}

// measureRCCapacitance measures large capacitors by capturing the CAP
// pin's discharge curve through the device's fixed 10 kΩ resistor and
// fitting V(t) = V0 * exp(-t/RC) with a log-linear regression, grounded on
// multimeter.py's _measure_rc_capacitance (which used scipy.curve_fit;
// the fit is linearized here per the Go stack's stats library, gonum).
func (m *Multimeter) measureRCCapacitance() (float64, error) {
	capture, err := m.Capture("CAP", protocol.MaxSamples, 10, oscilloscope.CaptureOptions{Block: false})
	if err != nil {
		return 0, err
	}
	x := capture.Timestamps
	for i := range x {
		x[i] *= microsecond
	}

	if err := m.setCap(1, dischargeTime); err != nil {
		return 0, err
	}
	if err := m.setCap(0, dischargeTime); err != nil {
		return 0, err
	}
	fetched, err := m.FetchData()
	if err != nil {
		return 0, err
	}
	if len(fetched.Voltages) == 0 {
		return 0, &pslaberrors.CaptureTimeout{SamplesCaptured: 0, SamplesRequested: protocol.MaxSamples}
	}
	y := fetched.Voltages[0]

	discharchStart := lastIndexGE(y, capacitorChargedVoltage)
	if discharchStart < 0 {
		discharchStart = lastIndexEq(y, maxOf(y))
	}
	x = x[discharchStart:]
	y = y[discharchStart:]

	capLow := minDerivativeIndex(x, y)
	x = x[capLow:]
	y = y[capLow:]

	if zeroIdx := firstIndexEq(y, 0); zeroIdx >= 0 {
		x = x[:zeroIdx]
		y = y[:zeroIdx]
	}

	if len(x) < 2 {
		return 0, &pslaberrors.CaptureTimeout{SamplesCaptured: len(x), SamplesRequested: protocol.MaxSamples}
	}

	t0 := x[0]
	for i := range x {
		x[i] -= t0
	}

	logY := make([]float64, len(y))
	for i, v := range y {
		logY[i] = math.Log(v)
	}

	_, beta := stat.LinearRegression(x, logY, nil, false)
	rcTimeConstant := -1 / beta
	return rcTimeConstant / rcResistance, nil
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

func lastIndexGE(v []float64, threshold float64) int {
	idx := -1
	for i, x := range v {
		if x >= threshold {
			idx = i
		}
	}
	return idx
}

func lastIndexEq(v []float64, target float64) int {
	idx := -1
	for i, x := range v {
		if x == target {
			idx = i
		}
	}
	return idx
}

func firstIndexEq(v []float64, target float64) int {
	for i, x := range v {
		if x == target {
			return i
		}
	}
	return -1
}

func minDerivativeIndex(x, y []float64) int {
	if len(x) < 2 {
		return 0
	}
	minDydx := math.Inf(1)
	minIdx := 0
	for i := 1; i < len(x); i++ {
		dydx := (y[i] - y[i-1]) / (x[i] - x[i-1])
		if dydx < minDydx {
			minDydx = dydx
			minIdx = i - 1
		}
	}
	return minIdx
}
