// Package session aggregates every PSLab instrument behind one connected
// transport, the way a caller who needs more than one instrument at once
// would otherwise have to wire up by hand.
//
// Grounded on pslab/sciencelab.py's ScienceLab, which does the same for
// the Python library (minus I2C/NRF24L01 peripheral bus access, out of
// scope per DESIGN.md).
package session

import (
	"github.com/fossasia/pslab-go/logicanalyzer"
	"github.com/fossasia/pslab-go/multimeter"
	"github.com/fossasia/pslab-go/oscilloscope"
	"github.com/fossasia/pslab-go/powersupply"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
	"github.com/fossasia/pslab-go/waveform"
)

// Session owns one Transport and one instance of every instrument that
// shares it.
type Session struct {
	T *transport.Transport

	LogicAnalyzer     *logicanalyzer.LogicAnalyzer
	Oscilloscope      *oscilloscope.Oscilloscope
	Multimeter        *multimeter.Multimeter
	WaveformGenerator *waveform.WaveformGenerator
	PWMGenerator      *waveform.PWMGenerator
	PowerSupply       *powersupply.PowerSupply
}

// Open connects to the device named by cfg and wires up every
// instrument over the shared transport. A zero Baud or TimeoutSeconds
// falls back to transport.New's own defaults.
func Open(cfg Config) (*Session, error) {
	t := transport.New(cfg.Port, cfg.Baud, cfg.Timeout())
	if err := t.Connect(); err != nil {
		return nil, err
	}
	return newSession(t)
}

// Wrap builds a Session over an already-connected Transport, e.g. one
// returned by transport.NewMock in tests.
func Wrap(t *transport.Transport) (*Session, error) {
	return newSession(t)
}

func newSession(t *transport.Transport) (*Session, error) {
	scope, err := oscilloscope.New(t)
	if err != nil {
		return nil, err
	}
	wavegen, err := waveform.New(t)
	if err != nil {
		return nil, err
	}
	pwmgen, err := waveform.NewPWMGenerator(t)
	if err != nil {
		return nil, err
	}
	la, err := logicanalyzer.New(t)
	if err != nil {
		return nil, err
	}

	return &Session{
		T:                 t,
		LogicAnalyzer:     la,
		Oscilloscope:      scope,
		Multimeter:        multimeter.New(scope),
		WaveformGenerator: wavegen,
		PWMGenerator:      pwmgen,
		PowerSupply:       powersupply.New(t),
	}, nil
}

// Close disconnects the underlying transport.
func (s *Session) Close() error {
	return s.T.Disconnect()
}

// ctmuCurrentRange3 is the Charge Time Measurement Unit current range
// used for on-die temperature sensing, grounded on sciencelab.py's
// hardcoded cs=3 in the `temperature` property.
const ctmuCurrentRange3 = 3

// Temperature reads the MCU's on-die temperature in degrees Celsius via
// the Charge Time Measurement Unit, grounded on sciencelab.py's
// `temperature` property (current-source range 3 only; the original
// also special-cases ranges 1 and 2 but ScienceLab itself only ever
// requests range 3).
func (s *Session) Temperature() (float64, error) {
	v, err := s.ctmuVoltage(0b11110, ctmuCurrentRange3, false)
	if err != nil {
		return 0, err
	}
	return (760 - v*1000) / 1.56, nil
}

func (s *Session) ctmuVoltage(pin int, currentRange int, tgen bool) (float64, error) {
	tgenBit := 0
	if tgen {
		tgenBit = 1
	}
	if err := s.T.SendU8(protocol.ADC); err != nil {
		return 0, err
	}
	if err := s.T.SendU8(protocol.GetCTMUVoltage); err != nil {
		return 0, err
	}
	if err := s.T.SendU8(byte(pin) | byte(currentRange<<5) | byte(tgenBit<<7)); err != nil {
		return 0, err
	}
	raw, err := s.T.GetU16()
	if err != nil {
		return 0, err
	}
	if _, err := s.T.GetAck(); err != nil {
		return 0, err
	}

	rawVoltage := float64(raw) / 16
	const vmax = 3.3
	const resolution = 12
	return vmax * rawVoltage / float64((1<<resolution)-1), nil
}

