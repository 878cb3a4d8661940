package waveform

import (
	"github.com/fossasia/pslab-go/channel"
	pslaberrors "github.com/fossasia/pslab-go/errors"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
	"github.com/fossasia/pslab-go/util"
)

// digitalOutputs is the fixed wire order the four-channel PWM opcode
// expects, grounded on digital.py's DIGITAL_OUTPUTS.
var digitalOutputs = []string{"SQ1", "SQ2", "SQ3", "SQ4"}

// pwmHighFrequencyLimit is the highest frequency PWMGenerator.Generate
// accepts; faster outputs require MapReferenceClock instead.
const pwmHighFrequencyLimit = 1e7

// PWMGenerator outputs square waves on SQ1..SQ4, all sharing one
// frequency but with independent duty cycle and phase.
type PWMGenerator struct {
	T        *transport.Transport
	channels map[string]*channel.DigitalOutput

	frequency          float64
	referencePrescaler int
}

// NewPWMGenerator returns a PWMGenerator over t with every channel LOW.
func NewPWMGenerator(t *transport.Transport) (*PWMGenerator, error) {
	p := &PWMGenerator{T: t, channels: make(map[string]*channel.DigitalOutput, 4)}
	for _, name := range digitalOutputs {
		c, err := channel.NewDigitalOutput(name)
		if err != nil {
			return nil, err
		}
		p.channels[name] = c
	}
	return p, nil
}

// Frequency returns the common frequency shared by every PWM channel.
func (p *PWMGenerator) Frequency() float64 { return p.frequency }

// Generate outputs PWM signals at frequency on the named channels, with
// per-channel duty cycle (0, 1) and phase [0, 1). Channels not named are
// left untouched. phases[i] is relative to channels[i-1] when len(phases)
// is 1 and len(channels) > 1 (matching the original's cumulative-offset
// convenience form); pass one phase per channel to set them directly.
func (p *PWMGenerator) Generate(channels []string, frequency float64, dutyCycles []float64, phases []float64) error {
	if frequency > pwmHighFrequencyLimit {
		return &pslaberrors.FrequencyOutOfRange{RequestedHz: frequency}
	}
	if frequency <= 0 {
		return &pslaberrors.ArgumentError{Parameter: "frequency", Value: frequency}
	}
	if len(channels) == 0 || len(channels) > 4 {
		return &pslaberrors.ArgumentError{Parameter: "channels", Value: channels}
	}
	if len(dutyCycles) == 1 && len(channels) > 1 {
		v := dutyCycles[0]
		dutyCycles = make([]float64, len(channels))
		for i := range dutyCycles {
			dutyCycles[i] = v
		}
	}
	if len(dutyCycles) != len(channels) {
		return &pslaberrors.ArgumentError{Parameter: "dutyCycles", Value: dutyCycles}
	}
	if len(phases) == 1 && len(channels) > 1 {
		v := phases[0]
		phases = make([]float64, len(channels))
		for i := range phases {
			phases[i] = float64(i) * v
		}
	}
	if len(phases) != len(channels) {
		return &pslaberrors.ArgumentError{Parameter: "phases", Value: phases}
	}

	p.frequency = frequency
	for i, name := range channels {
		c, ok := p.channels[name]
		if !ok {
			return &pslaberrors.ArgumentError{Parameter: "channel", Value: name}
		}
		c.DutyCycle = dutyCycles[i]
		c.Phase = phases[i]
		c.Remapped = false
		c.State = channel.StatePWM
	}

	allDuty := make([]float64, 4)
	allPhase := make([]float64, 4)
	for i, name := range digitalOutputs {
		allDuty[i] = p.channels[name].DutyCycle
		allPhase[i] = p.channels[name].Phase
	}
	if err := p.generate(allDuty, allPhase); err != nil {
		return err
	}

	states := make(map[string]bool, 4)
	levels := make(map[string]bool, 4)
	for _, name := range digitalOutputs {
		c := p.channels[name]
		switch c.State {
		case channel.StateHigh:
			states[name] = true
			levels[name] = true
		case channel.StateLow:
			states[name] = true
			levels[name] = false
		}
	}
	if len(states) > 0 {
		if err := p.SetState(levels); err != nil {
			return err
		}
	}

	var remapped []string
	for _, name := range digitalOutputs {
		if p.channels[name].Remapped {
			remapped = append(remapped, name)
		}
	}
	if len(remapped) > 0 {
		return p.MapReferenceClock(remapped, p.referencePrescaler)
	}
	return nil
}

// generate computes the shared (wavelength, prescaler) pair for
// p.frequency and programs all four PWM channels in one transaction.
func (p *PWMGenerator) generate(dutyCycles, phases []float64) error {
	wavelength, prescaler, err := GetWavelength(p.frequency, 1)
	if err != nil {
		return err
	}
	p.frequency = protocol.ClockRate / float64(wavelength) / float64(prescaler)
	const continuous = 1 << 5

	dutyTicks := make([]int, 4)
	phaseTicks := make([]int, 4)
	for i := range dutyCycles {
		dc := mod1(dutyCycles[i] + phases[i])
		dutyTicks[i] = int(dc * float64(wavelength))
		if dutyTicks[i]-1 < 1 {
			dutyTicks[i] = 1
		} else {
			dutyTicks[i]--
		}

		ph := mod1(phases[i])
		phaseTicks[i] = int(ph * float64(wavelength))
		if phaseTicks[i]-1 < 0 {
			phaseTicks[i] = 0
		} else {
			phaseTicks[i]--
		}
	}

	if err := p.T.SendU8(protocol.WAVEGEN); err != nil {
		return err
	}
	if err := p.T.SendU8(protocol.SQR4); err != nil {
		return err
	}
	if err := p.T.SendU16(uint16(wavelength - 1)); err != nil {
		return err
	}
	if err := p.T.SendU16(uint16(dutyTicks[0])); err != nil {
		return err
	}
	if err := p.T.SendU16(uint16(phaseTicks[1])); err != nil {
		return err
	}
	if err := p.T.SendU16(uint16(dutyTicks[1])); err != nil {
		return err
	}
	if err := p.T.SendU16(uint16(phaseTicks[2])); err != nil {
		return err
	}
	if err := p.T.SendU16(uint16(dutyTicks[2])); err != nil {
		return err
	}
	if err := p.T.SendU16(uint16(phaseTicks[3])); err != nil {
		return err
	}
	if err := p.T.SendU16(uint16(dutyTicks[3])); err != nil {
		return err
	}
	if err := p.T.SendU8(prescalerIndex(prescaler) | continuous); err != nil {
		return err
	}
	_, err = p.T.GetAck()
	return err
}

func mod1(v float64) float64 {
	v -= float64(int(v))
	if v < 0 {
		v++
	}
	return v
}

// SetState drives named channels HIGH (true) or LOW (false), leaving
// every other channel in its current PWM state.
func (p *PWMGenerator) SetState(levels map[string]bool) error {
	var states byte
	for i, name := range digitalOutputs {
		level, ok := levels[name]
		if !ok {
			continue
		}
		c := p.channels[name]
		if level {
			c.DutyCycle = 1
			c.State = channel.StateHigh
			states = util.SetBit(states|c.StateMask(), uint(i), true)
		} else {
			c.DutyCycle = 0
			c.State = channel.StateLow
			states |= c.StateMask()
		}
	}

	if err := p.T.SendU8(protocol.DOUT); err != nil {
		return err
	}
	if err := p.T.SendU8(protocol.SetState); err != nil {
		return err
	}
	if err := p.T.SendU8(states); err != nil {
		return err
	}
	_, err := p.T.GetAck()
	return err
}

// MapReferenceClock bypasses the PWM timer and drives channels directly
// from the internal oscillator at 128MHz/(1<<prescaler), 50% duty cycle.
func (p *PWMGenerator) MapReferenceClock(channels []string, prescaler int) error {
	if err := p.T.SendU8(protocol.WAVEGEN); err != nil {
		return err
	}
	if err := p.T.SendU8(protocol.MapReference); err != nil {
		return err
	}
	p.referencePrescaler = prescaler

	var maps byte
	for _, name := range channels {
		c, ok := p.channels[name]
		if !ok {
			return &pslaberrors.ArgumentError{Parameter: "channel", Value: name}
		}
		c.DutyCycle = 0.5
		c.Phase = 0
		c.Remapped = true
		maps |= c.ReferenceClockMask()
	}

	if err := p.T.SendU8(maps); err != nil {
		return err
	}
	if err := p.T.SendU8(byte(prescaler)); err != nil {
		return err
	}
	_, err := p.T.GetAck()
	return err
}
