//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "homenode"

// RealInputs reads inputs from actual hardware using Linux GPIO character device.
type RealInputs struct {
	chip        *gpiocdev.Chip
	motion      *gpiocdev.Line
	switchLED1  *gpiocdev.Line
	switchLED2  *gpiocdev.Line
	switchMotor *gpiocdev.Line
}

// NewRealInputs requests the PIR line (pull-down, active high) and the three
// switch lines (pull-up, pressed pulls low).
func NewRealInputs(pins Pins) (*RealInputs, error) {
	chip, err := gpiocdev.NewChip(pins.Chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealInputs{chip: chip}

	r.motion, err = chip.RequestLine(pins.Motion, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request motion pin %d: %w", pins.Motion, err)
	}
	r.switchLED1, err = chip.RequestLine(pins.SwitchLED1, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request led1 switch pin %d: %w", pins.SwitchLED1, err)
	}
	r.switchLED2, err = chip.RequestLine(pins.SwitchLED2, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request led2 switch pin %d: %w", pins.SwitchLED2, err)
	}
	r.switchMotor, err = chip.RequestLine(pins.SwitchMotor, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request motor switch pin %d: %w", pins.SwitchMotor, err)
	}
	return r, nil
}

// Read returns the logical states. Switches are inverted: raw 0 = pressed.
func (r *RealInputs) Read() (Sample, error) {
	var s Sample

	v, err := r.motion.Value()
	if err != nil {
		return s, fmt.Errorf("read motion pin: %w", err)
	}
	s.Motion = v == 1

	if v, err = r.switchLED1.Value(); err != nil {
		return s, fmt.Errorf("read led1 switch: %w", err)
	}
	s.SwitchLED1 = v == 0

	if v, err = r.switchLED2.Value(); err != nil {
		return s, fmt.Errorf("read led2 switch: %w", err)
	}
	s.SwitchLED2 = v == 0

	if v, err = r.switchMotor.Value(); err != nil {
		return s, fmt.Errorf("read motor switch: %w", err)
	}
	s.SwitchMotor = v == 0

	return s, nil
}

// Close returns the lines to input with pull-down (Pi boot defaults) and
// releases them.
func (r *RealInputs) Close() error {
	var errs []error
	for _, l := range []*gpiocdev.Line{r.motion, r.switchLED1, r.switchLED2, r.switchMotor} {
		errs = append(errs, releaseLine(l))
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RealOutputs drives LED and motor direction lines.
type RealOutputs struct {
	chip    *gpiocdev.Chip
	led1    *gpiocdev.Line
	led2    *gpiocdev.Line
	forward *gpiocdev.Line
	reverse *gpiocdev.Line
}

// NewRealOutputs requests every output line driven low.
func NewRealOutputs(pins Pins) (*RealOutputs, error) {
	chip, err := gpiocdev.NewChip(pins.Chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	o := &RealOutputs{chip: chip}

	lines := []struct {
		dst  **gpiocdev.Line
		pin  int
		name string
	}{
		{&o.led1, pins.LED1, "led1"},
		{&o.led2, pins.LED2, "led2"},
		{&o.forward, pins.MotorForward, "motor forward"},
		{&o.reverse, pins.MotorReverse, "motor reverse"},
	}
	for _, l := range lines {
		line, err := chip.RequestLine(l.pin, gpiocdev.AsOutput(0))
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", l.name, l.pin, err)
		}
		*l.dst = line
	}
	return o, nil
}

// SetLight sets one LED channel.
func (o *RealOutputs) SetLight(channel int, on bool) error {
	var line *gpiocdev.Line
	switch channel {
	case 1:
		line = o.led1
	case 2:
		line = o.led2
	default:
		return fmt.Errorf("unknown light channel %d", channel)
	}
	if err := line.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("set light %d: %w", channel, err)
	}
	return nil
}

// SetMotorLines sets the direction lines. The deasserting line is always
// written first so both are never high at the same time.
func (o *RealOutputs) SetMotorLines(forward, reverse bool) error {
	if forward && reverse {
		return errors.New("refusing to assert both motor direction lines")
	}
	first, second := o.forward, o.reverse
	firstOn, secondOn := forward, reverse
	if forward {
		first, second = o.reverse, o.forward
		firstOn, secondOn = reverse, forward
	}
	if err := first.SetValue(boolToValue(firstOn)); err != nil {
		return fmt.Errorf("set motor line: %w", err)
	}
	if err := second.SetValue(boolToValue(secondOn)); err != nil {
		return fmt.Errorf("set motor line: %w", err)
	}
	return nil
}

// Close drives every output low, then releases the lines.
func (o *RealOutputs) Close() error {
	var errs []error
	for _, l := range []*gpiocdev.Line{o.forward, o.reverse, o.led1, o.led2} {
		if l != nil {
			if err := l.SetValue(0); err != nil {
				errs = append(errs, fmt.Errorf("drive low: %w", err))
			}
		}
		errs = append(errs, releaseLine(l))
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// releaseLine reconfigures a line to match Raspberry Pi boot defaults (input
// with pull-down) before closing it, so external hardware does not hold the
// pin in an unexpected state during early boot.
func releaseLine(l *gpiocdev.Line) error {
	if l == nil {
		return nil
	}
	var errs []error
	if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
	}
	if err := l.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line: %w", err))
	}
	return errors.Join(errs...)
}

func boolToValue(b bool) int {
	if b {
		return 1
	}
	return 0
}
