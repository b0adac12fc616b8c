//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Real drives actual hardware through the Linux GPIO character device.
// One struct owns every line; the narrow interfaces in this package let
// each component see only the lines it needs.
type Real struct {
	chip *gpiocdev.Chip

	sensor    *gpiocdev.Line
	motorEast *gpiocdev.Line
	motorWest *gpiocdev.Line
	buttons   map[Button]*gpiocdev.Line
	limit     *gpiocdev.Line
}

// NewReal opens gpiochip0 and requests every configured line.
func NewReal(pins Pins) (*Real, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &Real{chip: chip, buttons: make(map[Button]*gpiocdev.Line)}

	fail := func(err error) (*Real, error) {
		r.Close()
		return nil, err
	}

	// Sensor is an open-collector pulse output; pull it up.
	r.sensor, err = chip.RequestLine(pins.Sensor, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return fail(fmt.Errorf("request sensor pin %d: %w", pins.Sensor, err))
	}

	// Motor direction outputs start disengaged.
	r.motorEast, err = chip.RequestLine(pins.MotorEast, gpiocdev.AsOutput(0))
	if err != nil {
		return fail(fmt.Errorf("request motor east pin %d: %w", pins.MotorEast, err))
	}
	r.motorWest, err = chip.RequestLine(pins.MotorWest, gpiocdev.AsOutput(0))
	if err != nil {
		return fail(fmt.Errorf("request motor west pin %d: %w", pins.MotorWest, err))
	}

	// Buttons are active-low switches to ground.
	btnPins := map[Button]int{
		BtnStatus:   pins.BtnStatus,
		BtnEast:     pins.BtnEast,
		BtnWest:     pins.BtnWest,
		BtnAutoEast: pins.BtnAutoEast,
		BtnAutoWest: pins.BtnAutoWest,
	}
	for b, pin := range btnPins {
		line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			return fail(fmt.Errorf("request %s button pin %d: %w", b, pin, err))
		}
		r.buttons[b] = line
	}

	if pins.Limit > 0 {
		r.limit, err = chip.RequestLine(pins.Limit, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			return fail(fmt.Errorf("request limit switch pin %d: %w", pins.Limit, err))
		}
	}

	return r, nil
}

// ReadSensor returns the instantaneous sensor level. The line is pulled up
// and the sensor sinks it, so raw low = pulse active.
func (r *Real) ReadSensor() (bool, error) {
	v, err := r.sensor.Value()
	if err != nil {
		return false, fmt.Errorf("read sensor: %w", err)
	}
	return v == 0, nil
}

// Drive engages the motor in the given direction, releasing the opposite
// relay first so both H-bridge legs are never energized together.
func (r *Real) Drive(d Direction) error {
	on, off := r.motorWest, r.motorEast
	if d == East {
		on, off = r.motorEast, r.motorWest
	}
	if err := off.SetValue(0); err != nil {
		return fmt.Errorf("drive %s: release opposite: %w", d, err)
	}
	if err := on.SetValue(1); err != nil {
		return fmt.Errorf("drive %s: %w", d, err)
	}
	return nil
}

// Stop disengages both motor outputs. Safe to call repeatedly.
func (r *Real) Stop() error {
	errEast := r.motorEast.SetValue(0)
	errWest := r.motorWest.SetValue(0)
	if errEast != nil {
		return fmt.Errorf("stop motor east leg: %w", errEast)
	}
	if errWest != nil {
		return fmt.Errorf("stop motor west leg: %w", errWest)
	}
	return nil
}

// Pressed reports whether the given button is held (active low).
func (r *Real) Pressed(b Button) (bool, error) {
	line, ok := r.buttons[b]
	if !ok {
		return false, fmt.Errorf("button %s not configured", b)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read %s button: %w", b, err)
	}
	return v == 0, nil
}

// AnyPressed reports whether any button is held.
func (r *Real) AnyPressed() (bool, error) {
	for b := Button(0); b < numButtons; b++ {
		pressed, err := r.Pressed(b)
		if err != nil {
			return false, err
		}
		if pressed {
			return true, nil
		}
	}
	return false, nil
}

// HasLimit reports whether the limit switch line is configured.
func (r *Real) HasLimit() bool {
	return r.limit != nil
}

// Active reports whether the limit switch is depressed (active low).
func (r *Real) Active() (bool, error) {
	if r.limit == nil {
		return false, fmt.Errorf("limit switch not configured")
	}
	v, err := r.limit.Value()
	if err != nil {
		return false, fmt.Errorf("read limit switch: %w", err)
	}
	return v == 0, nil
}

// Close stops the motor, releases every line, and closes the chip.
// Motor outputs are forced low before release so an interrupted move can
// never leave the actuator running.
func (r *Real) Close() error {
	var errs []error

	if r.motorEast != nil {
		if err := r.motorEast.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("park motor east leg: %w", err))
		}
	}
	if r.motorWest != nil {
		if err := r.motorWest.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("park motor west leg: %w", err))
		}
	}

	lines := []*gpiocdev.Line{r.sensor, r.motorEast, r.motorWest, r.limit}
	for _, line := range r.buttons {
		lines = append(lines, line)
	}
	for _, line := range lines {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
