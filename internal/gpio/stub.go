//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Real is not available on non-Linux platforms.
type Real struct{}

// NewReal returns an error on non-Linux platforms.
func NewReal(pins Pins) (*Real, error) {
	return nil, errUnsupported
}

// ReadSensor is not implemented on non-Linux platforms.
func (r *Real) ReadSensor() (bool, error) { return false, errUnsupported }

// Drive is not implemented on non-Linux platforms.
func (r *Real) Drive(d Direction) error { return errUnsupported }

// Stop is not implemented on non-Linux platforms.
func (r *Real) Stop() error { return errUnsupported }

// Pressed is not implemented on non-Linux platforms.
func (r *Real) Pressed(b Button) (bool, error) { return false, errUnsupported }

// AnyPressed is not implemented on non-Linux platforms.
func (r *Real) AnyPressed() (bool, error) { return false, errUnsupported }

// HasLimit is not implemented on non-Linux platforms.
func (r *Real) HasLimit() bool { return false }

// Active is not implemented on non-Linux platforms.
func (r *Real) Active() (bool, error) { return false, errUnsupported }

// Close is a no-op on non-Linux platforms.
func (r *Real) Close() error { return nil }
