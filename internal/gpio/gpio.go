// Package gpio provides the tracker's hardware lines with abstraction.
// The real implementation uses the Linux GPIO character device.
// The fakes allow testing the motion and calibration logic without hardware.
package gpio

// Direction is the actuator travel direction. East retracts the actuator
// (decreasing position), west extends it (increasing position).
type Direction int

const (
	East Direction = iota
	West
)

// String returns the log name for the direction.
func (d Direction) String() string {
	if d == East {
		return "east"
	}
	return "west"
}

// TickDelta returns the position change of one debounced sensor tick while
// moving in this direction.
func (d Direction) TickDelta() int {
	if d == East {
		return -1
	}
	return 1
}

// SensorReader reads the raw pulse-sensor line. The raw value is noisy
// while the motor runs; callers must debounce it.
type SensorReader interface {
	// ReadSensor returns the instantaneous logical sensor level.
	ReadSensor() (bool, error)
}

// Motor drives the actuator through the motor driver's direction inputs.
// Implementations must make Stop idempotent.
type Motor interface {
	// Drive engages the motor in the given direction.
	Drive(d Direction) error

	// Stop disengages the motor.
	Stop() error
}

// Button identifies one of the user controls.
type Button int

const (
	BtnStatus Button = iota
	BtnEast
	BtnWest
	BtnAutoEast
	BtnAutoWest
	numButtons
)

// String returns the log name for the button.
func (b Button) String() string {
	switch b {
	case BtnStatus:
		return "status"
	case BtnEast:
		return "east"
	case BtnWest:
		return "west"
	case BtnAutoEast:
		return "auto-east"
	case BtnAutoWest:
		return "auto-west"
	default:
		return "invalid"
	}
}

// Buttons reads the debounced user controls by polling.
type Buttons interface {
	// Pressed reports whether the given button is currently held.
	Pressed(b Button) (bool, error)

	// AnyPressed reports whether any button is currently held.
	AnyPressed() (bool, error)
}

// LimitSwitch reads the optional east travel-limit switch used for
// auto-zeroing. Deployments without the switch leave it unconfigured.
type LimitSwitch interface {
	// Active reports whether the switch is currently depressed.
	Active() (bool, error)
}

// Pins holds the BCM line assignments for a deployment.
type Pins struct {
	Sensor    int
	MotorEast int
	MotorWest int

	BtnStatus   int
	BtnEast     int
	BtnWest     int
	BtnAutoEast int
	BtnAutoWest int

	// Limit is the east limit switch input; 0 means not installed.
	Limit int
}

// DefaultPins returns the reference wiring (BCM numbering).
func DefaultPins() Pins {
	return Pins{
		Sensor:      17,
		MotorEast:   23,
		MotorWest:   24,
		BtnStatus:   5,
		BtnEast:     6,
		BtnWest:     13,
		BtnAutoEast: 19,
		BtnAutoWest: 26,
		Limit:       0,
	}
}
