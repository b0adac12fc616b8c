package gpio

import "sync"

// FakeActuator is a test double for the motor plus its pulse sensor. While
// driven (or coasting after a stop) every ReadSensor call advances one time
// quantum of a square-wave pulse train, matching the one-read-per-quantum
// pacing of the motion executor.
type FakeActuator struct {
	mu sync.Mutex

	// PulsePeriod is the full pulse cycle length in quanta (half high,
	// half low). 30 quanta yields one tick per 15 reads with the
	// reference filter tuning.
	PulsePeriod int

	// CoastReads is how many reads after Stop keep producing pulses,
	// simulating mechanical coast-down.
	CoastReads int

	// Jammed freezes the sensor line while driving, simulating a stalled
	// actuator or a broken sensor wire.
	Jammed bool

	// ReadError, if set, is returned by ReadSensor.
	ReadError error

	driving bool
	dir     Direction
	coast   int
	quantum int

	// DriveLog records every Drive call.
	DriveLog []Direction
	// Stops counts Stop calls.
	Stops int
}

// NewFakeActuator returns a FakeActuator with the reference pulse shape.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{PulsePeriod: 30}
}

// Drive engages the fake motor.
func (a *FakeActuator) Drive(d Direction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.driving = true
	a.dir = d
	a.DriveLog = append(a.DriveLog, d)
	return nil
}

// Stop disengages the fake motor and arms the coast-down pulses.
func (a *FakeActuator) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.driving {
		a.coast = a.CoastReads
	}
	a.driving = false
	a.Stops++
	return nil
}

// Driving reports whether the fake motor is currently engaged.
func (a *FakeActuator) Driving() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.driving
}

// ReadSensor returns the pulse level for the current quantum and advances
// time when the actuator is moving or coasting.
func (a *FakeActuator) ReadSensor() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ReadError != nil {
		return false, a.ReadError
	}

	moving := (a.driving && !a.Jammed) || a.coast > 0
	if moving {
		a.quantum++
		if a.coast > 0 {
			a.coast--
		}
	}

	half := a.PulsePeriod / 2
	return (a.quantum % a.PulsePeriod) < half, nil
}

// Quanta returns how many quanta of travel the fake actuator has produced.
func (a *FakeActuator) Quanta() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quantum
}

// FakeButtons is a test double for the user controls. Tests flip buttons
// directly, typically from a fake clock's sleep hook.
type FakeButtons struct {
	mu      sync.Mutex
	pressed [numButtons]bool

	// ReadError, if set, is returned by Pressed and AnyPressed.
	ReadError error
}

// NewFakeButtons returns a FakeButtons with nothing pressed.
func NewFakeButtons() *FakeButtons {
	return &FakeButtons{}
}

// SetPressed sets the held state of a button.
func (f *FakeButtons) SetPressed(b Button, held bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed[b] = held
}

// Release releases every button.
func (f *FakeButtons) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed = [numButtons]bool{}
}

// Pressed reports whether the given button is held.
func (f *FakeButtons) Pressed(b Button) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.pressed[b], nil
}

// AnyPressed reports whether any button is held.
func (f *FakeButtons) AnyPressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	for _, p := range f.pressed {
		if p {
			return true, nil
		}
	}
	return false, nil
}

// FakeLimitSwitch is a test double for the east limit switch.
type FakeLimitSwitch struct {
	mu     sync.Mutex
	active bool

	// TripAfter, when > 0, counts Active polls and trips the switch once
	// that many polls have occurred, simulating the actuator reaching the
	// east limit during a zeroing drive.
	TripAfter int
	polls     int

	// ReadError, if set, is returned by Active.
	ReadError error
}

// SetActive forces the switch state.
func (f *FakeLimitSwitch) SetActive(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = v
}

// Active reports whether the switch is depressed.
func (f *FakeLimitSwitch) Active() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if f.TripAfter > 0 {
		f.polls++
		if f.polls >= f.TripAfter {
			f.active = true
		}
	}
	return f.active, nil
}
