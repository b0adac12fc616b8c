// Package display delivers the tracker's two-line status to whatever is
// watching: the local console log, a remote MQTT topic, or a test recorder.
// The core emits a status/message pair and a power call; rendering beyond
// that is each backend's business.
package display

import "log"

// Display accepts the tracker's two-line status message.
// The control loop guarantees Show is never called while the motor is
// engaged: the motion executor blocks the whole loop, and nothing else
// calls Show.
type Display interface {
	// Show presents the status line and a free-text second line.
	Show(line1, line2 string) error

	// Power turns the physical display on or off. Backends without a
	// power state treat it as a no-op.
	Power(on bool) error

	// Close releases backend resources.
	Close() error
}

// Log writes the display lines to the process log. It is the default
// backend and doubles as the bench-test display with -mock hardware.
type Log struct{}

// Show logs the two lines.
func (Log) Show(line1, line2 string) error {
	log.Printf("display: [%s] [%s]", line1, line2)
	return nil
}

// Power logs the power transition.
func (Log) Power(on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	log.Printf("display: power %s", state)
	return nil
}

// Close is a no-op.
func (Log) Close() error { return nil }

// Multi fans every call out to all backends, returning the first error.
type Multi []Display

// Show shows on every backend.
func (m Multi) Show(line1, line2 string) error {
	var first error
	for _, d := range m {
		if err := d.Show(line1, line2); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Power powers every backend.
func (m Multi) Power(on bool) error {
	var first error
	for _, d := range m {
		if err := d.Power(on); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every backend.
func (m Multi) Close() error {
	var first error
	for _, d := range m {
		if err := d.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
