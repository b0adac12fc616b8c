// Package status owns the tracker's operating state machine and actuator
// position. It is the single writer for both; every motion path consults it
// before engaging the motor and reports faults back through it.
package status

import (
	"fmt"
	"sync"
	"time"
)

// OperatingStatus is the tracker's operating state. Order matters: any
// status at or above MotorSensingError is fatal and blocks all autonomous
// motion until a fresh zero/enable sequence succeeds.
type OperatingStatus int

const (
	// NeedsSetup means the actuator position is unknown and tracking is off.
	NeedsSetup OperatingStatus = iota
	// Tracking means autonomous moves are permitted.
	Tracking
	// TrackingDisabled means position is known but autonomous moves are off.
	TrackingDisabled
	// MotorSensingError means a stall or sensor loss was detected mid-move.
	MotorSensingError
	// ClockFault means the time source reported power loss at boot. Never
	// cleared by software; requires reflashing the clock with correct time.
	ClockFault
)

// String returns the display name for the status.
func (s OperatingStatus) String() string {
	switch s {
	case NeedsSetup:
		return "NEEDS SETUP"
	case Tracking:
		return "TRACKING"
	case TrackingDisabled:
		return "DISABLED"
	case MotorSensingError:
		return "MOTOR/SENSE ERR"
	case ClockFault:
		return "CLOCK FAULT"
	default:
		return "UNKNOWN"
	}
}

// Fatal reports whether the status blocks autonomous motion and
// clock-driven wakeups.
func (s OperatingStatus) Fatal() bool {
	return s >= MotorSensingError
}

// WakeReason describes why the control loop resumed. Unknown must never
// persist past one loop iteration; observing it indicates a bug.
type WakeReason int

const (
	WakeNone WakeReason = iota
	WakeReset
	WakeClockTick
	WakeStatusRequest
	WakeUnknown
)

// String returns the log name for the wake reason.
func (w WakeReason) String() string {
	switch w {
	case WakeNone:
		return "none"
	case WakeReset:
		return "reset"
	case WakeClockTick:
		return "clock-tick"
	case WakeStatusRequest:
		return "status-request"
	default:
		return "unknown"
	}
}

// PositionUnknown is the sentinel for an uncalibrated actuator position.
// Position is intentionally volatile: every reset and every fault returns
// it here, because a stale count cannot be trusted.
const PositionUnknown = -1

// Counts tracks move outcomes since startup.
type Counts struct {
	MovesCompleted int
	MovesAborted   int
	Faults         int
	ManualJogs     int
}

// Snapshot is a point-in-time view of the controller state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Status    OperatingStatus
	Position  int
	FullWest  int
	Counts    Counts
	StartTime time.Time
	Now       time.Time
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// PositionKnown reports whether the snapshot position is calibrated.
func (s Snapshot) PositionKnown() bool {
	return s.Position != PositionUnknown
}

// Line1 renders the first display line: time, position-or-unknown, and the
// tracking flag, sized for a 16-character display.
func (s Snapshot) Line1() string {
	pos := "?"
	if s.PositionKnown() {
		pos = fmt.Sprintf("%d", s.Position)
	}
	flag := "off"
	switch {
	case s.Status == Tracking:
		flag = "trk"
	case s.Status.Fatal():
		flag = "ERR"
	}
	return fmt.Sprintf("%s p=%s %s", s.Now.Format("15:04"), pos, flag)
}

// Controller holds the operating state behind a mutex. The control loop is
// single-threaded, but display backends snapshot from their own goroutines
// (paho callbacks), so access stays synchronized.
type Controller struct {
	mu       sync.Mutex
	status   OperatingStatus
	position int
	wake     WakeReason
	counts   Counts

	startTime time.Time
	fullWest  int
}

// NewController creates a Controller in NeedsSetup with unknown position.
func NewController(startTime time.Time, fullWest int) *Controller {
	return &Controller{
		status:    NeedsSetup,
		position:  PositionUnknown,
		startTime: startTime,
		fullWest:  fullWest,
	}
}

// Status returns the current operating status.
func (c *Controller) Status() OperatingStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsTracking reports whether autonomous moves are permitted.
func (c *Controller) IsTracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == Tracking
}

// IsFatal reports whether the current status blocks all motion.
func (c *Controller) IsFatal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Fatal()
}

// Position returns the current actuator position, or PositionUnknown.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// PositionKnown reports whether the position is calibrated.
func (c *Controller) PositionKnown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position != PositionUnknown
}

// FullWest returns the configured full-west tick count.
func (c *Controller) FullWest() int {
	return c.fullWest
}

// ApplyTick moves the position by delta ticks (-1 for east, +1 for west).
// No-op while the position is unknown: ticks are not countable without a
// reference.
func (c *Controller) ApplyTick(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.position == PositionUnknown {
		return
	}
	c.position += delta
}

// SetZero establishes the current physical location as position zero and
// enables tracking. Succeeds from every prior state except ClockFault,
// which is latched for the session.
func (c *Controller) SetZero() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == ClockFault {
		return
	}
	c.position = 0
	c.status = Tracking
}

// EnableTracking turns tracking on. It is refused while the position is
// unknown (the caller should offer zeroing instead) or while a fatal
// status is latched.
func (c *Controller) EnableTracking() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Fatal() {
		return fmt.Errorf("enable tracking: status %s", c.status)
	}
	if c.position == PositionUnknown {
		return fmt.Errorf("enable tracking: position unknown")
	}
	c.status = Tracking
	return nil
}

// Disable turns tracking off: TrackingDisabled when the position is known,
// NeedsSetup when it is not. Fatal statuses are left latched.
func (c *Controller) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Fatal() {
		return
	}
	if c.position == PositionUnknown {
		c.status = NeedsSetup
	} else {
		c.status = TrackingDisabled
	}
}

// RecordFault invalidates the position and latches MotorSensingError.
// ClockFault outranks it and is preserved.
func (c *Controller) RecordFault() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = PositionUnknown
	c.counts.Faults++
	if c.status != ClockFault {
		c.status = MotorSensingError
	}
}

// LatchClockFault records a time-source power loss detected at boot. The
// status never leaves ClockFault for the rest of the session.
func (c *Controller) LatchClockFault() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = PositionUnknown
	c.status = ClockFault
}

// SetWake records why the loop resumed.
func (c *Controller) SetWake(w WakeReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wake = w
}

// TakeWake returns the pending wake reason and clears it, so an Unknown
// reason can never persist past one loop iteration.
func (c *Controller) TakeWake() WakeReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.wake
	c.wake = WakeNone
	return w
}

// CountMove records a move outcome for the status snapshot.
func (c *Controller) CountMove(completed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if completed {
		c.counts.MovesCompleted++
	} else {
		c.counts.MovesAborted++
	}
}

// CountManualJog records a manual jog for the status snapshot.
func (c *Controller) CountManualJog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts.ManualJogs++
}

// Snapshot returns a point-in-time copy of the controller state with Now
// set to the given time.
func (c *Controller) Snapshot(now time.Time) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Status:    c.status,
		Position:  c.position,
		FullWest:  c.fullWest,
		Counts:    c.counts,
		StartTime: c.startTime,
		Now:       now,
	}
}
