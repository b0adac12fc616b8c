// Package motion executes actuator moves: drive in one direction until a
// predicate holds, debouncing the pulse sensor continuously, with stall
// detection as the primary containment against a jammed actuator, a broken
// sensor wire, or motor noise swamping the filter.
package motion

import (
	"errors"
	"fmt"
	"time"

	"github.com/jpangburn/solar-tracker/internal/clock"
	"github.com/jpangburn/solar-tracker/internal/filter"
	"github.com/jpangburn/solar-tracker/internal/gpio"
	"github.com/jpangburn/solar-tracker/internal/status"
)

// Result is the outcome of a move.
type Result int

const (
	// Completed means the reached predicate became true.
	Completed Result = iota
	// Aborted means the move stopped early: user abort, stall, or error.
	Aborted
	// Skipped means the request was refused before the motor engaged.
	Skipped
)

// String returns the log name for the result.
func (r Result) String() string {
	switch r {
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "skipped"
	}
}

// Transient request errors: logged and skipped by callers, never fatal.
var (
	ErrPositionUnknown = errors.New("position unknown")
	ErrOutOfRange      = errors.New("target out of range")
	ErrBelowMinimum    = errors.New("movement below minimum threshold")
)

// ErrStall is returned when the position stops changing for longer than the
// stall window during a move with known position. The fault side effects
// (position invalidated, MotorSensingError latched) happen before return.
var ErrStall = errors.New("no sensor ticks within stall window")

// Config holds the motion tuning. All values are empirically tuned per
// actuator, so they come from the installation configuration.
type Config struct {
	// Quantum is the filter sampling period (reference: 1ms).
	Quantum time.Duration
	// BatchQuanta is how many quanta run between abort/stall checks
	// (reference: 20). Worst-case abort latency is one batch plus settle.
	BatchQuanta int
	// StallWindow is how long the position may stay unchanged mid-move
	// before a fault is declared (reference: 750ms).
	StallWindow time.Duration
	// SettleWindow is how long the filter keeps running after the motor
	// stops, to capture coast-down ticks (reference: 300ms).
	SettleWindow time.Duration
	// MinimumMovement is the smallest |target-position| worth moving for.
	MinimumMovement int
	// Filter is the position filter tuning for each move.
	Filter filter.Config
}

// DefaultConfig returns the reference motion tuning.
func DefaultConfig() Config {
	return Config{
		Quantum:         time.Millisecond,
		BatchQuanta:     20,
		StallWindow:     750 * time.Millisecond,
		SettleWindow:    300 * time.Millisecond,
		MinimumMovement: 10,
		Filter:          filter.DefaultConfig(),
	}
}

// Executor runs moves against the motor and sensor. Its polling loop blocks
// the whole control loop intentionally: the filter needs tight, regular
// sampling while the motor runs, so nothing else (display included) may
// proceed during a move.
type Executor struct {
	motor  gpio.Motor
	sensor gpio.SensorReader
	ctrl   *status.Controller
	clk    clock.Clock
	cfg    Config
}

// New creates an Executor.
func New(motor gpio.Motor, sensor gpio.SensorReader, ctrl *status.Controller, clk clock.Clock, cfg Config) *Executor {
	return &Executor{motor: motor, sensor: sensor, ctrl: ctrl, clk: clk, cfg: cfg}
}

// Run primes the filter, engages the motor in dir, and samples the sensor
// once per quantum until reached() holds. abort() is sampled between
// batches; a true abort disables tracking. Every return path stops the
// motor and runs the settle window, so the motor can never be left engaged.
func (e *Executor) Run(dir gpio.Direction, reached, abort func() bool) (result Result, err error) {
	f := filter.New(e.cfg.Filter)
	if perr := f.Prime(e.pacedRead); perr != nil {
		return Aborted, fmt.Errorf("prime filter: %w", perr)
	}

	if derr := e.motor.Drive(dir); derr != nil {
		// Belt and braces: a half-applied drive must not stay engaged.
		e.motor.Stop()
		return Aborted, fmt.Errorf("engage motor %s: %w", dir, derr)
	}

	defer func() {
		if serr := e.stopAndSettle(f, dir); serr != nil && err == nil {
			err = serr
		}
	}()

	lastPos := e.ctrl.Position()
	lastChange := e.clk.Now()

	for {
		for i := 0; i < e.cfg.BatchQuanta; i++ {
			raw, rerr := e.sensor.ReadSensor()
			if rerr != nil {
				e.ctrl.RecordFault()
				return Aborted, fmt.Errorf("read sensor: %w", rerr)
			}
			if f.Advance(raw) != filter.NoFlip {
				e.ctrl.ApplyTick(dir.TickDelta())
			}
			e.clk.Sleep(e.cfg.Quantum)

			// Checked every quantum so the motor halts exactly at the
			// predicate, never a tick past it.
			if reached() {
				return Completed, nil
			}
		}

		if abort() {
			e.ctrl.Disable()
			return Aborted, nil
		}

		// Stall detection needs a reference: it only runs while the
		// position is known.
		now := e.clk.Now()
		if pos := e.ctrl.Position(); pos != status.PositionUnknown {
			if pos != lastPos {
				lastPos = pos
				lastChange = now
			} else if now.Sub(lastChange) > e.cfg.StallWindow {
				e.ctrl.RecordFault()
				return Aborted, ErrStall
			}
		}
	}
}

// MoveTo runs toward an absolute position, deriving the direction and the
// reached predicate from the controller's position. Requests that are out
// of range, below the minimum-movement threshold, or made with unknown
// position are skipped with a transient error.
func (e *Executor) MoveTo(target int, abort func() bool) (Result, error) {
	pos := e.ctrl.Position()
	if pos == status.PositionUnknown {
		return Skipped, ErrPositionUnknown
	}
	if target < 0 || target > e.ctrl.FullWest() {
		return Skipped, fmt.Errorf("%w: %d not in [0,%d]", ErrOutOfRange, target, e.ctrl.FullWest())
	}

	delta := target - pos
	if delta < 0 {
		delta = -delta
	}
	if delta < e.cfg.MinimumMovement {
		return Skipped, fmt.Errorf("%w: %d ticks", ErrBelowMinimum, delta)
	}

	dir := gpio.West
	if target < pos {
		dir = gpio.East
	}

	reached := func() bool {
		p := e.ctrl.Position()
		if p == status.PositionUnknown {
			// A fault mid-move invalidated the position; keep running
			// until the stall path returns.
			return false
		}
		if dir == gpio.East {
			return p <= target
		}
		return p >= target
	}

	return e.Run(dir, reached, abort)
}

// pacedRead samples the sensor once and waits one quantum, the same pacing
// the move loop uses.
func (e *Executor) pacedRead() (bool, error) {
	raw, err := e.sensor.ReadSensor()
	if err != nil {
		return false, err
	}
	e.clk.Sleep(e.cfg.Quantum)
	return raw, nil
}

// stopAndSettle stops the motor unconditionally and keeps filtering for the
// settle window so coast-down ticks are still counted.
func (e *Executor) stopAndSettle(f *filter.Filter, dir gpio.Direction) error {
	stopErr := e.motor.Stop()

	quanta := int(e.cfg.SettleWindow / e.cfg.Quantum)
	for i := 0; i < quanta; i++ {
		raw, err := e.sensor.ReadSensor()
		if err != nil {
			if stopErr == nil {
				stopErr = fmt.Errorf("settle read: %w", err)
			}
			break
		}
		if f.Advance(raw) != filter.NoFlip {
			e.ctrl.ApplyTick(dir.TickDelta())
		}
		e.clk.Sleep(e.cfg.Quantum)
	}

	if stopErr != nil {
		return fmt.Errorf("stop motor: %w", stopErr)
	}
	return nil
}
