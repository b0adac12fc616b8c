// Package calib runs the button-driven interaction session: manual jog,
// auto-traverse to a limit, limit-switch auto-zero, and the timed
// zero/enable ritual that gates tracking. A session is entered on reset or
// on a user status request and exits after a fixed idle period, after which
// the control loop resumes autonomous tracking.
package calib

import (
	"context"
	"log"
	"time"

	"github.com/jpangburn/solar-tracker/internal/clock"
	"github.com/jpangburn/solar-tracker/internal/display"
	"github.com/jpangburn/solar-tracker/internal/gpio"
	"github.com/jpangburn/solar-tracker/internal/motion"
	"github.com/jpangburn/solar-tracker/internal/status"
)

// Config holds the interaction timing. All values come from installation
// configuration; the defaults are the reference tuning.
type Config struct {
	// IdleTimeout ends the session after this long with no button activity.
	IdleTimeout time.Duration
	// ConfirmWindow bounds each zero/enable confirmation prompt.
	ConfirmWindow time.Duration
	// WarnDelay separates enabling tracking from the first possible
	// autonomous move, so hands are clear of the mechanism.
	WarnDelay time.Duration
	// ButtonSettle is the debounce delay before a press is trusted.
	ButtonSettle time.Duration
	// PollInterval paces the button polling loop.
	PollInterval time.Duration
	// ZeroBackoff is how many ticks to back west off the limit switch.
	ZeroBackoff int
	// FullWest is the west traverse limit in ticks.
	FullWest int
}

// DefaultConfig returns the reference interaction tuning.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   15 * time.Second,
		ConfirmWindow: 5 * time.Second,
		WarnDelay:     3 * time.Second,
		ButtonSettle:  30 * time.Millisecond,
		PollInterval:  50 * time.Millisecond,
		ZeroBackoff:   5,
		FullWest:      2300,
	}
}

// Session is one bounded run of the interaction state machine.
type Session struct {
	buttons gpio.Buttons
	limit   gpio.LimitSwitch // nil when the switch is not installed
	exec    *motion.Executor
	ctrl    *status.Controller
	disp    display.Display
	clk     clock.Clock
	cfg     Config
}

// New creates a Session. limit may be nil for installations without the
// east limit switch; the auto-east button then runs a plain traverse.
func New(buttons gpio.Buttons, limit gpio.LimitSwitch, exec *motion.Executor,
	ctrl *status.Controller, disp display.Display, clk clock.Clock, cfg Config) *Session {
	return &Session{
		buttons: buttons,
		limit:   limit,
		exec:    exec,
		ctrl:    ctrl,
		disp:    disp,
		clk:     clk,
		cfg:     cfg,
	}
}

// Run polls the buttons until the idle timeout expires with no activity or
// ctx is cancelled. The display is powered for the whole session and off
// afterwards.
func (s *Session) Run(ctx context.Context) {
	if err := s.disp.Power(true); err != nil {
		log.Printf("calib: display power on: %v", err)
	}
	s.show(s.ctrl.Status().String())

	idleStart := s.clk.Now()
	for ctx.Err() == nil {
		if s.clk.Now().Sub(idleStart) >= s.cfg.IdleTimeout {
			break
		}
		if s.dispatch() {
			idleStart = s.clk.Now()
		}
		s.clk.Sleep(s.cfg.PollInterval)
	}

	if err := s.disp.Power(false); err != nil {
		log.Printf("calib: display power off: %v", err)
	}
}

// dispatch services one poll of the buttons, returning whether anything
// was handled (which resets the idle timer).
func (s *Session) dispatch() bool {
	if s.ctrl.Status() == status.ClockFault {
		// Under a latched clock fault only the status button answers,
		// and all it can do is show the error. Motion buttons are dead.
		if s.pressed(gpio.BtnStatus) {
			s.onStatus()
			return true
		}
		any, err := s.buttons.AnyPressed()
		if err == nil && any {
			log.Printf("calib: button ignored under %s", status.ClockFault)
			s.waitAllReleased()
			return true
		}
		return false
	}

	switch {
	case s.pressed(gpio.BtnEast):
		s.manualJog(gpio.East)
	case s.pressed(gpio.BtnWest):
		s.manualJog(gpio.West)
	case s.pressed(gpio.BtnAutoEast):
		if s.limit != nil {
			s.autoZero()
		} else {
			s.autoTraverse(gpio.East)
		}
	case s.pressed(gpio.BtnAutoWest):
		s.autoTraverse(gpio.West)
	case s.pressed(gpio.BtnStatus):
		s.onStatus()
	default:
		return false
	}
	return true
}

// manualJog drives while the direction button is held. Any manual jog
// leaves tracking disabled: the operator has taken over and the count may
// no longer match the sun. A status press mid-jog switches to an
// auto-traverse in the same direction.
func (s *Session) manualJog(dir gpio.Direction) {
	s.ctrl.CountManualJog()
	s.ctrl.Disable()
	s.show("jog " + dir.String())

	btn := gpio.BtnEast
	if dir == gpio.West {
		btn = gpio.BtnWest
	}
	released := func() bool {
		p, err := s.buttons.Pressed(btn)
		if err != nil {
			log.Printf("calib: read %s button: %v", btn, err)
			return true
		}
		return !p
	}
	statusHeld := func() bool {
		p, err := s.buttons.Pressed(gpio.BtnStatus)
		return err == nil && p
	}

	res, err := s.exec.Run(dir, released, statusHeld)
	if err != nil {
		log.Printf("calib: jog %s: %v", dir, err)
		s.show("jog failed")
		return
	}
	if res == motion.Aborted {
		s.waitAllReleased()
		s.autoTraverse(dir)
		return
	}
	s.show("jog done")
}

// autoTraverse runs to the configured limit in dir. Requires a known
// position; any button press aborts.
func (s *Session) autoTraverse(dir gpio.Direction) {
	if !s.ctrl.PositionKnown() {
		s.show("position unknown")
		return
	}
	s.waitAllReleased()
	s.show("auto " + dir.String())

	reached := func() bool {
		p := s.ctrl.Position()
		if p == status.PositionUnknown {
			return false
		}
		if dir == gpio.East {
			return p <= 0
		}
		return p >= s.cfg.FullWest
	}

	res, err := s.exec.Run(dir, reached, s.anyHeld)
	s.ctrl.CountMove(res == motion.Completed)
	if err != nil {
		log.Printf("calib: auto %s: %v", dir, err)
		s.show("move failed")
		return
	}
	if res == motion.Aborted {
		s.show("move aborted")
		return
	}
	s.show("at " + dir.String() + " limit")
}

// autoZero drives east until the limit switch activates, backs west a few
// ticks to clear it, and defines that point as position zero. A switch
// already active at rest points to a wiring fault, so the sequence refuses
// to start from that state.
func (s *Session) autoZero() {
	active, err := s.limit.Active()
	if err != nil {
		log.Printf("calib: read limit switch: %v", err)
		s.show("limit sw error")
		return
	}
	if active {
		s.show("limit stuck on")
		return
	}
	s.waitAllReleased()
	s.show("auto zero: east")

	var switchErr error
	hitSwitch := func() bool {
		a, err := s.limit.Active()
		if err != nil {
			switchErr = err
			return true
		}
		return a
	}

	res, err := s.exec.Run(gpio.East, hitSwitch, s.anyHeld)
	if err != nil || switchErr != nil || res != motion.Completed {
		if switchErr != nil {
			log.Printf("calib: read limit switch: %v", switchErr)
			s.ctrl.Disable()
		}
		if err != nil {
			log.Printf("calib: auto zero east leg: %v", err)
		}
		s.show("zero aborted")
		return
	}

	// At the switch. Back off west to clear it, then that point is zero.
	// A refused zero leaves the backoff leg with no endpoint, so stop here.
	s.ctrl.SetZero()
	if !s.ctrl.PositionKnown() {
		s.show("zero refused")
		return
	}
	res, err = s.exec.Run(gpio.West, func() bool {
		return s.ctrl.Position() >= s.cfg.ZeroBackoff
	}, s.anyHeld)
	if err != nil || res != motion.Completed {
		if err != nil {
			log.Printf("calib: auto zero west leg: %v", err)
		}
		s.show("zero aborted")
		return
	}
	s.ctrl.SetZero()

	s.show("zeroed at limit")
	s.warnBeforeTracking()
}

// onStatus handles a status button press: show-only under ClockFault,
// instant disable while tracking, otherwise the zero/enable ritual.
func (s *Session) onStatus() {
	if s.ctrl.Status() == status.ClockFault {
		s.show(status.ClockFault.String())
		s.waitAllReleased()
		return
	}

	if s.ctrl.IsTracking() {
		s.ctrl.Disable()
		s.show("tracking disabled")
		s.waitAllReleased()
		return
	}

	s.waitAllReleased()

	if !s.ctrl.PositionKnown() {
		s.offerZero()
		return
	}
	if !s.offerEnable() {
		// No response to the enable offer: re-offer zeroing once, for
		// the operator who meant to re-reference the position.
		s.offerZero()
	}
}

// offerZero prompts for zero confirmation. A confirmed zero establishes
// position 0 here and turns tracking on.
func (s *Session) offerZero() {
	s.show("press: set zero")
	if !s.confirm() {
		s.show(s.ctrl.Status().String())
		return
	}
	s.ctrl.SetZero()
	s.show("zeroed")
	s.warnBeforeTracking()
}

// offerEnable prompts for enable confirmation. Returns false when the
// operator did not respond or the enable was refused, so the caller can
// fall back to offering zero.
func (s *Session) offerEnable() bool {
	s.show("press: enable")
	if !s.confirm() {
		return false
	}
	if err := s.ctrl.EnableTracking(); err != nil {
		log.Printf("calib: %v", err)
		return false
	}
	s.show("tracking on")
	s.warnBeforeTracking()
	return true
}

// confirm waits for a status press within the confirmation window.
func (s *Session) confirm() bool {
	deadline := s.clk.Now().Add(s.cfg.ConfirmWindow)
	for s.clk.Now().Before(deadline) {
		if s.pressed(gpio.BtnStatus) {
			s.waitAllReleased()
			return true
		}
		s.clk.Sleep(s.cfg.PollInterval)
	}
	return false
}

// warnBeforeTracking holds the mandatory delay between enabling tracking
// and the first possible autonomous move.
func (s *Session) warnBeforeTracking() {
	s.show("tracking soon")
	s.clk.Sleep(s.cfg.WarnDelay)
}

// pressed reads a button with the settle-delay debounce: the press is only
// trusted if it is still there after the settle time.
func (s *Session) pressed(b gpio.Button) bool {
	p, err := s.buttons.Pressed(b)
	if err != nil {
		log.Printf("calib: read %s button: %v", b, err)
		return false
	}
	if !p {
		return false
	}
	s.clk.Sleep(s.cfg.ButtonSettle)
	p, err = s.buttons.Pressed(b)
	if err != nil {
		log.Printf("calib: read %s button: %v", b, err)
		return false
	}
	return p
}

// anyHeld is the abort predicate for autonomous calibration moves.
func (s *Session) anyHeld() bool {
	p, err := s.buttons.AnyPressed()
	return err == nil && p
}

// waitAllReleased blocks until no button is held, so a press that started
// one action cannot immediately trigger or abort the next.
func (s *Session) waitAllReleased() {
	for {
		any, err := s.buttons.AnyPressed()
		if err != nil {
			log.Printf("calib: read buttons: %v", err)
			return
		}
		if !any {
			return
		}
		s.clk.Sleep(s.cfg.PollInterval)
	}
}

// show refreshes the display with the current status line and a message.
// Only called between moves, never while the motor is engaged.
func (s *Session) show(msg string) {
	snap := s.ctrl.Snapshot(s.clk.Now())
	if err := s.disp.Show(snap.Line1(), msg); err != nil {
		log.Printf("calib: display: %v", err)
	}
}
