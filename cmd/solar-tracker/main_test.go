package main

import (
	"encoding/json"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/jpangburn/solar-tracker/internal/astro"
	"github.com/jpangburn/solar-tracker/internal/calib"
	"github.com/jpangburn/solar-tracker/internal/clock"
	"github.com/jpangburn/solar-tracker/internal/display"
	"github.com/jpangburn/solar-tracker/internal/gpio"
	"github.com/jpangburn/solar-tracker/internal/motion"
	"github.com/jpangburn/solar-tracker/internal/status"
	"github.com/jpangburn/solar-tracker/internal/target"
)

// fixedPolicy always demands the same thing, isolating the loop's cadence
// and gating behavior from the real policies.
type fixedPolicy struct {
	demand target.Demand
}

func (p fixedPolicy) Evaluate(time.Time, astro.Position) target.Demand { return p.demand }

// timedPolicy demands nothing until activateAt, so tests can let the boot
// session pass quietly and then watch the cadence alone.
type timedPolicy struct {
	activateAt time.Time
	demand     target.Demand
}

func (p timedPolicy) Evaluate(now time.Time, _ astro.Position) target.Demand {
	if now.Before(p.activateAt) {
		return target.Demand{}
	}
	return p.demand
}

// eventRecorder captures lifecycle event payloads.
type eventRecorder struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (r *eventRecorder) PublishEvent(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return nil
}

// eventNames decodes the recorded payloads to their event names.
func (r *eventRecorder) eventNames(t *testing.T) []string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, p := range r.payloads {
		var env status.StatusJSON
		if err := json.Unmarshal(p, &env); err != nil {
			t.Fatalf("bad event payload %s: %v", p, err)
		}
		names = append(names, env.Status.Event)
	}
	return names
}

const loopFullWest = 50

// loopStart is the virtual boot time of every loop rig.
var loopStart = time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC)

// loopRig runs runLoop against fake hardware in virtual time.
type loopRig struct {
	act     *gpio.FakeActuator
	buttons *gpio.FakeButtons
	ctrl    *status.Controller
	disp    *display.Fake
	clk     *clock.Fake
	events  *eventRecorder

	tick    chan time.Time
	btnTick chan time.Time
	sig     chan os.Signal
	errCh   chan error
}

// startLoop wires a daemon and starts runLoop in a goroutine. prep runs
// before the loop starts, so it can seed controller state and clock hooks
// without racing it.
func startLoop(pol target.Policy, night target.NightReturn, hasNight bool, prep func(*loopRig)) *loopRig {
	start := loopStart
	clk := clock.NewFake(start)
	act := gpio.NewFakeActuator()
	buttons := gpio.NewFakeButtons()
	ctrl := status.NewController(start, loopFullWest)
	exec := motion.New(act, act, ctrl, clk, motion.DefaultConfig())
	disp := display.NewFake()
	events := &eventRecorder{}

	scfg := calib.DefaultConfig()
	scfg.FullWest = loopFullWest
	session := calib.New(buttons, nil, exec, ctrl, disp, clk, scfg)

	r := &loopRig{
		act:     act,
		buttons: buttons,
		ctrl:    ctrl,
		disp:    disp,
		clk:     clk,
		events:  events,
		tick:    make(chan time.Time),
		btnTick: make(chan time.Time),
		sig:     make(chan os.Signal, 1),
		errCh:   make(chan error, 1),
	}
	if prep != nil {
		prep(r)
	}

	d := &daemon{
		ctrl:      ctrl,
		exec:      exec,
		session:   session,
		buttons:   buttons,
		motor:     act,
		disp:      disp,
		events:    events,
		clk:       clk,
		policy:    pol,
		night:     night,
		hasNight:  hasNight,
		latitude:  33.11,
		longitude: -116.98,
		cadence:   10 * time.Minute,
	}
	go func() {
		r.errCh <- runLoop(d, r.tick, r.btnTick, r.sig)
	}()
	return r
}

// sync blocks until the loop has finished any in-progress wake and is
// parked in its select. With no button held the poll tick is a no-op.
func (r *loopRig) sync() {
	r.btnTick <- time.Time{}
}

// minuteTicks advances the virtual clock and delivers n minute wakeups.
// Each advance is fenced behind sync so it cannot land inside an
// in-flight move and trip a false stall.
func (r *loopRig) minuteTicks(n int) {
	for i := 0; i < n; i++ {
		r.sync()
		r.clk.Advance(time.Minute)
		r.tick <- time.Time{}
	}
}

// finish signals shutdown and waits for the loop to exit.
func (r *loopRig) finish(t *testing.T) {
	t.Helper()
	r.sig <- syscall.SIGTERM
	select {
	case err := <-r.errCh:
		if err != nil {
			t.Fatalf("runLoop returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runLoop did not exit after SIGTERM")
	}
}

func (r *loopRig) shown(msg string) bool {
	for _, l := range r.disp.SecondLines() {
		if l == msg {
			return true
		}
	}
	return false
}

func TestRunLoopPublishesShutdownAndStopsMotor(t *testing.T) {
	r := startLoop(fixedPolicy{}, target.NightReturn{}, false, nil)
	r.finish(t)

	names := r.events.eventNames(t)
	if len(names) != 1 || names[0] != "SHUTDOWN" {
		t.Errorf("events = %v, want [SHUTDOWN]", names)
	}
	if r.act.Stops == 0 {
		t.Error("motor was not stopped on shutdown")
	}
}

func TestRunLoopMovesAtTrackingCadence(t *testing.T) {
	pol := timedPolicy{loopStart.Add(5 * time.Minute), target.Demand{Move: true, Fraction: 0.5}}
	r := startLoop(pol, target.NightReturn{}, false, func(r *loopRig) {
		r.ctrl.SetZero()
	})

	r.minuteTicks(10)
	r.finish(t)

	want := loopFullWest / 2
	if got := r.ctrl.Position(); got != want {
		t.Errorf("position after one cadence = %d, want %d", got, want)
	}
	if len(r.act.DriveLog) != 1 || r.act.DriveLog[0] != gpio.West {
		t.Errorf("drive log = %v, want one west move", r.act.DriveLog)
	}
}

func TestRunLoopDoesNotMoveBeforeCadence(t *testing.T) {
	pol := timedPolicy{loopStart.Add(5 * time.Minute), target.Demand{Move: true, Fraction: 0.5}}
	r := startLoop(pol, target.NightReturn{}, false, func(r *loopRig) {
		r.ctrl.SetZero()
	})

	r.minuteTicks(9)
	r.finish(t)

	if len(r.act.DriveLog) != 0 {
		t.Errorf("motor driven %v before the cadence elapsed", r.act.DriveLog)
	}
}

// A tracker that comes out of a session tracking moves right away rather
// than sitting still for up to a full cadence.
func TestRunLoopMovesRightAfterSession(t *testing.T) {
	pol := fixedPolicy{target.Demand{Move: true, Fraction: 0.5}}
	r := startLoop(pol, target.NightReturn{}, false, func(r *loopRig) {
		r.ctrl.SetZero()
	})

	// The tick is only received once the boot session and its follow-up
	// move have completed; no cadence has elapsed by then.
	r.minuteTicks(1)
	r.finish(t)

	want := loopFullWest / 2
	if got := r.ctrl.Position(); got != want {
		t.Errorf("position after boot session = %d, want %d", got, want)
	}
	if len(r.act.DriveLog) != 1 || r.act.DriveLog[0] != gpio.West {
		t.Errorf("drive log = %v, want one west move", r.act.DriveLog)
	}
}

func TestRunLoopIdleWhileDisabled(t *testing.T) {
	pol := fixedPolicy{target.Demand{Move: true, Fraction: 0.5}}
	r := startLoop(pol, target.NightReturn{}, false, func(r *loopRig) {
		r.ctrl.SetZero()
		r.ctrl.Disable()
	})

	r.minuteTicks(15)
	r.finish(t)

	if len(r.act.DriveLog) != 0 {
		t.Errorf("motor driven %v while tracking disabled", r.act.DriveLog)
	}
	if got := r.ctrl.Position(); got != 0 {
		t.Errorf("position = %d, want unchanged 0", got)
	}
}

func TestRunLoopBlockedByFault(t *testing.T) {
	pol := fixedPolicy{target.Demand{Move: true, Fraction: 0.5}}
	r := startLoop(pol, target.NightReturn{}, false, func(r *loopRig) {
		r.ctrl.RecordFault()
	})

	r.minuteTicks(12)
	r.finish(t)

	if len(r.act.DriveLog) != 0 {
		t.Errorf("motor driven %v with a latched fault", r.act.DriveLog)
	}
	if got := r.ctrl.Status(); got != status.MotorSensingError {
		t.Errorf("status = %v, want latched %v", got, status.MotorSensingError)
	}
	// A fatal status silences the clock: the ticks above must not have
	// refreshed the display beyond the boot session's banner.
	if n := len(r.disp.SecondLines()); n != 1 {
		t.Errorf("display updated %d times, want only the boot session banner", n)
	}
}

func TestRunLoopNightReturnFiresOnce(t *testing.T) {
	// Loop starts at 12:00; the nightly return is due at 12:03.
	night := target.NightReturn{At: 12*60 + 3}
	r := startLoop(fixedPolicy{}, night, true, func(r *loopRig) {
		r.ctrl.SetZero()
		r.ctrl.ApplyTick(30)
	})

	r.minuteTicks(8)
	r.finish(t)

	if got := r.ctrl.Position(); got != 0 {
		t.Errorf("position after night return = %d, want 0", got)
	}
	if len(r.act.DriveLog) != 1 || r.act.DriveLog[0] != gpio.East {
		t.Errorf("drive log = %v, want exactly one east move", r.act.DriveLog)
	}
}

func TestRunLoopButtonWakeRunsSession(t *testing.T) {
	r := startLoop(fixedPolicy{}, target.NightReturn{}, false, func(r *loopRig) {
		// Auto-release any held button after one second of virtual hold,
		// so session waits terminate.
		var heldSince time.Time
		r.clk.OnAdvance = func(now time.Time) {
			any, _ := r.buttons.AnyPressed()
			if !any {
				heldSince = time.Time{}
				return
			}
			if heldSince.IsZero() {
				heldSince = now
				return
			}
			if now.Sub(heldSince) >= time.Second {
				r.buttons.Release()
			}
		}
	})

	// One tick to be sure the boot session has finished, then press status
	// while the loop is parked in its select. The trailing tick is only
	// received once the button-wake session has run to completion, so the
	// shutdown below cannot cut it short.
	r.minuteTicks(1)
	r.buttons.SetPressed(gpio.BtnStatus, true)
	r.btnTick <- time.Time{}
	r.minuteTicks(1)
	r.finish(t)

	if !r.shown("press: set zero") {
		t.Errorf("status wake did not reach the zero offer; displayed %v", r.disp.SecondLines())
	}
	if got := r.ctrl.Status(); got != status.NeedsSetup {
		t.Errorf("status = %v, want %v (offer not confirmed)", got, status.NeedsSetup)
	}
}

func TestPrintHardwareState(t *testing.T) {
	act := gpio.NewFakeActuator()
	buttons := gpio.NewFakeButtons()
	if err := printHardwareState(act, buttons, nil); err != nil {
		t.Fatalf("printHardwareState: %v", err)
	}

	limit := &gpio.FakeLimitSwitch{}
	limit.SetActive(true)
	if err := printHardwareState(act, buttons, limit); err != nil {
		t.Fatalf("printHardwareState with limit: %v", err)
	}
}

func TestLevelString(t *testing.T) {
	if levelString(true) != "ON" || levelString(false) != "OFF" {
		t.Errorf("levelString mapping wrong: %q %q", levelString(true), levelString(false))
	}
}
