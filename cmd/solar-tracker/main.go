// Command solar-tracker drives a single-axis solar tracker: it polls the
// user buttons, runs calibration sessions, and moves the panel toward the
// configured target policy on a fixed cadence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpangburn/solar-tracker/internal/astro"
	"github.com/jpangburn/solar-tracker/internal/calib"
	"github.com/jpangburn/solar-tracker/internal/clock"
	"github.com/jpangburn/solar-tracker/internal/config"
	"github.com/jpangburn/solar-tracker/internal/display"
	"github.com/jpangburn/solar-tracker/internal/gpio"
	"github.com/jpangburn/solar-tracker/internal/motion"
	"github.com/jpangburn/solar-tracker/internal/status"
	"github.com/jpangburn/solar-tracker/internal/target"
)

func main() {
	configPath := flag.String("config", "/etc/solar-tracker.yaml", "Installation config file")
	mock := flag.Bool("mock", false, "Use fake hardware (bench runs without a tracker attached)")
	broker := flag.String("broker", "", "Override the MQTT broker from the config (empty = config value)")
	printState := flag.Bool("print-state", false, "Print sensor, button and limit-switch state and exit")
	poll := flag.Duration("poll", 50*time.Millisecond, "Button polling interval")

	flag.Parse()

	if err := run(*configPath, *mock, *broker, *printState, *poll); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath string, mock bool, brokerOverride string, printState bool, poll time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if brokerOverride != "" {
		cfg.Display.Broker = brokerOverride
		if cfg.Display.ClientID == "" {
			cfg.Display.ClientID = "solar-tracker"
		}
		if cfg.Display.StatusTopic == "" {
			cfg.Display.StatusTopic = display.DefaultStatusTopic
		}
		if cfg.Display.EventTopic == "" {
			cfg.Display.EventTopic = display.DefaultEventTopic
		}
	}

	// Initialize hardware
	var (
		sensor  gpio.SensorReader
		motor   gpio.Motor
		buttons gpio.Buttons
		limit   gpio.LimitSwitch
	)
	if mock {
		act := gpio.NewFakeActuator()
		sensor, motor = act, act
		buttons = gpio.NewFakeButtons()
		log.Printf("using mock hardware")
	} else {
		hw, err := gpio.NewReal(cfg.GPIOPins())
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer hw.Close()
		sensor, motor, buttons = hw, hw, hw
		if hw.HasLimit() {
			limit = hw
		}
	}

	// Print state mode
	if printState {
		return printHardwareState(sensor, buttons, limit)
	}

	clk := clock.System{}
	ctrl := status.NewController(clk.Now(), cfg.FullWest)
	if clk.LostPower() {
		// Time cannot be trusted; every policy is time-driven.
		ctrl.LatchClockFault()
		log.Printf("time source lost power, latching clock fault")
	}

	// Initialize display backends
	disp := display.Multi{display.Log{}}
	var events eventPublisher
	if cfg.Display.Broker != "" {
		mq, err := display.NewMQTT(cfg.Display.Broker, cfg.Display.ClientID,
			cfg.Display.StatusTopic, cfg.Display.EventTopic)
		if err != nil {
			return fmt.Errorf("init mqtt display: %w", err)
		}
		disp = append(disp, mq)
		events = mq
	}
	defer disp.Close()

	exec := motion.New(motor, sensor, ctrl, clk, cfg.MotionSettings())
	session := calib.New(buttons, limit, exec, ctrl, disp, clk, cfg.CalibrationSettings())

	night, hasNight := cfg.NightReturnPolicy()
	d := &daemon{
		ctrl:      ctrl,
		exec:      exec,
		session:   session,
		buttons:   buttons,
		motor:     motor,
		disp:      disp,
		events:    events,
		clk:       clk,
		policy:    cfg.TargetPolicy(),
		night:     night,
		hasNight:  hasNight,
		latitude:  cfg.Latitude,
		longitude: cfg.Longitude,
		cadence:   cfg.TrackingCadence(),
	}

	// Publish startup event with full status snapshot
	d.publishEvent("STARTUP", "")
	log.Printf("started: policy=%s full_west=%d cadence=%v broker=%q",
		cfg.Policy.Type, cfg.FullWest, d.cadence, cfg.Display.Broker)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	btnTicker := time.NewTicker(poll)
	defer btnTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(d, ticker.C, btnTicker.C, sigCh)
}

// eventPublisher is the lifecycle-event surface of the MQTT display backend.
type eventPublisher interface {
	PublishEvent(payload []byte) error
}

// daemon holds the wired collaborators for the control loop.
type daemon struct {
	ctrl     *status.Controller
	exec     *motion.Executor
	session  *calib.Session
	buttons  gpio.Buttons
	motor    gpio.Motor
	disp     display.Display
	events   eventPublisher // nil without an MQTT backend
	clk      clock.Clock
	policy   target.Policy
	night    target.NightReturn
	hasNight bool

	latitude  float64
	longitude float64
	cadence   time.Duration

	sinceMove time.Duration // minute ticks accumulated toward the cadence
	lastNight time.Time
}

// runLoop is the wake scheduler. It is single-threaded: a calibration
// session or a move blocks the loop, which is what makes "never update the
// display mid-move" structural rather than a lock.
func runLoop(d *daemon, tick, btnTick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigName := make(chan string, 1)
	go func() {
		s, ok := <-sig
		if !ok {
			return
		}
		name := "UNKNOWN"
		switch s {
		case syscall.SIGINT:
			name = "SIGINT"
		case syscall.SIGTERM:
			name = "SIGTERM"
		}
		sigName <- name
		cancel()
	}()

	// A reset wakes into the interaction session, so a freshly powered
	// tracker waits for setup instead of silently doing nothing.
	d.ctrl.SetWake(status.WakeReset)
	d.wake(ctx)

	for {
		select {
		case <-ctx.Done():
			name := "UNKNOWN"
			select {
			case n := <-sigName:
				name = n
			default:
			}
			log.Printf("received %s, shutting down", name)
			d.publishEvent("SHUTDOWN", name)
			if err := d.motor.Stop(); err != nil {
				log.Printf("motor stop on shutdown: %v", err)
			}
			return nil

		case <-tick:
			d.ctrl.SetWake(status.WakeClockTick)
			d.wake(ctx)

		case <-btnTick:
			pressed, err := d.buttons.AnyPressed()
			if err != nil {
				log.Printf("button read error: %v", err)
				continue
			}
			if pressed {
				d.ctrl.SetWake(status.WakeStatusRequest)
				d.wake(ctx)
			}
		}
	}
}

// wake dispatches one wake reason. The reason is drained from the
// controller so a stale value can never be handled twice.
func (d *daemon) wake(ctx context.Context) {
	switch reason := d.ctrl.TakeWake(); reason {
	case status.WakeReset, status.WakeStatusRequest:
		log.Printf("wake: %s", reason)
		d.session.Run(ctx)
		// The session may have just zeroed or enabled tracking. Catch the
		// panel up now instead of waiting out a full cadence.
		if ctx.Err() == nil && d.ctrl.IsTracking() {
			d.sinceMove = 0
			d.evaluateAndMove(d.clk.Now())
		}

	case status.WakeClockTick:
		if d.ctrl.IsFatal() {
			// Fatal statuses silence the clock; only a user status
			// request gets a response.
			return
		}
		d.minuteTick()
		d.refreshDisplay(d.ctrl.Status().String())

	case status.WakeNone:
		// Spurious wake, nothing pending.

	default:
		log.Printf("wake: unexpected reason %s, ignoring", reason)
	}
}

// minuteTick advances the tracking cadence and the nightly east return.
func (d *daemon) minuteTick() {
	now := d.clk.Now()

	if d.hasNight && d.night.Due(now, d.lastNight) {
		// Mark the trigger even when motion is blocked, so a disabled
		// tracker does not retry every minute until midnight.
		d.lastNight = now
		if d.ctrl.IsTracking() {
			log.Printf("night return: moving to full east")
			d.moveTo(0)
			return
		}
	}

	if !d.ctrl.IsTracking() {
		d.sinceMove = 0
		return
	}
	d.sinceMove += time.Minute
	if d.sinceMove < d.cadence {
		return
	}
	d.sinceMove = 0
	d.evaluateAndMove(now)
}

// evaluateAndMove asks the target policy for a demand at now and issues
// the move when one is wanted.
func (d *daemon) evaluateAndMove(now time.Time) {
	sun := astro.SunPosition(d.latitude, d.longitude, now)
	demand := d.policy.Evaluate(now, sun)
	if !demand.Move {
		return
	}
	d.moveTo(demand.Ticks(d.ctrl.FullWest()))
}

// moveTo runs one autonomous move, with any button press as the abort
// request.
func (d *daemon) moveTo(dest int) {
	res, err := d.exec.MoveTo(dest, d.abortRequested)
	switch {
	case res == motion.Skipped:
		log.Printf("move to %d skipped: %v", dest, err)
	case err != nil:
		log.Printf("move to %d failed: %v", dest, err)
		d.ctrl.CountMove(false)
		d.publishEvent("FAULT", err.Error())
	default:
		log.Printf("move to %d: %s (position %d)", dest, res, d.ctrl.Position())
		d.ctrl.CountMove(res == motion.Completed)
	}
}

// abortRequested reports whether the user is asking to abort a move.
func (d *daemon) abortRequested() bool {
	pressed, err := d.buttons.AnyPressed()
	return err == nil && pressed
}

// refreshDisplay pushes the current status to every display backend.
func (d *daemon) refreshDisplay(msg string) {
	snap := d.ctrl.Snapshot(d.clk.Now())
	if err := d.disp.Show(snap.Line1(), msg); err != nil {
		log.Printf("display: %v", err)
	}
}

// publishEvent sends a lifecycle event with a full status snapshot to the
// MQTT backend, if one is configured.
func (d *daemon) publishEvent(event, reason string) {
	if d.events == nil {
		return
	}
	snap := d.ctrl.Snapshot(d.clk.Now())
	if err := d.events.PublishEvent(status.FormatStatusEvent(snap, event, reason)); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else {
		log.Printf("published %s event", event)
	}
}

// printHardwareState reads every input once for installation debugging.
func printHardwareState(sensor gpio.SensorReader, buttons gpio.Buttons, limit gpio.LimitSwitch) error {
	raw, err := sensor.ReadSensor()
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}
	fmt.Printf("sensor: %s\n", levelString(raw))

	for _, b := range []gpio.Button{gpio.BtnStatus, gpio.BtnEast, gpio.BtnWest, gpio.BtnAutoEast, gpio.BtnAutoWest} {
		pressed, err := buttons.Pressed(b)
		if err != nil {
			return fmt.Errorf("read %s button: %w", b, err)
		}
		fmt.Printf("button %s: %s\n", b, levelString(pressed))
	}

	if limit != nil {
		active, err := limit.Active()
		if err != nil {
			return fmt.Errorf("read limit switch: %w", err)
		}
		fmt.Printf("limit switch: %s\n", levelString(active))
	} else {
		fmt.Printf("limit switch: not installed\n")
	}
	return nil
}

func levelString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
