// Package config loads the YAML installation file. Every deployment
// differs: actuator travel, pin wiring, target policy and its measured
// parameters all live here rather than in code.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpangburn/solar-tracker/internal/calib"
	"github.com/jpangburn/solar-tracker/internal/display"
	"github.com/jpangburn/solar-tracker/internal/filter"
	"github.com/jpangburn/solar-tracker/internal/gpio"
	"github.com/jpangburn/solar-tracker/internal/motion"
	"github.com/jpangburn/solar-tracker/internal/target"
)

// RegressionConfig holds the cubic azimuth-to-position fit measured on the
// installed hardware.
type RegressionConfig struct {
	X3 float64 `yaml:"x3"`
	X2 float64 `yaml:"x2"`
	X1 float64 `yaml:"x1"`
	X0 float64 `yaml:"x0"`
}

// LinearConfig holds the sun azimuths at the travel extremes.
type LinearConfig struct {
	EastAngle float64 `yaml:"east_angle"`
	WestAngle float64 `yaml:"west_angle"`
}

// ScheduleConfig holds the clock-time tracking span. Times are local
// "HH:MM" strings.
type ScheduleConfig struct {
	EastStart            string `yaml:"east_start"`
	WestEnd              string `yaml:"west_end"`
	ReferenceDay         int    `yaml:"reference_day"`          // day of year the span was measured; 0 = no EoT correction
	WestToleranceMinutes int    `yaml:"west_tolerance_minutes"` // snap-to-west window near the span end
}

// PolicyConfig selects and parameterizes the target policy.
type PolicyConfig struct {
	Type       string           `yaml:"type"` // "regression", "linear" or "schedule"
	Regression RegressionConfig `yaml:"regression"`
	Linear     LinearConfig     `yaml:"linear"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
}

// FilterConfig tunes the pulse-sensor debounce filter.
type FilterConfig struct {
	Alpha           float64 `yaml:"alpha"`
	HighLevel       float64 `yaml:"high_level"`
	LowLevel        float64 `yaml:"low_level"`
	PrimeIterations int     `yaml:"prime_iterations"`
}

// MotionConfig tunes the motion executor.
type MotionConfig struct {
	QuantumMs      int `yaml:"quantum_ms"`
	BatchQuanta    int `yaml:"batch_quanta"`
	StallWindowMs  int `yaml:"stall_window_ms"`
	SettleWindowMs int `yaml:"settle_window_ms"`
}

// CalibrationConfig tunes the button interaction session.
type CalibrationConfig struct {
	IdleTimeoutS   int `yaml:"idle_timeout_s"`
	ConfirmWindowS int `yaml:"confirm_window_s"`
	WarnDelayS     int `yaml:"warn_delay_s"`
	ButtonSettleMs int `yaml:"button_settle_ms"`
	ZeroBackoff    int `yaml:"zero_backoff"`
}

// PinsConfig holds the BCM line assignments.
type PinsConfig struct {
	Sensor      int `yaml:"sensor"`
	MotorEast   int `yaml:"motor_east"`
	MotorWest   int `yaml:"motor_west"`
	BtnStatus   int `yaml:"btn_status"`
	BtnEast     int `yaml:"btn_east"`
	BtnWest     int `yaml:"btn_west"`
	BtnAutoEast int `yaml:"btn_auto_east"`
	BtnAutoWest int `yaml:"btn_auto_west"`
	Limit       int `yaml:"limit"` // 0 = no limit switch installed
}

// DisplayConfig selects the remote display backend. An empty broker means
// log-only output.
type DisplayConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	StatusTopic string `yaml:"status_topic"`
	EventTopic  string `yaml:"event_topic"`
}

// Config aggregates the installation configuration.
type Config struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`

	FullWest               int `yaml:"full_west"`
	MinimumMovement        int `yaml:"minimum_movement"`
	TrackingCadenceMinutes int `yaml:"tracking_cadence_minutes"`

	// NightReturn is the local "HH:MM" of the nightly forced move to full
	// east. Empty disables it.
	NightReturn string `yaml:"night_return"`

	Policy      PolicyConfig      `yaml:"policy"`
	Filter      FilterConfig      `yaml:"filter"`
	Motion      MotionConfig      `yaml:"motion"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Pins        PinsConfig        `yaml:"pins"`
	Display     DisplayConfig     `yaml:"display"`

	// parsed at load time
	scheduleStart  int
	scheduleEnd    int
	nightReturnMin int
}

// Load reads and validates a YAML installation file, filling defaults for
// anything the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if cfg.FullWest <= 0 {
		cfg.FullWest = 2300
	}
	if cfg.MinimumMovement <= 0 {
		cfg.MinimumMovement = 10
	}
	if cfg.TrackingCadenceMinutes <= 0 {
		cfg.TrackingCadenceMinutes = 10
	}

	if err := cfg.validatePolicy(); err != nil {
		return nil, err
	}

	cfg.nightReturnMin = -1
	if cfg.NightReturn != "" {
		m, err := parseClock(cfg.NightReturn)
		if err != nil {
			return nil, fmt.Errorf("night_return: %w", err)
		}
		cfg.nightReturnMin = m
	}

	if err := cfg.validateFilter(); err != nil {
		return nil, err
	}
	cfg.defaultMotion()
	cfg.defaultCalibration()
	cfg.defaultPins()
	cfg.defaultDisplay()

	return &cfg, nil
}

func (c *Config) validatePolicy() error {
	switch c.Policy.Type {
	case "regression":
		r := c.Policy.Regression
		if r.X3 == 0 && r.X2 == 0 && r.X1 == 0 && r.X0 == 0 {
			return fmt.Errorf("policy.regression coefficients are required")
		}
		return c.requireCoordinates()

	case "linear":
		l := c.Policy.Linear
		if l.WestAngle <= l.EastAngle {
			return fmt.Errorf("policy.linear: west_angle (%.1f) must exceed east_angle (%.1f)",
				l.WestAngle, l.EastAngle)
		}
		return c.requireCoordinates()

	case "schedule":
		s := c.Policy.Schedule
		start, err := parseClock(s.EastStart)
		if err != nil {
			return fmt.Errorf("policy.schedule.east_start: %w", err)
		}
		end, err := parseClock(s.WestEnd)
		if err != nil {
			return fmt.Errorf("policy.schedule.west_end: %w", err)
		}
		if end <= start {
			return fmt.Errorf("policy.schedule: west_end %q must be after east_start %q",
				s.WestEnd, s.EastStart)
		}
		if s.ReferenceDay < 0 || s.ReferenceDay > 366 {
			return fmt.Errorf("policy.schedule.reference_day must be in [0,366], got %d", s.ReferenceDay)
		}
		if s.WestToleranceMinutes <= 0 {
			c.Policy.Schedule.WestToleranceMinutes = 20
		}
		c.scheduleStart = start
		c.scheduleEnd = end
		return nil

	case "":
		return fmt.Errorf("policy.type is required")
	default:
		return fmt.Errorf("policy.type %q is not one of regression, linear, schedule", c.Policy.Type)
	}
}

// requireCoordinates checks the site location needed by the sun-based
// policies. The schedule policy works from clock time alone.
func (c *Config) requireCoordinates() error {
	if c.Latitude == 0 && c.Longitude == 0 {
		return fmt.Errorf("latitude and longitude are required for policy %q", c.Policy.Type)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be in [-90,90], got %.4f", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be in [-180,180], got %.4f", c.Longitude)
	}
	return nil
}

func (c *Config) validateFilter() error {
	f := &c.Filter
	if f.Alpha == 0 {
		f.Alpha = 0.1
	}
	if f.HighLevel == 0 {
		f.HighLevel = 0.7
	}
	if f.LowLevel == 0 {
		f.LowLevel = 0.3
	}
	if f.PrimeIterations == 0 {
		f.PrimeIterations = 30
	}
	if f.Alpha <= 0 || f.Alpha > 1 {
		return fmt.Errorf("filter.alpha must be in (0,1], got %g", f.Alpha)
	}
	if f.LowLevel <= 0 || f.HighLevel >= 1 || f.LowLevel >= f.HighLevel {
		return fmt.Errorf("filter thresholds must satisfy 0 < low < high < 1, got low=%g high=%g",
			f.LowLevel, f.HighLevel)
	}
	return nil
}

func (c *Config) defaultMotion() {
	m := &c.Motion
	if m.QuantumMs <= 0 {
		m.QuantumMs = 1
	}
	if m.BatchQuanta <= 0 {
		m.BatchQuanta = 20
	}
	if m.StallWindowMs <= 0 {
		m.StallWindowMs = 750
	}
	if m.SettleWindowMs <= 0 {
		m.SettleWindowMs = 300
	}
}

func (c *Config) defaultCalibration() {
	k := &c.Calibration
	if k.IdleTimeoutS <= 0 {
		k.IdleTimeoutS = 15
	}
	if k.ConfirmWindowS <= 0 {
		k.ConfirmWindowS = 5
	}
	if k.WarnDelayS <= 0 {
		k.WarnDelayS = 3
	}
	if k.ButtonSettleMs <= 0 {
		k.ButtonSettleMs = 30
	}
	if k.ZeroBackoff <= 0 {
		k.ZeroBackoff = 5
	}
}

func (c *Config) defaultPins() {
	p := &c.Pins
	if p.Sensor == 0 && p.MotorEast == 0 && p.MotorWest == 0 {
		d := gpio.DefaultPins()
		p.Sensor = d.Sensor
		p.MotorEast = d.MotorEast
		p.MotorWest = d.MotorWest
		p.BtnStatus = d.BtnStatus
		p.BtnEast = d.BtnEast
		p.BtnWest = d.BtnWest
		p.BtnAutoEast = d.BtnAutoEast
		p.BtnAutoWest = d.BtnAutoWest
	}
}

func (c *Config) defaultDisplay() {
	d := &c.Display
	if d.Broker == "" {
		return
	}
	if d.ClientID == "" {
		d.ClientID = "solar-tracker"
	}
	if d.StatusTopic == "" {
		d.StatusTopic = display.DefaultStatusTopic
	}
	if d.EventTopic == "" {
		d.EventTopic = display.DefaultEventTopic
	}
}

// FilterSettings returns the loaded debounce-filter tuning.
func (c *Config) FilterSettings() filter.Config {
	return filter.Config{
		Alpha:           c.Filter.Alpha,
		HighLevel:       c.Filter.HighLevel,
		LowLevel:        c.Filter.LowLevel,
		PrimeIterations: c.Filter.PrimeIterations,
	}
}

// MotionSettings returns the loaded motion-executor tuning.
func (c *Config) MotionSettings() motion.Config {
	return motion.Config{
		Quantum:         time.Duration(c.Motion.QuantumMs) * time.Millisecond,
		BatchQuanta:     c.Motion.BatchQuanta,
		StallWindow:     time.Duration(c.Motion.StallWindowMs) * time.Millisecond,
		SettleWindow:    time.Duration(c.Motion.SettleWindowMs) * time.Millisecond,
		MinimumMovement: c.MinimumMovement,
		Filter:          c.FilterSettings(),
	}
}

// CalibrationSettings returns the loaded interaction-session tuning.
func (c *Config) CalibrationSettings() calib.Config {
	return calib.Config{
		IdleTimeout:   time.Duration(c.Calibration.IdleTimeoutS) * time.Second,
		ConfirmWindow: time.Duration(c.Calibration.ConfirmWindowS) * time.Second,
		WarnDelay:     time.Duration(c.Calibration.WarnDelayS) * time.Second,
		ButtonSettle:  time.Duration(c.Calibration.ButtonSettleMs) * time.Millisecond,
		PollInterval:  50 * time.Millisecond,
		ZeroBackoff:   c.Calibration.ZeroBackoff,
		FullWest:      c.FullWest,
	}
}

// GPIOPins returns the loaded line assignments.
func (c *Config) GPIOPins() gpio.Pins {
	return gpio.Pins{
		Sensor:      c.Pins.Sensor,
		MotorEast:   c.Pins.MotorEast,
		MotorWest:   c.Pins.MotorWest,
		BtnStatus:   c.Pins.BtnStatus,
		BtnEast:     c.Pins.BtnEast,
		BtnWest:     c.Pins.BtnWest,
		BtnAutoEast: c.Pins.BtnAutoEast,
		BtnAutoWest: c.Pins.BtnAutoWest,
		Limit:       c.Pins.Limit,
	}
}

// TargetPolicy returns the configured policy, ready to evaluate.
func (c *Config) TargetPolicy() target.Policy {
	switch c.Policy.Type {
	case "regression":
		r := c.Policy.Regression
		return target.Regression{C3: r.X3, C2: r.X2, C1: r.X1, C0: r.X0, FullWest: c.FullWest}
	case "linear":
		l := c.Policy.Linear
		return target.Linear{EastAngle: l.EastAngle, WestAngle: l.WestAngle}
	default:
		s := c.Policy.Schedule
		return target.Schedule{
			EastStart:     c.scheduleStart,
			WestEnd:       c.scheduleEnd,
			RefDayOfYear:  s.ReferenceDay,
			WestTolerance: time.Duration(s.WestToleranceMinutes) * time.Minute,
		}
	}
}

// NightReturnPolicy returns the nightly east-return trigger, if configured.
func (c *Config) NightReturnPolicy() (target.NightReturn, bool) {
	if c.nightReturnMin < 0 {
		return target.NightReturn{}, false
	}
	return target.NightReturn{At: c.nightReturnMin}, true
}

// TrackingCadence returns the autonomous move interval.
func (c *Config) TrackingCadence() time.Duration {
	return time.Duration(c.TrackingCadenceMinutes) * time.Minute
}

// parseClock parses a local "HH:MM" string to minutes after midnight.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%q is not a valid time of day", s)
	}
	return h*60 + m, nil
}
