// Package filter contains the pure position-sensing logic: an exponential
// moving average over the raw sensor bit with hysteresis thresholds.
// This package has NO external dependencies (no GPIO, OS, or time.Sleep).
// Each Advance call represents one fixed time quantum; callers pace it.
package filter

// Flip describes a hysteresis crossing produced by one Advance call.
type Flip int

const (
	// NoFlip means the debounced state did not change.
	NoFlip Flip = iota
	// Rose means the debounced state went low -> high.
	Rose
	// Fell means the debounced state went high -> low.
	Fell
)

// Config holds the filter tuning constants. Alpha must be retuned per
// actuator pulse width: shorter real pulses require a larger alpha so the
// accumulator can reach the thresholds within one pulse.
type Config struct {
	// Alpha is the EMA smoothing constant, 0 < Alpha <= 1.
	Alpha float64
	// HighLevel is the accumulator level at which the state rises.
	HighLevel float64
	// LowLevel is the accumulator level at which the state falls.
	LowLevel float64
	// PrimeIterations is the number of updates Prime runs so the state
	// reflects the sensor at rest rather than a stale default.
	PrimeIterations int
}

// DefaultConfig returns the reference tuning for the stock actuator
// (approximately 30ms pulses sampled at 1ms).
func DefaultConfig() Config {
	return Config{
		Alpha:           0.1,
		HighLevel:       0.7,
		LowLevel:        0.3,
		PrimeIterations: 30,
	}
}

// Filter debounces the raw pulse-sensor bit. The accumulator stays in
// [0,1]; the debounced state flips only on a threshold crossing, so a
// single-quantum spike from motor noise cannot produce a tick.
type Filter struct {
	cfg   Config
	acc   float64
	state bool
}

// New creates a Filter with the given tuning. The accumulator starts at
// zero and the state low; call Prime before trusting either.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg}
}

// Prime runs the accumulator for the configured warm-up iterations against
// the live sensor, then snaps the debounced state to the accumulator's
// side of the hysteresis band. Must be called before a move starts.
func (f *Filter) Prime(read func() (bool, error)) error {
	for i := 0; i < f.cfg.PrimeIterations; i++ {
		raw, err := read()
		if err != nil {
			return err
		}
		f.accumulate(raw)
	}
	// After warm-up the accumulator reflects the sensor at rest; align
	// the state so the first real pulse is counted as a transition.
	if f.acc >= f.cfg.HighLevel {
		f.state = true
	} else if f.acc <= f.cfg.LowLevel {
		f.state = false
	}
	return nil
}

// Advance runs one accumulator update for the given raw sample and reports
// whether the debounced state crossed a threshold. One flip corresponds to
// one tick of physical actuator travel; the caller applies it to the
// position.
func (f *Filter) Advance(raw bool) Flip {
	f.accumulate(raw)

	if !f.state && f.acc >= f.cfg.HighLevel {
		f.state = true
		return Rose
	}
	if f.state && f.acc <= f.cfg.LowLevel {
		f.state = false
		return Fell
	}
	return NoFlip
}

func (f *Filter) accumulate(raw bool) {
	bit := 0.0
	if raw {
		bit = 1.0
	}
	f.acc = f.cfg.Alpha*bit + (1-f.cfg.Alpha)*f.acc

	// Floating point cannot push the EMA outside [0,1] for valid alpha,
	// but clamp anyway so a bad config cannot corrupt the state machine.
	if f.acc < 0 {
		f.acc = 0
	} else if f.acc > 1 {
		f.acc = 1
	}
}

// State returns the current debounced sensor state.
func (f *Filter) State() bool {
	return f.state
}

// Accumulator returns the current EMA value, mainly for tests and logging.
func (f *Filter) Accumulator() float64 {
	return f.acc
}
