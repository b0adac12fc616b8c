package filter

import (
	"math"
	"testing"
)

func constRead(v bool) func() (bool, error) {
	return func() (bool, error) { return v, nil }
}

func TestNewFilterStartsLow(t *testing.T) {
	f := New(DefaultConfig())
	if f.State() {
		t.Error("new filter should start with state low")
	}
	if f.Accumulator() != 0 {
		t.Errorf("expected accumulator 0, got %v", f.Accumulator())
	}
}

func TestPrimeSnapsHighOnHighSensor(t *testing.T) {
	f := New(DefaultConfig())
	if err := f.Prime(constRead(true)); err != nil {
		t.Fatalf("prime: %v", err)
	}
	// 30 iterations at alpha 0.1 against a constant 1 reach ~0.958.
	if !f.State() {
		t.Error("expected state high after priming against a high sensor")
	}
	if f.Accumulator() < 0.9 {
		t.Errorf("expected accumulator near 1 after prime, got %v", f.Accumulator())
	}
}

func TestPrimeStaysLowOnLowSensor(t *testing.T) {
	f := New(DefaultConfig())
	if err := f.Prime(constRead(false)); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if f.State() {
		t.Error("expected state low after priming against a low sensor")
	}
}

func TestPrimePropagatesReadError(t *testing.T) {
	f := New(DefaultConfig())
	want := errSentinel
	err := f.Prime(func() (bool, error) { return false, want })
	if err != want {
		t.Errorf("expected read error to propagate, got %v", err)
	}
}

type sentinelError struct{}

func (sentinelError) Error() string { return "sensor read failed" }

var errSentinel = sentinelError{}

func TestSingleQuantumSpikeIsIgnored(t *testing.T) {
	f := New(DefaultConfig())
	if err := f.Prime(constRead(false)); err != nil {
		t.Fatalf("prime: %v", err)
	}

	// One noise spike surrounded by quiet line: accumulator moves to 0.1,
	// far below the 0.7 rise threshold.
	if flip := f.Advance(true); flip != NoFlip {
		t.Errorf("spike quantum: expected NoFlip, got %v", flip)
	}
	for i := 0; i < 50; i++ {
		if flip := f.Advance(false); flip != NoFlip {
			t.Errorf("quiet quantum %d: expected NoFlip, got %v", i, flip)
		}
	}
	if f.State() {
		t.Error("state should remain low after an isolated spike")
	}
}

func TestSustainedPulseProducesOneRiseOneFall(t *testing.T) {
	f := New(DefaultConfig())
	if err := f.Prime(constRead(false)); err != nil {
		t.Fatalf("prime: %v", err)
	}

	rises, falls := 0, 0
	// A realistic pulse: 30 high quanta then 30 low quanta.
	for i := 0; i < 30; i++ {
		switch f.Advance(true) {
		case Rose:
			rises++
		case Fell:
			falls++
		}
	}
	for i := 0; i < 30; i++ {
		switch f.Advance(false) {
		case Rose:
			rises++
		case Fell:
			falls++
		}
	}

	if rises != 1 {
		t.Errorf("expected exactly 1 rise, got %d", rises)
	}
	if falls != 1 {
		t.Errorf("expected exactly 1 fall, got %d", falls)
	}
}

func TestChatterInsideHysteresisBandDoesNotFlip(t *testing.T) {
	f := New(Config{Alpha: 0.5, HighLevel: 0.7, LowLevel: 0.3, PrimeIterations: 10})
	if err := f.Prime(constRead(false)); err != nil {
		t.Fatalf("prime: %v", err)
	}

	// Alternating samples hold the EMA near 0.5, inside the band.
	// Run a few warm-up alternations first so the EMA settles mid-band.
	for i := 0; i < 8; i++ {
		f.Advance(i%2 == 0)
	}
	for i := 0; i < 100; i++ {
		if flip := f.Advance(i%2 == 0); flip != NoFlip {
			t.Fatalf("alternation %d: expected NoFlip, got %v (acc=%v)", i, flip, f.Accumulator())
		}
	}
}

func TestAccumulatorStaysInUnitInterval(t *testing.T) {
	f := New(DefaultConfig())
	for i := 0; i < 1000; i++ {
		f.Advance(i%3 != 0)
		acc := f.Accumulator()
		if acc < 0 || acc > 1 || math.IsNaN(acc) {
			t.Fatalf("iteration %d: accumulator %v outside [0,1]", i, acc)
		}
	}
}

func TestLargerAlphaReachesThresholdFaster(t *testing.T) {
	slow := New(Config{Alpha: 0.1, HighLevel: 0.7, LowLevel: 0.3, PrimeIterations: 1})
	fast := New(Config{Alpha: 0.3, HighLevel: 0.7, LowLevel: 0.3, PrimeIterations: 1})

	quantaUntilRise := func(f *Filter) int {
		for i := 1; i <= 200; i++ {
			if f.Advance(true) == Rose {
				return i
			}
		}
		return -1
	}

	s := quantaUntilRise(slow)
	q := quantaUntilRise(fast)
	if s <= q {
		t.Errorf("expected alpha 0.3 to rise sooner than alpha 0.1: fast=%d slow=%d", q, s)
	}
}
