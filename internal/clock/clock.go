// Package clock abstracts the tracker's time source. The real RTC chip is
// programmed outside this process; here it is just "current UTC time plus a
// lost-power flag sampled once at boot". A Clock is also the pacing source
// for the motion executor, so tests can run moves in virtual time.
package clock

import (
	"sync"
	"time"
)

// Source is the time-source collaborator.
type Source interface {
	// Now returns the current time.
	Now() time.Time

	// LostPower reports whether the time source lost power since it was
	// last set. Sampled once at boot; a true value latches ClockFault.
	LostPower() bool
}

// Clock adds pacing to a Source. The motion executor sleeps one quantum
// between sensor samples through this interface.
type Clock interface {
	Source
	Sleep(d time.Duration)
}

// System is the wall-clock Source backed by the OS (which in deployment is
// disciplined by the RTC). It never reports lost power; deployments that
// read the RTC's oscillator-stop flag wrap this with that one bit.
type System struct{}

// Now returns the current wall-clock time.
func (System) Now() time.Time { return time.Now() }

// LostPower always reports false for the system clock.
func (System) LostPower() bool { return false }

// Sleep pauses the caller.
func (System) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a virtual-time Clock for tests. Sleep advances the current time
// instead of pausing, and the optional hook lets tests mutate fake hardware
// at scheduled virtual times.
type Fake struct {
	mu   sync.Mutex
	now  time.Time
	lost bool

	// OnAdvance, if set, is called after every Sleep with the new time.
	OnAdvance func(now time.Time)
}

// NewFake returns a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the current virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep advances virtual time by d and fires the hook.
func (f *Fake) Sleep(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	hook := f.OnAdvance
	f.mu.Unlock()

	if hook != nil {
		hook(now)
	}
}

// Advance moves virtual time forward without a Sleep call.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// SetLostPower sets the lost-power flag returned by LostPower.
func (f *Fake) SetLostPower(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lost = v
}

// LostPower reports the injected lost-power flag.
func (f *Fake) LostPower() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lost
}
