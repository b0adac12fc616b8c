package clock

import (
	"testing"
	"time"
)

func TestFakeSleepAdvancesAndFiresHook(t *testing.T) {
	start := time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	var hookTimes []time.Time
	f.OnAdvance = func(now time.Time) { hookTimes = append(hookTimes, now) }

	f.Sleep(time.Second)
	f.Sleep(500 * time.Millisecond)

	if got := f.Now(); !got.Equal(start.Add(1500 * time.Millisecond)) {
		t.Errorf("Now = %v, want start+1.5s", got)
	}
	if len(hookTimes) != 2 {
		t.Fatalf("hook fired %d times, want 2", len(hookTimes))
	}
	if !hookTimes[0].Equal(start.Add(time.Second)) {
		t.Errorf("first hook at %v, want start+1s", hookTimes[0])
	}
}

func TestFakeAdvanceSkipsHook(t *testing.T) {
	start := time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	fired := false
	f.OnAdvance = func(time.Time) { fired = true }

	f.Advance(time.Minute)

	if got := f.Now(); !got.Equal(start.Add(time.Minute)) {
		t.Errorf("Now = %v, want start+1m", got)
	}
	if fired {
		t.Error("Advance fired the sleep hook")
	}
}

func TestFakeLostPower(t *testing.T) {
	f := NewFake(time.Now())
	if f.LostPower() {
		t.Error("fresh fake reports lost power")
	}
	f.SetLostPower(true)
	if !f.LostPower() {
		t.Error("lost power flag not reported")
	}
}

func TestSystemNeverLostPower(t *testing.T) {
	if (System{}).LostPower() {
		t.Error("system clock reports lost power")
	}
}
