package gpio

import (
	"errors"
	"testing"
)

func TestFakeActuatorStaticWhileStopped(t *testing.T) {
	a := NewFakeActuator()
	first, err := a.ReadSensor()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i := 0; i < 100; i++ {
		v, err := a.ReadSensor()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if v != first {
			t.Fatalf("sensor changed while motor stopped (read %d)", i)
		}
	}
	if a.Quanta() != 0 {
		t.Errorf("expected no travel while stopped, got %d quanta", a.Quanta())
	}
}

func TestFakeActuatorPulsesWhileDriven(t *testing.T) {
	a := NewFakeActuator()
	if err := a.Drive(West); err != nil {
		t.Fatalf("drive: %v", err)
	}

	transitions := 0
	prev, _ := a.ReadSensor()
	for i := 0; i < 120; i++ {
		v, _ := a.ReadSensor()
		if v != prev {
			transitions++
		}
		prev = v
	}
	// 120 quanta at period 30 = 4 cycles = 8 edges.
	if transitions < 7 || transitions > 9 {
		t.Errorf("expected ~8 transitions over 4 cycles, got %d", transitions)
	}
}

func TestFakeActuatorJammed(t *testing.T) {
	a := NewFakeActuator()
	a.Jammed = true
	a.Drive(East)

	prev, _ := a.ReadSensor()
	for i := 0; i < 100; i++ {
		v, _ := a.ReadSensor()
		if v != prev {
			t.Fatal("jammed actuator must not produce transitions")
		}
	}
}

func TestFakeActuatorCoast(t *testing.T) {
	a := NewFakeActuator()
	a.CoastReads = 10
	a.Drive(West)
	for i := 0; i < 5; i++ {
		a.ReadSensor()
	}
	a.Stop()

	before := a.Quanta()
	for i := 0; i < 50; i++ {
		a.ReadSensor()
	}
	if got := a.Quanta() - before; got != 10 {
		t.Errorf("expected exactly 10 coast quanta, got %d", got)
	}
}

func TestFakeActuatorReadError(t *testing.T) {
	a := NewFakeActuator()
	want := errors.New("wire broke")
	a.ReadError = want
	if _, err := a.ReadSensor(); !errors.Is(err, want) {
		t.Errorf("expected injected error, got %v", err)
	}
}

func TestFakeButtons(t *testing.T) {
	b := NewFakeButtons()

	any, err := b.AnyPressed()
	if err != nil {
		t.Fatalf("any: %v", err)
	}
	if any {
		t.Error("no button should be pressed initially")
	}

	b.SetPressed(BtnWest, true)
	if p, _ := b.Pressed(BtnWest); !p {
		t.Error("west should be pressed")
	}
	if p, _ := b.Pressed(BtnEast); p {
		t.Error("east should not be pressed")
	}
	if any, _ := b.AnyPressed(); !any {
		t.Error("AnyPressed should see the west press")
	}

	b.Release()
	if any, _ := b.AnyPressed(); any {
		t.Error("Release should clear all buttons")
	}
}

func TestFakeLimitSwitchTripAfter(t *testing.T) {
	ls := &FakeLimitSwitch{TripAfter: 3}
	for i := 0; i < 2; i++ {
		if v, _ := ls.Active(); v {
			t.Fatalf("switch tripped too early at poll %d", i)
		}
	}
	if v, _ := ls.Active(); !v {
		t.Error("switch should trip on the configured poll")
	}
	if v, _ := ls.Active(); !v {
		t.Error("switch should stay tripped")
	}
}

func TestDirectionTickDelta(t *testing.T) {
	if East.TickDelta() != -1 {
		t.Errorf("east delta: got %d", East.TickDelta())
	}
	if West.TickDelta() != 1 {
		t.Errorf("west delta: got %d", West.TickDelta())
	}
}
